package workspace

import "errors"

var (
	ErrNoProblem           = errors.New("no problem loaded")
	ErrAuthRequired        = errors.New("authentication required")
	ErrLanguageUnavailable = errors.New("language not available for this problem")
	ErrInvalidTransition   = errors.New("invalid mentor transition")
	ErrEmptyPrompt         = errors.New("prompt is empty")
	ErrDragNotActive       = errors.New("no drag in progress")
	ErrClosed              = errors.New("workspace closed")
	ErrMissingCollaborator = errors.New("executor and hinter are required")
)

// User-facing messages for failures that must not leak transport details.
const (
	TransportErrorMessage = "Could not connect to the server. Make sure your backend is running."
	OfflineMessage        = "AI Assistant is currently offline."
	EmptyResultMessage    = "Execution service returned no result."
)
