package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores,
// services and the workspace to communicate domain-specific conditions.
// -----------------------------------------------------------------------------

// Problem errors
var (
	ErrProblemNotFound = errors.New("problem not found")
	ErrNoSnippets      = errors.New("problem has no code snippets")
)

// Language errors
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// User errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidPassword   = errors.New("invalid password")
)

// Session errors (auth sessions)
var (
	ErrAuthSessionNotFound = errors.New("auth session not found")
	ErrAuthSessionExpired  = errors.New("auth session expired")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// ServiceError is an error reported by a remote collaborator (execution or
// hint service) as opposed to a failure to reach it. Its message is safe to
// show to the user.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a ServiceError with the given HTTP-like status.
func NewServiceError(status int, message string) *ServiceError {
	return &ServiceError{Status: status, Message: message}
}

// IsServiceError reports whether err carries a collaborator-reported message.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
