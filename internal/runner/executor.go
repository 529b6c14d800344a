package runner

import (
	"context"
	"errors"
	"strconv"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// Executor runs a program and returns what the runtime reported.
type Executor interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error)
}

// Fixed user-facing messages.
const (
	CredentialsMissingMessage = "Execution service credentials missing."
	ExecutionFailedMessage    = "JDoodle Execution Failed"
	TimeoutMessage            = "Execution timed out."
)

var (
	ErrCredentialsMissing = errors.New("execution credentials missing")
	ErrExecutionFailed    = errors.New("execution failed")
	ErrTimeout            = errors.New("execution timed out")
)

// UpstreamError is a non-2xx answer from a remote execution backend.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return "upstream status " + strconv.Itoa(e.Status)
	}
	return "upstream status " + strconv.Itoa(e.Status) + ": " + e.Body
}

func (e *UpstreamError) Unwrap() error {
	return ErrExecutionFailed
}
