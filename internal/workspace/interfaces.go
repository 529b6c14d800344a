package workspace

import (
	"context"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// ProblemSource fetches a problem by slug.
type ProblemSource interface {
	GetProblem(ctx context.Context, slug string) (*domain.Problem, error)
}

// Executor runs source code remotely. Errors of type *domain.ServiceError are
// reported by the service; any other error means it could not be reached.
type Executor interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error)
}

// Hinter asks the AI mentor for a suggestion.
type Hinter interface {
	Hint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error)
}

// Authorizer answers whether the current user may perform protected actions.
type Authorizer interface {
	Authorized() bool
}

// AuthPrompter asks the user to authenticate.
type AuthPrompter interface {
	RequestAuthentication()
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	return f(ctx, req)
}

// HinterFunc adapts a function to Hinter.
type HinterFunc func(ctx context.Context, req domain.HintRequest) (*domain.Hint, error)

func (f HinterFunc) Hint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error) {
	return f(ctx, req)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func() bool

func (f AuthorizerFunc) Authorized() bool { return f() }

// AuthPrompterFunc adapts a function to AuthPrompter.
type AuthPrompterFunc func()

func (f AuthPrompterFunc) RequestAuthentication() { f() }

// AlwaysAuthorized is used when the workspace runs without an identity layer.
var AlwaysAuthorized Authorizer = AuthorizerFunc(func() bool { return true })

type noopPrompter struct{}

func (noopPrompter) RequestAuthentication() {}
