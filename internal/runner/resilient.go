package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// ResilientConfig configures the resilience wrapper around an executor.
type ResilientConfig struct {
	MaxAttempts       int
	InitialRetryDelay time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	OpenTimeout      time.Duration
	Logger           *slog.Logger
}

// DefaultResilientConfig returns defaults for remote execution backends.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:       2,
		InitialRetryDelay: 500 * time.Millisecond,
		FailureThreshold:  5,
		OpenTimeout:       30 * time.Second,
	}
}

// Resilient retries transient backend failures and stops calling a backend
// that keeps failing.
type Resilient struct {
	executor       Executor
	circuitBreaker circuitbreaker.CircuitBreaker[*domain.ExecutionResult]
	retrier        retry.Retry[*domain.ExecutionResult]
}

// NewResilient wraps executor.
func NewResilient(executor Executor, cfg ResilientConfig) *Resilient {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.InitialRetryDelay <= 0 {
		cfg.InitialRetryDelay = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger := cfg.Logger

	return &Resilient{
		executor: executor,
		circuitBreaker: circuitbreaker.New[*domain.ExecutionResult](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= cfg.FailureThreshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("execution circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		}),
		retrier: retry.New[*domain.ExecutionResult](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialRetryDelay,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isTransient,
		}),
	}
}

// Execute runs the request through the breaker and retrier.
func (r *Resilient) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	if !req.Language.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, req.Language)
	}
	return r.circuitBreaker.Execute(ctx, func(ctx context.Context) (*domain.ExecutionResult, error) {
		return r.retrier.Do(ctx, func(ctx context.Context) (*domain.ExecutionResult, error) {
			return r.executor.Execute(ctx, req)
		})
	})
}

var transientStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// isTransient reports whether a retry might succeed.
func isTransient(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return transientStatus[upstream.Status]
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
