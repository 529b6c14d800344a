package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// Config holds runner service configuration
type Config struct {
	Timeout time.Duration
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// SubmissionStore persists execution attempts of signed-in users.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s *domain.Submission) error
}

// Recorder observes executions for metrics.
type Recorder interface {
	ObserveExecution(language, outcome string, d time.Duration)
}

// Execution outcomes reported to the Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
)

// Service validates, executes and records program runs.
type Service struct {
	config      Config
	executor    Executor
	submissions SubmissionStore
	recorder    Recorder
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSubmissionStore records a submission for every signed-in run.
func WithSubmissionStore(store SubmissionStore) Option {
	return func(s *Service) { s.submissions = store }
}

// WithRecorder reports executions to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new runner service
func NewService(cfg Config, executor Executor, opts ...Option) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	s := &Service{
		config:   cfg,
		executor: executor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs req. userID may be uuid.Nil for anonymous runs, which are not
// recorded. Backend failures come back as *domain.ServiceError with a message
// fit for display; an unknown language wraps domain.ErrUnsupportedLanguage.
func (s *Service) Execute(ctx context.Context, userID uuid.UUID, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	if !req.Language.IsValid() {
		s.observe(req.Language, OutcomeRejected, 0)
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, req.Language)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	result, err := s.executor.Execute(execCtx, req)
	elapsed := time.Since(start)

	if err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = ErrTimeout
	}

	s.record(userID, req, result, err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		mapped, outcome := s.classify(err)
		s.observe(req.Language, outcome, elapsed)
		s.logger.Warn("execution failed",
			"language", req.Language,
			"problem", req.ProblemSlug,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return nil, mapped
	}

	s.observe(req.Language, OutcomeOK, elapsed)
	s.logger.Debug("execution completed",
		"language", req.Language,
		"problem", req.ProblemSlug,
		"duration_ms", elapsed.Milliseconds())
	return result, nil
}

func (s *Service) classify(err error) (error, string) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		return err, OutcomeRejected
	case domain.IsServiceError(err):
		return err, OutcomeError
	case errors.Is(err, ErrCredentialsMissing):
		return domain.NewServiceError(http.StatusInternalServerError, CredentialsMissingMessage), OutcomeError
	case errors.Is(err, ErrTimeout):
		return domain.NewServiceError(http.StatusGatewayTimeout, TimeoutMessage), OutcomeTimeout
	default:
		return domain.NewServiceError(http.StatusBadGateway, ExecutionFailedMessage), OutcomeError
	}
}

func (s *Service) record(userID uuid.UUID, req domain.ExecutionRequest, result *domain.ExecutionResult, execErr error) {
	if s.submissions == nil || userID == uuid.Nil || req.ProblemSlug == "" {
		return
	}
	sub := domain.NewSubmission(userID, req, result, execErr)

	// The run context may be cancelled already.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.submissions.CreateSubmission(ctx, sub); err != nil {
		s.logger.Warn("record submission", "user_id", userID, "problem", req.ProblemSlug, "error", err)
	}
}

func (s *Service) observe(lang domain.LanguageID, outcome string, d time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveExecution(string(lang), outcome, d)
	}
}
