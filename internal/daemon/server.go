// Package daemon serves the codedojo HTTP API: problem browsing, code
// execution, AI hints and accounts.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/auth"
	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/problem"
)

// ProblemService is the problem catalogue.
type ProblemService interface {
	List(ctx context.Context, filter problem.Filter) ([]domain.ProblemSummary, error)
	Topics(ctx context.Context) ([]string, error)
	Get(ctx context.Context, slug string) (*domain.Problem, error)
}

// ExecutionService runs programs. userID is uuid.Nil for anonymous callers.
type ExecutionService interface {
	Execute(ctx context.Context, userID uuid.UUID, req domain.ExecutionRequest) (*domain.ExecutionResult, error)
}

// HintService produces mentor suggestions.
type HintService interface {
	Hint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error)
}

// AuthService manages accounts and login sessions.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*domain.User, *domain.Session, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

// MetricsRecorder observes traffic and serves the scrape endpoint.
type MetricsRecorder interface {
	HTTPObserver
	RateLimitObserver
	Handler() http.Handler
}

// RateLimitConfig bounds the expensive endpoints per client per minute.
type RateLimitConfig struct {
	ExecutePerMinute int
	HintPerMinute    int
	BurstMultiplier  int
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		ExecutePerMinute: 20,
		HintPerMinute:    10,
		BurstMultiplier:  2,
	}
}

// ServerConfig holds the dependencies of a Server.
type ServerConfig struct {
	Addr     string
	Version  string
	Problems ProblemService
	Runner   ExecutionService
	Hints    HintService
	// Auth may be nil, which disables the account endpoints.
	Auth    AuthService
	Metrics MetricsRecorder
	// RateLimit zero values disable limiting for that endpoint.
	RateLimit     RateLimitConfig
	SessionMaxAge time.Duration
	SecureCookie  bool
	Logger        *slog.Logger
}

// Server represents the codedojo HTTP server
type Server struct {
	server  *http.Server
	router  *http.ServeMux
	handler http.Handler
	logger  *slog.Logger
	version string

	problems ProblemService
	runner   ExecutionService
	hints    HintService
	auth     AuthService
	metrics  MetricsRecorder
	rateObs  RateLimitObserver

	executeLimiter ratelimit.RateLimiter
	hintLimiter    ratelimit.RateLimiter

	cookieMaxAge int
	secureCookie bool
}

// NewServer creates a new server
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = auth.DefaultSessionMaxAge
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		router:       http.NewServeMux(),
		logger:       cfg.Logger,
		version:      cfg.Version,
		problems:     cfg.Problems,
		runner:       cfg.Runner,
		hints:        cfg.Hints,
		auth:         cfg.Auth,
		metrics:      cfg.Metrics,
		cookieMaxAge: int(cfg.SessionMaxAge / time.Second),
		secureCookie: cfg.SecureCookie,
	}
	if cfg.Metrics != nil {
		s.rateObs = cfg.Metrics
	}
	s.executeLimiter = newLimiter(cfg.RateLimit.ExecutePerMinute, cfg.RateLimit.BurstMultiplier)
	s.hintLimiter = newLimiter(cfg.RateLimit.HintPerMinute, cfg.RateLimit.BurstMultiplier)

	s.setupRoutes()

	var obs HTTPObserver
	if cfg.Metrics != nil {
		obs = cfg.Metrics
	}
	// logging sits directly on the router so it sees the matched pattern
	s.handler = correlationIDMiddleware(
		recoveryMiddleware(s.logger)(
			s.authMiddleware(
				loggingMiddleware(s.logger, obs)(s.router))))

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func newLimiter(perMinute, burstMultiplier int) ratelimit.RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burstMultiplier <= 0 {
		burstMultiplier = 1
	}
	return ratelimit.New(&ratelimit.Config{
		Rate:     perMinute,
		Burst:    perMinute * burstMultiplier,
		Interval: time.Minute,
	})
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	// Problems
	s.router.HandleFunc("GET /api/problems", s.handleListProblems)
	s.router.HandleFunc("GET /api/topics", s.handleTopics)
	s.router.HandleFunc("GET /api/problems/{slug}", s.handleGetProblem)

	// Execution and hints
	s.router.HandleFunc("POST /api/execute", s.rateLimit(s.executeLimiter, "/api/execute", s.handleExecute))
	s.router.HandleFunc("POST /api/ai-help", s.rateLimit(s.hintLimiter, "/api/ai-help", s.handleHint))

	// Accounts
	s.router.HandleFunc("POST /api/register", s.handleRegister)
	s.router.HandleFunc("POST /api/login", s.handleLogin)
	s.router.HandleFunc("POST /api/logout", s.handleLogout)
	s.router.HandleFunc("GET /api/me", s.handleMe)
	s.router.HandleFunc("GET /api/profile", s.handleProfile)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting codedojo daemon", "addr", s.server.Addr, "version", s.version)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve serves on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	err := s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")
	for _, l := range []ratelimit.RateLimiter{s.executeLimiter, s.hintLimiter} {
		if l != nil {
			_ = l.Close()
		}
	}
	return s.server.Shutdown(ctx)
}

// Helper methods

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Status: status}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
