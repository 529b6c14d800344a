package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/auth"
	"github.com/felixgeelhaar/codedojo/internal/config"
	"github.com/felixgeelhaar/codedojo/internal/daemon"
	"github.com/felixgeelhaar/codedojo/internal/hint"
	"github.com/felixgeelhaar/codedojo/internal/llm"
	"github.com/felixgeelhaar/codedojo/internal/metrics"
	"github.com/felixgeelhaar/codedojo/internal/problem"
	"github.com/felixgeelhaar/codedojo/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFileName = "codedojod.pid"
	logFileName = "codedojod.log"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	dir, err := config.EnsureDir()
	if err != nil {
		return fmt.Errorf("ensure codedojo dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logFile, err := setupLogging(dir, parseLogLevel(cfg.Daemon.LogLevel))
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := storage.Open(ctx, cfg, dir, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer stores.Close()

	problems := problem.NewService(stores.Problems, logger)
	if err := seedCatalogue(ctx, problems, cfg.Daemon.SeedDir); err != nil {
		return fmt.Errorf("seed problems: %w", err)
	}

	sessionMaxAge := time.Duration(cfg.Daemon.SessionMaxAgeHours) * time.Hour
	if sessionMaxAge <= 0 {
		sessionMaxAge = auth.DefaultSessionMaxAge
	}
	authSvc := auth.NewService(stores.Auth, sessionMaxAge, logger)
	go authSvc.RunCleanup(ctx, time.Hour)

	var recorder *metrics.Recorder
	if cfg.Daemon.Metrics {
		recorder = metrics.NewRecorder()
	}

	executor, closeBackend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("runner backend: %w", err)
	}
	defer closeBackend()
	runnerSvc := newRunnerService(cfg, executor, stores, recorder, logger)

	srvCfg := daemon.ServerConfig{
		Addr:     net.JoinHostPort(cfg.Daemon.Bind, strconv.Itoa(cfg.Daemon.Port)),
		Version:  Version,
		Problems: problems,
		Runner:   runnerSvc,
		Auth:     authSvc,
		RateLimit: daemon.RateLimitConfig{
			ExecutePerMinute: cfg.Daemon.RateLimit.ExecutePerMinute,
			HintPerMinute:    cfg.Daemon.RateLimit.HintPerMinute,
			BurstMultiplier:  cfg.Daemon.RateLimit.BurstMultiplier,
		},
		SessionMaxAge: sessionMaxAge,
		SecureCookie:  cfg.Daemon.SecureCookie,
		Logger:        logger,
	}
	if recorder != nil {
		srvCfg.Metrics = recorder
	}

	registry, err := buildRegistry(cfg, logger)
	switch {
	case errors.Is(err, llm.ErrNoDefaultProvider):
		logger.Warn("no llm provider configured, mentor disabled")
	case err != nil:
		return fmt.Errorf("llm providers: %w", err)
	default:
		defer registry.Close()
		hints := hint.NewService(registry, cfg.LLM.DefaultProvider, logger)
		if recorder != nil {
			hints.SetRecorder(recorder)
		}
		srvCfg.Hints = hints
	}

	pidPath := filepath.Join(dir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	server := daemon.NewServer(srvCfg)

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("daemon stopped")
	return nil
}

// seedCatalogue fills an empty catalogue from seedDir, or from the problems
// built into the binary when seedDir is unset.
func seedCatalogue(ctx context.Context, problems *problem.Service, seedDir string) error {
	loader := problem.BuiltinLoader()
	if seedDir != "" {
		loader = problem.NewLoader(seedDir)
	}
	_, err := problems.SeedIfEmpty(ctx, loader)
	return err
}

func buildRegistry(cfg *config.LocalConfig, logger *slog.Logger) (*llm.Registry, error) {
	var settings []llm.ProviderSettings
	for _, name := range cfg.EnabledProviders() {
		p := cfg.LLM.Providers[name]
		settings = append(settings, llm.ProviderSettings{
			Name:   name,
			APIKey: p.APIKey,
			Model:  p.Model,
			URL:    p.URL,
		})
	}
	return llm.BuildRegistry(settings, cfg.LLM.DefaultProvider, llm.DefaultResilientConfig(), logger)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(dir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(dir, "logs", logFileName)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the log file, text to stderr for foreground mode
	slog.SetDefault(slog.New(&multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}))

	return logFile, nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
