package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/config"
	"github.com/felixgeelhaar/codedojo/internal/metrics"
	"github.com/felixgeelhaar/codedojo/internal/queue"
	"github.com/felixgeelhaar/codedojo/internal/runner"
	"github.com/felixgeelhaar/codedojo/internal/storage"
)

// newBackend builds the executor selected by runner.backend. The returned
// func releases whatever the backend holds open.
func newBackend(ctx context.Context, cfg *config.LocalConfig, logger *slog.Logger) (runner.Executor, func(), error) {
	rc := cfg.Runner
	timeout := time.Duration(rc.TimeoutSeconds) * time.Second

	switch rc.Backend {
	case "jdoodle":
		if rc.JDoodle.ClientID == "" || rc.JDoodle.ClientSecret == "" {
			logger.Warn("jdoodle credentials missing, runs will fail until JDOODLE_CLIENT_ID and JDOODLE_CLIENT_SECRET are set")
		}
		exec := runner.NewJDoodleExecutor(runner.JDoodleConfig{
			Endpoint:     rc.JDoodle.Endpoint,
			ClientID:     rc.JDoodle.ClientID,
			ClientSecret: rc.JDoodle.ClientSecret,
			Timeout:      timeout,
		})
		return resilient(exec, rc, logger), func() {}, nil

	case "docker":
		exec, err := runner.NewDockerExecutor(runner.DockerConfig{
			MemoryMB:   rc.Docker.MemoryMB,
			CPULimit:   rc.Docker.CPULimit,
			NetworkOff: rc.Docker.NetworkOff,
			Timeout:    time.Duration(rc.Docker.TimeoutSeconds) * time.Second,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return exec, func() { _ = exec.Close() }, nil

	case "queue":
		conn, err := queue.NewConnectionWithLogger(rc.Queue.URL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		results := queue.NewResultConsumer(conn)
		if err := results.Start(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("start result consumer: %w", err)
		}
		exec := queue.NewExecutor(queue.NewProducer(conn), results, timeout)
		logger.Info("dispatching runs to queue workers")
		return resilient(exec, rc, logger), func() {
			results.Stop()
			_ = conn.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown runner backend %q", rc.Backend)
	}
}

func resilient(exec runner.Executor, rc config.RunnerConfig, logger *slog.Logger) runner.Executor {
	cfg := runner.DefaultResilientConfig()
	if rc.Resilience.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.Resilience.MaxAttempts
	}
	if rc.Resilience.FailureThreshold > 0 {
		cfg.FailureThreshold = rc.Resilience.FailureThreshold
	}
	cfg.Logger = logger
	return runner.NewResilient(exec, cfg)
}

func newRunnerService(cfg *config.LocalConfig, exec runner.Executor, stores *storage.Stores, rec *metrics.Recorder, logger *slog.Logger) *runner.Service {
	opts := []runner.Option{
		runner.WithSubmissionStore(stores.Submissions),
		runner.WithLogger(logger),
	}
	if rec != nil {
		opts = append(opts, runner.WithRecorder(rec))
	}
	return runner.NewService(runner.Config{
		Timeout: time.Duration(cfg.Runner.TimeoutSeconds) * time.Second,
	}, exec, opts...)
}
