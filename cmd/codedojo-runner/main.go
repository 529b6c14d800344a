// Command codedojo-runner consumes run jobs from RabbitMQ and executes them
// on a local backend, so the API server can hand execution to a pool of
// workers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/config"
	"github.com/felixgeelhaar/codedojo/internal/queue"
	"github.com/felixgeelhaar/codedojo/internal/runner"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("runner error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Runner.Queue.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is not set")
	}

	exec, closeExec, err := newExecutor(cfg.Runner, logger)
	if err != nil {
		return err
	}
	defer closeExec()

	conn, err := queue.NewConnectionWithLogger(cfg.Runner.Queue.URL, logger)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer conn.Close()

	consumer := queue.NewConsumer(conn, queue.ExecutorHandler(exec), queue.ConsumerConfig{
		Workers:  cfg.Runner.Queue.Workers,
		Prefetch: 1,
		Logger:   logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	logger.Info("runner worker started", "backend", cfg.Runner.Queue.Backend, "workers", cfg.Runner.Queue.Workers)

	<-ctx.Done()
	logger.Info("shutting down runner worker")
	consumer.Stop()
	return nil
}

// newExecutor builds the backend workers run jobs on. Queue workers never
// forward to another queue.
func newExecutor(rc config.RunnerConfig, logger *slog.Logger) (runner.Executor, func(), error) {
	switch rc.Queue.Backend {
	case "", "docker":
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
	case "jdoodle":
		exec := runner.NewJDoodleExecutor(runner.JDoodleConfig{
			Endpoint:     rc.JDoodle.Endpoint,
			ClientID:     rc.JDoodle.ClientID,
			ClientSecret: rc.JDoodle.ClientSecret,
			Timeout:      time.Duration(rc.TimeoutSeconds) * time.Second,
		})
		resilientCfg := runner.DefaultResilientConfig()
		resilientCfg.Logger = logger
		return runner.NewResilient(exec, resilientCfg), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown worker backend %q", rc.Queue.Backend)
	}
}
