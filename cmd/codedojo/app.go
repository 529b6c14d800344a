package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/client"
	"github.com/felixgeelhaar/codedojo/internal/config"
	"github.com/felixgeelhaar/codedojo/internal/storage/local"
	"github.com/felixgeelhaar/codedojo/internal/workspace"
)

// app is what every CLI command starts from.
type app struct {
	dir    string
	cfg    *config.LocalConfig
	client *client.Client
	logger *slog.Logger
}

func loadApp() (*app, error) {
	dir, err := config.EnsureDir()
	if err != nil {
		return nil, fmt.Errorf("setup codedojo directory: %w", err)
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := local.NewStore(dir)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if cfg.Daemon.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &app{
		dir: dir,
		cfg: cfg,
		client: client.New(client.Config{
			ServerURL:   cfg.Client.ServerURL,
			Timeout:     time.Duration(cfg.Client.TimeoutSeconds) * time.Second,
			Credentials: local.NewCredentialStore(store),
			Logger:      logger,
		}),
		logger: logger,
	}, nil
}

// newWorkspace opens a workspace session backed by the server. Protected
// actions report a login hint on w.
func (a *app) newWorkspace(w io.Writer, onChange func(workspace.View)) (*workspace.Workspace, error) {
	return workspace.New(workspace.Options{
		Executor:   a.client,
		Hinter:     a.client,
		Authorizer: a.client,
		AuthPrompter: workspace.AuthPrompterFunc(func() {
			fmt.Fprintln(w, "You need to log in first: codedojo login")
		}),
		Layout:          a.cfg.Workspace.Layout,
		DefaultLanguage: a.cfg.Workspace.DefaultLanguage,
		Logger:          a.logger,
		OnChange:        onChange,
	})
}
