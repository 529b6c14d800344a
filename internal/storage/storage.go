// Package storage opens the configured database and hands out its stores.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/codedojo/internal/auth"
	"github.com/felixgeelhaar/codedojo/internal/config"
	"github.com/felixgeelhaar/codedojo/internal/problem"
	"github.com/felixgeelhaar/codedojo/internal/runner"
	"github.com/felixgeelhaar/codedojo/internal/storage/postgres"
	"github.com/felixgeelhaar/codedojo/internal/storage/sqlite"
)

// Stores groups the persistence surfaces of one database.
type Stores struct {
	Driver      string
	Problems    problem.Store
	Auth        auth.Repository
	Submissions runner.SubmissionStore

	close func() error
}

// Close releases the database.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the database named by cfg.Store and applies pending
// migrations. dir is the codedojo directory holding the default sqlite file.
func Open(ctx context.Context, cfg *config.LocalConfig, dir string, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Store.Driver {
	case "", "sqlite":
		path := cfg.SQLitePath(dir)
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		db.WithLogger(logger)
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.Info("opened sqlite store", "path", path)
		return &Stores{
			Driver:      "sqlite",
			Problems:    sqlite.NewProblemStore(db),
			Auth:        sqlite.NewAuthRepository(db),
			Submissions: sqlite.NewSubmissionStore(db),
			close:       db.Close,
		}, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Stores{
			Driver:      "postgres",
			Problems:    postgres.NewProblemStore(db),
			Auth:        postgres.NewAuthRepository(db),
			Submissions: postgres.NewSubmissionStore(db),
			close:       db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
