package problem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// Filter narrows a problem listing. Zero values match everything.
type Filter struct {
	// Topic must equal one of the problem's topics.
	Topic string
	// Query is matched case-insensitively against title and slug.
	Query string
}

// Service serves the problem catalogue.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a catalogue service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// List returns the summaries that pass filter, in catalogue order.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.ProblemSummary, error) {
	all, err := s.store.ListProblems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	topic := strings.TrimSpace(filter.Topic)
	out := make([]domain.ProblemSummary, 0, len(all))
	for _, p := range all {
		if topic != "" && !p.HasTopic(topic) {
			continue
		}
		if !p.Matches(filter.Query) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Topics returns the distinct topics across the catalogue, sorted.
func (s *Service) Topics(ctx context.Context) ([]string, error) {
	all, err := s.store.ListProblems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	seen := make(map[string]struct{})
	for _, p := range all {
		for _, t := range p.Topics {
			seen[t] = struct{}{}
		}
	}
	topics := make([]string, 0, len(seen))
	for t := range seen {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics, nil
}

// Get returns the full problem for slug.
func (s *Service) Get(ctx context.Context, slug string) (*domain.Problem, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, domain.ErrProblemNotFound
	}
	p, err := s.store.GetProblem(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrProblemNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get problem %s: %w", slug, err)
	}
	return p, nil
}

// Seed upserts every problem the loader finds and returns how many were
// written.
func (s *Service) Seed(ctx context.Context, loader *Loader) (int, error) {
	problems, err := loader.LoadAll()
	if err != nil {
		return 0, err
	}
	for _, p := range problems {
		if err := s.store.UpsertProblem(ctx, p); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", p.Slug, err)
		}
	}
	s.logger.Info("seeded problems", "count", len(problems), "source", loader.BasePath())
	return len(problems), nil
}

// SeedIfEmpty seeds from loader only when the store has no problems yet.
func (s *Service) SeedIfEmpty(ctx context.Context, loader *Loader) (int, error) {
	existing, err := s.store.ListProblems(ctx)
	if err != nil {
		return 0, fmt.Errorf("list problems: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	return s.Seed(ctx, loader)
}
