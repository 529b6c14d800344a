package problem

import (
	"context"
	"sort"
	"sync"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// Store persists the problem catalogue.
type Store interface {
	ListProblems(ctx context.Context) ([]domain.ProblemSummary, error)
	// GetProblem returns domain.ErrProblemNotFound for unknown slugs.
	GetProblem(ctx context.Context, slug string) (*domain.Problem, error)
	UpsertProblem(ctx context.Context, p *domain.Problem) error
}

// MemoryStore keeps problems in memory. It backs the CLI's offline mode and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	problems map[string]*domain.Problem
	nextID   int64
}

// NewMemoryStore creates a store holding problems.
func NewMemoryStore(problems ...*domain.Problem) *MemoryStore {
	s := &MemoryStore{problems: make(map[string]*domain.Problem)}
	for _, p := range problems {
		_ = s.UpsertProblem(context.Background(), p)
	}
	return s
}

// ListProblems returns summaries ordered by ID.
func (s *MemoryStore) ListProblems(ctx context.Context) ([]domain.ProblemSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProblemSummary, 0, len(s.problems))
	for _, p := range s.problems {
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProblem returns a copy of the stored problem.
func (s *MemoryStore) GetProblem(ctx context.Context, slug string) (*domain.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.problems[slug]
	if !ok {
		return nil, domain.ErrProblemNotFound
	}
	cp := *p
	return &cp, nil
}

// UpsertProblem inserts p or replaces the problem with the same slug,
// keeping its ID.
func (s *MemoryStore) UpsertProblem(ctx context.Context, p *domain.Problem) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	if existing, ok := s.problems[p.Slug]; ok {
		cp.ID = existing.ID
	} else {
		s.nextID++
		cp.ID = s.nextID
	}
	s.problems[p.Slug] = &cp
	p.ID = cp.ID
	return nil
}
