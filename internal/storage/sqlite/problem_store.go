package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// ProblemStore implements the problem catalogue backed by SQLite.
type ProblemStore struct {
	db *DB
}

// NewProblemStore creates a new SQLite-backed problem store.
func NewProblemStore(db *DB) *ProblemStore {
	return &ProblemStore{db: db}
}

// ListProblems returns summaries ordered by ID.
func (s *ProblemStore) ListProblems(ctx context.Context) ([]domain.ProblemSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, difficulty, topics
		FROM problems ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()

	out := []domain.ProblemSummary{}
	for rows.Next() {
		var (
			p      domain.ProblemSummary
			topics string
		)
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Difficulty, &topics); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &p.Topics); err != nil {
			return nil, fmt.Errorf("unmarshal topics for %s: %w", p.Slug, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProblem retrieves a problem by slug.
func (s *ProblemStore) GetProblem(ctx context.Context, slug string) (*domain.Problem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, difficulty, description, topics, examples, code_snippets
		FROM problems WHERE slug = ?`, slug)

	var (
		p                          domain.Problem
		topics, examples, snippets string
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Difficulty, &p.Description, &topics, &examples, &snippets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProblemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get problem: %w", err)
	}

	if err := json.Unmarshal([]byte(topics), &p.Topics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	if err := json.Unmarshal([]byte(examples), &p.Examples); err != nil {
		return nil, fmt.Errorf("unmarshal examples: %w", err)
	}
	if err := json.Unmarshal([]byte(snippets), &p.CodeSnippets); err != nil {
		return nil, fmt.Errorf("unmarshal code_snippets: %w", err)
	}
	return &p, nil
}

// UpsertProblem inserts or updates a problem by slug and sets p.ID.
func (s *ProblemStore) UpsertProblem(ctx context.Context, p *domain.Problem) error {
	if err := p.Validate(); err != nil {
		return err
	}

	topics, err := json.Marshal(nonNilStrings(p.Topics))
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	examples, err := json.Marshal(p.Examples)
	if err != nil {
		return fmt.Errorf("marshal examples: %w", err)
	}
	if p.Examples == nil {
		examples = []byte("[]")
	}
	snippets, err := json.Marshal(p.CodeSnippets)
	if err != nil {
		return fmt.Errorf("marshal code_snippets: %w", err)
	}

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO problems (slug, title, difficulty, description, topics, examples, code_snippets, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title=excluded.title,
			difficulty=excluded.difficulty,
			description=excluded.description,
			topics=excluded.topics,
			examples=excluded.examples,
			code_snippets=excluded.code_snippets,
			updated_at=excluded.updated_at
		RETURNING id`,
		p.Slug, p.Title, string(p.Difficulty), p.Description,
		string(topics), string(examples), string(snippets), now, now,
	)
	if err := row.Scan(&p.ID); err != nil {
		return fmt.Errorf("upsert problem: %w", err)
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
