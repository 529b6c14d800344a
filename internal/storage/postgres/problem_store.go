package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// ProblemStore implements the problem catalogue on PostgreSQL.
type ProblemStore struct {
	db *sql.DB
}

// NewProblemStore creates a problem store.
func NewProblemStore(db *DB) *ProblemStore {
	return &ProblemStore{db: db.SQL}
}

// ListProblems returns summaries ordered by ID.
func (s *ProblemStore) ListProblems(ctx context.Context) ([]domain.ProblemSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, difficulty, topics FROM problems ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()

	out := []domain.ProblemSummary{}
	for rows.Next() {
		var p domain.ProblemSummary
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Difficulty, pq.Array(&p.Topics)); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProblem retrieves a problem by slug.
func (s *ProblemStore) GetProblem(ctx context.Context, slug string) (*domain.Problem, error) {
	var (
		p        domain.Problem
		examples pqtype.NullRawMessage
		snippets []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, difficulty, description, topics, examples, code_snippets
		FROM problems WHERE slug = $1`, slug,
	).Scan(&p.ID, &p.Slug, &p.Title, &p.Difficulty, &p.Description, pq.Array(&p.Topics), &examples, &snippets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProblemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get problem: %w", err)
	}

	if examples.Valid {
		if err := json.Unmarshal(examples.RawMessage, &p.Examples); err != nil {
			return nil, fmt.Errorf("unmarshal examples: %w", err)
		}
	}
	if err := json.Unmarshal(snippets, &p.CodeSnippets); err != nil {
		return nil, fmt.Errorf("unmarshal code_snippets: %w", err)
	}
	return &p, nil
}

// UpsertProblem inserts or updates a problem by slug and sets p.ID.
func (s *ProblemStore) UpsertProblem(ctx context.Context, p *domain.Problem) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var examples pqtype.NullRawMessage
	if len(p.Examples) > 0 {
		data, err := json.Marshal(p.Examples)
		if err != nil {
			return fmt.Errorf("marshal examples: %w", err)
		}
		examples = pqtype.NullRawMessage{RawMessage: data, Valid: true}
	}
	snippets, err := json.Marshal(p.CodeSnippets)
	if err != nil {
		return fmt.Errorf("marshal code_snippets: %w", err)
	}
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO problems (slug, title, difficulty, description, topics, examples, code_snippets)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			difficulty = EXCLUDED.difficulty,
			description = EXCLUDED.description,
			topics = EXCLUDED.topics,
			examples = EXCLUDED.examples,
			code_snippets = EXCLUDED.code_snippets,
			updated_at = NOW()
		RETURNING id`,
		p.Slug, p.Title, string(p.Difficulty), p.Description, pq.Array(topics), examples, string(snippets),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert problem: %w", err)
	}
	return nil
}
