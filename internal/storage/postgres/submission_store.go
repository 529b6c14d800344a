package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/codedojo/internal/auth"
	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/problem"
	"github.com/felixgeelhaar/codedojo/internal/runner"
)

// SubmissionStore records execution attempts on PostgreSQL.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

// NewSubmissionStore creates a submission store.
func NewSubmissionStore(db *DB) *SubmissionStore {
	return &SubmissionStore{pool: db.Pool}
}

// CreateSubmission inserts a submission. The first accepted submission for a
// problem adds the problem's points to the user's rank score.
func (s *SubmissionStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	firstSolve := false
	if sub.Status == domain.SubmissionAccepted {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM submissions
				WHERE user_id = $1 AND problem_slug = $2 AND status = $3)`,
			sub.UserID, sub.ProblemSlug, string(domain.SubmissionAccepted),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check solved: %w", err)
		}
		firstSolve = !exists
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO submissions (id, user_id, problem_slug, language, source_code, status,
			output, cpu_time_seconds, memory_kb, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.UserID, sub.ProblemSlug, string(sub.Language), sub.SourceCode,
		string(sub.Status), sub.Output, sub.CPUTimeSeconds, sub.MemoryKb, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	if firstSolve {
		var difficulty string
		err := tx.QueryRow(ctx, `SELECT difficulty FROM problems WHERE slug = $1`, sub.ProblemSlug).Scan(&difficulty)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get difficulty: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE users SET rank_score = rank_score + $1, updated_at = NOW() WHERE id = $2`,
			domain.Difficulty(difficulty).Points(), sub.UserID)
		if err != nil {
			return fmt.Errorf("update rank: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SolvedProblems returns the distinct problems the user has an accepted
// submission for, most recently solved first.
func (s *SubmissionStore) SolvedProblems(ctx context.Context, userID uuid.UUID) ([]domain.SolvedProblem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT problem_slug, language, created_at FROM (
			SELECT DISTINCT ON (problem_slug) problem_slug, language, created_at
			FROM submissions
			WHERE user_id = $1 AND status = $2
			ORDER BY problem_slug, created_at DESC
		) latest
		ORDER BY created_at DESC`,
		userID, string(domain.SubmissionAccepted))
	if err != nil {
		return nil, fmt.Errorf("query solved: %w", err)
	}
	defer rows.Close()

	out := []domain.SolvedProblem{}
	for rows.Next() {
		var sp domain.SolvedProblem
		if err := rows.Scan(&sp.ProblemSlug, &sp.Language, &sp.SolvedAt); err != nil {
			return nil, fmt.Errorf("scan solved: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// AuthRepository combines the stores the auth service needs.
type AuthRepository struct {
	*UserStore
	*SubmissionStore
}

// NewAuthRepository creates the auth repository over db.
func NewAuthRepository(db *DB) *AuthRepository {
	return &AuthRepository{UserStore: NewUserStore(db), SubmissionStore: NewSubmissionStore(db)}
}

var (
	_ problem.Store          = (*ProblemStore)(nil)
	_ auth.Repository        = (*AuthRepository)(nil)
	_ runner.SubmissionStore = (*SubmissionStore)(nil)
)
