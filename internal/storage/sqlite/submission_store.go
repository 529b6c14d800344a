package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// SubmissionStore records execution attempts backed by SQLite.
type SubmissionStore struct {
	db *DB
}

// NewSubmissionStore creates a new SQLite-backed submission store.
func NewSubmissionStore(db *DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// CreateSubmission inserts a submission. The first accepted submission for a
// problem adds the problem's points to the user's rank score.
func (s *SubmissionStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	firstSolve := false
	if sub.Status == domain.SubmissionAccepted {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM submissions
				WHERE user_id = ? AND problem_slug = ? AND status = ?)`,
			sub.UserID.String(), sub.ProblemSlug, string(domain.SubmissionAccepted),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check solved: %w", err)
		}
		firstSolve = !exists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (id, user_id, problem_slug, language, source_code, status,
			output, cpu_time_seconds, memory_kb, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID.String(), sub.UserID.String(), sub.ProblemSlug, string(sub.Language), sub.SourceCode,
		string(sub.Status), sub.Output, sub.CPUTimeSeconds, sub.MemoryKb, sub.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	if firstSolve {
		var difficulty string
		err := tx.QueryRowContext(ctx, `SELECT difficulty FROM problems WHERE slug = ?`, sub.ProblemSlug).Scan(&difficulty)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("get difficulty: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET rank_score = rank_score + ?, updated_at = ? WHERE id = ?`,
			domain.Difficulty(difficulty).Points(), time.Now().UTC(), sub.UserID.String())
		if err != nil {
			return fmt.Errorf("update rank: %w", err)
		}
	}

	return tx.Commit()
}

// SolvedProblems returns the distinct problems the user has an accepted
// submission for, most recently solved first.
func (s *SubmissionStore) SolvedProblems(ctx context.Context, userID uuid.UUID) ([]domain.SolvedProblem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT problem_slug, language, created_at FROM (
			SELECT problem_slug, language, created_at,
				ROW_NUMBER() OVER (PARTITION BY problem_slug ORDER BY created_at DESC) AS rn
			FROM submissions
			WHERE user_id = ? AND status = ?
		) WHERE rn = 1
		ORDER BY created_at DESC`,
		userID.String(), string(domain.SubmissionAccepted))
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

// ListSubmissions returns the user's most recent submissions for a problem.
func (s *SubmissionStore) ListSubmissions(ctx context.Context, userID uuid.UUID, problemSlug string, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, problem_slug, language, source_code, status, output,
			cpu_time_seconds, memory_kb, created_at
		FROM submissions
		WHERE user_id = ? AND problem_slug = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID.String(), problemSlug, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Submission
	for rows.Next() {
		var (
			sub     domain.Submission
			id, uid string
		)
		if err := rows.Scan(&id, &uid, &sub.ProblemSlug, &sub.Language, &sub.SourceCode, &sub.Status,
			&sub.Output, &sub.CPUTimeSeconds, &sub.MemoryKb, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.ID, _ = uuid.Parse(id)
		sub.UserID, _ = uuid.Parse(uid)
		out = append(out, &sub)
	}
	return out, rows.Err()
}
