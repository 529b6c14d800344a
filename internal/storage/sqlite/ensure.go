package sqlite

import (
	"github.com/felixgeelhaar/codedojo/internal/auth"
	"github.com/felixgeelhaar/codedojo/internal/problem"
	"github.com/felixgeelhaar/codedojo/internal/runner"
)

// AuthRepository combines the stores the auth service needs.
type AuthRepository struct {
	*UserStore
	*SubmissionStore
}

// NewAuthRepository creates the auth repository over db.
func NewAuthRepository(db *DB) *AuthRepository {
	return &AuthRepository{UserStore: NewUserStore(db), SubmissionStore: NewSubmissionStore(db)}
}

// Ensure SQLite stores implement the storage interfaces.
var (
	_ problem.Store          = (*ProblemStore)(nil)
	_ auth.Repository        = (*AuthRepository)(nil)
	_ runner.SubmissionStore = (*SubmissionStore)(nil)
)
