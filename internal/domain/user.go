package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RankScore    int       `json:"rankScore"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session represents an authenticated session
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SolvedProblem is one distinct problem a user has an accepted submission for.
type SolvedProblem struct {
	ProblemSlug string     `json:"problemSlug"`
	Language    LanguageID `json:"language"`
	SolvedAt    time.Time  `json:"solvedAt"`
}

// Profile is the public view of a user with their solved problems.
type Profile struct {
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	RankScore int             `json:"rankScore"`
	Solved    []SolvedProblem `json:"solved"`
}
