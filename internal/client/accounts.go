package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/storage/local"
)

// Account is the public view of a user returned by the server.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RankScore int       `json:"rankScore"`
	CreatedAt time.Time `json:"createdAt"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) (*Account, error) {
	var out struct {
		User Account `json:"user"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/register",
		body: map[string]string{
			"username": username,
			"email":    email,
			"password": password,
		},
		out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login authenticates and saves the session token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Account, error) {
	var out struct {
		User      Account   `json:"user"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"email": email, "password": password},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &TransportError{Op: "POST /api/login", Err: errors.New("response carried no token")}
	}

	if c.creds != nil {
		err := c.creds.Save(&local.Credentials{
			ServerURL: c.baseURL,
			Token:     out.Token,
			Username:  out.User.Username,
			ExpiresAt: out.ExpiresAt,
		})
		if err != nil {
			return nil, fmt.Errorf("save credentials: %w", err)
		}
	}
	return &out.User, nil
}

// Logout ends the server session and forgets the saved token. The local
// token is removed even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	if c.token() == "" {
		return ErrNotLoggedIn
	}
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/logout"})
	if c.creds != nil {
		if derr := c.creds.Delete(c.baseURL); derr != nil {
			return fmt.Errorf("delete credentials: %w", derr)
		}
	}
	return err
}

// Authorized reports whether a non-expired login is saved for the server.
func (c *Client) Authorized() bool {
	return c.token() != ""
}

// Me returns the logged-in account.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	if c.token() == "" {
		return nil, ErrNotLoggedIn
	}
	var out struct {
		User Account `json:"user"`
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/me", out: &out, idempotent: true})
	if statusOf(err) == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Profile returns rank and solved problems of the logged-in account.
func (c *Client) Profile(ctx context.Context) (*domain.Profile, error) {
	if c.token() == "" {
		return nil, ErrNotLoggedIn
	}
	var out domain.Profile
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/profile", out: &out, idempotent: true})
	if statusOf(err) == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
