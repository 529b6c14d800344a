package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/workspace"
)

var (
	_ workspace.ProblemSource = (*Client)(nil)
	_ workspace.Executor      = (*Client)(nil)
	_ workspace.Hinter        = (*Client)(nil)
	_ workspace.Authorizer    = (*Client)(nil)
)

// ListProblems returns the catalogue, optionally filtered by topic and a
// title or slug query.
func (c *Client) ListProblems(ctx context.Context, topic, query string) ([]domain.ProblemSummary, error) {
	q := url.Values{}
	if topic != "" {
		q.Set("topic", topic)
	}
	if query != "" {
		q.Set("q", query)
	}
	var out []domain.ProblemSummary
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/problems", query: q, out: &out, idempotent: true})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ProblemSummary{}
	}
	return out, nil
}

// Topics returns the distinct problem topics.
func (c *Client) Topics(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/topics", out: &out, idempotent: true}); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProblem fetches the full problem. A missing slug is reported as
// domain.ErrProblemNotFound.
func (c *Client) GetProblem(ctx context.Context, slug string) (*domain.Problem, error) {
	var p domain.Problem
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/problems/" + url.PathEscape(slug),
		out:        &p,
		idempotent: true,
	})
	if statusOf(err) == http.StatusNotFound {
		return nil, domain.ErrProblemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Execute runs a program on the server.
func (c *Client) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	var out domain.ExecutionResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/execute", body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Hint asks the server's AI mentor for a suggestion.
func (c *Client) Hint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error) {
	var out domain.Hint
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/ai-help", body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}
