// Package client talks to a codedojo server over its HTTP API. A Client
// serves as the problem source, executor and mentor of a workspace.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/storage/local"
)

// DefaultServerURL is used when no server is configured.
const DefaultServerURL = "http://127.0.0.1:3001"

// ErrNotLoggedIn is returned by calls that need a saved login.
var ErrNotLoggedIn = errors.New("not logged in")

// Config configures a Client.
type Config struct {
	ServerURL string
	Timeout   time.Duration
	// Credentials persists the login token. Nil keeps the client anonymous.
	Credentials *local.CredentialStore
	// MaxAttempts bounds retries of read-only requests.
	MaxAttempts int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client is an HTTP client for the codedojo API.
type Client struct {
	baseURL string
	http    *http.Client
	creds   *local.CredentialStore
	retrier retry.Retry[struct{}]
	logger  *slog.Logger
}

// New creates a client for cfg.ServerURL.
func New(cfg Config) *Client {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		http:    cfg.HTTPClient,
		creds:   cfg.Credentials,
		logger:  cfg.Logger,
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		}),
	}
}

// ServerURL returns the server the client talks to.
func (c *Client) ServerURL() string {
	return c.baseURL
}

// TransportError means the server could not be reached or answered with
// something other than the API's JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func isRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	var se *domain.ServiceError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// errorBody is the API's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// idempotent requests are retried on transient failures
	idempotent bool
}

func (c *Client) do(ctx context.Context, r request) error {
	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	attempt := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, r, payload)
	}
	if r.idempotent {
		_, err := c.retrier.Do(ctx, attempt)
		return err
	}
	_, err := attempt(ctx)
	return err
}

func (c *Client) roundTrip(ctx context.Context, r request, payload []byte) error {
	op := r.method + " " + r.path
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}
		c.logger.Debug("api error", "op", op, "status", resp.StatusCode, "error", eb.Error)
		return domain.NewServiceError(resp.StatusCode, eb.Error)
	}

	if r.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) token() string {
	if c.creds == nil {
		return ""
	}
	creds, err := c.creds.Load(c.baseURL)
	if err != nil {
		return ""
	}
	return creds.Token
}

// statusOf returns the status of a ServiceError, or 0.
func statusOf(err error) int {
	var se *domain.ServiceError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Health checks that the server is up and returns its version.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/health", out: &out, idempotent: true}); err != nil {
		return "", err
	}
	if out.Status != "ok" {
		return "", fmt.Errorf("server status %q", out.Status)
	}
	return out.Version, nil
}
