package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExtractStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New(`POST "https://api.anthropic.com/v1/messages": 429 Too Many Requests`), 429},
		{errors.New("API error (status 503): overloaded"), 503},
		{errors.New("ollama chat: status: 502"), 502},
		{errors.New("dial tcp: connection refused"), 0},
		{errors.New("listening on :5000"), 0},
	}
	for _, tt := range tests {
		if got := extractStatusCode(tt.err); got != tt.want {
			t.Errorf("extractStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestIsRetryableHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("status 429"), true},
		{errors.New("status 500"), true},
		{errors.New("status 504"), true},
		{errors.New("status 400"), false},
		{errors.New("status 401"), false},
		{errors.New("something else"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isRetryableHTTPError(tt.err); got != tt.want {
			t.Errorf("isRetryableHTTPError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestResilientProvider_PassThrough(t *testing.T) {
	inner := &mockProvider{name: "mock", response: &Response{Content: "hi"}}
	rp := NewResilientProvider(inner, ResilientConfig{})
	defer rp.Close()

	resp, err := rp.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("Content = %q", resp.Content)
	}
	if rp.Name() != "mock" {
		t.Errorf("Name() = %q", rp.Name())
	}
}

func TestResilientProvider_RetriesTransientErrors(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: fmt.Errorf("gemini generate: status 503")}
	rp := NewResilientProvider(inner, ResilientConfig{
		EnableRetry:       true,
		InitialRetryDelay: time.Millisecond,
	})
	defer rp.Close()

	resp, err := rp.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("Content = %q", resp.Content)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestResilientProvider_NoRetryOnClientError(t *testing.T) {
	inner := &flakyProvider{failures: 5, err: errors.New("status 400 bad request")}
	rp := NewResilientProvider(inner, ResilientConfig{
		EnableRetry:       true,
		InitialRetryDelay: time.Millisecond,
	})
	defer rp.Close()

	if _, err := rp.Generate(context.Background(), &Request{}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestResilientProvider_RateLimit(t *testing.T) {
	inner := &mockProvider{name: "mock", response: &Response{Content: "ok"}}
	rp := NewResilientProvider(inner, ResilientConfig{EnableRateLimit: true, RatePerSecond: 1})
	defer rp.Close()

	var limited bool
	for i := 0; i < 10; i++ {
		if _, err := rp.Generate(context.Background(), &Request{}); errors.Is(err, ErrRateLimited) {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected rate limiting within 10 immediate calls")
	}
}

type flakyProvider struct {
	failures int
	err      error
	calls    int
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Response{Content: "recovered"}, nil
}
