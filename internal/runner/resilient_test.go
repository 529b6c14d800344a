package runner

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

type scriptedExecutor struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	result  *domain.ExecutionResult
	lastReq domain.ExecutionRequest
}

func (s *scriptedExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReq = req
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if s.result != nil {
		return s.result, nil
	}
	return &domain.ExecutionResult{Output: "ok"}, nil
}

func (s *scriptedExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:       3,
		InitialRetryDelay: time.Millisecond,
		FailureThreshold:  2,
		OpenTimeout:       time.Minute,
	}
}

func TestResilient_RetriesTransientErrors(t *testing.T) {
	inner := &scriptedExecutor{errs: []error{
		&UpstreamError{Status: http.StatusServiceUnavailable},
	}}
	r := NewResilient(inner, fastResilientConfig())

	result, err := r.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguageJavaScript})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Output != "ok" {
		t.Errorf("Output = %q", result.Output)
	}
	if inner.callCount() != 2 {
		t.Errorf("calls = %d, want 2", inner.callCount())
	}
}

func TestResilient_DoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad request", &UpstreamError{Status: http.StatusBadRequest}},
		{"credentials", ErrCredentialsMissing},
		{"timeout", ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &scriptedExecutor{errs: []error{tt.err, tt.err, tt.err}}
			r := NewResilient(inner, fastResilientConfig())

			_, err := r.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguageJavaScript})
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
			if inner.callCount() != 1 {
				t.Errorf("calls = %d, want 1", inner.callCount())
			}
		})
	}
}

func TestResilient_RejectsUnsupportedLanguage(t *testing.T) {
	inner := &scriptedExecutor{}
	r := NewResilient(inner, fastResilientConfig())

	_, err := r.Execute(context.Background(), domain.ExecutionRequest{Language: "go"})
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Errorf("error = %v, want ErrUnsupportedLanguage", err)
	}
	if inner.callCount() != 0 {
		t.Error("unsupported language should not reach the backend")
	}
}

func TestResilient_OpensCircuit(t *testing.T) {
	failure := &UpstreamError{Status: http.StatusInternalServerError}
	inner := &scriptedExecutor{errs: []error{failure, failure, failure, failure}}
	r := NewResilient(inner, fastResilientConfig())

	for i := 0; i < 2; i++ {
		_, _ = r.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguagePython3})
	}
	before := inner.callCount()

	_, err := r.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguagePython3})
	if err == nil {
		t.Fatal("expected error while circuit is open")
	}
	if inner.callCount() != before {
		t.Errorf("backend called with open circuit: calls %d -> %d", before, inner.callCount())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &UpstreamError{Status: 503}, true},
		{"429", &UpstreamError{Status: 429}, true},
		{"500", &UpstreamError{Status: 500}, false},
		{"401", &UpstreamError{Status: 401}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
