package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

func newJDoodleServer(t *testing.T, status int, body string, got *jdoodleRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJDoodleExecutor_Execute(t *testing.T) {
	var got jdoodleRequest
	srv := newJDoodleServer(t, http.StatusOK,
		`{"output":"hello\n","statusCode":200,"memory":"8192","cpuTime":"0.03"}`, &got)

	e := NewJDoodleExecutor(JDoodleConfig{Endpoint: srv.URL, ClientID: "id", ClientSecret: "secret"})
	result, err := e.Execute(context.Background(), domain.ExecutionRequest{
		SourceCode: "print('hello')",
		Language:   domain.LanguagePython3,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got.Script != "print('hello')" || got.Language != "python3" || got.VersionIndex != "4" {
		t.Errorf("request = %+v", got)
	}
	if got.ClientID != "id" || got.ClientSecret != "secret" {
		t.Errorf("credentials not sent: %+v", got)
	}
	if result.Output != "hello\n" {
		t.Errorf("Output = %q", result.Output)
	}
	if result.CPUTimeSeconds != 0.03 {
		t.Errorf("CPUTimeSeconds = %v, want 0.03", result.CPUTimeSeconds)
	}
	if result.MemoryKb != 8192 {
		t.Errorf("MemoryKb = %v, want 8192", result.MemoryKb)
	}
}

func TestJDoodleExecutor_NumericFormats(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantCPU float64
		wantMem float64
	}{
		{"numbers", `{"output":"","memory":1024,"cpuTime":0.5}`, 0.5, 1024},
		{"nulls", `{"output":"","memory":null,"cpuTime":null}`, 0, 0},
		{"unparseable", `{"output":"","memory":"Unknown","cpuTime":""}`, 0, 0},
		{"missing", `{"output":"x"}`, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newJDoodleServer(t, http.StatusOK, tt.body, nil)
			e := NewJDoodleExecutor(JDoodleConfig{Endpoint: srv.URL, ClientID: "id", ClientSecret: "s"})
			result, err := e.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguageJavaScript})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if result.CPUTimeSeconds != tt.wantCPU || result.MemoryKb != tt.wantMem {
				t.Errorf("got cpu=%v mem=%v, want cpu=%v mem=%v",
					result.CPUTimeSeconds, result.MemoryKb, tt.wantCPU, tt.wantMem)
			}
		})
	}
}

func TestJDoodleExecutor_MissingCredentials(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	e := NewJDoodleExecutor(JDoodleConfig{Endpoint: srv.URL})
	_, err := e.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguageJava})
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("error = %v, want ErrCredentialsMissing", err)
	}
	if called {
		t.Error("no request should be sent without credentials")
	}
}

func TestJDoodleExecutor_UnsupportedLanguage(t *testing.T) {
	e := NewJDoodleExecutor(JDoodleConfig{ClientID: "id", ClientSecret: "s"})
	_, err := e.Execute(context.Background(), domain.ExecutionRequest{Language: "cobol"})
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Errorf("error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestJDoodleExecutor_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, "boom", http.StatusInternalServerError},
		{"daily limit", http.StatusTooManyRequests, `{"error":"Daily limit reached"}`, http.StatusTooManyRequests},
		{"error in 200 body", http.StatusOK, `{"error":"Invalid client"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newJDoodleServer(t, tt.status, tt.body, nil)
			e := NewJDoodleExecutor(JDoodleConfig{Endpoint: srv.URL, ClientID: "id", ClientSecret: "s"})

			_, err := e.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguageCPP})
			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("error = %v, want *UpstreamError", err)
			}
			if upstream.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", upstream.Status, tt.wantStatus)
			}
			if !errors.Is(err, ErrExecutionFailed) {
				t.Error("UpstreamError should unwrap to ErrExecutionFailed")
			}
		})
	}
}

func TestJDoodleExecutor_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := NewJDoodleExecutor(JDoodleConfig{Endpoint: url, ClientID: "id", ClientSecret: "s"})
	_, err := e.Execute(context.Background(), domain.ExecutionRequest{Language: domain.LanguageJavaScript})
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		t.Error("transport failure should not be an UpstreamError")
	}
}
