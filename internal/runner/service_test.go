package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

type memSubmissions struct {
	mu   sync.Mutex
	subs []*domain.Submission
	err  error
}

func (m *memSubmissions) CreateSubmission(ctx context.Context, s *domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.subs = append(m.subs, s)
	return nil
}

type observation struct {
	language, outcome string
}

type fakeRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeRecorder) ObserveExecution(language, outcome string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, observation{language, outcome})
}

type blockingExecutor struct{}

func (blockingExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Execute(t *testing.T) {
	inner := &scriptedExecutor{result: &domain.ExecutionResult{Output: "[0,1]\n", CPUTimeSeconds: 0.02, MemoryKb: 7000}}
	subs := &memSubmissions{}
	rec := &fakeRecorder{}
	svc := NewService(DefaultConfig(), inner,
		WithSubmissionStore(subs), WithRecorder(rec), WithLogger(quietLogger()))

	userID := uuid.New()
	req := domain.ExecutionRequest{SourceCode: "code", Language: domain.LanguageJavaScript, ProblemSlug: "two-sum"}
	result, err := svc.Execute(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Output != "[0,1]\n" || result.MemoryKb != 7000 {
		t.Errorf("result = %+v", result)
	}

	if len(subs.subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs.subs))
	}
	sub := subs.subs[0]
	if sub.UserID != userID || sub.ProblemSlug != "two-sum" || sub.Status != domain.SubmissionAccepted {
		t.Errorf("submission = %+v", sub)
	}
	if len(rec.obs) != 1 || rec.obs[0] != (observation{"javascript", OutcomeOK}) {
		t.Errorf("observations = %+v", rec.obs)
	}
}

func TestService_Execute_AnonymousNotRecorded(t *testing.T) {
	subs := &memSubmissions{}
	svc := NewService(DefaultConfig(), &scriptedExecutor{}, WithSubmissionStore(subs), WithLogger(quietLogger()))

	_, err := svc.Execute(context.Background(), uuid.Nil, domain.ExecutionRequest{Language: domain.LanguageJava, ProblemSlug: "p"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(subs.subs) != 0 {
		t.Errorf("anonymous run recorded %d submissions", len(subs.subs))
	}
}

func TestService_Execute_UnsupportedLanguage(t *testing.T) {
	inner := &scriptedExecutor{}
	rec := &fakeRecorder{}
	svc := NewService(DefaultConfig(), inner, WithRecorder(rec), WithLogger(quietLogger()))

	_, err := svc.Execute(context.Background(), uuid.New(), domain.ExecutionRequest{Language: "brainfuck"})
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Errorf("error = %v, want ErrUnsupportedLanguage", err)
	}
	if inner.callCount() != 0 {
		t.Error("executor should not be called")
	}
	if len(rec.obs) != 1 || rec.obs[0].outcome != OutcomeRejected {
		t.Errorf("observations = %+v", rec.obs)
	}
}

func TestService_Execute_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"credentials", ErrCredentialsMissing, http.StatusInternalServerError, CredentialsMissingMessage},
		{"upstream", &UpstreamError{Status: 500}, http.StatusBadGateway, ExecutionFailedMessage},
		{"transport", errors.New("dial tcp: connection refused"), http.StatusBadGateway, ExecutionFailedMessage},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout, TimeoutMessage},
		{"service error passes through", domain.NewServiceError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests, "slow down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &memSubmissions{}
			svc := NewService(DefaultConfig(), &scriptedExecutor{errs: []error{tt.err}},
				WithSubmissionStore(subs), WithLogger(quietLogger()))

			_, err := svc.Execute(context.Background(), uuid.New(),
				domain.ExecutionRequest{Language: domain.LanguageCPP, ProblemSlug: "p"})
			var se *domain.ServiceError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *domain.ServiceError", err)
			}
			if se.Status != tt.wantStatus || se.Message != tt.wantMessage {
				t.Errorf("got %d %q, want %d %q", se.Status, se.Message, tt.wantStatus, tt.wantMessage)
			}
			if len(subs.subs) != 1 || subs.subs[0].Status != domain.SubmissionFailed {
				t.Errorf("failed run should be recorded as failed: %+v", subs.subs)
			}
		})
	}
}

func TestService_Execute_Timeout(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(Config{Timeout: 20 * time.Millisecond}, blockingExecutor{},
		WithRecorder(rec), WithLogger(quietLogger()))

	_, err := svc.Execute(context.Background(), uuid.Nil, domain.ExecutionRequest{Language: domain.LanguagePython3})
	var se *domain.ServiceError
	if !errors.As(err, &se) || se.Message != TimeoutMessage {
		t.Errorf("error = %v, want timeout service error", err)
	}
	if len(rec.obs) != 1 || rec.obs[0].outcome != OutcomeTimeout {
		t.Errorf("observations = %+v", rec.obs)
	}
}

func TestService_Execute_CallerCancelled(t *testing.T) {
	svc := NewService(DefaultConfig(), blockingExecutor{}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Execute(ctx, uuid.Nil, domain.ExecutionRequest{Language: domain.LanguagePython3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestService_Execute_RecordFailureIgnored(t *testing.T) {
	subs := &memSubmissions{err: errors.New("disk full")}
	svc := NewService(DefaultConfig(), &scriptedExecutor{}, WithSubmissionStore(subs), WithLogger(quietLogger()))

	if _, err := svc.Execute(context.Background(), uuid.New(),
		domain.ExecutionRequest{Language: domain.LanguageJavaScript, ProblemSlug: "p"}); err != nil {
		t.Errorf("Execute() error = %v, store failures should not fail the run", err)
	}
}
