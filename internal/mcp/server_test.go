package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/workspace"
)

// fakeCatalog serves a fixed set of problems.
type fakeCatalog struct {
	problems map[string]*domain.Problem
}

func (f *fakeCatalog) GetProblem(ctx context.Context, slug string) (*domain.Problem, error) {
	p, ok := f.problems[slug]
	if !ok {
		return nil, domain.ErrProblemNotFound
	}
	return p, nil
}

func (f *fakeCatalog) ListProblems(ctx context.Context, topic, query string) ([]domain.ProblemSummary, error) {
	var out []domain.ProblemSummary
	for _, slug := range []string{"two-sum", "fizz-buzz"} {
		if p, ok := f.problems[slug]; ok && (query == "" || strings.Contains(p.Slug, query)) {
			out = append(out, p.Summary())
		}
	}
	return out, nil
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{problems: map[string]*domain.Problem{
		"two-sum": {
			ID: 1, Slug: "two-sum", Title: "Two Sum", Difficulty: domain.DifficultyEasy,
			Description: "Find two numbers.",
			CodeSnippets: domain.Snippets{
				{Language: domain.LanguagePython3, Code: "def solve():\n    pass\n"},
				{Language: domain.LanguageJavaScript, Code: "function solve() {}\n"},
			},
		},
		"fizz-buzz": {
			ID: 2, Slug: "fizz-buzz", Title: "Fizz Buzz", Difficulty: domain.DifficultyEasy,
			CodeSnippets: domain.Snippets{{Language: domain.LanguageJava, Code: "class Main {}\n"}},
		},
	}}
}

type testEnv struct {
	server     *Server
	authorized atomic.Bool
	prompts    atomic.Int32
	lastRun    atomic.Value // domain.ExecutionRequest
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}
	env.authorized.Store(true)

	ws, err := workspace.New(workspace.Options{
		Executor: workspace.ExecutorFunc(func(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
			env.lastRun.Store(req)
			return &domain.ExecutionResult{Output: "ran " + string(req.Language), CPUTimeSeconds: 0.01, MemoryKb: 2048}, nil
		}),
		Hinter: workspace.HinterFunc(func(ctx context.Context, req domain.HintRequest) (*domain.Hint, error) {
			if req.CustomPrompt != "" {
				return &domain.Hint{Suggestion: "About " + req.CustomPrompt}, nil
			}
			return &domain.Hint{Suggestion: "Consider a hash map."}, nil
		}),
		Authorizer:   workspace.AuthorizerFunc(env.authorized.Load),
		AuthPrompter: workspace.AuthPrompterFunc(func() { env.prompts.Add(1) }),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("workspace.New() error = %v", err)
	}
	t.Cleanup(ws.Close)

	env.server = NewServer(Config{Workspace: ws, Catalog: newCatalog(), Version: "test"})
	return env
}

func TestNewServer(t *testing.T) {
	env := setupTestServer(t)
	if env.server.GetMCPServer() == nil {
		t.Fatal("expected non-nil underlying MCP server")
	}
}

func TestListProblems(t *testing.T) {
	env := setupTestServer(t)

	out, err := env.server.handleListProblems(context.Background(), ListProblemsInput{Query: "fizz"})
	if err != nil {
		t.Fatalf("list_problems error = %v", err)
	}
	if len(out.Problems) != 1 || out.Problems[0].Slug != "fizz-buzz" {
		t.Errorf("problems = %+v", out.Problems)
	}
}

func TestOpenEditRun(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, err := env.server.handleRun(ctx, WaitInput{}); !errors.Is(err, workspace.ErrNoProblem) {
		t.Fatalf("run before open error = %v; want ErrNoProblem", err)
	}

	out, err := env.server.handleOpenProblem(ctx, OpenProblemInput{Slug: "two-sum"})
	if err != nil {
		t.Fatalf("open_problem error = %v", err)
	}
	if out.View.ActiveLanguage != domain.LanguagePython3 || out.View.Problem.Title != "Two Sum" {
		t.Errorf("view after open = %+v", out.View)
	}

	code := "def solve():\n    return 42\n"
	out, err = env.server.handleEditCode(ctx, EditCodeInput{Code: &code})
	if err != nil {
		t.Fatalf("edit_code error = %v", err)
	}
	if !out.View.Modified || out.View.Code != code {
		t.Errorf("view after edit: modified=%v code=%q", out.View.Modified, out.View.Code)
	}

	out, err = env.server.handleRun(ctx, WaitInput{})
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if out.View.Execution.Status != workspace.ExecutionSuccess || out.View.Execution.Output != "ran python3" {
		t.Errorf("execution view = %+v", out.View.Execution)
	}
	req := env.lastRun.Load().(domain.ExecutionRequest)
	if req.SourceCode != code || req.ProblemSlug != "two-sum" {
		t.Errorf("run request = %+v", req)
	}

	// switching away and back keeps the edit
	if _, err := env.server.handleSelectLanguage(ctx, SelectLanguageInput{Language: "javascript"}); err != nil {
		t.Fatalf("select_language error = %v", err)
	}
	out, _ = env.server.handleSelectLanguage(ctx, SelectLanguageInput{Language: "python3"})
	if out.View.Code != code {
		t.Errorf("code after language round trip = %q", out.View.Code)
	}

	if _, err := env.server.handleSelectLanguage(ctx, SelectLanguageInput{Language: "java"}); !errors.Is(err, workspace.ErrLanguageUnavailable) {
		t.Errorf("select unavailable language error = %v", err)
	}
}

func TestOpenProblem_NotFound(t *testing.T) {
	env := setupTestServer(t)

	_, err := env.server.handleOpenProblem(context.Background(), OpenProblemInput{Slug: "missing"})
	if !errors.Is(err, domain.ErrProblemNotFound) {
		t.Errorf("error = %v; want ErrProblemNotFound", err)
	}
	state, _ := env.server.handleState(context.Background(), StateInput{})
	if state.View.Problem != nil {
		t.Error("failed open changed the workspace")
	}
}

func TestMentorFlow(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	if _, err := env.server.handleOpenProblem(ctx, OpenProblemInput{Slug: "two-sum"}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.server.handleMentorSend(ctx, MentorSendInput{}); !errors.Is(err, workspace.ErrInvalidTransition) {
		t.Errorf("send while closed error = %v; want ErrInvalidTransition", err)
	}

	out, err := env.server.handleMentorOpen(ctx, StateInput{})
	if err != nil {
		t.Fatalf("mentor_open error = %v", err)
	}
	if out.View.Mentor.Status != workspace.MentorAsking {
		t.Errorf("status = %s; want asking", out.View.Mentor.Status)
	}

	out, err = env.server.handleMentorDecline(ctx, WaitInput{})
	if err != nil {
		t.Fatalf("mentor_decline error = %v", err)
	}
	if out.View.Mentor.Status != workspace.MentorResult || out.View.Mentor.Suggestion != "Consider a hash map." {
		t.Errorf("mentor view = %+v", out.View.Mentor)
	}

	if _, err := env.server.handleMentorAskAnother(ctx, StateInput{}); err != nil {
		t.Fatalf("mentor_ask_another error = %v", err)
	}
	out, err = env.server.handleMentorCustom(ctx, MentorCustomInput{Prompt: "why is it slow?"})
	if err != nil {
		t.Fatalf("mentor_custom error = %v", err)
	}
	if out.View.Mentor.Status != workspace.MentorTyping || !out.View.Mentor.CanSend {
		t.Errorf("mentor view = %+v", out.View.Mentor)
	}

	out, err = env.server.handleMentorSend(ctx, MentorSendInput{})
	if err != nil {
		t.Fatalf("mentor_send error = %v", err)
	}
	if out.View.Mentor.Suggestion != "About why is it slow?" {
		t.Errorf("suggestion = %q", out.View.Mentor.Suggestion)
	}

	out, err = env.server.handleMentorClose(ctx, StateInput{})
	if err != nil {
		t.Fatalf("mentor_close error = %v", err)
	}
	if out.View.Mentor.Status != workspace.MentorClosed {
		t.Errorf("status = %s; want closed", out.View.Mentor.Status)
	}
}

func TestMentorBack(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	_, _ = env.server.handleOpenProblem(ctx, OpenProblemInput{Slug: "two-sum"})
	_, _ = env.server.handleMentorOpen(ctx, StateInput{})
	_, _ = env.server.handleMentorCustom(ctx, MentorCustomInput{})

	out, err := env.server.handleMentorBack(ctx, StateInput{})
	if err != nil {
		t.Fatalf("mentor_back error = %v", err)
	}
	if out.View.Mentor.Status != workspace.MentorAsking {
		t.Errorf("status = %s; want asking", out.View.Mentor.Status)
	}
}

func TestProtectedActionsNeedLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	if _, err := env.server.handleOpenProblem(ctx, OpenProblemInput{Slug: "two-sum"}); err != nil {
		t.Fatal(err)
	}
	env.authorized.Store(false)

	_, err := env.server.handleRun(ctx, WaitInput{})
	if !errors.Is(err, workspace.ErrAuthRequired) {
		t.Fatalf("run error = %v; want ErrAuthRequired", err)
	}
	if !strings.Contains(err.Error(), LoginHint) {
		t.Errorf("error %q does not mention how to log in", err)
	}
	if _, err := env.server.handleMentorOpen(ctx, StateInput{}); !errors.Is(err, workspace.ErrAuthRequired) {
		t.Errorf("mentor_open error = %v; want ErrAuthRequired", err)
	}
	if n := env.prompts.Load(); n != 2 {
		t.Errorf("auth prompts = %d; want 2", n)
	}
}

func TestResizeAndToggle(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		target string
		value  float64
		want   float64
	}{
		{"outer", 10, 20},
		{"outer", 50, 50},
		{"inner", 90, 75},
		{"terminal", 1000, 600},
	}
	for _, tt := range tests {
		out, err := env.server.handleResize(ctx, ResizeInput{Target: tt.target, Value: tt.value})
		if err != nil {
			t.Fatalf("resize %s error = %v", tt.target, err)
		}
		if out.Value != tt.want {
			t.Errorf("resize %s to %v = %v; want %v", tt.target, tt.value, out.Value, tt.want)
		}
	}

	if _, err := env.server.handleResize(ctx, ResizeInput{Target: "sidebar", Value: 1}); err == nil {
		t.Error("expected error for unknown target")
	}

	first, _ := env.server.handleToggleTerminal(ctx, StateInput{})
	second, _ := env.server.handleToggleTerminal(ctx, StateInput{})
	if first.Collapsed == second.Collapsed {
		t.Error("toggle_terminal did not flip")
	}
}

func TestRunWaitsOnlyForItsOwnRun(t *testing.T) {
	answer := make(chan struct{})
	ws, err := workspace.New(workspace.Options{
		Executor: workspace.ExecutorFunc(func(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
			return &domain.ExecutionResult{Output: "ok"}, nil
		}),
		Hinter: workspace.HinterFunc(func(ctx context.Context, req domain.HintRequest) (*domain.Hint, error) {
			select {
			case <-answer:
				return &domain.Hint{Suggestion: "late hint"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("workspace.New() error = %v", err)
	}
	t.Cleanup(ws.Close)
	server := NewServer(Config{Workspace: ws, Catalog: newCatalog(), Version: "test"})
	ctx := context.Background()

	if _, err := server.handleOpenProblem(ctx, OpenProblemInput{Slug: "two-sum"}); err != nil {
		t.Fatalf("open_problem error = %v", err)
	}
	if _, err := server.handleMentorOpen(ctx, StateInput{}); err != nil {
		t.Fatalf("mentor_open error = %v", err)
	}
	noWait := false
	if _, err := server.handleMentorDecline(ctx, WaitInput{Wait: &noWait}); err != nil {
		t.Fatalf("mentor_decline error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out, err := server.handleRun(ctx, WaitInput{})
				if err != nil {
					t.Errorf("run error = %v", err)
					return
				}
				if out.View.Execution.Status == workspace.ExecutionIdle {
					t.Errorf("execution idle after run")
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := ws.MentorState().Status; got != workspace.MentorLoading {
		t.Errorf("mentor status = %s; want loading while the hint is unanswered", got)
	}
	close(answer)
	ws.Wait()
	if got := ws.MentorState().Status; got != workspace.MentorResult {
		t.Errorf("mentor status = %s; want result", got)
	}
}
