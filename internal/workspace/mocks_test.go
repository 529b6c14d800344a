package workspace

import (
	"context"
	"runtime"
	"sync"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// mockExecutor records requests and answers either immediately or, when
// gated, once release is called for that call index.
type mockExecutor struct {
	mu       sync.Mutex
	requests []domain.ExecutionRequest
	result   *domain.ExecutionResult
	err      error
	gated    bool
	gates    []chan execAnswer
}

type execAnswer struct {
	result *domain.ExecutionResult
	err    error
}

func (m *mockExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if !m.gated {
		result, err := m.result, m.err
		m.mu.Unlock()
		return result, err
	}
	gate := make(chan execAnswer, 1)
	m.gates = append(m.gates, gate)
	m.mu.Unlock()

	select {
	case a := <-gate:
		return a.result, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockExecutor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockExecutor) request(i int) domain.ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func (m *mockExecutor) release(i int, result *domain.ExecutionResult, err error) {
	m.mu.Lock()
	gate := m.gates[i]
	m.mu.Unlock()
	gate <- execAnswer{result: result, err: err}
}

type mockHinter struct {
	mu       sync.Mutex
	requests []domain.HintRequest
	hint     *domain.Hint
	err      error
	gated    bool
	gates    []chan struct{}
}

func (m *mockHinter) Hint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hint, err := m.hint, m.err
	if !m.gated {
		m.mu.Unlock()
		return hint, err
	}
	gate := make(chan struct{})
	m.gates = append(m.gates, gate)
	m.mu.Unlock()

	select {
	case <-gate:
		return hint, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockHinter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockHinter) last() domain.HintRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func (m *mockHinter) release(i int) {
	m.mu.Lock()
	gate := m.gates[i]
	m.mu.Unlock()
	close(gate)
}

type authState struct {
	mu       sync.Mutex
	loggedIn bool
	prompts  int
}

func (a *authState) Authorized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn
}

func (a *authState) RequestAuthentication() {
	a.mu.Lock()
	a.prompts++
	a.mu.Unlock()
}

func (a *authState) promptCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompts
}

// waitForCalls spins until n calls have been recorded.
func waitForCalls(calls func() int, n int) {
	for calls() < n {
		runtime.Gosched()
	}
}

func twoSum() *domain.Problem {
	return &domain.Problem{
		Slug:        "two-sum",
		Title:       "Two Sum",
		Difficulty:  domain.DifficultyEasy,
		Description: "Return indices of the two numbers that add up to target.",
		Examples: []domain.Example{
			{Ordinal: 1, Text: "Input: nums = [2,7,11,15], target = 9\nOutput: [0,1]"},
		},
		CodeSnippets: domain.Snippets{
			{Language: domain.LanguageJavaScript, Code: "function twoSum(){}"},
			{Language: domain.LanguagePython3, Code: "def two_sum(): pass"},
		},
	}
}

func reverseList() *domain.Problem {
	return &domain.Problem{
		Slug:  "reverse-linked-list",
		Title: "Reverse Linked List",
		CodeSnippets: domain.Snippets{
			{Language: domain.LanguageJava, Code: "class Solution {}"},
			{Language: domain.LanguageCPP, Code: "class Solution {};"},
		},
	}
}

// releaseFor answers the gated call whose source matches code.
func (m *mockExecutor) releaseFor(code string, result *domain.ExecutionResult, err error) {
	m.mu.Lock()
	var gate chan execAnswer
	for i, r := range m.requests {
		if r.SourceCode == code {
			gate = m.gates[i]
		}
	}
	m.mu.Unlock()
	gate <- execAnswer{result: result, err: err}
}
