package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

func hintContext() domain.HintRequest {
	return domain.HintRequest{
		ProblemTitle:       "Two Sum",
		ProblemDescription: "Find two numbers.",
		SourceCode:         "function twoSum(){}",
		Language:           domain.LanguageJavaScript,
	}
}

func TestMentorDialogue_DeclineFlow(t *testing.T) {
	h := &mockHinter{hint: &domain.Hint{Suggestion: "Consider a hash map."}}
	d := NewMentorDialogue(h, discardLogger(), nil)

	if got := d.State().Status; got != MentorClosed {
		t.Fatalf("initial Status = %q, want closed", got)
	}
	if err := d.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := d.State().Status; got != MentorAsking {
		t.Fatalf("Status = %q, want asking", got)
	}
	if err := d.DeclineCustomPrompt(context.Background(), hintContext()); err != nil {
		t.Fatalf("DeclineCustomPrompt() error = %v", err)
	}
	d.Wait()

	st := d.State()
	if st.Status != MentorResult || st.Suggestion != "Consider a hash map." {
		t.Errorf("State = %+v, want result with suggestion", st)
	}
	if h.last().CustomPrompt != "" {
		t.Errorf("CustomPrompt = %q, want empty", h.last().CustomPrompt)
	}

	if err := d.AskAnother(); err != nil {
		t.Fatalf("AskAnother() error = %v", err)
	}
	st = d.State()
	if st.Status != MentorAsking || st.UserPrompt != "" || st.Suggestion != "" {
		t.Errorf("State after AskAnother = %+v", st)
	}
}

func TestMentorDialogue_LoadingWhileInFlight(t *testing.T) {
	h := &mockHinter{gated: true, hint: &domain.Hint{Suggestion: "s"}}
	d := NewMentorDialogue(h, discardLogger(), nil)

	_ = d.Open()
	_ = d.DeclineCustomPrompt(context.Background(), hintContext())
	if got := d.State().Status; got != MentorLoading {
		t.Errorf("Status = %q, want loading", got)
	}
	waitForCalls(h.calls, 1)
	h.release(0)
	d.Wait()
	if got := d.State().Status; got != MentorResult {
		t.Errorf("Status = %q, want result", got)
	}
}

func TestMentorDialogue_CustomPromptFlow(t *testing.T) {
	h := &mockHinter{hint: &domain.Hint{Suggestion: "Check your loop bound..."}}
	d := NewMentorDialogue(h, discardLogger(), nil)

	_ = d.Open()
	if err := d.WantsCustomPrompt(); err != nil {
		t.Fatalf("WantsCustomPrompt() error = %v", err)
	}
	if d.CanSend() {
		t.Error("CanSend() = true with empty prompt")
	}
	if err := d.SendPrompt(context.Background(), hintContext()); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("SendPrompt(empty) error = %v, want ErrEmptyPrompt", err)
	}
	_ = d.SetPrompt("   ")
	if d.CanSend() {
		t.Error("CanSend() = true with blank prompt")
	}
	_ = d.SetPrompt("  why is my loop off by one ")
	if !d.CanSend() {
		t.Error("CanSend() = false with prompt")
	}
	if err := d.SendPrompt(context.Background(), hintContext()); err != nil {
		t.Fatalf("SendPrompt() error = %v", err)
	}
	d.Wait()

	if got := h.last().CustomPrompt; got != "why is my loop off by one" {
		t.Errorf("CustomPrompt = %q", got)
	}
	st := d.State()
	if st.Status != MentorResult || st.Suggestion != "Check your loop bound..." {
		t.Errorf("State = %+v", st)
	}
	if st.UserPrompt != "" {
		t.Errorf("UserPrompt = %q, want cleared", st.UserPrompt)
	}
	if st.LastPrompt != "why is my loop off by one" {
		t.Errorf("LastPrompt = %q", st.LastPrompt)
	}
}

func TestMentorDialogue_BackKeepsDraft(t *testing.T) {
	d := NewMentorDialogue(&mockHinter{}, discardLogger(), nil)
	_ = d.Open()
	_ = d.WantsCustomPrompt()
	_ = d.SetPrompt("draft")

	if err := d.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}
	st := d.State()
	if st.Status != MentorAsking || st.UserPrompt != "draft" {
		t.Errorf("State = %+v", st)
	}
}

func TestMentorDialogue_FailureIsOfflineResult(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantDetail string
	}{
		{"transport", errors.New("connection refused"), ""},
		{"service", domain.NewServiceError(503, "quota exceeded"), "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewMentorDialogue(&mockHinter{err: tt.err}, discardLogger(), nil)
			_ = d.Open()
			_ = d.DeclineCustomPrompt(context.Background(), hintContext())
			d.Wait()

			st := d.State()
			if st.Status != MentorResult || !st.Offline || st.Suggestion != OfflineMessage {
				t.Errorf("State = %+v, want offline result", st)
			}
			if st.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", st.Detail, tt.wantDetail)
			}
			if err := d.AskAnother(); err != nil {
				t.Errorf("AskAnother() after failure error = %v", err)
			}
		})
	}
}

func TestMentorDialogue_InvalidTransitions(t *testing.T) {
	d := NewMentorDialogue(&mockHinter{}, discardLogger(), nil)

	checks := []struct {
		name string
		fn   func() error
	}{
		{"back from closed", d.Back},
		{"ask another from closed", d.AskAnother},
		{"custom prompt from closed", d.WantsCustomPrompt},
		{"set prompt from closed", func() error { return d.SetPrompt("x") }},
		{"decline from closed", func() error { return d.DeclineCustomPrompt(context.Background(), hintContext()) }},
		{"send from closed", func() error { return d.SendPrompt(context.Background(), hintContext()) }},
	}
	for _, c := range checks {
		if err := c.fn(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: error = %v, want ErrInvalidTransition", c.name, err)
		}
	}
	if got := d.State().Status; got != MentorClosed {
		t.Errorf("Status = %q, want closed", got)
	}

	_ = d.Open()
	if err := d.Open(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Open() from asking error = %v, want ErrInvalidTransition", err)
	}
}

func TestMentorDialogue_ResetDiscardsInFlight(t *testing.T) {
	h := &mockHinter{gated: true, hint: &domain.Hint{Suggestion: "late"}}
	d := NewMentorDialogue(h, discardLogger(), nil)

	_ = d.Open()
	_ = d.DeclineCustomPrompt(context.Background(), hintContext())
	waitForCalls(h.calls, 1)
	d.Reset()
	h.release(0)
	d.Wait()

	if st := d.State(); st.Status != MentorClosed || st.Suggestion != "" {
		t.Errorf("State = %+v, want closed and empty", st)
	}
}

func TestMentorDialogue_CloseFromResultThenReopen(t *testing.T) {
	d := NewMentorDialogue(&mockHinter{hint: &domain.Hint{Suggestion: "s"}}, discardLogger(), nil)
	_ = d.Open()
	_ = d.DeclineCustomPrompt(context.Background(), hintContext())
	d.Wait()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d.State().Status != MentorClosed {
		t.Fatalf("Status = %q, want closed", d.State().Status)
	}
	if err := d.Open(); err != nil {
		t.Errorf("Open() after Close error = %v", err)
	}
}

func TestMentorDialogue_PendingTracksLatestRequest(t *testing.T) {
	hinter := &mockHinter{gated: true, hint: &domain.Hint{Suggestion: "hint"}}
	d := NewMentorDialogue(hinter, discardLogger(), nil)

	<-d.Pending()
	_ = d.Open()
	if err := d.DeclineCustomPrompt(context.Background(), domain.HintRequest{}); err != nil {
		t.Fatalf("DeclineCustomPrompt() error = %v", err)
	}
	pending := d.Pending()
	select {
	case <-pending:
		t.Fatal("Pending() closed while the request is in flight")
	default:
	}

	waitForCalls(hinter.calls, 1)
	hinter.release(0)
	<-pending
	if got := d.State().Status; got != MentorResult {
		t.Errorf("Status = %q, want result", got)
	}
}

func TestNewMentorView_CanSendFollowsSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		state MentorState
		want  bool
	}{
		{"typing with prompt", MentorState{Status: MentorTyping, UserPrompt: "why"}, true},
		{"typing blank prompt", MentorState{Status: MentorTyping, UserPrompt: "  "}, false},
		{"loading keeps draft", MentorState{Status: MentorLoading, UserPrompt: "why"}, false},
		{"result", MentorState{Status: MentorResult, Suggestion: "hint"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newMentorView(tt.state)
			if v.CanSend != tt.want {
				t.Errorf("CanSend = %v, want %v", v.CanSend, tt.want)
			}
			if v.Status != tt.state.Status {
				t.Errorf("Status = %q, want %q", v.Status, tt.state.Status)
			}
		})
	}
}
