package workspace

import (
	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/layout"
)

// View is the read-only projection a renderer draws from.
type View struct {
	Problem        *ProblemView        `json:"problem,omitempty"`
	Languages      []domain.LanguageID `json:"languages"`
	ActiveLanguage domain.LanguageID   `json:"activeLanguage"`
	Code           string              `json:"code"`
	Modified       bool                `json:"modified"`
	Changes        []LineChange        `json:"changes,omitempty"`
	DiffTruncated  bool                `json:"diffTruncated,omitempty"`
	Layout         layout.State        `json:"layout"`
	Dragging       layout.Target       `json:"dragging,omitempty"`
	Execution      ExecutionView       `json:"execution"`
	Mentor         MentorView          `json:"mentor"`
}

// ProblemView is the statement part of the view.
type ProblemView struct {
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Difficulty  domain.Difficulty `json:"difficulty"`
	Description string            `json:"description"`
	Examples    []domain.Example  `json:"examples,omitempty"`
}

// ExecutionView is the terminal panel content.
type ExecutionView struct {
	Status         ExecutionStatus `json:"status"`
	Output         string          `json:"output,omitempty"`
	CPUTimeSeconds float64         `json:"cpuTimeSeconds,omitempty"`
	MemoryKb       float64         `json:"memoryKb,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// MentorView is the mentor panel content.
type MentorView struct {
	Status     MentorStatus `json:"status"`
	UserPrompt string       `json:"userPrompt,omitempty"`
	LastPrompt string       `json:"lastPrompt,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
	Offline    bool         `json:"offline,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	CanSend    bool         `json:"canSend"`
}

func newExecutionView(s ExecutionState) ExecutionView {
	v := ExecutionView{Status: s.Status, Error: s.Error}
	if s.Result != nil {
		v.Output = s.Result.Output
		v.CPUTimeSeconds = s.Result.CPUTimeSeconds
		v.MemoryKb = s.Result.MemoryKb
	}
	return v
}

func newMentorView(s MentorState) MentorView {
	return MentorView{
		Status:     s.Status,
		UserPrompt: s.UserPrompt,
		LastPrompt: s.LastPrompt,
		Suggestion: s.Suggestion,
		Offline:    s.Offline,
		Detail:     s.Detail,
		CanSend:    canSend(s),
	}
}
