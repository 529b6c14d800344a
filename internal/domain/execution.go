package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionRequest is the payload sent to the execution service.
type ExecutionRequest struct {
	SourceCode  string     `json:"sourceCode"`
	Language    LanguageID `json:"language"`
	ProblemSlug string     `json:"problemSlug"`
}

// ExecutionResult is the execution service's answer. Fields pass through
// from the upstream runtime without reinterpretation.
type ExecutionResult struct {
	Output         string  `json:"output"`
	CPUTimeSeconds float64 `json:"cpuTimeSeconds"`
	MemoryKb       float64 `json:"memoryKb"`
}

// SubmissionStatus records how an execution ended.
type SubmissionStatus string

const (
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionFailed   SubmissionStatus = "failed"
)

// Submission is a persisted execution attempt by an authenticated user.
type Submission struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"userId"`
	ProblemSlug    string           `json:"problemSlug"`
	Language       LanguageID       `json:"language"`
	SourceCode     string           `json:"sourceCode"`
	Status         SubmissionStatus `json:"status"`
	Output         string           `json:"output"`
	CPUTimeSeconds float64          `json:"cpuTimeSeconds"`
	MemoryKb       float64          `json:"memoryKb"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// NewSubmission builds a submission from a request and its outcome.
func NewSubmission(userID uuid.UUID, req ExecutionRequest, result *ExecutionResult, execErr error) *Submission {
	s := &Submission{
		ID:          uuid.New(),
		UserID:      userID,
		ProblemSlug: req.ProblemSlug,
		Language:    req.Language,
		SourceCode:  req.SourceCode,
		Status:      SubmissionAccepted,
		CreatedAt:   time.Now(),
	}
	if execErr != nil {
		s.Status = SubmissionFailed
		s.Output = execErr.Error()
		return s
	}
	if result != nil {
		s.Output = result.Output
		s.CPUTimeSeconds = result.CPUTimeSeconds
		s.MemoryKb = result.MemoryKb
	}
	return s
}
