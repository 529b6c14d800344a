// Package hint produces mentor suggestions for a learner's code through the
// configured LLM provider.
package hint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/llm"
)

var (
	ErrHintUnavailable = errors.New("hint service unavailable")
	ErrInvalidRequest  = errors.New("invalid hint request")
)

// Registry is the part of llm.Registry the service needs.
type Registry interface {
	Default() (llm.Provider, error)
	Get(name string) (llm.Provider, error)
}

// Recorder observes hint outcomes.
type Recorder interface {
	ObserveHint(provider string, err error, d time.Duration)
}

// Service handles hint generation
type Service struct {
	registry Registry
	provider string
	prompter *Prompter
	logger   *slog.Logger
	recorder Recorder
}

// NewService creates a hint service. An empty provider name uses the
// registry default.
func NewService(registry Registry, provider string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		provider: provider,
		prompter: NewPrompter(),
		logger:   logger,
	}
}

// SetRecorder sets the metrics recorder
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Service) resolve() (llm.Provider, error) {
	if s.provider == "" || s.provider == "auto" {
		return s.registry.Default()
	}
	return s.registry.Get(s.provider)
}

// Hint asks the provider for a suggestion on req.
func (s *Service) Hint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error) {
	if strings.TrimSpace(req.ProblemTitle) == "" {
		return nil, fmt.Errorf("%w: missing problem title", ErrInvalidRequest)
	}

	provider, err := s.resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHintUnavailable, err)
	}

	start := time.Now()
	resp, err := provider.Generate(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: s.prompter.BuildPrompt(req)},
		},
		System:      s.prompter.SystemPrompt(),
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if s.recorder != nil {
		s.recorder.ObserveHint(provider.Name(), err, time.Since(start))
	}
	if err != nil {
		s.logger.Error("hint generation failed", "provider", provider.Name(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrHintUnavailable, err)
	}

	suggestion := strings.TrimSpace(resp.Content)
	if suggestion == "" {
		return nil, fmt.Errorf("%w: %v", ErrHintUnavailable, llm.ErrEmptyResponse)
	}

	s.logger.Debug("hint generated",
		"provider", provider.Name(),
		"custom_prompt", req.CustomPrompt != "",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return &domain.Hint{Suggestion: suggestion}, nil
}
