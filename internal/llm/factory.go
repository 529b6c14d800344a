package llm

import (
	"fmt"
	"log/slog"
)

// ProviderSettings describes one configured provider.
type ProviderSettings struct {
	Name   string
	APIKey string
	Model  string
	URL    string
}

// NewProvider builds the SDK-backed provider named by s.Name.
func NewProvider(s ProviderSettings) (Provider, error) {
	switch s.Name {
	case "gemini":
		if s.APIKey == "" {
			return nil, fmt.Errorf("gemini: missing api key")
		}
		return NewGeminiProvider(GeminiConfig{APIKey: s.APIKey, Model: s.Model}), nil
	case "claude":
		if s.APIKey == "" {
			return nil, fmt.Errorf("claude: missing api key")
		}
		return NewClaudeProvider(ClaudeConfig{APIKey: s.APIKey, Model: s.Model, BaseURL: s.URL}), nil
	case "openai":
		if s.APIKey == "" {
			return nil, fmt.Errorf("openai: missing api key")
		}
		return NewOpenAIProvider(OpenAIConfig{APIKey: s.APIKey, Model: s.Model, BaseURL: s.URL}), nil
	case "ollama":
		return NewOllamaProvider(OllamaConfig{URL: s.URL, Model: s.Model})
	default:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, s.Name)
	}
}

// BuildRegistry registers every provider in settings, each wrapped with the
// resilience config, and selects defaultName. Providers that fail to build
// are logged and skipped.
func BuildRegistry(settings []ProviderSettings, defaultName string, rc ResilientConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rc.Logger = logger

	reg := NewRegistry()
	for _, s := range settings {
		p, err := NewProvider(s)
		if err != nil {
			logger.Warn("skipping llm provider", "provider", s.Name, "error", err)
			continue
		}
		reg.Register(s.Name, NewResilientProvider(p, rc))
		logger.Info("registered llm provider", "provider", s.Name)
	}

	if len(reg.List()) == 0 {
		return reg, ErrNoDefaultProvider
	}
	if defaultName == "" {
		defaultName = "auto"
	}
	if err := reg.SetDefault(defaultName); err != nil {
		logger.Warn("default provider unavailable, using first registered", "provider", defaultName)
		_ = reg.SetDefault("auto")
	}
	return reg, nil
}
