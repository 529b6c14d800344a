package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/layout"
)

// LocalConfig holds the configuration shared by the daemon, the CLI and the
// runner worker.
type LocalConfig struct {
	Daemon    DaemonConfig    `yaml:"daemon"`
	Store     StoreConfig     `yaml:"store"`
	Runner    RunnerConfig    `yaml:"runner"`
	LLM       LLMConfig       `yaml:"llm"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Client    ClientConfig    `yaml:"client"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
	// SessionMaxAgeHours is how long a login stays valid.
	SessionMaxAgeHours int             `yaml:"session_max_age_hours"`
	SecureCookie       bool            `yaml:"secure_cookie"`
	Metrics            bool            `yaml:"metrics"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
	// SeedDir, when set, is loaded into an empty problem catalogue at start.
	SeedDir string `yaml:"seed_dir,omitempty"`
}

// RateLimitConfig bounds the expensive endpoints per client.
type RateLimitConfig struct {
	ExecutePerMinute int `yaml:"execute_per_minute"`
	HintPerMinute    int `yaml:"hint_per_minute"`
	BurstMultiplier  int `yaml:"burst_multiplier"`
}

// StoreConfig selects the database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres
	// Path is the sqlite file; empty means ~/.codedojo/codedojo.db.
	Path string `yaml:"path,omitempty"`
	DSN  string `yaml:"-"` // postgres, from DATABASE_URL
}

// RunnerConfig holds code execution settings
type RunnerConfig struct {
	Backend        string              `yaml:"backend"` // jdoodle, docker, queue
	TimeoutSeconds int                 `yaml:"timeout_seconds"`
	JDoodle        JDoodleRunnerConfig `yaml:"jdoodle"`
	Docker         DockerRunnerConfig  `yaml:"docker"`
	Queue          QueueRunnerConfig   `yaml:"queue"`
	Resilience     ResilienceConfig    `yaml:"resilience"`
}

// JDoodleRunnerConfig holds JDoodle settings. Credentials live in secrets.yaml.
type JDoodleRunnerConfig struct {
	Endpoint     string `yaml:"endpoint"`
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
}

// DockerRunnerConfig holds Docker executor settings
type DockerRunnerConfig struct {
	MemoryMB       int     `yaml:"memory_mb"`
	CPULimit       float64 `yaml:"cpu_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	NetworkOff     bool    `yaml:"network_off"`
}

// QueueRunnerConfig holds RabbitMQ settings for remote workers.
type QueueRunnerConfig struct {
	URL string `yaml:"-"` // from RABBITMQ_URL
	// Workers and Backend configure codedojo-runner.
	Workers int    `yaml:"workers"`
	Backend string `yaml:"backend"` // jdoodle, docker
}

// ResilienceConfig tunes retries and the circuit breaker around the backend.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	FailureThreshold int `yaml:"failure_threshold"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"`
	APIKey  string `yaml:"-"` // Loaded from secrets.yaml
}

// WorkspaceConfig holds the session defaults of the client workspace.
type WorkspaceConfig struct {
	DefaultLanguage domain.LanguageID `yaml:"default_language"`
	Layout          layout.Config     `yaml:"layout"`
}

// ClientConfig tells the CLI which server to use.
type ClientConfig struct {
	ServerURL      string `yaml:"server_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	Providers map[string]ProviderSecret `yaml:"providers,omitempty"`
	JDoodle   JDoodleSecret             `yaml:"jdoodle,omitempty"`
}

// ProviderSecret is the API key of one LLM provider.
type ProviderSecret struct {
	APIKey string `yaml:"api_key"`
}

// JDoodleSecret holds the execution service credentials.
type JDoodleSecret struct {
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
}

// providerOrder fixes registration order, which decides "auto" selection.
var providerOrder = []string{"gemini", "claude", "openai", "ollama"}

// Dir returns the path to ~/.codedojo
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".codedojo"), nil
}

// EnsureDir creates ~/.codedojo and subdirectories if they don't exist
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "problems"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:               3001,
			Bind:               "127.0.0.1",
			LogLevel:           "info",
			SessionMaxAgeHours: 7 * 24,
			Metrics:            true,
			RateLimit: RateLimitConfig{
				ExecutePerMinute: 20,
				HintPerMinute:    10,
				BurstMultiplier:  2,
			},
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Runner: RunnerConfig{
			Backend:        "jdoodle",
			TimeoutSeconds: 30,
			JDoodle: JDoodleRunnerConfig{
				Endpoint: "https://api.jdoodle.com/v1/execute",
			},
			Docker: DockerRunnerConfig{
				MemoryMB:       256,
				CPULimit:       0.5,
				TimeoutSeconds: 15,
				NetworkOff:     true,
			},
			Queue: QueueRunnerConfig{
				Workers: 3,
				Backend: "docker",
			},
			Resilience: ResilienceConfig{
				MaxAttempts:      2,
				FailureThreshold: 5,
			},
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Providers: map[string]*ProviderConfig{
				"gemini": {
					Enabled: true,
					Model:   "gemini-2.5-flash",
				},
				"claude": {
					Enabled: true,
					Model:   "claude-sonnet-4-20250514",
				},
				"openai": {
					Enabled: false,
					Model:   "gpt-4o",
				},
				"ollama": {
					Enabled: false,
					URL:     "http://localhost:11434",
					Model:   "llama3.1",
				},
			},
		},
		Workspace: WorkspaceConfig{
			DefaultLanguage: domain.DefaultLanguage,
			Layout:          layout.DefaultConfig(),
		},
		Client: ClientConfig{
			ServerURL:      "http://127.0.0.1:3001",
			TimeoutSeconds: 60,
		},
	}
}

// Validate reports settings no component could run with.
func (c *LocalConfig) Validate() error {
	var errs []error
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		errs = append(errs, fmt.Errorf("daemon.port %d out of range", c.Daemon.Port))
	}
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.driver postgres needs DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want sqlite or postgres", c.Store.Driver))
	}
	switch c.Runner.Backend {
	case "jdoodle", "docker":
	case "queue":
		if c.Runner.Queue.URL == "" {
			errs = append(errs, errors.New("runner.backend queue needs RABBITMQ_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("runner.backend %q: want jdoodle, docker or queue", c.Runner.Backend))
	}
	if !c.Workspace.DefaultLanguage.IsValid() {
		errs = append(errs, fmt.Errorf("workspace.default_language %q is not supported", c.Workspace.DefaultLanguage))
	}
	if err := c.Workspace.Layout.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("workspace.layout: %w", err))
	}
	return errors.Join(errs...)
}

// EnabledProviders returns the enabled provider names, known providers first
// in a fixed order and any others sorted after them.
func (c *LocalConfig) EnabledProviders() []string {
	var names []string
	seen := make(map[string]bool)
	for _, name := range providerOrder {
		if p, ok := c.LLM.Providers[name]; ok && p.Enabled {
			names = append(names, name)
		}
		seen[name] = true
	}
	var rest []string
	for name, p := range c.LLM.Providers {
		if !seen[name] && p != nil && p.Enabled {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// SQLitePath returns the sqlite database file under dir unless configured.
func (c *LocalConfig) SQLitePath(dir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(dir, "codedojo.db")
}

// LoadLocalConfig loads ~/.codedojo/config.yaml and secrets.yaml, then
// applies environment overrides.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom loads configuration from dir. Missing files mean defaults.
func LoadFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// loadSecrets loads API keys and execution credentials from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}
	cfg.Runner.JDoodle.ClientID = secrets.JDoodle.ClientID
	cfg.Runner.JDoodle.ClientSecret = secrets.JDoodle.ClientSecret
	return nil
}

// SaveLocalConfig saves configuration to ~/.codedojo/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}
	return SaveTo(dir, cfg)
}

// SaveTo writes cfg to dir/config.yaml. Secrets are never written here.
func SaveTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets saves credentials to dir/secrets.yaml, readable by the owner only.
func SaveSecrets(dir string, secrets SecretsConfig) error {
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
