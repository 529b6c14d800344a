package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/layout"
)

func TestDir(t *testing.T) {
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if filepath.Base(dir) != ".codedojo" {
		t.Errorf("Dir() = %q, want ending with .codedojo", dir)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("Dir() = %q, want absolute path", dir)
	}
}

func TestEnsureDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir, err := EnsureDir()
	if err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if want := filepath.Join(tmpHome, ".codedojo"); dir != want {
		t.Errorf("EnsureDir() = %q, want %q", dir, want)
	}
	for _, sub := range []string{"logs", "problems"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("EnsureDir() should create %s: %v", sub, err)
		}
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	if cfg.Daemon.Port != 3001 || cfg.Daemon.Bind != "127.0.0.1" {
		t.Errorf("Daemon = %+v", cfg.Daemon)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Runner.Backend != "jdoodle" {
		t.Errorf("Runner.Backend = %q, want jdoodle", cfg.Runner.Backend)
	}
	if cfg.LLM.DefaultProvider != "gemini" {
		t.Errorf("LLM.DefaultProvider = %q, want gemini", cfg.LLM.DefaultProvider)
	}
	if cfg.Workspace.Layout != layout.DefaultConfig() {
		t.Errorf("Workspace.Layout = %+v", cfg.Workspace.Layout)
	}
	if cfg.Workspace.DefaultLanguage != domain.DefaultLanguage {
		t.Errorf("DefaultLanguage = %q", cfg.Workspace.DefaultLanguage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LocalConfig)
		wantErr string
	}{
		{"bad port", func(c *LocalConfig) { c.Daemon.Port = 0 }, "daemon.port"},
		{"unknown driver", func(c *LocalConfig) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *LocalConfig) { c.Store.Driver = "postgres" }, "DATABASE_URL"},
		{"unknown backend", func(c *LocalConfig) { c.Runner.Backend = "lambda" }, "runner.backend"},
		{"queue without url", func(c *LocalConfig) { c.Runner.Backend = "queue" }, "RABBITMQ_URL"},
		{"bad language", func(c *LocalConfig) { c.Workspace.DefaultLanguage = "cobol" }, "default_language"},
		{"inverted bounds", func(c *LocalConfig) {
			c.Workspace.Layout.InnerBounds = layout.Bounds{Min: 80, Max: 20}
		}, "workspace.layout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLocalConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnabledProviders(t *testing.T) {
	cfg := DefaultLocalConfig()
	cfg.LLM.Providers["ollama"].Enabled = true
	cfg.LLM.Providers["zeta"] = &ProviderConfig{Enabled: true}
	cfg.LLM.Providers["alpha"] = &ProviderConfig{Enabled: true}
	cfg.LLM.Providers["off"] = &ProviderConfig{Enabled: false}

	got := cfg.EnabledProviders()
	want := []string{"gemini", "claude", "ollama", "alpha", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EnabledProviders() = %v, want %v", got, want)
	}
}

func TestSQLitePath(t *testing.T) {
	cfg := DefaultLocalConfig()
	if got := cfg.SQLitePath("/home/u/.codedojo"); got != "/home/u/.codedojo/codedojo.db" {
		t.Errorf("SQLitePath() = %q", got)
	}
	cfg.Store.Path = "/data/dojo.db"
	if got := cfg.SQLitePath("/ignored"); got != "/data/dojo.db" {
		t.Errorf("SQLitePath() = %q", got)
	}
}

func TestLoadFrom_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Daemon.Port != DefaultLocalConfig().Daemon.Port {
		t.Errorf("Port = %d", cfg.Daemon.Port)
	}
}

func TestLoadFrom_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
daemon:
  port: 9000
  log_level: debug
runner:
  backend: docker
  docker:
    memory_mb: 512
workspace:
  default_language: java
  layout:
    outer_default: 30
llm:
  default_provider: claude
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Daemon.Port != 9000 || cfg.Daemon.LogLevel != "debug" {
		t.Errorf("Daemon = %+v", cfg.Daemon)
	}
	if cfg.Runner.Backend != "docker" || cfg.Runner.Docker.MemoryMB != 512 {
		t.Errorf("Runner = %+v", cfg.Runner)
	}
	// unspecified fields keep their defaults
	if !cfg.Runner.Docker.NetworkOff || cfg.Workspace.Layout.InnerDefault != 50 {
		t.Errorf("defaults lost: docker %+v layout %+v", cfg.Runner.Docker, cfg.Workspace.Layout)
	}
	if cfg.Workspace.Layout.OuterDefault != 30 || cfg.Workspace.DefaultLanguage != domain.LanguageJava {
		t.Errorf("Workspace = %+v", cfg.Workspace)
	}
	if _, ok := cfg.LLM.Providers["gemini"]; !ok {
		t.Error("default providers dropped when file sets llm section")
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("daemon: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(dir); err == nil {
		t.Error("LoadFrom() should fail on invalid YAML")
	}
}

func TestLoadSecrets(t *testing.T) {
	dir := t.TempDir()
	secrets := `
providers:
  claude:
    api_key: sk-ant-test
  unknown:
    api_key: ignored
jdoodle:
  client_id: jd-id
  client_secret: jd-secret
`
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultLocalConfig()
	if err := loadSecrets(dir, cfg); err != nil {
		t.Fatalf("loadSecrets() error = %v", err)
	}
	if cfg.LLM.Providers["claude"].APIKey != "sk-ant-test" {
		t.Errorf("claude key = %q", cfg.LLM.Providers["claude"].APIKey)
	}
	if _, ok := cfg.LLM.Providers["unknown"]; ok {
		t.Error("secrets should not create providers")
	}
	if cfg.Runner.JDoodle.ClientID != "jd-id" || cfg.Runner.JDoodle.ClientSecret != "jd-secret" {
		t.Errorf("JDoodle = %+v", cfg.Runner.JDoodle)
	}
}

func TestLoadSecrets_NoSecretsFile(t *testing.T) {
	cfg := DefaultLocalConfig()
	if err := loadSecrets(t.TempDir(), cfg); err != nil {
		t.Errorf("loadSecrets() error = %v, want nil for missing file", err)
	}
}

func TestLoadSecrets_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("providers: [bad"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := loadSecrets(dir, DefaultLocalConfig()); err == nil {
		t.Error("loadSecrets() should fail on invalid YAML")
	}
}

func TestSaveTo_OmitsSecrets(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLocalConfig()
	cfg.LLM.Providers["claude"].APIKey = "sk-secret"
	cfg.Runner.JDoodle.ClientSecret = "jd-secret"
	cfg.Store.DSN = "postgres://user:pw@db/x"

	if err := SaveTo(dir, cfg); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"sk-secret", "jd-secret", "pw@db"} {
		if strings.Contains(string(data), secret) {
			t.Errorf("config.yaml contains secret %q", secret)
		}
	}

	var back LocalConfig
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("saved config does not parse: %v", err)
	}
	if back.Daemon.Port != cfg.Daemon.Port || back.Workspace.Layout != cfg.Workspace.Layout {
		t.Errorf("saved config = %+v", back)
	}
}

func TestSaveSecrets_Permissions(t *testing.T) {
	dir := t.TempDir()
	secrets := SecretsConfig{
		Providers: map[string]ProviderSecret{"gemini": {APIKey: "gem"}},
		JDoodle:   JDoodleSecret{ClientID: "id", ClientSecret: "sec"},
	}
	if err := SaveSecrets(dir, secrets); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "secrets.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("secrets.yaml mode = %o, want 600", perm)
	}

	cfg := DefaultLocalConfig()
	if err := loadSecrets(dir, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Providers["gemini"].APIKey != "gem" || cfg.Runner.JDoodle.ClientSecret != "sec" {
		t.Errorf("secrets not loaded back: %+v %+v", cfg.LLM.Providers["gemini"], cfg.Runner.JDoodle)
	}
}
