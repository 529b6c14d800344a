// Package config loads codedojo settings from ~/.codedojo/config.yaml,
// secrets.yaml and the environment.
package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides file settings with environment variables. Variables
// that are unset or fail to parse leave the setting alone.
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("CODEDOJO_PORT", cfg.Daemon.Port)
	cfg.Daemon.LogLevel = getEnv("CODEDOJO_LOG_LEVEL", cfg.Daemon.LogLevel)
	cfg.Daemon.SecureCookie = getEnvBool("CODEDOJO_SECURE_COOKIE", cfg.Daemon.SecureCookie)
	cfg.Client.ServerURL = getEnv("CODEDOJO_SERVER", cfg.Client.ServerURL)
	cfg.Runner.Backend = getEnv("CODEDOJO_RUNNER", cfg.Runner.Backend)
	cfg.Runner.TimeoutSeconds = getEnvInt("CODEDOJO_RUN_TIMEOUT", cfg.Runner.TimeoutSeconds)
	cfg.Runner.Docker.CPULimit = getEnvFloat("CODEDOJO_DOCKER_CPUS", cfg.Runner.Docker.CPULimit)

	// DATABASE_URL alone switches to postgres; CODEDOJO_STORE has the last word.
	if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
		cfg.Store.DSN = dsn
		cfg.Store.Driver = "postgres"
	}
	cfg.Store.Driver = getEnv("CODEDOJO_STORE", cfg.Store.Driver)
	cfg.Runner.Queue.URL = getEnv("RABBITMQ_URL", cfg.Runner.Queue.URL)

	cfg.Runner.JDoodle.ClientID = getEnv("JDOODLE_CLIENT_ID", cfg.Runner.JDoodle.ClientID)
	cfg.Runner.JDoodle.ClientSecret = getEnv("JDOODLE_CLIENT_SECRET", cfg.Runner.JDoodle.ClientSecret)

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]*ProviderConfig)
	}
	for env, name := range map[string]string{
		"GEMINI_API_KEY":    "gemini",
		"ANTHROPIC_API_KEY": "claude",
		"OPENAI_API_KEY":    "openai",
	} {
		key := getEnv(env, "")
		if key == "" {
			continue
		}
		if p, ok := cfg.LLM.Providers[name]; ok {
			p.APIKey = key
		} else {
			cfg.LLM.Providers[name] = &ProviderConfig{Enabled: true, APIKey: key}
		}
	}
	if url := getEnv("OLLAMA_URL", ""); url != "" {
		if p, ok := cfg.LLM.Providers["ollama"]; ok {
			p.URL = url
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
