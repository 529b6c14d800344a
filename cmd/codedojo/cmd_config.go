package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/codedojo/internal/config"
)

// cmdConfig shows the effective configuration, or writes the defaults with
// "config init".
func cmdConfig(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "init":
			return cmdConfigInit()
		default:
			return fmt.Errorf("unknown config command: %s", args[0])
		}
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("codedojo configuration")

	fmt.Println("\nServer:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)
	fmt.Printf("  metrics: %t\n", cfg.Daemon.Metrics)
	fmt.Printf("  rate_limit: execute=%d/min hint=%d/min\n",
		cfg.Daemon.RateLimit.ExecutePerMinute, cfg.Daemon.RateLimit.HintPerMinute)
	fmt.Printf("  store: %s\n", cfg.Store.Driver)

	fmt.Println("\nRunner:")
	fmt.Printf("  backend: %s\n", cfg.Runner.Backend)
	fmt.Printf("  timeout: %ds\n", cfg.Runner.TimeoutSeconds)
	switch cfg.Runner.Backend {
	case "jdoodle":
		fmt.Printf("  credentials: %s\n", mark(cfg.Runner.JDoodle.ClientID != "" && cfg.Runner.JDoodle.ClientSecret != ""))
	case "docker":
		fmt.Printf("  memory: %dMB cpu: %.2f\n", cfg.Runner.Docker.MemoryMB, cfg.Runner.Docker.CPULimit)
	case "queue":
		fmt.Printf("  rabbitmq: %s\n", mark(cfg.Runner.Queue.URL != ""))
	}

	fmt.Println("\nMentor:")
	fmt.Printf("  default_provider: %s\n", cfg.LLM.DefaultProvider)
	for _, name := range cfg.EnabledProviders() {
		p := cfg.LLM.Providers[name]
		fmt.Printf("  %s: model=%s key=%s\n", name, p.Model, mark(p.APIKey != "" || name == "ollama"))
	}

	fmt.Println("\nWorkspace:")
	fmt.Printf("  default_language: %s\n", cfg.Workspace.DefaultLanguage)
	fmt.Printf("  server: %s\n", cfg.Client.ServerURL)

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\n✗ %v\n", err)
	}

	dir, _ := config.Dir()
	fmt.Printf("\nConfig path: %s\n", filepath.Join(dir, "config.yaml"))
	return nil
}

func cmdConfigInit() error {
	dir, err := config.EnsureDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}
	if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("✓ Wrote %s\n", path)
	fmt.Printf("Put API keys and JDoodle credentials in %s\n", filepath.Join(dir, "secrets.yaml"))
	return nil
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
