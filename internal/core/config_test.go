package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// --- LoadGlobalConfig tests ---

func TestLoadGlobalConfig_Defaults_WhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8088" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "http://localhost:8088")
	}
	if cfg.Polling.Interval != time.Second {
		t.Errorf("Polling.Interval = %s, want 1s", cfg.Polling.Interval)
	}
	if cfg.Submit.ProcessingDelay != 3*time.Second {
		t.Errorf("Submit.ProcessingDelay = %s, want 3s", cfg.Submit.ProcessingDelay)
	}
	if cfg.Submit.SubmittedHold != 1500*time.Millisecond {
		t.Errorf("Submit.SubmittedHold = %s, want 1.5s", cfg.Submit.SubmittedHold)
	}
	if cfg.Submit.RedirectDelay != 1600*time.Millisecond {
		t.Errorf("Submit.RedirectDelay = %s, want 1.6s", cfg.Submit.RedirectDelay)
	}
	if cfg.Cache.RedisAddr != "" {
		t.Errorf("Cache.RedisAddr = %q, want empty", cfg.Cache.RedisAddr)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
}

func TestLoadGlobalConfig_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName+".yaml", `
api:
  base_url: "https://desk.example.com/"
  timeout: 5s
polling:
  interval: 2s
submit:
  processing_delay: 100ms
  submitted_hold: 200ms
  redirect_delay: 300ms
cache:
  redis_addr: "localhost:6379"
  redis_db: 2
log:
  level: DEBUG
  format: json
`)

	cm := NewConfigurationManager(dir)
	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.BaseURL != "https://desk.example.com" {
		t.Errorf("API.BaseURL = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("API.Timeout = %s, want 5s", cfg.API.Timeout)
	}
	if cfg.Polling.Interval != 2*time.Second {
		t.Errorf("Polling.Interval = %s, want 2s", cfg.Polling.Interval)
	}
	if cfg.Submit.ProcessingDelay != 100*time.Millisecond {
		t.Errorf("Submit.ProcessingDelay = %s, want 100ms", cfg.Submit.ProcessingDelay)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" || cfg.Cache.RedisDB != 2 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want lowercased %q", cfg.Log.Level, "debug")
	}
	// Unset keys keep their defaults.
	if cfg.Polling.LoadingOverlay != time.Second {
		t.Errorf("Polling.LoadingOverlay = %s, want default 1s", cfg.Polling.LoadingOverlay)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %s, want default 10m", cfg.Cache.TTL)
	}
}

func TestLoadGlobalConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName+".yaml", "api:\n  base_url: http://from-file:1\n")
	t.Setenv("CDESK_API_BASE_URL", "http://from-env:2")

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "http://from-env:2" {
		t.Errorf("API.BaseURL = %q, want env value", cfg.API.BaseURL)
	}
}

func TestLoadGlobalConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName+".yaml", "api: [unclosed\n")

	_, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err == nil {
		t.Fatal("expected error for malformed config")
	}
	if !strings.Contains(err.Error(), ConfigFileName) {
		t.Errorf("error %q should name the config file", err)
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_DefaultsAreValid(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(DefaultGlobalConfig()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestValidateConfig_CollectsAllErrors(t *testing.T) {
	cfg := DefaultGlobalConfig()
	cfg.API.BaseURL = "not a url"
	cfg.Polling.Interval = 0
	cfg.Submit.RedirectDelay = -time.Second
	cfg.Cache.RedisAddr = "localhost:6379"
	cfg.Cache.TTL = 0
	cfg.Log.Level = "verbose"
	cfg.Log.Format = "xml"

	err := NewConfigurationManager(t.TempDir()).ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"api.base_url",
		"polling.interval",
		"submit.redirect_delay",
		"cache.ttl",
		"log.level",
		"log.format",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got:\n%s", want, err)
		}
	}
}

func TestValidateConfig_ZeroDelaysAllowed(t *testing.T) {
	cfg := DefaultGlobalConfig()
	cfg.Submit.ProcessingDelay = 0
	cfg.Submit.SubmittedHold = 0
	cfg.Submit.RedirectDelay = 0
	if err := NewConfigurationManager(t.TempDir()).ValidateConfig(cfg); err != nil {
		t.Fatalf("zero delays should be valid: %v", err)
	}
}
