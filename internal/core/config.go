// Package core contains the client-side logic of commission-desk: configuration,
// session lifecycle, route guarding, data snapshots, and the task records
// reconciliation and submit state machine.
package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// ConfigFileName is the name (without extension) of the configuration file
// looked up in the data directory.
const ConfigFileName = ".cdeskconfig"

// ConfigurationManager loads and validates the client configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files and CDESK_* environment overrides.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .cdeskconfig from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with the stock timings
// of the records view and a local sandbox backend.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		API: models.APIConfig{
			BaseURL: "http://localhost:8088",
			Timeout: 15 * time.Second,
		},
		Polling: models.PollingConfig{
			Interval:       time.Second,
			LoadingOverlay: time.Second,
		},
		Submit: models.SubmitConfig{
			ProcessingDelay: 3000 * time.Millisecond,
			SubmittedHold:   1500 * time.Millisecond,
			RedirectDelay:   1600 * time.Millisecond,
		},
		Cache: models.CacheConfig{
			TTL: 10 * time.Minute,
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "text",
			File:   "cdesk.log",
		},
		Sandbox: models.SandboxConfig{
			Addr:      ":8088",
			JWTSecret: "sandbox-secret",
		},
	}
}

// LoadGlobalConfig reads .cdeskconfig from the base path. A missing file is
// not an error: defaults (plus any environment overrides) are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("CDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("polling.interval", cfg.Polling.Interval)
	v.SetDefault("polling.loading_overlay", cfg.Polling.LoadingOverlay)
	v.SetDefault("submit.processing_delay", cfg.Submit.ProcessingDelay)
	v.SetDefault("submit.submitted_hold", cfg.Submit.SubmittedHold)
	v.SetDefault("submit.redirect_delay", cfg.Submit.RedirectDelay)
	v.SetDefault("cache.redis_addr", cfg.Cache.RedisAddr)
	v.SetDefault("cache.redis_db", cfg.Cache.RedisDB)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("sandbox.addr", cfg.Sandbox.Addr)
	v.SetDefault("sandbox.jwt_secret", cfg.Sandbox.JWTSecret)
	v.SetDefault("notifications.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.API.BaseURL = strings.TrimRight(v.GetString("api.base_url"), "/")
	cfg.API.Timeout = v.GetDuration("api.timeout")
	cfg.Polling.Interval = v.GetDuration("polling.interval")
	cfg.Polling.LoadingOverlay = v.GetDuration("polling.loading_overlay")
	cfg.Submit.ProcessingDelay = v.GetDuration("submit.processing_delay")
	cfg.Submit.SubmittedHold = v.GetDuration("submit.submitted_hold")
	cfg.Submit.RedirectDelay = v.GetDuration("submit.redirect_delay")
	cfg.Cache.RedisAddr = v.GetString("cache.redis_addr")
	cfg.Cache.RedisDB = v.GetInt("cache.redis_db")
	cfg.Cache.TTL = v.GetDuration("cache.ttl")
	cfg.Log.Level = strings.ToLower(v.GetString("log.level"))
	cfg.Log.Format = strings.ToLower(v.GetString("log.format"))
	cfg.Log.File = v.GetString("log.file")
	cfg.Sandbox.Addr = v.GetString("sandbox.addr")
	cfg.Sandbox.JWTSecret = v.GetString("sandbox.jwt_secret")
	cfg.Notifications.WebhookURL = v.GetString("notifications.webhook_url")

	return cfg, nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// ValidateConfig checks the configuration for invalid values and reports all
// of them in a single error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.API.BaseURL == "" {
		errs = append(errs, "api.base_url must not be empty")
	} else if u, err := url.Parse(cfg.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url %q is not an absolute URL", cfg.API.BaseURL))
	}

	if cfg.API.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("api.timeout must be positive, got %s", cfg.API.Timeout))
	}
	if cfg.Polling.Interval <= 0 {
		errs = append(errs, fmt.Sprintf("polling.interval must be positive, got %s", cfg.Polling.Interval))
	}
	if cfg.Polling.LoadingOverlay < 0 {
		errs = append(errs, fmt.Sprintf("polling.loading_overlay must be non-negative, got %s", cfg.Polling.LoadingOverlay))
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"submit.processing_delay", cfg.Submit.ProcessingDelay},
		{"submit.submitted_hold", cfg.Submit.SubmittedHold},
		{"submit.redirect_delay", cfg.Submit.RedirectDelay},
	} {
		if d.val < 0 {
			errs = append(errs, fmt.Sprintf("%s must be non-negative, got %s", d.key, d.val))
		}
	}

	if cfg.Cache.RedisAddr != "" && cfg.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive when cache.redis_addr is set")
	}
	if cfg.Cache.RedisDB < 0 {
		errs = append(errs, fmt.Sprintf("cache.redis_db must be non-negative, got %d", cfg.Cache.RedisDB))
	}

	if w := cfg.Notifications.WebhookURL; w != "" {
		if u, err := url.Parse(w); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("notifications.webhook_url %q is not an absolute URL", w))
		}
	}

	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}
	if !validLogFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: text, json", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
