package models

import "time"

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PollingConfig controls the records view refresh cadence.
type PollingConfig struct {
	Interval       time.Duration `yaml:"interval" mapstructure:"interval"`
	LoadingOverlay time.Duration `yaml:"loading_overlay" mapstructure:"loading_overlay"`
}

// SubmitConfig holds the fixed delays of the submit interaction.
type SubmitConfig struct {
	ProcessingDelay time.Duration `yaml:"processing_delay" mapstructure:"processing_delay"`
	SubmittedHold   time.Duration `yaml:"submitted_hold" mapstructure:"submitted_hold"`
	RedirectDelay   time.Duration `yaml:"redirect_delay" mapstructure:"redirect_delay"`
}

// CacheConfig configures the optional Redis snapshot cache.
// An empty RedisAddr disables it.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB   int           `yaml:"redis_db" mapstructure:"redis_db"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LogConfig configures the logrus logger. File "-" logs to stderr.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// SandboxConfig configures the local reference backend.
type SandboxConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// NotificationsConfig configures where 'cdesk alerts --notify' posts.
// An empty WebhookURL disables notifications.
type NotificationsConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// GlobalConfig holds client settings read from .cdeskconfig via Viper.
type GlobalConfig struct {
	API           APIConfig           `yaml:"api" mapstructure:"api"`
	Polling       PollingConfig       `yaml:"polling" mapstructure:"polling"`
	Submit        SubmitConfig        `yaml:"submit" mapstructure:"submit"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Sandbox       SandboxConfig       `yaml:"sandbox" mapstructure:"sandbox"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
}
