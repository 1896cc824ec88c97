package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Redis    RedisConfig    `yaml:"redis"`
	Notify   NotifyConfig   `yaml:"notify"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	MetricsPort        int    `yaml:"metrics_port"`
	AdminToken         string `yaml:"admin_token"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the settings cache. An empty URL disables caching.
type RedisConfig struct {
	URL                string `yaml:"url"`
	SettingsTTLSeconds int    `yaml:"settings_ttl_seconds"`
}

// NotifyConfig configures the outbound webhook. An empty WebhookURL disables
// notifications.
type NotifyConfig struct {
	WebhookURL       string `yaml:"webhook_url"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	BreakerFailures  int    `yaml:"breaker_failures"`
	BreakerTimeoutMs int    `yaml:"breaker_timeout_ms"`
}

type SweeperConfig struct {
	Enabled            bool `yaml:"enabled"`
	SLAIntervalMs      int  `yaml:"sla_interval_ms"`
	PriorityIntervalMs int  `yaml:"priority_interval_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) SLAInterval() time.Duration {
	return time.Duration(c.Sweeper.SLAIntervalMs) * time.Millisecond
}

func (c *Config) PriorityInterval() time.Duration {
	return time.Duration(c.Sweeper.PriorityIntervalMs) * time.Millisecond
}

func (c *Config) SettingsTTL() time.Duration {
	return time.Duration(c.Redis.SettingsTTLSeconds) * time.Second
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutMs) * time.Millisecond
}

func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.Notify.BreakerTimeoutMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 600,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Redis: RedisConfig{
			SettingsTTLSeconds: 60,
		},
		Notify: NotifyConfig{
			TimeoutMs:        10000,
			BreakerFailures:  5,
			BreakerTimeoutMs: 30000,
		},
		Sweeper: SweeperConfig{
			Enabled:            true,
			SLAIntervalMs:      60000,
			PriorityIntervalMs: 300000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envInt("PIPEDESK_PORT", &cfg.Server.Port)
	envInt("PIPEDESK_METRICS_PORT", &cfg.Server.MetricsPort)
	envString("PIPEDESK_ADMIN_TOKEN", &cfg.Server.AdminToken)
	envInt("PIPEDESK_RATE_LIMIT_PER_MINUTE", &cfg.Server.RateLimitPerMinute)
	envString("PIPEDESK_DATABASE_URL", &cfg.Database.URL)
	envString("PIPEDESK_NATS_URL", &cfg.NATS.URL)
	envString("PIPEDESK_REDIS_URL", &cfg.Redis.URL)
	envInt("PIPEDESK_SETTINGS_TTL_SECONDS", &cfg.Redis.SettingsTTLSeconds)
	envString("PIPEDESK_WEBHOOK_URL", &cfg.Notify.WebhookURL)
	envInt("PIPEDESK_WEBHOOK_TIMEOUT_MS", &cfg.Notify.TimeoutMs)
	envBool("PIPEDESK_SWEEPER_ENABLED", &cfg.Sweeper.Enabled)
	envInt("PIPEDESK_SLA_INTERVAL_MS", &cfg.Sweeper.SLAIntervalMs)
	envInt("PIPEDESK_PRIORITY_INTERVAL_MS", &cfg.Sweeper.PriorityIntervalMs)
	envString("PIPEDESK_LOG_LEVEL", &cfg.Logging.Level)
	envString("PIPEDESK_LOG_FORMAT", &cfg.Logging.Format)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
