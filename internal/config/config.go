// Package config loads the YAML service configuration and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avnova/sqyros/internal/billing"
	"github.com/avnova/sqyros/internal/digest"
	"github.com/avnova/sqyros/internal/llm"
	"github.com/avnova/sqyros/internal/logging"
	"github.com/avnova/sqyros/internal/quota"
	"github.com/avnova/sqyros/internal/usage"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvConfigPath   = "SQYROS_CONFIG"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvJWTSecret    = "SQYROS_JWT_SECRET"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvRedisURL     = "REDIS_URL"
	EnvSlackToken   = "SLACK_BOT_TOKEN"
)

// DefaultConfigPath is used when neither a flag nor SQYROS_CONFIG names a file.
const DefaultConfigPath = "config.yaml"

// Quota backends.
const (
	QuotaBackendDB    = "db"
	QuotaBackendRedis = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// AppConfig carries command-line level options.
type AppConfig struct {
	ConfigPath string
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Database DatabaseConfig    `yaml:"database"`
	Redis    RedisConfig       `yaml:"redis"`
	Auth     AuthConfig        `yaml:"auth"`
	LLM      LLMConfig         `yaml:"llm"`
	Pricing  billing.RateTable `yaml:"pricing"`
	Quota    QuotaConfig       `yaml:"quota"`
	Usage    UsageConfig       `yaml:"usage"`
	Digest   DigestConfig      `yaml:"digest"`
	Logging  logging.Config    `yaml:"logging"`
}

// DigestConfig configures the daily Slack usage digest. It is off unless a token and channel are set.
type DigestConfig struct {
	SlackBotToken string `yaml:"slack-bot-token"`
	Channel       string `yaml:"channel"`
	Schedule      string `yaml:"schedule"` // Cron spec evaluated in UTC.
	APIURL        string `yaml:"api-url"`
}

// Enabled reports whether the digest should be scheduled.
func (d DigestConfig) Enabled() bool {
	return strings.TrimSpace(d.SlackBotToken) != "" && strings.TrimSpace(d.Channel) != ""
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read-timeout"`
	WriteTimeout    time.Duration `yaml:"write-timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// DatabaseConfig configures the primary store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max-open-conns"`
	MaxIdleConns    int           `yaml:"max-idle-conns"`
	ConnMaxLifetime time.Duration `yaml:"conn-max-lifetime"`
}

// RedisConfig configures the optional Redis quota counter. URL wins over Addr.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Addr) != ""
}

// AuthConfig configures session token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt-secret"`
	Issuer    string `yaml:"issuer"`
}

// LLMConfig configures the provider client.
type LLMConfig struct {
	Provider   string        `yaml:"provider"` // anthropic (default) or openai.
	APIKey     string        `yaml:"api-key"`
	BaseURL    string        `yaml:"base-url"`
	Models     llm.ModelSet  `yaml:"models"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max-retries"`
}

// QuotaConfig configures free-tier limits and the counter backend.
type QuotaConfig struct {
	quota.Policy `yaml:",inline"`
	Backend      string `yaml:"backend"`
}

// UsageConfig configures the ledger writer and retention.
type UsageConfig struct {
	QueueSize               int    `yaml:"queue-size"`
	RetentionDays           int    `yaml:"retention-days"`
	CleanupSchedule         string `yaml:"cleanup-schedule"`
	SettingsRefreshSchedule string `yaml:"settings-refresh-schedule"`
	HistoryTurns            int    `yaml:"history-turns"`
}

// Default returns the configuration used before the file and environment are applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    180 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{DSN: "data/sqyros.db"},
		LLM: LLMConfig{
			Provider:   llm.ProviderAnthropic,
			Models:     llm.DefaultModels(),
			Timeout:    120 * time.Second,
			MaxRetries: 2,
		},
		Pricing: billing.DefaultRates(),
		Quota:   QuotaConfig{Policy: quota.DefaultPolicy(), Backend: QuotaBackendDB},
		Usage: UsageConfig{
			QueueSize:               256,
			CleanupSchedule:         usage.DefaultRetentionSchedule,
			SettingsRefreshSchedule: "@every 1m",
			HistoryTurns:            10,
		},
		Digest:  DigestConfig{Schedule: digest.DefaultSchedule},
		Logging: logging.Config{Level: "info"},
	}
}

// ResolveConfigPath picks the config file: explicit path, then SQYROS_CONFIG, then the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads path over the defaults and applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	cfg.applyEnv()
	cfg.LLM.Models = cfg.LLM.Models.WithDefaults()
	cfg.Quota.Backend = strings.ToLower(strings.TrimSpace(cfg.Quota.Backend))
	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = QuotaBackendDB
	}
	return &cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func (c *Config) applyEnv() {
	c.LLM.Provider = llm.NormalizeProvider(c.LLM.Provider)
	c.LLM.APIKey = envOr(c.LLM.KeyEnv(), c.LLM.APIKey)
	c.Auth.JWTSecret = envOr(EnvJWTSecret, c.Auth.JWTSecret)
	c.Database.DSN = envOr(EnvDatabaseURL, c.Database.DSN)
	c.Redis.URL = envOr(EnvRedisURL, c.Redis.URL)
	c.Digest.SlackBotToken = envOr(EnvSlackToken, c.Digest.SlackBotToken)
}

// KeyEnv names the environment variable holding the provider API key.
func (c LLMConfig) KeyEnv() string {
	if llm.NormalizeProvider(c.Provider) == llm.ProviderOpenAI {
		return EnvOpenAIKey
	}
	return EnvAnthropicKey
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Validate checks everything the server needs to start.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, fmt.Errorf("auth.jwt-secret or %s is required", EnvJWTSecret))
	}
	switch llm.NormalizeProvider(c.LLM.Provider) {
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			errs = append(errs, fmt.Errorf("llm.api-key or %s is required", c.LLM.KeyEnv()))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if errRates := c.Pricing.Validate(); errRates != nil {
		errs = append(errs, errRates)
	}
	switch c.Quota.Backend {
	case QuotaBackendDB:
	case QuotaBackendRedis:
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("quota.backend redis needs redis.url or redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown quota.backend %q", c.Quota.Backend))
	}
	if strings.TrimSpace(c.Digest.SlackBotToken) != "" && strings.TrimSpace(c.Digest.Channel) == "" {
		errs = append(errs, errors.New("digest.channel is required when a slack bot token is set"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
