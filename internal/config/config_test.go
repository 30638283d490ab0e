package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avnova/sqyros/internal/llm"
)

const sampleYAML = `
server:
  addr: ":9090"
  shutdown-timeout: 5s
database:
  dsn: "postgres://sqyros:pw@db:5432/sqyros"
redis:
  addr: "redis:6379"
auth:
  jwt-secret: "file-secret"
  issuer: "https://clerk.example"
llm:
  api-key: "file-key"
  models:
    fast: "claude-haiku"
pricing:
  fast:
    input-per-1k: 0.25
    output-per-1k: 1.25
  advanced:
    input-per-1k: 1.5
    output-per-1k: 7.5
quota:
  free-guides-per-month: 10
  backend: Redis
usage:
  retention-days: 90
logging:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvAnthropicKey, "")
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvRedisURL, "")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.LLM.Models.Fast != "claude-haiku" || cfg.LLM.Models.Advanced != llm.DefaultAdvancedModel {
		t.Fatalf("unexpected models %+v", cfg.LLM.Models)
	}
	if cfg.Pricing.Fast.InputCostPerThousandTokens != 0.25 {
		t.Fatalf("unexpected pricing %+v", cfg.Pricing)
	}
	if cfg.Quota.FreeGuidesPerMonth != 10 || cfg.Quota.FreeQuestionsPerDay != 5 || cfg.Quota.Backend != QuotaBackendRedis {
		t.Fatalf("unexpected quota %+v", cfg.Quota)
	}
	if cfg.Usage.RetentionDays != 90 || cfg.Usage.QueueSize != 256 {
		t.Fatalf("unexpected usage %+v", cfg.Usage)
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		t.Fatalf("validate: %v", errValidate)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(EnvAnthropicKey, "env-key")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvDatabaseURL, "file:env.db")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/1")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" || cfg.Auth.JWTSecret != "env-secret" || cfg.Database.DSN != "file:env.db" || cfg.Redis.URL != "redis://localhost:6379/1" {
		t.Fatalf("env did not win: %+v", cfg)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAnthropicKey, "")
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvRedisURL, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Quota.Backend != QuotaBackendDB {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	errValidate := cfg.Validate()
	if !errors.Is(errValidate, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without secrets, got %v", errValidate)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateRedisBackendNeedsEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "s"
	cfg.LLM.APIKey = "k"
	cfg.Quota.Backend = QuotaBackendRedis
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected redis backend without endpoint to fail, got %v", err)
	}
	cfg.Redis.Addr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := ResolveConfigPath(""); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
	t.Setenv(EnvConfigPath, "/etc/sqyros.yaml")
	if got := ResolveConfigPath(""); got != "/etc/sqyros.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := ResolveConfigPath("local.yaml"); got != "local.yaml" {
		t.Fatalf("expected explicit path, got %q", got)
	}
}

func TestOpenAIProviderReadsItsOwnKey(t *testing.T) {
	t.Setenv(EnvAnthropicKey, "anthropic-key")
	t.Setenv(EnvOpenAIKey, "openai-key")
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvRedisURL, "")

	cfg, err := Load(writeConfig(t, "llm:\n  provider: OpenAI\n  base-url: http://localhost:4000/v1/\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.APIKey != "openai-key" {
		t.Fatalf("unexpected llm config %+v", cfg.LLM)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = "file:x.db"
	cfg.Auth.JWTSecret = "s"
	cfg.LLM.APIKey = "k"
	cfg.LLM.Provider = "bedrock"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDigestNeedsChannel(t *testing.T) {
	t.Setenv(EnvSlackToken, "xoxb-env")
	t.Setenv(EnvAnthropicKey, "k")
	t.Setenv(EnvJWTSecret, "s")
	t.Setenv(EnvDatabaseURL, "file:x.db")
	t.Setenv(EnvRedisURL, "")

	cfg, err := Load(writeConfig(t, "digest:\n  schedule: \"0 7 * * *\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Digest.SlackBotToken != "xoxb-env" || cfg.Digest.Enabled() {
		t.Fatalf("unexpected digest config %+v", cfg.Digest)
	}
	if errValidate := cfg.Validate(); !errors.Is(errValidate, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", errValidate)
	}
	cfg.Digest.Channel = "#ops"
	if errValidate := cfg.Validate(); errValidate != nil {
		t.Fatalf("validate: %v", errValidate)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	t.Setenv(EnvAnthropicKey, "k")
	t.Setenv(EnvJWTSecret, "s")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvRedisURL, "")
	t.Setenv(EnvSlackToken, "")

	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		t.Fatalf("validate example: %v", errValidate)
	}
	if cfg.Pricing != Default().Pricing || cfg.Quota.Policy != Default().Quota.Policy {
		t.Fatalf("example drifted from defaults: pricing=%+v quota=%+v", cfg.Pricing, cfg.Quota.Policy)
	}
}
