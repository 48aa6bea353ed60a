package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(env string) Config {
	return Config{
		App:   AppConfig{Env: env, Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "insights"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{MasterToken: "master", LinkSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV is required", "DB_HOST is required", "MASTER_TOKEN is required", "LINK_SECRET is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_ProductionRequiresSSLModeAndBucket(t *testing.T) {
	c := validConfig("production")
	c.Auth.MasterToken = strings.Repeat("m", 32)
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	if !strings.Contains(err.Error(), "DB_SSLMODE") || !strings.Contains(err.Error(), "GCS_BUCKET") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig("local")
	c.App.GlobalPrefix = "/api/"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.App.AggregationTimeout != 10*time.Second {
		t.Fatalf("expected 10s aggregation timeout, got %s", c.App.AggregationTimeout)
	}
	if c.Redis.TokenCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m token cache ttl, got %s", c.Redis.TokenCacheTTL)
	}
	if c.App.GlobalPrefix != "api" {
		t.Fatalf("expected trimmed prefix, got %q", c.App.GlobalPrefix)
	}
}

func TestValidate_OTLPNeedsEndpoint(t *testing.T) {
	c := validConfig("dev")
	c.OTel = OTelConfig{Enabled: true, Exporter: "otlp"}
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "OTEL_EXPORTER_OTLP_ENDPOINT") {
		t.Fatalf("expected otlp endpoint error, got %v", err)
	}
}

func TestLoad_FileOverlayOverriddenByEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
app:
  env: dev
  port: 8080
  aggregation_timeout: 3s
db:
  host: db
  port: 5432
  user: insights
  name: insights
redis:
  host: cache
  port: 6379
auth:
  master_token: from-file
  link_secret: file-secret
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 9090 {
		t.Fatalf("env should override file port, got %d", c.App.Port)
	}
	if c.App.AggregationTimeout != 3*time.Second {
		t.Fatalf("expected file timeout, got %s", c.App.AggregationTimeout)
	}
	if len(c.App.CORSOrigins) != 2 || c.App.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins %v", c.App.CORSOrigins)
	}
	if c.Auth.MasterToken != "from-file" {
		t.Fatalf("expected master token from file, got %q", c.Auth.MasterToken)
	}
}

func TestLoad_ReportsBadEnvValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("APP_PORT", "http")
	t.Setenv("LINK_TTL", "soon")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if !strings.Contains(err.Error(), "APP_PORT") || !strings.Contains(err.Error(), "LINK_TTL") {
		t.Fatalf("expected both parse errors, got %v", err)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("app:\n  colour: blue\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := Parse(nil); err != nil {
		t.Fatalf("empty document should parse, got %v", err)
	}
}
