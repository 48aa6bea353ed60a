package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration required by the API process and the operator CLI.
// Values come from an optional YAML file (CONFIG_FILE) overridden by env.
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig     `yaml:"app"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	OTel    OTelConfig    `yaml:"otel"`
}

type AppConfig struct {
	Env          string `yaml:"env"`
	Port         int    `yaml:"port"`
	GlobalPrefix string `yaml:"global_prefix"`
	// CORSOrigins lists allowed browser origins; empty disables CORS handling.
	CORSOrigins []string `yaml:"cors_origins"`
	// AggregationTimeout bounds the analysis upload transaction.
	AggregationTimeout time.Duration `yaml:"aggregation_timeout"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	TokenCacheTTL time.Duration `yaml:"token_cache_ttl"`
}

type AuthConfig struct {
	// MasterToken authorises service-scope endpoints (X-Master-Token).
	MasterToken string        `yaml:"master_token"`
	LinkSecret  string        `yaml:"link_secret"`
	LinkIssuer  string        `yaml:"link_issuer"`
	LinkTTL     time.Duration `yaml:"link_ttl"`
}

type StorageConfig struct {
	GCSBucket       string `yaml:"gcs_bucket"`
	CredentialsFile string `yaml:"gcs_credentials_file"`
	// Endpoint overrides the GCS API endpoint (emulators).
	Endpoint string `yaml:"gcs_endpoint"`
	// QuotaBytes is the capacity reported by storage stats. Zero means unbounded.
	QuotaBytes int64 `yaml:"quota_bytes"`
}

type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads CONFIG_FILE (if set), applies env overrides and validates the result.
func Load() (Config, error) {
	c := Config{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if c, err = Parse(raw); err != nil {
			return Config{}, err
		}
	}

	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(raw []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	envString("APP_ENV", &c.App.Env)
	errs = envInt(errs, "APP_PORT", &c.App.Port)
	envString("APP_GLOBAL_PREFIX", &c.App.GlobalPrefix)
	envList("CORS_ORIGINS", &c.App.CORSOrigins)
	errs = envDuration(errs, "AGGREGATION_TIMEOUT", &c.App.AggregationTimeout)

	envString("DB_HOST", &c.DB.Host)
	errs = envInt(errs, "DB_PORT", &c.DB.Port)
	envString("DB_USER", &c.DB.User)
	envSecret("DB_PASSWORD", &c.DB.Password)
	envString("DB_NAME", &c.DB.Name)
	envString("DB_SSLMODE", &c.DB.SSLMode)
	errs = envInt(errs, "DB_MAX_CONNS", &c.DB.MaxConns)

	envString("REDIS_HOST", &c.Redis.Host)
	errs = envInt(errs, "REDIS_PORT", &c.Redis.Port)
	envSecret("REDIS_PASSWORD", &c.Redis.Password)
	errs = envInt(errs, "REDIS_DB", &c.Redis.DB)
	errs = envDuration(errs, "REDIS_TOKEN_CACHE_TTL", &c.Redis.TokenCacheTTL)

	envSecret("MASTER_TOKEN", &c.Auth.MasterToken)
	envSecret("LINK_SECRET", &c.Auth.LinkSecret)
	envString("LINK_ISSUER", &c.Auth.LinkIssuer)
	errs = envDuration(errs, "LINK_TTL", &c.Auth.LinkTTL)

	envString("GCS_BUCKET", &c.Storage.GCSBucket)
	envString("GCS_CREDENTIALS_FILE", &c.Storage.CredentialsFile)
	envString("GCS_ENDPOINT", &c.Storage.Endpoint)
	{
		var quota int
		errs = envInt(errs, "STORAGE_QUOTA_BYTES", &quota)
		if quota > 0 {
			c.Storage.QuotaBytes = int64(quota)
		}
	}

	if v := strings.TrimSpace(os.Getenv("OTEL_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_ENABLED must be a boolean, got %q", v))
		}
		c.OTel.Enabled = b
	}
	envString("OTEL_EXPORTER", &c.OTel.Exporter)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTel.Endpoint)
	envString("OTEL_SERVICE_NAME", &c.OTel.ServiceName)
	if v := strings.TrimSpace(os.Getenv("OTEL_SAMPLE_RATIO")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be a number, got %q", v))
		}
		c.OTel.SampleRatio = f
	}

	return joinErrors(errs)
}

// Validate checks the config and fills defaults. It reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	c.App.GlobalPrefix = strings.Trim(strings.TrimSpace(c.App.GlobalPrefix), "/")
	if c.App.AggregationTimeout <= 0 {
		c.App.AggregationTimeout = 10 * time.Second
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must not be negative, got %d", c.DB.MaxConns))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.TokenCacheTTL <= 0 {
		c.Redis.TokenCacheTTL = 5 * time.Minute
	}

	if c.Auth.MasterToken == "" {
		errs = append(errs, errors.New("MASTER_TOKEN is required"))
	} else if c.IsProduction() && len(c.Auth.MasterToken) < 32 {
		errs = append(errs, errors.New("MASTER_TOKEN must be at least 32 characters in production"))
	}
	if c.Auth.LinkSecret == "" {
		errs = append(errs, errors.New("LINK_SECRET is required"))
	}
	if c.Auth.LinkIssuer == "" {
		c.Auth.LinkIssuer = "call-insights"
	}
	if c.Auth.LinkTTL <= 0 {
		c.Auth.LinkTTL = 15 * time.Minute
	}

	if c.Storage.GCSBucket == "" && c.IsProduction() {
		errs = append(errs, errors.New("GCS_BUCKET is required in production"))
	}
	if c.Storage.QuotaBytes < 0 {
		errs = append(errs, errors.New("STORAGE_QUOTA_BYTES must not be negative"))
	}

	if c.OTel.Enabled {
		switch c.OTel.Exporter {
		case "":
			c.OTel.Exporter = "stdout"
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Errorf("OTEL_EXPORTER must be one of stdout, otlp, got %q", c.OTel.Exporter))
		}
		if c.OTel.Exporter == "otlp" && c.OTel.Endpoint == "" {
			errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp exporter"))
		}
	}
	if c.OTel.ServiceName == "" {
		c.OTel.ServiceName = "call-insights"
	}
	if c.OTel.SampleRatio <= 0 || c.OTel.SampleRatio > 1 {
		c.OTel.SampleRatio = 1
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// envSecret keeps surrounding whitespace; secrets are taken verbatim.
func envSecret(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envList(key string, dst *[]string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func envInt(errs []error, key string, dst *int) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	*dst = n
	return errs
}

func envDuration(errs []error, key string, dst *time.Duration) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	*dst = d
	return errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
