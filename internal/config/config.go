// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// AdminAddr serves /metrics, /healthz and /readyz over HTTP. Empty disables the admin listener.
	AdminAddr string `mapstructure:"ADMIN_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// RedisAddr is the host:port of the shared session store.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// SessionKeyPrefix namespaces every session and lock key (e.g. "auth:").
	SessionKeyPrefix string `mapstructure:"SESSION_KEY_PREFIX"`

	// JWTSecret enables HS256 signing. Ignored when a key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime and therefore the session record TTL (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// RefreshLockTTL bounds how long a refresh lock blocks other refreshes of the same session.
	RefreshLockTTL string `mapstructure:"REFRESH_LOCK_TTL"`
	// UpstreamTimeout applies to every store, directory, and policy call.
	UpstreamTimeout string `mapstructure:"UPSTREAM_TIMEOUT"`

	// PasswordHash selects the hasher: bcrypt or argon2id.
	PasswordHash string `mapstructure:"PASSWORD_HASH"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// DatabaseURL is the Postgres DSN of the account directory. When set and DirectoryAddr is
	// empty, the directory is served in-process and registered on the same gRPC server.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DirectoryAddr is the gRPC target of a remote DirectoryService.
	DirectoryAddr string `mapstructure:"DIRECTORY_ADDR"`
	// LoginPolicyFile is an optional Rego file replacing the built-in login policy.
	LoginPolicyFile string `mapstructure:"LOGIN_POLICY_FILE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsTopic is the Kafka topic for login/refresh/logout events.
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the security event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint enables OTLP export of traces, metrics and logs when non-empty.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("ADMIN_ADDR", ":9090")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_KEY_PREFIX", "auth:")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "collab-auth")
	v.SetDefault("JWT_AUDIENCE", "collab-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("REFRESH_LOCK_TTL", "10s")
	v.SetDefault("UPSTREAM_TIMEOUT", "3s")
	v.SetDefault("PASSWORD_HASH", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DIRECTORY_ADDR", "")
	v.SetDefault("LOGIN_POLICY_FILE", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "collab-security-events")
	v.SetDefault("KAFKA_GROUP_ID", "collab-security-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		return errors.New("config: JWT_ISSUER and JWT_AUDIENCE must be set")
	}
	hasPair := c.JWTPrivateKey != "" && c.JWTPublicKey != ""
	if !hasPair && c.JWTSecret == "" {
		return errors.New("config: set JWT_SECRET or both JWT_PRIVATE_KEY and JWT_PUBLIC_KEY")
	}
	if !hasPair && len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 bytes")
	}

	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	switch strings.ToLower(c.PasswordHash) {
	case "", "bcrypt", "argon2id":
	default:
		return errors.New("config: PASSWORD_HASH must be bcrypt or argon2id")
	}

	if c.AccessTTL() >= c.RefreshTTL() {
		return errors.New("config: JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}
	if c.LockTTL() <= c.CallTimeout() {
		return errors.New("config: REFRESH_LOCK_TTL must be greater than UPSTREAM_TIMEOUT")
	}
	if c.LockTTL() >= c.RefreshTTL() {
		return errors.New("config: REFRESH_LOCK_TTL must be shorter than JWT_REFRESH_TTL")
	}
	return nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// LockTTL parses RefreshLockTTL. Returns 10s if unset or invalid.
func (c *Config) LockTTL() time.Duration {
	return parseDuration(c.RefreshLockTTL, 10*time.Second)
}

// CallTimeout parses UpstreamTimeout. Returns 3s if unset or invalid.
func (c *Config) CallTimeout() time.Duration {
	return parseDuration(c.UpstreamTimeout, 3*time.Second)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka dispatcher and the worker.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
