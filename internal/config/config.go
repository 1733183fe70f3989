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
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; pairs with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "gemwallet-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "gemwallet-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// SessionTTL is the absolute session lifetime from issuance (e.g. "1h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// HeartbeatGrace is how long a session may go without a heartbeat before it is treated as abandoned (e.g. "2m").
	HeartbeatGrace string `mapstructure:"HEARTBEAT_GRACE"`
	// SweepInterval is the period between expiry sweeps (e.g. "1m").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// SweepInitialDelay is how long the sweeper waits after startup before its first pass (e.g. "10s").
	SweepInitialDelay string `mapstructure:"SWEEP_INITIAL_DELAY"`
	// SafetyBuffer is the minimum session age before the heartbeat-gap sweep may retire it (e.g. "3m").
	SafetyBuffer string `mapstructure:"SAFETY_BUFFER"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// ExemptOriginPolicy is optional Rego source overriding the default origin-exemption policy.
	ExemptOriginPolicy string `mapstructure:"EXEMPT_ORIGIN_POLICY"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Audit event pipeline (optional). When Kafka brokers are set, the server emits session audit events to Kafka.
	// AuditKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	AuditKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for audit events (default gemwallet-audit).
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the audit worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "gemwallet-auth")
	v.SetDefault("JWT_AUDIENCE", "gemwallet-api")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("HEARTBEAT_GRACE", "2m")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("SWEEP_INITIAL_DELAY", "10s")
	v.SetDefault("SAFETY_BUFFER", "3m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("EXEMPT_ORIGIN_POLICY", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "gemwallet-audit")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "gemwallet-audit-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.SessionTTLDuration() <= cfg.HeartbeatGraceDuration() {
		return nil, errors.New("config: SESSION_TTL must be longer than HEARTBEAT_GRACE")
	}

	return &cfg, nil
}

// SessionTTLDuration parses SessionTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	return durationOr(c.SessionTTL, time.Hour)
}

// HeartbeatGraceDuration parses HeartbeatGrace. Returns 2m if unset or invalid.
func (c *Config) HeartbeatGraceDuration() time.Duration {
	return durationOr(c.HeartbeatGrace, 2*time.Minute)
}

// SweepIntervalDuration parses SweepInterval. Returns 1m if unset or invalid.
func (c *Config) SweepIntervalDuration() time.Duration {
	return durationOr(c.SweepInterval, time.Minute)
}

// SweepInitialDelayDuration parses SweepInitialDelay. Returns 10s if unset or invalid.
func (c *Config) SweepInitialDelayDuration() time.Duration {
	return durationOr(c.SweepInitialDelay, 10*time.Second)
}

// SafetyBufferDuration parses SafetyBuffer. Returns 3m if unset or invalid.
func (c *Config) SafetyBufferDuration() time.Duration {
	return durationOr(c.SafetyBuffer, 3*time.Minute)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the audit pipeline is enabled (non-empty list) and to create the producer.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil || c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
