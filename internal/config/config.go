package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	// SigningKeyPEM is the PEM-encoded private key for certificate
	// signatures. Empty means an ephemeral dev key is generated at boot.
	SigningKeyPEM       string
	SigningKeyAlgorithm string

	PolicyPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VerifyCacheTTLSeconds int

	ProofSweepMinutes    int
	CertSweepMinutes     int
	AuditArchiveDays     int
	AuditArchiveInterval int // hours, 0 disables the sweep

	// RateLimitRequests caps public verification lookups per client IP
	// within the window. 0 disables throttling.
	RateLimitRequests      int
	RateLimitWindowSeconds int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:              addr,
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		LogLevel:              envDefault("LOG_LEVEL", "info"),
		SigningKeyPEM:         os.Getenv("SIGNING_KEY_PEM"),
		SigningKeyAlgorithm:   envDefault("SIGNING_KEY_ALGORITHM", "SHA256withRSA"),
		PolicyPath:            os.Getenv("ISSUANCE_POLICY_PATH"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               envIntDefault("REDIS_DB", 0),
		VerifyCacheTTLSeconds: envIntDefault("VERIFY_CACHE_TTL_SECONDS", 300),
		ProofSweepMinutes:     envIntDefault("PROOF_SWEEP_MINUTES", 60),
		CertSweepMinutes:      envIntDefault("CERT_SWEEP_MINUTES", 60),
		AuditArchiveDays:      envIntDefault("AUDIT_ARCHIVE_DAYS", 365),
		AuditArchiveInterval:  envIntDefault("AUDIT_ARCHIVE_INTERVAL_HOURS", 24),

		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func (c Config) VerifyCacheTTL() time.Duration {
	return time.Duration(c.VerifyCacheTTLSeconds) * time.Second
}

func (c Config) ProofSweepInterval() time.Duration {
	if c.ProofSweepMinutes <= 0 {
		return 0
	}
	return time.Duration(c.ProofSweepMinutes) * time.Minute
}

func (c Config) CertSweepInterval() time.Duration {
	if c.CertSweepMinutes <= 0 {
		return 0
	}
	return time.Duration(c.CertSweepMinutes) * time.Minute
}

func (c Config) AuditArchiveSweepInterval() time.Duration {
	if c.AuditArchiveInterval <= 0 {
		return 0
	}
	return time.Duration(c.AuditArchiveInterval) * time.Hour
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
