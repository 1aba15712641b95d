package main

import (
	"context"
	"log"
	"time"

	"wipetrace/internal/config"
	"wipetrace/internal/domain"
	httpinfra "wipetrace/internal/http"
	"wipetrace/internal/infra/cachemem"
	"wipetrace/internal/infra/cacheredis"
	"wipetrace/internal/infra/crypto"
	"wipetrace/internal/infra/db"
	"wipetrace/internal/infra/keys/soft"
	"wipetrace/internal/infra/policyopa"
	"wipetrace/internal/infra/ratelimit"
	"wipetrace/internal/usecase"
)

func main() {
	cfg := config.FromEnv()

	gdb, err := db.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	key, err := loadSigningKey(cfg)
	if err != nil {
		log.Fatalf("failed to load signing key: %v", err)
	}
	signer := crypto.NewService(key)

	var cache usecase.VerificationCache
	if cfg.RedisAddr != "" {
		redisCache, err := cacheredis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		log.Printf("REDIS_ADDR unset, using in-process verification cache")
		cache = cachemem.New()
	}

	var policy usecase.IssuancePolicy
	if cfg.PolicyPath != "" {
		engine, err := policyopa.NewEngineFromPath(context.Background(), cfg.PolicyPath)
		if err != nil {
			log.Fatalf("failed to load issuance policy: %v", err)
		}
		policy = engine
	}

	proofRepo := db.NewProofRepository(gdb)
	certRepo := db.NewCertificateRepository(gdb)
	auditRepo := db.NewAuditRepository(gdb)

	audit := usecase.NewAuditRecorder(auditRepo, nil)
	defer audit.Close()

	proofs := usecase.NewProofService(proofRepo, certRepo, audit, nil)
	certs := usecase.NewCertificateService(certRepo, proofRepo, signer, policy, audit, nil)
	verify := usecase.NewVerificationService(certRepo, audit, cache, cfg.VerifyCacheTTL(), nil)

	limiter, err := buildLimiter(cfg)
	if err != nil {
		log.Fatalf("failed to build rate limiter: %v", err)
	}

	startSweeps(cfg, proofs, certs, audit)
	go drainAuditFailures(audit)

	srv := httpinfra.NewServer(cfg, httpinfra.Deps{
		Proofs:  proofs,
		Certs:   certs,
		Verify:  verify,
		Audit:   audit,
		Limiter: limiter,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func loadSigningKey(cfg config.Config) (*soft.Manager, error) {
	if cfg.SigningKeyPEM != "" {
		return soft.NewManagerFromPEM(cfg.SigningKeyPEM)
	}
	log.Printf("SIGNING_KEY_PEM unset, generating ephemeral %s key (dev mode)", cfg.SigningKeyAlgorithm)
	if cfg.SigningKeyAlgorithm == crypto.AlgEd25519 {
		return soft.NewEphemeralEd25519()
	}
	return soft.NewEphemeralRSA()
}

// buildLimiter picks the rate limiter backing for the public verify route.
// Redis keeps counters shared across replicas; memory suffices for a single
// instance.
func buildLimiter(cfg config.Config) (domain.RateLimiter, error) {
	if cfg.RateLimitRequests <= 0 {
		return nil, nil
	}
	if cfg.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Now)
		if err != nil {
			return nil, err
		}
		return limiter, nil
	}
	return ratelimit.NewMemoryLimiter(time.Now, 0), nil
}

// startSweeps launches the periodic lifecycle sweeps. Each sweep is
// idempotent so missed or doubled ticks are harmless.
func startSweeps(cfg config.Config, proofs *usecase.ProofService, certs *usecase.CertificateService, audit *usecase.AuditRecorder) {
	if interval := cfg.ProofSweepInterval(); interval > 0 {
		go runSweep(interval, "proof expiry", func(ctx context.Context) error {
			_, err := proofs.ExpireDue(ctx)
			return err
		})
	}
	if interval := cfg.CertSweepInterval(); interval > 0 {
		go runSweep(interval, "certificate expiry", func(ctx context.Context) error {
			_, err := certs.RecomputeExpiry(ctx)
			return err
		})
	}
	if interval := cfg.AuditArchiveSweepInterval(); interval > 0 {
		go runSweep(interval, "audit archival", func(ctx context.Context) error {
			_, err := audit.ArchiveOlderThan(ctx, cfg.AuditArchiveDays)
			return err
		})
	}
}

func runSweep(interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := fn(ctx); err != nil {
			log.Printf("%s sweep failed: %v", name, err)
		}
		cancel()
	}
}

func drainAuditFailures(audit *usecase.AuditRecorder) {
	for failure := range audit.Failures() {
		log.Printf("audit entry lost action=%s target=%s: %v",
			failure.Entry.ActionType, failure.Entry.TargetID, failure.Err)
	}
}
