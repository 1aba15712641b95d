package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/infra/crypto"
)

// VerificationService is the read-only public view over certificates,
// reachable without authentication via a verification code.
type VerificationService struct {
	Certs    CertificateRepository
	Audit    *AuditRecorder
	Cache    VerificationCache
	CacheTTL time.Duration
	Clock    Clock
}

func NewVerificationService(certs CertificateRepository, audit *AuditRecorder, cache VerificationCache, ttl time.Duration, clock Clock) *VerificationService {
	if clock == nil {
		clock = time.Now
	}
	return &VerificationService{Certs: certs, Audit: audit, Cache: cache, CacheTTL: ttl, Clock: clock}
}

// VerifyByCode resolves a verification code to a public validity statement.
// The result discloses only fields already intended for public view.
func (s *VerificationService) VerifyByCode(ctx context.Context, code, clientIP string) (domain.VerificationResult, error) {
	cert, err := s.Certs.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.recordLookup(code, clientIP, domain.AuditStatusWarning, "verification code did not resolve")
			return domain.VerificationResult{Found: false}, nil
		}
		return domain.VerificationResult{}, err
	}

	now := s.Clock().UTC()
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(ctx, cacheKey(cert)); err == nil && ok && cached != nil {
			// The version key does not move when a validity window lapses
			// between sweeps, so a positive entry must be rechecked against
			// the clock before it is served.
			if !staleValidity(cached, now) {
				s.recordLookup(code, clientIP, domain.AuditStatusSuccess, "served from cache")
				return *cached, nil
			}
		}
	}

	result := domain.VerificationResult{
		Found:   true,
		Valid:   cert.Status == domain.CertStatusIssued && cert.Validity.Contains(now),
		Expired: cert.Status == domain.CertStatusExpired || now.After(cert.Validity.End),
		Summary: publicSummary(cert),
	}

	if s.Cache != nil {
		// Cache writes are advisory, the lookup result stands either way.
		_ = s.Cache.Put(ctx, cacheKey(cert), result, s.cacheTTLFor(cert, now))
	}
	s.recordLookup(code, clientIP, domain.AuditStatusSuccess, fmt.Sprintf("certificate %s valid=%t", cert.CertificateID, result.Valid))
	return result, nil
}

// VerifySignature re-checks a stored certificate signature. Exposed for
// operators auditing integrity; failure is a negative outcome, not an error.
func (s *VerificationService) VerifySignature(ctx context.Context, certID string) (bool, error) {
	cert, err := s.Certs.GetByID(ctx, certID)
	if err != nil {
		return false, err
	}
	return crypto.VerifyCertificate(*cert), nil
}

func publicSummary(cert *domain.Certificate) domain.VerificationSummary {
	standards := make([]domain.StandardResult, len(cert.Standards))
	for i, std := range cert.Standards {
		// Notes can carry internal detail; only name and flag are public.
		standards[i] = domain.StandardResult{Standard: std.Standard, Compliant: std.Compliant}
	}
	validFrom := cert.Validity.Start
	validUntil := cert.Validity.End
	return domain.VerificationSummary{
		CertificateID: cert.CertificateID,
		Status:        string(cert.Status),
		Organization:  cert.IssuedTo.Organization,
		DeviceCount:   cert.Metadata.TotalDevices,
		Standards:     standards,
		ValidFrom:     &validFrom,
		ValidUntil:    &validUntil,
		IssuedAt:      cert.IssuedAt,
	}
}

func (s *VerificationService) recordLookup(code, clientIP string, status domain.AuditStatus, detail string) {
	s.Audit.Record(domain.AuditEntry{
		Action:         "certificate verification lookup",
		ActionType:     domain.ActionCertVerified,
		Actor:          domain.AuditSystemActor,
		TargetID:       code,
		TargetType:     "verification_code",
		IPAddress:      clientIP,
		Detail:         detail,
		Status:         status,
		Severity:       domain.SeverityLow,
		Category:       domain.CategoryDataAccess,
		IsSystemAction: true,
	})
}

// staleValidity reports whether a cached positive result has outlived the
// validity window it was computed in.
func staleValidity(cached *domain.VerificationResult, now time.Time) bool {
	if !cached.Valid || cached.Summary.ValidUntil == nil {
		return false
	}
	return now.After(*cached.Summary.ValidUntil)
}

// cacheTTLFor caps a positive entry's lifetime at the validity end so the
// cache can never outlast the window, whatever the configured TTL.
func (s *VerificationService) cacheTTLFor(cert *domain.Certificate, now time.Time) time.Duration {
	ttl := s.CacheTTL
	if until := cert.Validity.End.Sub(now); until > 0 && until < ttl {
		ttl = until
	}
	return ttl
}

// cacheKey binds the cached result to the certificate's version so any
// lifecycle change invalidates prior entries.
func cacheKey(cert *domain.Certificate) string {
	return cert.VerificationCode + "|" + strconv.FormatInt(cert.Version, 10)
}
