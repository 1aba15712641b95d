package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"wipetrace/internal/domain"

	"github.com/google/uuid"
)

// CertificateService bundles verified proofs into signed compliance
// certificates and owns their issue/revoke/expire transitions.
type CertificateService struct {
	Certs  CertificateRepository
	Proofs ProofRepository
	Signer Signer
	Policy IssuancePolicy
	Audit  *AuditRecorder
	Clock  Clock
}

func NewCertificateService(certs CertificateRepository, proofs ProofRepository, signer Signer, policy IssuancePolicy, audit *AuditRecorder, clock Clock) *CertificateService {
	if clock == nil {
		clock = time.Now
	}
	return &CertificateService{
		Certs:  certs,
		Proofs: proofs,
		Signer: signer,
		Policy: policy,
		Audit:  audit,
		Clock:  clock,
	}
}

type GenerateCertificateInput struct {
	ProofIDs  []string
	IssuedTo  domain.IssuedTo
	Standards []domain.StandardResult
	Validity  domain.ValidityPeriod
	Actor     domain.Principal
	ClientIP  string
}

const codeAllocationAttempts = 5

// Generate snapshots every referenced proof, signs the bundle, and persists
// certificate plus proof reservations as one all-or-nothing operation.
func (s *CertificateService) Generate(ctx context.Context, input GenerateCertificateInput) (*domain.Certificate, error) {
	if len(input.ProofIDs) == 0 {
		return nil, domain.NewValidationError("at least one proof is required")
	}
	if strings.TrimSpace(input.IssuedTo.Organization) == "" {
		return nil, domain.NewValidationError("issued_to organization is required")
	}
	if !input.Validity.End.After(input.Validity.Start) {
		return nil, domain.NewValidationError("validity period end must be after start")
	}

	devices := make([]domain.DeviceSnapshot, 0, len(input.ProofIDs))
	seen := make(map[string]struct{}, len(input.ProofIDs))
	for _, proofID := range input.ProofIDs {
		if _, dup := seen[proofID]; dup {
			return nil, domain.NewValidationError("duplicate proof reference %s", proofID)
		}
		seen[proofID] = struct{}{}

		proof, err := s.Proofs.GetByID(ctx, proofID)
		if err != nil {
			return nil, err
		}
		if proof.Deleted {
			return nil, domain.ErrNotFound
		}
		if proof.Status != domain.ProofStatusVerified {
			return nil, domain.NewValidationError("proof for device %s is %s, not verified", proof.DeviceID, proof.Status)
		}
		if proof.CertificateID != "" {
			return nil, domain.NewValidationError("proof for device %s already belongs to certificate %s", proof.DeviceID, proof.CertificateID)
		}
		devices = append(devices, domain.DeviceSnapshot{
			ProofID:      proof.ID,
			DeviceID:     proof.DeviceID,
			DeviceType:   proof.DeviceType,
			WipingMethod: proof.WipingMethod,
			WipeDate:     proof.WipingEnd,
			Verified:     true,
		})
	}

	meta := domain.DeriveMetadata(devices)
	if s.Policy != nil {
		decision, err := s.Policy.Evaluate(ctx, PolicyInput{
			IssuedTo:  input.IssuedTo,
			Devices:   devices,
			Standards: input.Standards,
			Metadata:  meta,
		})
		if err != nil {
			return nil, err
		}
		if !decision.Allow {
			return nil, domain.NewValidationError("issuance denied by policy: %s", formatDenyReasons(decision.Deny))
		}
	}

	now := s.Clock().UTC()
	cert := &domain.Certificate{
		ID:        uuid.NewString(),
		Status:    domain.CertStatusGenerated,
		IssuedTo:  input.IssuedTo,
		Devices:   devices,
		Standards: input.Standards,
		Validity:  input.Validity,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	cert.CertificateID, err = newCertificateID(now)
	if err != nil {
		return nil, err
	}
	cert.VerificationCode, err = s.allocateVerificationCode(ctx)
	if err != nil {
		return nil, err
	}

	cert.Signature, err = s.Signer.SignCertificate(*cert)
	if err != nil {
		return nil, err
	}

	if err := s.Certs.CreateWithReservation(ctx, cert, input.ProofIDs); err != nil {
		return nil, err
	}
	s.Audit.Record(domain.AuditEntry{
		Action:     fmt.Sprintf("certificate %s generated for %d devices", cert.CertificateID, meta.TotalDevices),
		ActionType: domain.ActionCertGenerated,
		Actor:      input.Actor.Subject,
		TargetID:   cert.ID,
		TargetType: "certificate",
		IPAddress:  input.ClientIP,
		Status:     domain.AuditStatusSuccess,
		Severity:   domain.SeverityMedium,
		Category:   domain.CategoryDataModification,
	})
	return cert, nil
}

// Issue moves a generated certificate to issued. Issued certificates are
// immutable except for status and download history.
func (s *CertificateService) Issue(ctx context.Context, certID string, actor domain.Principal) (*domain.Certificate, error) {
	cert, err := s.Certs.GetByID(ctx, certID)
	if err != nil {
		return nil, err
	}
	if cert.Status != domain.CertStatusGenerated {
		return nil, domain.NewInvalidTransition("certificate", string(cert.Status), string(domain.CertStatusIssued))
	}
	now := s.Clock().UTC()
	updated, err := s.Certs.UpdateStatusCAS(ctx, cert.ID, cert.Status, cert.Version, CertificateStatusUpdate{
		NewStatus: domain.CertStatusIssued,
		IssuedBy:  actor.Subject,
		IssuedAt:  &now,
	})
	if err != nil {
		return nil, err
	}
	s.Audit.Record(domain.AuditEntry{
		Action:     fmt.Sprintf("certificate %s issued to %s", cert.CertificateID, cert.IssuedTo.Organization),
		ActionType: domain.ActionCertIssued,
		Actor:      actor.Subject,
		TargetID:   cert.ID,
		TargetType: "certificate",
		Status:     domain.AuditStatusSuccess,
		Severity:   domain.SeverityMedium,
		Category:   domain.CategoryDataModification,
	})
	return updated, nil
}

// Revoke is terminal and requires a reason from the closed set. Proofs booked
// by the certificate become available again.
func (s *CertificateService) Revoke(ctx context.Context, certID string, reason domain.RevocationReason, actor domain.Principal) (*domain.Certificate, error) {
	if !domain.ValidRevocationReason(reason) {
		return nil, domain.NewValidationError("unrecognized revocation reason %q", reason)
	}
	cert, err := s.Certs.GetByID(ctx, certID)
	if err != nil {
		return nil, err
	}
	if !domain.CertificateTransitionAllowed(cert.Status, domain.CertStatusRevoked) {
		return nil, domain.NewInvalidTransition("certificate", string(cert.Status), string(domain.CertStatusRevoked))
	}
	now := s.Clock().UTC()
	updated, err := s.Certs.UpdateStatusCAS(ctx, cert.ID, cert.Status, cert.Version, CertificateStatusUpdate{
		NewStatus: domain.CertStatusRevoked,
		Revocation: &domain.Revocation{
			Reason:    reason,
			Date:      now,
			RevokedBy: actor.Subject,
		},
		ReleaseProofs: true,
	})
	if err != nil {
		return nil, err
	}
	s.Audit.Record(domain.AuditEntry{
		Action:     fmt.Sprintf("certificate %s revoked: %s", cert.CertificateID, reason),
		ActionType: domain.ActionCertRevoked,
		Actor:      actor.Subject,
		TargetID:   cert.ID,
		TargetType: "certificate",
		Status:     domain.AuditStatusWarning,
		Severity:   domain.SeverityHigh,
		Category:   domain.CategorySecurity,
	})
	return updated, nil
}

// RecomputeExpiry is the periodic sweep marking issued certificates past
// their validity end as expired. Revoked certificates are never overwritten,
// and re-running is a no-op for already-expired ones.
func (s *CertificateService) RecomputeExpiry(ctx context.Context) (int64, error) {
	expired, err := s.Certs.ExpireDue(ctx, s.Clock().UTC())
	if err != nil {
		return 0, err
	}
	for _, cert := range expired {
		s.Audit.Record(domain.AuditEntry{
			Action:         fmt.Sprintf("certificate %s expired", cert.CertificateID),
			ActionType:     domain.ActionCertExpired,
			TargetID:       cert.ID,
			TargetType:     "certificate",
			Status:         domain.AuditStatusInfo,
			Severity:       domain.SeverityLow,
			Category:       domain.CategorySystem,
			IsSystemAction: true,
		})
	}
	return int64(len(expired)), nil
}

func (s *CertificateService) Get(ctx context.Context, certID string) (*domain.Certificate, error) {
	return s.Certs.GetByID(ctx, certID)
}

// ExportProjection is the canonical data projection handed to external
// renderers. Signature fields are included verbatim so exports stay
// independently verifiable offline.
type ExportProjection struct {
	CertificateID    string                     `json:"certificate_id"`
	VerificationCode string                     `json:"verification_code"`
	Status           domain.CertificateStatus   `json:"status"`
	IssuedTo         domain.IssuedTo            `json:"issued_to"`
	Devices          []domain.DeviceSnapshot    `json:"devices"`
	Standards        []domain.StandardResult    `json:"compliance_standards"`
	Validity         domain.ValidityPeriod      `json:"validity_period"`
	Metadata         domain.CertificateMetadata `json:"metadata"`
	Signature        domain.DigitalSignature    `json:"digital_signature"`
	CreatedAt        time.Time                  `json:"created_at"`
	IssuedAt         *time.Time                 `json:"issued_at,omitempty"`
	Revocation       *domain.Revocation         `json:"revocation,omitempty"`
}

func (s *CertificateService) Export(ctx context.Context, certID, format string, actor domain.Principal) (*ExportProjection, error) {
	cert, err := s.Certs.GetByID(ctx, certID)
	if err != nil {
		return nil, err
	}
	record := domain.DownloadRecord{
		Actor:        actor.Subject,
		Format:       format,
		DownloadedAt: s.Clock().UTC(),
	}
	if err := s.Certs.AppendDownload(ctx, cert.ID, record); err != nil {
		return nil, err
	}
	s.Audit.Record(domain.AuditEntry{
		Action:     fmt.Sprintf("certificate %s exported as %s", cert.CertificateID, format),
		ActionType: domain.ActionCertExported,
		Actor:      actor.Subject,
		TargetID:   cert.ID,
		TargetType: "certificate",
		Status:     domain.AuditStatusSuccess,
		Severity:   domain.SeverityLow,
		Category:   domain.CategoryDataAccess,
	})
	return &ExportProjection{
		CertificateID:    cert.CertificateID,
		VerificationCode: cert.VerificationCode,
		Status:           cert.Status,
		IssuedTo:         cert.IssuedTo,
		Devices:          cert.Devices,
		Standards:        cert.Standards,
		Validity:         cert.Validity,
		Metadata:         cert.Metadata,
		Signature:        cert.Signature,
		CreatedAt:        cert.CreatedAt,
		IssuedAt:         cert.IssuedAt,
		Revocation:       cert.Revocation,
	}, nil
}

func (s *CertificateService) allocateVerificationCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAllocationAttempts; attempt++ {
		code, err := newVerificationCode()
		if err != nil {
			return "", err
		}
		exists, err := s.Certs.VerificationCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique verification code after %d attempts", codeAllocationAttempts)
}

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func newVerificationCode() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return codeEncoding.EncodeToString(raw), nil
}

func newCertificateID(now time.Time) (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return fmt.Sprintf("WIPE-%d-%s", now.Year(), strings.ToUpper(hex.EncodeToString(raw))), nil
}

func formatDenyReasons(reasons []DenyReason) string {
	if len(reasons) == 0 {
		return "no reason given"
	}
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = r.Code
	}
	return strings.Join(parts, ", ")
}
