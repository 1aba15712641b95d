package usecase

import (
	"context"
	"time"

	"wipetrace/internal/domain"
)

type Clock func() time.Time

// ProofStatusUpdate is the full set of fields a status transition may touch.
// The repository applies it together with the trail entry as one atomic unit.
type ProofStatusUpdate struct {
	NewStatus        domain.ProofStatus
	VerificationDate *time.Time
	VerifiedBy       string
	TrailEntry       domain.ProofTrailEntry
}

type ProofRepository interface {
	Create(ctx context.Context, proof *domain.Proof) error
	GetByID(ctx context.Context, id string) (*domain.Proof, error)
	GetByDeviceID(ctx context.Context, uploadedBy, deviceID string) (*domain.Proof, error)

	// UpdateStatusCAS conditionally applies the update where the proof still
	// has the expected status and version. Returns domain.ErrConflict when
	// the guard no longer matches.
	UpdateStatusCAS(ctx context.Context, id string, expect domain.ProofStatus, expectVersion int64, update ProofStatusUpdate) (*domain.Proof, error)

	MarkDeleted(ctx context.Context, id string, at time.Time) error


	// ExpireDue moves verified proofs past their expiration date to expired,
	// appending a trail entry per proof. Returns how many were expired.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type CertificateStatusUpdate struct {
	NewStatus  domain.CertificateStatus
	IssuedBy   string
	IssuedAt   *time.Time
	Revocation *domain.Revocation
	// ReleaseProofs unbooks every proof held by the certificate in the same
	// transaction as the status change, so a revoked certificate can never
	// keep its proofs booked.
	ReleaseProofs bool
}

type CertificateRepository interface {
	// CreateWithReservation persists the certificate and books every listed
	// proof in a single transaction; if any proof fails its guard nothing is
	// written.
	CreateWithReservation(ctx context.Context, cert *domain.Certificate, proofIDs []string) error

	GetByID(ctx context.Context, id string) (*domain.Certificate, error)
	GetByCertificateID(ctx context.Context, certificateID string) (*domain.Certificate, error)
	GetByVerificationCode(ctx context.Context, code string) (*domain.Certificate, error)
	VerificationCodeExists(ctx context.Context, code string) (bool, error)

	UpdateStatusCAS(ctx context.Context, id string, expect domain.CertificateStatus, expectVersion int64, update CertificateStatusUpdate) (*domain.Certificate, error)

	AppendDownload(ctx context.Context, id string, record domain.DownloadRecord) error

	// ExpireDue marks issued certificates whose validity end has passed as
	// expired. Revoked certificates are never touched.
	ExpireDue(ctx context.Context, now time.Time) ([]domain.Certificate, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	GetByID(ctx context.Context, id string) (*domain.AuditEntry, error)
	List(ctx context.Context, filter AuditListFilter) ([]domain.AuditEntry, error)
	ArchiveOlderThan(ctx context.Context, cutoff, archivedAt time.Time) (int64, error)
	Anonymize(ctx context.Context, id, detail string) error
	Statistics(ctx context.Context, since time.Time) (domain.AuditStatistics, error)
}

type AuditListFilter struct {
	TargetID        string
	Category        domain.AuditCategory
	Severity        domain.AuditSeverity
	IncludeArchived bool
	Limit           int
}

// VerificationCache holds public lookup results for a short TTL.
type VerificationCache interface {
	Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error)
	Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error
}

// IssuancePolicy may veto certificate generation based on the snapshot about
// to be signed. A nil engine allows everything.
type IssuancePolicy interface {
	Evaluate(ctx context.Context, input PolicyInput) (PolicyDecision, error)
}

type PolicyInput struct {
	IssuedTo  domain.IssuedTo            `json:"issued_to"`
	Devices   []domain.DeviceSnapshot    `json:"devices"`
	Standards []domain.StandardResult    `json:"standards"`
	Metadata  domain.CertificateMetadata `json:"metadata"`
}

type PolicyDecision struct {
	Allow bool         `json:"allow"`
	Deny  []DenyReason `json:"deny,omitempty"`
}

type DenyReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Signer produces the digital signature block for a certificate snapshot.
type Signer interface {
	SignCertificate(cert domain.Certificate) (domain.DigitalSignature, error)
}
