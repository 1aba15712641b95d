package domain

import "time"

type ProofStatus string

const (
	ProofStatusPending    ProofStatus = "pending"
	ProofStatusProcessing ProofStatus = "processing"
	ProofStatusVerified   ProofStatus = "verified"
	ProofStatusFailed     ProofStatus = "failed"
	ProofStatusExpired    ProofStatus = "expired"
)

// ProofRetentionYears is how long a proof stays valid after upload.
const ProofRetentionYears = 7

type WipingMethod string

const (
	WipeNISTClear     WipingMethod = "nist_800_88_clear"
	WipeNISTPurge     WipingMethod = "nist_800_88_purge"
	WipeDoD522022M    WipingMethod = "dod_5220_22_m"
	WipeGutmann       WipingMethod = "gutmann"
	WipeATASecure     WipingMethod = "ata_secure_erase"
	WipeCryptoErase   WipingMethod = "crypto_erase"
	WipeSinglePass    WipingMethod = "single_pass_overwrite"
	WipePhysicalShred WipingMethod = "physical_destruction"
)

var proofTransitions = map[ProofStatus][]ProofStatus{
	ProofStatusPending:    {ProofStatusProcessing, ProofStatusVerified, ProofStatusFailed},
	ProofStatusProcessing: {ProofStatusVerified, ProofStatusFailed},
	ProofStatusVerified:   {ProofStatusExpired},
	ProofStatusFailed:     {},
	ProofStatusExpired:    {},
}

// ProofTransitionAllowed reports whether a proof may move from one status to
// another. verified -> expired is time-driven only; callers enforce that.
func ProofTransitionAllowed(from, to ProofStatus) bool {
	for _, next := range proofTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type StandardResult struct {
	Standard  string `json:"standard"`
	Compliant bool   `json:"compliant"`
	Notes     string `json:"notes,omitempty"`
}

// ProofTrailEntry is one record in a proof's embedded, append-only trail.
type ProofTrailEntry struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
	Origin    string    `json:"origin,omitempty"`
}

// FileRef describes the stored proof file as reported by blob storage. The
// service never reads file bytes itself beyond hashing at ingestion.
type FileRef struct {
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	MimeType    string `json:"mime_type"`
	ContentHash string `json:"content_hash"`
}

type Proof struct {
	ID            string
	DeviceID      string
	DeviceType    string
	FileHash      string
	HashAlgorithm string
	WipingMethod  WipingMethod
	WipingPasses  int
	Status        ProofStatus

	WipingStart    *time.Time
	WipingEnd      *time.Time
	WipingDuration int64 // seconds, derived when both endpoints are set

	ExpirationDate   *time.Time
	VerificationDate *time.Time
	VerifiedBy       string

	ComplianceStandards []StandardResult
	File                FileRef

	// CertificateID is set while the proof is booked by a live certificate.
	CertificateID string

	UploadedBy string
	Deleted    bool
	DeletedAt  *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	AuditTrail []ProofTrailEntry
}

// DeriveWipingDuration computes the duration whenever both endpoints are set.
func (p *Proof) DeriveWipingDuration() {
	if p.WipingStart != nil && p.WipingEnd != nil {
		p.WipingDuration = int64(p.WipingEnd.Sub(*p.WipingStart).Seconds())
	}
}

// DefaultProofExpiration returns creation time plus the retention window.
func DefaultProofExpiration(createdAt time.Time) time.Time {
	return createdAt.AddDate(ProofRetentionYears, 0, 0)
}

func (p *Proof) IsExpired(now time.Time) bool {
	return p.ExpirationDate != nil && p.ExpirationDate.Before(now)
}

// ComplianceSummary aggregates per-standard results for a proof.
type ComplianceSummary struct {
	Total      int `json:"total"`
	Compliant  int `json:"compliant"`
	Percentage int `json:"percentage"`
}

func (p *Proof) ComplianceSummary() ComplianceSummary {
	summary := ComplianceSummary{Total: len(p.ComplianceStandards)}
	for _, result := range p.ComplianceStandards {
		if result.Compliant {
			summary.Compliant++
		}
	}
	if summary.Total > 0 {
		summary.Percentage = int(float64(summary.Compliant)/float64(summary.Total)*100 + 0.5)
	}
	return summary
}
