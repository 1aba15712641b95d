package domain

import "time"

// VerificationResult is the public projection returned for a lookup by
// verification code. It must never carry private key material, raw signature
// bytes, or device detail beyond what a certificate already discloses.
type VerificationResult struct {
	Found   bool                `json:"found"`
	Valid   bool                `json:"valid"`
	Expired bool                `json:"expired"`
	Summary VerificationSummary `json:"summary,omitempty"`
}

type VerificationSummary struct {
	CertificateID string           `json:"certificate_id,omitempty"`
	Status        string           `json:"status,omitempty"`
	Organization  string           `json:"organization,omitempty"`
	DeviceCount   int              `json:"device_count,omitempty"`
	Standards     []StandardResult `json:"standards,omitempty"`
	ValidFrom     *time.Time       `json:"valid_from,omitempty"`
	ValidUntil    *time.Time       `json:"valid_until,omitempty"`
	IssuedAt      *time.Time       `json:"issued_at,omitempty"`
}
