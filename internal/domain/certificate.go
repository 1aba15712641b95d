package domain

import "time"

type CertificateStatus string

const (
	CertStatusDraft     CertificateStatus = "draft"
	CertStatusGenerated CertificateStatus = "generated"
	CertStatusIssued    CertificateStatus = "issued"
	CertStatusRevoked   CertificateStatus = "revoked"
	CertStatusExpired   CertificateStatus = "expired"
)

var certificateTransitions = map[CertificateStatus][]CertificateStatus{
	CertStatusDraft:     {CertStatusGenerated},
	CertStatusGenerated: {CertStatusIssued, CertStatusRevoked},
	CertStatusIssued:    {CertStatusRevoked, CertStatusExpired},
	CertStatusRevoked:   {},
	CertStatusExpired:   {},
}

func CertificateTransitionAllowed(from, to CertificateStatus) bool {
	for _, next := range certificateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type RevocationReason string

const (
	RevocationSuperseded          RevocationReason = "superseded"
	RevocationCompromised         RevocationReason = "compromised"
	RevocationCessation           RevocationReason = "cessation_of_operation"
	RevocationPrivilegeWithdrawn  RevocationReason = "privilege_withdrawn"
	RevocationCACompromise        RevocationReason = "ca_compromise"
)

func ValidRevocationReason(reason RevocationReason) bool {
	switch reason {
	case RevocationSuperseded, RevocationCompromised, RevocationCessation,
		RevocationPrivilegeWithdrawn, RevocationCACompromise:
		return true
	}
	return false
}

// DeviceSnapshot freezes the proof fields a certificate attests to at
// bundling time. Later proof mutation cannot alter an issued certificate.
type DeviceSnapshot struct {
	ProofID      string       `json:"proof_id"`
	DeviceID     string       `json:"device_id"`
	DeviceType   string       `json:"device_type"`
	WipingMethod WipingMethod `json:"wiping_method"`
	WipeDate     *time.Time   `json:"wipe_date,omitempty"`
	Verified     bool         `json:"verified"`
}

type IssuedTo struct {
	Organization string `json:"organization"`
	Contact      string `json:"contact,omitempty"`
}

type ValidityPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (v ValidityPeriod) Contains(t time.Time) bool {
	return !t.Before(v.Start) && !t.After(v.End)
}

type DigitalSignature struct {
	Algorithm string `json:"algorithm"`
	Signature string `json:"signature"` // base64
	PublicKey string `json:"public_key"` // PEM
}

type Revocation struct {
	Reason    RevocationReason `json:"reason"`
	Date      time.Time        `json:"date"`
	RevokedBy string           `json:"revoked_by"`
}

// CertificateMetadata counts must always equal what devices[] derives to.
type CertificateMetadata struct {
	TotalDevices    int `json:"total_devices"`
	SuccessfulWipes int `json:"successful_wipes"`
	FailedWipes     int `json:"failed_wipes"`
}

func DeriveMetadata(devices []DeviceSnapshot) CertificateMetadata {
	meta := CertificateMetadata{TotalDevices: len(devices)}
	for _, d := range devices {
		if d.Verified {
			meta.SuccessfulWipes++
		} else {
			meta.FailedWipes++
		}
	}
	return meta
}

type DownloadRecord struct {
	Actor        string    `json:"actor"`
	Format       string    `json:"format"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

type Certificate struct {
	ID               string
	CertificateID    string // human-readable, globally unique
	VerificationCode string // opaque public lookup token

	Status     CertificateStatus
	IssuedTo   IssuedTo
	Devices    []DeviceSnapshot
	Standards  []StandardResult
	Validity   ValidityPeriod
	Metadata   CertificateMetadata
	Signature  DigitalSignature
	Revocation *Revocation

	IssuedBy string
	IssuedAt *time.Time

	DownloadHistory []DownloadRecord

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
