package db

import "time"

type ProofModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	// Unique per uploader among live rows; a soft-deleted proof frees the
	// device for re-ingestion.
	DeviceID      string `gorm:"index:idx_proofs_uploader_device,unique,where:deleted = false;not null"`
	UploadedBy    string `gorm:"index:idx_proofs_uploader_device,unique,where:deleted = false;not null"`
	DeviceType    string
	FileHash      string `gorm:"index;not null"`
	HashAlgorithm string `gorm:"not null"`
	WipingMethod  string `gorm:"not null"`
	WipingPasses  int

	Status         string `gorm:"index;not null"`
	WipingStart    *time.Time
	WipingEnd      *time.Time
	WipingDuration int64

	ExpirationDate   *time.Time `gorm:"index"`
	VerificationDate *time.Time
	VerifiedBy       string

	StandardsJSON []byte `gorm:"type:jsonb"`
	FilePath      string
	FileSize      int64
	FileMimeType  string

	CertificateID string `gorm:"index"`

	Deleted   bool `gorm:"not null;default:false"`
	DeletedAt *time.Time

	Version   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ProofModel) TableName() string {
	return "proofs"
}

// ProofTrailModel rows are append-only; ordering is by Seq within a proof.
type ProofTrailModel struct {
	ID        int64  `gorm:"primaryKey"`
	ProofID   string `gorm:"type:uuid;index;not null"`
	Seq       int64  `gorm:"not null"`
	Action    string `gorm:"not null"`
	Actor     string `gorm:"not null"`
	Timestamp time.Time `gorm:"not null"`
	Detail    string
	Origin    string
}

func (ProofTrailModel) TableName() string {
	return "proof_audit_trail"
}

type CertificateModel struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	CertificateID    string `gorm:"uniqueIndex;not null"`
	VerificationCode string `gorm:"uniqueIndex;not null"`

	Status       string `gorm:"index;not null"`
	Organization string `gorm:"not null"`
	Contact      string

	DevicesJSON   []byte `gorm:"type:jsonb;not null"`
	StandardsJSON []byte `gorm:"type:jsonb"`

	ValidityStart time.Time `gorm:"not null"`
	ValidityEnd   time.Time `gorm:"index;not null"`

	TotalDevices    int `gorm:"not null"`
	SuccessfulWipes int `gorm:"not null"`
	FailedWipes     int `gorm:"not null"`

	SignatureAlg   string `gorm:"not null"`
	SignatureValue string `gorm:"not null"`
	PublicKeyPEM   string `gorm:"not null"`

	RevocationReason string
	RevokedAt        *time.Time
	RevokedBy        string

	IssuedBy string
	IssuedAt *time.Time

	DownloadsJSON []byte `gorm:"type:jsonb"`

	Version   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string {
	return "certificates"
}

type AuditEntryModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Action      string `gorm:"not null"`
	ActionType  string `gorm:"index;not null"`
	Actor       string `gorm:"index;not null"`
	TargetID    string `gorm:"index"`
	TargetType  string
	IPAddress   string
	UserAgent   string
	Geolocation string
	Detail      string
	MetadataJSON []byte `gorm:"type:jsonb"`

	Status   string `gorm:"index;not null"`
	Severity string `gorm:"index;not null"`
	Category string `gorm:"index;not null"`

	IsSystemAction bool `gorm:"not null;default:false"`

	CreatedAt     time.Time `gorm:"index;not null"`
	RetentionDate time.Time `gorm:"index;not null"`
	IsArchived    bool      `gorm:"index;not null;default:false"`
	ArchivedAt    *time.Time
	Anonymized    bool `gorm:"not null;default:false"`
}

func (AuditEntryModel) TableName() string {
	return "audit_entries"
}
