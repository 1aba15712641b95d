package domain

import "time"

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusWarning AuditStatus = "warning"
	AuditStatusError   AuditStatus = "error"
	AuditStatusInfo    AuditStatus = "info"
)

type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

type AuditCategory string

const (
	CategoryAuthentication   AuditCategory = "authentication"
	CategoryAuthorization    AuditCategory = "authorization"
	CategoryDataAccess       AuditCategory = "data_access"
	CategoryDataModification AuditCategory = "data_modification"
	CategorySystem           AuditCategory = "system"
	CategorySecurity         AuditCategory = "security"
)

type AuditActionType string

const (
	ActionProofUploaded     AuditActionType = "proof_uploaded"
	ActionProofTransitioned AuditActionType = "proof_status_changed"
	ActionProofDeleted      AuditActionType = "proof_deleted"
	ActionCertGenerated     AuditActionType = "certificate_generated"
	ActionCertIssued        AuditActionType = "certificate_issued"
	ActionCertRevoked       AuditActionType = "certificate_revoked"
	ActionCertExpired       AuditActionType = "certificate_expired"
	ActionCertExported      AuditActionType = "certificate_exported"
	ActionCertVerified      AuditActionType = "certificate_verified"
	ActionAuditArchived     AuditActionType = "audit_archived"
	ActionAuditAnonymized   AuditActionType = "audit_anonymized"
)

// AuditSystemActor is the actor recorded for unauthenticated or scheduled work.
const AuditSystemActor = "system"

// AuditRetentionYears is the default retention window for audit entries.
const AuditRetentionYears = 7

// AnonymizedDetail replaces PII-bearing detail text once retention has lapsed.
const AnonymizedDetail = "[redacted after retention]"

type AuditEntry struct {
	ID          string
	Action      string
	ActionType  AuditActionType
	Actor       string
	TargetID    string
	TargetType  string
	IPAddress   string
	UserAgent   string
	Geolocation string
	Detail      string
	Metadata    map[string]any

	Status   AuditStatus
	Severity AuditSeverity
	Category AuditCategory

	IsSystemAction bool

	CreatedAt     time.Time
	RetentionDate time.Time
	IsArchived    bool
	ArchivedAt    *time.Time
	Anonymized    bool
}

// DefaultRetentionDate is computed once at creation, never recalculated.
func DefaultRetentionDate(createdAt time.Time) time.Time {
	return createdAt.AddDate(AuditRetentionYears, 0, 0)
}

// EligibleForAnonymization reports whether retention has lapsed.
func (e *AuditEntry) EligibleForAnonymization(now time.Time) bool {
	return now.After(e.RetentionDate)
}

// AuditStatistics aggregates active (non-archived) entries over a window.
type AuditStatistics struct {
	WindowDays int                     `json:"window_days"`
	Total      int64                   `json:"total"`
	ByStatus   map[AuditStatus]int64   `json:"by_status"`
	BySeverity map[AuditSeverity]int64 `json:"by_severity"`
	ByCategory map[AuditCategory]int64 `json:"by_category"`
}
