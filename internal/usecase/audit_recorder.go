package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"wipetrace/internal/domain"

	"github.com/google/uuid"
)

var errAuditQueueFull = errors.New("audit queue full")

// AuditWriteFailure reports one audit entry that could not be persisted.
// Failures are surfaced operationally but never propagated to the business
// call that triggered the write.
type AuditWriteFailure struct {
	Entry domain.AuditEntry
	Err   error
}

// AuditRecorder appends audit entries through a non-blocking writer goroutine
// and owns retention, archival, anonymization and statistics.
type AuditRecorder struct {
	Repo  AuditRepository
	Clock Clock

	queue    chan domain.AuditEntry
	failures chan AuditWriteFailure
	done     chan struct{}
}

const (
	auditQueueSize   = 256
	auditFailureSize = 64
	auditWriteWindow = 5 * time.Second
)

func NewAuditRecorder(repo AuditRepository, clock Clock) *AuditRecorder {
	if clock == nil {
		clock = time.Now
	}
	r := &AuditRecorder{
		Repo:     repo,
		Clock:    clock,
		queue:    make(chan domain.AuditEntry, auditQueueSize),
		failures: make(chan AuditWriteFailure, auditFailureSize),
		done:     make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record enqueues an entry for persistence. It never blocks and never returns
// an error: audit availability must not gate the triggering operation.
func (r *AuditRecorder) Record(entry domain.AuditEntry) {
	if r == nil || r.Repo == nil {
		return
	}
	entry = r.withDefaults(entry)
	select {
	case r.queue <- entry:
	default:
		log.Printf("audit queue full, dropping entry action=%s target=%s", entry.ActionType, entry.TargetID)
		r.reportFailure(AuditWriteFailure{Entry: entry, Err: errAuditQueueFull})
	}
}

// RecordSync persists an entry immediately. Used where the caller already
// holds a transaction boundary of its own, and by tests.
func (r *AuditRecorder) RecordSync(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	return r.Repo.Append(ctx, r.withDefaults(entry))
}

func (r *AuditRecorder) withDefaults(entry domain.AuditEntry) domain.AuditEntry {
	now := r.Clock().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.RetentionDate.IsZero() {
		entry.RetentionDate = domain.DefaultRetentionDate(entry.CreatedAt)
	}
	if entry.Status == "" {
		entry.Status = domain.AuditStatusSuccess
	}
	if entry.Severity == "" {
		entry.Severity = domain.SeverityLow
	}
	if entry.Actor == "" {
		entry.Actor = domain.AuditSystemActor
		entry.IsSystemAction = true
	}
	return entry
}

func (r *AuditRecorder) drain() {
	for {
		select {
		case entry := <-r.queue:
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteWindow)
			_, err := r.Repo.Append(ctx, entry)
			cancel()
			if err != nil {
				log.Printf("audit write failed action=%s target=%s: %v", entry.ActionType, entry.TargetID, err)
				r.reportFailure(AuditWriteFailure{Entry: entry, Err: err})
			}
		case <-r.done:
			return
		}
	}
}

func (r *AuditRecorder) reportFailure(failure AuditWriteFailure) {
	select {
	case r.failures <- failure:
	default:
	}
}

// Failures exposes the write-failure channel for operational consumers.
func (r *AuditRecorder) Failures() <-chan AuditWriteFailure {
	return r.failures
}

// Close stops the writer goroutine. Entries still queued are dropped; callers
// should quiesce traffic first.
func (r *AuditRecorder) Close() {
	close(r.done)
}

// ArchiveOlderThan flags active entries created more than days ago. Re-running
// with the same cutoff archives nothing new.
func (r *AuditRecorder) ArchiveOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, domain.NewValidationError("archive window must be non-negative, got %d", days)
	}
	now := r.Clock().UTC()
	cutoff := now.AddDate(0, 0, -days)
	count, err := r.Repo.ArchiveOlderThan(ctx, cutoff, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		r.Record(domain.AuditEntry{
			Action:         "archived audit entries",
			ActionType:     domain.ActionAuditArchived,
			TargetType:     "audit_log",
			Status:         domain.AuditStatusInfo,
			Severity:       domain.SeverityLow,
			Category:       domain.CategorySystem,
			IsSystemAction: true,
			Metadata:       map[string]any{"archived": count, "cutoff_days": days},
		})
	}
	return count, nil
}

// Anonymize clears the PII-bearing fields of one entry. Only legal once the
// entry's retention date has passed.
func (r *AuditRecorder) Anonymize(ctx context.Context, id string) error {
	entry, err := r.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !entry.EligibleForAnonymization(r.Clock().UTC()) {
		return domain.NewValidationError("audit entry %s is retained until %s", id, entry.RetentionDate.Format(time.RFC3339))
	}
	if err := r.Repo.Anonymize(ctx, id, domain.AnonymizedDetail); err != nil {
		return err
	}
	r.Record(domain.AuditEntry{
		Action:         "anonymized audit entry",
		ActionType:     domain.ActionAuditAnonymized,
		TargetID:       id,
		TargetType:     "audit_entry",
		Status:         domain.AuditStatusInfo,
		Severity:       domain.SeverityMedium,
		Category:       domain.CategorySecurity,
		IsSystemAction: true,
	})
	return nil
}

// Statistics aggregates active entries over the trailing window.
func (r *AuditRecorder) Statistics(ctx context.Context, windowDays int) (domain.AuditStatistics, error) {
	if windowDays <= 0 {
		return domain.AuditStatistics{}, domain.NewValidationError("statistics window must be positive, got %d", windowDays)
	}
	since := r.Clock().UTC().AddDate(0, 0, -windowDays)
	stats, err := r.Repo.Statistics(ctx, since)
	if err != nil {
		return domain.AuditStatistics{}, err
	}
	stats.WindowDays = windowDays
	return stats, nil
}

// List returns entries matching the filter, excluding archived ones unless
// asked otherwise.
func (r *AuditRecorder) List(ctx context.Context, filter AuditListFilter) ([]domain.AuditEntry, error) {
	return r.Repo.List(ctx, filter)
}
