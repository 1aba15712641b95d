package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/usecase"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(gdb *gorm.DB) *AuditRepository {
	return &AuditRepository{db: gdb}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if r.db == nil {
		return domain.AuditEntry{}, errDBUnavailable
	}
	model, err := auditToModel(entry)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AuditEntry{}, err
	}
	return entry, nil
}

func (r *AuditRepository) GetByID(ctx context.Context, id string) (*domain.AuditEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AuditEntryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return modelToAudit(model)
}

func (r *AuditRepository) List(ctx context.Context, filter usecase.AuditListFilter) ([]domain.AuditEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Model(&AuditEntryModel{})
	if !filter.IncludeArchived {
		q = q.Where("is_archived = false")
	}
	if filter.TargetID != "" {
		q = q.Where("target_id = ?", filter.TargetID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", string(filter.Severity))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []AuditEntryModel
	if err := q.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.AuditEntry, 0, len(models))
	for _, model := range models {
		entry, err := modelToAudit(model)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// ArchiveOlderThan bulk-flags active entries created before the cutoff.
// Already-archived rows never match, so re-running archives nothing new.
func (r *AuditRepository) ArchiveOlderThan(ctx context.Context, cutoff, archivedAt time.Time) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	res := r.db.WithContext(ctx).Model(&AuditEntryModel{}).
		Where("is_archived = false AND created_at < ?", cutoff).
		Updates(map[string]any{"is_archived": true, "archived_at": archivedAt})
	return res.RowsAffected, res.Error
}

// Anonymize clears the bounded PII field set. Semantic fields (action, actor,
// timestamps, status) stay untouched.
func (r *AuditRepository) Anonymize(ctx context.Context, id, detail string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).Model(&AuditEntryModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"detail":        detail,
			"metadata_json": nil,
			"user_agent":    "",
			"geolocation":   "",
			"anonymized":    true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AuditRepository) Statistics(ctx context.Context, since time.Time) (domain.AuditStatistics, error) {
	if r.db == nil {
		return domain.AuditStatistics{}, errDBUnavailable
	}
	stats := domain.AuditStatistics{
		ByStatus:   make(map[domain.AuditStatus]int64),
		BySeverity: make(map[domain.AuditSeverity]int64),
		ByCategory: make(map[domain.AuditCategory]int64),
	}
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&AuditEntryModel{}).
			Where("is_archived = false AND created_at >= ?", since)
	}
	if err := base().Count(&stats.Total).Error; err != nil {
		return domain.AuditStatistics{}, err
	}

	type bucket struct {
		Key   string
		Count int64
	}
	groupCount := func(column string) ([]bucket, error) {
		var rows []bucket
		err := base().
			Select(column + " AS key, COUNT(*) AS count").
			Group(column).
			Scan(&rows).Error
		return rows, err
	}

	statusRows, err := groupCount("status")
	if err != nil {
		return domain.AuditStatistics{}, err
	}
	for _, row := range statusRows {
		stats.ByStatus[domain.AuditStatus(row.Key)] = row.Count
	}
	severityRows, err := groupCount("severity")
	if err != nil {
		return domain.AuditStatistics{}, err
	}
	for _, row := range severityRows {
		stats.BySeverity[domain.AuditSeverity(row.Key)] = row.Count
	}
	categoryRows, err := groupCount("category")
	if err != nil {
		return domain.AuditStatistics{}, err
	}
	for _, row := range categoryRows {
		stats.ByCategory[domain.AuditCategory(row.Key)] = row.Count
	}
	return stats, nil
}

func auditToModel(entry domain.AuditEntry) (AuditEntryModel, error) {
	var metadata []byte
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return AuditEntryModel{}, err
		}
		metadata = raw
	}
	return AuditEntryModel{
		ID:             entry.ID,
		Action:         entry.Action,
		ActionType:     string(entry.ActionType),
		Actor:          entry.Actor,
		TargetID:       entry.TargetID,
		TargetType:     entry.TargetType,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		Geolocation:    entry.Geolocation,
		Detail:         entry.Detail,
		MetadataJSON:   metadata,
		Status:         string(entry.Status),
		Severity:       string(entry.Severity),
		Category:       string(entry.Category),
		IsSystemAction: entry.IsSystemAction,
		CreatedAt:      entry.CreatedAt,
		RetentionDate:  entry.RetentionDate,
		IsArchived:     entry.IsArchived,
		ArchivedAt:     entry.ArchivedAt,
		Anonymized:     entry.Anonymized,
	}, nil
}

func modelToAudit(model AuditEntryModel) (*domain.AuditEntry, error) {
	var metadata map[string]any
	if len(model.MetadataJSON) > 0 {
		if err := json.Unmarshal(model.MetadataJSON, &metadata); err != nil {
			return nil, err
		}
	}
	return &domain.AuditEntry{
		ID:             model.ID,
		Action:         model.Action,
		ActionType:     domain.AuditActionType(model.ActionType),
		Actor:          model.Actor,
		TargetID:       model.TargetID,
		TargetType:     model.TargetType,
		IPAddress:      model.IPAddress,
		UserAgent:      model.UserAgent,
		Geolocation:    model.Geolocation,
		Detail:         model.Detail,
		Metadata:       metadata,
		Status:         domain.AuditStatus(model.Status),
		Severity:       domain.AuditSeverity(model.Severity),
		Category:       domain.AuditCategory(model.Category),
		IsSystemAction: model.IsSystemAction,
		CreatedAt:      model.CreatedAt,
		RetentionDate:  model.RetentionDate,
		IsArchived:     model.IsArchived,
		ArchivedAt:     model.ArchivedAt,
		Anonymized:     model.Anonymized,
	}, nil
}

var _ usecase.AuditRepository = (*AuditRepository)(nil)
