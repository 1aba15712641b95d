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

type ProofRepository struct {
	db *gorm.DB
}

func NewProofRepository(gdb *gorm.DB) *ProofRepository {
	return &ProofRepository{db: gdb}
}

func (r *ProofRepository) Create(ctx context.Context, proof *domain.Proof) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := proofToModel(proof)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		for i, entry := range proof.AuditTrail {
			row := trailToModel(proof.ID, int64(i+1), entry)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ProofRepository) GetByID(ctx context.Context, id string) (*domain.Proof, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ProofModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, model)
}

func (r *ProofRepository) GetByDeviceID(ctx context.Context, uploadedBy, deviceID string) (*domain.Proof, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ProofModel
	err := r.db.WithContext(ctx).
		Where("uploaded_by = ? AND device_id = ? AND deleted = ?", uploadedBy, deviceID, false).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, model)
}

// UpdateStatusCAS applies the status change and the trail entry in one
// transaction, guarded on the expected status and version. Zero rows matched
// means another writer won; the caller gets ErrConflict and must re-fetch.
func (r *ProofRepository) UpdateStatusCAS(ctx context.Context, id string, expect domain.ProofStatus, expectVersion int64, update usecase.ProofStatusUpdate) (*domain.Proof, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var updated *domain.Proof
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{
			"status":     string(update.NewStatus),
			"version":    gorm.Expr("version + 1"),
			"updated_at": update.TrailEntry.Timestamp,
		}
		if update.VerificationDate != nil {
			fields["verification_date"] = update.VerificationDate
			fields["verified_by"] = update.VerifiedBy
		}
		res := tx.Model(&ProofModel{}).
			Where("id = ? AND status = ? AND version = ? AND deleted = false", id, string(expect), expectVersion).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConflict
		}
		seq, err := nextTrailSeq(tx, id)
		if err != nil {
			return err
		}
		row := trailToModel(id, seq, update.TrailEntry)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		var model ProofModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		proof, err := modelToProof(model)
		if err != nil {
			return err
		}
		updated = proof
		return nil
	})
	if err != nil {
		return nil, err
	}
	updated.AuditTrail, err = r.loadTrail(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ProofRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).Model(&ProofModel{}).
		Where("id = ? AND deleted = false", id).
		Updates(map[string]any{"deleted": true, "deleted_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpireDue flips verified proofs whose expiration date has passed, appending
// a trail entry per proof. Idempotent: expired proofs no longer match.
func (r *ProofRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []ProofModel
		if err := tx.
			Where("status = ? AND deleted = false AND expiration_date IS NOT NULL AND expiration_date < ?", string(domain.ProofStatusVerified), now).
			Find(&due).Error; err != nil {
			return err
		}
		for _, model := range due {
			res := tx.Model(&ProofModel{}).
				Where("id = ? AND status = ? AND version = ?", model.ID, model.Status, model.Version).
				Updates(map[string]any{
					"status":     string(domain.ProofStatusExpired),
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue // raced with a live transition, next sweep picks it up
			}
			seq, err := nextTrailSeq(tx, model.ID)
			if err != nil {
				return err
			}
			row := trailToModel(model.ID, seq, domain.ProofTrailEntry{
				Action:    "status verified -> expired",
				Actor:     domain.AuditSystemActor,
				Timestamp: now,
				Detail:    "expiration date passed",
			})
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (r *ProofRepository) hydrate(ctx context.Context, model ProofModel) (*domain.Proof, error) {
	proof, err := modelToProof(model)
	if err != nil {
		return nil, err
	}
	proof.AuditTrail, err = r.loadTrail(ctx, model.ID)
	if err != nil {
		return nil, err
	}
	return proof, nil
}

func (r *ProofRepository) loadTrail(ctx context.Context, proofID string) ([]domain.ProofTrailEntry, error) {
	var rows []ProofTrailModel
	err := r.db.WithContext(ctx).
		Where("proof_id = ?", proofID).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	trail := make([]domain.ProofTrailEntry, len(rows))
	for i, row := range rows {
		trail[i] = domain.ProofTrailEntry{
			Action:    row.Action,
			Actor:     row.Actor,
			Timestamp: row.Timestamp,
			Detail:    row.Detail,
			Origin:    row.Origin,
		}
	}
	return trail, nil
}

func nextTrailSeq(tx *gorm.DB, proofID string) (int64, error) {
	var max int64
	err := tx.Model(&ProofTrailModel{}).
		Where("proof_id = ?", proofID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&max).Error
	return max + 1, err
}

func trailToModel(proofID string, seq int64, entry domain.ProofTrailEntry) ProofTrailModel {
	return ProofTrailModel{
		ProofID:   proofID,
		Seq:       seq,
		Action:    entry.Action,
		Actor:     entry.Actor,
		Timestamp: entry.Timestamp,
		Detail:    entry.Detail,
		Origin:    entry.Origin,
	}
}

func proofToModel(proof *domain.Proof) (ProofModel, error) {
	standards, err := json.Marshal(proof.ComplianceStandards)
	if err != nil {
		return ProofModel{}, err
	}
	return ProofModel{
		ID:               proof.ID,
		DeviceID:         proof.DeviceID,
		UploadedBy:       proof.UploadedBy,
		DeviceType:       proof.DeviceType,
		FileHash:         proof.FileHash,
		HashAlgorithm:    proof.HashAlgorithm,
		WipingMethod:     string(proof.WipingMethod),
		WipingPasses:     proof.WipingPasses,
		Status:           string(proof.Status),
		WipingStart:      proof.WipingStart,
		WipingEnd:        proof.WipingEnd,
		WipingDuration:   proof.WipingDuration,
		ExpirationDate:   proof.ExpirationDate,
		VerificationDate: proof.VerificationDate,
		VerifiedBy:       proof.VerifiedBy,
		StandardsJSON:    standards,
		FilePath:         proof.File.Path,
		FileSize:         proof.File.SizeBytes,
		FileMimeType:     proof.File.MimeType,
		CertificateID:    proof.CertificateID,
		Deleted:          proof.Deleted,
		DeletedAt:        proof.DeletedAt,
		Version:          proof.Version,
		CreatedAt:        proof.CreatedAt,
		UpdatedAt:        proof.UpdatedAt,
	}, nil
}

func modelToProof(model ProofModel) (*domain.Proof, error) {
	var standards []domain.StandardResult
	if len(model.StandardsJSON) > 0 {
		if err := json.Unmarshal(model.StandardsJSON, &standards); err != nil {
			return nil, err
		}
	}
	return &domain.Proof{
		ID:               model.ID,
		DeviceID:         model.DeviceID,
		UploadedBy:       model.UploadedBy,
		DeviceType:       model.DeviceType,
		FileHash:         model.FileHash,
		HashAlgorithm:    model.HashAlgorithm,
		WipingMethod:     domain.WipingMethod(model.WipingMethod),
		WipingPasses:     model.WipingPasses,
		Status:           domain.ProofStatus(model.Status),
		WipingStart:      model.WipingStart,
		WipingEnd:        model.WipingEnd,
		WipingDuration:   model.WipingDuration,
		ExpirationDate:   model.ExpirationDate,
		VerificationDate: model.VerificationDate,
		VerifiedBy:       model.VerifiedBy,
		ComplianceStandards: standards,
		File: domain.FileRef{
			Path:        model.FilePath,
			SizeBytes:   model.FileSize,
			MimeType:    model.FileMimeType,
			ContentHash: model.FileHash,
		},
		CertificateID: model.CertificateID,
		Deleted:       model.Deleted,
		DeletedAt:     model.DeletedAt,
		Version:       model.Version,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

var _ usecase.ProofRepository = (*ProofRepository)(nil)
