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

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(gdb *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: gdb}
}

// CreateWithReservation books every proof and inserts the certificate in one
// transaction. If any proof is no longer verified and free, nothing commits.
func (r *CertificateRepository) CreateWithReservation(ctx context.Context, cert *domain.Certificate, proofIDs []string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := certToModel(cert)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, proofID := range proofIDs {
			res := tx.Model(&ProofModel{}).
				Where("id = ? AND status = ? AND certificate_id = '' AND deleted = false", proofID, string(domain.ProofStatusVerified)).
				Updates(map[string]any{
					"certificate_id": cert.ID,
					"version":        gorm.Expr("version + 1"),
					"updated_at":     cert.CreatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrConflict
			}
		}
		return tx.Create(&model).Error
	})
}

func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	return r.getWhere(ctx, "id = ?", id)
}

func (r *CertificateRepository) GetByCertificateID(ctx context.Context, certificateID string) (*domain.Certificate, error) {
	return r.getWhere(ctx, "certificate_id = ?", certificateID)
}

func (r *CertificateRepository) GetByVerificationCode(ctx context.Context, code string) (*domain.Certificate, error) {
	return r.getWhere(ctx, "verification_code = ?", code)
}

func (r *CertificateRepository) getWhere(ctx context.Context, query string, arg any) (*domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return modelToCert(model)
}

func (r *CertificateRepository) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&CertificateModel{}).
		Where("verification_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *CertificateRepository) UpdateStatusCAS(ctx context.Context, id string, expect domain.CertificateStatus, expectVersion int64, update usecase.CertificateStatusUpdate) (*domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	now := time.Now().UTC()
	fields := map[string]any{
		"status":     string(update.NewStatus),
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	if update.IssuedAt != nil {
		fields["issued_by"] = update.IssuedBy
		fields["issued_at"] = update.IssuedAt
	}
	if update.Revocation != nil {
		fields["revocation_reason"] = string(update.Revocation.Reason)
		fields["revoked_at"] = update.Revocation.Date
		fields["revoked_by"] = update.Revocation.RevokedBy
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CertificateModel{}).
			Where("id = ? AND status = ? AND version = ?", id, string(expect), expectVersion).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConflict
		}
		if update.ReleaseProofs {
			// Same transaction as the status change: either the certificate
			// moves and its proofs come free, or neither happens.
			if err := tx.Model(&ProofModel{}).
				Where("certificate_id = ?", id).
				Update("certificate_id", "").Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *CertificateRepository) AppendDownload(ctx context.Context, id string, record domain.DownloadRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model CertificateModel
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		var history []domain.DownloadRecord
		if len(model.DownloadsJSON) > 0 {
			if err := json.Unmarshal(model.DownloadsJSON, &history); err != nil {
				return err
			}
		}
		history = append(history, record)
		raw, err := json.Marshal(history)
		if err != nil {
			return err
		}
		return tx.Model(&CertificateModel{}).
			Where("id = ?", id).
			Update("downloads_json", raw).Error
	})
}

// ExpireDue marks issued certificates past their validity end as expired and
// returns them. Revoked certificates never match the guard.
func (r *CertificateRepository) ExpireDue(ctx context.Context, now time.Time) ([]domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var expired []domain.Certificate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []CertificateModel
		if err := tx.
			Where("status = ? AND validity_end < ?", string(domain.CertStatusIssued), now).
			Find(&due).Error; err != nil {
			return err
		}
		for _, model := range due {
			res := tx.Model(&CertificateModel{}).
				Where("id = ? AND status = ? AND version = ?", model.ID, model.Status, model.Version).
				Updates(map[string]any{
					"status":     string(domain.CertStatusExpired),
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			cert, err := modelToCert(model)
			if err != nil {
				return err
			}
			cert.Status = domain.CertStatusExpired
			expired = append(expired, *cert)
		}
		return nil
	})
	return expired, err
}

func certToModel(cert *domain.Certificate) (CertificateModel, error) {
	devices, err := json.Marshal(cert.Devices)
	if err != nil {
		return CertificateModel{}, err
	}
	standards, err := json.Marshal(cert.Standards)
	if err != nil {
		return CertificateModel{}, err
	}
	downloads, err := json.Marshal(cert.DownloadHistory)
	if err != nil {
		return CertificateModel{}, err
	}
	model := CertificateModel{
		ID:               cert.ID,
		CertificateID:    cert.CertificateID,
		VerificationCode: cert.VerificationCode,
		Status:           string(cert.Status),
		Organization:     cert.IssuedTo.Organization,
		Contact:          cert.IssuedTo.Contact,
		DevicesJSON:      devices,
		StandardsJSON:    standards,
		ValidityStart:    cert.Validity.Start,
		ValidityEnd:      cert.Validity.End,
		TotalDevices:     cert.Metadata.TotalDevices,
		SuccessfulWipes:  cert.Metadata.SuccessfulWipes,
		FailedWipes:      cert.Metadata.FailedWipes,
		SignatureAlg:     cert.Signature.Algorithm,
		SignatureValue:   cert.Signature.Signature,
		PublicKeyPEM:     cert.Signature.PublicKey,
		IssuedBy:         cert.IssuedBy,
		IssuedAt:         cert.IssuedAt,
		DownloadsJSON:    downloads,
		Version:          cert.Version,
		CreatedAt:        cert.CreatedAt,
		UpdatedAt:        cert.UpdatedAt,
	}
	if cert.Revocation != nil {
		model.RevocationReason = string(cert.Revocation.Reason)
		revokedAt := cert.Revocation.Date
		model.RevokedAt = &revokedAt
		model.RevokedBy = cert.Revocation.RevokedBy
	}
	return model, nil
}

func modelToCert(model CertificateModel) (*domain.Certificate, error) {
	var devices []domain.DeviceSnapshot
	if len(model.DevicesJSON) > 0 {
		if err := json.Unmarshal(model.DevicesJSON, &devices); err != nil {
			return nil, err
		}
	}
	var standards []domain.StandardResult
	if len(model.StandardsJSON) > 0 {
		if err := json.Unmarshal(model.StandardsJSON, &standards); err != nil {
			return nil, err
		}
	}
	var downloads []domain.DownloadRecord
	if len(model.DownloadsJSON) > 0 {
		if err := json.Unmarshal(model.DownloadsJSON, &downloads); err != nil {
			return nil, err
		}
	}
	cert := &domain.Certificate{
		ID:               model.ID,
		CertificateID:    model.CertificateID,
		VerificationCode: model.VerificationCode,
		Status:           domain.CertificateStatus(model.Status),
		IssuedTo: domain.IssuedTo{
			Organization: model.Organization,
			Contact:      model.Contact,
		},
		Devices:   devices,
		Standards: standards,
		Validity: domain.ValidityPeriod{
			Start: model.ValidityStart,
			End:   model.ValidityEnd,
		},
		Metadata: domain.CertificateMetadata{
			TotalDevices:    model.TotalDevices,
			SuccessfulWipes: model.SuccessfulWipes,
			FailedWipes:     model.FailedWipes,
		},
		Signature: domain.DigitalSignature{
			Algorithm: model.SignatureAlg,
			Signature: model.SignatureValue,
			PublicKey: model.PublicKeyPEM,
		},
		IssuedBy:        model.IssuedBy,
		IssuedAt:        model.IssuedAt,
		DownloadHistory: downloads,
		Version:         model.Version,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
	if model.RevocationReason != "" && model.RevokedAt != nil {
		cert.Revocation = &domain.Revocation{
			Reason:    domain.RevocationReason(model.RevocationReason),
			Date:      *model.RevokedAt,
			RevokedBy: model.RevokedBy,
		}
	}
	return cert, nil
}

var _ usecase.CertificateRepository = (*CertificateRepository)(nil)
