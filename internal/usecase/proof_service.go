package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/infra/crypto"

	"github.com/google/uuid"
)

// ProofService owns the proof status state machine and compliance scoring.
type ProofService struct {
	Proofs ProofRepository
	Certs  CertificateRepository
	Audit  *AuditRecorder
	Clock  Clock
}

func NewProofService(proofs ProofRepository, certs CertificateRepository, audit *AuditRecorder, clock Clock) *ProofService {
	if clock == nil {
		clock = time.Now
	}
	return &ProofService{Proofs: proofs, Certs: certs, Audit: audit, Clock: clock}
}

type IngestProofInput struct {
	DeviceID      string
	DeviceType    string
	WipingMethod  domain.WipingMethod
	WipingPasses  int
	WipingStart   *time.Time
	WipingEnd     *time.Time
	HashAlgorithm string
	File          domain.FileRef
	// Content, when supplied, is hashed and checked against File.ContentHash.
	// The service never touches file bytes after ingestion.
	Content []byte

	Standards []domain.StandardResult
	Actor     domain.Principal
	ClientIP  string
}

func (s *ProofService) Ingest(ctx context.Context, input IngestProofInput) (*domain.Proof, error) {
	if strings.TrimSpace(input.DeviceID) == "" {
		return nil, domain.NewValidationError("device_id is required")
	}
	if input.File.ContentHash == "" {
		return nil, domain.NewValidationError("content hash is required")
	}
	if input.WipingStart != nil && input.WipingEnd != nil && input.WipingEnd.Before(*input.WipingStart) {
		return nil, domain.NewValidationError("wiping end precedes wiping start")
	}
	alg := input.HashAlgorithm
	if alg == "" {
		alg = crypto.DefaultHashAlgorithm
	}
	if len(input.Content) > 0 {
		digest, err := crypto.Hash(input.Content, alg)
		if err != nil {
			return nil, domain.NewValidationError("%v", err)
		}
		if !strings.EqualFold(digest, input.File.ContentHash) {
			return nil, domain.NewValidationError("content hash mismatch for device %s", input.DeviceID)
		}
	}

	// Device ids are unique per uploader among live proofs. The unique index
	// is the backstop for concurrent uploads; this check turns the common
	// case into a coded rejection naming the device.
	if existing, err := s.Proofs.GetByDeviceID(ctx, input.Actor.Subject, input.DeviceID); err == nil {
		return nil, domain.NewValidationError("device %s already has proof %s from this uploader", input.DeviceID, existing.ID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.Clock().UTC()
	expiry := domain.DefaultProofExpiration(now)
	proof := &domain.Proof{
		ID:                  uuid.NewString(),
		DeviceID:            input.DeviceID,
		DeviceType:          input.DeviceType,
		FileHash:            strings.ToLower(input.File.ContentHash),
		HashAlgorithm:       alg,
		WipingMethod:        input.WipingMethod,
		WipingPasses:        input.WipingPasses,
		Status:              domain.ProofStatusPending,
		WipingStart:         input.WipingStart,
		WipingEnd:           input.WipingEnd,
		ExpirationDate:      &expiry,
		ComplianceStandards: input.Standards,
		File:                input.File,
		UploadedBy:          input.Actor.Subject,
		CreatedAt:           now,
		UpdatedAt:           now,
		AuditTrail: []domain.ProofTrailEntry{{
			Action:    "uploaded",
			Actor:     input.Actor.Subject,
			Timestamp: now,
			Origin:    input.ClientIP,
		}},
	}
	proof.DeriveWipingDuration()

	if err := s.Proofs.Create(ctx, proof); err != nil {
		return nil, err
	}
	s.Audit.Record(domain.AuditEntry{
		Action:     fmt.Sprintf("proof uploaded for device %s", proof.DeviceID),
		ActionType: domain.ActionProofUploaded,
		Actor:      input.Actor.Subject,
		TargetID:   proof.ID,
		TargetType: "proof",
		IPAddress:  input.ClientIP,
		Status:     domain.AuditStatusSuccess,
		Severity:   domain.SeverityLow,
		Category:   domain.CategoryDataModification,
	})
	return proof, nil
}

type TransitionInput struct {
	ProofID   string
	NewStatus domain.ProofStatus
	Actor     domain.Principal
	Detail    string
	ClientIP  string
	// SystemDriven marks time-driven transitions (verified -> expired).
	SystemDriven bool
}

// Transition validates the request against the transition table and applies
// it with compare-and-swap semantics: a stale caller gets domain.ErrConflict
// and must re-fetch.
func (s *ProofService) Transition(ctx context.Context, input TransitionInput) (*domain.Proof, error) {
	proof, err := s.Proofs.GetByID(ctx, input.ProofID)
	if err != nil {
		return nil, err
	}
	if proof.Deleted {
		return nil, domain.ErrNotFound
	}
	if !domain.ProofTransitionAllowed(proof.Status, input.NewStatus) {
		s.recordTransitionAudit(proof, input, domain.AuditStatusError)
		return nil, domain.NewInvalidTransition("proof", string(proof.Status), string(input.NewStatus))
	}
	if input.NewStatus == domain.ProofStatusExpired && !input.SystemDriven {
		return nil, domain.NewInvalidTransition("proof", string(proof.Status), string(input.NewStatus))
	}

	now := s.Clock().UTC()
	update := ProofStatusUpdate{
		NewStatus: input.NewStatus,
		TrailEntry: domain.ProofTrailEntry{
			Action:    fmt.Sprintf("status %s -> %s", proof.Status, input.NewStatus),
			Actor:     input.Actor.Subject,
			Timestamp: now,
			Detail:    input.Detail,
			Origin:    input.ClientIP,
		},
	}
	if input.NewStatus == domain.ProofStatusVerified {
		update.VerificationDate = &now
		update.VerifiedBy = input.Actor.Subject
	}

	updated, err := s.Proofs.UpdateStatusCAS(ctx, proof.ID, proof.Status, proof.Version, update)
	if err != nil {
		return nil, err
	}
	s.recordTransitionAudit(proof, input, domain.AuditStatusSuccess)
	return updated, nil
}

func (s *ProofService) recordTransitionAudit(proof *domain.Proof, input TransitionInput, status domain.AuditStatus) {
	severity := domain.SeverityLow
	if status == domain.AuditStatusError {
		severity = domain.SeverityMedium
	}
	s.Audit.Record(domain.AuditEntry{
		Action:         fmt.Sprintf("proof status %s -> %s", proof.Status, input.NewStatus),
		ActionType:     domain.ActionProofTransitioned,
		Actor:          input.Actor.Subject,
		TargetID:       proof.ID,
		TargetType:     "proof",
		IPAddress:      input.ClientIP,
		Detail:         input.Detail,
		Status:         status,
		Severity:       severity,
		Category:       domain.CategoryDataModification,
		IsSystemAction: input.SystemDriven,
	})
}

func (s *ProofService) Get(ctx context.Context, id string) (*domain.Proof, error) {
	proof, err := s.Proofs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if proof.Deleted {
		return nil, domain.ErrNotFound
	}
	return proof, nil
}

// ComplianceSummary scores a proof over its compliance standards. An empty
// standards list yields zeroes, not a divide-by-zero fault.
func (s *ProofService) ComplianceSummary(ctx context.Context, id string) (domain.ComplianceSummary, error) {
	proof, err := s.Get(ctx, id)
	if err != nil {
		return domain.ComplianceSummary{}, err
	}
	return proof.ComplianceSummary(), nil
}

// SoftDelete flags a proof deleted without removing the row, preserving
// certificate and audit referential integrity. A proof held by an issued
// certificate cannot be deleted.
func (s *ProofService) SoftDelete(ctx context.Context, id string, actor domain.Principal) error {
	proof, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if proof.CertificateID != "" {
		cert, err := s.Certs.GetByID(ctx, proof.CertificateID)
		if err == nil && cert.Status == domain.CertStatusIssued {
			return domain.ErrProofRetained
		}
	}
	if err := s.Proofs.MarkDeleted(ctx, id, s.Clock().UTC()); err != nil {
		return err
	}
	s.Audit.Record(domain.AuditEntry{
		Action:     fmt.Sprintf("proof soft-deleted for device %s", proof.DeviceID),
		ActionType: domain.ActionProofDeleted,
		Actor:      actor.Subject,
		TargetID:   id,
		TargetType: "proof",
		Status:     domain.AuditStatusSuccess,
		Severity:   domain.SeverityMedium,
		Category:   domain.CategoryDataModification,
	})
	return nil
}

// ExpireDue is the periodic sweep moving verified proofs past expiry to
// expired. Safe to re-run; already-expired proofs no longer match.
func (s *ProofService) ExpireDue(ctx context.Context) (int64, error) {
	count, err := s.Proofs.ExpireDue(ctx, s.Clock().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.Audit.Record(domain.AuditEntry{
			Action:         fmt.Sprintf("expired %d proofs", count),
			ActionType:     domain.ActionProofTransitioned,
			TargetType:     "proof",
			Status:         domain.AuditStatusInfo,
			Severity:       domain.SeverityLow,
			Category:       domain.CategorySystem,
			IsSystemAction: true,
		})
	}
	return count, nil
}
