package http

import (
	"net/http"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/usecase"

	"github.com/gin-gonic/gin"
)

type proofResponse struct {
	ID               string                    `json:"id"`
	DeviceID         string                    `json:"device_id"`
	DeviceType       string                    `json:"device_type,omitempty"`
	Status           string                    `json:"status"`
	WipingMethod     string                    `json:"wiping_method"`
	WipingPasses     int                       `json:"wiping_passes,omitempty"`
	WipingDuration   int64                     `json:"wiping_duration_seconds,omitempty"`
	FileHash         string                    `json:"file_hash"`
	HashAlgorithm    string                    `json:"hash_algorithm"`
	ExpirationDate   *time.Time                `json:"expiration_date,omitempty"`
	VerificationDate *time.Time                `json:"verification_date,omitempty"`
	VerifiedBy       string                    `json:"verified_by,omitempty"`
	CertificateID    string                    `json:"certificate_id,omitempty"`
	Standards        []domain.StandardResult   `json:"compliance_standards,omitempty"`
	File             domain.FileRef            `json:"file"`
	CreatedAt        time.Time                 `json:"created_at"`
	AuditTrail       []domain.ProofTrailEntry  `json:"audit_trail,omitempty"`
}

func toProofResponse(proof *domain.Proof) proofResponse {
	return proofResponse{
		ID:               proof.ID,
		DeviceID:         proof.DeviceID,
		DeviceType:       proof.DeviceType,
		Status:           string(proof.Status),
		WipingMethod:     string(proof.WipingMethod),
		WipingPasses:     proof.WipingPasses,
		WipingDuration:   proof.WipingDuration,
		FileHash:         proof.FileHash,
		HashAlgorithm:    proof.HashAlgorithm,
		ExpirationDate:   proof.ExpirationDate,
		VerificationDate: proof.VerificationDate,
		VerifiedBy:       proof.VerifiedBy,
		CertificateID:    proof.CertificateID,
		Standards:        proof.ComplianceStandards,
		File:             proof.File,
		CreatedAt:        proof.CreatedAt,
		AuditTrail:       proof.AuditTrail,
	}
}

func (s *Server) handleIngestProof(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req struct {
		DeviceID      string                  `json:"device_id"`
		DeviceType    string                  `json:"device_type"`
		WipingMethod  string                  `json:"wiping_method"`
		WipingPasses  int                     `json:"wiping_passes"`
		WipingStart   *time.Time              `json:"wiping_start"`
		WipingEnd     *time.Time              `json:"wiping_end"`
		HashAlgorithm string                  `json:"hash_algorithm"`
		File          domain.FileRef          `json:"file"`
		Standards     []domain.StandardResult `json:"compliance_standards"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	proof, err := s.proofs.Ingest(c.Request.Context(), usecase.IngestProofInput{
		DeviceID:      req.DeviceID,
		DeviceType:    req.DeviceType,
		WipingMethod:  domain.WipingMethod(req.WipingMethod),
		WipingPasses:  req.WipingPasses,
		WipingStart:   req.WipingStart,
		WipingEnd:     req.WipingEnd,
		HashAlgorithm: req.HashAlgorithm,
		File:          req.File,
		Standards:     req.Standards,
		Actor:         principal,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proof": toProofResponse(proof)})
}

func (s *Server) handleGetProof(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		return
	}
	proof, err := s.proofs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proof": toProofResponse(proof)})
}

func (s *Server) handleProofCompliance(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		return
	}
	summary, err := s.proofs.ComplianceSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"compliance": summary})
}

func (s *Server) handleTransitionProof(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
		Detail string `json:"detail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	proof, err := s.proofs.Transition(c.Request.Context(), usecase.TransitionInput{
		ProofID:   c.Param("id"),
		NewStatus: domain.ProofStatus(req.Status),
		Actor:     principal,
		Detail:    req.Detail,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proof": toProofResponse(proof)})
}

func (s *Server) handleDeleteProof(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := s.proofs.SoftDelete(c.Request.Context(), c.Param("id"), principal); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
