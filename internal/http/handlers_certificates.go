package http

import (
	"net/http"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/usecase"

	"github.com/gin-gonic/gin"
)

type certificateResponse struct {
	ID               string                     `json:"id"`
	CertificateID    string                     `json:"certificate_id"`
	VerificationCode string                     `json:"verification_code"`
	Status           string                     `json:"status"`
	IssuedTo         domain.IssuedTo            `json:"issued_to"`
	Devices          []domain.DeviceSnapshot    `json:"devices"`
	Standards        []domain.StandardResult    `json:"compliance_standards,omitempty"`
	Validity         domain.ValidityPeriod      `json:"validity_period"`
	Metadata         domain.CertificateMetadata `json:"metadata"`
	Signature        domain.DigitalSignature    `json:"digital_signature"`
	Revocation       *domain.Revocation         `json:"revocation,omitempty"`
	IssuedBy         string                     `json:"issued_by,omitempty"`
	IssuedAt         *time.Time                 `json:"issued_at,omitempty"`
	Downloads        []domain.DownloadRecord    `json:"download_history,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

func toCertificateResponse(cert *domain.Certificate) certificateResponse {
	return certificateResponse{
		ID:               cert.ID,
		CertificateID:    cert.CertificateID,
		VerificationCode: cert.VerificationCode,
		Status:           string(cert.Status),
		IssuedTo:         cert.IssuedTo,
		Devices:          cert.Devices,
		Standards:        cert.Standards,
		Validity:         cert.Validity,
		Metadata:         cert.Metadata,
		Signature:        cert.Signature,
		Revocation:       cert.Revocation,
		IssuedBy:         cert.IssuedBy,
		IssuedAt:         cert.IssuedAt,
		Downloads:        cert.DownloadHistory,
		CreatedAt:        cert.CreatedAt,
	}
}

func (s *Server) handleGenerateCertificate(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req struct {
		ProofIDs  []string                `json:"proof_ids"`
		IssuedTo  domain.IssuedTo         `json:"issued_to"`
		Standards []domain.StandardResult `json:"compliance_standards"`
		Validity  domain.ValidityPeriod   `json:"validity_period"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	cert, err := s.certs.Generate(c.Request.Context(), usecase.GenerateCertificateInput{
		ProofIDs:  req.ProofIDs,
		IssuedTo:  req.IssuedTo,
		Standards: req.Standards,
		Validity:  req.Validity,
		Actor:     principal,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"certificate": toCertificateResponse(cert)})
}

func (s *Server) handleGetCertificate(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		return
	}
	cert, err := s.certs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificate": toCertificateResponse(cert)})
}

func (s *Server) handleIssueCertificate(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	cert, err := s.certs.Issue(c.Request.Context(), c.Param("id"), principal)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificate": toCertificateResponse(cert)})
}

func (s *Server) handleRevokeCertificate(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	cert, err := s.certs.Revoke(c.Request.Context(), c.Param("id"), domain.RevocationReason(req.Reason), principal)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificate": toCertificateResponse(cert)})
}

func (s *Server) handleExportCertificate(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	projection, err := s.certs.Export(c.Request.Context(), c.Param("id"), format, principal)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"export": projection, "format": format})
}
