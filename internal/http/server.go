package http

import (
	"log"

	"wipetrace/internal/config"
	"wipetrace/internal/domain"
	"wipetrace/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg     config.Config
	r       *gin.Engine
	proofs  *usecase.ProofService
	certs   *usecase.CertificateService
	verify  *usecase.VerificationService
	audit   *usecase.AuditRecorder
	limiter domain.RateLimiter
}

type Deps struct {
	Proofs  *usecase.ProofService
	Certs   *usecase.CertificateService
	Verify  *usecase.VerificationService
	Audit   *usecase.AuditRecorder
	Limiter domain.RateLimiter
}

func NewServer(cfg config.Config, deps Deps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Server{
		cfg:     cfg,
		r:       r,
		proofs:  deps.Proofs,
		certs:   deps.Certs,
		verify:  deps.Verify,
		audit:   deps.Audit,
		limiter: deps.Limiter,
	}
	s.routes()
	return s
}

func (s *Server) Run() error {
	addr := s.cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("wipetraced listening on %s", addr)
	return s.r.Run(addr)
}

// Engine exposes the router for httptest servers.
func (s *Server) Engine() *gin.Engine {
	return s.r
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public verification, no authentication, throttled per client IP.
	throttle := RateLimitMiddleware(s.limiter, s.cfg.RateLimitRequests, s.cfg.RateLimitWindow())
	s.r.GET("/v1/verify/:code", throttle, s.handleVerifyByCode)

	v1 := s.r.Group("/v1")
	{
		operator := AuthMiddleware(domain.RoleOperator)
		auditor := AuthMiddleware(domain.RoleAuditor)
		anyRole := AuthMiddleware(domain.RoleOperator, domain.RoleAuditor)
		admin := AuthMiddleware()

		v1.POST("/proofs", operator, s.handleIngestProof)
		v1.GET("/proofs/:id", anyRole, s.handleGetProof)
		v1.GET("/proofs/:id/compliance", anyRole, s.handleProofCompliance)
		v1.POST("/proofs/:id/transition", auditor, s.handleTransitionProof)
		v1.DELETE("/proofs/:id", admin, s.handleDeleteProof)

		v1.POST("/certificates", auditor, s.handleGenerateCertificate)
		v1.GET("/certificates/:id", anyRole, s.handleGetCertificate)
		v1.POST("/certificates/:id/issue", auditor, s.handleIssueCertificate)
		v1.POST("/certificates/:id/revoke", admin, s.handleRevokeCertificate)
		v1.GET("/certificates/:id/export", anyRole, s.handleExportCertificate)

		v1.GET("/audit", auditor, s.handleListAudit)
		v1.GET("/audit/statistics", auditor, s.handleAuditStatistics)
		v1.POST("/audit/archive", admin, s.handleArchiveAudit)
		v1.POST("/audit/:id/anonymize", admin, s.handleAnonymizeAudit)
	}
}
