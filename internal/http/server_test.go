package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wipetrace/internal/config"
	"wipetrace/internal/domain"
	"wipetrace/internal/infra/ratelimit"
	"wipetrace/internal/usecase"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCertRepo struct {
	byCode map[string]*domain.Certificate
}

func (r *stubCertRepo) CreateWithReservation(ctx context.Context, cert *domain.Certificate, proofIDs []string) error {
	return nil
}

func (r *stubCertRepo) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	return nil, domain.ErrNotFound
}

func (r *stubCertRepo) GetByCertificateID(ctx context.Context, certificateID string) (*domain.Certificate, error) {
	return nil, domain.ErrNotFound
}

func (r *stubCertRepo) GetByVerificationCode(ctx context.Context, code string) (*domain.Certificate, error) {
	c, ok := r.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *stubCertRepo) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	_, ok := r.byCode[code]
	return ok, nil
}

func (r *stubCertRepo) UpdateStatusCAS(ctx context.Context, id string, expect domain.CertificateStatus, expectVersion int64, update usecase.CertificateStatusUpdate) (*domain.Certificate, error) {
	return nil, domain.ErrNotFound
}

func (r *stubCertRepo) AppendDownload(ctx context.Context, id string, record domain.DownloadRecord) error {
	return domain.ErrNotFound
}

func (r *stubCertRepo) ExpireDue(ctx context.Context, now time.Time) ([]domain.Certificate, error) {
	return nil, nil
}

type stubAuditRepo struct{}

func (r *stubAuditRepo) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	return entry, nil
}

func (r *stubAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditEntry, error) {
	return nil, domain.ErrNotFound
}

func (r *stubAuditRepo) List(ctx context.Context, filter usecase.AuditListFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (r *stubAuditRepo) ArchiveOlderThan(ctx context.Context, cutoff, archivedAt time.Time) (int64, error) {
	return 0, nil
}

func (r *stubAuditRepo) Anonymize(ctx context.Context, id, detail string) error {
	return domain.ErrNotFound
}

func (r *stubAuditRepo) Statistics(ctx context.Context, since time.Time) (domain.AuditStatistics, error) {
	return domain.AuditStatistics{}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithConfig(t, config.Config{}, nil)
}

func newTestServerWithConfig(t *testing.T, cfg config.Config, limiter domain.RateLimiter) *Server {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	issuedAt := now.Add(-time.Hour)
	certRepo := &stubCertRepo{byCode: map[string]*domain.Certificate{
		"GOODCODE": {
			ID:               "cert-1",
			CertificateID:    "WIPE-2026-AB12CD34",
			VerificationCode: "GOODCODE",
			Status:           domain.CertStatusIssued,
			IssuedTo:         domain.IssuedTo{Organization: "Acme Disposal GmbH"},
			Validity:         domain.ValidityPeriod{Start: now.AddDate(0, -1, 0), End: now.AddDate(1, 0, 0)},
			Metadata:         domain.CertificateMetadata{TotalDevices: 2, SuccessfulWipes: 2},
			IssuedAt:         &issuedAt,
		},
	}}
	recorder := usecase.NewAuditRecorder(&stubAuditRepo{}, func() time.Time { return now })
	t.Cleanup(recorder.Close)
	verify := usecase.NewVerificationService(certRepo, recorder, nil, 0, func() time.Time { return now })

	return NewServer(cfg, Deps{
		Verify:  verify,
		Audit:   recorder,
		Limiter: limiter,
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPublicVerifyNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/verify/GOODCODE", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result domain.VerificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Found || !result.Valid {
		t.Fatalf("expected a valid lookup, got %+v", result)
	}
	if result.Summary.Organization != "Acme Disposal GmbH" {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
}

func TestPublicVerifyUnknownCode(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/verify/NOPE", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unknown codes answer 200, got %d", w.Code)
	}
	var result domain.VerificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Found || result.Valid {
		t.Fatalf("expected found=false, got %+v", result)
	}
}

func TestPublicVerifyRateLimited(t *testing.T) {
	cfg := config.Config{RateLimitRequests: 2, RateLimitWindowSeconds: 60}
	limiter := ratelimit.NewMemoryLimiter(nil, 0)
	srv := newTestServerWithConfig(t, cfg, limiter)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/verify/GOODCODE", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
		if w.Header().Get("RateLimit-Limit") != "2" {
			t.Fatalf("request %d: missing limit header", i+1)
		}
	}

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/verify/GOODCODE", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the window fills, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected error code %q", resp.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("denied responses carry Retry-After")
	}
}

func TestPublicVerifyUnlimitedWithoutLimiter(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/verify/GOODCODE", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

func TestAuthMissingHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/audit", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity headers, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected error code %q", resp.Code)
	}
}

func TestAuthWrongRole(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	req.Header.Set("X-Principal", "operator-1")
	req.Header.Set("X-Role", string(domain.RoleOperator))
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("operators may not read the audit log, got %d", w.Code)
	}
}

func TestAuthUnknownRoleRejected(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	req.Header.Set("X-Principal", "someone")
	req.Header.Set("X-Role", "superuser")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown roles are rejected outright, got %d", w.Code)
	}
}

func TestAdminAllowedOnAuditorRoutes(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	req.Header.Set("X-Principal", "admin-1")
	req.Header.Set("X-Role", string(domain.RoleAdmin))
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin must pass every role gate, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"retained", domain.ErrProofRetained, http.StatusConflict, "PROOF_RETAINED"},
		{"invalid transition", domain.NewInvalidTransition("proof", "failed", "verified"), http.StatusConflict, "INVALID_TRANSITION"},
		{"validation", domain.NewValidationError("device_id is required"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		WriteError(c, tc.err)
		if w.Code != tc.wantStatus {
			t.Errorf("%s: expected status %d, got %d", tc.name, tc.wantStatus, w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if resp.Code != tc.wantCode {
			t.Errorf("%s: expected code %q, got %q", tc.name, tc.wantCode, resp.Code)
		}
	}
}
