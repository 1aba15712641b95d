package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"wipetrace/internal/domain"
)

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

type fakeProofRepo struct {
	mu     sync.Mutex
	proofs map[string]*domain.Proof
}

func newFakeProofRepo() *fakeProofRepo {
	return &fakeProofRepo{proofs: make(map[string]*domain.Proof)}
}

func cloneProof(p *domain.Proof) *domain.Proof {
	out := *p
	out.AuditTrail = append([]domain.ProofTrailEntry{}, p.AuditTrail...)
	out.ComplianceStandards = append([]domain.StandardResult{}, p.ComplianceStandards...)
	return &out
}

func (r *fakeProofRepo) Create(ctx context.Context, proof *domain.Proof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proofs[proof.ID] = cloneProof(proof)
	return nil
}

func (r *fakeProofRepo) GetByID(ctx context.Context, id string) (*domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proofs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProof(p), nil
}

func (r *fakeProofRepo) GetByDeviceID(ctx context.Context, uploadedBy, deviceID string) (*domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proofs {
		if p.UploadedBy == uploadedBy && p.DeviceID == deviceID && !p.Deleted {
			return cloneProof(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProofRepo) UpdateStatusCAS(ctx context.Context, id string, expect domain.ProofStatus, expectVersion int64, update ProofStatusUpdate) (*domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proofs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Status != expect || p.Version != expectVersion {
		return nil, domain.ErrConflict
	}
	p.Status = update.NewStatus
	if update.VerificationDate != nil {
		p.VerificationDate = update.VerificationDate
	}
	if update.VerifiedBy != "" {
		p.VerifiedBy = update.VerifiedBy
	}
	p.AuditTrail = append(p.AuditTrail, update.TrailEntry)
	p.Version++
	p.UpdatedAt = update.TrailEntry.Timestamp
	return cloneProof(p), nil
}

func (r *fakeProofRepo) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proofs[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Deleted = true
	p.DeletedAt = &at
	return nil
}

func (r *fakeProofRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, p := range r.proofs {
		if p.Status == domain.ProofStatusVerified && p.ExpirationDate != nil && p.ExpirationDate.Before(now) {
			p.Status = domain.ProofStatusExpired
			p.Version++
			count++
		}
	}
	return count, nil
}

// bumpVersion simulates a concurrent writer winning the race.
func (r *fakeProofRepo) bumpVersion(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.proofs[id]; ok {
		p.Version++
	}
}

var _ ProofRepository = (*fakeProofRepo)(nil)

type fakeCertRepo struct {
	mu     sync.Mutex
	certs  map[string]*domain.Certificate
	proofs *fakeProofRepo
	casErr error
}

func newFakeCertRepo(proofs *fakeProofRepo) *fakeCertRepo {
	return &fakeCertRepo{certs: make(map[string]*domain.Certificate), proofs: proofs}
}

func cloneCert(c *domain.Certificate) *domain.Certificate {
	out := *c
	out.Devices = append([]domain.DeviceSnapshot{}, c.Devices...)
	out.Standards = append([]domain.StandardResult{}, c.Standards...)
	out.DownloadHistory = append([]domain.DownloadRecord{}, c.DownloadHistory...)
	if c.Revocation != nil {
		rev := *c.Revocation
		out.Revocation = &rev
	}
	return &out
}

func (r *fakeCertRepo) CreateWithReservation(ctx context.Context, cert *domain.Certificate, proofIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proofs.mu.Lock()
	defer r.proofs.mu.Unlock()

	// All guards first so a failure leaves nothing booked.
	for _, id := range proofIDs {
		p, ok := r.proofs.proofs[id]
		if !ok {
			return domain.ErrNotFound
		}
		if p.Status != domain.ProofStatusVerified || p.CertificateID != "" || p.Deleted {
			return domain.ErrConflict
		}
	}
	for _, id := range proofIDs {
		r.proofs.proofs[id].CertificateID = cert.ID
	}
	r.certs[cert.ID] = cloneCert(cert)
	return nil
}

func (r *fakeCertRepo) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCert(c), nil
}

func (r *fakeCertRepo) GetByCertificateID(ctx context.Context, certificateID string) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certs {
		if c.CertificateID == certificateID {
			return cloneCert(c), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeCertRepo) GetByVerificationCode(ctx context.Context, code string) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certs {
		if c.VerificationCode == code {
			return cloneCert(c), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeCertRepo) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certs {
		if c.VerificationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCertRepo) UpdateStatusCAS(ctx context.Context, id string, expect domain.CertificateStatus, expectVersion int64, update CertificateStatusUpdate) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.casErr != nil {
		return nil, r.casErr
	}
	c, ok := r.certs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status != expect || c.Version != expectVersion {
		return nil, domain.ErrConflict
	}
	c.Status = update.NewStatus
	if update.IssuedBy != "" {
		c.IssuedBy = update.IssuedBy
	}
	if update.IssuedAt != nil {
		c.IssuedAt = update.IssuedAt
	}
	if update.Revocation != nil {
		rev := *update.Revocation
		c.Revocation = &rev
	}
	if update.ReleaseProofs {
		r.proofs.mu.Lock()
		for _, p := range r.proofs.proofs {
			if p.CertificateID == id {
				p.CertificateID = ""
			}
		}
		r.proofs.mu.Unlock()
	}
	c.Version++
	return cloneCert(c), nil
}

func (r *fakeCertRepo) AppendDownload(ctx context.Context, id string, record domain.DownloadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.DownloadHistory = append(c.DownloadHistory, record)
	return nil
}

func (r *fakeCertRepo) ExpireDue(ctx context.Context, now time.Time) ([]domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []domain.Certificate
	for _, c := range r.certs {
		if c.Status == domain.CertStatusIssued && c.Validity.End.Before(now) {
			c.Status = domain.CertStatusExpired
			c.Version++
			expired = append(expired, *cloneCert(c))
		}
	}
	return expired, nil
}

var _ CertificateRepository = (*fakeCertRepo)(nil)

type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []domain.AuditEntry
	appendErr error
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return domain.AuditEntry{}, r.appendErr
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *fakeAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			entry := r.entries[i]
			return &entry, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeAuditRepo) List(ctx context.Context, filter AuditListFilter) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if e.IsArchived && !filter.IncludeArchived {
			continue
		}
		if filter.TargetID != "" && e.TargetID != filter.TargetID {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ArchiveOlderThan(ctx context.Context, cutoff, archivedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for i := range r.entries {
		if !r.entries[i].IsArchived && r.entries[i].CreatedAt.Before(cutoff) {
			r.entries[i].IsArchived = true
			at := archivedAt
			r.entries[i].ArchivedAt = &at
			count++
		}
	}
	return count, nil
}

func (r *fakeAuditRepo) Anonymize(ctx context.Context, id, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries[i].Detail = detail
			r.entries[i].Metadata = nil
			r.entries[i].UserAgent = ""
			r.entries[i].Geolocation = ""
			r.entries[i].IPAddress = ""
			r.entries[i].Anonymized = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeAuditRepo) Statistics(ctx context.Context, since time.Time) (domain.AuditStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := domain.AuditStatistics{
		ByStatus:   make(map[domain.AuditStatus]int64),
		BySeverity: make(map[domain.AuditSeverity]int64),
		ByCategory: make(map[domain.AuditCategory]int64),
	}
	for _, e := range r.entries {
		if e.IsArchived || e.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		stats.ByStatus[e.Status]++
		stats.BySeverity[e.Severity]++
		stats.ByCategory[e.Category]++
	}
	return stats, nil
}

func (r *fakeAuditRepo) countByType(actionType domain.AuditActionType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.entries {
		if e.ActionType == actionType {
			count++
		}
	}
	return count
}

var _ AuditRepository = (*fakeAuditRepo)(nil)

// waitForAudit polls until at least n entries of the given type landed. The
// recorder writes asynchronously, so assertions on audit output must wait.
func waitForAudit(t *testing.T, repo *fakeAuditRepo, actionType domain.AuditActionType, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if repo.countByType(actionType) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d audit entries of type %s", n, actionType)
}

type countingCache struct {
	mu      sync.Mutex
	values  map[string]domain.VerificationResult
	gets    int
	puts    int
	hits    int
	lastTTL time.Duration
}

func newCountingCache() *countingCache {
	return &countingCache{values: make(map[string]domain.VerificationResult)}
}

func (c *countingCache) Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.values[key]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &v, true, nil
}

func (c *countingCache) Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.lastTTL = ttl
	c.values[key] = value
	return nil
}

var _ VerificationCache = (*countingCache)(nil)

type stubPolicy struct {
	decision PolicyDecision
	err      error
	inputs   []PolicyInput
}

func (p *stubPolicy) Evaluate(ctx context.Context, input PolicyInput) (PolicyDecision, error) {
	p.inputs = append(p.inputs, input)
	return p.decision, p.err
}

var _ IssuancePolicy = (*stubPolicy)(nil)
