package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"keryx/internal/domain"
	"keryx/internal/infra/crypto"
)

type memEventRepo struct {
	events map[string][]domain.KeyEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string][]domain.KeyEvent)}
}

func (r *memEventRepo) Append(ctx context.Context, event domain.KeyEvent) error {
	r.events[event.IdentityID] = append(r.events[event.IdentityID], event)
	return nil
}

func (r *memEventRepo) ListByIdentity(ctx context.Context, identityID string) ([]domain.KeyEvent, error) {
	return r.events[identityID], nil
}

type memAuditRepo struct {
	events []domain.AuditEvent
}

func (r *memAuditRepo) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	event.Seq = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return event, nil
}

func (r *memAuditRepo) ListByIdentity(ctx context.Context, identityID string) ([]domain.AuditEvent, error) {
	return r.events, nil
}

type countingCache struct {
	entries map[string]domain.ChainVerification
	gets    int
	hits    int
	puts    int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[string]domain.ChainVerification)}
}

func (c *countingCache) Get(ctx context.Context, key string) (*domain.ChainVerification, bool, error) {
	c.gets++
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &entry, true, nil
}

func (c *countingCache) Put(ctx context.Context, key string, value domain.ChainVerification, ttl time.Duration) error {
	c.puts++
	c.entries[key] = value
	return nil
}

func newTestEventService(repo KeyEventRepository, audit *AuditEmitter) *KeyEventService {
	return NewKeyEventService(repo, NewChainVerifier(crypto.NewService()), audit, nil)
}

func TestKeyEventService_AppendValidLog(t *testing.T) {
	repo := newMemEventRepo()
	service := newTestEventService(repo, nil)
	events := buildTestLog(t, "id-1", 3)

	for i, event := range events {
		report, err := service.Append(context.Background(), event)
		if err != nil {
			t.Fatalf("append event %d: %v", i, err)
		}
		if !report.Valid || report.EventCount != i+1 {
			t.Fatalf("append event %d: unexpected report %+v", i, report)
		}
	}
	if got := len(repo.events["id-1"]); got != 3 {
		t.Fatalf("expected 3 persisted events, got %d", got)
	}
}

func TestKeyEventService_RejectsInvalidAppend(t *testing.T) {
	repo := newMemEventRepo()
	service := newTestEventService(repo, nil)
	events := buildTestLog(t, "id-1", 2)

	if _, err := service.Append(context.Background(), events[0]); err != nil {
		t.Fatalf("append inception: %v", err)
	}

	bad := events[1]
	bad.Signature = append([]byte(nil), bad.Signature...)
	bad.Signature[0] ^= 0xFF

	report, err := service.Append(context.Background(), bad)
	if !errors.Is(err, ErrEventRejected) {
		t.Fatalf("expected ErrEventRejected, got %v", err)
	}
	if report.Valid {
		t.Fatal("rejection must come with an invalid report")
	}
	if report.Events[1].FailedCheck != domain.CheckSignatureValid {
		t.Fatalf("unexpected failed check %q", report.Events[1].FailedCheck)
	}
	if got := len(repo.events["id-1"]); got != 1 {
		t.Fatalf("rejected event must not be persisted, repo holds %d events", got)
	}
}

func TestKeyEventService_AppendEmitsAudit(t *testing.T) {
	repo := newMemEventRepo()
	auditRepo := &memAuditRepo{}
	service := newTestEventService(repo, NewAuditEmitter(auditRepo, nil))
	events := buildTestLog(t, "id-1", 2)

	for i, event := range events {
		if _, err := service.Append(context.Background(), event); err != nil {
			t.Fatalf("append event %d: %v", i, err)
		}
	}
	if len(auditRepo.events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(auditRepo.events))
	}
	if auditRepo.events[0].EventType != domain.AuditEventInceptionRecorded {
		t.Fatalf("unexpected first audit event %q", auditRepo.events[0].EventType)
	}
	if auditRepo.events[1].EventType != domain.AuditEventRotationRecorded {
		t.Fatalf("unexpected second audit event %q", auditRepo.events[1].EventType)
	}
}

func TestKeyEventService_VerifyLogUsesCache(t *testing.T) {
	repo := newMemEventRepo()
	service := newTestEventService(repo, nil)
	cache := newCountingCache()
	service.Cache = cache
	service.CacheTTL = time.Minute

	for _, event := range buildTestLog(t, "id-1", 2) {
		repo.events["id-1"] = append(repo.events["id-1"], event)
	}

	first, err := service.VerifyLog(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("verify log: %v", err)
	}
	second, err := service.VerifyLog(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("verify log: %v", err)
	}
	if cache.puts != 1 || cache.hits != 1 {
		t.Fatalf("expected one put and one hit, got puts=%d hits=%d", cache.puts, cache.hits)
	}
	if first.Valid != second.Valid || first.EventCount != second.EventCount {
		t.Fatal("cached report must match the computed one")
	}

	// Appending extends the chain digest, so the next verify misses.
	rotation := buildTestLog(t, "id-1", 3)[2]
	if _, err := service.Append(context.Background(), rotation); err != nil {
		t.Fatalf("append rotation: %v", err)
	}
	third, err := service.VerifyLog(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("verify log: %v", err)
	}
	if third.EventCount != 3 {
		t.Fatalf("expected fresh report for the extended log, got %+v", third)
	}
	if cache.puts != 2 {
		t.Fatalf("expected second put after append, got %d", cache.puts)
	}
}

func TestKeyEventService_VerifyEmptyLog(t *testing.T) {
	service := newTestEventService(newMemEventRepo(), nil)
	if _, err := service.VerifyLog(context.Background(), "missing"); err != domain.ErrEmptyLog {
		t.Fatalf("expected ErrEmptyLog, got %v", err)
	}
}

func TestKeyEventService_CompareObservations(t *testing.T) {
	repo := newMemEventRepo()
	auditRepo := &memAuditRepo{}
	service := newTestEventService(repo, NewAuditEmitter(auditRepo, nil))
	repo.events["id-1"] = buildTestLog(t, "id-1", 3)

	observed := buildTestLog(t, "id-1", 3)
	finding, err := service.CompareObservations(context.Background(), "id-1", observed)
	if err != nil {
		t.Fatalf("compare observations: %v", err)
	}
	if finding != nil {
		t.Fatalf("matching observations must not fork, got %+v", finding)
	}

	observed[2].NextKeyDigest = append([]byte(nil), observed[2].NextKeyDigest...)
	observed[2].NextKeyDigest[0] ^= 0xFF
	finding, err = service.CompareObservations(context.Background(), "id-1", observed)
	if err != nil {
		t.Fatalf("compare observations: %v", err)
	}
	if finding == nil || finding.Sequence != 2 {
		t.Fatalf("expected fork at sequence 2, got %+v", finding)
	}
	if len(auditRepo.events) == 0 || auditRepo.events[len(auditRepo.events)-1].EventType != domain.AuditEventDuplicityDetected {
		t.Fatal("expected a duplicity audit event")
	}
}
