package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"keryx/internal/domain"
)

var ErrEventRejected = errors.New("event rejected: chain verification failed")

// KeyEventService is the server-side append path for key event logs. Every
// append replays the full candidate chain first; an event that would break
// any invariant is rejected before it is stored, keeping persisted logs
// valid by construction. Verification of stored logs remains available for
// forensic inspection even when a log has been corrupted upstream.
type KeyEventService struct {
	Events   KeyEventRepository
	Verifier *ChainVerifier
	Audit    *AuditEmitter
	Cache    VerificationCache
	CacheTTL time.Duration
	Clock    Clock
}

func NewKeyEventService(events KeyEventRepository, verifier *ChainVerifier, audit *AuditEmitter, clock Clock) *KeyEventService {
	return &KeyEventService{
		Events:   events,
		Verifier: verifier,
		Audit:    audit,
		Clock:    clock,
	}
}

// Append validates the stored log extended with event and persists the event
// only if the whole chain verifies. The verification report is returned
// either way so callers see exactly which check failed.
func (s *KeyEventService) Append(ctx context.Context, event domain.KeyEvent) (domain.ChainVerification, error) {
	if s.Events == nil || s.Verifier == nil {
		return domain.ChainVerification{}, errors.New("event repository and verifier are required")
	}
	if event.IdentityID == "" {
		return domain.ChainVerification{}, errors.New("identity_id is required")
	}

	existing, err := s.Events.ListByIdentity(ctx, event.IdentityID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.ChainVerification{}, err
	}

	candidate := make([]domain.KeyEvent, 0, len(existing)+1)
	candidate = append(candidate, existing...)
	candidate = append(candidate, event)

	report, err := s.Verifier.VerifyChain(candidate)
	if err != nil {
		return domain.ChainVerification{}, err
	}
	if !report.Valid {
		s.emitRecorded(ctx, event, domain.AuditResultFailure, string(report.Events[len(report.Events)-1].FailedCheck))
		return report, ErrEventRejected
	}

	if err := s.Events.Append(ctx, event); err != nil {
		return report, err
	}
	s.emitRecorded(ctx, event, domain.AuditResultSuccess, "")
	return report, nil
}

// VerifyLog replays the stored log for identityID. Reports are cached by
// chain digest; verification is pure, so a hit is always exact.
func (s *KeyEventService) VerifyLog(ctx context.Context, identityID string) (domain.ChainVerification, error) {
	if s.Events == nil || s.Verifier == nil {
		return domain.ChainVerification{}, errors.New("event repository and verifier are required")
	}
	events, err := s.Events.ListByIdentity(ctx, identityID)
	if err != nil {
		return domain.ChainVerification{}, err
	}

	cacheKey := s.chainCacheKey(identityID, events)
	if s.Cache != nil && cacheKey != "" {
		if cached, ok, err := s.Cache.Get(ctx, cacheKey); err == nil && ok && cached != nil {
			return *cached, nil
		}
	}

	report, err := s.Verifier.VerifyChain(events)
	if err != nil {
		return domain.ChainVerification{}, err
	}
	if s.Cache != nil && cacheKey != "" {
		_ = s.Cache.Put(ctx, cacheKey, report, s.CacheTTL)
	}
	return report, nil
}

// CompareObservations runs fork detection between the stored log and an
// externally observed copy, emitting an audit event on a positive finding.
func (s *KeyEventService) CompareObservations(ctx context.Context, identityID string, observed []domain.KeyEvent) (*domain.DuplicityFinding, error) {
	if s.Events == nil {
		return nil, errors.New("event repository is required")
	}
	stored, err := s.Events.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	seq := DetectFork(stored, observed)
	if seq == nil {
		return nil, nil
	}
	finding := NewDuplicityFinding(identityID, *seq, s.Clock)
	if s.Audit != nil {
		_ = s.Audit.EmitDuplicityDetected(ctx, domain.AuditActorSystem, "", identityID, *seq)
	}
	return &finding, nil
}

func (s *KeyEventService) chainCacheKey(identityID string, events []domain.KeyEvent) string {
	if len(events) == 0 {
		return ""
	}
	last, err := s.Verifier.Crypto.EventDigest(events[len(events)-1])
	if err != nil {
		return ""
	}
	return identityID + ":" + hex.EncodeToString(last)
}

func (s *KeyEventService) emitRecorded(ctx context.Context, event domain.KeyEvent, result domain.AuditResult, errorCode string) {
	if s.Audit == nil {
		return
	}
	switch event.Kind {
	case domain.EventKindInception:
		_ = s.Audit.EmitInceptionRecorded(ctx, domain.AuditActorController, "", event.IdentityID, result, errorCode)
	default:
		_ = s.Audit.EmitRotationRecorded(ctx, domain.AuditActorController, "", event.IdentityID, event.Sequence, result, errorCode)
	}
}
