package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"keryx/internal/domain"
)

// AuditEmitter appends operational audit events to the hash-chained audit
// trail. The audit trail is telemetry about what the service did; the key
// event log itself remains the security-bearing record.
type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{
		Repo:  repo,
		Clock: clock,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.EventType == "" || event.TargetType == "" || event.Result == "" || event.ActorType == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) EmitInceptionRecorded(ctx context.Context, actorType domain.AuditActorType, actorID string, identityID string, result domain.AuditResult, errorCode string) error {
	payload := map[string]any{
		"identity_id": identityID,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		IdentityID:  identityID,
		ActorType:   actorType,
		ActorIDHash: hashString(actorID),
		EventType:   domain.AuditEventInceptionRecorded,
		Payload:     payload,
		TargetType:  domain.AuditTargetEvent,
		TargetID:    identityID + ":0",
		Result:      result,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitRotationRecorded(ctx context.Context, actorType domain.AuditActorType, actorID string, identityID string, sequence uint64, result domain.AuditResult, errorCode string) error {
	payload := map[string]any{
		"identity_id": identityID,
		"sequence":    sequence,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		IdentityID:  identityID,
		ActorType:   actorType,
		ActorIDHash: hashString(actorID),
		EventType:   domain.AuditEventRotationRecorded,
		Payload:     payload,
		TargetType:  domain.AuditTargetEvent,
		TargetID:    identityID + ":" + strconv.FormatUint(sequence, 10),
		Result:      result,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitCeremonyCreated(ctx context.Context, actorType domain.AuditActorType, actorID string, identityID, ceremonyID string, threshold, total int) error {
	payload := map[string]any{
		"identity_id":     identityID,
		"ceremony_id":     ceremonyID,
		"threshold":       threshold,
		"total_attestors": total,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		IdentityID:  identityID,
		ActorType:   actorType,
		ActorIDHash: hashString(actorID),
		EventType:   domain.AuditEventCeremonyCreated,
		Payload:     payload,
		TargetType:  domain.AuditTargetCeremony,
		TargetID:    ceremonyID,
		Result:      domain.AuditResultSuccess,
	})
	return err
}

func (e *AuditEmitter) EmitCeremonyCompleted(ctx context.Context, actorType domain.AuditActorType, actorID string, identityID, ceremonyID string, attestations int, distinctChannels int) error {
	payload := map[string]any{
		"identity_id":       identityID,
		"ceremony_id":       ceremonyID,
		"attestations":      attestations,
		"distinct_channels": distinctChannels,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		IdentityID:  identityID,
		ActorType:   actorType,
		ActorIDHash: hashString(actorID),
		EventType:   domain.AuditEventCeremonyCompleted,
		Payload:     payload,
		TargetType:  domain.AuditTargetCeremony,
		TargetID:    ceremonyID,
		Result:      domain.AuditResultSuccess,
	})
	return err
}

func (e *AuditEmitter) EmitWitnessPublished(ctx context.Context, actorType domain.AuditActorType, actorID string, identityID, ceremonyID, contentHash string, result domain.AuditResult, errorCode string) error {
	payload := map[string]any{
		"identity_id": identityID,
		"ceremony_id": ceremonyID,
	}
	if contentHash != "" {
		payload["content_hash"] = contentHash
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		IdentityID:  identityID,
		ActorType:   actorType,
		ActorIDHash: hashString(actorID),
		EventType:   domain.AuditEventWitnessPublished,
		Payload:     payload,
		TargetType:  domain.AuditTargetReceipt,
		TargetID:    contentHash,
		Result:      result,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitDuplicityDetected(ctx context.Context, actorType domain.AuditActorType, actorID string, identityID string, sequence uint64) error {
	payload := map[string]any{
		"identity_id": identityID,
		"sequence":    sequence,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		IdentityID:  identityID,
		ActorType:   actorType,
		ActorIDHash: hashString(actorID),
		EventType:   domain.AuditEventDuplicityDetected,
		Payload:     payload,
		TargetType:  domain.AuditTargetIdentity,
		TargetID:    identityID,
		Result:      domain.AuditResultFailure,
		ErrorCode:   "DUPLICITY",
	})
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

func hashString(value string) string {
	if value == "" {
		return ""
	}
	return sha256HexString([]byte(value))
}

func sha256HexString(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
