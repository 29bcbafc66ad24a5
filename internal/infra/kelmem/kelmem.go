// Package kelmem provides an in-memory, append-only key event log keyed by
// identity. Appends are idempotent by event digest, so a replayed submission
// of an already-stored event is not an error.
package kelmem

import (
	"bytes"
	"context"
	"encoding/hex"
	"sync"

	"keryx/internal/domain"
)

type DigestFunc func(domain.KeyEvent) ([]byte, error)

type Log struct {
	mu         sync.RWMutex
	identities map[string]*identityState
	digest     DigestFunc
}

type identityState struct {
	events      []domain.KeyEvent
	indexByHash map[string]int
	records     []domain.RotationRecord
}

func New(digest DigestFunc) *Log {
	return &Log{
		identities: make(map[string]*identityState),
		digest:     digest,
	}
}

func (l *Log) Append(ctx context.Context, event domain.KeyEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.IdentityID == "" {
		return domain.ErrIdentityMismatch
	}
	eventDigest, err := l.digest(event)
	if err != nil {
		return err
	}
	key := hex.EncodeToString(eventDigest)

	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.ensureIdentity(event.IdentityID)
	if _, ok := state.indexByHash[key]; ok {
		return nil
	}
	if want := uint64(len(state.events)); event.Sequence != want {
		return domain.ErrInvalidRotation
	}
	state.indexByHash[key] = len(state.events)
	state.events = append(state.events, cloneEvent(event))
	return nil
}

func (l *Log) ListByIdentity(ctx context.Context, identityID string) ([]domain.KeyEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	state := l.identities[identityID]
	if state == nil {
		return nil, nil
	}
	out := make([]domain.KeyEvent, 0, len(state.events))
	for _, event := range state.events {
		out = append(out, cloneEvent(event))
	}
	return out, nil
}

// AppendRecord stores a rotation record alongside the identity's event log.
// Idempotent by exact content match on the latest record.
func (l *Log) AppendRecord(ctx context.Context, record domain.RotationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.IdentityID == "" {
		return domain.ErrIdentityMismatch
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.ensureIdentity(record.IdentityID)
	if n := len(state.records); n > 0 && sameRecord(state.records[n-1], record) {
		return nil
	}
	state.records = append(state.records, cloneRecord(record))
	return nil
}

func (l *Log) ListRecordsByIdentity(ctx context.Context, identityID string) ([]domain.RotationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	state := l.identities[identityID]
	if state == nil {
		return nil, nil
	}
	out := make([]domain.RotationRecord, 0, len(state.records))
	for _, record := range state.records {
		out = append(out, cloneRecord(record))
	}
	return out, nil
}

// Records exposes the rotation record side of the store under the repository
// method names, since event and record appends share a receiver otherwise.
func (l *Log) Records() *RecordLog {
	return &RecordLog{log: l}
}

type RecordLog struct {
	log *Log
}

func (r *RecordLog) Append(ctx context.Context, record domain.RotationRecord) error {
	return r.log.AppendRecord(ctx, record)
}

func (r *RecordLog) ListByIdentity(ctx context.Context, identityID string) ([]domain.RotationRecord, error) {
	return r.log.ListRecordsByIdentity(ctx, identityID)
}

func (l *Log) ensureIdentity(identityID string) *identityState {
	state := l.identities[identityID]
	if state == nil {
		state = &identityState{
			indexByHash: make(map[string]int),
		}
		l.identities[identityID] = state
	}
	return state
}

func sameRecord(a, b domain.RotationRecord) bool {
	return a.IdentityID == b.IdentityID &&
		a.OldKeyID == b.OldKeyID &&
		a.NewKeyID == b.NewKeyID &&
		a.EffectiveAt == b.EffectiveAt &&
		bytes.Equal(a.OldKeySignature, b.OldKeySignature) &&
		bytes.Equal(a.NewKeySignature, b.NewKeySignature) &&
		bytes.Equal(a.PrevRecordDigest, b.PrevRecordDigest)
}

func cloneEvent(event domain.KeyEvent) domain.KeyEvent {
	out := event
	out.CurrentKey = cloneBytes(event.CurrentKey)
	out.NextKeyDigest = cloneBytes(event.NextKeyDigest)
	out.PriorEventDigest = cloneBytes(event.PriorEventDigest)
	out.Signature = cloneBytes(event.Signature)
	return out
}

func cloneRecord(record domain.RotationRecord) domain.RotationRecord {
	out := record
	out.OldKeySignature = cloneBytes(record.OldKeySignature)
	out.NewKeySignature = cloneBytes(record.NewKeySignature)
	out.PrevRecordDigest = cloneBytes(record.PrevRecordDigest)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
