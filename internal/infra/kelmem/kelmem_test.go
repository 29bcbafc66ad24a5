package kelmem

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"keryx/internal/domain"
)

func contentDigest(event domain.KeyEvent) ([]byte, error) {
	sum := sha256.Sum256([]byte(event.IdentityID + ":" + event.Timestamp + ":" + string(event.Signature)))
	return sum[:], nil
}

func testEvent(identityID string, seq uint64, sig string) domain.KeyEvent {
	kind := domain.EventKindRotation
	if seq == 0 {
		kind = domain.EventKindInception
	}
	return domain.KeyEvent{
		IdentityID: identityID,
		Sequence:   seq,
		Kind:       kind,
		CurrentKey: []byte("pub-" + sig),
		Timestamp:  "2026-03-01T09:00:00Z",
		Signature:  []byte(sig),
	}
}

func TestLog_AppendAndList(t *testing.T) {
	log := New(contentDigest)
	ctx := context.Background()

	if err := log.Append(ctx, testEvent("id-1", 0, "a")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, testEvent("id-1", 1, "b")); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := log.ListByIdentity(ctx, "id-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].Sequence != 0 || events[1].Sequence != 1 {
		t.Fatalf("unexpected events: %+v", events)
	}

	// Listed events must not alias stored state.
	events[0].Signature[0] = 'z'
	again, _ := log.ListByIdentity(ctx, "id-1")
	if again[0].Signature[0] == 'z' {
		t.Fatal("list must return copies")
	}
}

func TestLog_AppendIdempotent(t *testing.T) {
	log := New(contentDigest)
	ctx := context.Background()

	event := testEvent("id-1", 0, "a")
	if err := log.Append(ctx, event); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, event); err != nil {
		t.Fatalf("replayed append must be a no-op, got %v", err)
	}
	events, _ := log.ListByIdentity(ctx, "id-1")
	if len(events) != 1 {
		t.Fatalf("expected one stored event, got %d", len(events))
	}
}

func TestLog_AppendRejectsSequenceGap(t *testing.T) {
	log := New(contentDigest)
	ctx := context.Background()

	if err := log.Append(ctx, testEvent("id-1", 0, "a")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, testEvent("id-1", 5, "b")); !errors.Is(err, domain.ErrInvalidRotation) {
		t.Fatalf("expected ErrInvalidRotation, got %v", err)
	}
}

func TestLog_AppendRequiresIdentity(t *testing.T) {
	log := New(contentDigest)
	if err := log.Append(context.Background(), testEvent("", 0, "a")); !errors.Is(err, domain.ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestLog_IsolatesIdentities(t *testing.T) {
	log := New(contentDigest)
	ctx := context.Background()

	if err := log.Append(ctx, testEvent("id-1", 0, "a")); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, err := log.ListByIdentity(ctx, "id-2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for id-2, got %d", len(events))
	}
}

func TestRecordLog_AppendAndList(t *testing.T) {
	log := New(contentDigest)
	records := log.Records()
	ctx := context.Background()

	record := domain.RotationRecord{
		IdentityID:      "id-1",
		OldKeyID:        "k0",
		NewKeyID:        "k1",
		EffectiveAt:     "2026-03-01T10:00:00Z",
		OldKeySignature: []byte("old"),
		NewKeySignature: []byte("new"),
	}
	if err := records.Append(ctx, record); err != nil {
		t.Fatalf("append record: %v", err)
	}
	// Re-appending the identical record is a no-op.
	if err := records.Append(ctx, record); err != nil {
		t.Fatalf("replayed record append: %v", err)
	}

	stored, err := records.ListByIdentity(ctx, "id-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(stored) != 1 || stored[0].NewKeyID != "k1" {
		t.Fatalf("unexpected records: %+v", stored)
	}
}
