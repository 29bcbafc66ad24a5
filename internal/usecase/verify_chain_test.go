package usecase

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"keryx/internal/domain"
	"keryx/internal/infra/crypto"
)

func testSeedKey(b byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize))
}

func publicKey(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}

// buildTestLog produces a valid n-event log for identityID. Key i signs
// event i; the log commits to key i+1 one event ahead.
func buildTestLog(t *testing.T, identityID string, n int) []domain.KeyEvent {
	t.Helper()
	svc := crypto.NewService()
	keys := make([]ed25519.PrivateKey, n+1)
	for i := range keys {
		keys[i] = testSeedKey(byte(0x30 + i))
	}

	events := make([]domain.KeyEvent, 0, n)
	for i := 0; i < n; i++ {
		kind := domain.EventKindRotation
		var prior []byte
		if i == 0 {
			kind = domain.EventKindInception
		} else {
			digest, err := svc.EventDigest(events[i-1])
			if err != nil {
				t.Fatalf("digest event %d: %v", i-1, err)
			}
			prior = digest
		}
		event := domain.KeyEvent{
			IdentityID:       identityID,
			Sequence:         uint64(i),
			Kind:             kind,
			CurrentKey:       append([]byte(nil), publicKey(keys[i])...),
			NextKeyDigest:    svc.KeyDigest(publicKey(keys[i+1])),
			PriorEventDigest: prior,
			Timestamp:        time.Date(2026, 3, 1, 9, i, 0, 0, time.UTC).Format(time.RFC3339),
		}
		events = append(events, signTestEvent(t, event, keys[i]))
	}
	return events
}

func signTestEvent(t *testing.T, event domain.KeyEvent, key ed25519.PrivateKey) domain.KeyEvent {
	t.Helper()
	payload, err := crypto.NewService().CanonicalizeEventPayload(event)
	if err != nil {
		t.Fatalf("canonicalize event payload: %v", err)
	}
	event.Signature = ed25519.Sign(key, payload)
	return event
}

func TestVerifyChain_ValidLog(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 3)

	report, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if !report.Valid {
		t.Fatalf("expected valid chain, got %+v", report)
	}
	if report.IdentityID != "id-1" || report.EventCount != 3 {
		t.Fatalf("unexpected report header: %+v", report)
	}
	for i, result := range report.Events {
		if !result.SequenceContinuous || !result.KindOrdering || !result.PrerotationValid ||
			!result.ChainIntegrity || !result.SignatureValid {
			t.Fatalf("event %d has failed checks: %+v", i, result)
		}
		if result.FailedCheck != "" {
			t.Fatalf("event %d carries failed check %q on a valid log", i, result.FailedCheck)
		}
	}
}

func TestVerifyChain_EmptyLog(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	if _, err := verifier.VerifyChain(nil); err != domain.ErrEmptyLog {
		t.Fatalf("expected ErrEmptyLog, got %v", err)
	}
}

func TestVerifyChain_PrerotationMismatch(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 3)

	// A rotation to a key that was never committed must fail the
	// pre-rotation check even when the event signs correctly with it.
	evil := testSeedKey(0xEE)
	events[1].CurrentKey = append([]byte(nil), publicKey(evil)...)
	events[1] = signTestEvent(t, events[1], evil)

	report, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if report.Valid {
		t.Fatal("expected invalid chain")
	}
	result := report.Events[1]
	if result.PrerotationValid {
		t.Fatal("expected prerotation check to fail")
	}
	if !result.SignatureValid {
		t.Fatal("signature check should still pass for the substituted key")
	}
	if result.FailedCheck != domain.CheckPrerotationValid {
		t.Fatalf("expected prerotation_valid as failed check, got %q", result.FailedCheck)
	}
	if result.FailureClass != domain.ErrorClassChainIntegrity {
		t.Fatalf("unexpected failure class %q", result.FailureClass)
	}
	if !report.Events[0].Valid {
		t.Fatal("inception should remain valid")
	}
}

func TestVerifyChain_TamperedPriorDigest(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 2)

	events[1].PriorEventDigest[0] ^= 0xFF
	events[1] = signTestEvent(t, events[1], testSeedKey(0x31))

	report, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	result := report.Events[1]
	if result.ChainIntegrity {
		t.Fatal("expected chain integrity check to fail")
	}
	if result.FailedCheck != domain.CheckChainIntegrity {
		t.Fatalf("expected chain_integrity as failed check, got %q", result.FailedCheck)
	}
	if !result.PrerotationValid || !result.SignatureValid {
		t.Fatalf("other checks must still run and pass: %+v", result)
	}
}

func TestVerifyChain_SequenceGap(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 3)

	events[2].Sequence = 5
	events[2] = signTestEvent(t, events[2], testSeedKey(0x32))

	report, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	result := report.Events[2]
	if result.SequenceContinuous {
		t.Fatal("expected sequence check to fail")
	}
	if result.FailedCheck != domain.CheckSequenceContinuous {
		t.Fatalf("expected sequence_continuous as failed check, got %q", result.FailedCheck)
	}
	if result.FailureClass != domain.ErrorClassStructural {
		t.Fatalf("unexpected failure class %q", result.FailureClass)
	}
}

func TestVerifyChain_RotationAsFirstEvent(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 1)

	events[0].Kind = domain.EventKindRotation
	events[0] = signTestEvent(t, events[0], testSeedKey(0x30))

	report, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	result := report.Events[0]
	if result.KindOrdering {
		t.Fatal("expected kind ordering check to fail")
	}
	if result.FailedCheck != domain.CheckKindOrdering {
		t.Fatalf("expected kind_ordering as failed check, got %q", result.FailedCheck)
	}
}

func TestVerifyChain_InceptionWithPriorDigest(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 1)

	events[0].PriorEventDigest = bytes.Repeat([]byte{0x01}, 32)
	events[0] = signTestEvent(t, events[0], testSeedKey(0x30))

	report, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if report.Events[0].ChainIntegrity {
		t.Fatal("inception carrying a prior digest must fail chain integrity")
	}
}

func TestVerifyChain_CorruptedSignature(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 2)

	events[1].Signature[0] ^= 0xFF

	report, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	result := report.Events[1]
	if result.SignatureValid {
		t.Fatal("expected signature check to fail")
	}
	if result.FailedCheck != domain.CheckSignatureValid {
		t.Fatalf("expected signature_valid as failed check, got %q", result.FailedCheck)
	}
	if result.FailureClass != domain.ErrorClassCryptographic {
		t.Fatalf("unexpected failure class %q", result.FailureClass)
	}
	if !result.SequenceContinuous || !result.KindOrdering || !result.PrerotationValid || !result.ChainIntegrity {
		t.Fatalf("independent checks must still run: %+v", result)
	}
}

func TestVerifyChain_Deterministic(t *testing.T) {
	verifier := NewChainVerifier(crypto.NewService())
	events := buildTestLog(t, "id-1", 3)
	events[2].Signature[0] ^= 0xFF

	first, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	second, err := verifier.VerifyChain(events)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if len(first.Events) != len(second.Events) || first.Valid != second.Valid {
		t.Fatal("verification must be deterministic for identical input")
	}
	for i := range first.Events {
		if first.Events[i] != second.Events[i] {
			t.Fatalf("event %d report differs between runs", i)
		}
	}
}
