package usecase

import (
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"keryx/internal/domain"
	"keryx/internal/infra/crypto"
)

func testRotationRequest(threshold, total int) domain.RotationRequest {
	return domain.RotationRequest{
		IdentityID:     "id-1",
		OldKey:         publicKey(testSeedKey(0x01)),
		NewKey:         publicKey(testSeedKey(0x02)),
		Nonce:          "nonce-1",
		CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Threshold:      threshold,
		TotalAttestors: total,
	}
}

func testCeremony(t *testing.T, threshold, total int) *Ceremony {
	t.Helper()
	ceremony, err := NewCeremony("cer-1", testRotationRequest(threshold, total), crypto.NewService(), nil)
	if err != nil {
		t.Fatalf("new ceremony: %v", err)
	}
	return ceremony
}

func attestWith(t *testing.T, ceremony *Ceremony, id, channel string, seed byte) domain.Attestation {
	t.Helper()
	key := testSeedKey(seed)
	return domain.Attestation{
		AttestorID:  id,
		AttestorKey: append([]byte(nil), publicKey(key)...),
		Signature:   ed25519.Sign(key, ceremony.Payload()),
		Channel:     channel,
	}
}

func TestCeremony_ThresholdCompletion(t *testing.T) {
	ceremony := testCeremony(t, 2, 3)
	if ceremony.State() != domain.CeremonyStateCreated {
		t.Fatalf("expected created state, got %q", ceremony.State())
	}

	if !ceremony.AddAttestation(attestWith(t, ceremony, "alice", "email", 0x41)) {
		t.Fatal("first attestation rejected")
	}
	if ceremony.IsComplete() {
		t.Fatal("one of two attestations must not complete the ceremony")
	}
	if ceremony.State() != domain.CeremonyStateCollecting {
		t.Fatalf("expected collecting state, got %q", ceremony.State())
	}

	if !ceremony.AddAttestation(attestWith(t, ceremony, "bob", "phone", 0x42)) {
		t.Fatal("second attestation rejected")
	}
	if !ceremony.IsComplete() {
		t.Fatal("threshold met, ceremony must be complete")
	}
	if ceremony.State() != domain.CeremonyStateComplete {
		t.Fatalf("expected complete state, got %q", ceremony.State())
	}
}

func TestCeremony_RejectsBadSignature(t *testing.T) {
	ceremony := testCeremony(t, 1, 2)
	att := attestWith(t, ceremony, "mallory", "email", 0x41)
	att.Signature[0] ^= 0xFF
	if ceremony.AddAttestation(att) {
		t.Fatal("forged attestation accepted")
	}
	if len(ceremony.Attestations()) != 0 {
		t.Fatal("rejected attestation must not be stored")
	}
	if ceremony.IsComplete() {
		t.Fatal("rejected attestation must not count toward the threshold")
	}
}

func TestCeremony_RejectsWrongPayloadSignature(t *testing.T) {
	ceremony := testCeremony(t, 1, 2)
	key := testSeedKey(0x41)
	att := domain.Attestation{
		AttestorID:  "alice",
		AttestorKey: append([]byte(nil), publicKey(key)...),
		Signature:   ed25519.Sign(key, []byte("some other payload")),
		Channel:     "email",
	}
	if ceremony.AddAttestation(att) {
		t.Fatal("signature over the wrong payload accepted")
	}
}

func TestCeremony_DeduplicatesAttestors(t *testing.T) {
	ceremony := testCeremony(t, 2, 3)
	if !ceremony.AddAttestation(attestWith(t, ceremony, "alice", "email", 0x41)) {
		t.Fatal("first attestation rejected")
	}
	if ceremony.AddAttestation(attestWith(t, ceremony, "alice-again", "phone", 0x41)) {
		t.Fatal("replayed attestor key accepted")
	}
	if ceremony.IsComplete() {
		t.Fatal("a single attestor must not satisfy a threshold of two")
	}
}

func TestCeremony_AcceptsOverCollection(t *testing.T) {
	ceremony := testCeremony(t, 1, 3)
	if !ceremony.AddAttestation(attestWith(t, ceremony, "alice", "email", 0x41)) {
		t.Fatal("first attestation rejected")
	}
	if !ceremony.AddAttestation(attestWith(t, ceremony, "bob", "phone", 0x42)) {
		t.Fatal("attestation after threshold must still be accepted")
	}
	if got := len(ceremony.Attestations()); got != 2 {
		t.Fatalf("expected 2 attestations, got %d", got)
	}
}

func TestCeremony_RejectsAfterPublish(t *testing.T) {
	ceremony := testCeremony(t, 1, 3)
	if !ceremony.AddAttestation(attestWith(t, ceremony, "alice", "email", 0x41)) {
		t.Fatal("first attestation rejected")
	}
	if err := ceremony.MarkPublished(); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if ceremony.AddAttestation(attestWith(t, ceremony, "bob", "phone", 0x42)) {
		t.Fatal("attestation after publish accepted")
	}
	if err := ceremony.MarkPublished(); err != domain.ErrCeremonyFinalized {
		t.Fatalf("expected ErrCeremonyFinalized, got %v", err)
	}
}

func TestCeremony_FinalizeIncomplete(t *testing.T) {
	ceremony := testCeremony(t, 2, 3)
	if _, err := ceremony.Finalize(); err != domain.ErrCeremonyIncomplete {
		t.Fatalf("expected ErrCeremonyIncomplete, got %v", err)
	}
	if err := ceremony.MarkPublished(); err != domain.ErrCeremonyIncomplete {
		t.Fatalf("expected ErrCeremonyIncomplete, got %v", err)
	}
}

func TestCeremony_FinalizeSnapshot(t *testing.T) {
	ceremony := testCeremony(t, 2, 3)
	ceremony.AddAttestation(attestWith(t, ceremony, "alice", "email", 0x41))
	ceremony.AddAttestation(attestWith(t, ceremony, "bob", "phone", 0x42))

	snapshot, err := ceremony.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if snapshot.CeremonyID != "cer-1" || len(snapshot.Attestations) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.Diversity.DistinctChannels != 2 || snapshot.Diversity.Warning {
		t.Fatalf("unexpected diversity: %+v", snapshot.Diversity)
	}

	// The snapshot must not alias ceremony state.
	snapshot.Attestations[0].Signature[0] ^= 0xFF
	if ceremony.Attestations()[0].Signature[0] == snapshot.Attestations[0].Signature[0] {
		t.Fatal("snapshot shares signature bytes with the ceremony")
	}
}

func TestCeremony_DiversityWarning(t *testing.T) {
	ceremony := testCeremony(t, 2, 3)
	ceremony.AddAttestation(attestWith(t, ceremony, "alice", "email", 0x41))
	ceremony.AddAttestation(attestWith(t, ceremony, "bob", "email", 0x42))

	diversity := ceremony.Diversity()
	if diversity.DistinctChannels != 1 || !diversity.Warning {
		t.Fatalf("expected single-channel warning, got %+v", diversity)
	}
	if !ceremony.IsComplete() {
		t.Fatal("channel concentration must not block completion")
	}
}

func TestCeremony_SelfAttested(t *testing.T) {
	ceremony := testCeremony(t, 1, 2)
	// Seed 0x01 is the ceremony's old key.
	ceremony.AddAttestation(attestWith(t, ceremony, "self", "console", 0x01))
	if !ceremony.SelfAttested() {
		t.Fatal("expected self-attestation to be reported")
	}
}

func TestCeremony_ConcurrentAttestors(t *testing.T) {
	const attestors = 16
	ceremony := testCeremony(t, attestors, attestors)

	var wg sync.WaitGroup
	for i := 0; i < attestors; i++ {
		wg.Add(1)
		go func(seed byte) {
			defer wg.Done()
			ceremony.AddAttestation(attestWith(t, ceremony, "att", "email", seed))
		}(byte(0x50 + i))
	}
	wg.Wait()

	if got := len(ceremony.Attestations()); got != attestors {
		t.Fatalf("expected %d attestations, got %d", attestors, got)
	}
	if !ceremony.IsComplete() {
		t.Fatal("all attestors submitted, ceremony must be complete")
	}
}

func TestCeremony_ConcurrentReplay(t *testing.T) {
	ceremony := testCeremony(t, 2, 3)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ceremony.AddAttestation(attestWith(t, ceremony, "alice", "email", 0x41)) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", accepted)
	}
	if len(ceremony.Attestations()) != 1 {
		t.Fatalf("expected one stored attestation, got %d", len(ceremony.Attestations()))
	}
}

func TestNewCeremony_Validation(t *testing.T) {
	svc := crypto.NewService()

	request := testRotationRequest(2, 3)
	request.OldKey = []byte("short")
	if _, err := NewCeremony("cer-1", request, svc, nil); err != domain.ErrInvalidKeyMaterial {
		t.Fatalf("expected ErrInvalidKeyMaterial, got %v", err)
	}

	request = testRotationRequest(4, 3)
	if _, err := NewCeremony("cer-1", request, svc, nil); err == nil {
		t.Fatal("threshold above total must be rejected")
	}

	request = testRotationRequest(0, 3)
	if _, err := NewCeremony("cer-1", request, svc, nil); err == nil {
		t.Fatal("zero threshold must be rejected")
	}

	request = testRotationRequest(2, 3)
	request.Nonce = ""
	if _, err := NewCeremony("cer-1", request, svc, nil); err == nil {
		t.Fatal("missing nonce must be rejected")
	}
}

func TestCeremony_PayloadIsStableAndCopied(t *testing.T) {
	// Payload bytes handed to attestors must be stable across calls.
	ceremony := testCeremony(t, 1, 1)
	first := ceremony.Payload()
	second := ceremony.Payload()
	if string(first) != string(second) {
		t.Fatal("ceremony payload must be stable")
	}
	first[0] ^= 0xFF
	if string(ceremony.Payload()) != string(second) {
		t.Fatal("payload copies must not alias internal state")
	}
}
