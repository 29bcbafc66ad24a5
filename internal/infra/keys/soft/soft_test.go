package soft

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"keryx/internal/config"
	"keryx/internal/domain"
)

func TestManager_SignAndVerify(t *testing.T) {
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x01}, ed25519.SeedSize))
	ref := domain.KeyRef{IdentityID: "id-1", Purpose: domain.KeyPurposeCurrent, KID: "kid-1"}
	mgr := NewManager(map[domain.KeyRef]ed25519.PrivateKey{ref: key})

	payload := []byte("payload")
	sig, err := mgr.Sign(context.Background(), ref, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub := key.Public().(ed25519.PublicKey)
	if err := mgr.Verify(context.Background(), ref, payload, sig, pub); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := mgr.Verify(context.Background(), ref, []byte("other"), sig, pub); err == nil {
		t.Fatal("verify must fail for a different payload")
	}
}

func TestManager_SignUnknownRef(t *testing.T) {
	mgr := NewManager(nil)
	ref := domain.KeyRef{IdentityID: "id-1", Purpose: domain.KeyPurposeCurrent, KID: "ghost"}
	if _, err := mgr.Sign(context.Background(), ref, []byte("payload")); err == nil {
		t.Fatal("sign must fail for unknown key material")
	}
}

func TestManager_RejectsInvalidRef(t *testing.T) {
	mgr := NewManager(nil)
	if _, err := mgr.Sign(context.Background(), domain.KeyRef{}, []byte("payload")); err == nil {
		t.Fatal("empty key ref must be rejected")
	}
	badPurpose := domain.KeyRef{IdentityID: "id-1", Purpose: "signing", KID: "kid-1"}
	if _, err := mgr.Sign(context.Background(), badPurpose, []byte("payload")); err == nil {
		t.Fatal("unknown purpose must be rejected")
	}
}

func TestManager_WitnessKeyFromConfig(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, ed25519.SeedSize)
	key := ed25519.NewKeyFromSeed(seed)
	mgr := NewManagerFromConfig(config.Config{WitnessPrivateKeySeedHex: hex.EncodeToString(seed)})

	ref := domain.KeyRef{IdentityID: "id-1", Purpose: domain.KeyPurposeWitness, KID: "witness-1"}
	sig, err := mgr.Sign(context.Background(), ref, []byte("payload"))
	if err != nil {
		t.Fatalf("sign with config witness key: %v", err)
	}
	pub := key.Public().(ed25519.PublicKey)
	if !ed25519.Verify(pub, []byte("payload"), sig) {
		t.Fatal("signature must come from the configured witness key")
	}
}

func TestPreRotator_Generate(t *testing.T) {
	mgr := NewManager(nil)
	rotator := NewPreRotator(mgr)

	identityKey, err := rotator.Generate(context.Background(), "id-1", domain.KeyPurposeNext)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sum := sha256.Sum256(identityKey.PublicKey)
	if identityKey.KID != hex.EncodeToString(sum[:]) {
		t.Fatalf("kid must be the public key digest, got %q", identityKey.KID)
	}
	if identityKey.Alg != "ed25519" || identityKey.Status != domain.KeyStatusActive {
		t.Fatalf("unexpected identity key: %+v", identityKey)
	}

	ref := domain.KeyRef{IdentityID: "id-1", Purpose: domain.KeyPurposeNext, KID: identityKey.KID}
	sig, err := mgr.Sign(context.Background(), ref, []byte("payload"))
	if err != nil {
		t.Fatalf("sign with generated key: %v", err)
	}
	if !ed25519.Verify(identityKey.PublicKey, []byte("payload"), sig) {
		t.Fatal("generated private key must match the returned public key")
	}
}

func TestPreRotator_Generate_RequiresIdentity(t *testing.T) {
	rotator := NewPreRotator(NewManager(nil))
	if _, err := rotator.Generate(context.Background(), "", domain.KeyPurposeNext); err == nil {
		t.Fatal("missing identity must be rejected")
	}
}

func TestPreRotator_Promote(t *testing.T) {
	mgr := NewManager(nil)
	rotator := NewPreRotator(mgr)

	identityKey, err := rotator.Generate(context.Background(), "id-1", domain.KeyPurposeNext)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := rotator.Promote("id-1", identityKey.KID); err != nil {
		t.Fatalf("promote: %v", err)
	}

	currentRef := domain.KeyRef{IdentityID: "id-1", Purpose: domain.KeyPurposeCurrent, KID: identityKey.KID}
	if _, err := mgr.Sign(context.Background(), currentRef, []byte("payload")); err != nil {
		t.Fatalf("promoted key must sign under the current purpose: %v", err)
	}
	nextRef := domain.KeyRef{IdentityID: "id-1", Purpose: domain.KeyPurposeNext, KID: identityKey.KID}
	if _, err := mgr.Sign(context.Background(), nextRef, []byte("payload")); err == nil {
		t.Fatal("promoted key must no longer sign under the next purpose")
	}
}

func TestPreRotator_PromoteUnknownKID(t *testing.T) {
	rotator := NewPreRotator(NewManager(nil))
	if err := rotator.Promote("id-1", "ghost"); err == nil {
		t.Fatal("promoting an unstaged kid must fail")
	}
}
