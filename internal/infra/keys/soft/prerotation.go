package soft

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"keryx/internal/domain"
)

// PreRotator generates the key pairs an identity controller needs for
// pre-rotation: a fresh key plus the commitment digest of the key after it.
type PreRotator struct {
	keys *Manager
}

func NewPreRotator(keys *Manager) *PreRotator {
	return &PreRotator{keys: keys}
}

// Generate creates a new ed25519 key pair for identityID under purpose and
// stashes the private half in the manager.
func (r *PreRotator) Generate(_ context.Context, identityID string, purpose domain.KeyPurpose) (domain.IdentityKey, error) {
	if identityID == "" {
		return domain.IdentityKey{}, errors.New("identity_id is required")
	}
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.IdentityKey{}, err
	}
	kid := KIDFromPublicKey(pubKey)
	if r.keys != nil {
		if err := r.keys.Put(domain.KeyRef{
			IdentityID: identityID,
			Purpose:    purpose,
			KID:        kid,
		}, privKey); err != nil {
			return domain.IdentityKey{}, err
		}
	}
	return domain.IdentityKey{
		IdentityID: identityID,
		KID:        kid,
		Purpose:    purpose,
		Alg:        "ed25519",
		PublicKey:  pubKey,
		Status:     domain.KeyStatusActive,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Promote moves key material stashed under the next purpose to current,
// which is what a rotation does once the committed key becomes active.
func (r *PreRotator) Promote(identityID, kid string) error {
	if r == nil || r.keys == nil {
		return errors.New("key manager is required")
	}
	nextRef := domain.KeyRef{IdentityID: identityID, Purpose: domain.KeyPurposeNext, KID: kid}
	key := r.keys.lookupKey(nextRef)
	if key == nil {
		return errors.New("no staged key for kid")
	}
	if err := r.keys.Put(domain.KeyRef{
		IdentityID: identityID,
		Purpose:    domain.KeyPurposeCurrent,
		KID:        kid,
	}, key); err != nil {
		return err
	}
	r.keys.Drop(nextRef)
	return nil
}

func KIDFromPublicKey(pubKey ed25519.PublicKey) string {
	sum := sha256.Sum256(pubKey)
	return hex.EncodeToString(sum[:])
}
