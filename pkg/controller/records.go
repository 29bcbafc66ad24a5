package controller

import (
	"crypto/ed25519"
	"errors"
	"time"

	"keryx/internal/domain"
	cryptoinfra "keryx/internal/infra/crypto"
)

// BuildRotationRecord creates a dual-signed rotation record. Both the
// outgoing and the incoming key sign the record with the signature fields
// empty, so either signature can be checked without the other. A nil
// prevRecord starts a fresh chain.
func BuildRotationRecord(identityID, oldKeyID, newKeyID string, oldKey, newKey ed25519.PrivateKey, effectiveAt time.Time, prevRecord *domain.RotationRecord, reason string) (domain.RotationRecord, error) {
	if identityID == "" || oldKeyID == "" || newKeyID == "" {
		return domain.RotationRecord{}, errors.New("identity id and both key ids are required")
	}
	if oldKeyID == newKeyID {
		return domain.RotationRecord{}, errors.New("old and new key ids must differ")
	}
	if len(oldKey) != ed25519.PrivateKeySize || len(newKey) != ed25519.PrivateKeySize {
		return domain.RotationRecord{}, errors.New("invalid ed25519 private key")
	}
	if effectiveAt.IsZero() {
		effectiveAt = time.Now()
	}

	service := cryptoinfra.NewService()
	record := domain.RotationRecord{
		IdentityID:  identityID,
		OldKeyID:    oldKeyID,
		NewKeyID:    newKeyID,
		EffectiveAt: effectiveAt.UTC().Format(time.RFC3339),
		Reason:      reason,
	}
	if prevRecord != nil {
		digest, err := service.RotationRecordDigest(*prevRecord)
		if err != nil {
			return domain.RotationRecord{}, err
		}
		record.PrevRecordDigest = digest
	}

	payload, err := service.CanonicalizeRotationRecord(record)
	if err != nil {
		return domain.RotationRecord{}, err
	}
	record.OldKeySignature = ed25519.Sign(oldKey, payload)
	record.NewKeySignature = ed25519.Sign(newKey, payload)
	return record, nil
}

// MarshalRotationRecord renders a record in its canonical signed form.
func MarshalRotationRecord(record domain.RotationRecord) ([]byte, error) {
	return cryptoinfra.NewService().CanonicalizeRotationRecord(record)
}
