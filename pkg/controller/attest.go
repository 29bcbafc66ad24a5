package controller

import (
	"crypto/ed25519"
	"errors"
	"time"

	"keryx/internal/domain"
	cryptoinfra "keryx/internal/infra/crypto"
)

// AttestationPayload returns the exact bytes an attestor signs for a
// rotation request. It matches what the ceremony endpoint hands out, so an
// offline attestor can derive it from the request alone.
func AttestationPayload(request domain.RotationRequest) ([]byte, error) {
	return cryptoinfra.NewService().CanonicalizeAttestationPayload(request)
}

// Attest signs a ceremony payload with the attestor's key. The channel names
// how the payload reached the attestor, not a transport the server checks.
func Attest(payload []byte, attestorID, channel string, key ed25519.PrivateKey) (domain.Attestation, error) {
	if attestorID == "" {
		return domain.Attestation{}, errors.New("attestor id is required")
	}
	if len(payload) == 0 {
		return domain.Attestation{}, errors.New("payload is required")
	}
	if len(key) != ed25519.PrivateKeySize {
		return domain.Attestation{}, errors.New("invalid ed25519 private key")
	}
	pub := key.Public().(ed25519.PublicKey)
	return domain.Attestation{
		AttestorID:  attestorID,
		AttestorKey: append([]byte(nil), pub...),
		Signature:   ed25519.Sign(key, payload),
		Channel:     channel,
		AttestedAt:  time.Now().UTC(),
	}, nil
}
