package controller

import (
	"crypto/ed25519"
	"errors"
	"time"

	"keryx/internal/domain"
	cryptoinfra "keryx/internal/infra/crypto"
)

// BuildInception creates and signs the first event of an identity's log. The
// next key stays offline: only its digest is committed.
func BuildInception(identityID string, currentKey ed25519.PrivateKey, nextPub ed25519.PublicKey, at time.Time) (domain.KeyEvent, error) {
	return buildEvent(identityID, 0, domain.EventKindInception, currentKey, nextPub, nil, at)
}

// BuildRotation creates and signs the event that reveals the key committed
// by priorEvent and commits the digest of nextPub.
func BuildRotation(identityID string, sequence uint64, currentKey ed25519.PrivateKey, nextPub ed25519.PublicKey, priorEvent domain.KeyEvent, at time.Time) (domain.KeyEvent, error) {
	if sequence == 0 {
		return domain.KeyEvent{}, errors.New("rotation sequence must be greater than zero")
	}
	service := cryptoinfra.NewService()
	priorDigest, err := service.EventDigest(priorEvent)
	if err != nil {
		return domain.KeyEvent{}, err
	}
	return buildEvent(identityID, sequence, domain.EventKindRotation, currentKey, nextPub, priorDigest, at)
}

func buildEvent(identityID string, sequence uint64, kind domain.EventKind, currentKey ed25519.PrivateKey, nextPub ed25519.PublicKey, priorDigest []byte, at time.Time) (domain.KeyEvent, error) {
	if identityID == "" {
		return domain.KeyEvent{}, errors.New("identity id is required")
	}
	if len(currentKey) != ed25519.PrivateKeySize {
		return domain.KeyEvent{}, errors.New("invalid ed25519 private key")
	}
	if len(nextPub) != ed25519.PublicKeySize {
		return domain.KeyEvent{}, errors.New("invalid ed25519 next public key")
	}
	if at.IsZero() {
		at = time.Now()
	}

	service := cryptoinfra.NewService()
	currentPub := currentKey.Public().(ed25519.PublicKey)
	event := domain.KeyEvent{
		IdentityID:       identityID,
		Sequence:         sequence,
		Kind:             kind,
		CurrentKey:       append([]byte(nil), currentPub...),
		NextKeyDigest:    service.KeyDigest(nextPub),
		PriorEventDigest: priorDigest,
		Timestamp:        at.UTC().Format(time.RFC3339),
	}
	payload, err := service.CanonicalizeEventPayload(event)
	if err != nil {
		return domain.KeyEvent{}, err
	}
	event.Signature = ed25519.Sign(currentKey, payload)
	return event, nil
}

// MarshalEvent renders an event in its canonical signed form.
func MarshalEvent(event domain.KeyEvent) ([]byte, error) {
	return cryptoinfra.NewService().CanonicalizeEvent(event)
}
