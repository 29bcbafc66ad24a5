package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"keryx/internal/domain"
)

// Service is the production crypto capability: ed25519 signatures over
// canonical JSON, sha256 content digests. Verifiers that skip the real check
// exist only as test doubles, never here.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// CanonicalizeEventPayload returns the canonical signing bytes of an event:
// every field except the signature itself.
func (s *Service) CanonicalizeEventPayload(event domain.KeyEvent) ([]byte, error) {
	return CanonicalizeAny(buildEventPayload(event, false))
}

// CanonicalizeEvent returns the canonical encoding of the full event,
// signature included. Prior-event digests are computed over these bytes.
func (s *Service) CanonicalizeEvent(event domain.KeyEvent) ([]byte, error) {
	return CanonicalizeAny(buildEventPayload(event, true))
}

func (s *Service) EventDigest(event domain.KeyEvent) ([]byte, error) {
	canonical, err := s.CanonicalizeEvent(event)
	if err != nil {
		return nil, err
	}
	return sha256Bytes(canonical), nil
}

// KeyDigest is the pre-rotation commitment function: sha256 of the raw
// public key bytes.
func (s *Service) KeyDigest(pubKey []byte) []byte {
	return sha256Bytes(pubKey)
}

func (s *Service) CanonicalizeRotationRecord(record domain.RotationRecord) ([]byte, error) {
	return CanonicalizeAny(buildRotationPayload(record))
}

// RotationRecordDigest is the chain-link hash of a record. The record's own
// prev_record_digest field is excluded from the hashed bytes; a link commits
// to the record's content and signatures only.
func (s *Service) RotationRecordDigest(record domain.RotationRecord) ([]byte, error) {
	record.PrevRecordDigest = nil
	canonical, err := s.CanonicalizeRotationRecord(record)
	if err != nil {
		return nil, err
	}
	return sha256Bytes(canonical), nil
}

// CanonicalizeAttestationPayload builds the exact bytes every ceremony
// attestor signs. The old key appears only as a digest so the payload stays
// compact and the commitment to the outgoing key is still binding.
func (s *Service) CanonicalizeAttestationPayload(request domain.RotationRequest) ([]byte, error) {
	payload := attestationPayload{
		IdentityID:   request.IdentityID,
		NewKey:       base64.StdEncoding.EncodeToString(request.NewKey),
		OldKeyDigest: hex.EncodeToString(sha256Bytes(request.OldKey)),
		CreatedAt:    request.CreatedAt.UTC().Format(time.RFC3339),
		Nonce:        request.Nonce,
	}
	return CanonicalizeAny(payload)
}

func (s *Service) CanonicalizeCeremony(ceremony domain.FinalizedCeremony) ([]byte, error) {
	return CanonicalizeAny(buildCeremonyPayload(ceremony))
}

func (s *Service) CeremonyDigest(ceremony domain.FinalizedCeremony) ([]byte, error) {
	canonical, err := s.CanonicalizeCeremony(ceremony)
	if err != nil {
		return nil, err
	}
	return sha256Bytes(canonical), nil
}

func (s *Service) CanonicalizeAny(payload any) ([]byte, error) {
	return CanonicalizeAny(payload)
}

func (s *Service) VerifySignature(payload []byte, sig []byte, pubKey []byte) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return errors.New("invalid ed25519 public key length")
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.New("invalid ed25519 signature length")
	}
	if !ed25519.Verify(pubKey, payload, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

type eventPayload struct {
	IdentityID       string `json:"identity_id"`
	Sequence         uint64 `json:"sequence"`
	Kind             string `json:"kind"`
	CurrentKey       string `json:"current_key"`
	NextKeyDigest    string `json:"next_key_digest"`
	PriorEventDigest string `json:"prior_event_digest,omitempty"`
	Timestamp        string `json:"timestamp"`
	Signature        string `json:"signature,omitempty"`
}

func buildEventPayload(event domain.KeyEvent, includeSignature bool) eventPayload {
	payload := eventPayload{
		IdentityID:    event.IdentityID,
		Sequence:      event.Sequence,
		Kind:          string(event.Kind),
		CurrentKey:    base64.StdEncoding.EncodeToString(event.CurrentKey),
		NextKeyDigest: hex.EncodeToString(event.NextKeyDigest),
		Timestamp:     event.Timestamp,
	}
	if len(event.PriorEventDigest) > 0 {
		payload.PriorEventDigest = hex.EncodeToString(event.PriorEventDigest)
	}
	if includeSignature && len(event.Signature) > 0 {
		payload.Signature = base64.StdEncoding.EncodeToString(event.Signature)
	}
	return payload
}

type rotationPayload struct {
	IdentityID       string `json:"identity_id"`
	OldKeyID         string `json:"old_key_id"`
	NewKeyID         string `json:"new_key_id"`
	EffectiveAt      string `json:"effective_at"`
	OldKeySignature  string `json:"old_key_signature"`
	NewKeySignature  string `json:"new_key_signature"`
	PrevRecordDigest string `json:"prev_record_digest,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

func buildRotationPayload(record domain.RotationRecord) rotationPayload {
	payload := rotationPayload{
		IdentityID:      record.IdentityID,
		OldKeyID:        record.OldKeyID,
		NewKeyID:        record.NewKeyID,
		EffectiveAt:     record.EffectiveAt,
		OldKeySignature: base64.StdEncoding.EncodeToString(record.OldKeySignature),
		NewKeySignature: base64.StdEncoding.EncodeToString(record.NewKeySignature),
		Reason:          record.Reason,
	}
	if len(record.PrevRecordDigest) > 0 {
		payload.PrevRecordDigest = hex.EncodeToString(record.PrevRecordDigest)
	}
	return payload
}

type attestationPayload struct {
	IdentityID   string `json:"identity_id"`
	NewKey       string `json:"new_key"`
	OldKeyDigest string `json:"old_key_digest"`
	CreatedAt    string `json:"created_at"`
	Nonce        string `json:"nonce"`
}

type ceremonyPayload struct {
	CeremonyID   string                     `json:"ceremony_id"`
	IdentityID   string                     `json:"identity_id"`
	OldKey       string                     `json:"old_key"`
	NewKey       string                     `json:"new_key"`
	Nonce        string                     `json:"nonce"`
	CreatedAt    string                     `json:"created_at"`
	Threshold    int                        `json:"threshold"`
	Total        int                        `json:"total_attestors"`
	CompletedAt  string                     `json:"completed_at"`
	Attestations []ceremonyAttestationEntry `json:"attestations"`
}

type ceremonyAttestationEntry struct {
	AttestorID  string `json:"attestor_id"`
	AttestorKey string `json:"attestor_key"`
	Signature   string `json:"signature"`
	Channel     string `json:"channel"`
	AttestedAt  string `json:"attested_at"`
}

func buildCeremonyPayload(ceremony domain.FinalizedCeremony) ceremonyPayload {
	entries := make([]ceremonyAttestationEntry, 0, len(ceremony.Attestations))
	for _, att := range ceremony.Attestations {
		entries = append(entries, ceremonyAttestationEntry{
			AttestorID:  att.AttestorID,
			AttestorKey: base64.StdEncoding.EncodeToString(att.AttestorKey),
			Signature:   base64.StdEncoding.EncodeToString(att.Signature),
			Channel:     att.Channel,
			AttestedAt:  att.AttestedAt.UTC().Format(time.RFC3339),
		})
	}
	return ceremonyPayload{
		CeremonyID:   ceremony.CeremonyID,
		IdentityID:   ceremony.Request.IdentityID,
		OldKey:       base64.StdEncoding.EncodeToString(ceremony.Request.OldKey),
		NewKey:       base64.StdEncoding.EncodeToString(ceremony.Request.NewKey),
		Nonce:        ceremony.Request.Nonce,
		CreatedAt:    ceremony.Request.CreatedAt.UTC().Format(time.RFC3339),
		Threshold:    ceremony.Request.Threshold,
		Total:        ceremony.Request.TotalAttestors,
		CompletedAt:  ceremony.CompletedAt.UTC().Format(time.RFC3339),
		Attestations: entries,
	}
}

func sha256Bytes(input []byte) []byte {
	sum := sha256.Sum256(input)
	return sum[:]
}

// DigestHex is a convenience for repositories and filenames.
func DigestHex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
