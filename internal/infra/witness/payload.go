package witness

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"keryx/internal/domain"
	cryptoinfra "keryx/internal/infra/crypto"
)

// Payload is the provider-independent form of a finalized ceremony. The
// content hash over the canonical bytes is the idempotency key: publishing
// the same ceremony twice yields the same hash, so providers can skip it.
type Payload struct {
	IdentityID    string
	CeremonyID    string
	NewKeyBase64  string
	OldKeyBase64  string
	CanonicalJSON []byte
	HashHex       string
}

func BuildPayload(ceremony domain.FinalizedCeremony) (Payload, error) {
	if ceremony.Request.IdentityID == "" {
		return Payload{}, errors.New("identity_id is required")
	}
	if ceremony.CeremonyID == "" {
		return Payload{}, errors.New("ceremony_id is required")
	}
	if len(ceremony.Request.NewKey) == 0 {
		return Payload{}, errors.New("request.new_key is required")
	}
	newKeyB64 := base64.StdEncoding.EncodeToString(ceremony.Request.NewKey)
	oldKeyB64 := base64.StdEncoding.EncodeToString(ceremony.Request.OldKey)
	body := map[string]any{
		"v":              "keryx_witness_v0",
		"identity_id":    ceremony.Request.IdentityID,
		"ceremony_id":    ceremony.CeremonyID,
		"old_key_base64": oldKeyB64,
		"new_key_base64": newKeyB64,
		"nonce":          ceremony.Request.Nonce,
		"threshold":      ceremony.Request.Threshold,
		"attestations":   attestationEntries(ceremony.Attestations),
		"completed_at":   ceremony.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	canonical, err := cryptoinfra.CanonicalizeAny(body)
	if err != nil {
		return Payload{}, err
	}
	sum := sha256.Sum256(canonical)
	return Payload{
		IdentityID:    ceremony.Request.IdentityID,
		CeremonyID:    ceremony.CeremonyID,
		NewKeyBase64:  newKeyB64,
		OldKeyBase64:  oldKeyB64,
		CanonicalJSON: canonical,
		HashHex:       hex.EncodeToString(sum[:]),
	}, nil
}

func attestationEntries(attestations []domain.Attestation) []any {
	entries := make([]any, 0, len(attestations))
	for _, att := range attestations {
		entries = append(entries, map[string]any{
			"attestor_id":         att.AttestorID,
			"attestor_key_base64": base64.StdEncoding.EncodeToString(att.AttestorKey),
			"signature_base64":    base64.StdEncoding.EncodeToString(att.Signature),
			"channel":             att.Channel,
		})
	}
	return entries
}
