package domain

// RotationRecord is the lighter two-key handoff schema used when a full key
// event log is unnecessary. Both the outgoing and the incoming key sign the
// record, proving the handoff was authorized on both sides. It carries no
// pre-rotation commitment and therefore no forward security.
type RotationRecord struct {
	IdentityID       string `json:"identity_id"`
	OldKeyID         string `json:"old_key_id"`
	NewKeyID         string `json:"new_key_id"`
	EffectiveAt      string `json:"effective_at"`
	OldKeySignature  []byte `json:"old_key_signature"`
	NewKeySignature  []byte `json:"new_key_signature"`
	PrevRecordDigest []byte `json:"prev_record_digest,omitempty"`
	Reason           string `json:"reason,omitempty"`
}
