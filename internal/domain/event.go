package domain

type EventKind string

const (
	EventKindInception EventKind = "inception"
	EventKindRotation  EventKind = "rotation"
)

// KeyEvent is one entry in an identity's key event log. CurrentKey is the
// ed25519 public key authorized to sign this event; NextKeyDigest commits to
// the key of the following event before that key is ever used.
type KeyEvent struct {
	IdentityID       string    `json:"identity_id"`
	Sequence         uint64    `json:"sequence"`
	Kind             EventKind `json:"kind"`
	CurrentKey       []byte    `json:"current_key"`
	NextKeyDigest    []byte    `json:"next_key_digest"`
	PriorEventDigest []byte    `json:"prior_event_digest,omitempty"`
	Timestamp        string    `json:"timestamp"`
	Signature        []byte    `json:"signature"`
}

type EventCheck string

const (
	CheckSequenceContinuous EventCheck = "sequence_continuous"
	CheckKindOrdering       EventCheck = "kind_ordering"
	CheckPrerotationValid   EventCheck = "prerotation_valid"
	CheckChainIntegrity     EventCheck = "chain_integrity"
	CheckSignatureValid     EventCheck = "signature_valid"
)

// ErrorClass buckets a failed check by what a caller should do about it.
type ErrorClass string

const (
	ErrorClassStructural     ErrorClass = "structural"
	ErrorClassCryptographic  ErrorClass = "cryptographic"
	ErrorClassChainIntegrity ErrorClass = "chain_integrity"
)

// EventVerification reports every check for one event. All checks run even
// when an earlier one fails so callers see the full diagnostic.
type EventVerification struct {
	Sequence           uint64     `json:"sequence"`
	SequenceContinuous bool       `json:"sequence_continuous"`
	KindOrdering       bool       `json:"kind_ordering"`
	PrerotationValid   bool       `json:"prerotation_valid"`
	ChainIntegrity     bool       `json:"chain_integrity"`
	SignatureValid     bool       `json:"signature_valid"`
	Valid              bool       `json:"valid"`
	FailedCheck        EventCheck `json:"failed_check,omitempty"`
	FailureClass       ErrorClass `json:"failure_class,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
}

type ChainVerification struct {
	IdentityID string              `json:"identity_id"`
	EventCount int                 `json:"event_count"`
	Valid      bool                `json:"valid"`
	Events     []EventVerification `json:"events"`
}

// DuplicityFinding is a positive fork detection result. It is reported apart
// from per-event verification failures: a fork means the identity must be
// treated as compromised from the divergence point forward, not merely that
// one event is invalid.
type DuplicityFinding struct {
	IdentityID string `json:"identity_id"`
	Sequence   uint64 `json:"sequence"`
	DetectedAt string `json:"detected_at"`
}
