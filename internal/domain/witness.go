package domain

import (
	"context"
	"encoding/json"
	"time"
)

type WitnessService interface {
	// PublishCeremony submits a finalized ceremony to the configured witness
	// providers. Implementations must not fail core flows on provider errors.
	PublishCeremony(ctx context.Context, ceremony FinalizedCeremony) ([]WitnessReceipt, error)
}

// WitnessAttempt records every publication attempt, successful or not, so
// provider outages leave a trace.
type WitnessAttempt struct {
	IdentityID  string
	Provider    string
	CeremonyID  string
	Status      string
	ErrorCode   string
	ContentHash string

	ProviderReceiptJSON json.RawMessage

	CreatedAt time.Time
}

// WitnessReceipt is the durable proof that a finalized record landed in an
// append-only store outside the identity's own control.
type WitnessReceipt struct {
	IdentityID  string
	Provider    string
	CeremonyID  string
	Status      string
	ErrorCode   string
	ContentHash string
	Location    string

	ProviderReceiptJSON json.RawMessage

	CreatedAt time.Time
}

const (
	WitnessStatusPublished = "published"
	WitnessStatusFailed    = "failed"
	WitnessStatusSkipped   = "skipped"
)

const (
	WitnessErrorIO             = "IO"
	WitnessErrorBadConfig      = "BAD_CONFIG"
	WitnessErrorTimeout        = "TIMEOUT"
	WitnessErrorPersistence    = "PERSISTENCE"
	WitnessErrorNotImplemented = "NOT_IMPLEMENTED"
)

type WitnessAttemptRepository interface {
	Append(ctx context.Context, attempt WitnessAttempt) error
	ListByContentHash(ctx context.Context, identityID, contentHash string) ([]WitnessAttempt, error)
}

type WitnessReceiptRepository interface {
	AppendPublished(ctx context.Context, receipt WitnessReceipt) error
	ListByContentHash(ctx context.Context, identityID, contentHash string) ([]WitnessReceipt, error)
}
