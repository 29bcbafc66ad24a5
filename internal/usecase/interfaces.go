package usecase

import (
	"context"
	"time"

	"keryx/internal/domain"
)

type Clock func() time.Time

type IdentityRepository interface {
	GetByID(ctx context.Context, identityID string) (*domain.Identity, error)
	Create(ctx context.Context, identity domain.Identity) error
}

type KeyEventRepository interface {
	Append(ctx context.Context, event domain.KeyEvent) error
	ListByIdentity(ctx context.Context, identityID string) ([]domain.KeyEvent, error)
}

type RotationRecordRepository interface {
	Append(ctx context.Context, record domain.RotationRecord) error
	ListByIdentity(ctx context.Context, identityID string) ([]domain.RotationRecord, error)
}

type CeremonyRepository interface {
	Create(ctx context.Context, ceremonyID string, request domain.RotationRequest, state domain.CeremonyState) error
	AppendAttestation(ctx context.Context, ceremonyID string, att domain.Attestation) error
	UpdateState(ctx context.Context, ceremonyID string, state domain.CeremonyState) error
	Get(ctx context.Context, ceremonyID string) (*domain.RotationRequest, []domain.Attestation, domain.CeremonyState, error)
}

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	ListByIdentity(ctx context.Context, identityID string) ([]domain.AuditEvent, error)
}

// CryptoService is the canonical-encoding and signature capability shared by
// every verifier. There is exactly one production implementation.
type CryptoService interface {
	CanonicalizeEventPayload(event domain.KeyEvent) ([]byte, error)
	CanonicalizeEvent(event domain.KeyEvent) ([]byte, error)
	EventDigest(event domain.KeyEvent) ([]byte, error)
	KeyDigest(pubKey []byte) []byte
	CanonicalizeRotationRecord(record domain.RotationRecord) ([]byte, error)
	RotationRecordDigest(record domain.RotationRecord) ([]byte, error)
	CanonicalizeAttestationPayload(request domain.RotationRequest) ([]byte, error)
	CanonicalizeCeremony(ceremony domain.FinalizedCeremony) ([]byte, error)
	CeremonyDigest(ceremony domain.FinalizedCeremony) ([]byte, error)
	VerifySignature(payload []byte, sig []byte, pubKey []byte) error
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

type VerificationCache interface {
	Get(ctx context.Context, key string) (*domain.ChainVerification, bool, error)
	Put(ctx context.Context, key string, value domain.ChainVerification, ttl time.Duration) error
}
