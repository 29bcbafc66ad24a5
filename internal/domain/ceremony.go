package domain

import "time"

type CeremonyState string

const (
	CeremonyStateCreated    CeremonyState = "created"
	CeremonyStateCollecting CeremonyState = "collecting"
	CeremonyStateComplete   CeremonyState = "complete"
	CeremonyStatePublished  CeremonyState = "published"
)

// RotationRequest is the proposal a threshold ceremony collects attestations
// for. Nonce prevents replay of attestation signatures across ceremonies.
type RotationRequest struct {
	IdentityID     string    `json:"identity_id"`
	OldKey         []byte    `json:"old_key"`
	NewKey         []byte    `json:"new_key"`
	Nonce          string    `json:"nonce"`
	CreatedAt      time.Time `json:"created_at"`
	Threshold      int       `json:"threshold"`
	TotalAttestors int       `json:"total_attestors"`
}

// Attestation is one attestor's signed confirmation of a rotation request.
// The signature covers the ceremony's canonical payload, never the raw
// request object, so it stays verifiable independent of transport.
type Attestation struct {
	AttestorID  string    `json:"attestor_id"`
	AttestorKey []byte    `json:"attestor_key"`
	Signature   []byte    `json:"signature"`
	Channel     string    `json:"channel"`
	AttestedAt  time.Time `json:"attested_at"`
}

// DiversityReport is a non-blocking advisory: attestations concentrated on a
// single channel defeat the purpose of independent witnessing.
type DiversityReport struct {
	DistinctChannels int      `json:"distinct_channels"`
	Channels         []string `json:"channels"`
	Warning          bool     `json:"warning"`
}

// FinalizedCeremony is the immutable snapshot handed to the witness store
// once a ceremony reaches its threshold.
type FinalizedCeremony struct {
	CeremonyID   string          `json:"ceremony_id"`
	Request      RotationRequest `json:"request"`
	Attestations []Attestation   `json:"attestations"`
	State        CeremonyState   `json:"state"`
	CompletedAt  time.Time       `json:"completed_at"`
	Diversity    DiversityReport `json:"diversity"`
}
