package usecase

import (
	"crypto/ed25519"
	"errors"
	"sort"
	"sync"
	"time"

	"keryx/internal/domain"
)

// Ceremony collects m-of-n attestations for a proposed rotation. Attestors
// submit over independent channels, potentially concurrently; the
// verify-then-append step runs as one critical section so no valid
// attestation is ever lost to a race and no invalid one ever pollutes the
// record. A ceremony that never reaches threshold simply keeps collecting:
// expiry policy belongs to the caller.
type Ceremony struct {
	mu sync.Mutex

	id           string
	request      domain.RotationRequest
	payload      []byte
	attestations []domain.Attestation
	state        domain.CeremonyState
	completedAt  time.Time

	crypto CryptoService
	clock  Clock
}

func NewCeremony(id string, request domain.RotationRequest, crypto CryptoService, clock Clock) (*Ceremony, error) {
	if id == "" {
		return nil, errors.New("ceremony id is required")
	}
	if request.IdentityID == "" {
		return nil, errors.New("identity_id is required")
	}
	if len(request.OldKey) != ed25519.PublicKeySize || len(request.NewKey) != ed25519.PublicKeySize {
		return nil, domain.ErrInvalidKeyMaterial
	}
	if request.Nonce == "" {
		return nil, errors.New("nonce is required")
	}
	if request.Threshold < 1 || request.Threshold > request.TotalAttestors {
		return nil, errors.New("threshold must satisfy 1 <= k <= n")
	}
	if crypto == nil {
		return nil, errors.New("crypto service is required")
	}
	if request.CreatedAt.IsZero() {
		now := time.Now
		if clock != nil {
			now = clock
		}
		request.CreatedAt = now().UTC()
	}

	payload, err := crypto.CanonicalizeAttestationPayload(request)
	if err != nil {
		return nil, err
	}
	return &Ceremony{
		id:      id,
		request: request,
		payload: payload,
		state:   domain.CeremonyStateCreated,
		crypto:  crypto,
		clock:   clock,
	}, nil
}

func (c *Ceremony) ID() string {
	return c.id
}

func (c *Ceremony) Request() domain.RotationRequest {
	return c.request
}

// Payload returns the exact bytes attestors must sign.
func (c *Ceremony) Payload() []byte {
	out := make([]byte, len(c.payload))
	copy(out, c.payload)
	return out
}

// AddAttestation verifies the signature against the ceremony payload and
// appends on success. A false return means the attestation was discarded; a
// bad attestation is expected traffic, not an exception, and never aborts
// collection. Attestations are still accepted after the threshold is met so
// callers can over-collect for diversity, but not once published.
func (c *Ceremony) AddAttestation(att domain.Attestation) bool {
	if len(att.AttestorKey) != ed25519.PublicKeySize || len(att.Signature) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.CeremonyStatePublished {
		return false
	}
	if c.state == domain.CeremonyStateCreated {
		c.state = domain.CeremonyStateCollecting
	}
	if err := c.crypto.VerifySignature(c.payload, att.Signature, att.AttestorKey); err != nil {
		return false
	}
	// One attestation per attestor key: the threshold counts independent
	// attestors, and a replayed submission must not inflate it.
	for _, existing := range c.attestations {
		if string(existing.AttestorKey) == string(att.AttestorKey) {
			return false
		}
	}
	if att.AttestedAt.IsZero() {
		att.AttestedAt = c.now().UTC()
	}
	c.attestations = append(c.attestations, cloneAttestation(att))

	if len(c.attestations) >= c.request.Threshold && c.state != domain.CeremonyStateComplete {
		c.state = domain.CeremonyStateComplete
		c.completedAt = c.now().UTC()
	}
	return true
}

func (c *Ceremony) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == domain.CeremonyStateComplete || c.state == domain.CeremonyStatePublished
}

func (c *Ceremony) State() domain.CeremonyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Ceremony) Attestations() []domain.Attestation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Attestation, 0, len(c.attestations))
	for _, att := range c.attestations {
		out = append(out, cloneAttestation(att))
	}
	return out
}

// Diversity reports how many distinct channels the valid attestations span.
// Fewer than two is a resilience warning, never a validity failure.
func (c *Ceremony) Diversity() domain.DiversityReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return diversityLocked(c.attestations)
}

// SelfAttested reports whether the identity attested with its own old key.
func (c *Ceremony) SelfAttested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, att := range c.attestations {
		if string(att.AttestorKey) == string(c.request.OldKey) {
			return true
		}
	}
	return false
}

// Finalize snapshots a complete ceremony for witnessing. The snapshot is
// immutable; the ceremony itself still accepts attestations until
// MarkPublished is called.
func (c *Ceremony) Finalize() (domain.FinalizedCeremony, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.CeremonyStateComplete && c.state != domain.CeremonyStatePublished {
		return domain.FinalizedCeremony{}, domain.ErrCeremonyIncomplete
	}
	attestations := make([]domain.Attestation, 0, len(c.attestations))
	for _, att := range c.attestations {
		attestations = append(attestations, cloneAttestation(att))
	}
	return domain.FinalizedCeremony{
		CeremonyID:   c.id,
		Request:      c.request,
		Attestations: attestations,
		State:        c.state,
		CompletedAt:  c.completedAt,
		Diversity:    diversityLocked(c.attestations),
	}, nil
}

// MarkPublished transitions a complete ceremony to its terminal state after
// witness submission. Further attestations are rejected from then on.
func (c *Ceremony) MarkPublished() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.CeremonyStateComplete:
		c.state = domain.CeremonyStatePublished
		return nil
	case domain.CeremonyStatePublished:
		return domain.ErrCeremonyFinalized
	default:
		return domain.ErrCeremonyIncomplete
	}
}

func (c *Ceremony) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}

func diversityLocked(attestations []domain.Attestation) domain.DiversityReport {
	seen := make(map[string]struct{})
	for _, att := range attestations {
		if att.Channel != "" {
			seen[att.Channel] = struct{}{}
		}
	}
	channels := make([]string, 0, len(seen))
	for channel := range seen {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return domain.DiversityReport{
		DistinctChannels: len(channels),
		Channels:         channels,
		Warning:          len(channels) < 2,
	}
}

func cloneAttestation(att domain.Attestation) domain.Attestation {
	att.AttestorKey = append([]byte(nil), att.AttestorKey...)
	att.Signature = append([]byte(nil), att.Signature...)
	return att
}
