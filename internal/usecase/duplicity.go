package usecase

import (
	"bytes"
	"time"

	"keryx/internal/domain"
)

// DetectFork compares two independently observed logs claiming the same
// identity and returns the lowest sequence at which they diverge in current
// key or next-key digest, or nil if they agree up to the shorter length.
// A divergence is evidence of equivocation regardless of whether either log
// verifies on its own: a forged log can be internally self-consistent.
func DetectFork(a, b []domain.KeyEvent) *uint64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if !bytes.Equal(a[i].CurrentKey, b[i].CurrentKey) || !bytes.Equal(a[i].NextKeyDigest, b[i].NextKeyDigest) {
			seq := uint64(i)
			return &seq
		}
	}
	return nil
}

// DetectRotationFork is the rotation-record analogue: two observed chains
// diverging in key identifiers at the same position.
func DetectRotationFork(a, b []domain.RotationRecord) *uint64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].OldKeyID != b[i].OldKeyID || a[i].NewKeyID != b[i].NewKeyID {
			seq := uint64(i)
			return &seq
		}
	}
	return nil
}

// NewDuplicityFinding packages a detected fork for reporting and audit. It
// is distinct from a verification failure: the identity must be treated as
// compromised from the fork point forward.
func NewDuplicityFinding(identityID string, sequence uint64, clock Clock) domain.DuplicityFinding {
	detectedAt := time.Now().UTC()
	if clock != nil {
		detectedAt = clock().UTC()
	}
	return domain.DuplicityFinding{
		IdentityID: identityID,
		Sequence:   sequence,
		DetectedAt: detectedAt.Format(time.RFC3339),
	}
}
