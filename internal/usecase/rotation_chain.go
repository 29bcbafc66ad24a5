package usecase

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"keryx/internal/domain"
)

// RotationValidator checks the lighter dual-signature rotation records. It
// never throws on malformed input: both entry points return every problem
// they find so a caller can triage the whole record or chain at once.
type RotationValidator struct {
	Crypto CryptoService
}

func NewRotationValidator(crypto CryptoService) *RotationValidator {
	return &RotationValidator{Crypto: crypto}
}

// ValidateStructure checks one record in isolation: field presence, distinct
// key identifiers, and a timestamp with an explicit timezone.
func (v *RotationValidator) ValidateStructure(record domain.RotationRecord) []error {
	var errs []error
	if record.IdentityID == "" {
		errs = append(errs, fmt.Errorf("identity_id is required"))
	}
	if record.OldKeyID == "" {
		errs = append(errs, fmt.Errorf("old_key_id is required"))
	}
	if record.NewKeyID == "" {
		errs = append(errs, fmt.Errorf("new_key_id is required"))
	}
	if record.OldKeyID != "" && record.OldKeyID == record.NewKeyID {
		errs = append(errs, fmt.Errorf("old_key_id and new_key_id must differ"))
	}
	if record.EffectiveAt == "" {
		errs = append(errs, fmt.Errorf("effective_at is required"))
	} else if _, err := time.Parse(time.RFC3339, record.EffectiveAt); err != nil {
		errs = append(errs, fmt.Errorf("effective_at must be RFC3339 with explicit timezone: %w", err))
	}
	if len(record.OldKeySignature) == 0 {
		errs = append(errs, fmt.Errorf("old key signature is required"))
	}
	if len(record.NewKeySignature) == 0 {
		errs = append(errs, fmt.Errorf("new key signature is required"))
	}
	return errs
}

// ValidateChain checks a full ordered history: digest linkage, key
// continuity, and strictly increasing effective times. The input is not
// mutated; records are sorted on a copy.
func (v *RotationValidator) ValidateChain(records []domain.RotationRecord) []error {
	var errs []error
	if len(records) == 0 {
		return errs
	}

	ordered := make([]domain.RotationRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return effectiveBefore(ordered[i], ordered[j])
	})

	for i, record := range ordered {
		for _, err := range v.ValidateStructure(record) {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
		}
	}

	if len(ordered[0].PrevRecordDigest) != 0 {
		errs = append(errs, fmt.Errorf("record 0: first record must not carry a prev-record digest"))
	}

	for i := 1; i < len(ordered); i++ {
		prev, curr := ordered[i-1], ordered[i]

		if curr.OldKeyID != prev.NewKeyID {
			errs = append(errs, fmt.Errorf("record %d: old_key_id %q breaks continuity with prior new_key_id %q", i, curr.OldKeyID, prev.NewKeyID))
		}

		prevDigest, err := v.Crypto.RotationRecordDigest(prev)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: digest prior record: %w", i, err))
		} else if !bytes.Equal(curr.PrevRecordDigest, prevDigest) {
			errs = append(errs, fmt.Errorf("record %d: prev-record digest does not match record %d", i, i-1))
		}

		prevAt, prevErr := time.Parse(time.RFC3339, prev.EffectiveAt)
		currAt, currErr := time.Parse(time.RFC3339, curr.EffectiveAt)
		if prevErr == nil && currErr == nil && !currAt.After(prevAt) {
			errs = append(errs, fmt.Errorf("record %d: effective_at must be strictly after record %d", i, i-1))
		}
	}
	return errs
}

// effectiveBefore orders records by effective instant, not by the raw
// timestamp string: explicit offsets other than Z are legal, and string order
// diverges from instant order across offsets. Unparseable timestamps fall
// back to string order; ValidateStructure reports them separately.
func effectiveBefore(a, b domain.RotationRecord) bool {
	at, aErr := time.Parse(time.RFC3339, a.EffectiveAt)
	bt, bErr := time.Parse(time.RFC3339, b.EffectiveAt)
	if aErr != nil || bErr != nil {
		return a.EffectiveAt < b.EffectiveAt
	}
	return at.Before(bt)
}
