package usecase

import (
	"crypto/sha256"
	"strings"
	"testing"
	"time"

	"keryx/internal/domain"
	"keryx/internal/infra/crypto"
)

// buildTestRecords produces a valid n-record chain whose key identifiers run
// k0 -> k1 -> ... -> kn and whose effective times strictly increase.
func buildTestRecords(t *testing.T, identityID string, n int) []domain.RotationRecord {
	t.Helper()
	svc := crypto.NewService()
	records := make([]domain.RotationRecord, 0, n)
	for i := 0; i < n; i++ {
		record := domain.RotationRecord{
			IdentityID:      identityID,
			OldKeyID:        keyID(i),
			NewKeyID:        keyID(i + 1),
			EffectiveAt:     time.Date(2026, 3, 1, 10+i, 0, 0, 0, time.UTC).Format(time.RFC3339),
			OldKeySignature: []byte("old-signature"),
			NewKeySignature: []byte("new-signature"),
		}
		if i > 0 {
			digest, err := svc.RotationRecordDigest(records[i-1])
			if err != nil {
				t.Fatalf("digest record %d: %v", i-1, err)
			}
			record.PrevRecordDigest = digest
		}
		records = append(records, record)
	}
	return records
}

func keyID(i int) string {
	return "k" + string(rune('0'+i))
}

func TestValidateStructure_OK(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 1)
	if errs := validator.ValidateStructure(records[0]); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateStructure_ReportsEveryProblem(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	errs := validator.ValidateStructure(domain.RotationRecord{})
	if len(errs) < 5 {
		t.Fatalf("expected all missing fields reported, got %v", errs)
	}
}

func TestValidateStructure_SameKeyIDs(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 1)
	records[0].NewKeyID = records[0].OldKeyID
	errs := validator.ValidateStructure(records[0])
	if !containsError(errs, "must differ") {
		t.Fatalf("expected same-key error, got %v", errs)
	}
}

func TestValidateStructure_TimestampWithoutTimezone(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 1)
	records[0].EffectiveAt = "2026-03-01T10:00:00"
	errs := validator.ValidateStructure(records[0])
	if !containsError(errs, "explicit timezone") {
		t.Fatalf("expected timezone error, got %v", errs)
	}
}

func TestValidateChain_OK(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 3)
	if errs := validator.ValidateChain(records); len(errs) != 0 {
		t.Fatalf("expected valid chain, got %v", errs)
	}
}

func TestValidateChain_EmptyIsValid(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	if errs := validator.ValidateChain(nil); len(errs) != 0 {
		t.Fatalf("empty chain must be valid, got %v", errs)
	}
}

func TestValidateChain_SortsBeforeChecking(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 3)
	shuffled := []domain.RotationRecord{records[2], records[0], records[1]}
	if errs := validator.ValidateChain(shuffled); len(errs) != 0 {
		t.Fatalf("out-of-order input must validate after sorting, got %v", errs)
	}
	if shuffled[0].OldKeyID != "k2" {
		t.Fatal("input slice must not be mutated")
	}
}

func TestValidateChain_ContinuityBreak(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 2)
	records[1].OldKeyID = "k9"
	errs := validator.ValidateChain(records)
	if !containsError(errs, "breaks continuity") {
		t.Fatalf("expected continuity error, got %v", errs)
	}
}

func TestValidateChain_DigestMismatch(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 2)
	records[1].PrevRecordDigest[0] ^= 0xFF
	errs := validator.ValidateChain(records)
	if !containsError(errs, "prev-record digest does not match") {
		t.Fatalf("expected digest error, got %v", errs)
	}
}

func TestValidateChain_FirstRecordWithDigest(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 1)
	records[0].PrevRecordDigest = []byte{0x01}
	errs := validator.ValidateChain(records)
	if !containsError(errs, "must not carry a prev-record digest") {
		t.Fatalf("expected first-record error, got %v", errs)
	}
}

func TestValidateChain_NonIncreasingTime(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	records := buildTestRecords(t, "id-1", 2)
	records[1].EffectiveAt = records[0].EffectiveAt
	errs := validator.ValidateChain(records)
	if !containsError(errs, "strictly after") {
		t.Fatalf("expected monotonicity error, got %v", errs)
	}
}

func TestValidateChain_LinkExcludesPriorOwnDigest(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	svc := crypto.NewService()

	// Links are computed by hand over the canonical prior record with its own
	// prev_record_digest cleared. A three-record chain exercises a link whose
	// prior record itself carries a digest.
	records := make([]domain.RotationRecord, 0, 3)
	for i := 0; i < 3; i++ {
		record := domain.RotationRecord{
			IdentityID:      "id-1",
			OldKeyID:        keyID(i),
			NewKeyID:        keyID(i + 1),
			EffectiveAt:     time.Date(2026, 3, 1, 10+i, 0, 0, 0, time.UTC).Format(time.RFC3339),
			OldKeySignature: []byte("old-signature"),
			NewKeySignature: []byte("new-signature"),
		}
		if i > 0 {
			unlinked := records[i-1]
			unlinked.PrevRecordDigest = nil
			canonical, err := svc.CanonicalizeRotationRecord(unlinked)
			if err != nil {
				t.Fatalf("canonicalize record %d: %v", i-1, err)
			}
			sum := sha256.Sum256(canonical)
			record.PrevRecordDigest = sum[:]
		}
		records = append(records, record)
	}

	if errs := validator.ValidateChain(records); len(errs) != 0 {
		t.Fatalf("chain linked over digest-free prior records must validate, got %v", errs)
	}

	// A link hashed over the prior record's full form, own digest included,
	// must not match.
	canonical, err := svc.CanonicalizeRotationRecord(records[1])
	if err != nil {
		t.Fatalf("canonicalize record 1: %v", err)
	}
	sum := sha256.Sum256(canonical)
	records[2].PrevRecordDigest = sum[:]
	errs := validator.ValidateChain(records)
	if !containsError(errs, "prev-record digest does not match") {
		t.Fatalf("expected digest error for full-form link, got %v", errs)
	}
}

func TestValidateChain_MixedTimezoneOffsets(t *testing.T) {
	validator := NewRotationValidator(crypto.NewService())
	svc := crypto.NewService()

	// 10:00+09:00 is 01:00Z, one hour before 02:00Z, yet it sorts last as a
	// raw string. Ordering must follow the instant.
	first := domain.RotationRecord{
		IdentityID:      "id-1",
		OldKeyID:        "k0",
		NewKeyID:        "k1",
		EffectiveAt:     "2026-01-01T10:00:00+09:00",
		OldKeySignature: []byte("old-signature"),
		NewKeySignature: []byte("new-signature"),
	}
	digest, err := svc.RotationRecordDigest(first)
	if err != nil {
		t.Fatalf("digest first record: %v", err)
	}
	second := domain.RotationRecord{
		IdentityID:       "id-1",
		OldKeyID:         "k1",
		NewKeyID:         "k2",
		EffectiveAt:      "2026-01-01T02:00:00Z",
		OldKeySignature:  []byte("old-signature"),
		NewKeySignature:  []byte("new-signature"),
		PrevRecordDigest: digest,
	}

	if errs := validator.ValidateChain([]domain.RotationRecord{first, second}); len(errs) != 0 {
		t.Fatalf("mixed-offset chain must validate, got %v", errs)
	}
	if errs := validator.ValidateChain([]domain.RotationRecord{second, first}); len(errs) != 0 {
		t.Fatalf("mixed-offset chain must validate regardless of input order, got %v", errs)
	}
}

func containsError(errs []error, fragment string) bool {
	for _, err := range errs {
		if strings.Contains(err.Error(), fragment) {
			return true
		}
	}
	return false
}
