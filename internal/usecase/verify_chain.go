package usecase

import (
	"bytes"
	"fmt"

	"keryx/internal/domain"
)

// ChainVerifier replays a key event log and reports every check for every
// event. Verification is pure: no I/O, no hidden state, same input always
// yields the same report.
type ChainVerifier struct {
	Crypto CryptoService
}

func NewChainVerifier(crypto CryptoService) *ChainVerifier {
	return &ChainVerifier{Crypto: crypto}
}

// VerifyChain runs all five checks on each event. Checks are independent: a
// failed check never short-circuits the rest, so the report is a complete
// diagnostic. The only hard failure is an empty log.
func (v *ChainVerifier) VerifyChain(events []domain.KeyEvent) (domain.ChainVerification, error) {
	if len(events) == 0 {
		return domain.ChainVerification{}, domain.ErrEmptyLog
	}

	report := domain.ChainVerification{
		IdentityID: events[0].IdentityID,
		EventCount: len(events),
		Valid:      true,
		Events:     make([]domain.EventVerification, 0, len(events)),
	}

	for i, event := range events {
		result := v.verifyEvent(i, event, events)
		if !result.Valid {
			report.Valid = false
		}
		report.Events = append(report.Events, result)
	}
	return report, nil
}

func (v *ChainVerifier) verifyEvent(i int, event domain.KeyEvent, events []domain.KeyEvent) domain.EventVerification {
	result := domain.EventVerification{
		Sequence:           event.Sequence,
		SequenceContinuous: event.Sequence == uint64(i),
		PrerotationValid:   true,
		ChainIntegrity:     true,
	}

	if i == 0 {
		result.KindOrdering = event.Kind == domain.EventKindInception
		result.ChainIntegrity = len(event.PriorEventDigest) == 0
	} else {
		result.KindOrdering = event.Kind == domain.EventKindRotation

		prior := events[i-1]
		result.PrerotationValid = bytes.Equal(v.Crypto.KeyDigest(event.CurrentKey), prior.NextKeyDigest)

		priorDigest, err := v.Crypto.EventDigest(prior)
		if err != nil {
			result.ChainIntegrity = false
		} else {
			result.ChainIntegrity = bytes.Equal(event.PriorEventDigest, priorDigest)
		}
	}

	result.SignatureValid = v.signatureValid(event)

	result.Valid = result.SequenceContinuous && result.KindOrdering &&
		result.PrerotationValid && result.ChainIntegrity && result.SignatureValid
	if !result.Valid {
		classify(&result, i)
	}
	return result
}

func (v *ChainVerifier) signatureValid(event domain.KeyEvent) bool {
	if len(event.Signature) == 0 || len(event.CurrentKey) == 0 {
		return false
	}
	payload, err := v.Crypto.CanonicalizeEventPayload(event)
	if err != nil {
		return false
	}
	return v.Crypto.VerifySignature(payload, event.Signature, event.CurrentKey) == nil
}

// classify attaches the first failed check, in check order, along with its
// error class and a reason a human can act on.
func classify(result *domain.EventVerification, i int) {
	switch {
	case !result.SequenceContinuous:
		result.FailedCheck = domain.CheckSequenceContinuous
		result.FailureClass = domain.ErrorClassStructural
		result.FailureReason = fmt.Sprintf("event at index %d carries sequence %d", i, result.Sequence)
	case !result.KindOrdering:
		result.FailedCheck = domain.CheckKindOrdering
		result.FailureClass = domain.ErrorClassStructural
		if i == 0 {
			result.FailureReason = "first event must be an inception"
		} else {
			result.FailureReason = fmt.Sprintf("event %d must be a rotation", i)
		}
	case !result.PrerotationValid:
		result.FailedCheck = domain.CheckPrerotationValid
		result.FailureClass = domain.ErrorClassChainIntegrity
		result.FailureReason = fmt.Sprintf("current key of event %d does not match the prior event's next-key digest", i)
	case !result.ChainIntegrity:
		result.FailedCheck = domain.CheckChainIntegrity
		result.FailureClass = domain.ErrorClassChainIntegrity
		if i == 0 {
			result.FailureReason = "inception must not carry a prior-event digest"
		} else {
			result.FailureReason = fmt.Sprintf("prior-event digest of event %d does not match event %d", i, i-1)
		}
	case !result.SignatureValid:
		result.FailedCheck = domain.CheckSignatureValid
		result.FailureClass = domain.ErrorClassCryptographic
		result.FailureReason = fmt.Sprintf("signature of event %d does not verify against its current key", i)
	}
}
