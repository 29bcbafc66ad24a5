package usecase

import (
	"sort"

	"keryx/internal/domain"
)

const DecisionEngineVersion = "decision.v0.0.1"

// DecisionInput composes everything known about an identity at decision
// time: chain verification, duplicity findings, ceremony progress, and the
// witness policy result.
type DecisionInput struct {
	Verification domain.PolicyVerification
	Ceremony     *domain.CeremonySummary
	Policy       domain.PolicyResult
}

type DecisionResult struct {
	EngineVersion string
	Score         int
	Action        string
	Reasons       []string
}

// DecisionEngineV0 derives a single trust action from the inputs. A fork or
// an invalid chain always blocks: both mean the identity cannot be trusted
// to authorize anything, only inspected.
type DecisionEngineV0 struct{}

func (e *DecisionEngineV0) Evaluate(input DecisionInput) (DecisionResult, error) {
	reasons := make(map[string]struct{})
	addReason(reasons, verificationReasons(input.Verification)...)
	addReason(reasons, policyReasons(input.Policy)...)
	addReason(reasons, ceremonyReasons(input.Ceremony)...)

	ordered := sortedReasons(reasons)
	action := "allow"
	score := 0
	switch {
	case input.Verification.ForkDetected || !input.Verification.ChainValid || !input.Policy.Allow:
		action = "block"
		score = 100
	case input.Ceremony != nil && (input.Ceremony.ValidAttestations < input.Ceremony.Threshold || input.Ceremony.DistinctChannels < 2):
		action = "require_review"
		score = 50
	}

	return DecisionResult{
		EngineVersion: DecisionEngineVersion,
		Score:         score,
		Action:        action,
		Reasons:       ordered,
	}, nil
}

func verificationReasons(verification domain.PolicyVerification) []string {
	var reasons []string
	if !verification.ChainValid {
		reasons = append(reasons, "CHAIN_INVALID")
	}
	if verification.ForkDetected {
		reasons = append(reasons, "DUPLICITY_DETECTED")
	}
	return reasons
}

func policyReasons(policy domain.PolicyResult) []string {
	reasons := make([]string, 0, len(policy.Deny))
	for _, deny := range policy.Deny {
		if deny.Code != "" {
			reasons = append(reasons, deny.Code)
		}
	}
	if !policy.Allow && len(reasons) == 0 {
		reasons = append(reasons, "POLICY_DENY")
	}
	return reasons
}

func ceremonyReasons(summary *domain.CeremonySummary) []string {
	if summary == nil {
		return nil
	}
	var reasons []string
	if summary.ValidAttestations < summary.Threshold {
		reasons = append(reasons, "THRESHOLD_NOT_MET")
	}
	if summary.DistinctChannels < 2 {
		reasons = append(reasons, "CHANNEL_CONCENTRATION")
	}
	return reasons
}

func addReason(reasonSet map[string]struct{}, reasons ...string) {
	for _, reason := range reasons {
		if reason == "" {
			continue
		}
		reasonSet[reason] = struct{}{}
	}
}

func sortedReasons(reasons map[string]struct{}) []string {
	if len(reasons) == 0 {
		return nil
	}
	ordered := make([]string, 0, len(reasons))
	for reason := range reasons {
		ordered = append(ordered, reason)
	}
	sort.Strings(ordered)
	return ordered
}
