package usecase

import (
	"testing"

	"keryx/internal/domain"
)

func TestDecisionEngineV0_Allow(t *testing.T) {
	engine := &DecisionEngineV0{}
	result, err := engine.Evaluate(DecisionInput{
		Verification: domain.PolicyVerification{ChainValid: true, EventCount: 3},
		Ceremony: &domain.CeremonySummary{
			Threshold:         2,
			TotalAttestors:    3,
			ValidAttestations: 2,
			DistinctChannels:  2,
		},
		Policy: domain.PolicyResult{Allow: true},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Action != "allow" || result.Score != 0 {
		t.Fatalf("expected allow with score 0, got %+v", result)
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", result.Reasons)
	}
	if result.EngineVersion != DecisionEngineVersion {
		t.Fatalf("unexpected engine version %q", result.EngineVersion)
	}
}

func TestDecisionEngineV0_BlocksOnFork(t *testing.T) {
	engine := &DecisionEngineV0{}
	seq := uint64(2)
	result, err := engine.Evaluate(DecisionInput{
		Verification: domain.PolicyVerification{ChainValid: true, ForkDetected: true, ForkSequence: &seq},
		Policy:       domain.PolicyResult{Allow: true},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Action != "block" || result.Score != 100 {
		t.Fatalf("a fork must block, got %+v", result)
	}
	if !containsReason(result.Reasons, "DUPLICITY_DETECTED") {
		t.Fatalf("expected DUPLICITY_DETECTED reason, got %v", result.Reasons)
	}
}

func TestDecisionEngineV0_BlocksOnInvalidChain(t *testing.T) {
	engine := &DecisionEngineV0{}
	result, err := engine.Evaluate(DecisionInput{
		Verification: domain.PolicyVerification{ChainValid: false},
		Policy:       domain.PolicyResult{Allow: true},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Action != "block" {
		t.Fatalf("an invalid chain must block, got %+v", result)
	}
	if !containsReason(result.Reasons, "CHAIN_INVALID") {
		t.Fatalf("expected CHAIN_INVALID reason, got %v", result.Reasons)
	}
}

func TestDecisionEngineV0_BlocksOnPolicyDeny(t *testing.T) {
	engine := &DecisionEngineV0{}
	result, err := engine.Evaluate(DecisionInput{
		Verification: domain.PolicyVerification{ChainValid: true},
		Policy: domain.PolicyResult{
			Allow: false,
			Deny:  []domain.PolicyDeny{{Code: "SELF_ATTESTATION_ONLY"}},
		},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Action != "block" {
		t.Fatalf("a policy deny must block, got %+v", result)
	}
	if !containsReason(result.Reasons, "SELF_ATTESTATION_ONLY") {
		t.Fatalf("expected deny code carried as reason, got %v", result.Reasons)
	}
}

func TestDecisionEngineV0_RequireReviewBelowThreshold(t *testing.T) {
	engine := &DecisionEngineV0{}
	result, err := engine.Evaluate(DecisionInput{
		Verification: domain.PolicyVerification{ChainValid: true},
		Ceremony: &domain.CeremonySummary{
			Threshold:         3,
			TotalAttestors:    5,
			ValidAttestations: 1,
			DistinctChannels:  2,
		},
		Policy: domain.PolicyResult{Allow: true},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Action != "require_review" || result.Score != 50 {
		t.Fatalf("below-threshold ceremony must require review, got %+v", result)
	}
	if !containsReason(result.Reasons, "THRESHOLD_NOT_MET") {
		t.Fatalf("expected THRESHOLD_NOT_MET reason, got %v", result.Reasons)
	}
}

func TestDecisionEngineV0_RequireReviewChannelConcentration(t *testing.T) {
	engine := &DecisionEngineV0{}
	result, err := engine.Evaluate(DecisionInput{
		Verification: domain.PolicyVerification{ChainValid: true},
		Ceremony: &domain.CeremonySummary{
			Threshold:         2,
			TotalAttestors:    3,
			ValidAttestations: 2,
			DistinctChannels:  1,
		},
		Policy: domain.PolicyResult{Allow: true},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Action != "require_review" {
		t.Fatalf("channel concentration must require review, got %+v", result)
	}
	if !containsReason(result.Reasons, "CHANNEL_CONCENTRATION") {
		t.Fatalf("expected CHANNEL_CONCENTRATION reason, got %v", result.Reasons)
	}
}

func TestDecisionEngineV0_ReasonsSortedAndDeduplicated(t *testing.T) {
	engine := &DecisionEngineV0{}
	result, err := engine.Evaluate(DecisionInput{
		Verification: domain.PolicyVerification{ChainValid: false, ForkDetected: true},
		Ceremony: &domain.CeremonySummary{
			Threshold:         2,
			ValidAttestations: 0,
			DistinctChannels:  0,
		},
		Policy: domain.PolicyResult{
			Allow: false,
			Deny: []domain.PolicyDeny{
				{Code: "THRESHOLD_NOT_MET"},
				{Code: "CHAIN_INVALID"},
			},
		},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Action != "block" {
		t.Fatalf("expected block, got %+v", result)
	}
	seen := map[string]int{}
	for _, reason := range result.Reasons {
		seen[reason]++
	}
	for reason, count := range seen {
		if count > 1 {
			t.Fatalf("reason %q repeated %d times", reason, count)
		}
	}
	for i := 1; i < len(result.Reasons); i++ {
		if result.Reasons[i-1] > result.Reasons[i] {
			t.Fatalf("reasons not sorted: %v", result.Reasons)
		}
	}
}

func containsReason(reasons []string, want string) bool {
	for _, reason := range reasons {
		if reason == want {
			return true
		}
	}
	return false
}
