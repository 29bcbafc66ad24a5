package domain

// PolicyInput is what the witness policy bundle evaluates before a completed
// ceremony may be published.
type PolicyInput struct {
	IdentityID   string             `json:"identity_id"`
	Ceremony     CeremonySummary    `json:"ceremony"`
	Verification PolicyVerification `json:"verification"`
}

type CeremonySummary struct {
	Threshold         int  `json:"threshold"`
	TotalAttestors    int  `json:"total_attestors"`
	ValidAttestations int  `json:"valid_attestations"`
	DistinctChannels  int  `json:"distinct_channels"`
	SelfAttested      bool `json:"self_attested"`
}

type PolicyVerification struct {
	ChainValid   bool    `json:"chain_valid"`
	EventCount   int     `json:"event_count"`
	ForkDetected bool    `json:"fork_detected"`
	ForkSequence *uint64 `json:"fork_sequence,omitempty"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
