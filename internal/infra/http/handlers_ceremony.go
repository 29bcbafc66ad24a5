package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"keryx/internal/domain"
	"keryx/internal/infra/db"
	"keryx/internal/usecase"

	"github.com/gin-gonic/gin"
)

type ceremonyRequest struct {
	CeremonyID     string `json:"ceremony_id,omitempty"`
	IdentityID     string `json:"identity_id"`
	OldKey         string `json:"old_key"`
	NewKey         string `json:"new_key"`
	Nonce          string `json:"nonce"`
	Threshold      int    `json:"threshold"`
	TotalAttestors int    `json:"total_attestors"`
}

type ceremonyResponse struct {
	CeremonyID        string                 `json:"ceremony_id"`
	IdentityID        string                 `json:"identity_id"`
	State             string                 `json:"state"`
	Threshold         int                    `json:"threshold"`
	TotalAttestors    int                    `json:"total_attestors"`
	ValidAttestations int                    `json:"valid_attestations"`
	SelfAttested      bool                   `json:"self_attested"`
	Diversity         domain.DiversityReport `json:"diversity"`
	PayloadBase64     string                 `json:"payload_base64,omitempty"`
}

type attestationRequest struct {
	AttestorID  string `json:"attestor_id"`
	AttestorKey string `json:"attestor_key"`
	Signature   string `json:"signature"`
	Channel     string `json:"channel"`
}

type attestationResponse struct {
	Accepted          bool                   `json:"accepted"`
	State             string                 `json:"state"`
	ValidAttestations int                    `json:"valid_attestations"`
	Diversity         domain.DiversityReport `json:"diversity"`
}

type witnessReceiptResponse struct {
	Provider    string `json:"provider"`
	Status      string `json:"status"`
	ErrorCode   string `json:"error_code,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Location    string `json:"location,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type decisionResponse struct {
	EngineVersion string   `json:"engine_version"`
	Score         int      `json:"score"`
	Action        string   `json:"action"`
	Reasons       []string `json:"reasons,omitempty"`
}

type publishResponse struct {
	CeremonyID string                   `json:"ceremony_id"`
	State      string                   `json:"state"`
	Policy     *domain.PolicyEvaluation `json:"policy,omitempty"`
	Decision   decisionResponse         `json:"decision"`
	Receipts   []witnessReceiptResponse `json:"receipts"`
}

type trustResponse struct {
	IdentityID   string                    `json:"identity_id"`
	Verification domain.PolicyVerification `json:"verification"`
	Ceremony     *domain.CeremonySummary   `json:"ceremony,omitempty"`
	Policy       *domain.PolicyEvaluation  `json:"policy,omitempty"`
	Decision     decisionResponse          `json:"decision"`
}

func (s *Server) handleCreateCeremony(c *gin.Context) {
	var req ceremonyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if !s.enforceRateLimit(c, routeCeremonies, req.IdentityID) {
		return
	}
	oldKey, err := base64.StdEncoding.DecodeString(req.OldKey)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CEREMONY", "old_key is not valid base64")
		return
	}
	newKey, err := base64.StdEncoding.DecodeString(req.NewKey)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CEREMONY", "new_key is not valid base64")
		return
	}
	ceremonyID := req.CeremonyID
	if ceremonyID == "" {
		id, err := db.NewUUID()
		if err != nil {
			writeError(c, err)
			return
		}
		ceremonyID = id
	}
	request := domain.RotationRequest{
		IdentityID:     req.IdentityID,
		OldKey:         oldKey,
		NewKey:         newKey,
		Nonce:          req.Nonce,
		Threshold:      req.Threshold,
		TotalAttestors: req.TotalAttestors,
	}
	ceremony, err := usecase.NewCeremony(ceremonyID, request, s.crypto, nil)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidKeyMaterial) {
			writeError(c, err)
			return
		}
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CEREMONY", err.Error())
		return
	}

	s.liveMu.Lock()
	if _, exists := s.live[ceremonyID]; exists {
		s.liveMu.Unlock()
		writeErrorCode(c, http.StatusConflict, "ALREADY_EXISTS", "ceremony already exists")
		return
	}
	s.live[ceremonyID] = ceremony
	s.liveMu.Unlock()

	if s.ceremonies != nil {
		if err := s.ceremonies.Create(c.Request.Context(), ceremonyID, ceremony.Request(), ceremony.State()); err != nil {
			s.liveMu.Lock()
			delete(s.live, ceremonyID)
			s.liveMu.Unlock()
			writeError(c, err)
			return
		}
	}
	if s.audit != nil {
		_ = s.audit.EmitCeremonyCreated(c.Request.Context(), domain.AuditActorController, "", req.IdentityID, ceremonyID, req.Threshold, req.TotalAttestors)
	}
	c.JSON(http.StatusOK, buildCeremonyResponse(ceremony, true))
}

func (s *Server) handleGetCeremony(c *gin.Context) {
	ceremony, ok := s.lookupCeremony(c.Param("ceremony_id"))
	if !ok {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, buildCeremonyResponse(ceremony, true))
}

func (s *Server) handleAddAttestation(c *gin.Context) {
	ceremony, ok := s.lookupCeremony(c.Param("ceremony_id"))
	if !ok {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeAttestations, ceremony.Request().IdentityID) {
		return
	}
	var req attestationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	attestorKey, err := base64.StdEncoding.DecodeString(req.AttestorKey)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ATTESTATION", "attestor_key is not valid base64")
		return
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ATTESTATION", "signature is not valid base64")
		return
	}

	att := domain.Attestation{
		AttestorID:  req.AttestorID,
		AttestorKey: attestorKey,
		Signature:   signature,
		Channel:     req.Channel,
	}
	wasComplete := ceremony.IsComplete()
	accepted := ceremony.AddAttestation(att)
	if accepted && s.ceremonies != nil {
		stored := ceremony.Attestations()
		_ = s.ceremonies.AppendAttestation(c.Request.Context(), ceremony.ID(), stored[len(stored)-1])
	}
	if accepted && !wasComplete && ceremony.IsComplete() {
		if s.ceremonies != nil {
			_ = s.ceremonies.UpdateState(c.Request.Context(), ceremony.ID(), ceremony.State())
		}
		if s.audit != nil {
			diversity := ceremony.Diversity()
			_ = s.audit.EmitCeremonyCompleted(c.Request.Context(), domain.AuditActorAttestor, req.AttestorID,
				ceremony.Request().IdentityID, ceremony.ID(), len(ceremony.Attestations()), diversity.DistinctChannels)
		}
	}
	c.JSON(http.StatusOK, attestationResponse{
		Accepted:          accepted,
		State:             string(ceremony.State()),
		ValidAttestations: len(ceremony.Attestations()),
		Diversity:         ceremony.Diversity(),
	})
}

func (s *Server) handlePublishCeremony(c *gin.Context) {
	ceremony, ok := s.lookupCeremony(c.Param("ceremony_id"))
	if !ok {
		writeError(c, domain.ErrNotFound)
		return
	}
	identityID := ceremony.Request().IdentityID
	if !s.enforceRateLimit(c, routePublish, identityID) {
		return
	}

	finalized, err := ceremony.Finalize()
	if err != nil {
		writeError(c, err)
		return
	}

	verification := s.verificationSummary(c, identityID)
	summary := ceremonySummary(ceremony)
	policy, policyErr := s.evaluatePolicy(c, identityID, summary, verification)
	if policyErr != nil {
		writeError(c, policyErr)
		return
	}

	decision, err := s.decision.Evaluate(usecase.DecisionInput{
		Verification: verification,
		Ceremony:     &summary,
		Policy:       policyResult(policy),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if decision.Action == "block" {
		c.JSON(http.StatusConflict, gin.H{
			"code":     "PUBLISH_BLOCKED",
			"message":  "trust decision blocks publication",
			"decision": buildDecisionResponse(decision),
			"policy":   policy,
		})
		return
	}

	var receipts []domain.WitnessReceipt
	if s.witness != nil {
		receipts, err = s.witness.PublishCeremony(c.Request.Context(), finalized)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	if err := ceremony.MarkPublished(); err != nil {
		writeError(c, err)
		return
	}
	if s.ceremonies != nil {
		_ = s.ceremonies.UpdateState(c.Request.Context(), ceremony.ID(), ceremony.State())
	}
	if s.audit != nil {
		contentHash := ""
		result := domain.AuditResultSuccess
		errorCode := ""
		for _, receipt := range receipts {
			contentHash = receipt.ContentHash
			if receipt.Status != domain.WitnessStatusPublished {
				result = domain.AuditResultFailure
				errorCode = receipt.ErrorCode
			}
		}
		_ = s.audit.EmitWitnessPublished(c.Request.Context(), domain.AuditActorController, "", identityID, ceremony.ID(), contentHash, result, errorCode)
	}

	out := publishResponse{
		CeremonyID: ceremony.ID(),
		State:      string(ceremony.State()),
		Policy:     policy,
		Decision:   buildDecisionResponse(decision),
		Receipts:   make([]witnessReceiptResponse, 0, len(receipts)),
	}
	for _, receipt := range receipts {
		out.Receipts = append(out.Receipts, buildWitnessReceiptResponse(receipt))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleTrustDecision(c *gin.Context) {
	identityID := c.Param("identity_id")
	if !s.enforceRateLimit(c, routeTrust, identityID) {
		return
	}

	verification := s.verificationSummary(c, identityID)
	var summary *domain.CeremonySummary
	if ceremonyID := c.Query("ceremony_id"); ceremonyID != "" {
		ceremony, ok := s.lookupCeremony(ceremonyID)
		if !ok {
			writeError(c, domain.ErrNotFound)
			return
		}
		if ceremony.Request().IdentityID != identityID {
			writeError(c, domain.ErrIdentityMismatch)
			return
		}
		value := ceremonySummary(ceremony)
		summary = &value
	}

	policy, err := s.evaluatePolicy(c, identityID, orEmptySummary(summary), verification)
	if err != nil {
		writeError(c, err)
		return
	}
	decision, err := s.decision.Evaluate(usecase.DecisionInput{
		Verification: verification,
		Ceremony:     summary,
		Policy:       policyResult(policy),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trustResponse{
		IdentityID:   identityID,
		Verification: verification,
		Ceremony:     summary,
		Policy:       policy,
		Decision:     buildDecisionResponse(decision),
	})
}

func (s *Server) lookupCeremony(ceremonyID string) (*usecase.Ceremony, bool) {
	if ceremonyID == "" {
		return nil, false
	}
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	ceremony, ok := s.live[ceremonyID]
	return ceremony, ok
}

// verificationSummary condenses the stored log into the policy view. An
// empty log is not an error here: it simply verifies as invalid.
func (s *Server) verificationSummary(c *gin.Context, identityID string) domain.PolicyVerification {
	report, err := s.events.VerifyLog(c.Request.Context(), identityID)
	if err != nil {
		return domain.PolicyVerification{ChainValid: false, EventCount: 0}
	}
	return domain.PolicyVerification{
		ChainValid: report.Valid,
		EventCount: report.EventCount,
	}
}

func (s *Server) evaluatePolicy(c *gin.Context, identityID string, summary domain.CeremonySummary, verification domain.PolicyVerification) (*domain.PolicyEvaluation, error) {
	if s.policy == nil {
		return nil, nil
	}
	evaluation, err := s.policy.Evaluate(c.Request.Context(), domain.PolicyInput{
		IdentityID:   identityID,
		Ceremony:     summary,
		Verification: verification,
	})
	if err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// policyResult treats a missing policy engine as allow so the decision
// engine still runs on verification and ceremony inputs alone.
func policyResult(evaluation *domain.PolicyEvaluation) domain.PolicyResult {
	if evaluation == nil {
		return domain.PolicyResult{Allow: true}
	}
	return evaluation.Result
}

func ceremonySummary(ceremony *usecase.Ceremony) domain.CeremonySummary {
	request := ceremony.Request()
	diversity := ceremony.Diversity()
	return domain.CeremonySummary{
		Threshold:         request.Threshold,
		TotalAttestors:    request.TotalAttestors,
		ValidAttestations: len(ceremony.Attestations()),
		DistinctChannels:  diversity.DistinctChannels,
		SelfAttested:      ceremony.SelfAttested(),
	}
}

func orEmptySummary(summary *domain.CeremonySummary) domain.CeremonySummary {
	if summary == nil {
		return domain.CeremonySummary{}
	}
	return *summary
}

func buildCeremonyResponse(ceremony *usecase.Ceremony, includePayload bool) ceremonyResponse {
	request := ceremony.Request()
	out := ceremonyResponse{
		CeremonyID:        ceremony.ID(),
		IdentityID:        request.IdentityID,
		State:             string(ceremony.State()),
		Threshold:         request.Threshold,
		TotalAttestors:    request.TotalAttestors,
		ValidAttestations: len(ceremony.Attestations()),
		SelfAttested:      ceremony.SelfAttested(),
		Diversity:         ceremony.Diversity(),
	}
	if includePayload {
		out.PayloadBase64 = base64.StdEncoding.EncodeToString(ceremony.Payload())
	}
	return out
}

func buildDecisionResponse(decision usecase.DecisionResult) decisionResponse {
	return decisionResponse{
		EngineVersion: decision.EngineVersion,
		Score:         decision.Score,
		Action:        decision.Action,
		Reasons:       decision.Reasons,
	}
}

func buildWitnessReceiptResponse(receipt domain.WitnessReceipt) witnessReceiptResponse {
	out := witnessReceiptResponse{
		Provider:    receipt.Provider,
		Status:      receipt.Status,
		ErrorCode:   receipt.ErrorCode,
		ContentHash: receipt.ContentHash,
		Location:    receipt.Location,
	}
	if !receipt.CreatedAt.IsZero() {
		out.CreatedAt = receipt.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
