package http

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"keryx/internal/domain"
	cryptoinfra "keryx/internal/infra/crypto"
	"keryx/internal/infra/db"
	"keryx/internal/usecase"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WitnessPublisher fans a finalized ceremony out to the configured witness
// providers. The zero-provider server runs without one.
type WitnessPublisher interface {
	PublishCeremony(ctx context.Context, ceremony domain.FinalizedCeremony) ([]domain.WitnessReceipt, error)
}

type WitnessReceiptStore interface {
	ListByIdentity(ctx context.Context, identityID string) ([]domain.WitnessReceipt, error)
}

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type eventInput struct {
	Sequence         uint64 `json:"sequence"`
	Kind             string `json:"kind"`
	CurrentKey       string `json:"current_key"`
	NextKeyDigest    string `json:"next_key_digest"`
	PriorEventDigest string `json:"prior_event_digest,omitempty"`
	Timestamp        string `json:"timestamp"`
	Signature        string `json:"signature"`
}

type eventResponse struct {
	IdentityID       string `json:"identity_id"`
	Sequence         uint64 `json:"sequence"`
	Kind             string `json:"kind"`
	CurrentKey       string `json:"current_key"`
	NextKeyDigest    string `json:"next_key_digest"`
	PriorEventDigest string `json:"prior_event_digest,omitempty"`
	Timestamp        string `json:"timestamp"`
	Signature        string `json:"signature"`
}

type appendEventResponse struct {
	Verification domain.ChainVerification `json:"verification"`
}

// signedReportResponse carries the verification report plus an optional
// detached signature so offline callers can prove what this server attested.
type signedReportResponse struct {
	Report    domain.ChainVerification `json:"report"`
	Signature string                   `json:"signature,omitempty"`
	PublicKey string                   `json:"public_key,omitempty"`
}

type duplicityRequest struct {
	Events []eventInput `json:"events"`
}

type duplicityResponse struct {
	ForkDetected bool                     `json:"fork_detected"`
	Finding      *domain.DuplicityFinding `json:"finding,omitempty"`
}

type recordInput struct {
	OldKeyID         string `json:"old_key_id"`
	NewKeyID         string `json:"new_key_id"`
	EffectiveAt      string `json:"effective_at"`
	OldKeySignature  string `json:"old_key_signature"`
	NewKeySignature  string `json:"new_key_signature"`
	PrevRecordDigest string `json:"prev_record_digest,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

type recordResponse struct {
	IdentityID       string `json:"identity_id"`
	OldKeyID         string `json:"old_key_id"`
	NewKeyID         string `json:"new_key_id"`
	EffectiveAt      string `json:"effective_at"`
	OldKeySignature  string `json:"old_key_signature"`
	NewKeySignature  string `json:"new_key_signature"`
	PrevRecordDigest string `json:"prev_record_digest,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

type recordValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type adminIdentityRequest struct {
	IdentityID string `json:"identity_id,omitempty"`
	Label      string `json:"label"`
}

func (s *Server) handleAppendEvent(c *gin.Context) {
	identityID := c.Param("identity_id")
	if !s.enforceRateLimit(c, routeEventsAppend, identityID) {
		return
	}
	var req eventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	event, err := decodeEvent(identityID, req)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}

	report, err := s.events.Append(c.Request.Context(), event)
	if errors.Is(err, usecase.ErrEventRejected) {
		c.JSON(http.StatusConflict, gin.H{
			"code":         "EVENT_REJECTED",
			"message":      err.Error(),
			"verification": report,
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appendEventResponse{Verification: report})
}

func (s *Server) handleListEvents(c *gin.Context) {
	identityID := c.Param("identity_id")
	events, err := s.events.Events.ListByIdentity(c.Request.Context(), identityID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, buildEventResponse(event))
	}
	c.JSON(http.StatusOK, gin.H{"identity_id": identityID, "events": out})
}

func (s *Server) handleVerifyLog(c *gin.Context) {
	identityID := c.Param("identity_id")
	if !s.enforceRateLimit(c, routeVerify, identityID) {
		return
	}
	report, err := s.events.VerifyLog(c.Request.Context(), identityID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := signedReportResponse{Report: report}
	if s.reportSigner != nil {
		canonical, err := cryptoinfra.CanonicalizeAny(report)
		if err == nil {
			if sig, pub, err := s.reportSigner.Sign(c.Request.Context(), canonical); err == nil {
				out.Signature = base64.StdEncoding.EncodeToString(sig)
				out.PublicKey = base64.StdEncoding.EncodeToString(pub)
			}
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCompareObservations(c *gin.Context) {
	identityID := c.Param("identity_id")
	if !s.enforceRateLimit(c, routeDuplicity, identityID) {
		return
	}
	var req duplicityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	observed := make([]domain.KeyEvent, 0, len(req.Events))
	for _, in := range req.Events {
		event, err := decodeEvent(identityID, in)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_EVENT", err.Error())
			return
		}
		observed = append(observed, event)
	}

	finding, err := s.events.CompareObservations(c.Request.Context(), identityID, observed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, duplicityResponse{
		ForkDetected: finding != nil,
		Finding:      finding,
	})
}

func (s *Server) handleAppendRecord(c *gin.Context) {
	identityID := c.Param("identity_id")
	if !s.enforceRateLimit(c, routeRecordsAppend, identityID) {
		return
	}
	if s.records == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req recordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	record, err := decodeRecord(identityID, req)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ROTATION_RECORD", err.Error())
		return
	}

	existing, err := s.records.ListByIdentity(c.Request.Context(), identityID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeError(c, err)
		return
	}
	candidate := make([]domain.RotationRecord, 0, len(existing)+1)
	candidate = append(candidate, existing...)
	candidate = append(candidate, record)
	if problems := s.rotations.ValidateChain(candidate); len(problems) > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "ROTATION_CHAIN_INVALID",
			"message": "rotation record breaks the chain",
			"errors":  errorStrings(problems),
		})
		return
	}

	if err := s.records.Append(c.Request.Context(), record); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListRecords(c *gin.Context) {
	identityID := c.Param("identity_id")
	if s.records == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	records, err := s.records.ListByIdentity(c.Request.Context(), identityID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, buildRecordResponse(record))
	}
	c.JSON(http.StatusOK, gin.H{"identity_id": identityID, "records": out})
}

// handleValidateRecords checks a caller-supplied rotation chain without
// persisting anything.
func (s *Server) handleValidateRecords(c *gin.Context) {
	var req struct {
		IdentityID string        `json:"identity_id"`
		Records    []recordInput `json:"records"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	records := make([]domain.RotationRecord, 0, len(req.Records))
	for _, in := range req.Records {
		record, err := decodeRecord(req.IdentityID, in)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ROTATION_RECORD", err.Error())
			return
		}
		records = append(records, record)
	}
	problems := s.rotations.ValidateChain(records)
	c.JSON(http.StatusOK, recordValidationResponse{
		Valid:  len(problems) == 0,
		Errors: errorStrings(problems),
	})
}

func (s *Server) handleListWitnessReceipts(c *gin.Context) {
	identityID := c.Param("identity_id")
	if s.receipts == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	receipts, err := s.receipts.ListByIdentity(c.Request.Context(), identityID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]witnessReceiptResponse, 0, len(receipts))
	for _, receipt := range receipts {
		out = append(out, buildWitnessReceiptResponse(receipt))
	}
	c.JSON(http.StatusOK, gin.H{"identity_id": identityID, "receipts": out})
}

func (s *Server) handleAdminCreateIdentity(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.identities == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req adminIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Label == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_IDENTITY", "label is required")
		return
	}
	identityID := req.IdentityID
	if identityID == "" {
		id, err := db.NewUUID()
		if err != nil {
			writeError(c, err)
			return
		}
		identityID = id
	}
	identity := domain.Identity{
		ID:        identityID,
		Label:     req.Label,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.identities.Create(c.Request.Context(), identity); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			writeErrorCode(c, http.StatusConflict, "ALREADY_EXISTS", "identity already exists")
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity_id": identityID})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		switch c.Request.URL.Path {
		case "/v1/records:validate":
			s.handleValidateRecords(c)
			return
		}
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func decodeEvent(identityID string, in eventInput) (domain.KeyEvent, error) {
	currentKey, err := base64.StdEncoding.DecodeString(in.CurrentKey)
	if err != nil {
		return domain.KeyEvent{}, errors.New("current_key is not valid base64")
	}
	nextDigest, err := hex.DecodeString(in.NextKeyDigest)
	if err != nil {
		return domain.KeyEvent{}, errors.New("next_key_digest is not valid hex")
	}
	var priorDigest []byte
	if in.PriorEventDigest != "" {
		priorDigest, err = hex.DecodeString(in.PriorEventDigest)
		if err != nil {
			return domain.KeyEvent{}, errors.New("prior_event_digest is not valid hex")
		}
	}
	signature, err := base64.StdEncoding.DecodeString(in.Signature)
	if err != nil {
		return domain.KeyEvent{}, errors.New("signature is not valid base64")
	}
	kind := domain.EventKind(in.Kind)
	if kind != domain.EventKindInception && kind != domain.EventKindRotation {
		return domain.KeyEvent{}, errors.New("kind must be inception or rotation")
	}
	return domain.KeyEvent{
		IdentityID:       identityID,
		Sequence:         in.Sequence,
		Kind:             kind,
		CurrentKey:       currentKey,
		NextKeyDigest:    nextDigest,
		PriorEventDigest: priorDigest,
		Timestamp:        in.Timestamp,
		Signature:        signature,
	}, nil
}

func buildEventResponse(event domain.KeyEvent) eventResponse {
	out := eventResponse{
		IdentityID:    event.IdentityID,
		Sequence:      event.Sequence,
		Kind:          string(event.Kind),
		CurrentKey:    base64.StdEncoding.EncodeToString(event.CurrentKey),
		NextKeyDigest: hex.EncodeToString(event.NextKeyDigest),
		Timestamp:     event.Timestamp,
		Signature:     base64.StdEncoding.EncodeToString(event.Signature),
	}
	if len(event.PriorEventDigest) > 0 {
		out.PriorEventDigest = hex.EncodeToString(event.PriorEventDigest)
	}
	return out
}

func decodeRecord(identityID string, in recordInput) (domain.RotationRecord, error) {
	oldSig, err := base64.StdEncoding.DecodeString(in.OldKeySignature)
	if err != nil {
		return domain.RotationRecord{}, errors.New("old_key_signature is not valid base64")
	}
	newSig, err := base64.StdEncoding.DecodeString(in.NewKeySignature)
	if err != nil {
		return domain.RotationRecord{}, errors.New("new_key_signature is not valid base64")
	}
	var prevDigest []byte
	if in.PrevRecordDigest != "" {
		prevDigest, err = hex.DecodeString(in.PrevRecordDigest)
		if err != nil {
			return domain.RotationRecord{}, errors.New("prev_record_digest is not valid hex")
		}
	}
	return domain.RotationRecord{
		IdentityID:       identityID,
		OldKeyID:         in.OldKeyID,
		NewKeyID:         in.NewKeyID,
		EffectiveAt:      in.EffectiveAt,
		OldKeySignature:  oldSig,
		NewKeySignature:  newSig,
		PrevRecordDigest: prevDigest,
		Reason:           in.Reason,
	}, nil
}

func buildRecordResponse(record domain.RotationRecord) recordResponse {
	out := recordResponse{
		IdentityID:      record.IdentityID,
		OldKeyID:        record.OldKeyID,
		NewKeyID:        record.NewKeyID,
		EffectiveAt:     record.EffectiveAt,
		OldKeySignature: base64.StdEncoding.EncodeToString(record.OldKeySignature),
		NewKeySignature: base64.StdEncoding.EncodeToString(record.NewKeySignature),
		Reason:          record.Reason,
	}
	if len(record.PrevRecordDigest) > 0 {
		out.PrevRecordDigest = hex.EncodeToString(record.PrevRecordDigest)
	}
	return out
}

func errorStrings(problems []error) []string {
	if len(problems) == 0 {
		return nil
	}
	out := make([]string, 0, len(problems))
	for _, problem := range problems {
		out = append(out, problem.Error())
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrEmptyLog):
		status, code = http.StatusNotFound, "EMPTY_LOG"
	case errors.Is(err, domain.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrIdentityMismatch):
		status, code = http.StatusBadRequest, "IDENTITY_MISMATCH"
	case errors.Is(err, domain.ErrInvalidKeyMaterial):
		status, code = http.StatusBadRequest, "INVALID_KEY_MATERIAL"
	case errors.Is(err, domain.ErrInvalidRotation):
		status, code = http.StatusConflict, "INVALID_ROTATION"
	case errors.Is(err, domain.ErrCeremonyFinalized):
		status, code = http.StatusConflict, "CEREMONY_FINALIZED"
	case errors.Is(err, domain.ErrCeremonyIncomplete):
		status, code = http.StatusConflict, "CEREMONY_INCOMPLETE"
	case errors.Is(err, domain.ErrDuplicityDetected):
		status, code = http.StatusConflict, "DUPLICITY_DETECTED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
