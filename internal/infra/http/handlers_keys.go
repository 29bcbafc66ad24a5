package http

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"keryx/internal/domain"

	"github.com/gin-gonic/gin"
)

type IdentityKeyStore interface {
	Create(ctx context.Context, key domain.IdentityKey) error
	ListByIdentity(ctx context.Context, identityID string) ([]domain.IdentityKey, error)
	UpdateStatus(ctx context.Context, identityID, kid string, status domain.KeyStatus) error
}

type generateKeyRequest struct {
	Purpose string `json:"purpose,omitempty"`
}

type keyResponse struct {
	KID       string `json:"kid"`
	Purpose   string `json:"purpose"`
	Alg       string `json:"alg"`
	PublicKey string `json:"public_key"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// handleAdminGenerateKey mints a fresh pre-rotation key pair. The private
// half stays inside the soft key manager; only the public record comes back.
func (s *Server) handleAdminGenerateKey(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.prerotator == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	identityID := c.Param("identity_id")
	var req generateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	purpose := domain.KeyPurpose(req.Purpose)
	if purpose == "" {
		purpose = domain.KeyPurposeNext
	}
	if purpose != domain.KeyPurposeCurrent && purpose != domain.KeyPurposeNext {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_KEY_PURPOSE", "purpose must be current or next")
		return
	}

	key, err := s.prerotator.Generate(c.Request.Context(), identityID, purpose)
	if err != nil {
		writeError(c, err)
		return
	}
	if s.identityKeys != nil {
		if err := s.identityKeys.Create(c.Request.Context(), key); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, buildKeyResponse(key))
}

func (s *Server) handleListIdentityKeys(c *gin.Context) {
	if s.identityKeys == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	identityID := c.Param("identity_id")
	keys, err := s.identityKeys.ListByIdentity(c.Request.Context(), identityID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]keyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, buildKeyResponse(key))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAdminKeyAction(c *gin.Context) {
	segment := c.Param("kid_action")
	if segment == "" {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	parts := strings.SplitN(segment, ":", 2)
	if len(parts) != 2 {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	c.Params = append(c.Params, gin.Param{Key: "kid", Value: parts[0]})
	switch parts[1] {
	case "retire":
		s.handleAdminSetKeyStatus(c, domain.KeyStatusRetired)
	case "revoke":
		s.handleAdminSetKeyStatus(c, domain.KeyStatusRevoked)
	default:
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
	}
}

func (s *Server) handleAdminSetKeyStatus(c *gin.Context, status domain.KeyStatus) {
	if !s.requireAdmin(c) {
		return
	}
	if s.identityKeys == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	identityID := c.Param("identity_id")
	kid := c.Param("kid")
	if err := s.identityKeys.UpdateStatus(c.Request.Context(), identityID, kid, status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kid": kid, "status": string(status)})
}

func buildKeyResponse(key domain.IdentityKey) keyResponse {
	out := keyResponse{
		KID:       key.KID,
		Purpose:   string(key.Purpose),
		Alg:       key.Alg,
		PublicKey: base64.StdEncoding.EncodeToString(key.PublicKey),
		Status:    string(key.Status),
	}
	if !key.CreatedAt.IsZero() {
		out.CreatedAt = key.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
