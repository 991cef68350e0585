package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"rewards-backend/models"
	auth "rewards-backend/storage/auth"
)

// APIKeyHandler issues and inspects API keys.
type APIKeyHandler struct {
	*BaseHandler
	issuer auth.APIKeyIssuer
}

// NewAPIKeyHandler builds an APIKeyHandler.
func NewAPIKeyHandler(issuer auth.APIKeyIssuer, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{BaseHandler: NewBaseHandler(logger), issuer: issuer}
}

// HandleIssue issues a new API key. Only admin keys may call it.
// @Summary Issue API key
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body models.IssueKeyRequest true "label and role"
// @Success 201 {object} models.APIResponse
// @Failure 403 {object} models.APIResponse
// @Router /api/keys [post]
func (h *APIKeyHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAdmin(r.Context()) {
		h.sendError(w, http.StatusForbidden, "permission_denied", "issuing keys requires an admin key")
		return
	}
	var req models.IssueKeyRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok {
		h.sendError(w, http.StatusBadRequest, "invalid_input", "role must be admin or operator")
		return
	}
	rec, err := h.issuer.Issue(strings.TrimSpace(req.Label), role)
	if err != nil {
		h.logger.Error("issue api key", "error", err)
		h.sendError(w, http.StatusInternalServerError, "internal", "failed to issue api key")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	h.logger.Info("api key issued", "label", rec.Label, "role", rec.Role, "issued_by", caller.Label)
	h.sendSuccess(w, http.StatusCreated, models.IssueKeyResponse{
		Key:       rec.Key,
		Label:     rec.Label,
		Role:      string(rec.Role),
		CreatedAt: rec.CreatedAt,
	})
}

// HandleWhoAmI describes the calling key.
// @Summary Describe calling key
// @Tags Auth
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/keys/self [get]
func (h *APIKeyHandler) HandleWhoAmI(w http.ResponseWriter, r *http.Request) {
	rec, ok := auth.FromContext(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "api_key_required", "API key required")
		return
	}
	rec.Key = ""
	h.sendSuccess(w, http.StatusOK, rec)
}
