package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"rewards-backend/core/rewards"
	"rewards-backend/middleware"
	"rewards-backend/models"
	"rewards-backend/services"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	logger *slog.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(logger *slog.Logger) *BaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseHandler{logger: logger}
}

func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	middleware.JSON(w, statusCode, data)
}

func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, kind, message string) {
	middleware.Error(w, statusCode, kind, message)
}

func (h *BaseHandler) sendSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	h.sendJSON(w, statusCode, models.NewSuccessResponse(data))
}

// parseJSON decodes the request body, rejecting unknown fields.
func (h *BaseHandler) parseJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps the engine's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rewards.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, rewards.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rewards.ErrAlreadyExists), errors.Is(err, rewards.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, rewards.ErrInvalidAddress), errors.Is(err, rewards.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, rewards.ErrEmpty):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// sendEngineError writes err with its taxonomy status. Internal and corrupt
// errors are logged and their detail withheld from the caller.
func (h *BaseHandler) sendEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := rewards.Kind(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "request_id", middleware.RequestID(r.Context()), "kind", kind, "error", err)
		h.sendError(w, status, kind, "internal error")
		return
	}
	h.sendError(w, status, kind, err.Error())
}

func pathUint(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an unsigned integer", rewards.ErrInvalidInput, name)
	}
	return v, nil
}

// HealthHandler handles health check requests
type HealthHandler struct {
	*BaseHandler
	healthService *services.HealthService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		BaseHandler:   NewBaseHandler(nil),
		healthService: healthService,
	}
}

// HandleHealth handles health check requests
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, h.healthService.GetHealthStatus())
}
