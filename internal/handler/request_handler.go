package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dandantas/magpie/internal/service"
	"github.com/dandantas/magpie/pkg/middleware"
)

// SubmitCallback carries the webhook target for callback mode
type SubmitCallback struct {
	URL string `json:"url" validate:"omitempty,url"`
}

// SubmitConfig selects the processing mode
type SubmitConfig struct {
	Type     string          `json:"type" validate:"omitempty,oneof=instant callback"`
	Callback *SubmitCallback `json:"callback" validate:"omitempty"`
}

// SubmitRequest is the submission body
type SubmitRequest struct {
	Usernames []string      `json:"usernames" validate:"required,min=1,dive,required"`
	Config    *SubmitConfig `json:"config" validate:"omitempty"`
}

// APIResponse is the uniform success envelope
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RequestHandler exposes the orchestrator's submit/status/cancel surface
type RequestHandler struct {
	orchestrator *service.Orchestrator
	validate     *validator.Validate
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(orchestrator *service.Orchestrator) *RequestHandler {
	return &RequestHandler{
		orchestrator: orchestrator,
		validate:     validator.New(),
	}
}

// Submit handles POST /api/v1/profiles
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.GetClientID(r.Context())
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "Missing client identity")
		return
	}

	var body SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := service.SubmitOptions{}
	if body.Config != nil {
		opts.Type = body.Config.Type
		if body.Config.Callback != nil {
			opts.CallbackURL = body.Config.Callback.URL
		}
	}

	result, err := h.orchestrator.Submit(r.Context(), body.Usernames, opts, clientID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if result.Request != nil {
		writeJSON(w, http.StatusAccepted, APIResponse{
			Status:  "success",
			Message: "Request accepted for processing",
			Data:    result.Request,
		})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Status:  "success",
		Message: "Profiles fetched",
		Data:    result.Outcomes,
	})
}

// Status handles GET /api/v1/profiles/requests/{id}
func (h *RequestHandler) Status(w http.ResponseWriter, r *http.Request, requestID string) {
	clientID := middleware.GetClientID(r.Context())
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "Missing client identity")
		return
	}

	view, err := h.orchestrator.GetStatus(r.Context(), requestID, clientID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Status: "success",
		Data:   view,
	})
}

// Cancel handles DELETE /api/v1/profiles/requests/{id}
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request, requestID string) {
	clientID := middleware.GetClientID(r.Context())
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "Missing client identity")
		return
	}

	if err := h.orchestrator.Cancel(r.Context(), requestID, clientID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Status:  "success",
		Message: "Request cancelled successfully",
	})
}
