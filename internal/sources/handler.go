package sources

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/handlers"
	"github.com/JaimeStill/certify/pkg/routes"
)

// EnableCommand creates a source of a certification.
type EnableCommand struct {
	Type     certification.SourceType `json:"type"`
	Settings json.RawMessage          `json:"settings"`
}

// UserCommand names the user of a self-service call.
type UserCommand struct {
	UserID int64           `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Handler provides HTTP endpoints for source administration and the
// self-service sign up and request flows.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger.With("handler", "sources"),
	}
}

// Routes returns the source route group. Patterns are rooted because sources
// are addressed both under their certification and by their own id.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/certifications/{id}/sources", Handler: h.Enable},
			{Method: "PUT", Pattern: "/sources/{id}", Handler: h.Configure},
			{Method: "DELETE", Pattern: "/sources/{id}", Handler: h.Disable},
			{Method: "POST", Pattern: "/sources/{id}/assign", Handler: h.Assign},
			{Method: "POST", Pattern: "/certifications/{id}/signup", Handler: h.Signup},
			{Method: "GET", Pattern: "/certifications/{id}/requests", Handler: h.Requests},
			{Method: "POST", Pattern: "/certifications/{id}/requests", Handler: h.Request},
			{Method: "POST", Pattern: "/requests/{id}/approve", Handler: h.Approve},
			{Method: "POST", Pattern: "/requests/{id}/reject", Handler: h.Reject},
			{Method: "DELETE", Pattern: "/requests/{id}", Handler: h.DeleteRequest},
		},
	}
}

func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var cmd EnableCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	src, err := h.registry.Enable(r.Context(), id, cmd.Type, cmd.Settings)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, src)
}

func (h *Handler) Configure(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var settings json.RawMessage
	if err := handlers.DecodeJSON(r, &settings); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	src, err := h.registry.Configure(r.Context(), id, settings)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, src)
}

func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	if err := h.registry.Disable(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondNoContent(w)
}

// Assign manually assigns the users of the body. Partial failures are
// reported alongside the assignments that were created.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var cmd AssignCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if cmd.ActorID == nil {
		cmd.ActorID = handlers.ActorID(r)
	}

	created, err := h.registry.Manual.AssignUsers(r.Context(), id, cmd)
	if err != nil && len(created) == 0 {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	body := map[string]any{"assignments": created}
	if err != nil {
		h.logger.Warn("manual assignment partially failed", "source_id", id, "error", err)
		body["error"] = err.Error()
	}
	handlers.RespondJSON(w, http.StatusOK, body)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	cmd, ok := h.user(w, r)
	if !ok {
		return
	}

	a, err := h.registry.Self.Signup(r.Context(), id, cmd.UserID)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	requests, err := h.registry.Approval.Requests(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, requests)
}

// Request files an approval request. A user already assigned or with a
// pending or rejected request gets 204.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	cmd, ok := h.user(w, r)
	if !ok {
		return
	}

	req, err := h.registry.Approval.Request(r.Context(), id, cmd.UserID, cmd.Data)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}
	if req == nil {
		handlers.RespondNoContent(w)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, req)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	a, err := h.registry.Approval.Approve(r.Context(), id, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}
	if a == nil {
		handlers.RespondNoContent(w)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	req, err := h.registry.Approval.Reject(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, req)
}

func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	if err := h.registry.Approval.DeleteRequest(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondNoContent(w)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (UserCommand, bool) {
	var cmd UserCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return cmd, false
	}
	if cmd.UserID == 0 {
		if actor := handlers.ActorID(r); actor != nil {
			cmd.UserID = *actor
		}
	}
	if cmd.UserID <= 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: user_id required", certification.ErrValidation))
		return cmd, false
	}
	return cmd, true
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", certification.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}
