package assignments

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/handlers"
	"github.com/JaimeStill/certify/pkg/pagination"
	"github.com/JaimeStill/certify/pkg/routes"
)

// OverrideCommand sets or, with a null until, clears a temporary certification.
type OverrideCommand struct {
	Until *time.Time `json:"time_certified_until"`
}

// Handler provides HTTP endpoints for assignment administration.
type Handler struct {
	manager    *Manager
	logger     *slog.Logger
	pagination pagination.Config
}

func NewHandler(m *Manager, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		manager:    m,
		logger:     logger.With("handler", "assignments"),
		pagination: pagination,
	}
}

// Handler returns the HTTP handler of the manager.
func (m *Manager) Handler() *Handler {
	return NewHandler(m, m.logger, m.pagination)
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/certifications/{id}/assignments", Handler: h.List},
			{Method: "GET", Pattern: "/assignments/{id}", Handler: h.Find},
			{Method: "DELETE", Pattern: "/assignments/{id}", Handler: h.Unassign},
			{Method: "POST", Pattern: "/assignments/{id}/archive", Handler: h.Archive},
			{Method: "POST", Pattern: "/assignments/{id}/restore", Handler: h.Restore},
			{Method: "PUT", Pattern: "/assignments/{id}/override", Handler: h.Override},
			{Method: "PUT", Pattern: "/assignments/{id}/evidence", Handler: h.Evidence},
			{Method: "GET", Pattern: "/assignments/{id}/snapshots", Handler: h.Snapshots},
		},
	}
}

// List returns the assignments of a certification with their derived
// status. Supports the user_id and archived query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filter, err := filterFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.manager.Page(r.Context(), id, filter, page)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	v, err := h.manager.Status(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v)
}

func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	if err := h.manager.Unassign(r.Context(), id, handlers.ActorID(r)); err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondNoContent(w)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	a, err := h.manager.Archive(r.Context(), id, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	a, err := h.manager.Restore(r.Context(), id, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var cmd OverrideCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	a, err := h.manager.SetOverride(r.Context(), id, cmd.Until, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) Evidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var evidence json.RawMessage
	if err := handlers.DecodeJSON(r, &evidence); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	a, err := h.manager.SetEvidence(r.Context(), id, evidence, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	snaps, err := h.manager.Snapshots(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snaps)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", certification.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}

func filterFromQuery(values url.Values) (store.AssignmentFilter, error) {
	var f store.AssignmentFilter

	if v := values.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: user_id %q", certification.ErrValidation, v)
		}
		f.UserID = &id
	}

	if v := values.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: archived %q", certification.ErrValidation, v)
		}
		f.Archived = &archived
	}

	return f, nil
}
