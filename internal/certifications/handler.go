package certifications

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/handlers"
	"github.com/JaimeStill/certify/pkg/pagination"
	"github.com/JaimeStill/certify/pkg/routes"
)

// Handler provides HTTP endpoints for certification administration.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "certifications"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for certification endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/certifications",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update},
			{Method: "POST", Pattern: "/{id}/archive", Handler: h.Archive},
			{Method: "POST", Pattern: "/{id}/restore", Handler: h.Restore},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "GET", Pattern: "/{id}/notifications", Handler: h.Notifications},
			{Method: "PUT", Pattern: "/{id}/notifications", Handler: h.SaveNotification},
		},
	}
}

// List returns a paginated list of certifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single certification by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	c, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

// Create accepts a JSON body and creates a certification.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd certification.CreateCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	c, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, c)
}

// Update replaces the mutable fields of a certification.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var cmd certification.UpdateCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	c, err := h.sys.Update(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	c, err := h.sys.Archive(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	c, err := h.sys.Restore(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

// Delete removes a certification without assignments.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondNoContent(w)
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	configs, err := h.sys.Notifications(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, configs)
}

func (h *Handler) SaveNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var cmd NotificationCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cfg, err := h.sys.SaveNotification(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, cfg)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", certification.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}
