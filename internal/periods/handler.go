package periods

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/handlers"
	"github.com/JaimeStill/certify/pkg/routes"
)

// CertifyCommand certifies a period at a given time, now when zero.
type CertifyCommand struct {
	At time.Time `json:"at"`
}

// Handler provides HTTP endpoints for period administration and the
// program completion signal.
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

func NewHandler(e *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: e,
		logger: logger.With("handler", "periods"),
	}
}

// Handler returns the HTTP handler of the engine.
func (e *Engine) Handler() *Handler {
	return NewHandler(e, e.logger)
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "PUT", Pattern: "/periods/{id}", Handler: h.Override},
			{Method: "POST", Pattern: "/periods/{id}/certify", Handler: h.Certify},
			{Method: "POST", Pattern: "/periods/{id}/revoke", Handler: h.Revoke},
			{Method: "DELETE", Pattern: "/periods/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/assignments/{id}/stop-recertification", Handler: h.StopRecertification},
			{Method: "POST", Pattern: "/programs/completions", Handler: h.Complete},
		},
	}
}

// Override replaces the editable dates of a period.
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var d certification.Dates
	if err := handlers.DecodeJSON(r, &d); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	p, err := h.engine.Override(r.Context(), id, d, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) Certify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var cmd CertifyCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if cmd.At.IsZero() {
		cmd.At = h.engine.Now()
	}

	p, err := h.engine.Certify(r.Context(), id, cmd.At, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	p, err := h.engine.Revoke(r.Context(), id, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

// Delete removes a revoked period.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	if err := h.engine.Delete(r.Context(), id, handlers.ActorID(r)); err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondNoContent(w)
}

func (h *Handler) StopRecertification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	n, err := h.engine.StopRecertification(r.Context(), id, handlers.ActorID(r))
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]int{"changed": n})
}

// Complete receives a program completion and certifies the matching period.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var c Completion
	if err := handlers.DecodeJSON(r, &c); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if c.ProgramID <= 0 || c.UserID <= 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: program_id and user_id required", certification.ErrValidation))
		return
	}

	p, err := h.engine.Complete(r.Context(), c)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", certification.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}
