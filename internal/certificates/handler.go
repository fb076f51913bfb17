package certificates

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/pkg/handlers"
	"github.com/JaimeStill/certify/pkg/routes"
)

// Handler serves issued certificate documents.
type Handler struct {
	store  store.Store
	blobs  *BlobIssuer
	logger *slog.Logger
}

// NewHandler creates a Handler reading documents through blobs.
func NewHandler(s store.Store, blobs *BlobIssuer, logger *slog.Logger) *Handler {
	return &Handler{
		store:  s,
		blobs:  blobs,
		logger: logger.With("handler", "certificates"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/periods/{id}/certificate", Handler: h.Document},
		},
	}
}

// Document streams the certificate document issued for a period.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", certification.ErrValidation))
		return
	}

	p, err := h.store.GetPeriod(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	rc, err := h.blobs.Open(r.Context(), *p)
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream certificate failed", "period_id", p.ID, "error", err)
	}
}
