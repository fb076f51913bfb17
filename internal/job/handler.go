package job

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/handlers"
	"github.com/JaimeStill/certify/pkg/routes"
)

// Handler exposes a manual trigger of the reconciliation pass.
type Handler struct {
	job    *Job
	logger *slog.Logger
}

func NewHandler(j *Job, logger *slog.Logger) *Handler {
	return &Handler{
		job:    j,
		logger: logger.With("handler", "job"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/job",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/run", Handler: h.Run},
		},
	}
}

// Run executes one pass and returns its report. Step failures are part of
// the report, not the status code.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.job.Run(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, certification.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}
