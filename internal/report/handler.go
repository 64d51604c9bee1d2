package report

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plantops/downtime-keeper/internal/cache"
	"github.com/plantops/downtime-keeper/internal/pkg/httputil"
	"github.com/plantops/downtime-keeper/internal/shift"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: cache.ErrNeverRefreshed, Status: http.StatusServiceUnavailable, Message: "no downtime data available yet"},
}

// Handler handles HTTP requests for the report module.
type Handler struct {
	builder *Builder
}

// NewHandler creates a new report handler.
func NewHandler(builder *Builder) *Handler {
	return &Handler{builder: builder}
}

// RegisterRoutes registers all report routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/lines", h.LineStatus)
		r.Get("/shift", h.Shift)
		r.Get("/summary", h.Summary)
	})
}

// LineStatus handles GET /reports/lines.
func (h *Handler) LineStatus(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.builder.LineStatusReport())
}

// windowKind resolves the ?window= query parameter, defaulting to the
// current shift.
func windowKind(r *http.Request) (shift.Kind, bool) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return shift.KindCurrent, true
	}
	kind := shift.Kind(raw)
	return kind, kind.Valid()
}

// Shift handles GET /reports/shift.
func (h *Handler) Shift(w http.ResponseWriter, r *http.Request) {
	kind, ok := windowKind(r)
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "window must be current or previous")
		return
	}

	rep, err := h.builder.ShiftReport(kind)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, rep)
}

// Summary handles GET /reports/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	kind, ok := windowKind(r)
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "window must be current or previous")
		return
	}

	rep, err := h.builder.Summary(kind)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, rep)
}
