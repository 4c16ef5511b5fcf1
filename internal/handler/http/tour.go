package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/service"
	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/httputil"
)

// TourHandler serves tours and the tour reports.
type TourHandler struct {
	service *service.TourService
	logger  *slog.Logger
}

// NewTourHandler creates a TourHandler.
func NewTourHandler(svc *service.TourService, logger *slog.Logger) *TourHandler {
	return &TourHandler{service: svc, logger: logger}
}

// Stats handles GET /api/v1/tours/tour-stats.
func (h *TourHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, stats)
}

// MonthlyPlan handles GET /api/v1/tours/monthly-plan/{year}.
func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, r, apperrors.InvalidInput("year must be a number"), h.logger)
		return
	}
	plan, err := h.service.MonthlyPlan(r.Context(), year)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, plan)
}

// ToursWithin handles
// GET /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit}.
func (h *TourHandler) ToursWithin(w http.ResponseWriter, r *http.Request) {
	center, ok := h.center(w, r)
	if !ok {
		return
	}
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil {
		writeError(w, r, apperrors.InvalidInput("distance must be a number"), h.logger)
		return
	}
	tours, err := h.service.ToursWithin(r.Context(), distance, center, chi.URLParam(r, "unit"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, tours)
}

// Distances handles GET /api/v1/tours/distances/{latlng}/unit/{unit}.
func (h *TourHandler) Distances(w http.ResponseWriter, r *http.Request) {
	center, ok := h.center(w, r)
	if !ok {
		return
	}
	distances, err := h.service.Distances(r.Context(), center, chi.URLParam(r, "unit"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, distances)
}

func (h *TourHandler) center(w http.ResponseWriter, r *http.Request) (domain.LatLng, bool) {
	c, err := domain.ParseLatLng(chi.URLParam(r, "latlng"))
	if err != nil {
		writeError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return domain.LatLng{}, false
	}
	return c, true
}

// Search handles GET /api/v1/tours/search?q=&limit=.
func (h *TourHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, apperrors.InvalidQuery("limit must be a positive number"), h.logger)
			return
		}
		limit = n
	}
	tours, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, tours)
}

func (h *TourHandler) list(aliases ...query.Alias) http.HandlerFunc {
	return listHandler(h.service.List, h.logger, aliases...)
}

func (h *TourHandler) get() http.HandlerFunc {
	return getHandler(h.service.Get, nil, h.logger)
}

func (h *TourHandler) create() http.HandlerFunc {
	return createHandler(h.service.Create, h.logger)
}

func (h *TourHandler) update() http.HandlerFunc {
	return updateHandler(h.service.Update, nil, h.logger)
}

func (h *TourHandler) delete() http.HandlerFunc {
	return deleteHandler(h.service.Delete, h.logger)
}
