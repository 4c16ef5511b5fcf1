package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ploop3/Natours/internal/service"
	"github.com/ploop3/Natours/pkg/httputil"
)

// ReviewHandler serves reviews, both at the top level and nested under a
// tour. Nested routes take the tour from the path.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// tourID is the enclosing tour of a nested route, or "".
func tourID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func reviewID(r *http.Request) string {
	return chi.URLParam(r, "reviewId")
}

// scopedReviewID returns the review of the route after checking that, on a
// nested route, it belongs to the enclosing tour. It writes the error itself.
func (h *ReviewHandler) scopedReviewID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := reviewID(r)
	if err := h.service.CheckTour(r.Context(), tourID(r), id); err != nil {
		writeError(w, r, err, h.logger)
		return "", false
	}
	return id, true
}

// List handles GET /reviews and GET /tours/{id}/reviews.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.List(r.Context(), buildQuery(r), tourID(r))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, recs)
}

// Get handles GET /reviews/{reviewId} and GET /tours/{id}/reviews/{reviewId}.
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scopedReviewID(w, r)
	if !ok {
		return
	}
	rev, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rev)
}

// Create handles POST /reviews and POST /tours/{id}/reviews.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in service.CreateReviewInput
	if !decode(w, r, &in) {
		return
	}
	if id := tourID(r); id != "" {
		in.TourID = id
	}
	rev, err := h.service.Create(r.Context(), u, &in)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, rev)
}

// Update handles PATCH on a review, flat or nested.
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in service.UpdateReviewInput
	if !decode(w, r, &in) {
		return
	}
	id, ok := h.scopedReviewID(w, r)
	if !ok {
		return
	}
	rev, err := h.service.Update(r.Context(), u, id, &in)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rev)
}

// Delete handles DELETE on a review, flat or nested.
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.scopedReviewID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), u, id); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
