package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ploop3/Natours/internal/checkout"
	"github.com/ploop3/Natours/internal/service"
	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/httputil"
)

const maxWebhookBytes = 64 << 10

// BookingHandler serves checkout, the provider callback and bookings.
type BookingHandler struct {
	service *service.BookingService
	logger  *slog.Logger
}

// NewBookingHandler creates a BookingHandler.
func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: svc, logger: logger}
}

// CheckoutSession handles GET /api/v1/bookings/checkout-session/{tourId}.
func (h *BookingHandler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "tourId")
	sess, err := h.service.CheckoutSession(r.Context(), u, id, service.CheckoutURLs{
		Success: baseURL(r) + "/my-tours?alert=booking",
		Cancel:  baseURL(r) + "/tours/" + id,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, sess)
}

// Webhook handles POST /api/v1/bookings/checkout-webhook. The body must be
// read raw for the signature check.
func (h *BookingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperrors.InvalidInput("webhook error: body too large"), h.logger)
			return
		}
		writeError(w, r, err, h.logger)
		return
	}

	b, err := h.service.ConfirmCheckout(r.Context(), body, r.Header.Get(checkout.SignatureHeader))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	resp := map[string]any{"received": true}
	if b != nil {
		resp["booking_id"] = b.ID
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// MyTours handles GET /api/v1/bookings/my.
func (h *BookingHandler) MyTours(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	tours, err := h.service.MyTours(r.Context(), u)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteList(w, tours)
}

func (h *BookingHandler) list() http.HandlerFunc {
	return listHandler(h.service.List, h.logger)
}

func (h *BookingHandler) get() http.HandlerFunc {
	return getHandler(h.service.Get, nil, h.logger)
}

func (h *BookingHandler) create() http.HandlerFunc {
	return createHandler(h.service.Create, h.logger)
}

func (h *BookingHandler) update() http.HandlerFunc {
	return updateHandler(h.service.Update, nil, h.logger)
}

func (h *BookingHandler) delete() http.HandlerFunc {
	return deleteHandler(h.service.Delete, h.logger)
}
