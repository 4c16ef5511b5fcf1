package http

import (
	"log/slog"
	"net/http"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/service"
	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/httputil"
)

// UserHandler serves the current user's profile and the admin user routes.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

func publicUser(u *domain.User) any { return u.Public() }

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	fresh, err := h.service.Get(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, fresh.Public())
}

// UpdateMe handles PATCH /api/v1/users/updateMe.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in service.UpdateMeInput
	if !decode(w, r, &in) {
		return
	}
	updated, err := h.service.UpdateMe(r.Context(), u, &in)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, updated.Public())
}

// DeleteMe handles DELETE /api/v1/users/deleteMe.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMe(r.Context(), u); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Create handles POST /api/v1/users, which is not how accounts are made.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperrors.InvalidInput("this route is not defined, please use /signup instead"), h.logger)
}

func (h *UserHandler) list() http.HandlerFunc {
	return listHandler(h.service.List, h.logger)
}

func (h *UserHandler) get() http.HandlerFunc {
	return getHandler(h.service.Get, publicUser, h.logger)
}

func (h *UserHandler) update() http.HandlerFunc {
	return updateHandler(h.service.Update, publicUser, h.logger)
}

func (h *UserHandler) delete() http.HandlerFunc {
	return deleteHandler(h.service.Delete, h.logger)
}
