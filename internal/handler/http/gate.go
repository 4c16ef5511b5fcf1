package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ploop3/Natours/internal/auth"
	"github.com/ploop3/Natours/internal/domain"
	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/middleware"
)

// IdentityLookup loads the active user a token was issued to.
type IdentityLookup func(ctx context.Context, id string) (*domain.User, error)

// NewGate wires the access gate to the token service and the user store.
func NewGate(tokens *auth.TokenService, lookup IdentityLookup, logger *slog.Logger) *middleware.Gate {
	verify := func(token string) (*middleware.Claims, error) {
		claims, err := tokens.Verify(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: claims.UserID, IssuedAt: claims.IssuedAt.Time}, nil
	}
	load := func(ctx context.Context, id string) (middleware.Identity, error) {
		u, err := lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return middleware.NewGate(verify, load, logger)
}

// currentUser returns the user attached by the gate, or nil.
func currentUser(r *http.Request) *domain.User {
	u, _ := middleware.IdentityFromContext(r.Context()).(*domain.User)
	return u
}

// requireUser returns the gate's user or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	u := currentUser(r)
	if u == nil {
		writeError(w, r, apperrors.Unauthenticated("you are not logged in, please log in to get access"), nil)
		return nil, false
	}
	return u, true
}
