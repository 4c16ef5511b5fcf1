package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/httputil"
	"github.com/ploop3/Natours/pkg/logger"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

// TokenCookie is the cookie carrying the identity token for browser clients.
const TokenCookie = "jwt"

const (
	msgNotLoggedIn = "you are not logged in, please log in to get access"
	msgBadToken    = "invalid or expired token, please log in again"
)

// Claims is what the gate needs from a verified token.
type Claims struct {
	UserID   string
	IssuedAt time.Time
}

// TokenVerifier verifies a raw token and returns its claims.
type TokenVerifier func(token string) (*Claims, error)

// Identity is the authenticated principal attached to a request.
type Identity interface {
	GetID() string
	GetRole() string
	// ChangedPasswordAfter reports whether the credentials were changed after
	// a token issued at t.
	ChangedPasswordAfter(t time.Time) bool
}

// IdentityLoader loads the current state of an identity. It must return an
// error matching apperrors.ErrNotFound when the identity no longer exists.
type IdentityLoader func(ctx context.Context, id string) (Identity, error)

// Gate authenticates requests from a bearer header or the token cookie.
type Gate struct {
	verify TokenVerifier
	load   IdentityLoader
	logger *slog.Logger
}

// NewGate creates a Gate.
func NewGate(verify TokenVerifier, load IdentityLoader, logger *slog.Logger) *Gate {
	return &Gate{verify: verify, load: load, logger: logger}
}

var (
	errNoCredential = apperrors.Unauthenticated(msgNotLoggedIn)
	errBadToken     = apperrors.Unauthenticated(msgBadToken)
)

// Protect rejects requests that do not carry a valid credential for an
// existing identity whose password has not changed since the token was issued.
func (g *Gate) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.authenticate(r)
		if err != nil {
			httputil.WriteError(w, r, err, g.logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// Optional attaches the identity when the request carries a valid credential
// and otherwise lets the request through anonymously.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func (g *Gate) authenticate(r *http.Request) (Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, errNoCredential
	}

	claims, err := g.verify(token)
	if err != nil {
		return nil, errBadToken
	}

	id, err := g.load(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errBadToken
		}
		return nil, err
	}

	if id.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, errBadToken
	}
	return id, nil
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireRole lets the request through only when the attached identity has
// one of the given roles. It must be mounted after Gate.Protect.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				httputil.WriteError(w, r, errNoCredential, nil)
				return
			}
			if _, ok := roleSet[id.GetRole()]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("you do not have permission to perform this action"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	ctx = logger.WithUserID(ctx, id.GetID())
	return logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", id.GetID())))
}

// IdentityFromContext returns the identity attached by the gate, or nil.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return nil
}

// UserIDFromContext returns the ID of the attached identity, or "".
func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.GetID()
	}
	return ""
}

// RoleFromContext returns the role of the attached identity, or "".
func RoleFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.GetRole()
	}
	return ""
}
