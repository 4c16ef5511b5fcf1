package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/pkg/httputil"
	"github.com/ploop3/Natours/pkg/validator"
)

const maxBodyBytes = 10 << 10

// ContentTypeJSON rejects bodies that are not declared as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// decode reads and validates the JSON body into dst. It writes a 400 and
// returns false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "BODY_TOO_LARGE", Message: "request body too large"},
			})
			return false
		}
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	httputil.WriteError(w, r, err, logger)
}

// buildQuery runs the query pipeline over the request's query string.
func buildQuery(r *http.Request, aliases ...query.Alias) *query.Query {
	values := r.URL.Query()
	for _, a := range aliases {
		values = a.Apply(values)
	}
	return query.Build(values)
}

func idParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}
