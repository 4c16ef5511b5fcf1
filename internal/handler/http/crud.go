package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	"github.com/ploop3/Natours/pkg/httputil"
)

// The handlers below cover the plain list, get, create, update and delete
// operations shared by every resource.

func listHandler(list func(context.Context, *query.Query) ([]store.Record, error), logger *slog.Logger, aliases ...query.Alias) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := list(r.Context(), buildQuery(r, aliases...))
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		httputil.WriteList(w, recs)
	}
}

func getHandler[T any](get func(context.Context, string) (*T, error), view func(*T) any, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := get(r.Context(), idParam(r))
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, present(doc, view))
	}
}

func createHandler[In, T any](create func(context.Context, *In) (*T, error), logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := new(In)
		if !decode(w, r, in) {
			return
		}
		doc, err := create(r.Context(), in)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		httputil.WriteData(w, http.StatusCreated, doc)
	}
}

func updateHandler[In, T any](update func(context.Context, string, *In) (*T, error), view func(*T) any, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := new(In)
		if !decode(w, r, in) {
			return
		}
		doc, err := update(r.Context(), idParam(r), in)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, present(doc, view))
	}
}

func deleteHandler(del func(context.Context, string) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := del(r.Context(), idParam(r)); err != nil {
			writeError(w, r, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func present[T any](doc *T, view func(*T) any) any {
	if view == nil {
		return doc
	}
	return view(doc)
}
