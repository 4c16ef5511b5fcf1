// Package service holds the business logic of every resource.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// Resource is the generic read, update and delete logic shared by every
// collection-backed resource. Scope conditions are ANDed onto every lookup,
// so documents outside the scope behave as missing.
type Resource[T store.Document] struct {
	coll  store.Collection[T]
	name  string
	scope query.Filter
}

// NewResource creates a Resource named name over coll.
func NewResource[T store.Document](coll store.Collection[T], name string, scope ...query.Condition) *Resource[T] {
	return &Resource[T]{coll: coll, name: name, scope: scope}
}

// Name is the singular resource name used in messages.
func (r *Resource[T]) Name() string { return r.name }

// List runs q within the scope.
func (r *Resource[T]) List(ctx context.Context, q *query.Query) ([]store.Record, error) {
	recs, err := r.coll.Find(ctx, q.WithFilter(r.scope...))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.name, err)
	}
	return recs, nil
}

// Get returns the document with id.
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := r.coll.FindOne(ctx, r.byID(id))
	if err != nil {
		return nil, r.mapErr(err, id)
	}
	return doc, nil
}

// Update applies p to the document with id.
func (r *Resource[T]) Update(ctx context.Context, id string, p store.Patch) (*T, error) {
	if len(p) == 0 {
		return r.Get(ctx, id)
	}
	doc, err := r.coll.UpdateOne(ctx, r.byID(id), p)
	if err != nil {
		return nil, r.mapErr(err, id)
	}
	return doc, nil
}

// Delete removes the document with id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	n, err := r.coll.DeleteOne(ctx, r.byID(id))
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.name, err)
	}
	if n == 0 {
		return apperrors.NotFound(r.name, id)
	}
	return nil
}

func (r *Resource[T]) byID(id string) query.Filter {
	return query.ByID(id).And(r.scope...)
}

func (r *Resource[T]) mapErr(err error, id string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound(r.name, id)
	case errors.Is(err, store.ErrConflict):
		return apperrors.Conflict(fmt.Sprintf("a %s with these values already exists", r.name))
	}
	return fmt.Errorf("%s %s: %w", r.name, id, err)
}
