// Package store defines the generic document collection used by every
// resource. Engines live in the postgres and memory subpackages.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ploop3/Natours/internal/query"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// Errors returned by every engine. They wrap the shared sentinels so the
// HTTP layer maps them to 404 and 409.
var (
	ErrNotFound = fmt.Errorf("document %w", apperrors.ErrNotFound)
	ErrConflict = fmt.Errorf("duplicate key: %w", apperrors.ErrConflict)
)

// Document is a stored, identifiable record.
type Document interface {
	GetID() string
}

// Record is a projected document as returned by Find.
type Record map[string]any

// Patch is a partial update keyed by JSON field name. A nil value removes the
// field.
type Patch map[string]any

// Collection is a document collection of T.
type Collection[T Document] interface {
	// Find runs q and returns the projected documents.
	Find(ctx context.Context, q *query.Query) ([]Record, error)

	// FindOne returns the first document matching f, or ErrNotFound.
	FindOne(ctx context.Context, f query.Filter) (*T, error)

	// Insert stores a new document. It returns ErrConflict when a unique
	// index is violated.
	Insert(ctx context.Context, doc *T) error

	// UpdateOne applies p to the first document matching f and returns the
	// updated document, or ErrNotFound.
	UpdateOne(ctx context.Context, f query.Filter, p Patch) (*T, error)

	// DeleteOne removes the first document matching f and reports how many
	// documents were removed.
	DeleteOne(ctx context.Context, f query.Filter) (int64, error)

	// DeleteMany removes every document matching f.
	DeleteMany(ctx context.Context, f query.Filter) (int64, error)

	// Count returns the number of documents matching f.
	Count(ctx context.Context, f query.Filter) (int64, error)

	// Aggregate groups documents and computes per-group statistics.
	Aggregate(ctx context.Context, g query.Group) ([]query.GroupResult, error)
}

// ToRecord converts a document into its record form.
func ToRecord(doc any) (Record, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return rec, nil
}

// Decode converts records into typed documents. Fields missing from a
// projected record are left at their zero value.
func Decode[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// PatchOf builds a patch from a struct of optional fields. Nil pointers and
// omitted fields are skipped.
func PatchOf(v any) (Patch, error) {
	rec, err := ToRecord(v)
	if err != nil {
		return nil, err
	}
	return Patch(rec), nil
}
