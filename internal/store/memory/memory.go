// Package memory is an in-process store engine with the same query
// semantics as the postgres engine. It backs tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
)

// Option configures a Collection.
type Option func(*options)

type options struct {
	unique [][]string
}

// WithUnique declares a unique index over fields.
func WithUnique(fields ...string) Option {
	return func(o *options) { o.unique = append(o.unique, fields) }
}

// Collection is an in-memory store.Collection.
type Collection[T store.Document] struct {
	mu     sync.RWMutex
	docs   map[string]store.Record
	order  []string
	unique [][]string
}

// New creates an empty collection.
func New[T store.Document](opts ...Option) *Collection[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{docs: make(map[string]store.Record), unique: o.unique}
}

// Find runs q over the collection.
func (c *Collection[T]) Find(_ context.Context, q *query.Query) ([]store.Record, error) {
	c.mu.RLock()
	matched := c.match(q.Filter)
	c.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b store.Record) int {
		switch {
		case less(a, b, q.Sort):
			return -1
		case less(b, a, q.Sort):
			return 1
		}
		return 0
	})

	skip := max(q.Skip, 0)
	if skip >= len(matched) {
		return []store.Record{}, nil
	}
	matched = matched[skip:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	out := make([]store.Record, len(matched))
	for i, rec := range matched {
		out[i] = project(rec, q.Projection)
	}
	return out, nil
}

// FindOne returns the first matching document in insertion order.
func (c *Collection[T]) FindOne(_ context.Context, f query.Filter) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.first(f)
	if !ok {
		return nil, store.ErrNotFound
	}
	return decode[T](c.docs[id])
}

// Insert stores doc.
func (c *Collection[T]) Insert(_ context.Context, doc *T) error {
	rec, err := store.ToRecord(doc)
	if err != nil {
		return err
	}
	id := (*doc).GetID()
	if id == "" {
		return errors.New("insert: document has no id")
	}
	rec[query.VersionField] = 0.0

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return fmt.Errorf("insert %s: %w", id, store.ErrConflict)
	}
	if err := c.checkUnique(rec, ""); err != nil {
		return err
	}
	c.docs[id] = rec
	c.order = append(c.order, id)
	return nil
}

// UpdateOne merges p into the first matching document.
func (c *Collection[T]) UpdateOne(_ context.Context, f query.Filter, p store.Patch) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.first(f)
	if !ok {
		return nil, store.ErrNotFound
	}

	patch, err := store.ToRecord(p)
	if err != nil {
		return nil, err
	}

	updated := clone(c.docs[id])
	for k, v := range patch {
		if k == "id" {
			continue
		}
		if v == nil {
			delete(updated, k)
			continue
		}
		updated[k] = v
	}
	version, _ := updated[query.VersionField].(float64)
	updated[query.VersionField] = version + 1

	if err := c.checkUnique(updated, id); err != nil {
		return nil, err
	}
	c.docs[id] = updated
	return decode[T](updated)
}

// DeleteOne removes the first matching document.
func (c *Collection[T]) DeleteOne(_ context.Context, f query.Filter) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.first(f)
	if !ok {
		return 0, nil
	}
	c.remove(id)
	return 1, nil
}

// DeleteMany removes every matching document.
func (c *Collection[T]) DeleteMany(_ context.Context, f query.Filter) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for _, rec := range c.match(f) {
		c.remove(rec["id"].(string))
		n++
	}
	return n, nil
}

// Count returns the number of matching documents.
func (c *Collection[T]) Count(_ context.Context, f query.Filter) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.match(f))), nil
}

// Aggregate groups matching documents by g.By.
func (c *Collection[T]) Aggregate(_ context.Context, g query.Group) ([]query.GroupResult, error) {
	c.mu.RLock()
	matched := c.match(g.Match)
	c.mu.RUnlock()

	type acc struct {
		key   any
		count int64
		sum   map[string]float64
		n     map[string]int64
		min   map[string]float64
		max   map[string]float64
	}

	var groups []*acc
	index := make(map[string]*acc)
	fields := unionFields(g)

	for _, rec := range matched {
		var key any
		if g.By != "" {
			key = rec[g.By]
		}
		k := fmt.Sprint(key)
		a, ok := index[k]
		if !ok {
			a = &acc{key: key, sum: map[string]float64{}, n: map[string]int64{}, min: map[string]float64{}, max: map[string]float64{}}
			index[k] = a
			groups = append(groups, a)
		}
		a.count++
		for _, f := range fields {
			v, ok := rec[f].(float64)
			if !ok {
				continue
			}
			if a.n[f] == 0 {
				a.min[f], a.max[f] = v, v
			}
			a.sum[f] += v
			a.n[f]++
			a.min[f] = math.Min(a.min[f], v)
			a.max[f] = math.Max(a.max[f], v)
		}
	}

	out := make([]query.GroupResult, 0, len(groups))
	for _, a := range groups {
		r := query.GroupResult{Key: a.key, Count: a.count}
		r.Avg = pick(g.Avg, a.n, func(f string) float64 { return a.sum[f] / float64(a.n[f]) })
		r.Sum = pick(g.Sum, a.n, func(f string) float64 { return a.sum[f] })
		r.Min = pick(g.Min, a.n, func(f string) float64 { return a.min[f] })
		r.Max = pick(g.Max, a.n, func(f string) float64 { return a.max[f] })
		out = append(out, r)
	}
	return out, nil
}

func pick(fields []string, n map[string]int64, value func(string) float64) map[string]float64 {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]float64, len(fields))
	for _, f := range fields {
		if n[f] > 0 {
			out[f] = value(f)
		}
	}
	return out
}

func unionFields(g query.Group) []string {
	var all []string
	for _, fs := range [][]string{g.Avg, g.Sum, g.Min, g.Max} {
		for _, f := range fs {
			if !slices.Contains(all, f) {
				all = append(all, f)
			}
		}
	}
	return all
}

// match returns clones of the matching records in insertion order. The
// caller holds the lock.
func (c *Collection[T]) match(f query.Filter) []store.Record {
	var out []store.Record
	for _, id := range c.order {
		if rec := c.docs[id]; matches(rec, f) {
			out = append(out, clone(rec))
		}
	}
	return out
}

func (c *Collection[T]) first(f query.Filter) (string, bool) {
	for _, id := range c.order {
		if matches(c.docs[id], f) {
			return id, true
		}
	}
	return "", false
}

func (c *Collection[T]) remove(id string) {
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
}

func (c *Collection[T]) checkUnique(rec store.Record, selfID string) error {
	for _, fields := range c.unique {
		key, ok := uniqueKey(rec, fields)
		if !ok {
			continue
		}
		for id, other := range c.docs {
			if id == selfID {
				continue
			}
			if otherKey, ok := uniqueKey(other, fields); ok && otherKey == key {
				return fmt.Errorf("unique index (%s): %w", strings.Join(fields, ","), store.ErrConflict)
			}
		}
	}
	return nil
}

func uniqueKey(rec store.Record, fields []string) (string, bool) {
	parts := make([]any, len(fields))
	for i, f := range fields {
		v, ok := rec[f]
		if !ok {
			return "", false
		}
		parts[i] = v
	}
	raw, err := json.Marshal(parts)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func clone(rec store.Record) store.Record {
	raw, err := json.Marshal(rec)
	if err != nil {
		return rec
	}
	var out store.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return rec
	}
	return out
}

func decode[T any](rec store.Record) (*T, error) {
	docs, err := store.Decode[T]([]store.Record{rec})
	if err != nil {
		return nil, err
	}
	return &docs[0], nil
}
