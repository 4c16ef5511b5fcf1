package search

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Weights of a term hit in each document field.
const (
	nameWeight        = 3
	summaryWeight     = 2
	descriptionWeight = 1
)

// Memory is an in-process index. It scores documents by how many query terms
// they contain, weighting the name above the summary above the description.
// Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// Index adds or replaces a document.
func (m *Memory) Index(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[doc.ID] = *doc
	return nil
}

// BulkIndex adds or replaces every document in docs.
func (m *Memory) BulkIndex(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return nil
}

// Delete removes a document. Unknown ids are ignored.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, id)
	return nil
}

// Search returns the ids of the documents matching text, best first. Ties
// are broken by name.
func (m *Memory) Search(_ context.Context, text string, limit int) ([]string, error) {
	want := terms(text)
	if len(want) == 0 {
		return []string{}, nil
	}

	type hit struct {
		id, name string
		score    int
	}

	m.mu.RLock()
	hits := make([]hit, 0)
	for _, d := range m.docs {
		if s := score(&d, want); s > 0 {
			hits = append(hits, hit{id: d.ID, name: d.Name, score: s})
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(hits, func(a, b hit) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return strings.Compare(a.name, b.name)
	})

	limit = ClampLimit(limit)
	ids := make([]string, 0, min(limit, len(hits)))
	for _, h := range hits {
		if len(ids) == limit {
			break
		}
		ids = append(ids, h.id)
	}
	return ids, nil
}

func score(d *Document, want []string) int {
	fields := []struct {
		terms  []string
		weight int
	}{
		{terms(d.Name), nameWeight},
		{terms(d.Summary), summaryWeight},
		{terms(d.Description), descriptionWeight},
	}

	total := 0
	for _, w := range want {
		for _, f := range fields {
			if slices.Contains(f.terms, w) {
				total += f.weight
			}
		}
	}
	return total
}
