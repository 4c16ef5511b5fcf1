// Package search keeps a full-text index of the public tours.
//
// The index only answers "which tours match this text, best first". Tours
// themselves are always loaded from the store, so an index that lags behind
// never exposes a deleted or secret tour.
package search

import (
	"strings"

	"github.com/ploop3/Natours/internal/domain"
)

// Default and maximum number of hits a search returns.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Document is the searchable part of a tour.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Difficulty  string `json:"difficulty"`
}

// DocumentOf builds the index document of t.
func DocumentOf(t *domain.Tour) *Document {
	return &Document{
		ID:          t.ID,
		Name:        t.Name,
		Summary:     t.Summary,
		Description: t.Description,
		Difficulty:  t.Difficulty,
	}
}

// ClampLimit applies DefaultLimit and MaxLimit to a requested hit count.
func ClampLimit(n int) int {
	switch {
	case n < 1:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

func terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r > 127)
	})
}
