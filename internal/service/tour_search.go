package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/search"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// TourIndex is a full-text index over the visible tours.
type TourIndex interface {
	Index(ctx context.Context, doc *search.Document) error
	BulkIndex(ctx context.Context, docs []search.Document) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, text string, limit int) ([]string, error)
}

// Search returns the visible tours matching text, best match first.
func (s *TourService) Search(ctx context.Context, text string, limit int) ([]domain.Tour, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.InvalidInput("search text is required")
	}

	ids, err := s.index.Search(ctx, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search tours: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Tour{}, nil
	}

	in := make([]any, len(ids))
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		in[i] = id
		rank[id] = i
	}
	recs, err := s.tours.Find(ctx, query.All(query.Filter{query.In("id", in...), visibleTours}))
	if err != nil {
		return nil, fmt.Errorf("load matched tours: %w", err)
	}
	tours, err := store.Decode[domain.Tour](recs)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.Tour, len(ids))
	found := make([]bool, len(ids))
	for _, t := range tours {
		i := rank[t.ID]
		ranked[i], found[i] = t, true
	}
	out := make([]domain.Tour, 0, len(tours))
	for i, t := range ranked {
		if found[i] {
			out = append(out, t)
		}
	}
	return out, nil
}

// Reindex loads every visible tour into the search index and returns how
// many were indexed.
func (s *TourService) Reindex(ctx context.Context) (int, error) {
	recs, err := s.tours.Find(ctx, query.All(query.Filter{visibleTours}))
	if err != nil {
		return 0, fmt.Errorf("load tours to index: %w", err)
	}
	tours, err := store.Decode[domain.Tour](recs)
	if err != nil {
		return 0, err
	}

	docs := make([]search.Document, len(tours))
	for i := range tours {
		docs[i] = *search.DocumentOf(&tours[i])
	}
	if err := s.index.BulkIndex(ctx, docs); err != nil {
		return 0, fmt.Errorf("index tours: %w", err)
	}
	return len(docs), nil
}

// syncIndex brings the index entry of t up to date. Secret tours are kept
// out of the index. Failures are logged; the store stays authoritative.
func (s *TourService) syncIndex(ctx context.Context, t *domain.Tour) {
	if t.SecretTour {
		s.unindex(ctx, t.ID)
		return
	}
	if err := s.index.Index(ctx, search.DocumentOf(t)); err != nil {
		s.logger.WarnContext(ctx, "tour indexing failed",
			slog.String("tour_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TourService) unindex(ctx context.Context, id string) {
	if err := s.index.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "tour unindexing failed",
			slog.String("tour_id", id),
			slog.String("error", err.Error()),
		)
	}
}
