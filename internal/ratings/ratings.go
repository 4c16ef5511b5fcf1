// Package ratings keeps a tour's ratings_quantity and ratings_average in step
// with its reviews.
package ratings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/lock"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
)

// Invalidator drops cached copies of a tour.
type Invalidator interface {
	Invalidate(ctx context.Context, tourID string) error
}

// Engine recomputes tour rating statistics after review mutations.
type Engine struct {
	tours   store.Collection[domain.Tour]
	reviews store.Collection[domain.Review]
	locker  lock.Locker
	cache   Invalidator
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithInvalidator makes the engine drop the cached tour after each
// recomputation.
func WithInvalidator(inv Invalidator) Option {
	return func(e *Engine) { e.cache = inv }
}

// New creates an Engine.
func New(tours store.Collection[domain.Tour], reviews store.Collection[domain.Review], locker lock.Locker, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{tours: tours, reviews: reviews, locker: locker, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats are the derived rating figures of one tour.
type Stats struct {
	Quantity int
	Average  float64
}

// Recompute aggregates the reviews of tourID and writes the result onto the
// tour. Recomputations of the same tour never interleave. A tour that no
// longer exists is skipped.
func (e *Engine) Recompute(ctx context.Context, tourID string) (err error) {
	start := time.Now()
	defer func() { recomputeDuration.Observe(time.Since(start).Seconds()) }()

	unlock, err := e.locker.Lock(ctx, "tour-ratings:"+tourID)
	if err != nil {
		return fmt.Errorf("lock tour %s: %w", tourID, err)
	}
	defer unlock()

	stats, err := e.stats(ctx, tourID)
	if err != nil {
		return err
	}

	_, err = e.tours.UpdateOne(ctx, query.ByID(tourID), store.Patch{
		"ratings_quantity": stats.Quantity,
		"ratings_average":  stats.Average,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.DebugContext(ctx, "tour gone, skipping ratings update", slog.String("tour_id", tourID))
			return nil
		}
		return fmt.Errorf("update tour %s ratings: %w", tourID, err)
	}

	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, tourID); err != nil {
			e.logger.WarnContext(ctx, "failed to invalidate cached tour",
				slog.String("tour_id", tourID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.logger.DebugContext(ctx, "tour ratings recomputed",
		slog.String("tour_id", tourID),
		slog.Int("ratings_quantity", stats.Quantity),
		slog.Float64("ratings_average", stats.Average),
	)
	return nil
}

func (e *Engine) stats(ctx context.Context, tourID string) (Stats, error) {
	groups, err := e.reviews.Aggregate(ctx, query.Group{
		Match: query.Filter{query.Eq("tour_id", tourID)},
		By:    "tour_id",
		Avg:   []string{"rating"},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate reviews of tour %s: %w", tourID, err)
	}
	if len(groups) == 0 || groups[0].Count == 0 {
		return Stats{Quantity: 0, Average: domain.DefaultRatingsAverage}, nil
	}
	return Stats{
		Quantity: int(groups[0].Count),
		Average:  domain.RoundRating(groups[0].Avg["rating"]),
	}, nil
}

// AfterCreate recomputes the tour of a newly created review.
func (e *Engine) AfterCreate(ctx context.Context, r *domain.Review) {
	e.recomputeLogged(ctx, r.TourID)
}

// Mutate runs apply against the review matched by f and then recomputes the
// tour that review belonged to. The tour reference is captured before apply
// runs because a deleted review can no longer be read afterwards. When no
// review matches, apply still runs and nothing is recomputed.
func (e *Engine) Mutate(ctx context.Context, f query.Filter, apply func(ctx context.Context) error) error {
	tourID, err := e.loadAffectedParentRef(ctx, f)
	if err != nil {
		return err
	}

	if err := apply(ctx); err != nil {
		return err
	}

	if tourID != "" {
		e.recomputeLogged(ctx, tourID)
	}
	return nil
}

func (e *Engine) loadAffectedParentRef(ctx context.Context, f query.Filter) (string, error) {
	r, err := e.reviews.FindOne(ctx, f)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load review: %w", err)
	}
	return r.TourID, nil
}

// recomputeLogged never fails the triggering mutation, which has already
// been applied.
func (e *Engine) recomputeLogged(ctx context.Context, tourID string) {
	if err := e.Recompute(ctx, tourID); err != nil {
		recomputeFailures.Inc()
		e.logger.ErrorContext(ctx, "failed to recompute tour ratings",
			slog.String("tour_id", tourID),
			slog.String("error", err.Error()),
		)
	}
}
