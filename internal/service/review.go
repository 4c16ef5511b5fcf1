package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/event"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/ratings"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// ReviewService manages reviews and keeps tour ratings in step with them.
type ReviewService struct {
	*Resource[domain.Review]
	reviews store.Collection[domain.Review]
	tours   store.Collection[domain.Tour]
	engine  *ratings.Engine
	events  *event.Producer
	logger  *slog.Logger
	now     func() time.Time
}

// NewReviewService creates a ReviewService.
func NewReviewService(
	reviews store.Collection[domain.Review],
	tours store.Collection[domain.Tour],
	engine *ratings.Engine,
	events *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		Resource: NewResource(reviews, "review"),
		reviews:  reviews,
		tours:    tours,
		engine:   engine,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// List runs q over all reviews, or over the reviews of tourID when it is set.
func (s *ReviewService) List(ctx context.Context, q *query.Query, tourID string) ([]store.Record, error) {
	if tourID != "" {
		q = q.WithFilter(query.Eq("tour_id", tourID))
	}
	return s.Resource.List(ctx, q)
}

// CheckTour returns NotFound unless review id belongs to tourID. An empty
// tourID matches every tour.
func (s *ReviewService) CheckTour(ctx context.Context, tourID, id string) error {
	if tourID == "" {
		return nil
	}
	_, err := s.reviews.FindOne(ctx, query.ByID(id).And(query.Eq("tour_id", tourID)))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound("review", id)
	case err != nil:
		return fmt.Errorf("find review: %w", err)
	}
	return nil
}

// CreateReviewInput holds a new review. TourID may come from the route
// instead of the body.
type CreateReviewInput struct {
	Review string   `json:"review" validate:"required"`
	Rating *float64 `json:"rating" validate:"omitempty,gte=1,lte=5"`
	TourID string   `json:"tour_id"`
}

// Create stores the review of author and recomputes the tour's ratings. A
// user reviews a tour once.
func (s *ReviewService) Create(ctx context.Context, author *domain.User, in *CreateReviewInput) (*domain.Review, error) {
	if in.TourID == "" {
		return nil, apperrors.InvalidInput("review must belong to a tour")
	}
	if _, err := s.tours.FindOne(ctx, query.ByID(in.TourID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("tour", in.TourID)
		}
		return nil, fmt.Errorf("check tour: %w", err)
	}

	rating := float64(domain.DefaultRating)
	if in.Rating != nil {
		rating = *in.Rating
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, apperrors.InvalidInput("rating must be between 1 and 5")
	}

	r := &domain.Review{
		ID:        uuid.NewString(),
		Review:    strings.TrimSpace(in.Review),
		Rating:    rating,
		TourID:    in.TourID,
		UserID:    author.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.reviews.Insert(ctx, r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.Conflict("you have already reviewed this tour")
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.engine.AfterCreate(ctx, r)
	s.events.ReviewChanged(ctx, r, event.ActionCreated)

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", r.ID),
		slog.String("tour_id", r.TourID),
	)
	return r, nil
}

// UpdateReviewInput holds a partial review update.
type UpdateReviewInput struct {
	Review *string  `json:"review,omitempty" validate:"omitempty,min=1"`
	Rating *float64 `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
}

// Update changes a review owned by actor, or any review when actor is an
// admin.
func (s *ReviewService) Update(ctx context.Context, actor *domain.User, id string, in *UpdateReviewInput) (*domain.Review, error) {
	if err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	p, err := store.PatchOf(in)
	if err != nil {
		return nil, err
	}

	var updated *domain.Review
	err = s.engine.Mutate(ctx, query.ByID(id), func(ctx context.Context) error {
		var err error
		updated, err = s.Resource.Update(ctx, id, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.ReviewChanged(ctx, updated, event.ActionUpdated)
	return updated, nil
}

// Delete removes a review owned by actor, or any review when actor is an
// admin.
func (s *ReviewService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}

	var deleted *domain.Review
	err := s.engine.Mutate(ctx, query.ByID(id), func(ctx context.Context) error {
		var err error
		if deleted, err = s.Resource.Get(ctx, id); err != nil {
			return err
		}
		return s.Resource.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.events.ReviewChanged(ctx, deleted, event.ActionDeleted)
	s.logger.InfoContext(ctx, "review deleted", slog.String("review_id", id))
	return nil
}

func (s *ReviewService) authorize(ctx context.Context, actor *domain.User, id string) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	r, err := s.Resource.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.UserID != actor.ID {
		return apperrors.Forbidden("you can only change your own reviews")
	}
	return nil
}
