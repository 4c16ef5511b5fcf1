package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ploop3/Natours/internal/cache"
	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/search"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/slug"
)

// TourCache is a read-through cache of single tours.
type TourCache interface {
	Get(ctx context.Context, id string) (*domain.Tour, error)
	Set(ctx context.Context, t *domain.Tour) error
	Invalidate(ctx context.Context, id string) error
}

// visibleTours hides secret tours from every read.
var visibleTours = query.Ne("secret_tour", true)

// TourService implements tour reads, writes and reports.
type TourService struct {
	*Resource[domain.Tour]
	tours   store.Collection[domain.Tour]
	reviews store.Collection[domain.Review]
	users   store.Collection[domain.User]
	cache   TourCache
	index   TourIndex
	logger  *slog.Logger
	now     func() time.Time
}

// TourOption configures a TourService.
type TourOption func(*TourService)

// WithSearchIndex replaces the default in-process search index.
func WithSearchIndex(idx TourIndex) TourOption {
	return func(s *TourService) { s.index = idx }
}

// NewTourService creates a TourService. cache may be nil.
func NewTourService(
	tours store.Collection[domain.Tour],
	reviews store.Collection[domain.Review],
	users store.Collection[domain.User],
	cache TourCache,
	logger *slog.Logger,
	opts ...TourOption,
) *TourService {
	s := &TourService{
		Resource: NewResource(tours, "tour"),
		tours:    tours,
		reviews:  reviews,
		users:    users,
		cache:    cache,
		index:    search.NewMemory(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTourInput holds the fields of a new tour.
type CreateTourInput struct {
	Name          string            `json:"name" validate:"required,min=10,max=40"`
	Duration      int               `json:"duration" validate:"required,gt=0"`
	MaxGroupSize  int               `json:"max_group_size" validate:"required,gt=0"`
	Difficulty    string            `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	Price         float64           `json:"price" validate:"required,gt=0"`
	PriceDiscount float64           `json:"price_discount" validate:"omitempty,gte=0,ltfield=Price"`
	Summary       string            `json:"summary" validate:"required"`
	Description   string            `json:"description"`
	ImageCover    string            `json:"image_cover" validate:"required"`
	Images        []string          `json:"images"`
	StartDates    []time.Time       `json:"start_dates"`
	SecretTour    bool              `json:"secret_tour"`
	StartLocation *domain.Location  `json:"start_location"`
	Locations     []domain.Location `json:"locations" validate:"omitempty,dive"`
	Guides        []string          `json:"guides" validate:"omitempty,dive,uuid"`
}

// UpdateTourInput holds a partial tour update. Nil fields are left as is.
type UpdateTourInput struct {
	Name          *string           `json:"name,omitempty" validate:"omitempty,min=10,max=40"`
	Duration      *int              `json:"duration,omitempty" validate:"omitempty,gt=0"`
	MaxGroupSize  *int              `json:"max_group_size,omitempty" validate:"omitempty,gt=0"`
	Difficulty    *string           `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium difficult"`
	Price         *float64          `json:"price,omitempty" validate:"omitempty,gt=0"`
	PriceDiscount *float64          `json:"price_discount,omitempty" validate:"omitempty,gte=0"`
	Summary       *string           `json:"summary,omitempty"`
	Description   *string           `json:"description,omitempty"`
	ImageCover    *string           `json:"image_cover,omitempty"`
	Images        []string          `json:"images,omitempty"`
	StartDates    []time.Time       `json:"start_dates,omitempty"`
	SecretTour    *bool             `json:"secret_tour,omitempty"`
	StartLocation *domain.Location  `json:"start_location,omitempty"`
	Locations     []domain.Location `json:"locations,omitempty" validate:"omitempty,dive"`
	Guides        []string          `json:"guides,omitempty" validate:"omitempty,dive,uuid"`
}

// TourDetail is a tour with its guides and reviews resolved.
type TourDetail struct {
	domain.Tour
	DurationWeeks float64             `json:"duration_weeks"`
	Guides        []domain.PublicUser `json:"guides"`
	Reviews       []domain.Review     `json:"reviews"`
}

// List runs q over the tours that are not secret.
func (s *TourService) List(ctx context.Context, q *query.Query) ([]store.Record, error) {
	return s.Resource.List(ctx, q.WithFilter(visibleTours))
}

// Get returns a visible tour with its guides and reviews.
func (s *TourService) Get(ctx context.Context, id string) (*TourDetail, error) {
	tour, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &TourDetail{Tour: *tour, DurationWeeks: tour.DurationWeeks(), Guides: []domain.PublicUser{}}

	recs, err := s.reviews.Find(ctx, query.All(query.Filter{query.Eq("tour_id", id)}))
	if err != nil {
		return nil, fmt.Errorf("load reviews of tour %s: %w", id, err)
	}
	if detail.Reviews, err = store.Decode[domain.Review](recs); err != nil {
		return nil, err
	}

	if len(tour.Guides) > 0 {
		ids := make([]any, len(tour.Guides))
		for i, g := range tour.Guides {
			ids[i] = g
		}
		recs, err := s.users.Find(ctx, query.All(query.Filter{query.In("id", ids...), activeUsers}))
		if err != nil {
			return nil, fmt.Errorf("load guides of tour %s: %w", id, err)
		}
		guides, err := store.Decode[domain.User](recs)
		if err != nil {
			return nil, err
		}
		for _, g := range guides {
			detail.Guides = append(detail.Guides, g.Public())
		}
	}
	return detail, nil
}

func (s *TourService) load(ctx context.Context, id string) (*domain.Tour, error) {
	if s.cache != nil {
		t, err := s.cache.Get(ctx, id)
		if err == nil {
			if t.SecretTour {
				return nil, apperrors.NotFound("tour", id)
			}
			return t, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.WarnContext(ctx, "tour cache read failed", slog.String("error", err.Error()))
		}
	}

	t, err := s.tours.FindOne(ctx, query.ByID(id).And(visibleTours))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("tour", id)
		}
		return nil, fmt.Errorf("get tour %s: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, t); err != nil {
			s.logger.WarnContext(ctx, "tour cache write failed", slog.String("error", err.Error()))
		}
	}
	return t, nil
}

// Create stores a new tour. Ratings start at their defaults.
func (s *TourService) Create(ctx context.Context, in *CreateTourInput) (*domain.Tour, error) {
	name := strings.TrimSpace(in.Name)
	if in.PriceDiscount >= in.Price && in.PriceDiscount != 0 {
		return nil, apperrors.InvalidInput("discount price should be below the regular price")
	}

	t := &domain.Tour{
		ID:              uuid.NewString(),
		Name:            name,
		Slug:            slug.Generate(name),
		Duration:        in.Duration,
		MaxGroupSize:    in.MaxGroupSize,
		Difficulty:      in.Difficulty,
		RatingsAverage:  domain.DefaultRatingsAverage,
		RatingsQuantity: 0,
		Price:           in.Price,
		PriceDiscount:   in.PriceDiscount,
		Summary:         strings.TrimSpace(in.Summary),
		Description:     strings.TrimSpace(in.Description),
		ImageCover:      in.ImageCover,
		Images:          nonNil(in.Images),
		StartDates:      nonNil(in.StartDates),
		SecretTour:      in.SecretTour,
		StartLocation:   pointLocation(in.StartLocation),
		Locations:       pointLocations(in.Locations),
		Guides:          nonNil(in.Guides),
		CreatedAt:       s.now().UTC(),
	}

	if err := s.tours.Insert(ctx, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.Conflict("a tour with this name already exists")
		}
		return nil, fmt.Errorf("create tour: %w", err)
	}
	s.syncIndex(ctx, t)

	s.logger.InfoContext(ctx, "tour created",
		slog.String("tour_id", t.ID),
		slog.String("slug", t.Slug),
	)
	return t, nil
}

// Update applies a partial update. Renaming a tour regenerates its slug.
func (s *TourService) Update(ctx context.Context, id string, in *UpdateTourInput) (*domain.Tour, error) {
	if in.PriceDiscount != nil {
		price := in.Price
		if price == nil {
			current, err := s.Resource.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			price = &current.Price
		}
		if *in.PriceDiscount >= *price {
			return nil, apperrors.InvalidInput("discount price should be below the regular price")
		}
	}

	in.StartLocation = pointLocation(in.StartLocation)
	in.Locations = pointLocations(in.Locations)

	p, err := store.PatchOf(in)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		p["name"] = name
		p["slug"] = slug.Generate(name)
	}

	t, err := s.Resource.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.syncIndex(ctx, t)
	return t, nil
}

// Delete removes a tour together with its reviews.
func (s *TourService) Delete(ctx context.Context, id string) error {
	if err := s.Resource.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.unindex(ctx, id)

	n, err := s.reviews.DeleteMany(ctx, query.Filter{query.Eq("tour_id", id)})
	if err != nil {
		return fmt.Errorf("delete reviews of tour %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "tour deleted",
		slog.String("tour_id", id),
		slog.Int64("reviews_deleted", n),
	)
	return nil
}

func (s *TourService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "tour cache invalidation failed",
			slog.String("tour_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// DifficultyStats summarises the well rated tours of one difficulty.
type DifficultyStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int64   `json:"num_tours"`
	NumRatings float64 `json:"num_ratings"`
	AvgRating  float64 `json:"avg_rating"`
	AvgPrice   float64 `json:"avg_price"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
}

// Stats groups tours rated 4.5 or better by difficulty, cheapest group
// first.
func (s *TourService) Stats(ctx context.Context) ([]DifficultyStats, error) {
	groups, err := s.tours.Aggregate(ctx, query.Group{
		Match: query.Filter{query.Gte("ratings_average", 4.5), visibleTours},
		By:    "difficulty",
		Avg:   []string{"ratings_average", "price"},
		Sum:   []string{"ratings_quantity"},
		Min:   []string{"price"},
		Max:   []string{"price"},
	})
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}

	out := make([]DifficultyStats, 0, len(groups))
	for _, g := range groups {
		difficulty := ""
		if g.Key != nil {
			difficulty = strings.ToUpper(fmt.Sprint(g.Key))
		}
		out = append(out, DifficultyStats{
			Difficulty: difficulty,
			NumTours:   g.Count,
			NumRatings: g.Sum["ratings_quantity"],
			AvgRating:  domain.RoundRating(g.Avg["ratings_average"]),
			AvgPrice:   g.Avg["price"],
			MinPrice:   g.Min["price"],
			MaxPrice:   g.Max["price"],
		})
	}
	slices.SortStableFunc(out, func(a, b DifficultyStats) int {
		switch {
		case a.AvgPrice < b.AvgPrice:
			return -1
		case a.AvgPrice > b.AvgPrice:
			return 1
		}
		return strings.Compare(a.Difficulty, b.Difficulty)
	})
	return out, nil
}

// MonthPlan lists the tours starting in one month.
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"num_tour_starts"`
	Tours         []string `json:"tours"`
}

const maxPlanMonths = 12

// MonthlyPlan counts the tour starts of each month of year, busiest month
// first.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	q := query.All(query.Filter{visibleTours})
	q.Projection = query.Projection{Include: []string{"name", "start_dates"}}
	recs, err := s.tours.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}
	tours, err := store.Decode[domain.Tour](recs)
	if err != nil {
		return nil, err
	}

	months := map[int]*MonthPlan{}
	for _, t := range tours {
		for _, d := range t.StartDates {
			if d.Before(from) || !d.Before(to) {
				continue
			}
			m := int(d.UTC().Month())
			plan, ok := months[m]
			if !ok {
				plan = &MonthPlan{Month: m}
				months[m] = plan
			}
			plan.NumTourStarts++
			plan.Tours = append(plan.Tours, t.Name)
		}
	}

	out := make([]MonthPlan, 0, len(months))
	for _, p := range months {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b MonthPlan) int {
		if a.NumTourStarts != b.NumTourStarts {
			return b.NumTourStarts - a.NumTourStarts
		}
		return a.Month - b.Month
	})
	if len(out) > maxPlanMonths {
		out = out[:maxPlanMonths]
	}
	return out, nil
}

func nonNil[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}
