package service

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// TourDistance is how far a tour starts from a point.
type TourDistance struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// ToursWithin returns the visible tours whose start location lies within
// distance of center, distance being in unit ("mi" or "km").
func (s *TourService) ToursWithin(ctx context.Context, distance float64, center domain.LatLng, unit string) ([]domain.Tour, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return nil, apperrors.InvalidInput("distance must be a non-negative number")
	}
	r, err := domain.EarthRadius(unit)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	radius := distance / r

	tours, err := s.locatedTours(ctx)
	if err != nil {
		return nil, err
	}
	within := make([]domain.Tour, 0, len(tours))
	for _, t := range tours {
		p, _ := t.StartLocation.Point()
		if center.AngleTo(p) <= radius {
			within = append(within, t)
		}
	}
	return within, nil
}

// Distances lists every visible tour with a start location by its distance
// from center in unit, nearest first.
func (s *TourService) Distances(ctx context.Context, center domain.LatLng, unit string) ([]TourDistance, error) {
	if _, err := domain.MetersIn(0, unit); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	tours, err := s.locatedTours(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TourDistance, 0, len(tours))
	for _, t := range tours {
		p, _ := t.StartLocation.Point()
		d, _ := domain.MetersIn(center.Meters(p), unit)
		out = append(out, TourDistance{ID: t.ID, Name: t.Name, Distance: d})
	}
	slices.SortStableFunc(out, func(a, b TourDistance) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return out, nil
}

// locatedTours loads the visible tours that have a usable start location.
func (s *TourService) locatedTours(ctx context.Context) ([]domain.Tour, error) {
	recs, err := s.tours.Find(ctx, query.All(query.Filter{visibleTours}))
	if err != nil {
		return nil, fmt.Errorf("load tours: %w", err)
	}
	tours, err := store.Decode[domain.Tour](recs)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(tours, func(t domain.Tour) bool {
		_, ok := t.StartLocation.Point()
		return !ok
	}), nil
}

// pointLocation fills in the GeoJSON type of a location.
func pointLocation(l *domain.Location) *domain.Location {
	if l == nil {
		return nil
	}
	out := *l
	out.Type = domain.GeoPoint
	return &out
}

func pointLocations(ls []domain.Location) []domain.Location {
	if ls == nil {
		return nil
	}
	out := make([]domain.Location, len(ls))
	for i := range ls {
		out[i] = *pointLocation(&ls[i])
	}
	return out
}
