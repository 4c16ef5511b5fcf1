package domain

import (
	"math"
	"time"
)

// Difficulty levels a tour may have.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// DefaultRatingsAverage is shown for a tour nobody has reviewed yet.
const DefaultRatingsAverage = 4.5

// Tour is a bookable tour. RatingsAverage and RatingsQuantity are derived from
// the tour's reviews and are only written by the ratings engine.
type Tour struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Duration        int         `json:"duration"`
	MaxGroupSize    int         `json:"max_group_size"`
	Difficulty      string      `json:"difficulty"`
	RatingsAverage  float64     `json:"ratings_average"`
	RatingsQuantity int         `json:"ratings_quantity"`
	Price           float64     `json:"price"`
	PriceDiscount   float64     `json:"price_discount,omitempty"`
	Summary         string      `json:"summary"`
	Description     string      `json:"description,omitempty"`
	ImageCover      string      `json:"image_cover"`
	Images          []string    `json:"images"`
	StartDates      []time.Time `json:"start_dates"`
	SecretTour      bool        `json:"secret_tour"`
	StartLocation   *Location   `json:"start_location,omitempty"`
	Locations       []Location  `json:"locations,omitempty"`
	Guides          []string    `json:"guides"`
	CreatedAt       time.Time   `json:"created_at"`
}

// GetID returns the tour's identifier.
func (t Tour) GetID() string { return t.ID }

// DurationWeeks is the tour duration expressed in weeks.
func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// RoundRating rounds a rating average to one decimal place.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
