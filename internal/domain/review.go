package domain

import "time"

// Review rating bounds.
const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 4.5
)

// Review is a user's rating of a tour. A user reviews a tour at most once.
type Review struct {
	ID        string    `json:"id"`
	Review    string    `json:"review"`
	Rating    float64   `json:"rating"`
	TourID    string    `json:"tour_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GetID returns the review's identifier.
func (r Review) GetID() string { return r.ID }
