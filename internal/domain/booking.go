package domain

import "time"

// Booking is a paid reservation of a tour. Bookings are created from a
// confirmed checkout session.
type Booking struct {
	ID        string    `json:"id"`
	TourID    string    `json:"tour_id"`
	UserID    string    `json:"user_id"`
	Price     float64   `json:"price"`
	Paid      bool      `json:"paid"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetID returns the booking's identifier.
func (b Booking) GetID() string { return b.ID }
