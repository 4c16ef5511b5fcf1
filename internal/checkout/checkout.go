// Package checkout creates hosted payment sessions and verifies the
// provider's completion callbacks.
package checkout

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/ploop3/Natours/internal/domain"
)

// SessionRequest describes the purchase of one tour by one user.
type SessionRequest struct {
	Tour       *domain.Tour
	User       *domain.User
	SuccessURL string
	CancelURL  string
}

// Session is an opaque checkout session created by the provider.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Provider creates checkout sessions.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// AmountCents converts a tour price to the smallest currency unit.
func AmountCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

// MockProvider creates sessions locally without contacting a provider.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a MockProvider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger}
}

// CreateSession returns a session whose URL is the success URL.
func (p *MockProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	s := &Session{
		ID:  "cs_mock_" + uuid.NewString(),
		URL: req.SuccessURL,
	}
	p.logger.InfoContext(ctx, "mock checkout session created",
		slog.String("session_id", s.ID),
		slog.String("tour_id", req.Tour.ID),
		slog.Int64("amount", AmountCents(req.Tour.Price)),
	)
	return s, nil
}
