package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ploop3/Natours/internal/auth"
	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/event"
	"github.com/ploop3/Natours/internal/lock"
	"github.com/ploop3/Natours/internal/mail"
	"github.com/ploop3/Natours/internal/ratings"
	"github.com/ploop3/Natours/internal/store/memory"
)

const testSecret = "a-very-long-test-secret-of-32-bytes!"

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	users    *memory.Collection[domain.User]
	tours    *memory.Collection[domain.Tour]
	reviews  *memory.Collection[domain.Review]
	bookings *memory.Collection[domain.Booking]
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
	mailer   *mockSender
	engine   *ratings.Engine
	events   *event.Producer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		users:    memory.New[domain.User](memory.WithUnique("email")),
		tours:    memory.New[domain.Tour](memory.WithUnique("name")),
		reviews:  memory.New[domain.Review](memory.WithUnique("tour_id", "user_id")),
		bookings: memory.New[domain.Booking](memory.WithUnique("session_id")),
		hasher:   auth.NewPasswordHasher(bcrypt.MinCost),
		tokens:   auth.NewTokenService(testSecret, time.Hour).WithClock(func() time.Time { return testNow }),
		mailer:   new(mockSender),
		events:   event.NewProducer(nil, newTestLogger()),
	}
	e.engine = ratings.New(e.tours, e.reviews, lock.NewLocal(), newTestLogger())
	return e
}

func (e *env) addUser(t *testing.T, id, email, role, password string) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	u := &domain.User{
		ID: id, Name: "User " + id, Email: email, Role: role,
		PasswordHash: hash, Active: true, CreatedAt: testNow,
	}
	require.NoError(t, e.users.Insert(context.Background(), u))
	return u
}

func (e *env) addTour(t *testing.T, tour domain.Tour) *domain.Tour {
	t.Helper()
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = domain.DefaultRatingsAverage
	}
	if tour.CreatedAt.IsZero() {
		tour.CreatedAt = testNow
	}
	require.NoError(t, e.tours.Insert(context.Background(), &tour))
	return &tour
}

func (e *env) authService() *AuthService {
	s := NewAuthService(e.users, e.tokens, e.hasher, e.mailer, e.events, newTestLogger())
	s.now = func() time.Time { return testNow }
	return s
}

func (e *env) reviewService() *ReviewService {
	return NewReviewService(e.reviews, e.tours, e.engine, e.events, newTestLogger())
}

func (e *env) tourService() *TourService {
	return NewTourService(e.tours, e.reviews, e.users, nil, newTestLogger())
}

func ptr[T any](v T) *T { return &v }
