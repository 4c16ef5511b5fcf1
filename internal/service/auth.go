package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ploop3/Natours/internal/auth"
	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/event"
	"github.com/ploop3/Natours/internal/mail"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

const (
	msgBadCredentials = "incorrect email or password"
	msgBadResetToken  = "token is invalid or has expired"
)

// AuthService implements signup, login and the password flows.
type AuthService struct {
	users  store.Collection[domain.User]
	tokens *auth.TokenService
	hasher *auth.PasswordHasher
	mailer mail.Sender
	events *event.Producer
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users store.Collection[domain.User],
	tokens *auth.TokenService,
	hasher *auth.PasswordHasher,
	mailer mail.Sender,
	events *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		mailer: mailer,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Session is the result of a successful authentication.
type Session struct {
	Token string
	User  *domain.User
}

// SignupInput holds the fields of a new account.
type SignupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// Signup creates a user with the standard role and logs them in. welcomeURL
// is linked from the welcome email, whose delivery failure is only logged.
func (s *AuthService) Signup(ctx context.Context, in *SignupInput, welcomeURL string) (*Session, error) {
	if in.Password != in.PasswordConfirm {
		return nil, apperrors.InvalidInput("passwords are not the same")
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        domain.NormalizeEmail(in.Email),
		Photo:        domain.DefaultPhoto,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.Conflict("this email is already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.mailer.Send(ctx, mail.Message{Kind: mail.KindWelcome, To: u.Email, Name: firstName(u.Name), URL: welcomeURL}); err != nil {
		s.logger.ErrorContext(ctx, "failed to send welcome email",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
	s.events.UserSignedUp(ctx, u)

	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", u.ID))
	return s.session(u)
}

// Login authenticates an active user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, apperrors.InvalidInput("please provide email and password")
	}

	u, err := findActive(ctx, s.users, query.Eq("email", domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthenticated(msgBadCredentials)
		}
		return nil, err
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return nil, apperrors.Unauthenticated(msgBadCredentials)
	}
	return s.session(u)
}

// ForgotPassword issues a reset credential for the user with email and mails
// it. resetURL builds the link from the plain token. When delivery fails the
// credential is withdrawn.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	u, err := findActive(ctx, s.users, query.Eq("email", domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &apperrors.AppError{
				Code:    "NOT_FOUND",
				Message: "there is no user with that email address",
				Status:  apperrors.HTTPStatus(apperrors.ErrNotFound),
				Err:     apperrors.ErrNotFound,
			}
		}
		return err
	}

	cred, err := s.tokens.NewResetCredential()
	if err != nil {
		return err
	}
	if _, err := s.users.UpdateOne(ctx, query.ByID(u.ID), store.Patch{
		"password_reset_token":   cred.Hash,
		"password_reset_expires": cred.Expires,
	}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	err = s.mailer.Send(ctx, mail.Message{
		Kind: mail.KindPasswordReset,
		To:   u.Email,
		Name: firstName(u.Name),
		URL:  resetURL(cred.Plain),
	})
	if err != nil {
		if _, clearErr := s.users.UpdateOne(ctx, query.ByID(u.ID), store.Patch{
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		}); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to clear reset token",
				slog.String("user_id", u.ID),
				slog.String("error", clearErr.Error()),
			)
		}
		return apperrors.DeliveryFailed(err)
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", u.ID))
	return nil
}

// ResetPasswordInput holds the new password.
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// ResetPassword sets a new password using an unexpired reset credential and
// logs the user in. A credential works once.
func (s *AuthService) ResetPassword(ctx context.Context, plain string, in *ResetPasswordInput) (*Session, error) {
	if in.Password != in.PasswordConfirm {
		return nil, apperrors.InvalidInput("passwords are not the same")
	}

	now := s.now().UTC()
	hashed := auth.HashResetToken(plain)
	u, err := findActive(ctx, s.users,
		query.Eq("password_reset_token", hashed),
		query.Gt("password_reset_expires", now),
	)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthenticated(msgBadResetToken)
		}
		return nil, err
	}
	if !auth.MatchReset(plain, u.PasswordResetToken) {
		return nil, apperrors.Unauthenticated(msgBadResetToken)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.UpdateOne(ctx, query.ByID(u.ID), store.Patch{
		"password_hash":          hash,
		"password_changed_at":    changedAt(now),
		"password_reset_token":   nil,
		"password_reset_expires": nil,
	})
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", u.ID))
	return s.session(updated)
}

// UpdatePasswordInput holds a password change by a logged in user.
type UpdatePasswordInput struct {
	PasswordCurrent string `json:"password_current" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// UpdatePassword changes the password of u after checking the current one.
// Tokens issued before the change stop working.
func (s *AuthService) UpdatePassword(ctx context.Context, u *domain.User, in *UpdatePasswordInput) (*Session, error) {
	current, err := findActive(ctx, s.users, query.Eq("id", u.ID))
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(current.PasswordHash, in.PasswordCurrent) {
		return nil, apperrors.Unauthenticated("your current password is wrong")
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperrors.InvalidInput("passwords are not the same")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.UpdateOne(ctx, query.ByID(u.ID), store.Patch{
		"password_hash":       hash,
		"password_changed_at": changedAt(s.now().UTC()),
	})
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password updated", slog.String("user_id", u.ID))
	return s.session(updated)
}

// Identity returns the active user with id for the access gate.
func (s *AuthService) Identity(ctx context.Context, id string) (*domain.User, error) {
	return findActive(ctx, s.users, query.Eq("id", id))
}

func (s *AuthService) session(u *domain.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

// changedAt backdates the password change by a second so a token issued in
// the same second as the change stays valid.
func changedAt(now time.Time) time.Time {
	return now.Add(-time.Second)
}

func firstName(name string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first
}
