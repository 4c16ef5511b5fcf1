package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// activeUsers excludes deactivated accounts from every user lookup.
var activeUsers = query.Ne("active", false)

// secretUserFields never leave the service in listings.
var secretUserFields = []string{
	"password_hash",
	"password_changed_at",
	"password_reset_token",
	"password_reset_expires",
	"active",
}

// UserService manages accounts. Deactivated users are invisible to it.
type UserService struct {
	*Resource[domain.User]
	users  store.Collection[domain.User]
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users store.Collection[domain.User], logger *slog.Logger) *UserService {
	return &UserService{
		Resource: NewResource(users, "user", activeUsers),
		users:    users,
		logger:   logger,
	}
}

// List runs q over active users. Credential fields are always projected
// away.
func (s *UserService) List(ctx context.Context, q *query.Query) ([]store.Record, error) {
	cpy := *q
	cpy.Projection = withoutSecrets(q.Projection)
	return s.Resource.List(ctx, &cpy)
}

func withoutSecrets(p query.Projection) query.Projection {
	if len(p.Include) > 0 {
		include := slices.DeleteFunc(slices.Clone(p.Include), func(f string) bool {
			return slices.Contains(secretUserFields, f)
		})
		if len(include) == 0 {
			include = []string{"id"}
		}
		return query.Projection{Include: include}
	}
	exclude := slices.Clone(p.Exclude)
	for _, f := range secretUserFields {
		if !slices.Contains(exclude, f) {
			exclude = append(exclude, f)
		}
	}
	return query.Projection{Exclude: exclude}
}

// AdminUpdateUserInput is the update an administrator may apply to any
// account. Passwords are not part of it.
type AdminUpdateUserInput struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Photo *string `json:"photo,omitempty"`
	Role  *string `json:"role,omitempty" validate:"omitempty,oneof=user guide lead-guide admin"`
}

// Update applies an administrator's update.
func (s *UserService) Update(ctx context.Context, id string, in *AdminUpdateUserInput) (*domain.User, error) {
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		in.Email = &email
	}
	p, err := store.PatchOf(in)
	if err != nil {
		return nil, err
	}
	u, err := s.Resource.Update(ctx, id, p)
	if err != nil {
		return nil, emailConflict(err)
	}
	return u, nil
}

// Delete deactivates the account with id.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.Resource.Update(ctx, id, store.Patch{"active": false}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deactivated", slog.String("user_id", id))
	return nil
}

// UpdateMeInput is a user's update of their own profile. Password fields are
// accepted only to be rejected with a pointer to the right route.
type UpdateMeInput struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email           *string `json:"email,omitempty" validate:"omitempty,email"`
	Photo           *string `json:"photo,omitempty"`
	Password        string  `json:"password,omitempty"`
	PasswordConfirm string  `json:"password_confirm,omitempty"`
}

// UpdateMe updates the name, email and photo of u.
func (s *UserService) UpdateMe(ctx context.Context, u *domain.User, in *UpdateMeInput) (*domain.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return nil, apperrors.InvalidInput("this route is not for password updates, please use /updateMyPassword")
	}

	p := store.Patch{}
	if in.Name != nil {
		p["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		p["email"] = domain.NormalizeEmail(*in.Email)
	}
	if in.Photo != nil {
		p["photo"] = *in.Photo
	}

	updated, err := s.Resource.Update(ctx, u.ID, p)
	if err != nil {
		return nil, emailConflict(err)
	}
	return updated, nil
}

// DeleteMe deactivates u.
func (s *UserService) DeleteMe(ctx context.Context, u *domain.User) error {
	return s.Delete(ctx, u.ID)
}

// ActiveByEmail returns the active user with email.
func (s *UserService) ActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findActive(ctx, s.users, query.Eq("email", domain.NormalizeEmail(email)))
}

func findActive(ctx context.Context, users store.Collection[domain.User], cs ...query.Condition) (*domain.User, error) {
	u, err := users.FindOne(ctx, query.Filter(cs).And(activeUsers))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func emailConflict(err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		return apperrors.Conflict("this email is already in use")
	}
	return err
}
