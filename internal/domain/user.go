package domain

import (
	"strings"
	"time"
)

// DefaultPhoto is assigned to users that have not uploaded a photo.
const DefaultPhoto = "default.jpg"

// User is a registered account. It is stored as-is; API responses use
// Public so secrets never leave the service.
type User struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Photo                string     `json:"photo"`
	Role                 string     `json:"role"`
	PasswordHash         string     `json:"password_hash"`
	PasswordChangedAt    *time.Time `json:"password_changed_at,omitempty"`
	PasswordResetToken   string     `json:"password_reset_token,omitempty"`
	PasswordResetExpires *time.Time `json:"password_reset_expires,omitempty"`
	Active               bool       `json:"active"`
	CreatedAt            time.Time  `json:"created_at"`
}

// GetID returns the user's identifier.
func (u User) GetID() string { return u.ID }

// GetRole returns the user's role.
func (u User) GetRole() string { return u.Role }

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at t. Both instants are compared at second granularity, the
// resolution of a token's iat claim.
func (u User) ChangedPasswordAfter(t time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return t.Unix() < u.PasswordChangedAt.Unix()
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PublicUser is the user representation returned by the API.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
	Role  string `json:"role"`
}

// Public returns the API view of u.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.Photo, Role: u.Role}
}
