package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidRole(t *testing.T) {
	for _, r := range []string{"user", "guide", "lead-guide", "admin"} {
		assert.True(t, IsValidRole(r), r)
	}
	assert.False(t, IsValidRole("superuser"))
	assert.False(t, IsValidRole(""))
}

func TestUser_ChangedPasswordAfter(t *testing.T) {
	changed := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	u := User{PasswordChangedAt: &changed}

	tests := []struct {
		name     string
		issuedAt time.Time
		want     bool
	}{
		{"issued before change", changed.Add(-time.Minute), true},
		{"issued one second before", changed.Add(-time.Second), true},
		{"issued in the same second", changed.Add(500 * time.Millisecond), false},
		{"issued after change", changed.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, u.ChangedPasswordAfter(tt.issuedAt))
		})
	}

	assert.False(t, User{}.ChangedPasswordAfter(time.Unix(0, 0)))
}

func TestUser_PublicHidesSecrets(t *testing.T) {
	expires := time.Now()
	u := User{
		ID:                   "u-1",
		Name:                 "Jonas",
		Email:                "jonas@example.com",
		Role:                 RoleAdmin,
		PasswordHash:         "$2a$12$secret",
		PasswordResetToken:   "abc",
		PasswordResetExpires: &expires,
	}

	raw, err := json.Marshal(u.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.Contains(t, string(raw), `"role":"admin"`)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jonas@example.com", NormalizeEmail("  Jonas@Example.COM "))
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 4.7, RoundRating(4.666666))
	assert.Equal(t, 4.0, RoundRating(4.0))
	assert.Equal(t, 4.3, RoundRating(4.25))
}

func TestTour_DurationWeeks(t *testing.T) {
	assert.InDelta(t, 2.0, Tour{Duration: 14}.DurationWeeks(), 1e-9)
}
