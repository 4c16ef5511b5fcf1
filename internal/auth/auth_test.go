package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-32"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewTokenService(testSecret, time.Hour).WithClock(fixedClock(now))

	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, now, claims.IssuedAt.Time.UTC())
	assert.Equal(t, now.Add(time.Hour), claims.ExpiresAt.Time.UTC())
}

func TestIssue_Deterministic(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewTokenService(testSecret, time.Hour).WithClock(fixedClock(now))

	a, err := svc.Issue("user-1")
	require.NoError(t, err)
	b, err := svc.Issue("user-1")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewTokenService(testSecret, time.Hour).WithClock(fixedClock(issued))

	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	later := svc.WithClock(fixedClock(issued.Add(time.Hour + time.Second)))
	_, err = later.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Rejections(t *testing.T) {
	svc := NewTokenService(testSecret, time.Hour)
	good, err := svc.Issue("user-1")
	require.NoError(t, err)

	other, err := NewTokenService("another-secret-that-is-long-enough", time.Hour).Issue("user-1")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := map[string]string{
		"empty":         "",
		"garbage":       "not-a-token",
		"wrong secret":  other,
		"alg none":      noneToken,
		"missing exp":   noExpiry,
		"bad signature": tampered,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewResetCredential(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewTokenService(testSecret, time.Hour).WithClock(fixedClock(now))

	cred, err := svc.NewResetCredential()
	require.NoError(t, err)

	assert.Len(t, cred.Plain, 64)
	assert.Len(t, cred.Hash, 64)
	assert.NotEqual(t, cred.Plain, cred.Hash)
	assert.Equal(t, HashResetToken(cred.Plain), cred.Hash)
	assert.Equal(t, now.Add(10*time.Minute), cred.Expires)

	again, err := svc.NewResetCredential()
	require.NoError(t, err)
	assert.NotEqual(t, cred.Plain, again.Plain)
}

func TestMatchReset(t *testing.T) {
	hash := HashResetToken("plain-token")

	assert.True(t, MatchReset("plain-token", hash))
	assert.False(t, MatchReset("other-token", hash))
	assert.False(t, MatchReset("plain-token", ""))
}

func TestHashResetToken_KnownVector(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashResetToken("abc"))
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("pass1234")
	require.NoError(t, err)
	assert.NotEqual(t, "pass1234", hash)
	assert.True(t, h.Compare(hash, "pass1234"))
	assert.False(t, h.Compare(hash, "wrong"))
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
}
