package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret-key-for-testing-purposes"
	testRefreshSecret = "test-refresh-secret-key-for-testing-purposes"
	testEmail         = "ana@example.com"
)

func newTestService() *Service {
	return NewService(testAccessSecret, testRefreshSecret, time.Hour, 24*time.Hour)
}

func TestGenerateAccessToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()
	roles := []string{"traveller"}

	token, expiresAt, err := service.GenerateAccessToken(userID, testEmail, roles)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, testEmail, claims.Email)
	assert.Equal(t, roles, claims.Roles)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.Equal(t, issuer, claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestValidateAccessToken(t *testing.T) {
	service := newTestService()
	token, _, err := service.GenerateAccessToken(uuid.New(), testEmail, []string{"traveller", "premium"})
	require.NoError(t, err)

	t.Run("Valid", func(t *testing.T) {
		claims, err := service.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, []string{"traveller", "premium"}, claims.Roles)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.ValidateAccessToken("invalid.token.here")
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		wrong := NewService("wrong-secret", testRefreshSecret, time.Hour, 24*time.Hour)
		_, err := wrong.ValidateAccessToken(token)
		assert.Error(t, err)
	})
}

func TestValidateRefreshToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateRefreshToken(userID, testEmail)
	require.NoError(t, err)

	claims, err := service.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RefreshToken, claims.TokenType)

	wrong := NewService(testAccessSecret, "wrong-secret", time.Hour, 24*time.Hour)
	_, err = wrong.ValidateRefreshToken(token)
	assert.Error(t, err)
}

func TestTokenTypeMismatch(t *testing.T) {
	// Same secret for both so only the type check can reject
	service := NewService(testAccessSecret, testAccessSecret, time.Hour, 24*time.Hour)
	userID := uuid.New()

	refresh, err := service.GenerateRefreshToken(userID, testEmail)
	require.NoError(t, err)
	_, err = service.ValidateAccessToken(refresh)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	access, _, err := service.GenerateAccessToken(userID, testEmail, nil)
	require.NoError(t, err)
	_, err = service.ValidateRefreshToken(access)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestExpiredToken(t *testing.T) {
	service := NewService(testAccessSecret, testRefreshSecret, -time.Minute, time.Hour)

	token, _, err := service.GenerateAccessToken(uuid.New(), testEmail, nil)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	assert.True(t, service.IsTokenExpired(token))
	assert.True(t, IsExpired(token))

	// an expired token signed by someone else is invalid, not expired
	forger := NewService("forged-access-secret-1234567890", testRefreshSecret, -time.Minute, time.Hour)
	forged, _, err := forger.GenerateAccessToken(uuid.New(), testEmail, nil)
	require.NoError(t, err)
	assert.False(t, service.IsTokenExpired(forged))
}

func TestParseUnverified(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, expiresAt, err := service.GenerateAccessToken(userID, testEmail, []string{"traveller"})
	require.NoError(t, err)

	claims, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	expiry, err := ExpiryOf(token)
	require.NoError(t, err)
	assert.WithinDuration(t, expiresAt, expiry, time.Second)
	assert.False(t, IsExpired(token))

	_, err = ParseUnverified("not-a-token")
	assert.Error(t, err)
	assert.True(t, IsExpired("not-a-token"))
	assert.False(t, service.IsTokenExpired("not-a-token"))
}

func TestExpiryOf_NoExpiry(t *testing.T) {
	claims := Claims{UserID: uuid.New(), TokenType: AccessToken}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = ExpiryOf(token)
	assert.ErrorIs(t, err, ErrNoExpiry)
	assert.True(t, IsExpired(token))
}

func TestTokenSigningMethod(t *testing.T) {
	service := newTestService()

	claims := Claims{
		UserID:    uuid.New(),
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestWrongIssuer(t *testing.T) {
	service := newTestService()
	claims := Claims{
		UserID:    uuid.New(),
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.Error(t, err)
}
