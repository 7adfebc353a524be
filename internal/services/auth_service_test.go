package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService() (*AuthService, *jwt.Service) {
	jwtService := jwt.NewService("access-secret-for-tests-only-32b", "refresh-secret-for-tests-only-32", time.Hour, 24*time.Hour)
	return NewAuthService(newMemoryUsers(), jwtService, bcrypt.MinCost, testLogger()), jwtService
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, jwtService := newAuthService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, &models.RegisterRequest{Email: "  Traveller@Example.com ", Password: "correct-horse", DisplayName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "traveller@example.com", registered.User.Email)
	assert.NotEqual(t, "correct-horse", registered.User.PasswordHash)

	claims, err := jwtService.ValidateAccessToken(registered.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)
	assert.Equal(t, []string{"traveller"}, claims.Roles)

	login, err := svc.Login(ctx, &models.LoginRequest{Email: "TRAVELLER@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, login.User.ID)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "traveller@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	tests := []struct {
		name  string
		req   models.RegisterRequest
		field string
	}{
		{"BadEmail", models.RegisterRequest{Email: "not-an-email", Password: "correct-horse"}, "email"},
		{"ShortPassword", models.RegisterRequest{Email: "a@example.com", Password: "short"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tt.req)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := svc.Register(ctx, &models.RegisterRequest{Email: "dup@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &models.RegisterRequest{Email: "dup@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthService_Refresh(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, &models.RegisterRequest{Email: "r@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.Refresh(ctx, registered.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
