package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripmate/travel-booking/pkg/jwt"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(
		"test-access-secret-key-123456789",
		"test-refresh-secret-key-123456789",
		time.Hour,
		24*time.Hour,
	)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func protectedRouter(jwtService *jwt.Service) *gin.Engine {
	router := setupTestRouter()
	router.GET("/protected", AuthMiddleware(jwtService), func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "success",
			"user_id": userCtx.UserID,
			"email":   userCtx.Email,
		})
	})
	return router
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := protectedRouter(jwtService)

	userID := uuid.New()
	token, _, err := jwtService.GenerateAccessToken(userID, "ana@example.com", []string{"traveller"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	assert.Contains(t, w.Body.String(), "ana@example.com")
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := setupTestJWTService()

	refresh, err := jwtService.GenerateRefreshToken(uuid.New(), "ana@example.com")
	require.NoError(t, err)

	expiredService := jwt.NewService("test-access-secret-key-123456789", "test-refresh-secret-key-123456789", -time.Minute, time.Hour)
	expired, _, err := expiredService.GenerateAccessToken(uuid.New(), "ana@example.com", nil)
	require.NoError(t, err)

	otherService := jwt.NewService("another-access-secret-987654321", "another-refresh-secret-987654321", time.Hour, time.Hour)
	foreign, _, err := otherService.GenerateAccessToken(uuid.New(), "ana@example.com", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"MissingHeader", "", "MISSING_AUTH_HEADER"},
		{"WrongScheme", "Basic abc123", "INVALID_AUTH_FORMAT"},
		{"EmptyToken", "Bearer   ", "INVALID_AUTH_FORMAT"},
		{"Garbage", "Bearer not.a.token", "INVALID_TOKEN"},
		{"RefreshTokenAsAccess", "Bearer " + refresh, "INVALID_TOKEN"},
		{"WrongSecret", "Bearer " + foreign, "INVALID_TOKEN"},
		{"Expired", "Bearer " + expired, "TOKEN_EXPIRED"},
	}

	router := protectedRouter(jwtService)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.NotContains(t, w.Body.String(), "success")
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()
	router.GET("/premium", AuthMiddleware(jwtService), RequireRole("premium"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "welcome"})
	})
	router.GET("/no-auth", RequireRole("premium"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(path string, roles []string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		if roles != nil {
			token, _, err := jwtService.GenerateAccessToken(uuid.New(), "ana@example.com", roles)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("/premium", []string{"traveller", "premium"}).Code)

	w := call("/premium", []string{"traveller"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")

	w = call("/no-auth", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_USER_CONTEXT")
}

func TestGetUserContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, exists := GetUserContext(c)
	assert.False(t, exists)
	assert.Panics(t, func() { MustGetUserContext(c) })

	c.Set(UserContextKey, "not a user context")
	_, exists = GetUserContext(c)
	assert.False(t, exists)

	want := UserContext{UserID: uuid.New(), Email: "ana@example.com", Roles: []string{"traveller"}}
	c.Set(UserContextKey, want)
	got, exists := GetUserContext(c)
	assert.True(t, exists)
	assert.Equal(t, want, got)
	assert.True(t, got.HasRole("traveller"))
	assert.False(t, got.HasRole("premium"))
}
