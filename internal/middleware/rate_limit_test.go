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
)

func TestRateLimiter_PerUser(t *testing.T) {
	jwtService := setupTestJWTService()
	limiter := NewRateLimiter(2, time.Hour)

	router := setupTestRouter()
	router.POST("/reservations", AuthMiddleware(jwtService), limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	tokenFor := func() string {
		token, _, err := jwtService.GenerateAccessToken(uuid.New(), "ana@example.com", []string{"traveller"})
		require.NoError(t, err)
		return token
	}
	first, second := tokenFor(), tokenFor()

	post := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/reservations", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, post(first).Code)
	assert.Equal(t, http.StatusCreated, post(first).Code)

	w := post(first)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	// budgets are per user
	assert.Equal(t, http.StatusCreated, post(second).Code)
}

func TestRateLimiter_AnonymousByIP(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	assert.True(t, limiter.Allow("ip:192.0.2.1"))
	assert.False(t, limiter.Allow("ip:192.0.2.1"))
	assert.True(t, limiter.Allow("ip:192.0.2.2"))
}
