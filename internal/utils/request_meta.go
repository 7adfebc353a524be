package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tripmate/travel-booking/internal/models"
)

// RequestIDHeader carries the correlation id between client and server
const RequestIDHeader = "X-Request-ID"

// RequestMeta collects the audit metadata for a request. The correlation id
// is taken from X-Request-ID, or generated when the client did not send one.
func RequestMeta(c *gin.Context) models.RequestMeta {
	userAgent := GetUserAgent(c)

	correlationID := c.GetHeader(RequestIDHeader)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	return models.RequestMeta{
		IP:             GetRealIP(c),
		UserAgent:      userAgent,
		DevicePlatform: ParseUserAgent(userAgent).Platform,
		CorrelationID:  correlationID,
	}
}
