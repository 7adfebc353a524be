package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/services"
)

// Error codes shared with the booking client
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeItemNotFound        = "ITEM_NOT_FOUND"
	CodeReservationNotFound = "RESERVATION_NOT_FOUND"
	CodeAlreadyPaid         = "ALREADY_PAID"
	CodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	CodeSettlementMismatch  = "SETTLEMENT_MISMATCH"
	CodePaymentNotSucceeded = "PAYMENT_NOT_SUCCEEDED"
	CodeGatewayUnavailable  = "GATEWAY_UNAVAILABLE"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorMapping struct {
	target error
	status int
	errTag string
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrItemNotFound, http.StatusNotFound, "not_found", CodeItemNotFound},
	{services.ErrReservationNotFound, http.StatusNotFound, "not_found", CodeReservationNotFound},
	{services.ErrAlreadyPaid, http.StatusConflict, "already_paid", CodeAlreadyPaid},
	{services.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded", CodeCapacityExceeded},
	{services.ErrSettlementMismatch, http.StatusUnprocessableEntity, "settlement_mismatch", CodeSettlementMismatch},
	{services.ErrPaymentNotSucceeded, http.StatusPaymentRequired, "payment_not_succeeded", CodePaymentNotSucceeded},
	{services.ErrGatewayUnavailable, http.StatusBadGateway, "gateway_unavailable", CodeGatewayUnavailable},
	{services.ErrEmailTaken, http.StatusConflict, "email_taken", CodeEmailTaken},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", CodeInvalidCredentials},
	{services.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", CodeInvalidToken},
}

// respondError writes the HTTP status and body for a service error.
// Unknown errors are logged and hidden behind a 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: ve.Error(),
			Code:    CodeValidation,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, ErrorResponse{
				Error:   m.errTag,
				Message: err.Error(),
				Code:    m.code,
			})
			return
		}
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
		Code:    CodeInternal,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: message,
		Code:    CodeValidation,
	})
}

func unauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: "user not authenticated",
		Code:    CodeUnauthenticated,
	})
}
