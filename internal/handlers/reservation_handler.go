package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/middleware"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/internal/utils"
)

// Reservations creates, settles and lists reservations
type Reservations interface {
	CreateReservation(ctx context.Context, userID uuid.UUID, kind models.ItemKind, req *models.CreateReservationRequest, meta models.RequestMeta) (*models.ReservationIntent, error)
	SettleReservation(ctx context.Context, userID uuid.UUID, kind models.ItemKind, reservationID int64, req *models.SettleReservationRequest, meta models.RequestMeta) (*models.SettlementResult, error)
	ListPaid(ctx context.Context, userID uuid.UUID, kind models.ItemKind) ([]models.PaidBooking, error)
}

// ReservationHandler handles reservation endpoints of every booking feature
type ReservationHandler struct {
	reservations Reservations
	logger       *logrus.Logger
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservations Reservations, logger *logrus.Logger) *ReservationHandler {
	return &ReservationHandler{reservations: reservations, logger: logger}
}

// ============================================================================
// CREATE - POST /api/v1/{feature}/reservations
// ============================================================================

// Create creates a pending reservation and returns the payment intent's
// client secret
func (h *ReservationHandler) Create(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		unauthenticated(c)
		return
	}

	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	intent, err := h.reservations.CreateReservation(c.Request.Context(), userCtx.UserID, itemKind(c), &req, utils.RequestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, intent)
}

// ============================================================================
// SETTLE - POST /api/v1/{feature}/reservations/:reservation_id/settle
// ============================================================================

// Settle marks a reservation paid once the gateway confirms the payment
func (h *ReservationHandler) Settle(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		unauthenticated(c)
		return
	}

	reservationID, ok := int64Param(c, "reservation_id")
	if !ok {
		return
	}

	var req models.SettleReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.reservations.SettleReservation(c.Request.Context(), userCtx.UserID, itemKind(c), reservationID, &req, utils.RequestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ============================================================================
// LIST PAID - GET /api/v1/{feature}/reservations/paid
// ============================================================================

// ListPaid returns the caller's paid reservations for the feature
func (h *ReservationHandler) ListPaid(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		unauthenticated(c)
		return
	}

	paid, err := h.reservations.ListPaid(c.Request.Context(), userCtx.UserID, itemKind(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if paid == nil {
		paid = []models.PaidBooking{}
	}

	c.JSON(http.StatusOK, models.PaidReservationsResponse{Reservations: paid})
}
