package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/tripmate/travel-booking/internal/middleware"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/jwt"
)

const itemKindKey = "item_kind"

// FeatureRoute binds an item kind to its API prefix
type FeatureRoute struct {
	Kind     models.ItemKind
	BasePath string
}

// DefaultFeatureRoutes are the booking features served by the API
var DefaultFeatureRoutes = []FeatureRoute{
	{Kind: models.ItemKindAttraction, BasePath: "/attractions"},
	{Kind: models.ItemKindExperience, BasePath: "/experiences"},
	{Kind: models.ItemKindTrip, BasePath: "/trips"},
	{Kind: models.ItemKindSubscription, BasePath: "/subscriptions"},
}

// Router wires every handler under /api/v1
type Router struct {
	Auth         *AuthHandler
	Catalog      *CatalogHandler
	Reservations *ReservationHandler
	JWT          *jwt.Service
	// CreateLimiter throttles reservation creation; nil disables it
	CreateLimiter *middleware.RateLimiter
	Features      []FeatureRoute
}

// Register mounts the API routes on the engine
func (r *Router) Register(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", r.Auth.Register)
		auth.POST("/login", r.Auth.Login)
		auth.POST("/refresh", r.Auth.RefreshToken)
	}

	features := r.Features
	if len(features) == 0 {
		features = DefaultFeatureRoutes
	}

	authMiddleware := middleware.AuthMiddleware(r.JWT)
	createChain := []gin.HandlerFunc{authMiddleware}
	if r.CreateLimiter != nil {
		createChain = append(createChain, r.CreateLimiter.Middleware())
	}
	createChain = append(createChain, r.Reservations.Create)

	for _, feature := range features {
		group := v1.Group(feature.BasePath, withItemKind(feature.Kind))

		group.GET("/items", r.Catalog.ListItems)
		group.GET("/items/:item_id", r.Catalog.GetItem)

		reservations := group.Group("/reservations")
		{
			reservations.POST("", createChain...)
			reservations.GET("/paid", authMiddleware, r.Reservations.ListPaid)
			reservations.POST("/:reservation_id/settle", authMiddleware, r.Reservations.Settle)
		}
	}
}

func withItemKind(kind models.ItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(itemKindKey, kind)
		c.Next()
	}
}

func itemKind(c *gin.Context) models.ItemKind {
	if kind, ok := c.Get(itemKindKey); ok {
		if k, ok := kind.(models.ItemKind); ok {
			return k
		}
	}
	return ""
}
