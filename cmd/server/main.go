package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/config"
	"github.com/tripmate/travel-booking/internal/database"
	"github.com/tripmate/travel-booking/internal/handlers"
	"github.com/tripmate/travel-booking/internal/middleware"
	"github.com/tripmate/travel-booking/internal/services"
	"github.com/tripmate/travel-booking/internal/utils"
	"github.com/tripmate/travel-booking/pkg/jwt"
	"github.com/tripmate/travel-booking/pkg/payment"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting TripMate booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	// Package-level entries (middleware) share the same output
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	cache := config.NewRedisClient(cfg.Redis)
	if cache == nil {
		logger.Warn("Catalog cache disabled or unreachable, reading items from database")
	} else {
		defer cache.Close()
		logger.WithField("addr", cfg.Redis.Addr).Info("Catalog cache connected")
	}

	var publisher services.EventPublisher
	if cfg.AMQP.URL != "" {
		publisher = services.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		logger.WithField("queue", cfg.AMQP.Queue).Info("Reservation events published to RabbitMQ")
	} else {
		publisher = services.NewLogPublisher(logger)
		logger.Info("RABBITMQ_URL not set, reservation events are logged only")
	}

	// Repositories
	userRepo := database.NewUserRepository(db.DB)
	catalogRepo := database.NewCatalogRepository(db.DB)
	reservationRepo := database.NewReservationRepository(db.DB, logger)
	auditRepo := database.NewPaymentAuditRepository(db.DB, logger)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	gateway := payment.NewStripeGateway(cfg.Stripe.Payment(30*time.Second), logger)

	catalogService := services.NewCatalogService(catalogRepo, cache, cfg.Redis.CatalogCacheTTL, logger)
	reservationService := services.NewReservationService(
		catalogService,
		reservationRepo,
		gateway,
		auditRepo,
		publisher,
		userRepo,
		logger,
	)
	authService := services.NewAuthService(userRepo, jwtService, cfg.Security.BcryptCost, logger)

	cronService := services.NewCronService(reservationService, logger)
	if err := cronService.Start(cfg.Jobs.HoldExpirySchedule); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     append(cfg.CORS.AllowedHeaders, utils.RequestIDHeader),
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: !containsWildcard(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))

	(&handlers.Router{
		Auth:         handlers.NewAuthHandler(authService, logger),
		Catalog:      handlers.NewCatalogHandler(catalogService, logger),
		Reservations: handlers.NewReservationHandler(reservationService, logger),
		JWT:          jwtService,
		CreateLimiter: middleware.NewRateLimiter(
			cfg.RateLimit.Requests,
			time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		),
	}).Register(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // settlement waits on the gateway
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         utils.GetRealIP(c),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if requestID := c.GetHeader(utils.RequestIDHeader); requestID != "" {
			fields["request_id"] = requestID
		}
		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *database.PostgresDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := db.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
