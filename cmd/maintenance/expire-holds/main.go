package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/config"
	"github.com/tripmate/travel-booking/internal/database"
	"github.com/tripmate/travel-booking/internal/services"
	"github.com/tripmate/travel-booking/pkg/payment"
)

// Cancels pending reservations whose capacity hold has lapsed, together with
// their payment intents. Holds whose payment was already captured are kept
// for the customer to settle.
func main() {
	var dbURLFlag string
	var olderThan time.Duration
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.DurationVar(&olderThan, "older-than", services.PendingHoldWindow, "cancel pending reservations older than this")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Optional .env keeps secrets off the command line
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		logger.Fatal("STRIPE_SECRET_KEY is not set")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey: stripeKey,
		APIURL:    os.Getenv("STRIPE_API_URL"),
		Timeout:   30 * time.Second,
	}, logger)
	reservations := services.NewReservationService(
		nil,
		database.NewReservationRepository(db.DB, logger),
		gateway,
		database.NewPaymentAuditRepository(db.DB, logger),
		nil,
		nil,
		logger,
	)

	cutoff := time.Now().Add(-olderThan)
	released, err := reservations.ReleaseStaleHolds(ctx, cutoff)
	if err != nil {
		logger.Fatalf("failed to expire holds: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"cutoff":   cutoff.Format(time.RFC3339),
		"released": released,
	}).Info("Expired pending reservation holds")
}
