package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/config"
	"github.com/tripmate/travel-booking/internal/database"
	"github.com/tripmate/travel-booking/internal/models"
)

// Prints the payment audit trail of one reservation, or the most recent
// amount mismatches when no reservation is given.
func main() {
	var reservationID int64
	var limit int
	flag.Int64Var(&reservationID, "reservation", 0, "show the audit trail of this reservation")
	flag.IntVar(&limit, "limit", 50, "number of mismatches to list")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	db, err := database.NewConnection(config.DatabaseConfig{URL: dbURL, MaxConnections: 2, MaxIdleConnections: 1})
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewPaymentAuditRepository(db.DB, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var audits []*models.PaymentAudit
	if reservationID > 0 {
		audits, err = repo.GetByReservationID(ctx, reservationID)
	} else {
		audits, err = repo.GetAmountMismatches(ctx, limit)
	}
	if err != nil {
		logger.Fatalf("failed to load audits: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRESERVATION\tEVENT\tINTENT\tEXPECTED\tRECEIVED\tERROR")
	for _, a := range audits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.CreatedAt.Format(time.RFC3339),
			orDash(a.ReservationID),
			a.EventType,
			orDash(a.PaymentIntentID),
			orDash(a.ExpectedAmount),
			orDash(a.ReceivedAmount),
			orDash(a.ErrorMessage),
		)
	}
	w.Flush()
}

func orDash[T any](v *T) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
