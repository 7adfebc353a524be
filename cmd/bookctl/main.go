package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/bookingapi"
	"github.com/tripmate/travel-booking/internal/bookingflow"
	"github.com/tripmate/travel-booking/internal/config"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/payment"
)

const usage = `bookctl drives the booking flow against a running backend.

Usage:
  bookctl register -email EMAIL -password PASSWORD [-name NAME]
  bookctl login    -email EMAIL -password PASSWORD
  bookctl show     -feature FEATURE -item ID
  bookctl book     -feature FEATURE -item ID [-participants N] [-payment-method pm_card_visa]
  bookctl paid     -feature FEATURE

Features: attraction, local-experience, trip, premium-subscription
The access token is read from BOOKING_API_TOKEN.
`

type app struct {
	cfg     *config.ClientConfig
	logger  *logrus.Logger
	session *bookingapi.Session
	client  *bookingapi.Client
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	session := bookingapi.NewSession(cfg.APIToken)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		session: session,
		client:  bookingapi.NewClient(cfg.APIURL, session, cfg.StepTimeout, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "register":
		err = a.register(ctx, args)
	case "login":
		err = a.login(ctx, args)
	case "show":
		err = a.show(ctx, args)
	case "book":
		err = a.book(ctx, args)
	case "paid":
		err = a.paid(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		var flowErr *bookingflow.FlowError
		if errors.As(err, &flowErr) {
			fmt.Fprintln(os.Stderr, flowErr.UserMessage())
			logger.WithError(err).WithField("kind", flowErr.Kind).Debug("Command failed")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name")
	fs.Parse(args)

	resp, err := a.client.Register(ctx, models.RegisterRequest{Email: *email, Password: *password, DisplayName: *name})
	if err != nil {
		return err
	}
	printToken(resp)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	resp, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	printToken(resp)
	return nil
}

func printToken(resp *models.TokenResponse) {
	fmt.Printf("export BOOKING_API_TOKEN=%s\n", resp.AccessToken)
	fmt.Fprintf(os.Stderr, "signed in as %s, token valid until %s\n", resp.User.Email, resp.ExpiresAt.Format(time.RFC3339))
}

func (a *app) flow(feature bookingflow.Feature, paymentMethod string) *bookingflow.Flow {
	confirmer := payment.NewStripeConfirmer(a.cfg.Stripe.Payment(a.cfg.StepTimeout), a.logger)
	return bookingflow.NewFlow(feature, bookingflow.Dependencies{
		Catalog: a.client,
		Backend: a.client,
		Gateway: confirmer,
		Session: a.session,
		ConfirmParams: payment.ConfirmParams{
			PaymentMethod: paymentMethod,
			ReturnURL:     a.cfg.Stripe.ReturnURL,
		},
	}, bookingflow.Config{StepTimeout: a.cfg.StepTimeout}, a.logger)
}

func featureFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	feature := fs.String("feature", bookingflow.Attraction.Name, "booking feature")
	return fs, feature
}

func resolveFeature(name string) (bookingflow.Feature, error) {
	feature, ok := bookingflow.FeatureByName(name)
	if !ok {
		names := make([]string, 0, 4)
		for _, f := range bookingflow.Features() {
			names = append(names, f.Name)
		}
		return bookingflow.Feature{}, fmt.Errorf("unknown feature %q (want one of %s)", name, strings.Join(names, ", "))
	}
	return feature, nil
}

func (a *app) show(ctx context.Context, args []string) error {
	fs, featureName := featureFlags("show")
	itemID := fs.Int64("item", 0, "item id")
	fs.Parse(args)

	feature, err := resolveFeature(*featureName)
	if err != nil {
		return err
	}

	view, err := a.flow(feature, "").Mount(ctx, *itemID)
	if err != nil {
		return err
	}
	printItem(view)
	return nil
}

func printItem(view *bookingflow.ItemView) {
	item := view.Item
	fmt.Printf("%s (#%d)\n", item.Title, item.ID)
	fmt.Printf("  price: %d.%02d %s per participant\n", item.PriceCents/100, item.PriceCents%100, strings.ToUpper(item.Currency))
	if item.HasGroupPricing() {
		minSize, maxSize := "1", "unbounded"
		if item.MinGroupSize != nil {
			minSize = fmt.Sprint(*item.MinGroupSize)
		}
		if item.MaxGroupSize != nil {
			maxSize = fmt.Sprint(*item.MaxGroupSize)
		}
		fmt.Printf("  group size: %s to %s\n", minSize, maxSize)
	}
	fmt.Printf("  [%s]\n", view.CTA)
}

func (a *app) book(ctx context.Context, args []string) error {
	fs, featureName := featureFlags("book")
	itemID := fs.Int64("item", 0, "item id")
	participants := fs.Int("participants", 0, "number of participants (0 picks the minimum)")
	paymentMethod := fs.String("payment-method", "pm_card_visa", "payment method to confirm with")
	fs.Parse(args)

	feature, err := resolveFeature(*featureName)
	if err != nil {
		return err
	}

	flow := a.flow(feature, *paymentMethod)
	flow.OnTransition(func(itemID int64, from, to bookingflow.State) {
		fmt.Fprintf(os.Stderr, "  %s -> %s\n", from, to)
	})

	view, err := flow.Mount(ctx, *itemID)
	if err != nil {
		return err
	}
	printItem(view)
	if view.Booked {
		fmt.Println("You have already booked this item.")
		return nil
	}

	outcome, err := flow.Book(ctx, view.Item, *participants)
	if err != nil {
		return err
	}

	switch outcome.State {
	case bookingflow.StateBooked:
		fmt.Printf("Booked! reservation #%d (payment %s)\n", outcome.ReservationID, outcome.PaymentIntentID)
	case bookingflow.StateAlreadyBooked:
		fmt.Println("You have already booked this item.")
	default:
		fmt.Printf("Booking ended in state %s\n", outcome.State)
	}
	return nil
}

func (a *app) paid(ctx context.Context, args []string) error {
	fs, featureName := featureFlags("paid")
	fs.Parse(args)

	feature, err := resolveFeature(*featureName)
	if err != nil {
		return err
	}

	bookings, err := a.client.ListPaidReservations(ctx, feature)
	if err != nil {
		return err
	}
	if len(bookings) == 0 {
		fmt.Println("No paid bookings.")
		return nil
	}
	for _, b := range bookings {
		fmt.Printf("item #%d  reservation #%d  paid %s\n", b.ItemID, b.ReservationID, b.PaidAt.Format(time.RFC3339))
	}
	return nil
}
