package bookingflow

import (
	"fmt"

	"github.com/tripmate/travel-booking/internal/models"
)

// Feature parameterizes the flow for one product area. Features differ only
// in item kind and the backend endpoints they call.
type Feature struct {
	Name string
	Kind models.ItemKind
	// BasePath is the feature's API prefix, e.g. "/attractions"
	BasePath string
}

// The four booking features of the app
var (
	Attraction          = NewFeature("attraction", models.ItemKindAttraction, "/attractions")
	LocalExperience     = NewFeature("local-experience", models.ItemKindExperience, "/experiences")
	Trip                = NewFeature("trip", models.ItemKindTrip, "/trips")
	PremiumSubscription = NewFeature("premium-subscription", models.ItemKindSubscription, "/subscriptions")
)

// NewFeature creates a feature definition
func NewFeature(name string, kind models.ItemKind, basePath string) Feature {
	return Feature{Name: name, Kind: kind, BasePath: basePath}
}

// ItemPath is the catalog endpoint for one item
func (f Feature) ItemPath(itemID int64) string {
	return fmt.Sprintf("%s/items/%d", f.BasePath, itemID)
}

// ReservationsPath is the create-reservation endpoint
func (f Feature) ReservationsPath() string {
	return f.BasePath + "/reservations"
}

// SettlePath is the settlement endpoint for one reservation
func (f Feature) SettlePath(reservationID int64) string {
	return fmt.Sprintf("%s/reservations/%d/settle", f.BasePath, reservationID)
}

// PaidPath is the list-paid-reservations endpoint
func (f Feature) PaidPath() string {
	return f.BasePath + "/reservations/paid"
}

// Features lists every built-in feature
func Features() []Feature {
	return []Feature{Attraction, LocalExperience, Trip, PremiumSubscription}
}

// FeatureByName looks up a built-in feature
func FeatureByName(name string) (Feature, bool) {
	for _, f := range Features() {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}
