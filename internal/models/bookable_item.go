package models

import (
	"fmt"
	"time"
)

// ItemKind identifies which feature area a bookable item belongs to
type ItemKind string

const (
	ItemKindAttraction   ItemKind = "attraction"
	ItemKindExperience   ItemKind = "experience"
	ItemKindTrip         ItemKind = "trip"
	ItemKindSubscription ItemKind = "subscription"
)

// IsValid reports whether k is a known item kind
func (k ItemKind) IsValid() bool {
	switch k {
	case ItemKindAttraction, ItemKindExperience, ItemKindTrip, ItemKindSubscription:
		return true
	}
	return false
}

// BookableItem is a purchasable unit: an attraction ticket, a local experience,
// a trip or a premium subscription tier. Read-only to the booking flow.
type BookableItem struct {
	ID           int64     `json:"id" db:"id"`
	Kind         ItemKind  `json:"kind" db:"kind"`
	Title        string    `json:"title" db:"title"`
	PriceCents   int64     `json:"price_cents" db:"price_cents"`
	Currency     string    `json:"currency" db:"currency"`
	MinGroupSize *int      `json:"min_group_size,omitempty" db:"min_group_size"`
	MaxGroupSize *int      `json:"max_group_size,omitempty" db:"max_group_size"`
	Capacity     *int      `json:"capacity,omitempty" db:"capacity"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HasGroupPricing reports whether the item defines participant bounds
func (i *BookableItem) HasGroupPricing() bool {
	return i.MinGroupSize != nil || i.MaxGroupSize != nil
}

// ParticipantError is returned when a participant count violates the item's bounds
type ParticipantError struct {
	Requested int
	Min       int
	Max       int
	Message   string
}

func (e *ParticipantError) Error() string {
	return e.Message
}

// NormalizeParticipants validates a requested participant count against the
// item's group bounds and returns the count to book. Zero means "not chosen":
// it becomes the group minimum, or 1 when the item has no group pricing.
func (i *BookableItem) NormalizeParticipants(requested int) (int, error) {
	if requested < 0 {
		return 0, &ParticipantError{
			Requested: requested,
			Message:   fmt.Sprintf("participant count cannot be negative (got %d)", requested),
		}
	}

	if !i.HasGroupPricing() {
		if requested > 1 {
			return 0, &ParticipantError{
				Requested: requested,
				Min:       1,
				Max:       1,
				Message:   fmt.Sprintf("%s has no group pricing, so the participant count is fixed at 1 (requested %d)", i.Title, requested),
			}
		}
		return 1, nil
	}

	minSize, maxSize := 1, 0
	if i.MinGroupSize != nil {
		minSize = *i.MinGroupSize
	}
	if i.MaxGroupSize != nil {
		maxSize = *i.MaxGroupSize
	}

	if requested == 0 {
		requested = minSize
	}

	if requested < minSize || (maxSize > 0 && requested > maxSize) {
		msg := fmt.Sprintf("group size must be at least %d (requested %d)", minSize, requested)
		if maxSize > 0 {
			msg = fmt.Sprintf("group size must be between %d and %d (requested %d)", minSize, maxSize, requested)
		}
		return 0, &ParticipantError{Requested: requested, Min: minSize, Max: maxSize, Message: msg}
	}

	return requested, nil
}

// TotalCents returns the amount charged for the given number of participants
func (i *BookableItem) TotalCents(participants int) int64 {
	return i.PriceCents * int64(participants)
}
