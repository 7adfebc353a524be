package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestBookableItem_NormalizeParticipants(t *testing.T) {
	single := &BookableItem{Title: "City Museum"}
	group := &BookableItem{Title: "Cooking Class", MinGroupSize: intPtr(4), MaxGroupSize: intPtr(12)}
	openEnded := &BookableItem{Title: "Harbour Cruise", MinGroupSize: intPtr(2)}

	tests := []struct {
		name      string
		item      *BookableItem
		requested int
		want      int
		wantErr   string
	}{
		{"SingleDefault", single, 0, 1, ""},
		{"SingleOne", single, 1, 1, ""},
		{"SingleGroup", single, 3, 0, "City Museum has no group pricing, so the participant count is fixed at 1 (requested 3)"},
		{"Negative", single, -2, 0, "participant count cannot be negative (got -2)"},
		{"GroupDefaultsToMin", group, 0, 4, ""},
		{"GroupInRange", group, 12, 12, ""},
		{"GroupBelowMin", group, 3, 0, "group size must be between 4 and 12 (requested 3)"},
		{"GroupAboveMax", group, 13, 0, "group size must be between 4 and 12 (requested 13)"},
		{"NoUpperBound", openEnded, 40, 40, ""},
		{"NoUpperBoundBelowMin", openEnded, 1, 0, "group size must be at least 2 (requested 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.item.NormalizeParticipants(tt.requested)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.EqualError(t, err, tt.wantErr)
				var pe *ParticipantError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.requested, pe.Requested)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBookableItem_TotalCents(t *testing.T) {
	item := &BookableItem{PriceCents: 3000}
	assert.Equal(t, int64(12000), item.TotalCents(4))
}
