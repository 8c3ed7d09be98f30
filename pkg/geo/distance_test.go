package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name            string
		lat1, lng1      float64
		lat2, lng2      float64
		want, tolerance float64
	}{
		{"same point", 40.0, -74.0, 40.0, -74.0, 0, 1e-9},
		{"new york to philadelphia", 40.7128, -74.0060, 39.9526, -75.1652, 129.6, 1.0},
		{"one degree of latitude", 0, 0, 1, 0, 111.2, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2), tt.tolerance)
		})
	}
}

func TestMapsLink(t *testing.T) {
	assert.Equal(t, "https://maps.google.com/?q=40,-74.5", MapsLink(40, -74.5))
	assert.Equal(t, "40.25, -74", FormatPair(40.25, -74))
}
