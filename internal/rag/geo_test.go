package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_KnownDistances(t *testing.T) {
	// Jakarta (Monas) to Bandung (Gedung Sate), roughly 118 km.
	d := Haversine(-6.1754, 106.8272, -6.9025, 107.6186)
	assert.InDelta(t, 118, d, 5)

	// Jakarta to Surabaya, roughly 660 km.
	d = Haversine(-6.2088, 106.8456, -7.2575, 112.7521)
	assert.InDelta(t, 660, d, 15)
}

func TestHaversine_ZeroForSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, Haversine(-6.2, 106.8, -6.2, 106.8))
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Haversine(-6.2, 106.8, -7.25, 112.75)
	b := Haversine(-7.25, 112.75, -6.2, 106.8)
	assert.InDelta(t, a, b, 1e-9)
}
