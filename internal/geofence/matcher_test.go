package geofence

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

func square(id string, minX, minY, maxX, maxY float64) model.Zone {
	return model.Zone{
		ID:       id,
		Name:     id,
		Capacity: 100,
		Boundary: orb.Polygon{orb.Ring{
			{minX, minY}, {minX, maxY}, {maxX, maxY}, {maxX, minY}, {minX, minY},
		}},
	}
}

func TestContains(t *testing.T) {
	ring := square("z", 0, 0, 0.005, 0.005).Ring()

	tests := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"centre", orb.Point{0.0025, 0.0025}, true},
		{"near corner", orb.Point{0.0001, 0.0049}, true},
		{"left of ring", orb.Point{-0.001, 0.0025}, false},
		{"above ring", orb.Point{0.0025, 0.006}, false},
		{"far away", orb.Point{12.5, 41.9}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Contains(ring, tc.p))
		})
	}
}

func TestContains_Concave(t *testing.T) {
	// U shape opening upwards; the notch is outside.
	ring := orb.Ring{{0, 0}, {3, 0}, {3, 3}, {2, 3}, {2, 1}, {1, 1}, {1, 3}, {0, 3}, {0, 0}}

	assert.True(t, Contains(ring, orb.Point{0.5, 2}))
	assert.True(t, Contains(ring, orb.Point{2.5, 2}))
	assert.True(t, Contains(ring, orb.Point{1.5, 0.5}))
	assert.False(t, Contains(ring, orb.Point{1.5, 2}))
}

func TestContains_EmptyRing(t *testing.T) {
	assert.False(t, Contains(nil, orb.Point{0, 0}))
}

func TestMatchZone(t *testing.T) {
	zones := []model.Zone{
		square("main-stage", 0, 0, 0.005, 0.005),
		square("food-court", 0.006, 0, 0.01, 0.004),
	}

	z, ok := MatchZone(Point(0.002, 0.008), zones)
	require.True(t, ok)
	assert.Equal(t, "food-court", z.ID)

	z, ok = MatchZone(Point(0.001, 0.001), zones)
	require.True(t, ok)
	assert.Equal(t, "main-stage", z.ID)

	z, ok = MatchZone(Point(45, 90), zones)
	assert.False(t, ok)
	assert.Nil(t, z)
}

func TestMatchZone_OverlapFirstWins(t *testing.T) {
	zones := []model.Zone{
		square("outer", 0, 0, 10, 10),
		square("inner", 2, 2, 4, 4),
	}
	z, ok := MatchZone(orb.Point{3, 3}, zones)
	require.True(t, ok)
	assert.Equal(t, "outer", z.ID)
}

func TestMatchZone_ZoneWithoutBoundary(t *testing.T) {
	zones := []model.Zone{{ID: "empty", Capacity: 1}}
	_, ok := MatchZone(orb.Point{0, 0}, zones)
	assert.False(t, ok)
}
