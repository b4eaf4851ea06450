package density

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

func TestTrend(t *testing.T) {
	cases := []struct {
		name    string
		history []float64
		want    model.Trend
	}{
		{"empty", nil, model.TrendStable},
		{"too short", []float64{10, 50, 90}, model.TrendStable},
		{"increasing", []float64{20, 60, 65, 70}, model.TrendIncreasing},
		{"decreasing", []float64{90, 90, 40, 40, 40}, model.TrendDecreasing},
		{"flat", []float64{50, 50, 50, 50}, model.TrendStable},
		{"exactly five", []float64{10, 15, 15, 15}, model.TrendStable},
		{"just over five", []float64{10, 15.1, 15.1, 15.1}, model.TrendIncreasing},
		{"two samples", []float64{10, 12}, model.TrendStable},
		{"rising after plateau", []float64{20, 20, 20, 20, 60, 65, 70}, model.TrendIncreasing},
		{"slow drift over long plateau", []float64{50, 50, 50, 50, 50, 53, 54, 55}, model.TrendStable},
		{"falling after long peak", []float64{80, 85, 90, 95, 70, 70, 70}, model.TrendDecreasing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Trend(tc.history))
		})
	}
}

func TestOccupancyPercent(t *testing.T) {
	assert.Equal(t, 30.0, occupancyPercent(3, 10))
	assert.Equal(t, 33.3, occupancyPercent(1, 3))
	assert.Equal(t, 66.7, occupancyPercent(2, 3))
	assert.Equal(t, 0.0, occupancyPercent(0, 10))
	assert.Equal(t, 0.0, occupancyPercent(5, 0))
	assert.Equal(t, 120.0, occupancyPercent(12, 10))
}

func TestEstimator_HistoryBounded(t *testing.T) {
	e := NewEstimator()
	zone := mainStage()
	for i := 1; i <= 15; i++ {
		s := e.Compute(zone, i*10, t0)
		assert.Equal(t, zone.ID, s.ZoneID)
		assert.Equal(t, t0, s.Timestamp)
	}
	h := e.History(zone.ID)
	require.Len(t, h, historySize)
	assert.Equal(t, 6.0, h[0])
	assert.Equal(t, 15.0, h[len(h)-1])
}

func TestEstimator_ComputeTrend(t *testing.T) {
	e := NewEstimator()
	zone := model.Zone{ID: "z", Name: "Z", Capacity: 100}
	var last model.DensitySample
	for _, n := range []int{20, 60, 65, 70} {
		last = e.Compute(zone, n, t0)
	}
	assert.Equal(t, 70.0, last.Value)
	assert.Equal(t, model.TrendIncreasing, last.Trend)
}
