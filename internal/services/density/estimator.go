package density

import (
	"math"
	"time"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

const (
	historySize     = 10
	trendRecent     = 3
	trendMinSamples = trendRecent + 1
	trendThreshold  = 5.0
)

// Estimator turns occupant counts into density samples and keeps a short
// per-zone history for trend detection. Not safe for concurrent use.
type Estimator struct {
	history map[string][]float64
}

func NewEstimator() *Estimator {
	return &Estimator{history: make(map[string][]float64)}
}

// Compute derives the occupancy percentage for zone and classifies the
// trend over the last historySize samples.
func (e *Estimator) Compute(zone model.Zone, occupants int, now time.Time) model.DensitySample {
	value := occupancyPercent(occupants, zone.Capacity)

	h := append(e.history[zone.ID], value)
	if len(h) > historySize {
		h = append([]float64(nil), h[len(h)-historySize:]...)
	}
	e.history[zone.ID] = h

	return model.DensitySample{
		ZoneID:    zone.ID,
		Timestamp: now,
		Value:     value,
		Trend:     Trend(h),
	}
}

// History returns a copy of the stored samples for a zone, oldest first.
func (e *Estimator) History(zoneID string) []float64 {
	return append([]float64(nil), e.history[zoneID]...)
}

// Trend compares the mean of the last three samples with the mean of the
// ones before them. It counts samples, not seconds, so irregular ingestion
// rates skew it.
func Trend(history []float64) model.Trend {
	if len(history) < trendMinSamples {
		return model.TrendStable
	}
	split := len(history) - trendRecent
	diff := mean(history[split:]) - mean(history[:split])
	switch {
	case diff > trendThreshold:
		return model.TrendIncreasing
	case diff < -trendThreshold:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

func occupancyPercent(occupants, capacity int) float64 {
	if capacity <= 0 || occupants <= 0 {
		return 0
	}
	pct := float64(occupants) / float64(capacity) * 100
	return math.Round(pct*10) / 10
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
