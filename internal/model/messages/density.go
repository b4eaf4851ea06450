package messages

import "time"

// Trend classifies recent against prior average occupancy.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// DensitySample is produced once per ingested reading.
type DensitySample struct {
	ZoneID    string    `json:"zoneId"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"` // occupancy percent, one decimal
	Trend     Trend     `json:"trend"`
}
