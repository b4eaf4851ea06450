package broadcast

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

// PointWriter is the part of the non-blocking api.WriteAPI the sink needs.
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
	Errors() <-chan error
}

// InfluxSink writes density history asynchronously and remembers when the
// last write error happened, for readiness checks.
type InfluxSink struct {
	api PointWriter

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

func NewInfluxSink(w PointWriter) *InfluxSink {
	s := &InfluxSink{api: w}
	go func() {
		for err := range w.Errors() {
			if err == nil {
				continue
			}
			s.mu.Lock()
			s.lastErr = time.Now()
			s.mu.Unlock()
			log.Warn().Err(err).Msg("influx write error")
		}
	}()
	return s
}

func (s *InfluxSink) PublishDensity(_ context.Context, sample model.DensitySample) error {
	s.api.WritePoint(DensityToPoint(sample))
	s.mark()
	return nil
}

func (s *InfluxSink) PublishAlert(_ context.Context, alert model.Alert) error {
	for _, p := range AlertToPoints(alert) {
		s.api.WritePoint(p)
	}
	s.mark()
	return nil
}

func (s *InfluxSink) mark() {
	s.mu.Lock()
	s.written++
	s.mu.Unlock()
}

// LastErrorAge is the time since the last write error, or a large value
// when none happened.
func (s *InfluxSink) LastErrorAge() time.Duration {
	if s == nil {
		return 99999 * time.Hour
	}
	s.mu.RLock()
	t := s.lastErr
	s.mu.RUnlock()
	if t.IsZero() {
		return 99999 * time.Hour
	}
	return time.Since(t)
}

func (s *InfluxSink) Written() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.written
}

func (s *InfluxSink) Flush() {
	s.api.Flush()
}

func DensityToPoint(sample model.DensitySample) *write.Point {
	return influxdb2.NewPoint("zone_density",
		map[string]string{
			"zone_id": sample.ZoneID,
			"trend":   string(sample.Trend),
		},
		map[string]interface{}{
			"value": sample.Value,
		},
		sample.Timestamp)
}

// AlertToPoints returns one density_alert point per affected zone.
func AlertToPoints(alert model.Alert) []*write.Point {
	out := make([]*write.Point, 0, len(alert.AffectedZones))
	for _, z := range alert.AffectedZones {
		out = append(out, influxdb2.NewPoint("density_alert",
			map[string]string{
				"zone_id": z,
				"type":    string(alert.Type),
				"status":  string(alert.Status),
			},
			map[string]interface{}{
				"severity": int64(alert.Severity),
				"message":  alert.Message,
				"alert_id": alert.ID,
			},
			alert.Timestamp))
	}
	return out
}
