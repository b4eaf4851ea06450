package density

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
)

var t0 = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

func square(minLng, minLat, maxLng, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLng, minLat}, {minLng, maxLat}, {maxLng, maxLat}, {maxLng, minLat}, {minLng, minLat},
	}}
}

func mainStage() model.Zone {
	return model.Zone{ID: "main-stage", Name: "Main Stage", Boundary: square(0, 0, 0.005, 0.005), Capacity: 1000, RiskLevel: 3}
}

func foodCourt() model.Zone {
	return model.Zone{ID: "food-court", Name: "Food Court", Boundary: square(0.006, 0, 0.01, 0.004), Capacity: 500, RiskLevel: 2}
}

func readingAt(device string, lat, lng float64, ts time.Time) model.SensorReading {
	return model.SensorReading{DeviceID: device, Timestamp: ts, Location: messages.Location{Lat: lat, Lng: lng}}
}

func stageReading(i int, ts time.Time) model.SensorReading {
	return readingAt(fmt.Sprintf("dev-%d", i), 0.0025, 0.0025, ts)
}

type fakeZones struct {
	zones []model.Zone
	err   error
}

func (f *fakeZones) ListZones(context.Context) ([]model.Zone, error) {
	return f.zones, f.err
}

type fakeAlerts struct {
	mu    sync.Mutex
	saved []model.Alert
	err   error
}

func (f *fakeAlerts) CreateAlert(_ context.Context, a model.Alert) (model.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Alert{}, f.err
	}
	f.saved = append(f.saved, a)
	return a, nil
}

type fakeSink struct {
	mu      sync.Mutex
	samples []model.DensitySample
	alerts  []model.Alert
}

func (f *fakeSink) PublishDensity(_ context.Context, s model.DensitySample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakeSink) PublishAlert(_ context.Context, a model.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeSink) sampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}
