package density

import (
	"context"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

// ZoneStore is the source of monitored zones. It may return a different
// set on every call; the engine re-reads it per reading.
type ZoneStore interface {
	ListZones(ctx context.Context) ([]model.Zone, error)
}

// AlertStore persists alerts and may enrich them (e.g. normalise fields).
type AlertStore interface {
	CreateAlert(ctx context.Context, alert model.Alert) (model.Alert, error)
}

// Sink receives every density sample and every emitted alert.
type Sink interface {
	PublishDensity(ctx context.Context, sample model.DensitySample) error
	PublishAlert(ctx context.Context, alert model.Alert) error
}
