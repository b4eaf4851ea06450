package app

import (
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

// ZoneView is a zone with its latest density sample, if any.
type ZoneView struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Capacity  int                  `json:"capacity"`
	RiskLevel int                  `json:"riskLevel"`
	Density   *model.DensitySample `json:"density,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

type healthStatus struct {
	Status          string  `json:"status"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	AlertStoreOK    bool    `json:"alert_store_ok"`
	BreakerClosed   bool    `json:"breaker_closed"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec"`
}

func newZoneView(z model.Zone, latest map[string]model.DensitySample) ZoneView {
	v := ZoneView{ID: z.ID, Name: z.Name, Capacity: z.Capacity, RiskLevel: z.RiskLevel}
	if s, ok := latest[z.ID]; ok {
		v.Density = &s
	}
	return v
}
