package density

import (
	"fmt"
	"strconv"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/entities"
)

const (
	ThresholdHigh     = 80.0
	ThresholdCritical = 90.0

	SeverityHigh     = 3
	SeverityCritical = 5
)

// Evaluate maps a density sample to at most one alert. It applies no
// suppression: every qualifying sample yields an alert.
// The returned alert has no ID; the caller assigns one.
func Evaluate(sample model.DensitySample, zone model.Zone) *model.Alert {
	var (
		severity int
		message  string
	)
	v := strconv.FormatFloat(sample.Value, 'f', -1, 64)
	switch {
	case sample.Value >= ThresholdCritical:
		severity = SeverityCritical
		message = fmt.Sprintf("Critical density level (%s%%) in %s!", v, zone.Name)
	case sample.Value >= ThresholdHigh:
		severity = SeverityHigh
		message = fmt.Sprintf("High density level (%s%%) in %s.", v, zone.Name)
	default:
		return nil
	}
	return &model.Alert{
		Type:          entities.AlertDensity,
		Severity:      severity,
		AffectedZones: []string{zone.ID},
		Status:        entities.StatusActive,
		Message:       message,
		Timestamp:     sample.Timestamp,
	}
}
