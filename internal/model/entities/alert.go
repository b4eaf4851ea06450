package entities

import "time"

// AlertType classifies what triggered an alert.
type AlertType string

const (
	AlertDensity   AlertType = "density"
	AlertMovement  AlertType = "movement"
	AlertSound     AlertType = "sound"
	AlertEmergency AlertType = "emergency"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Alert is raised by the density engine; ownership moves to the alert store.
type Alert struct {
	ID            string      `json:"id"`
	Type          AlertType   `json:"type"`
	Severity      int         `json:"severity"` // 1..5
	AffectedZones []string    `json:"affectedZones"`
	Status        AlertStatus `json:"status"`
	Message       string      `json:"message"`
	Timestamp     time.Time   `json:"timestamp"`
}
