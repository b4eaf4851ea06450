package messages

import (
	"github.com/LeonardoBeccarini/crowdsense/internal/model/entities"
)

type CommandKind string

const (
	CmdStartSimulation  CommandKind = "start-simulation"
	CmdStopSimulation   CommandKind = "stop-simulation"
	CmdAddCrowd         CommandKind = "add-crowd"
	CmdRemoveCrowd      CommandKind = "remove-crowd"
	CmdTriggerEmergency CommandKind = "trigger-emergency"
	CmdAcknowledgeAlert CommandKind = "acknowledge-alert"
	CmdResolveAlert     CommandKind = "resolve-alert"
)

// ControlCommand drives the simulator and alert lifecycle. RequestID, when
// set, lets consumers drop redelivered copies.
type ControlCommand struct {
	RequestID string      `json:"requestId,omitempty"`
	Command   CommandKind `json:"command"`
	ZoneID    string      `json:"zoneId,omitempty"`
	Count     int         `json:"count,omitempty"`
	AlertID   string      `json:"alertId,omitempty"`
}

// AlertUpdate is broadcast when an alert changes status.
type AlertUpdate struct {
	ID     string               `json:"id"`
	Status entities.AlertStatus `json:"status"`
}
