package model

import (
	"github.com/LeonardoBeccarini/crowdsense/internal/model/entities"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
)

// Aliases exposing the common types to services

type (
	SensorReading  = messages.SensorReading
	DensitySample  = messages.DensitySample
	ControlCommand = messages.ControlCommand
	Trend          = messages.Trend
	Zone           = entities.Zone
	Alert          = entities.Alert
)

const (
	TrendIncreasing = messages.TrendIncreasing
	TrendDecreasing = messages.TrendDecreasing
	TrendStable     = messages.TrendStable
)
