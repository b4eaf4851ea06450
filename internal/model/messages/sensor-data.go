package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrInvalidReading = errors.New("invalid sensor reading")

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UnmarshalJSON accepts {"lat":..,"lng":..} or a GeoJSON style [lng, lat] pair.
func (l *Location) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(b, &pair); err != nil {
			return fmt.Errorf("%w: location: %v", ErrInvalidReading, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("%w: location pair has %d elements, want 2", ErrInvalidReading, len(pair))
		}
		l.Lng, l.Lat = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("%w: location: %v", ErrInvalidReading, err)
	}
	if obj.Lat == nil || obj.Lng == nil {
		return fmt.Errorf("%w: location needs lat and lng", ErrInvalidReading)
	}
	l.Lat, l.Lng = *obj.Lat, *obj.Lng
	return nil
}

type Acceleration struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Motion struct {
	Acceleration Acceleration `json:"acceleration"`
}

type Audio struct {
	Level float64 `json:"level"`
}

// SensorReading is one geolocated sample from a real or simulated device.
type SensorReading struct {
	DeviceID  string    `json:"deviceId"`
	Timestamp time.Time `json:"timestamp"`
	Location  Location  `json:"location"`
	Motion    *Motion   `json:"motion,omitempty"`
	Audio     *Audio    `json:"audio,omitempty"`
}

// readingWire accepts RFC3339 or unix-millisecond timestamps.
type readingWire struct {
	DeviceID  string          `json:"deviceId"`
	Timestamp json.RawMessage `json:"timestamp"`
	Location  *Location       `json:"location"`
	Motion    *Motion         `json:"motion"`
	Audio     *Audio          `json:"audio"`
}

// DecodeSensorReading parses and validates a wire payload.
func DecodeSensorReading(payload []byte) (SensorReading, error) {
	var w readingWire
	if err := json.Unmarshal(payload, &w); err != nil {
		if errors.Is(err, ErrInvalidReading) {
			return SensorReading{}, err
		}
		return SensorReading{}, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	if w.Location == nil {
		return SensorReading{}, fmt.Errorf("%w: missing location", ErrInvalidReading)
	}
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return SensorReading{}, err
	}
	r := SensorReading{
		DeviceID:  w.DeviceID,
		Timestamp: ts,
		Location:  *w.Location,
		Motion:    w.Motion,
		Audio:     w.Audio,
	}
	if err := r.Validate(); err != nil {
		return SensorReading{}, err
	}
	return r, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidReading, err)
		}
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidReading, err)
		}
		return t.UTC(), nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidReading, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Validate checks identity and coordinate ranges.
func (r SensorReading) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return fmt.Errorf("%w: missing device id", ErrInvalidReading)
	}
	lat, lng := r.Location.Lat, r.Location.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: non-finite location", ErrInvalidReading)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: location out of range (%f, %f)", ErrInvalidReading, lat, lng)
	}
	return nil
}
