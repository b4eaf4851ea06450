package density

import (
	"time"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

type windowEntry struct {
	deviceID  string
	timestamp time.Time
}

// ReadingWindow keeps, per zone, the readings seen within the horizon.
// Eviction only happens on Sweep, never on Record.
// Not safe for concurrent use; the Engine serialises access.
type ReadingWindow struct {
	horizon time.Duration
	buffer  map[string][]windowEntry // zoneID -> arrival order
	refs    map[string]map[string]int // zoneID -> deviceID -> buffered entries
}

func NewReadingWindow(horizon time.Duration) *ReadingWindow {
	return &ReadingWindow{
		horizon: horizon,
		buffer:  make(map[string][]windowEntry),
		refs:    make(map[string]map[string]int),
	}
}

// Record appends a reading to the zone buffer.
func (w *ReadingWindow) Record(zoneID string, r model.SensorReading) {
	w.buffer[zoneID] = append(w.buffer[zoneID], windowEntry{deviceID: r.DeviceID, timestamp: r.Timestamp})
	refs := w.refs[zoneID]
	if refs == nil {
		refs = make(map[string]int)
		w.refs[zoneID] = refs
	}
	refs[r.DeviceID]++
}

// OccupantCount returns the number of distinct devices in the zone buffer.
func (w *ReadingWindow) OccupantCount(zoneID string) int {
	return len(w.refs[zoneID])
}

// Sweep drops entries not newer than now-horizon from every zone and
// returns how many were removed.
func (w *ReadingWindow) Sweep(now time.Time) int {
	cutoff := now.Add(-w.horizon)
	removed := 0
	for zoneID, entries := range w.buffer {
		refs := w.refs[zoneID]
		kept := entries[:0]
		for _, e := range entries {
			if e.timestamp.After(cutoff) {
				kept = append(kept, e)
				continue
			}
			refs[e.deviceID]--
			if refs[e.deviceID] <= 0 {
				delete(refs, e.deviceID)
			}
		}
		removed += len(entries) - len(kept)
		if len(kept) == 0 {
			delete(w.buffer, zoneID)
			delete(w.refs, zoneID)
			continue
		}
		// copy so the old backing array can be released
		w.buffer[zoneID] = append([]windowEntry(nil), kept...)
	}
	return removed
}

// Len returns the number of buffered entries for a zone, duplicates included.
func (w *ReadingWindow) Len(zoneID string) int {
	return len(w.buffer[zoneID])
}
