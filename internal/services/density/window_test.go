package density

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadingWindow_DistinctDevices(t *testing.T) {
	w := NewReadingWindow(5 * time.Minute)
	w.Record("z", stageReading(1, t0))
	w.Record("z", stageReading(1, t0.Add(time.Second)))
	w.Record("z", stageReading(2, t0))

	assert.Equal(t, 2, w.OccupantCount("z"))
	assert.Equal(t, 3, w.Len("z"))
	assert.Equal(t, 0, w.OccupantCount("other"))
}

func TestReadingWindow_Sweep(t *testing.T) {
	w := NewReadingWindow(5 * time.Minute)
	w.Record("z", stageReading(1, t0))
	w.Record("z", stageReading(2, t0.Add(2*time.Minute)))
	w.Record("y", stageReading(3, t0))

	// exactly at the horizon counts as expired
	removed := w.Sweep(t0.Add(5 * time.Minute))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, w.OccupantCount("z"))
	assert.Equal(t, 0, w.Len("y"))

	assert.Equal(t, 0, w.Sweep(t0.Add(5*time.Minute)))
	assert.Equal(t, 1, w.Sweep(t0.Add(10*time.Minute)))
	assert.Equal(t, 0, w.OccupantCount("z"))
}

func TestReadingWindow_RecordDoesNotEvict(t *testing.T) {
	w := NewReadingWindow(time.Minute)
	w.Record("z", stageReading(1, t0.Add(-time.Hour)))
	w.Record("z", stageReading(2, t0))
	assert.Equal(t, 2, w.OccupantCount("z"))
}

func distinctDevices(w *ReadingWindow, zoneID string) int {
	seen := map[string]struct{}{}
	for _, e := range w.buffer[zoneID] {
		seen[e.deviceID] = struct{}{}
	}
	return len(seen)
}

func TestReadingWindow_CountTracksBufferAcrossSweeps(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	w := NewReadingWindow(time.Minute)
	now := t0

	for step := 0; step < 2000; step++ {
		now = now.Add(time.Duration(rnd.Intn(500)) * time.Millisecond)
		zone := []string{"a", "b"}[rnd.Intn(2)]
		// out-of-order timestamps up to 30s in the past
		ts := now.Add(-time.Duration(rnd.Intn(30)) * time.Second)
		w.Record(zone, stageReading(rnd.Intn(40), ts))

		if step%97 == 0 {
			w.Sweep(now)
		}
		for _, z := range []string{"a", "b"} {
			assert.Equal(t, distinctDevices(w, z), w.OccupantCount(z), "step %d zone %s", step, z)
		}
	}

	w.Sweep(now.Add(time.Hour))
	assert.Equal(t, 0, w.OccupantCount("a"))
	assert.Equal(t, 0, w.OccupantCount("b"))
	assert.Empty(t, w.refs)
}

func TestReadingWindow_CountIsIndependentOfDuplicates(t *testing.T) {
	w := NewReadingWindow(5 * time.Minute)
	for i := 0; i < 300; i++ {
		for d := 0; d < 100; d++ {
			w.Record("z", stageReading(d, t0.Add(time.Duration(i)*time.Second)))
		}
	}
	assert.Equal(t, 30000, w.Len("z"))
	assert.Equal(t, 100, w.OccupantCount("z"))
	assert.Len(t, w.refs["z"], 100)
}
