package crowd_simulator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"github.com/LeonardoBeccarini/crowdsense/internal/geofence"
	"github.com/LeonardoBeccarini/crowdsense/internal/metrics"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
	"github.com/LeonardoBeccarini/crowdsense/internal/timeutil"
)

var ErrNoZones = errors.New("crowd simulator: no zones to populate")

const devicePrefix = "sim-device-"

type Config struct {
	DeviceCount    int
	UpdateInterval time.Duration
	MovementSpeed  float64
	// Seed for the random source; 0 seeds from the clock.
	Seed int64

	EmergencyFraction    float64
	EmergencySpeedFactor float64
	EmergencyDuration    time.Duration
}

func DefaultConfig() Config {
	return Config{
		DeviceCount:          100,
		UpdateInterval:       time.Second,
		MovementSpeed:        1.5,
		EmergencyFraction:    0.5,
		EmergencySpeedFactor: 5,
		EmergencyDuration:    30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DeviceCount < 0 {
		c.DeviceCount = 0
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = d.UpdateInterval
	}
	if c.MovementSpeed <= 0 {
		c.MovementSpeed = d.MovementSpeed
	}
	if c.EmergencyFraction <= 0 || c.EmergencyFraction > 1 {
		c.EmergencyFraction = d.EmergencyFraction
	}
	if c.EmergencySpeedFactor <= 0 {
		c.EmergencySpeedFactor = d.EmergencySpeedFactor
	}
	if c.EmergencyDuration <= 0 {
		c.EmergencyDuration = d.EmergencyDuration
	}
	return c
}

// ReadingHandler receives every synthetic reading. It is called outside the
// simulator lock and may block the tick.
type ReadingHandler func(model.SensorReading)

type device struct {
	id        string
	pos       orb.Point // lng, lat
	fleeUntil time.Time
	epicenter orb.Point
}

// DevicePosition is a read-only view of one simulated device.
type DevicePosition struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Fleeing bool    `json:"fleeing"`
}

type Option func(*Simulator)

func WithClock(c timeutil.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// Simulator moves a population of synthetic devices inside the zones it
// was started with and emits one reading per device per tick.
type Simulator struct {
	cfg     Config
	clock   timeutil.Clock
	metrics *metrics.Metrics

	mu        sync.Mutex
	gen       *generator
	zones     map[string]model.Zone
	devices   []*device // insertion order
	nextID    int
	onReading ReadingHandler
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSimulator(cfg Config, opts ...Option) *Simulator {
	cfg = cfg.withDefaults()
	s := &Simulator{cfg: cfg, clock: timeutil.RealClock{}}
	for _, o := range opts {
		o(s)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = s.clock.Now().UnixNano()
	}
	s.gen = newGenerator(seed, cfg.MovementSpeed)
	return s
}

// Start populates the zones and begins ticking. It is a no-op while running.
// Zones without a boundary are ignored.
func (s *Simulator) Start(ctx context.Context, zones []model.Zone, onReading ReadingHandler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	usable := make([]model.Zone, 0, len(zones))
	for _, z := range zones {
		if len(z.Ring()) > 0 {
			usable = append(usable, z)
		}
	}
	if len(usable) == 0 {
		s.mu.Unlock()
		return ErrNoZones
	}

	s.zones = make(map[string]model.Zone, len(usable))
	for _, z := range usable {
		s.zones[z.ID] = z
	}
	s.devices = nil
	s.nextID = 0
	s.onReading = onReading
	for i := 0; i < s.cfg.DeviceCount; i++ {
		s.spawnLocked(usable[s.gen.rnd.Intn(len(usable))])
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done, s.running = cancel, done, true
	n := len(s.devices)
	s.mu.Unlock()

	s.metrics.SimulatorDevices(n)
	log.Info().Int("devices", n).Int("zones", len(usable)).Dur("interval", s.cfg.UpdateInterval).Msg("crowd simulation started")

	go s.loop(ctx, done)
	return nil
}

func (s *Simulator) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		if s.done == done {
			s.resetLocked()
		}
		s.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			readings, h := s.step(s.clock.Now())
			for _, r := range readings {
				if ctx.Err() != nil {
					return
				}
				if h != nil {
					h(r)
				}
			}
		}
	}
}

// Stop halts the tick loop, waits for it and clears devices and zones.
// Calling it while stopped is a no-op.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	done := s.done
	s.resetLocked()
	s.mu.Unlock()

	<-done
	s.metrics.SimulatorDevices(0)
	log.Info().Msg("crowd simulation stopped")
}

func (s *Simulator) resetLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel, s.done, s.running = nil, nil, false
	s.devices = nil
	s.zones = nil
	s.onReading = nil
}

// step advances every device once and builds its reading.
func (s *Simulator) step(now time.Time) ([]model.SensorReading, ReadingHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SensorReading, 0, len(s.devices))
	for _, d := range s.devices {
		if now.Before(d.fleeUntil) {
			d.pos = s.gen.flee(d.pos, d.epicenter, s.cfg.EmergencySpeedFactor)
		} else {
			d.pos = s.gen.walk(d.pos)
		}
		out = append(out, model.SensorReading{
			DeviceID:  d.id,
			Timestamp: now,
			Location:  messages.Location{Lat: d.pos[1], Lng: d.pos[0]},
			Motion:    &messages.Motion{Acceleration: s.gen.acceleration()},
		})
	}
	return out, s.onReading
}

func (s *Simulator) spawnLocked(z model.Zone) {
	s.devices = append(s.devices, &device{
		id:  devicePrefix + strconv.Itoa(s.nextID),
		pos: s.gen.pointIn(z.Ring().Bound()),
	})
	s.nextID++
}

// AddCrowd spawns n devices in the zone and returns how many were added.
func (s *Simulator) AddCrowd(zoneID string, n int) int {
	s.mu.Lock()
	if !s.running || n <= 0 {
		s.mu.Unlock()
		return 0
	}
	z, ok := s.zones[zoneID]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	for i := 0; i < n; i++ {
		s.spawnLocked(z)
	}
	total := len(s.devices)
	s.mu.Unlock()

	s.metrics.SimulatorDevices(total)
	log.Info().Str("zone", zoneID).Int("added", n).Int("devices", total).Msg("crowd added")
	return n
}

// RemoveCrowd removes up to n devices currently inside the zone, oldest
// first, and returns how many were removed.
func (s *Simulator) RemoveCrowd(zoneID string, n int) int {
	s.mu.Lock()
	if !s.running || n <= 0 {
		s.mu.Unlock()
		return 0
	}
	z, ok := s.zones[zoneID]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	ring := z.Ring()
	kept := s.devices[:0]
	removed := 0
	for _, d := range s.devices {
		if removed < n && geofence.Contains(ring, d.pos) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	for i := len(kept); i < len(s.devices); i++ {
		s.devices[i] = nil
	}
	s.devices = kept
	total := len(s.devices)
	s.mu.Unlock()

	s.metrics.SimulatorDevices(total)
	log.Info().Str("zone", zoneID).Int("removed", removed).Int("devices", total).Msg("crowd removed")
	return removed
}

func (s *Simulator) DeviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot returns the current device positions in insertion order.
func (s *Simulator) Snapshot() []DevicePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]DevicePosition, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, DevicePosition{ID: d.id, Lat: d.pos[1], Lng: d.pos[0], Fleeing: now.Before(d.fleeUntil)})
	}
	return out
}
