package density

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/LeonardoBeccarini/crowdsense/internal/geofence"
	"github.com/LeonardoBeccarini/crowdsense/internal/metrics"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/timeutil"
	"github.com/LeonardoBeccarini/crowdsense/pkg/dedup"
)

// ErrZoneStore wraps failures of the zone source.
var ErrZoneStore = errors.New("zone store unavailable")

const (
	DefaultHorizon       = 5 * time.Minute
	DefaultSweepInterval = 60 * time.Second
	DefaultQueueSize     = 1024
)

type Config struct {
	Horizon       time.Duration
	SweepInterval time.Duration
	QueueSize     int
	// AlertCooldown suppresses repeated alerts for the same zone and
	// severity. Zero emits one alert per qualifying sample.
	AlertCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.Horizon <= 0 {
		c.Horizon = DefaultHorizon
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

type Option func(*Engine)

func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// Engine owns the reading window, the estimator and the latest sample per
// zone. Ingest may be called directly or through the bounded queue fed by
// Submit and drained by Start.
type Engine struct {
	cfg      Config
	zones    ZoneStore
	alerts   AlertStore
	sink     Sink
	clock    timeutil.Clock
	metrics  *metrics.Metrics
	newID    func() string
	cooldown *dedup.Deduper

	mu        sync.Mutex
	window    *ReadingWindow
	estimator *Estimator
	latest    map[string]model.DensitySample

	queue chan model.SensorReading

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine wires the engine. alerts and sink may be nil.
func NewEngine(cfg Config, zones ZoneStore, alerts AlertStore, sink Sink, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:       cfg,
		zones:     zones,
		alerts:    alerts,
		sink:      sink,
		clock:     timeutil.RealClock{},
		newID:     uuid.NewString,
		window:    NewReadingWindow(cfg.Horizon),
		estimator: NewEstimator(),
		latest:    make(map[string]model.DensitySample),
		queue:     make(chan model.SensorReading, cfg.QueueSize),
	}
	for _, o := range opts {
		o(e)
	}
	if cfg.AlertCooldown > 0 {
		e.cooldown = dedup.New(cfg.AlertCooldown, 0)
	}
	return e
}

// Ingest processes one reading. A reading outside every zone returns
// (nil, nil, nil). The sample is published even when alert persistence
// fails.
func (e *Engine) Ingest(ctx context.Context, r model.SensorReading) (*model.DensitySample, *model.Alert, error) {
	if err := r.Validate(); err != nil {
		e.metrics.Reading(metrics.ResultInvalid)
		return nil, nil, err
	}

	zones, err := e.zones.ListZones(ctx)
	if err != nil {
		e.metrics.Reading(metrics.ResultFailed)
		return nil, nil, fmt.Errorf("%w: %v", ErrZoneStore, err)
	}

	zone, ok := geofence.MatchZone(geofence.Point(r.Location.Lat, r.Location.Lng), zones)
	if !ok {
		e.metrics.Reading(metrics.ResultUnmatched)
		return nil, nil, nil
	}

	now := e.clock.Now()
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}

	e.mu.Lock()
	e.window.Record(zone.ID, r)
	sample := e.estimator.Compute(*zone, e.window.OccupantCount(zone.ID), now)
	e.latest[zone.ID] = sample
	e.mu.Unlock()

	e.metrics.Reading(metrics.ResultMatched)
	e.metrics.Occupancy(zone.ID, sample.Value)

	alert := Evaluate(sample, *zone)
	if alert != nil && !e.allowAlert(*alert, now) {
		alert = nil
	}
	if alert != nil {
		alert = e.storeAlert(ctx, *alert)
	}

	e.publish(ctx, sample, alert)
	return &sample, alert, nil
}

func (e *Engine) allowAlert(a model.Alert, now time.Time) bool {
	if e.cooldown == nil || len(a.AffectedZones) == 0 {
		return true
	}
	return e.cooldown.ShouldProcessAt(a.AffectedZones[0]+"|"+strconv.Itoa(a.Severity), now)
}

func (e *Engine) storeAlert(ctx context.Context, a model.Alert) *model.Alert {
	a.ID = e.newID()
	e.metrics.Alert(a.Severity)
	if e.alerts == nil {
		return &a
	}
	saved, err := e.alerts.CreateAlert(ctx, a)
	if err != nil {
		e.metrics.AlertStoreError()
		log.Warn().Err(err).Str("alert", a.ID).Msg("alert store write failed")
		return &a
	}
	return &saved
}

func (e *Engine) publish(ctx context.Context, sample model.DensitySample, alert *model.Alert) {
	if e.sink == nil {
		return
	}
	if err := e.sink.PublishDensity(ctx, sample); err != nil {
		e.metrics.SinkError()
		log.Warn().Err(err).Str("zone", sample.ZoneID).Msg("density publish failed")
	}
	if alert == nil {
		return
	}
	if err := e.sink.PublishAlert(ctx, *alert); err != nil {
		e.metrics.SinkError()
		log.Warn().Err(err).Str("alert", alert.ID).Msg("alert publish failed")
	}
}

// Submit enqueues a reading for the Start loop. When the queue is full the
// oldest pending reading is dropped; the return value reports whether that
// happened.
func (e *Engine) Submit(r model.SensorReading) (dropped bool) {
	for {
		select {
		case e.queue <- r:
			return dropped
		default:
		}
		select {
		case <-e.queue:
			dropped = true
			e.metrics.QueueDropped()
		default:
		}
	}
}

// Pending returns the number of queued readings.
func (e *Engine) Pending() int {
	return len(e.queue)
}

// Sweep evicts expired window entries and returns how many were removed.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	n := e.window.Sweep(now)
	e.mu.Unlock()
	e.metrics.Evicted(n)
	if n > 0 {
		log.Debug().Int("evicted", n).Msg("window sweep")
	}
	return n
}

// Snapshot returns a copy of the latest sample per zone.
func (e *Engine) Snapshot() map[string]model.DensitySample {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]model.DensitySample, len(e.latest))
	for k, v := range e.latest {
		out[k] = v
	}
	return out
}

// Start drains the queue and runs the periodic sweep until ctx is done or
// Stop is called. A second Start while running returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	if e.cancel != nil {
		e.runMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.runMu.Unlock()

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer func() {
		ticker.Stop()
		e.runMu.Lock()
		if e.done == done {
			e.cancel()
			e.cancel, e.done = nil, nil
		}
		e.runMu.Unlock()
		close(done)
	}()

	log.Info().Dur("horizon", e.cfg.Horizon).Dur("sweep", e.cfg.SweepInterval).Msg("density engine running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(e.clock.Now())
		case r := <-e.queue:
			if _, _, err := e.Ingest(ctx, r); err != nil {
				log.Warn().Err(err).Str("device", r.DeviceID).Msg("reading rejected")
			}
		}
	}
}

// Stop halts a running Start loop and waits for it to return.
// Calling it when not running is a no-op.
func (e *Engine) Stop() {
	e.runMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the Start loop is active.
func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.cancel != nil
}
