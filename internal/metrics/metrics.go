package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reading outcomes used as the "result" label.
const (
	ResultMatched   = "matched"
	ResultUnmatched = "unmatched"
	ResultInvalid   = "invalid"
	ResultFailed    = "failed"
)

// Metrics groups the engine and simulator collectors. All methods are
// safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	readings     *prometheus.CounterVec
	queueDropped prometheus.Counter
	alerts       *prometheus.CounterVec
	alertErrors  prometheus.Counter
	sinkErrors   prometheus.Counter
	occupancy    *prometheus.GaugeVec
	evicted      prometheus.Counter
	simDevices   prometheus.Gauge
	breakerState *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdsense_readings_total",
			Help: "Sensor readings processed by outcome.",
		}, []string{"result"}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdsense_queue_dropped_total",
			Help: "Readings dropped because the ingestion queue was full.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdsense_alerts_total",
			Help: "Density alerts emitted by severity.",
		}, []string{"severity"}),
		alertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdsense_alert_store_errors_total",
			Help: "Failed alert store writes.",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdsense_sink_errors_total",
			Help: "Failed output sink publishes.",
		}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdsense_zone_occupancy_percent",
			Help: "Latest occupancy percentage per zone.",
		}, []string{"zone"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdsense_window_evicted_total",
			Help: "Window entries evicted by the periodic sweep.",
		}),
		simDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdsense_simulator_devices",
			Help: "Simulated devices currently alive.",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdsense_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.readings,
		m.queueDropped,
		m.alerts,
		m.alertErrors,
		m.sinkErrors,
		m.occupancy,
		m.evicted,
		m.simDevices,
		m.breakerState,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Reading(result string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(result).Inc()
}

func (m *Metrics) QueueDropped() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}

func (m *Metrics) Alert(severity int) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(strconv.Itoa(severity)).Inc()
}

func (m *Metrics) AlertStoreError() {
	if m == nil {
		return
	}
	m.alertErrors.Inc()
}

func (m *Metrics) SinkError() {
	if m == nil {
		return
	}
	m.sinkErrors.Inc()
}

func (m *Metrics) Occupancy(zoneID string, value float64) {
	if m == nil {
		return
	}
	m.occupancy.WithLabelValues(zoneID).Set(value)
}

func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evicted.Add(float64(n))
}

func (m *Metrics) SimulatorDevices(n int) {
	if m == nil {
		return
	}
	m.simDevices.Set(float64(n))
}

func (m *Metrics) SetBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(target).Set(state)
}
