package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simulator "github.com/LeonardoBeccarini/crowdsense/internal/crowd-simulator"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/entities"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/alertstore"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/control"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/zonestore"
)

type fixedDensities map[string]model.DensitySample

func (f fixedDensities) Snapshot() map[string]model.DensitySample { return f }

type failingAlerts struct{ alertstore.Store }

func (failingAlerts) Ping(context.Context) error { return errors.New("db gone") }

type fixture struct {
	srv    *httptest.Server
	store  *alertstore.SQLiteStore
	sim    *simulator.Simulator
	mqttUp atomic.Bool
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	store, err := alertstore.OpenSQLite(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	zones := zonestore.NewStatic(zonestore.SeedZones()...)
	sim := simulator.NewSimulator(simulator.Config{DeviceCount: 4, UpdateInterval: time.Hour, Seed: 1})
	t.Cleanup(sim.Stop)

	f := &fixture{store: store, sim: sim}
	f.mqttUp.Store(true)
	deps := Deps{
		Zones: zones,
		Densities: fixedDensities{"main-stage": {
			ZoneID: "main-stage", Value: 85, Trend: model.TrendIncreasing,
			Timestamp: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
		}},
		Alerts:        store,
		Control:       control.NewController(context.Background(), sim, zones, nil, store, nil),
		Devices:       sim,
		Metrics:       http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
		MQTTConnected: func() bool { return f.mqttUp.Load() },
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.srv = httptest.NewServer(NewGateway(Config{AccessLog: io.Discard}, deps).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	res, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (f *fixture) post(t *testing.T, path, body string, out any) int {
	t.Helper()
	res, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestGateway_Zones(t *testing.T) {
	f := newFixture(t, nil)

	var zones []ZoneView
	require.Equal(t, http.StatusOK, f.get(t, "/api/zones", &zones))
	require.Len(t, zones, 3)
	assert.Equal(t, "entry-plaza", zones[0].ID)
	assert.Nil(t, zones[0].Density)

	var stage ZoneView
	require.Equal(t, http.StatusOK, f.get(t, "/api/zones/main-stage", &stage))
	require.NotNil(t, stage.Density)
	assert.Equal(t, 85.0, stage.Density.Value)
	assert.Equal(t, model.TrendIncreasing, stage.Density.Trend)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/zones/nowhere", nil))

	res, err := http.Get(f.srv.URL + "/api/zones/main-stage")
	require.NoError(t, err)
	defer res.Body.Close()
	var raw map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&raw))
	assert.Equal(t, 3.0, raw["riskLevel"])
}

func TestGateway_ZonesGeoJSON(t *testing.T) {
	f := newFixture(t, nil)

	res, err := http.Get(f.srv.URL + "/api/zones.geojson")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "application/geo+json", res.Header.Get("Content-Type"))
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	zones, err := zonestore.Decode(b)
	require.NoError(t, err)
	assert.Len(t, zones, 3)
}

func TestGateway_AlertsAndAcknowledge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.store.CreateAlert(ctx, model.Alert{
		ID: "a-1", Type: entities.AlertDensity, Severity: 3,
		AffectedZones: []string{"main-stage"}, Message: "High density level (85%) in Main Stage.",
	})
	require.NoError(t, err)

	var active []model.Alert
	require.Equal(t, http.StatusOK, f.get(t, "/api/alerts", &active))
	require.Len(t, active, 1)
	assert.Equal(t, "a-1", active[0].ID)

	var res control.Result
	require.Equal(t, http.StatusOK, f.post(t, "/api/alerts/a-1/acknowledge", "", &res))
	require.NotNil(t, res.Alert)
	assert.Equal(t, entities.StatusAcknowledged, res.Alert.Status)

	active = nil
	require.Equal(t, http.StatusOK, f.get(t, "/api/alerts", &active))
	assert.Empty(t, active)

	var one model.Alert
	require.Equal(t, http.StatusOK, f.get(t, "/api/alerts/a-1", &one))
	assert.Equal(t, entities.StatusAcknowledged, one.Status)

	require.Equal(t, http.StatusOK, f.post(t, "/api/alerts/a-1/resolve", "", &res))
	require.NotNil(t, res.Alert)
	assert.Equal(t, entities.StatusResolved, res.Alert.Status)

	one = model.Alert{}
	require.Equal(t, http.StatusOK, f.get(t, "/api/alerts/a-1", &one))
	assert.Equal(t, entities.StatusResolved, one.Status)

	assert.Equal(t, http.StatusNotFound, f.post(t, "/api/alerts/missing/resolve", "", nil))
	assert.Equal(t, http.StatusNotFound, f.post(t, "/api/alerts/missing/acknowledge", "", nil))
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/alerts/missing", nil))
}

func TestGateway_Control(t *testing.T) {
	f := newFixture(t, nil)

	var res control.Result
	require.Equal(t, http.StatusOK, f.post(t, "/api/control", `{"command":"start-simulation"}`, &res))
	assert.True(t, res.Running)
	assert.Equal(t, 4, res.Devices)

	var devices []simulator.DevicePosition
	require.Equal(t, http.StatusOK, f.get(t, "/api/simulation/devices", &devices))
	assert.Len(t, devices, 4)

	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/control", `{"command":"dance"}`, nil))
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/control", `{"command":"add-crowd"}`, nil))
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/control", `{`, nil))
}

func TestGateway_ControlDisabled(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Control = nil })
	assert.Equal(t, http.StatusServiceUnavailable, f.post(t, "/api/control", `{"command":"start-simulation"}`, nil))
}

func TestGateway_HealthAndReady(t *testing.T) {
	f := newFixture(t, nil)

	var st healthStatus
	require.Equal(t, http.StatusOK, f.get(t, "/healthz", &st))
	assert.Equal(t, "ok", st.Status)

	var legacy map[string]any
	require.Equal(t, http.StatusOK, f.get(t, "/health", &legacy))
	assert.Equal(t, "ok", legacy["status"])
	assert.Equal(t, http.StatusOK, f.get(t, "/readyz", nil))

	f.mqttUp.Store(false)
	require.Equal(t, http.StatusOK, f.get(t, "/healthz", &st))
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/readyz", nil))
}

func TestGateway_ReadyNeedsQuietWrites(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.WriteErrorAge = func() time.Duration { return time.Second }
	})
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/readyz", nil))
}

func TestGateway_DownWhenNothingWorks(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Alerts = failingAlerts{}
		d.MQTTConnected = func() bool { return false }
	})
	var st healthStatus
	require.Equal(t, http.StatusOK, f.get(t, "/healthz", &st))
	assert.Equal(t, "down", st.Status)
	assert.False(t, st.AlertStoreOK)
}

func TestGateway_Metrics(t *testing.T) {
	f := newFixture(t, nil)
	res, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	assert.Equal(t, "# metrics\n", string(b))
}
