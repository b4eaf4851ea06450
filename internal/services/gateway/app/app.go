package app

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	simulator "github.com/LeonardoBeccarini/crowdsense/internal/crowd-simulator"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/control"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/density"
)

type DensitySnapshot interface {
	Snapshot() map[string]model.DensitySample
}

type AlertReader interface {
	ListActive(ctx context.Context) ([]model.Alert, error)
	Get(ctx context.Context, id string) (model.Alert, error)
	Ping(ctx context.Context) error
}

type CommandExecutor interface {
	Execute(ctx context.Context, cmd model.ControlCommand) (control.Result, error)
}

type DeviceSource interface {
	Snapshot() []simulator.DevicePosition
}

type Config struct {
	RequestTimeout time.Duration
	// MinWriteErrorAge is how long the time-series sink must have been
	// error free for /readyz to pass.
	MinWriteErrorAge time.Duration
	AccessLog        io.Writer
}

// Deps are the collaborators the gateway reads from. Only Zones, Densities
// and Alerts are required.
type Deps struct {
	Zones     density.ZoneStore
	Densities DensitySnapshot
	Alerts    AlertReader
	Control   CommandExecutor
	Devices   DeviceSource
	Metrics   http.Handler

	MQTTConnected  func() bool
	WriteErrorAge  func() time.Duration
	BreakerHealthy func() bool
}

type Gateway struct {
	cfg  Config
	deps Deps
}

func NewGateway(cfg Config, deps Deps) *Gateway {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.MinWriteErrorAge <= 0 {
		cfg.MinWriteErrorAge = 30 * time.Second
	}
	if cfg.AccessLog == nil {
		cfg.AccessLog = os.Stdout
	}
	return &Gateway{cfg: cfg, deps: deps}
}

// Router returns the mux with every route registered, without middleware.
func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", g.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/healthz", g.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", g.HandleReady).Methods(http.MethodGet)
	if g.deps.Metrics != nil {
		r.Handle("/metrics", g.deps.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/zones", g.HandleZones).Methods(http.MethodGet)
	api.HandleFunc("/zones.geojson", g.HandleZonesGeoJSON).Methods(http.MethodGet)
	api.HandleFunc("/zones/{id}", g.HandleZone).Methods(http.MethodGet)
	api.HandleFunc("/alerts", g.HandleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}", g.HandleAlert).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}/acknowledge", g.HandleAcknowledge).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id}/resolve", g.HandleResolve).Methods(http.MethodPost)
	api.HandleFunc("/control", g.HandleControl).Methods(http.MethodPost)
	api.HandleFunc("/simulation/devices", g.HandleDevices).Methods(http.MethodGet)
	return r
}

// Handler wraps the router with panic recovery and an access log.
func (g *Gateway) Handler() http.Handler {
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(g.Router())
	return handlers.CombinedLoggingHandler(g.cfg.AccessLog, h)
}

func (g *Gateway) timeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), g.cfg.RequestTimeout)
}
