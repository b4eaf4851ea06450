package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	simulator "github.com/LeonardoBeccarini/crowdsense/internal/crowd-simulator"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/alertstore"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/control"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/zonestore"
)

func (g *Gateway) HandleZones(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.timeout(r)
	defer cancel()

	zones, err := g.deps.Zones.ListZones(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	latest := g.deps.Densities.Snapshot()
	out := make([]ZoneView, 0, len(zones))
	for _, z := range zones {
		out = append(out, newZoneView(z, latest))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) HandleZone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.timeout(r)
	defer cancel()

	id := mux.Vars(r)["id"]
	zones, err := g.deps.Zones.ListZones(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, z := range zones {
		if z.ID == id {
			writeJSON(w, http.StatusOK, newZoneView(z, g.deps.Densities.Snapshot()))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody{Error: "zone not found"})
}

func (g *Gateway) HandleZonesGeoJSON(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.timeout(r)
	defer cancel()

	zones, err := g.deps.Zones.ListZones(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := zonestore.Encode(zones)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(b)
}

func (g *Gateway) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.timeout(r)
	defer cancel()

	alerts, err := g.deps.Alerts.ListActive(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (g *Gateway) HandleAlert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.timeout(r)
	defer cancel()

	a, err := g.deps.Alerts.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (g *Gateway) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	g.execute(w, r, model.ControlCommand{Command: messages.CmdAcknowledgeAlert, AlertID: mux.Vars(r)["id"]})
}

func (g *Gateway) HandleResolve(w http.ResponseWriter, r *http.Request) {
	g.execute(w, r, model.ControlCommand{Command: messages.CmdResolveAlert, AlertID: mux.Vars(r)["id"]})
}

func (g *Gateway) HandleControl(w http.ResponseWriter, r *http.Request) {
	var cmd model.ControlCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid command body"})
		return
	}
	g.execute(w, r, cmd)
}

func (g *Gateway) execute(w http.ResponseWriter, r *http.Request, cmd model.ControlCommand) {
	if g.deps.Control == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "control disabled"})
		return
	}
	ctx, cancel := g.timeout(r)
	defer cancel()

	res, err := g.deps.Control.Execute(ctx, cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) HandleDevices(w http.ResponseWriter, _ *http.Request) {
	if g.deps.Devices == nil {
		writeJSON(w, http.StatusOK, []simulator.DevicePosition{})
		return
	}
	devices := g.deps.Devices.Snapshot()
	if devices == nil {
		devices = []simulator.DevicePosition{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, alertstore.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, control.ErrUnknownCommand), errors.Is(err, control.ErrMissingZone), errors.Is(err, control.ErrMissingAlert):
		code = http.StatusBadRequest
	case errors.Is(err, simulator.ErrNoZones):
		code = http.StatusConflict
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests), errors.Is(err, control.ErrNoAlertStore):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}
