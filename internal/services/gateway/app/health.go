package app

import (
	"net/http"
)

// HandleHealth always answers 200 and reports each dependency.
func (g *Gateway) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := g.probe(r)
	switch {
	case st.MQTTConnected && st.AlertStoreOK && st.BreakerClosed && g.writesHealthy(st):
		st.Status = "ok"
	case st.MQTTConnected || st.AlertStoreOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleReady answers 200 only when every configured dependency is healthy.
func (g *Gateway) HandleReady(w http.ResponseWriter, r *http.Request) {
	st := g.probe(r)
	ready := st.MQTTConnected && st.AlertStoreOK && st.BreakerClosed && g.writesHealthy(st)
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, struct {
		Ready bool `json:"ready"`
	}{Ready: ready})
}

func (g *Gateway) probe(r *http.Request) healthStatus {
	ctx, cancel := g.timeout(r)
	defer cancel()

	st := healthStatus{
		MQTTConnected: g.deps.MQTTConnected == nil || g.deps.MQTTConnected(),
		AlertStoreOK:  g.deps.Alerts.Ping(ctx) == nil,
		BreakerClosed: g.deps.BreakerHealthy == nil || g.deps.BreakerHealthy(),
	}
	if g.deps.WriteErrorAge != nil {
		st.LastWriteErrorS = g.deps.WriteErrorAge().Seconds()
	}
	return st
}

func (g *Gateway) writesHealthy(st healthStatus) bool {
	if g.deps.WriteErrorAge == nil {
		return true
	}
	return st.LastWriteErrorS > g.cfg.MinWriteErrorAge.Seconds()
}
