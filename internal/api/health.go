package api

import (
	"net/http"
	"time"

	"github.com/voxswitch/ivr-engine/internal/eventbus"
	"github.com/voxswitch/ivr-engine/internal/flowstore"
	"github.com/voxswitch/ivr-engine/internal/mqttpublish"
)

// HealthResponse mirrors the teacher's health check shape: an overall
// status plus a per-subsystem breakdown, generalized from database/MQTT/
// file-watcher checks to configuration-store/MQTT-publisher checks.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	store     *flowstore.Store
	mqtt      *mqttpublish.Publisher
	events    *eventbus.Bus
	version   string
	startTime time.Time
}

func NewHealthHandler(store *flowstore.Store, mqtt *mqttpublish.Publisher, events *eventbus.Bus, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{store: store, mqtt: mqtt, events: events, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	for _, doc := range []string{flowstore.DocIVRFlow, flowstore.DocWebAPI, flowstore.DocExtensions, flowstore.DocRecordingType} {
		if h.store.Get(doc) != nil {
			checks[doc] = "ok"
		} else {
			checks[doc] = "not_loaded"
			status = "unhealthy"
		}
	}

	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
