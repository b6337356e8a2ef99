package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxswitch/ivr-engine/internal/eventbus"
	"github.com/voxswitch/ivr-engine/internal/flowstore"
	"github.com/voxswitch/ivr-engine/internal/model"
)

func TestHealthHandlerUnhealthyWhenDocumentsMissing(t *testing.T) {
	store := flowstore.NewInMemory(model.IVRFlowDocument{})
	h := NewHealthHandler(store, nil, eventbus.New(16), "test", time.Now())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (webapi/extensions/recording never loaded)", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Fatalf("Status = %q, want unhealthy", resp.Status)
	}
	if resp.Checks[flowstore.DocIVRFlow] != "ok" {
		t.Fatalf("Checks[ivr] = %q, want ok (NewInMemory publishes it)", resp.Checks[flowstore.DocIVRFlow])
	}
	if resp.Checks["mqtt"] != "not_configured" {
		t.Fatalf(`Checks["mqtt"] = %q, want not_configured`, resp.Checks["mqtt"])
	}
}
