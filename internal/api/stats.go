package api

import (
	"net/http"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/eventbus"
)

// StatsResponse exposes the dispatcher's counters and current SSE
// subscriber count, the same "what is the engine doing right now" surface
// the teacher exposes via IngestStats, minus anything that implies
// persisted call history.
type StatsResponse struct {
	DispatchTotal       int64         `json:"dispatch_total"`
	DispatchFailed      int64         `json:"dispatch_failed"`
	DispatchSuccessRate float64       `json:"dispatch_success_rate"`
	PerOpcode           map[int]int64 `json:"per_opcode"`
	SSESubscribers      int           `json:"sse_subscribers"`
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	dispatch *dispatch.Dispatcher
	events   *eventbus.Bus
}

func NewStatsHandler(d *dispatch.Dispatcher, events *eventbus.Bus) *StatsHandler {
	return &StatsHandler{dispatch: d, events: events}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.dispatch.Stats()
	subs := 0
	if h.events != nil {
		subs = h.events.SubscriberCount()
	}
	WriteJSON(w, http.StatusOK, StatsResponse{
		DispatchTotal:       s.Total,
		DispatchFailed:      s.Failed,
		DispatchSuccessRate: s.SuccessRate,
		PerOpcode:           s.PerOpcode,
		SSESubscribers:      subs,
	})
}
