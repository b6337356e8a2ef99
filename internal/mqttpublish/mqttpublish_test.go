package mqttpublish

import (
	"testing"

	"github.com/rs/zerolog"
)

// TestPublishSkipsWhenDisconnected exercises the early-return in Publish
// without dialing a real broker: a Publisher that was never connected (or
// whose connection dropped) must not attempt to reach conn.Publish, which
// would be nil and panic here.
func TestPublishSkipsWhenDisconnected(t *testing.T) {
	p := &Publisher{topicPrefix: "ivr-engine/events", log: zerolog.Nop()}
	if p.IsConnected() {
		t.Fatal("IsConnected() = true on a freshly-built Publisher, want false")
	}
	p.Publish("call_started", map[string]string{"call_uuid": "c1"})
}

func TestOnConnectAndConnectionLostToggleState(t *testing.T) {
	p := &Publisher{topicPrefix: "ivr-engine/events", log: zerolog.Nop()}
	p.onConnect(nil)
	if !p.IsConnected() {
		t.Fatal("IsConnected() = false after onConnect, want true")
	}
	p.onConnectionLost(nil, nil)
	if p.IsConnected() {
		t.Fatal("IsConnected() = true after onConnectionLost, want false")
	}
}
