// Package mqttpublish implements the optional outbound MQTT event
// publisher (§4.10): Publish sends an event to "<prefix>/<event type>" on a
// broker for external consumers, publish-only — the engine never
// subscribes, since cross-instance coordination is explicitly out of scope.
// Publish is the only entry point; events on the internal event bus are
// not forwarded here by the engine wiring. Grounded on the
// teacher's internal/mqttclient.Client connection setup, trimmed to the
// publish half (no SetMessageHandler/SubscribeMultiple).
package mqttpublish

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Options configures the outbound publisher.
type Options struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // events publish to "<prefix>/<event type>"
	Log         zerolog.Logger
}

// Publisher wraps a connected MQTT client used only to publish engine
// events. Safe for concurrent use across calls.
type Publisher struct {
	conn        mqtt.Client
	topicPrefix string
	connected   atomic.Bool
	log         zerolog.Logger
}

// Connect dials the broker and returns a ready Publisher. Returns an error
// if the initial connection fails; callers may treat a nil Publisher as
// "MQTT publishing disabled" when BrokerURL is empty, rather than calling
// Connect at all.
func Connect(opts Options) (*Publisher, error) {
	p := &Publisher{
		topicPrefix: opts.TopicPrefix,
		log:         opts.Log.With().Str("component", "mqttpublish").Logger(),
	}
	if p.topicPrefix == "" {
		p.topicPrefix = "ivr-engine/events"
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	p.conn = mqtt.NewClient(clientOpts)
	token := p.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) onConnect(mqtt.Client) {
	p.connected.Store(true)
	p.log.Info().Msg("mqtt publisher connected")
}

func (p *Publisher) onConnectionLost(_ mqtt.Client, err error) {
	p.connected.Store(false)
	p.log.Warn().Err(err).Msg("mqtt publisher connection lost, will auto-reconnect")
}

// Publish fires event under "<prefix>/<eventType>", best-effort: a publish
// failure is logged and never returned to the caller, since call control
// must never block on broker availability.
func (p *Publisher) Publish(eventType string, payload any) {
	if !p.connected.Load() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event for mqtt publish")
		return
	}
	topic := fmt.Sprintf("%s/%s", p.topicPrefix, eventType)
	token := p.conn.Publish(topic, 0, false, data)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}

// Close disconnects the publisher.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Disconnect(250)
	}
}

// IsConnected reports the current broker connection state.
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}
