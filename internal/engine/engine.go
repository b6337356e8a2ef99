// Package engine implements the Bootstrap component (§2): it wires the
// configuration store, auth cache, dispatcher, handler families, event bus,
// and optional MQTT publisher into one process-wide Engine, then hands out
// a fresh call-flow interpreter per inbound call, grounded on the teacher's
// cmd/tr-engine/main.go wiring sequence (config -> stores -> pipeline ->
// servers) collapsed into a single constructor so cmd/ivr-engine/main.go
// stays a thin CLI shell.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/agentpresence"
	"github.com/voxswitch/ivr-engine/internal/authcache"
	"github.com/voxswitch/ivr-engine/internal/config"
	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/eventbus"
	"github.com/voxswitch/ivr-engine/internal/flow"
	"github.com/voxswitch/ivr-engine/internal/flowstore"
	"github.com/voxswitch/ivr-engine/internal/handlers"
	"github.com/voxswitch/ivr-engine/internal/mqttpublish"
	"github.com/voxswitch/ivr-engine/internal/session"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// Engine owns every process-wide collaborator (§5: configuration store,
// token cache, dispatcher counters, event bus) and constructs a new
// session.Context + flow.Interpreter pair for each inbound call. Call state
// never lives here.
type Engine struct {
	cfg      *config.Config
	log      zerolog.Logger
	Store    *flowstore.Store
	Auth     *authcache.Cache
	Dispatch *dispatch.Dispatcher
	Events   *eventbus.Bus
	MQTT     *mqttpublish.Publisher
	presence *agentpresence.Updater
}

// New loads the flow/endpoint configuration, builds the dispatcher with all
// eight handler families registered, creates the event bus, and connects
// the MQTT publisher when a broker URL is configured. Bus events are not
// forwarded to the MQTT publisher. It does not start the admin HTTP server
// — that is the caller's concern (cmd/ivr-engine/main.go).
func New(cfg *config.Config, httpClient telephony.HTTPDoer, log zerolog.Logger) (*Engine, error) {
	store := flowstore.New(cfg.ScriptDir, flowstore.Files{
		IVRFlow:       cfg.IVRFlowFile,
		WebAPI:        cfg.WebAPIFile,
		Extensions:    cfg.ExtensionsFile,
		RecordingType: cfg.RecordingTypeFile,
	}, log)

	if err := store.LoadAll(); err != nil {
		return nil, fmt.Errorf("engine: initial configuration load: %w", err)
	}

	auth := authcache.New(authcache.Options{
		TokenURL:     cfg.OAuthTokenURL,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		Scope:        cfg.OAuthScope,
		HTTPClient:   httpClient,
		Log:          log,
	})

	events := eventbus.New(4096)

	var mqttPub *mqttpublish.Publisher
	if cfg.MQTTBrokerURL != "" {
		p, err := mqttpublish.Connect(mqttpublish.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       log,
		})
		if err != nil {
			log.Warn().Err(err).Msg("mqtt publisher connection failed, continuing without it")
		} else {
			mqttPub = p
		}
	}

	presence := agentpresence.New(log)

	d := dispatch.New(log)
	deps := handlers.Deps{Store: store, Auth: auth, HTTPClient: httpClient, Log: log}
	d.RegisterFamily(dispatch.FamilyAudio, handlers.NewAudio(deps))
	d.RegisterFamily(dispatch.FamilyInput, handlers.NewInput(deps))
	d.RegisterFamily(dispatch.FamilyRecording, handlers.NewRecording(deps))
	d.RegisterFamily(dispatch.FamilyTransfer, handlers.NewTransfer(deps))
	d.RegisterFamily(dispatch.FamilyAPI, handlers.NewAPI(deps))
	d.RegisterFamily(dispatch.FamilyLogic, handlers.NewLogic(deps))
	d.RegisterFamily(dispatch.FamilyTTS, handlers.NewTTS(deps))
	d.RegisterFamily(dispatch.FamilyTermination, handlers.NewTermination(deps))

	return &Engine{
		cfg:      cfg,
		log:      log.With().Str("component", "engine").Logger(),
		Store:    store,
		Auth:     auth,
		Dispatch: d,
		Events:   events,
		MQTT:     mqttPub,
		presence: presence,
	}, nil
}

// WatchConfig starts the hot reload paths (§4.1): a poll loop calling
// LoadAll every ReloadPollInterval (when positive) and, if enabled in
// configuration, the fsnotify watcher. Safe to call once; returns
// immediately, both loops run in the background until ctx is canceled.
func (e *Engine) WatchConfig(ctx context.Context) {
	if e.cfg.ReloadPollInterval > 0 {
		go func() {
			ticker := time.NewTicker(e.cfg.ReloadPollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_ = e.Store.LoadAll() // LoadAll logs each failing document itself
				}
			}
		}()
	}
	if !e.cfg.WatchEnabled {
		return
	}
	if err := e.Store.Watch(ctx); err != nil {
		e.log.Warn().Err(err).Msg("failed to start configuration file watcher, falling back to poll-only reload")
	}
}

// HandleCall answers the case-the-host-already-connected path: it builds a
// fresh session.Context and flow.Interpreter for one call and drives it to
// completion (hangup, transfer, or call-center suspension). One goroutine
// per call is the expected caller shape; nothing here is safe to share
// across calls.
func (e *Engine) HandleCall(ctx context.Context, host telephony.Session) error {
	sc := session.New(e.cfg.VisitBudget)
	sc.Initialize(host)

	in := flow.New(e.Store, e.Dispatch, e.presence, e.Events, e.log)
	return in.Start(ctx, sc)
}

// HandleCallback resumes a call the host is re-entering after a call-center
// bridge attempt (§4.6). host must be the same session object the call was
// originally enqueued on so cc_* variables are visible.
func (e *Engine) HandleCallback(ctx context.Context, host telephony.Session) error {
	sc := session.New(e.cfg.VisitBudget)
	sc.Initialize(host)

	in := flow.New(e.Store, e.Dispatch, e.presence, e.Events, e.log)
	return in.HandleAgentCallback(ctx, sc)
}

// Close releases process-wide resources (currently just the MQTT
// publisher's connection).
func (e *Engine) Close() {
	if e.MQTT != nil {
		e.MQTT.Close()
	}
}
