// Package handlers implements the eight node handler families (§4.4), one
// family per file, grounded on the teacher's per-topic MQTT handlers
// (internal/ingest/handlers_*.go): each family is a small stateless struct
// holding only its shared dependencies, with all per-call state living on
// the session.Context passed into Execute.
package handlers

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/authcache"
	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/flowstore"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// Deps bundles the process-wide collaborators every handler family needs.
// One Deps is built at startup and shared read-only across calls.
type Deps struct {
	Store      *flowstore.Store
	Auth       *authcache.Cache
	HTTPClient telephony.HTTPDoer
	Log        zerolog.Logger
}

// ensureAnswered implements the shared family contract in §4.4: on entry
// the session must be answered; if not, answer it and wait for media to
// settle before the handler touches it.
func ensureAnswered(ctx context.Context, sc *session.Context) error {
	host := sc.Host()
	if host.Answered() {
		return nil
	}
	if err := host.Answer(ctx); err != nil {
		return engineerr.Wrap(engineerr.KindSessionNotReady, err, "answer failed")
	}
	return host.WaitForSilence(ctx, telephony.DefaultSilenceOptions)
}

// soundPath resolves an audio filename relative to the host's sound
// directory, tolerating callers that already pass an absolute path.
func soundPath(host telephony.Session, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(host.SoundsDir(), name)
}

// resultForDigits turns collected digits into a navigation Result: a
// matching edge hands back the resolved target, a non-match asks the
// interpreter to run its invalid-input flow.
func resultForDigits(digits string, node *model.Node) dispatch.Result {
	next, ok := node.ChildForDigits(digits)
	if !ok {
		return dispatch.Result{Handled: true, InvalidInput: true, Digits: digits}
	}
	return dispatch.Result{Handled: true, NextNodeID: next, Digits: digits}
}
