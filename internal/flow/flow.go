// Package flow implements the call-flow interpreter (§4.5): start-node
// discovery, per-node execution under the visit-budget loop guard, linear
// and DTMF-keyed child selection, invalid-input recovery, and the agent
// callback re-entry path (§4.6). Grounded on the teacher's dispatch loop in
// internal/ingest/pipeline.go (dispatch() switching on a route then logging
// "handler error" without crashing the pipeline).
package flow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/agentpresence"
	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/eventbus"
	"github.com/voxswitch/ivr-engine/internal/flowstore"
	"github.com/voxswitch/ivr-engine/internal/metrics"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

const invalidInputPause = 500 * time.Millisecond

// Interpreter drives one call's execution against the currently published
// flow. One Interpreter is constructed per call; the dispatcher and
// flowstore it wraps are process-wide and shared.
type Interpreter struct {
	store    *flowstore.Store
	dispatch *dispatch.Dispatcher
	presence *agentpresence.Updater
	events   *eventbus.Bus
	log      zerolog.Logger
}

// New constructs an Interpreter. events may be nil when the event bus is
// disabled.
func New(store *flowstore.Store, d *dispatch.Dispatcher, presence *agentpresence.Updater, events *eventbus.Bus, log zerolog.Logger) *Interpreter {
	return &Interpreter{
		store:    store,
		dispatch: d,
		presence: presence,
		events:   events,
		log:      log.With().Str("component", "flow").Logger(),
	}
}

// Start answers the call if needed, waits for line silence, locates the
// unique start node, and begins execution there.
func (in *Interpreter) Start(ctx context.Context, sc *session.Context) error {
	metrics.CallsStartedTotal.Inc()
	host := sc.Host()
	if !host.Answered() {
		if err := host.Answer(ctx); err != nil {
			return engineerr.Wrap(engineerr.KindSessionNotReady, err, "answer failed")
		}
		if err := host.WaitForSilence(ctx, telephony.DefaultSilenceOptions); err != nil {
			in.log.Warn().Err(err).Msg("wait_for_silence failed, continuing anyway")
		}
	}

	pf := in.store.IVRFlow()
	start := pf.FindStartNode()
	if start == nil {
		return engineerr.New(engineerr.KindEdgeResolutionFailure, "no start node flagged in process flow")
	}

	in.publish(sc, "call_started", start.NodeID, nil)
	return in.ExecuteNode(ctx, pf, start, sc)
}

// ExecuteNode runs one node: the visit-budget loop guard, opcode dispatch
// under an interpreter-level fault barrier independent of the dispatcher's
// own, and navigation to whatever comes next.
func (in *Interpreter) ExecuteNode(ctx context.Context, pf model.ProcessFlow, node *model.Node, sc *session.Context) (err error) {
	visits, tripped := sc.RecordVisit(node.NodeID)
	if tripped {
		in.log.Error().Int("node", node.NodeID).Int("visits", visits).Msg("infinite loop detected")
		in.publish(sc, "call_failed", node.NodeID, map[string]any{"reason": "loop_guard_tripped"})
		return in.hangup(ctx, sc, engineerr.LoopGuardTripped(node.NodeID, visits))
	}

	in.publish(sc, "node_entered", node.NodeID, nil)
	metrics.NodeExecutionsTotal.WithLabelValues(strconv.Itoa(node.OperationCode)).Inc()

	result, execErr := in.safeExecute(ctx, node, sc)
	if execErr != nil {
		in.log.Error().Err(execErr).Int("node", node.NodeID).Msg("node execution failed, terminating call")
		in.publish(sc, "call_failed", node.NodeID, map[string]any{"reason": execErr.Error()})
		return in.hangup(ctx, sc, execErr)
	}

	if result.Terminated {
		in.publish(sc, "call_ended", node.NodeID, nil)
		metrics.CallsEndedTotal.WithLabelValues("normal").Inc()
		return nil
	}
	if result.Suspended {
		in.publish(sc, "call_transferred", node.NodeID, nil)
		metrics.CallsEndedTotal.WithLabelValues("transferred").Inc()
		return nil
	}
	if result.InvalidInput {
		return in.handleInvalidInput(ctx, pf, node, sc)
	}

	var nextID int
	var ok bool
	if result.Handled {
		nextID, ok = result.NextNodeID, true
	} else {
		nextID, ok = node.LinearChild()
	}
	if !ok {
		in.publish(sc, "call_ended", node.NodeID, nil)
		return in.hangup(ctx, sc, nil)
	}

	next := pf.FindNode(nextID)
	if next == nil {
		err = engineerr.EdgeResolutionFailure(node.NodeID, "")
		in.publish(sc, "call_failed", node.NodeID, map[string]any{"reason": "dangling edge"})
		return in.hangup(ctx, sc, err)
	}
	return in.ExecuteNode(ctx, pf, next, sc)
}

// safeExecute recovers from a handler panic independently of the
// dispatcher's own fault barrier, translating it into a terminal error that
// triggers hangup rather than letting it escape the call's goroutine.
func (in *Interpreter) safeExecute(ctx context.Context, node *model.Node, sc *session.Context) (result dispatch.Result, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = engineerr.HandlerFailure(node.OperationCode, fmt.Errorf("panic: %v", rv))
		}
	}()
	return in.dispatch.Execute(ctx, node, sc)
}

// handleInvalidInput plays the node's invalid-input audio (if any), pauses,
// and re-executes the same node — the visit budget recorded in ExecuteNode
// is the only thing preventing this from looping forever.
func (in *Interpreter) handleInvalidInput(ctx context.Context, pf model.ProcessFlow, node *model.Node, sc *session.Context) error {
	host := sc.Host()
	if node.InvalidInputAudioFile != "" {
		path := node.InvalidInputAudioFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(host.SoundsDir(), path)
		}
		if _, err := host.Playback(ctx, path, telephony.PlaybackOptions{}); err != nil {
			in.log.Warn().Err(err).Str("file", path).Msg("invalid-input prompt playback failed")
		}
	}
	host.Sleep(ctx, invalidInputPause)
	return in.ExecuteNode(ctx, pf, node, sc)
}

// hangup ends the call at the host level and cleans up the session
// context. cause may be nil for a normal end-of-flow hangup.
func (in *Interpreter) hangup(ctx context.Context, sc *session.Context, cause error) error {
	if err := sc.Host().Hangup(ctx); err != nil {
		in.log.Warn().Err(err).Msg("hangup reported an error, treating call as ended anyway")
	}
	metrics.CallsEndedTotal.WithLabelValues(outcomeForCause(cause)).Inc()
	sc.Cleanup()
	return cause
}

// outcomeForCause labels a terminated call for CallsEndedTotal: a nil cause
// is a normal end-of-flow hangup, a loop-guard trip gets its own label, and
// every other error (handler failure, dangling edge, session not ready)
// counts as "failed".
func outcomeForCause(cause error) string {
	if cause == nil {
		return "normal"
	}
	var ee *engineerr.Error
	if errors.As(cause, &ee) && ee.Kind == engineerr.KindLoopGuardTripped {
		return "loop_guard"
	}
	return "failed"
}

func (in *Interpreter) publish(sc *session.Context, eventType string, nodeID int, payload map[string]any) {
	if in.events == nil {
		return
	}
	in.events.Publish(eventbus.Data{
		Type:     eventType,
		CallUUID: sc.CallUUID(),
		NodeID:   nodeID,
		Payload:  payload,
	})
}
