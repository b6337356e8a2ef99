// Package dispatch is the discriminated-union routing layer that turns a
// Node's integer OperationCode into a typed handler invocation, grounded on
// the teacher's MQTT topic→handler router (internal/ingest/router.go) and
// its dispatch()/incHandler counter pattern (internal/ingest/pipeline.go).
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
)

// Result is what a handler family returns from Execute.
type Result struct {
	// Handled is true when the handler already resolved a DTMF-keyed edge
	// itself and the interpreter must not also perform linear child-node
	// navigation.
	Handled bool

	// NextNodeID, when Handled is true and neither Terminated nor
	// InvalidInput is set, names the node the interpreter should resume
	// at.
	NextNodeID int

	// Terminated is true when the handler ended the call (hangup, blind
	// transfer); the interpreter must stop walking the flow.
	Terminated bool

	// InvalidInput is true when the handler collected digits but none of
	// the node's edges matched; the interpreter runs its invalid-input
	// flow (§4.5) rather than treating this as a dead end.
	InvalidInput bool

	// Suspended is true when the node enqueued the call into a call-center
	// queue; the interpreter stops walking this node's flow and awaits
	// re-entry through the agent callback path (§4.6).
	Suspended bool

	// Digits is the raw input the handler collected, kept for logging and
	// for the invalid-input flow's diagnostics.
	Digits string
}

// HandlerFamily executes one or more opcodes sharing a concern (audio,
// input, transfer, ...). One family instance is shared across calls; all
// per-call state is carried through sc and the node itself, never held on
// the family.
type HandlerFamily interface {
	Execute(ctx context.Context, opcode Opcode, node *model.Node, sc *session.Context) (Result, error)
}

// Stats is a read-only snapshot of dispatcher counters.
type Stats struct {
	Total       int64
	Failed      int64
	PerOpcode   map[int]int64
	SuccessRate float64
}

// Dispatcher routes opcodes to handler families and tracks counters.
// Safe for concurrent use across calls.
type Dispatcher struct {
	log zerolog.Logger

	mu       sync.RWMutex
	families map[Opcode]Family
	handlers map[Family]HandlerFamily

	total     atomic.Int64
	failed    atomic.Int64
	perOpcode sync.Map // Opcode -> *atomic.Int64
}

// New creates a Dispatcher seeded with the built-in opcode → family map.
func New(log zerolog.Logger) *Dispatcher {
	families := make(map[Opcode]Family, len(defaultFamilies))
	for op, fam := range defaultFamilies {
		families[op] = fam
	}
	return &Dispatcher{
		log:      log.With().Str("component", "dispatch").Logger(),
		families: families,
		handlers: make(map[Family]HandlerFamily),
	}
}

// RegisterFamily binds a Family name to its HandlerFamily implementation.
// The binding takes effect immediately and Execute looks it up on every
// call; nothing is loaded lazily on first use.
func (d *Dispatcher) RegisterFamily(name Family, h HandlerFamily) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[name]; exists {
		d.log.Warn().Str("family", string(name)).Msg("re-registering handler family, overriding previous binding")
	}
	d.handlers[name] = h
}

// RegisterOperation permits runtime extension of the opcode → family map.
// Re-registration of an already-mapped opcode logs a warning and overrides.
func (d *Dispatcher) RegisterOperation(opcode Opcode, family Family) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.families[opcode]; ok {
		d.log.Warn().
			Int("opcode", int(opcode)).
			Str("previous_family", string(existing)).
			Str("new_family", string(family)).
			Msg("re-registering opcode, overriding previous family")
	}
	d.families[opcode] = family
}

func (d *Dispatcher) incOpcode(opcode Opcode) {
	v, _ := d.perOpcode.LoadOrStore(opcode, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

// Execute looks up the family bound to node's opcode and invokes it under a
// fault barrier: a panic inside a handler is recovered, translated into a
// HandlerFailure error, and counted as failed — it never reaches the caller
// as a panic, mirroring the teacher's MQTT handler-error containment
// ("handler error" log, message dropped, pipeline keeps running).
func (d *Dispatcher) Execute(ctx context.Context, node *model.Node, sc *session.Context) (result Result, err error) {
	opcode := Opcode(node.OperationCode)
	d.total.Add(1)
	d.incOpcode(opcode)

	d.mu.RLock()
	family, knownOpcode := d.families[opcode]
	var handler HandlerFamily
	if knownOpcode {
		handler = d.handlers[family]
	}
	d.mu.RUnlock()

	if !knownOpcode {
		d.failed.Add(1)
		return Result{}, engineerr.UnknownOpcode(int(opcode))
	}
	if handler == nil {
		d.failed.Add(1)
		return Result{}, engineerr.Wrap(engineerr.KindHandlerFailure, nil,
			fmt.Sprintf("no handler bound for family %q (opcode %d)", family, opcode))
	}

	defer func() {
		if rv := recover(); rv != nil {
			d.failed.Add(1)
			err = engineerr.HandlerFailure(int(opcode), fmt.Errorf("panic: %v", rv))
			d.log.Error().
				Int("opcode", int(opcode)).
				Interface("panic", rv).
				Msg("recovered from handler panic")
		}
	}()

	result, err = handler.Execute(ctx, opcode, node, sc)
	if err != nil {
		d.failed.Add(1)
	}
	return result, err
}

// Stats returns a point-in-time snapshot of dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	total := d.total.Load()
	failed := d.failed.Load()
	per := make(map[int]int64)
	d.perOpcode.Range(func(k, v any) bool {
		per[int(k.(Opcode))] = v.(*atomic.Int64).Load()
		return true
	})

	successRate := 1.0
	if total > 0 {
		successRate = float64(total-failed) / float64(total)
	}
	return Stats{Total: total, Failed: failed, PerOpcode: per, SuccessRate: successRate}
}
