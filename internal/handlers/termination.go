package handlers

import (
	"context"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
)

// Termination implements opcode 200: issues a host-level hangup. The
// interpreter must not attempt to resume the flow afterward.
type Termination struct{ Deps }

func NewTermination(d Deps) *Termination { return &Termination{Deps: d} }

func (t *Termination) Execute(ctx context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	if opcode != dispatch.OpHangup {
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}
	if err := sc.Host().Hangup(ctx); err != nil {
		t.Log.Warn().Err(err).Int("node", node.NodeID).Msg("hangup reported an error, treating call as ended anyway")
	}
	return dispatch.Result{Handled: true, Terminated: true}, nil
}
