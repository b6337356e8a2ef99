package handlers

import (
	"context"
	"strconv"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
)

// Transfer implements opcodes 100, 101, 107, 108: 100/107 bridge
// immediately to an extension, 108 attempts an attended bridge, and 101
// enqueues into a call-center, recording cc_last_nodeId so the agent
// callback path (§4.6) can resume the flow on re-entry.
type Transfer struct{ Deps }

func NewTransfer(d Deps) *Transfer { return &Transfer{Deps: d} }

func (t *Transfer) Execute(ctx context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	if err := ensureAnswered(ctx, sc); err != nil {
		return dispatch.Result{}, err
	}
	host := sc.Host()

	switch opcode {
	case dispatch.OpTransferExtension, dispatch.OpBlindTransfer:
		if err := host.Bridge(ctx, node.TransferTarget, false); err != nil {
			t.Log.Warn().Err(err).Str("target", node.TransferTarget).Msg("blind bridge failed")
		}
		sc.ClearCache()
		return dispatch.Result{Handled: true, Terminated: true}, nil

	case dispatch.OpAttendedTransfer:
		if err := host.Bridge(ctx, node.TransferTarget, true); err != nil {
			t.Log.Warn().Err(err).Str("target", node.TransferTarget).Msg("attended bridge failed")
		}
		sc.ClearCache()
		return dispatch.Result{Handled: true, Terminated: true}, nil

	case dispatch.OpEnqueueCallCenter:
		vars := map[string]string{"cc_last_nodeId": strconv.Itoa(node.NodeID)}
		if err := host.Enqueue(ctx, node.QueueName, vars); err != nil {
			t.Log.Warn().Err(err).Str("queue", node.QueueName).Msg("enqueue failed")
			return dispatch.Result{}, err
		}
		if err := sc.SetVariable(ctx, "cc_last_nodeId", node.NodeID, true); err != nil {
			t.Log.Warn().Err(err).Msg("failed to persist cc_last_nodeId")
		}
		return dispatch.Result{Handled: true, Suspended: true}, nil

	default:
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}
}
