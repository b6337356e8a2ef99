package handlers

import (
	"context"
	"time"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// Input implements opcodes 20 and 105 — raw DTMF collection, honoring
// per-node MinDigits, MaxDigits, Terminator, and Timeout.
type Input struct{ Deps }

func NewInput(d Deps) *Input { return &Input{Deps: d} }

func (in *Input) Execute(ctx context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	if err := ensureAnswered(ctx, sc); err != nil {
		return dispatch.Result{}, err
	}
	switch opcode {
	case dispatch.OpCollectDigits, dispatch.OpCollectMultiDigit:
	default:
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}

	host := sc.Host()
	opts := telephony.DigitOptions{
		MinDigits:  node.MinDigits,
		MaxDigits:  node.MaxDigits,
		Terminator: node.Terminator,
		Timeout:    time.Duration(node.TimeoutMS) * time.Millisecond,
	}
	digits, err := host.CollectDigits(ctx, opts)
	if err != nil {
		in.Log.Warn().Err(err).Msg("digit collection failed, treating as empty input")
		digits = ""
	}

	if len(digits) < opts.MinDigits {
		return dispatch.Result{Handled: true, InvalidInput: true, Digits: digits}, nil
	}
	return resultForDigits(digits, node), nil
}
