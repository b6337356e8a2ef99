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

// Audio implements opcodes 10, 11, 30, 31, 50 — plain playback, recorded
// playback, play-and-collect, menu, and number-sequence readback.
type Audio struct{ Deps }

func NewAudio(d Deps) *Audio { return &Audio{Deps: d} }

func (a *Audio) Execute(ctx context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	if err := ensureAnswered(ctx, sc); err != nil {
		return dispatch.Result{}, err
	}
	host := sc.Host()
	path := soundPath(host, node.AudioFile)

	switch opcode {
	case dispatch.OpPlayAudio, dispatch.OpPlayRecording, dispatch.OpReadNumberSequence:
		if _, err := host.Playback(ctx, path, telephony.PlaybackOptions{}); err != nil {
			a.Log.Warn().Err(err).Str("file", path).Msg("playback failed, continuing as empty input")
		}
		return dispatch.Result{}, nil

	case dispatch.OpPlayAndCollect, dispatch.OpPlayMenu:
		timeout := time.Duration(node.TimeoutMS) * time.Millisecond
		digits, err := host.Playback(ctx, path, telephony.PlaybackOptions{MaxDigits: node.MaxDigits, Timeout: timeout})
		if err != nil {
			a.Log.Warn().Err(err).Str("file", path).Msg("play-and-collect failed, treating as empty input")
			digits = ""
		}
		if digits == "" {
			return dispatch.Result{Handled: true, InvalidInput: true}, nil
		}
		return resultForDigits(digits, node), nil

	default:
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}
}
