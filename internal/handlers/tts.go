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

// TTS implements opcodes 330 and 331: speaks node.TTSText using the
// engine/voice named on the node (falling back to GeneralSettings
// defaults), then, for 331, collects DTMF like the input family.
type TTS struct{ Deps }

func NewTTS(d Deps) *TTS { return &TTS{Deps: d} }

func (t *TTS) Execute(ctx context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	if err := ensureAnswered(ctx, sc); err != nil {
		return dispatch.Result{}, err
	}
	switch opcode {
	case dispatch.OpTextToSpeech, dispatch.OpTextToSpeechInput:
	default:
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}

	host := sc.Host()
	engine, voice := t.resolveVoice(node)
	if err := host.SetTTSParams(ctx, engine, voice); err != nil {
		t.Log.Warn().Err(err).Msg("failed to set tts params, using host defaults")
	}
	if err := host.Speak(ctx, node.TTSText); err != nil {
		t.Log.Warn().Err(err).Msg("tts playback failed, continuing as empty input")
	}

	if opcode == dispatch.OpTextToSpeech {
		return dispatch.Result{}, nil
	}

	opts := telephony.DigitOptions{
		MinDigits:  node.MinDigits,
		MaxDigits:  node.MaxDigits,
		Terminator: node.Terminator,
		Timeout:    time.Duration(node.TimeoutMS) * time.Millisecond,
	}
	digits, err := host.CollectDigits(ctx, opts)
	if err != nil {
		t.Log.Warn().Err(err).Msg("tts digit collection failed, treating as empty input")
		digits = ""
	}
	if len(digits) < opts.MinDigits {
		return dispatch.Result{Handled: true, InvalidInput: true, Digits: digits}, nil
	}
	return resultForDigits(digits, node), nil
}

func (t *TTS) resolveVoice(node *model.Node) (engine, voice string) {
	engine, voice = node.TTSEngine, node.TTSVoice
	if engine != "" && voice != "" {
		return engine, voice
	}
	settings := t.Store.GeneralSettings()
	if engine == "" {
		engine = settings["tts_engine"]
	}
	if voice == "" {
		voice = settings["tts_voice"]
	}
	return engine, voice
}
