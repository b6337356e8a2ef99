package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// Recording implements opcodes 40 and 341 — caller recording, writing to a
// host-provided filename template and persisting length/size on success.
type Recording struct{ Deps }

func NewRecording(d Deps) *Recording { return &Recording{Deps: d} }

func (r *Recording) Execute(ctx context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	if err := ensureAnswered(ctx, sc); err != nil {
		return dispatch.Result{}, err
	}
	switch opcode {
	case dispatch.OpRecord, dispatch.OpRecordWithOptions:
	default:
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}

	host := sc.Host()
	path := soundPath(host, r.renderFilename(node, sc))

	maxSeconds := node.MaxRecordSeconds
	if maxSeconds <= 0 {
		maxSeconds = 120
	}

	res, err := host.Record(ctx, path, telephony.RecordOptions{MaxSeconds: maxSeconds})
	if err != nil {
		r.Log.Warn().Err(err).Str("path", path).Msg("recording failed")
		return dispatch.Result{}, nil
	}

	_ = sc.SetVariable(ctx, "last_recording_path", res.Path, true)
	_ = sc.SetVariable(ctx, "last_recording_length", strconv.FormatFloat(res.LengthSec, 'f', 2, 64), true)
	_ = sc.SetVariable(ctx, "last_recording_size", strconv.FormatInt(res.SizeBytes, 10), true)

	return dispatch.Result{}, nil
}

// renderFilename expands {{call_uuid}} and {{recording_type}} placeholders
// in the node's template, falling back to a call-scoped default.
func (r *Recording) renderFilename(node *model.Node, sc *session.Context) string {
	tmpl := node.RecordingFilenameTemplate
	if tmpl == "" {
		return fmt.Sprintf("%s.wav", sc.CallUUID())
	}
	tmpl = strings.ReplaceAll(tmpl, "{{call_uuid}}", sc.CallUUID())
	tmpl = strings.ReplaceAll(tmpl, "{{recording_type}}", node.RecordingTypeID)
	return tmpl
}
