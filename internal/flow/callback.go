package flow

import (
	"context"
	"strconv"
	"time"

	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/session"
)

const callbackPause = 1 * time.Second

// HandleAgentCallback implements §4.6: the host re-enters the script after
// a call-center bridge attempt, with cc_* variables describing the
// outcome. The session must already be Initialize'd against the same host
// session that was enqueued.
func (in *Interpreter) HandleAgentCallback(ctx context.Context, sc *session.Context) error {
	host := sc.Host()

	lastNodeIDStr, _ := host.GetVariable("cc_last_nodeId")
	cancelReason, _ := host.GetVariable("cc_cancel_reason")
	agentBridged, _ := host.GetVariable("cc_agent_bridged")
	agent, _ := host.GetVariable("cc_agent")

	if cancelReason == "TIMEOUT" {
		_ = host.SetTTSParams(ctx, "flite", "slt")
		host.Sleep(ctx, callbackPause)
		_ = host.Speak(ctx, "Sorry, the agents are not available or busy at this moment")
		host.Sleep(ctx, callbackPause)
		_ = host.Speak(ctx, "Thank you")
		host.Sleep(ctx, callbackPause)
		return in.hangup(ctx, sc, nil)
	}

	if agentBridged == "true" {
		if agent != "" && in.presence != nil {
			in.presence.Update(ctx, host, agent)
		}

		lastNodeID, err := strconv.Atoi(lastNodeIDStr)
		if err != nil {
			return in.hangup(ctx, sc, engineerr.Wrap(engineerr.KindEdgeResolutionFailure, err, "cc_last_nodeId is not numeric"))
		}

		pf := in.store.IVRFlow()
		lastNode := pf.FindNode(lastNodeID)
		if lastNode == nil {
			return in.hangup(ctx, sc, engineerr.EdgeResolutionFailure(lastNodeID, ""))
		}

		childID, ok := lastNode.LinearChild()
		if !ok {
			return in.hangup(ctx, sc, nil)
		}
		next := pf.FindNode(childID)
		if next == nil {
			return in.hangup(ctx, sc, engineerr.EdgeResolutionFailure(lastNodeID, ""))
		}
		return in.ExecuteNode(ctx, pf, next, sc)
	}

	return in.hangup(ctx, sc, nil)
}
