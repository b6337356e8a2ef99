package flow

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/flowstore"
	"github.com/voxswitch/ivr-engine/internal/handlers"
	"github.com/voxswitch/ivr-engine/internal/metrics"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// newTestInterpreter wires a Dispatcher with all eight handler families
// against an in-memory flow document, mirroring engine.New's wiring
// sequence without the configuration-store file I/O.
func newTestInterpreter(t *testing.T, pf model.ProcessFlow) (*Interpreter, *flowstore.Store) {
	t.Helper()
	log := zerolog.Nop()
	store := flowstore.NewInMemory(model.IVRFlowDocument{
		IVRConfiguration: []model.Configuration{
			{IVRProcessFlow: pf, GeneralSettingValues: map[string]string{}},
		},
	})

	d := dispatch.New(log)
	deps := handlers.Deps{Store: store, Log: log}
	d.RegisterFamily(dispatch.FamilyAudio, handlers.NewAudio(deps))
	d.RegisterFamily(dispatch.FamilyInput, handlers.NewInput(deps))
	d.RegisterFamily(dispatch.FamilyRecording, handlers.NewRecording(deps))
	d.RegisterFamily(dispatch.FamilyTransfer, handlers.NewTransfer(deps))
	d.RegisterFamily(dispatch.FamilyAPI, handlers.NewAPI(deps))
	d.RegisterFamily(dispatch.FamilyLogic, handlers.NewLogic(deps))
	d.RegisterFamily(dispatch.FamilyTTS, handlers.NewTTS(deps))
	d.RegisterFamily(dispatch.FamilyTermination, handlers.NewTermination(deps))

	return New(store, d, nil, nil, log), store
}

// S1 — simple linear play-and-hangup.
func TestScenarioS1LinearPlayAndHangup(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 10, IsStartNode: true, AudioFile: "welcome.wav",
			ChildNodeConfig: []model.Edge{{ChildNodeID: 2}}},
		{NodeID: 2, OperationCode: 200},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-1")
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.Start(context.Background(), sc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	wantPath := host.SoundsDir() + "/welcome.wav"
	if len(host.Playbacks) != 1 || host.Playbacks[0] != wantPath {
		t.Fatalf("Playbacks = %v, want [%q]", host.Playbacks, wantPath)
	}
	if !host.HungUp() {
		t.Fatal("expected host to be hung up")
	}
	if got := sc.VisitCount(1); got != 1 {
		t.Fatalf("visit count for node 1 = %d, want 1", got)
	}
	if got := sc.VisitCount(2); got != 1 {
		t.Fatalf("visit count for node 2 = %d, want 1", got)
	}
}

// S2 — menu with DTMF routing: caller presses "2", edge "1" never taken.
func TestScenarioS2MenuDTMFRouting(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 31, IsStartNode: true, AudioFile: "menu.wav",
			MaxDigits: 1, TimeoutMS: 5000,
			ChildNodeConfig: []model.Edge{{ChildNodeID: 10, InputKeys: "1"}, {ChildNodeID: 20, InputKeys: "2"}}},
		{NodeID: 10, OperationCode: 200},
		{NodeID: 20, OperationCode: 200},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-2")
	host.NextDigits = []string{"2"}
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.Start(context.Background(), sc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := sc.VisitCount(1); got != 1 {
		t.Fatalf("visit count for node 1 = %d, want 1", got)
	}
	if got := sc.VisitCount(20); got != 1 {
		t.Fatalf("visit count for node 20 = %d, want 1", got)
	}
	if got := sc.VisitCount(10); got != 0 {
		t.Fatalf("visit count for node 10 = %d, want 0 (edge %q never taken)", got, "1")
	}
}

// S3 — invalid input re-prompt: an invalid digit plays the invalid-input
// prompt and re-executes the node, where a valid digit then routes on. The
// loop-guard tail of S3 is TestLoopGuardTripsAfterVisitBudget.
func TestScenarioS3InvalidInputReprompt(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 31, IsStartNode: true, AudioFile: "menu.wav",
			InvalidInputAudioFile: "invalid.wav", MaxDigits: 1, TimeoutMS: 5000,
			ChildNodeConfig: []model.Edge{{ChildNodeID: 10, InputKeys: "1"}, {ChildNodeID: 20, InputKeys: "2"}}},
		{NodeID: 10, OperationCode: 200},
		{NodeID: 20, OperationCode: 200},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-3")
	host.NextDigits = []string{"9", "2"}
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.Start(context.Background(), sc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := sc.VisitCount(1); got != 2 {
		t.Fatalf("visit count for node 1 = %d, want 2 after one invalid digit and one re-prompt", got)
	}
	if len(host.Playbacks) < 2 || host.Playbacks[1] != host.SoundsDir()+"/invalid.wav" {
		t.Fatalf("Playbacks = %v, want second entry to be the invalid-input prompt", host.Playbacks)
	}
}

// S3 tail + invariant 4 — an indefinitely-invalid flow trips the loop guard
// after exactly visit_budget visits and hangs up.
func TestLoopGuardTripsAfterVisitBudget(t *testing.T) {
	const budget = 10
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 31, IsStartNode: true, AudioFile: "menu.wav",
			InvalidInputAudioFile: "invalid.wav", MaxDigits: 1, TimeoutMS: 5000,
			ChildNodeConfig: []model.Edge{{ChildNodeID: 10, InputKeys: "1"}}},
		{NodeID: 10, OperationCode: 200},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-3b")
	for i := 0; i < 50; i++ {
		host.NextDigits = append(host.NextDigits, "9")
	}
	sc := session.New(budget)
	sc.Initialize(host)

	if err := in.Start(context.Background(), sc); err == nil {
		t.Fatal("Start() error = nil, want a loop-guard error")
	}
	if got := sc.VisitCount(1); got != budget+1 {
		t.Fatalf("visit count for node 1 = %d, want %d (trips on the visit AFTER the budget)", got, budget+1)
	}
	if !host.HungUp() {
		t.Fatal("expected loop-guard trip to hang up the call")
	}
}

// DTMF tie-break law: the earlier-declared edge with a duplicate InputKeys
// wins.
func TestDTMFTieBreakEarlierEdgeWins(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 31, IsStartNode: true, AudioFile: "menu.wav",
			MaxDigits: 1, TimeoutMS: 5000,
			ChildNodeConfig: []model.Edge{{ChildNodeID: 10, InputKeys: "1"}, {ChildNodeID: 20, InputKeys: "1"}}},
		{NodeID: 10, OperationCode: 200},
		{NodeID: 20, OperationCode: 200},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-tie")
	host.NextDigits = []string{"1"}
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.Start(context.Background(), sc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := sc.VisitCount(10); got != 1 {
		t.Fatalf("visit count for node 10 = %d, want 1 (earlier-declared edge must win)", got)
	}
	if got := sc.VisitCount(20); got != 0 {
		t.Fatalf("visit count for node 20 = %d, want 0", got)
	}
}

// S5 — agent callback timeout: TTS apology + thank-you flanked by 1s
// pauses, then hangup.
func TestScenarioS5AgentCallbackTimeout(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 101, IsStartNode: true, QueueName: "support"},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-5")
	host.SetVariable(context.Background(), "cc_cancel_reason", "TIMEOUT")
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.HandleAgentCallback(context.Background(), sc); err != nil {
		t.Fatalf("HandleAgentCallback() error = %v", err)
	}

	wantSpoken := []string{"Sorry, the agents are not available or busy at this moment", "Thank you"}
	if len(host.Spoken) != 2 || host.Spoken[0] != wantSpoken[0] || host.Spoken[1] != wantSpoken[1] {
		t.Fatalf("Spoken = %v, want %v", host.Spoken, wantSpoken)
	}
	if !host.HungUp() {
		t.Fatal("expected hangup after callback timeout")
	}
}

// Invariant 9 / callback resume law: with cc_agent_bridged == "true" and a
// valid cc_last_nodeId, the interpreter resumes at that node's first child.
func TestCallbackResumesAtFirstChildOfLastNode(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 5, OperationCode: 101, QueueName: "support",
			ChildNodeConfig: []model.Edge{{ChildNodeID: 6}}},
		{NodeID: 6, OperationCode: 10, AudioFile: "resumed.wav",
			ChildNodeConfig: []model.Edge{{ChildNodeID: 7}}},
		{NodeID: 7, OperationCode: 200},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-resume")
	ctx := context.Background()
	host.SetVariable(ctx, "cc_last_nodeId", "5")
	host.SetVariable(ctx, "cc_agent_bridged", "true")
	host.SetVariable(ctx, "cc_agent", "1001")
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.HandleAgentCallback(ctx, sc); err != nil {
		t.Fatalf("HandleAgentCallback() error = %v", err)
	}
	if got := sc.VisitCount(6); got != 1 {
		t.Fatalf("visit count for node 6 = %d, want 1 (resume at NodeId 5's first child)", got)
	}
	if !host.HungUp() {
		t.Fatal("expected the resumed flow to run to completion and hang up")
	}
}

// Callback with neither TIMEOUT nor a bridged agent just hangs up.
func TestCallbackOtherwiseHangsUp(t *testing.T) {
	pf := model.ProcessFlow{{NodeID: 1, OperationCode: 200, IsStartNode: true}}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-other")
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.HandleAgentCallback(context.Background(), sc); err != nil {
		t.Fatalf("HandleAgentCallback() error = %v", err)
	}
	if !host.HungUp() {
		t.Fatal("expected hangup")
	}
}

// A dangling edge (target not present in the flow) surfaces as an
// EdgeResolutionFailure and the interpreter hangs up rather than panicking.
func TestExecuteNodeDanglingEdgeHangsUp(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 10, IsStartNode: true, AudioFile: "a.wav",
			ChildNodeConfig: []model.Edge{{ChildNodeID: 999}}},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-dangling")
	sc := session.New(0)
	sc.Initialize(host)

	if err := in.Start(context.Background(), sc); err == nil {
		t.Fatal("Start() error = nil, want an edge resolution error")
	}
	if !host.HungUp() {
		t.Fatal("expected hangup on dangling edge")
	}
}

// A completed call increments the call-lifecycle Prometheus counters:
// one call started, one node execution per opcode 10, and one normal
// call-ended outcome.
func TestScenarioS1IncrementsCallMetrics(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 10, IsStartNode: true, AudioFile: "welcome.wav",
			ChildNodeConfig: []model.Edge{{ChildNodeID: 2}}},
		{NodeID: 2, OperationCode: 200},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-metrics")
	sc := session.New(0)
	sc.Initialize(host)

	startedBefore := testutil.ToFloat64(metrics.CallsStartedTotal)
	nodeBefore := testutil.ToFloat64(metrics.NodeExecutionsTotal.WithLabelValues("10"))
	endedBefore := testutil.ToFloat64(metrics.CallsEndedTotal.WithLabelValues("normal"))

	if err := in.Start(context.Background(), sc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.CallsStartedTotal); got != startedBefore+1 {
		t.Fatalf("CallsStartedTotal = %v, want %v", got, startedBefore+1)
	}
	if got := testutil.ToFloat64(metrics.NodeExecutionsTotal.WithLabelValues("10")); got != nodeBefore+1 {
		t.Fatalf("NodeExecutionsTotal{10} = %v, want %v", got, nodeBefore+1)
	}
	if got := testutil.ToFloat64(metrics.CallsEndedTotal.WithLabelValues("normal")); got != endedBefore+1 {
		t.Fatalf("CallsEndedTotal{normal} = %v, want %v", got, endedBefore+1)
	}
}

// The loop guard's hangup is labeled "loop_guard", not "normal" or
// "failed", so the two outcomes stay distinguishable in dashboards.
func TestLoopGuardIncrementsLoopGuardOutcome(t *testing.T) {
	pf := model.ProcessFlow{
		{NodeID: 1, OperationCode: 10, IsStartNode: true, AudioFile: "a.wav",
			ChildNodeConfig: []model.Edge{{ChildNodeID: 1}}},
	}
	in, _ := newTestInterpreter(t, pf)
	host := telephony.NewFakeSession("call-loop-metrics")
	sc := session.New(3)
	sc.Initialize(host)

	before := testutil.ToFloat64(metrics.CallsEndedTotal.WithLabelValues("loop_guard"))
	if err := in.Start(context.Background(), sc); err == nil {
		t.Fatal("Start() error = nil, want a loop-guard-tripped error")
	}
	if got := testutil.ToFloat64(metrics.CallsEndedTotal.WithLabelValues("loop_guard")); got != before+1 {
		t.Fatalf("CallsEndedTotal{loop_guard} = %v, want %v", got, before+1)
	}
}
