// Package model holds the IVR flow data model: the node graph, edges, and
// the auxiliary catalogs a flow is validated and executed against.
package model

import (
	"encoding/json"
	"strings"
)

// trimDTMF applies the resolved DTMF comparison rule: leading/trailing
// whitespace is insignificant, leading zeros are significant ("07" != "7").
func trimDTMF(s string) string {
	return strings.TrimSpace(s)
}

// Edge is an outgoing connection from a Node to a child Node. InputKeys is
// the DTMF digit string that selects this edge; empty on linear edges.
type Edge struct {
	ChildNodeID int    `json:"ChildNodeId"`
	InputKeys   string `json:"InputKeys,omitempty"`
	// DTMFInput is the legacy field name some flow authoring tools still
	// emit; Edge.Key falls back to it when InputKeys is empty.
	DTMFInput string `json:"DTMFInput,omitempty"`
}

// Key returns the DTMF key this edge is keyed on, preferring InputKeys over
// the legacy DTMFInput field, trimmed per the resolved DTMF tie-break rule.
func (e Edge) Key() string {
	if e.InputKeys != "" {
		return trimDTMF(e.InputKeys)
	}
	return trimDTMF(e.DTMFInput)
}

// Node is one unit of flow execution. Operation-specific attributes are
// kept on the struct directly (rather than a nested `any` blob) so handler
// families can read them without re-parsing JSON, mirroring how the
// teacher's ingest messages are flat, typed structs per message kind.
type Node struct {
	NodeID          int    `json:"NodeId"`
	NodeName        string `json:"NodeName,omitempty"`
	OperationCode   int    `json:"OperationCode"`
	IsStartNode     bool   `json:"IsStartNode"`
	ChildNodeConfig []Edge `json:"ChildNodeConfig"`

	// audio / tts
	AudioFile             string `json:"AudioFile,omitempty"`
	InvalidInputAudioFile string `json:"InvalidInputAudioFile,omitempty"`
	TTSText               string `json:"TTSText,omitempty"`

	// input collection (20, 30, 31, 105, 331)
	MinDigits  int    `json:"MinDigits,omitempty"`
	MaxDigits  int    `json:"MaxDigits,omitempty"`
	Terminator string `json:"Terminator,omitempty"`
	TimeoutMS  int    `json:"Timeout,omitempty"`

	// recording (40, 341)
	RecordingFilenameTemplate string `json:"RecordingFilenameTemplate,omitempty"`
	RecordingTypeID           string `json:"RecordingTypeId,omitempty"`
	MaxRecordSeconds          int    `json:"MaxRecordSeconds,omitempty"`

	// transfer (100, 101, 107, 108)
	TransferTarget string `json:"TransferTarget,omitempty"`
	QueueName      string `json:"QueueName,omitempty"`

	// api (111, 112)
	EndpointName      string            `json:"EndpointName,omitempty"`
	URL               string            `json:"Url,omitempty"`
	Method            string            `json:"Method,omitempty"`
	ContentType       string            `json:"ContentType,omitempty"`
	BodyTemplate      string            `json:"BodyTemplate,omitempty"`
	RequiresAuth      bool              `json:"RequiresAuth,omitempty"`
	ResponseFieldMap  map[string]string `json:"ResponseFieldMap,omitempty"`
	Retries           int               `json:"Retries,omitempty"`

	// logic (120)
	ConditionVariable string `json:"ConditionVariable,omitempty"`
	ConditionOperator string `json:"ConditionOperator,omitempty"` // eq, ne, gt, lt, ge, le, range
	ConditionValue    string `json:"ConditionValue,omitempty"`
	ConditionValueMax string `json:"ConditionValueMax,omitempty"` // for "range"

	// tts (330, 331)
	TTSEngine string `json:"TTSEngine,omitempty"`
	TTSVoice  string `json:"TTSVoice,omitempty"`
}

// LinearChild returns the first configured edge's target, the interpreter's
// fallback when a handler did not resolve navigation itself.
func (n Node) LinearChild() (int, bool) {
	if len(n.ChildNodeConfig) == 0 {
		return 0, false
	}
	return n.ChildNodeConfig[0].ChildNodeID, true
}

// ChildForDigits scans ChildNodeConfig in declared order and returns the
// first edge whose key compares equal to digits under the resolved DTMF
// comparison rule (trimmed whitespace, significant leading zeros).
func (n Node) ChildForDigits(digits string) (int, bool) {
	want := trimDTMF(digits)
	for _, e := range n.ChildNodeConfig {
		if e.Key() == want {
			return e.ChildNodeID, true
		}
	}
	return 0, false
}

// ProcessFlow is the ordered sequence of Nodes making up one call flow.
type ProcessFlow []Node

// Configuration bundles one ProcessFlow with its GeneralSettings.
type Configuration struct {
	IVRProcessFlow      ProcessFlow       `json:"IVRProcessFlow"`
	GeneralSettingValues map[string]string `json:"GeneralSettingValues"`
}

// IVRFlowDocument is the root shape of the IVR flow JSON file.
type IVRFlowDocument struct {
	IVRConfiguration []Configuration `json:"IVRConfiguration"`
}

// Endpoint describes one entry in the WebAPI endpoint catalog.
type Endpoint struct {
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	DefaultHeaders map[string]string `json:"headers,omitempty"`
	TimeoutMS      int               `json:"timeout,omitempty"`
	AuthRequired   bool              `json:"auth_required,omitempty"`
}

// WebAPIDocument is the root shape of the WebAPI endpoint catalog file.
type WebAPIDocument struct {
	Result map[string]Endpoint `json:"result"`
}

// ExtensionMap is an opaque string-keyed auxiliary table consumed by the
// transfer handler family.
type ExtensionMap map[string]json.RawMessage

// RecordingTypeMap is an opaque string-keyed auxiliary table consumed by
// the recording handler family.
type RecordingTypeMap map[string]json.RawMessage

// FindNode returns the node with the given ID, or nil if absent.
func (pf ProcessFlow) FindNode(id int) *Node {
	for i := range pf {
		if pf[i].NodeID == id {
			return &pf[i]
		}
	}
	return nil
}

// FindStartNode returns the unique start node, or nil if none is flagged.
func (pf ProcessFlow) FindStartNode() *Node {
	for i := range pf {
		if pf[i].IsStartNode {
			return &pf[i]
		}
	}
	return nil
}

// Index builds a NodeId → *Node lookup, grounded on the teacher's preference
// for flat ID-keyed containers (see database package's id-keyed caches) over
// repeated linear scans during interpretation.
func (pf ProcessFlow) Index() map[int]*Node {
	idx := make(map[int]*Node, len(pf))
	for i := range pf {
		idx[pf[i].NodeID] = &pf[i]
	}
	return idx
}
