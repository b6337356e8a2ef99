package flowvalidate

import (
	"testing"

	"github.com/voxswitch/ivr-engine/internal/model"
)

func validDoc() *model.IVRFlowDocument {
	return &model.IVRFlowDocument{
		IVRConfiguration: []model.Configuration{
			{
				IVRProcessFlow: model.ProcessFlow{
					{NodeID: 1, OperationCode: 10, IsStartNode: true,
						ChildNodeConfig: []model.Edge{{ChildNodeID: 2}}},
					{NodeID: 2, OperationCode: 200},
				},
				GeneralSettingValues: map[string]string{},
			},
		},
	}
}

func TestIVRFlowAcceptsValidDocument(t *testing.T) {
	if err := IVRFlow(validDoc()); err != nil {
		t.Fatalf("IVRFlow() error = %v, want nil", err)
	}
}

// Invariant 1 — edge integrity: every edge's ChildNodeId must resolve to a
// node in the same ProcessFlow.
func TestIVRFlowRejectsDanglingEdge(t *testing.T) {
	doc := validDoc()
	doc.IVRConfiguration[0].IVRProcessFlow[0].ChildNodeConfig = []model.Edge{{ChildNodeID: 999}}

	if err := IVRFlow(doc); err == nil {
		t.Fatal("IVRFlow() error = nil, want a dangling-edge validation error")
	}
}

// Invariant 2 — opcode closure: every node's OperationCode must be in the
// dispatcher's domain.
func TestIVRFlowRejectsUnknownOpcode(t *testing.T) {
	doc := validDoc()
	doc.IVRConfiguration[0].IVRProcessFlow[0].OperationCode = 9999

	if err := IVRFlow(doc); err == nil {
		t.Fatal("IVRFlow() error = nil, want an unknown-opcode validation error")
	}
}

// Open Question #1 resolved: zero start nodes fails closed.
func TestIVRFlowRejectsNoStartNode(t *testing.T) {
	doc := validDoc()
	doc.IVRConfiguration[0].IVRProcessFlow[0].IsStartNode = false

	if err := IVRFlow(doc); err == nil {
		t.Fatal("IVRFlow() error = nil, want a missing-start-node validation error")
	}
}

// Open Question #1 resolved: multiple start nodes fails closed rather than
// nondeterministically picking one.
func TestIVRFlowRejectsMultipleStartNodes(t *testing.T) {
	doc := validDoc()
	doc.IVRConfiguration[0].IVRProcessFlow[1].IsStartNode = true

	if err := IVRFlow(doc); err == nil {
		t.Fatal("IVRFlow() error = nil, want a multiple-start-node validation error")
	}
}

func TestIVRFlowRejectsEmptyDocument(t *testing.T) {
	if err := IVRFlow(&model.IVRFlowDocument{}); err == nil {
		t.Fatal("IVRFlow() error = nil, want error for empty IVRConfiguration")
	}
}

func TestIVRFlowRejectsMissingGeneralSettings(t *testing.T) {
	doc := validDoc()
	doc.IVRConfiguration[0].GeneralSettingValues = nil

	if err := IVRFlow(doc); err == nil {
		t.Fatal("IVRFlow() error = nil, want error for missing GeneralSettingValues")
	}
}

func TestWebAPIAcceptsValidDocument(t *testing.T) {
	doc := &model.WebAPIDocument{Result: map[string]model.Endpoint{
		"crm": {URL: "https://example.invalid/crm", Method: "POST"},
	}}
	if err := WebAPI(doc); err != nil {
		t.Fatalf("WebAPI() error = %v, want nil", err)
	}
}

func TestWebAPIRejectsMissingResult(t *testing.T) {
	if err := WebAPI(&model.WebAPIDocument{}); err == nil {
		t.Fatal("WebAPI() error = nil, want error for missing result map")
	}
}

func TestWebAPIRejectsEndpointMissingURL(t *testing.T) {
	doc := &model.WebAPIDocument{Result: map[string]model.Endpoint{
		"crm": {Method: "POST"},
	}}
	if err := WebAPI(doc); err == nil {
		t.Fatal("WebAPI() error = nil, want error for endpoint missing url")
	}
}

func TestWebAPIRejectsMalformedURL(t *testing.T) {
	doc := &model.WebAPIDocument{Result: map[string]model.Endpoint{
		"crm": {URL: "not-a-url", Method: "POST"},
	}}
	if err := WebAPI(doc); err == nil {
		t.Fatal("WebAPI() error = nil, want error for url missing scheme/host")
	}
}

// DTMF-keyed edges are checked against the digit-set syntax (§4.5); a
// non-digit key fails closed rather than silently never matching.
func TestIVRFlowRejectsInvalidDTMFKey(t *testing.T) {
	doc := validDoc()
	doc.IVRConfiguration[0].IVRProcessFlow[0].ChildNodeConfig = []model.Edge{{ChildNodeID: 2, InputKeys: "1a"}}

	if err := IVRFlow(doc); err == nil {
		t.Fatal("IVRFlow() error = nil, want an invalid-DTMF-key validation error")
	}
}

// Transfer-family nodes must name a plausible extension (§4.4 transfer).
func TestIVRFlowRejectsImplausibleTransferTarget(t *testing.T) {
	doc := validDoc()
	doc.IVRConfiguration[0].IVRProcessFlow[1].OperationCode = 100
	doc.IVRConfiguration[0].IVRProcessFlow[1].TransferTarget = "not-an-extension"

	if err := IVRFlow(doc); err == nil {
		t.Fatal("IVRFlow() error = nil, want an invalid-transfer-target validation error")
	}
}
