// Package flowvalidate implements the schema and graph-integrity checks the
// configuration store runs before publishing a parsed document (§4.1), and
// the edge-integrity / opcode-closure testable properties (§8).
package flowvalidate

import (
	"fmt"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/validators"
)

// IVRFlow validates a parsed IVR flow document. It fails closed: any
// violation returns a non-nil *engineerr.Error describing the first problem
// found, and the document must not be published.
func IVRFlow(doc *model.IVRFlowDocument) error {
	if doc == nil || len(doc.IVRConfiguration) == 0 {
		return engineerr.ConfigValidation("IVRConfiguration", "document has no configurations")
	}

	for ci, cfg := range doc.IVRConfiguration {
		if len(cfg.IVRProcessFlow) == 0 {
			return engineerr.ConfigValidation("IVRProcessFlow",
				fmt.Sprintf("configuration %d has an empty process flow", ci))
		}
		if cfg.GeneralSettingValues == nil {
			return engineerr.ConfigValidation("GeneralSettingValues",
				fmt.Sprintf("configuration %d is missing GeneralSettingValues", ci))
		}
		if err := validateProcessFlow(cfg.IVRProcessFlow); err != nil {
			return err
		}
	}
	return nil
}

// validateProcessFlow checks start-node uniqueness, opcode closure, and edge
// integrity (every edge target must resolve to a node in the same flow).
func validateProcessFlow(pf model.ProcessFlow) error {
	ids := pf.Index()

	startCount := 0
	for _, n := range pf {
		if n.IsStartNode {
			startCount++
		}
	}
	// Open Question #1 resolved: require uniqueness rather than taking the
	// first start node encountered in iteration order.
	if startCount == 0 {
		return engineerr.ConfigValidation("IsStartNode", "no node is flagged as the start node")
	}
	if startCount > 1 {
		return engineerr.ConfigValidation("IsStartNode",
			fmt.Sprintf("%d nodes are flagged as the start node, want exactly 1", startCount))
	}

	for _, n := range pf {
		if !dispatch.IsKnownOpcode(n.OperationCode) {
			return &engineerr.Error{
				Kind:    engineerr.KindConfigValidationError,
				Field:   "OperationCode",
				Opcode:  n.OperationCode,
				Message: fmt.Sprintf("node %d uses an unregistered opcode", n.NodeID),
			}
		}
		// Opcode 120 (conditional branch) keys its edges on the branch
		// labels "true"/"false", not DTMF digits, so it is exempt from the
		// digit-set check below.
		isDTMFKeyed := dispatch.Opcode(n.OperationCode) != dispatch.OpConditionalBranch
		for _, e := range n.ChildNodeConfig {
			if _, ok := ids[e.ChildNodeID]; !ok {
				return &engineerr.Error{
					Kind:    engineerr.KindConfigValidationError,
					Field:   "ChildNodeConfig",
					NodeID:  n.NodeID,
					Message: fmt.Sprintf("node %d has an edge to unknown node %d", n.NodeID, e.ChildNodeID),
				}
			}
			// Linear edges carry no key; only DTMF-keyed edges are checked
			// against the digit-set syntax (§4.5).
			if key := e.Key(); isDTMFKeyed && key != "" {
				if err := validators.DTMF(key); err != nil {
					return &engineerr.Error{
						Kind:    engineerr.KindConfigValidationError,
						Field:   "ChildNodeConfig.InputKeys",
						NodeID:  n.NodeID,
						Message: fmt.Sprintf("node %d: %v", n.NodeID, err),
					}
				}
			}
		}

		switch dispatch.Opcode(n.OperationCode) {
		case dispatch.OpTransferExtension, dispatch.OpBlindTransfer, dispatch.OpAttendedTransfer:
			if err := validators.Extension(n.TransferTarget); err != nil {
				return &engineerr.Error{
					Kind:    engineerr.KindConfigValidationError,
					Field:   "TransferTarget",
					NodeID:  n.NodeID,
					Message: fmt.Sprintf("node %d: %v", n.NodeID, err),
				}
			}
		}
	}
	return nil
}

// WebAPI validates the endpoint catalog document.
func WebAPI(doc *model.WebAPIDocument) error {
	if doc == nil || doc.Result == nil {
		return engineerr.ConfigValidation("result", "webapi document has no result map")
	}
	for name, ep := range doc.Result {
		if err := validators.URL(ep.URL); err != nil {
			return engineerr.ConfigValidation("result."+name+".url", err.Error())
		}
		if ep.Method == "" {
			return engineerr.ConfigValidation("result."+name+".method", "endpoint is missing a method")
		}
	}
	return nil
}
