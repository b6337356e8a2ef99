package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
)

// Logic implements opcode 120: evaluates a declared predicate against a
// session variable and routes via the edge whose InputKeys matches the
// chosen branch label ("true"/"false" by convention).
type Logic struct{ Deps }

func NewLogic(d Deps) *Logic { return &Logic{Deps: d} }

func (l *Logic) Execute(_ context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	if opcode != dispatch.OpConditionalBranch {
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}

	actual := sc.GetVariable(node.ConditionVariable, "", true)
	branch := "false"
	if evaluate(actual, node.ConditionOperator, node.ConditionValue, node.ConditionValueMax) {
		branch = "true"
	}

	next, ok := node.ChildForDigits(branch)
	if !ok {
		l.Log.Warn().Str("node_var", node.ConditionVariable).Str("branch", branch).
			Msg("conditional branch has no matching edge, falling through to invalid input")
		return dispatch.Result{Handled: true, InvalidInput: true}, nil
	}
	return dispatch.Result{Handled: true, NextNodeID: next}, nil
}

// evaluate compares actual against value (and valueMax for "range") using
// numeric comparison when both sides parse as floats, falling back to
// lexical string comparison otherwise.
func evaluate(actual, operator, value, valueMax string) bool {
	switch strings.ToLower(operator) {
	case "eq", "":
		return actual == value
	case "ne":
		return actual != value
	case "gt":
		return compare(actual, value) > 0
	case "lt":
		return compare(actual, value) < 0
	case "ge":
		return compare(actual, value) >= 0
	case "le":
		return compare(actual, value) <= 0
	case "range":
		return compare(actual, value) >= 0 && compare(actual, valueMax) <= 0
	default:
		return false
	}
}

func compare(a, b string) int {
	af, aErr := strconv.ParseFloat(a, 64)
	bf, bErr := strconv.ParseFloat(b, 64)
	if aErr == nil && bErr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
