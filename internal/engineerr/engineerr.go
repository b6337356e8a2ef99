// Package engineerr defines the closed set of error kinds the engine
// surfaces across package boundaries, per the error handling design.
package engineerr

import "fmt"

// Kind identifies the category of an *Error so callers can branch on it
// with errors.As instead of string-matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigNotFound
	KindConfigParseError
	KindConfigValidationError
	KindUnknownOpcode
	KindHandlerFailure
	KindSessionNotReady
	KindSessionHungUp
	KindTokenEndpointUnreachable
	KindTokenEndpointRejected
	KindLoopGuardTripped
	KindEdgeResolutionFailure
)

func (k Kind) String() string {
	switch k {
	case KindConfigNotFound:
		return "ConfigNotFound"
	case KindConfigParseError:
		return "ConfigParseError"
	case KindConfigValidationError:
		return "ConfigValidationError"
	case KindUnknownOpcode:
		return "UnknownOpcode"
	case KindHandlerFailure:
		return "HandlerFailure"
	case KindSessionNotReady:
		return "SessionNotReady"
	case KindSessionHungUp:
		return "SessionHungUp"
	case KindTokenEndpointUnreachable:
		return "TokenEndpointUnreachable"
	case KindTokenEndpointRejected:
		return "TokenEndpointRejected"
	case KindLoopGuardTripped:
		return "LoopGuardTripped"
	case KindEdgeResolutionFailure:
		return "EdgeResolutionFailure"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with context fields and an optional cause.
type Error struct {
	Kind    Kind
	Field   string // ConfigValidationError
	Opcode  int    // UnknownOpcode, HandlerFailure
	NodeID  int    // LoopGuardTripped, EdgeResolutionFailure
	Visits  int    // LoopGuardTripped
	Digits  string // EdgeResolutionFailure
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	switch e.Kind {
	case KindConfigValidationError:
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	case KindUnknownOpcode:
		msg = fmt.Sprintf("%s (opcode=%d)", msg, e.Opcode)
	case KindHandlerFailure:
		msg = fmt.Sprintf("%s (opcode=%d)", msg, e.Opcode)
	case KindLoopGuardTripped:
		msg = fmt.Sprintf("%s (node=%d, visits=%d)", msg, e.NodeID, e.Visits)
	case KindEdgeResolutionFailure:
		msg = fmt.Sprintf("%s (node=%d, digits=%q)", msg, e.NodeID, e.Digits)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, engineerr.New(KindSessionNotReady, "")) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Cause: cause, Message: msg}
}

func ConfigValidation(field, msg string) *Error {
	return &Error{Kind: KindConfigValidationError, Field: field, Message: msg}
}

func UnknownOpcode(opcode int) *Error {
	return &Error{Kind: KindUnknownOpcode, Opcode: opcode, Message: "no handler registered for opcode"}
}

func HandlerFailure(opcode int, cause error) *Error {
	return &Error{Kind: KindHandlerFailure, Opcode: opcode, Cause: cause}
}

func LoopGuardTripped(nodeID, visits int) *Error {
	return &Error{Kind: KindLoopGuardTripped, NodeID: nodeID, Visits: visits, Message: "infinite loop detected"}
}

func EdgeResolutionFailure(nodeID int, digits string) *Error {
	return &Error{Kind: KindEdgeResolutionFailure, NodeID: nodeID, Digits: digits}
}
