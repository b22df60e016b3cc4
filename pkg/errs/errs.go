// Package errs defines the closed set of error kinds produced by Mechaway's
// execution substrate, so the trigger surface can map a failure to an HTTP
// status without string-matching error messages.
package errs

import "fmt"

// Kind identifies the category of an Error.
type Kind string

const (
	InvalidGraph           Kind = "InvalidGraph"
	UnknownWorkflow        Kind = "UnknownWorkflow"
	UnknownNode            Kind = "UnknownNode"
	BindingEvalError       Kind = "BindingEvalError"
	ScriptCompileError     Kind = "ScriptCompileError"
	ScriptRuntimeError     Kind = "ScriptRuntimeError"
	ScriptResourceExhausted Kind = "ScriptResourceExhausted"
	UpstreamError          Kind = "UpstreamError"
	StorageUnavailable     Kind = "StorageUnavailable"
	MissingSecret          Kind = "MissingSecret"
	Cancelled              Kind = "Cancelled"
	DeadlineExceeded       Kind = "DeadlineExceeded"
	Internal               Kind = "Internal"
)

// Error is a Mechaway error tagged with a Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving it as the Cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, or Internal if err is not a *Error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As is a thin wrapper over errors.As kept local to avoid importing "errors"
// in every caller just to unwrap a *Error.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsClientError reports whether kind should surface as an HTTP 4xx on the
// trigger surface rather than a 500 — the request or workflow was bad, not
// the engine.
func IsClientError(kind Kind) bool {
	switch kind {
	case UnknownWorkflow, UnknownNode, BindingEvalError, MissingSecret, InvalidGraph:
		return true
	default:
		return false
	}
}
