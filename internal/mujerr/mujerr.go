// Package mujerr classifies core failures into the kinds the supervising
// binary needs to decide whether to log-and-continue or bubble up.
package mujerr

import (
	"errors"
	"fmt"
)

// Kind is one of the failure classes from the core's error handling design.
type Kind int

const (
	// Transport covers TCP/Noise failures on the SV2 connection.
	Transport Kind = iota
	// Protocol covers setup/channel-open rejection and unexpected messages.
	Protocol
	// Frame covers ASIC frame decode, CRC, and length failures.
	Frame
	// Data covers per-operation data faults (bad job_id parse, wrong length).
	Data
	// Config covers bad pool URLs and invalid endpoints.
	Config
	// Resource covers closed channels and similar exhausted resources.
	Resource
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case Frame:
		return "frame"
	case Data:
		return "data"
	case Config:
		return "config"
	case Resource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can decide, via
// errors.As, whether a failure is fatal to the source's run loop.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fatal reports whether errors of this kind are fatal to a source's
// run-function per the core-wide failure semantics: Transport and Protocol
// errors during setup/open are fatal, Frame/Data faults are not.
func Fatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return true // unclassified errors are conservatively treated as fatal
	}
	switch e.Kind {
	case Frame, Data:
		return false
	default:
		return true
	}
}
