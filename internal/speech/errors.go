package speech

import (
	"errors"
	"fmt"

	"github.com/duetaudio/duet-core/internal/engine"
	"github.com/duetaudio/duet-core/internal/script"
	"github.com/duetaudio/duet-core/internal/synth"
)

// Kind classifies a failed generation request.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindEngineTimeout   Kind = "engine_timeout"
	KindEngineTransport Kind = "engine_transport"
	KindEngineResponse  Kind = "engine_response"
	KindInternal        Kind = "internal"
)

// Error is the single failure shape surfaced per request. Group is the failing
// group index, or -1 when no group is attributable.
type Error struct {
	Kind  Kind
	Group int
	Err   error
}

func (e *Error) Error() string {
	if e.Group >= 0 {
		return fmt.Sprintf("%s (group %d): %v", e.Kind, e.Group, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(err error) *Error {
	return &Error{Kind: KindValidation, Group: -1, Err: err}
}

// classify maps pipeline failures onto the taxonomy. Engine-call failures keep
// the failing group index from the orchestrator; anything unrecognized is
// internal.
func classify(err error) *Error {
	var known *Error
	if errors.As(err, &known) {
		return known
	}

	group := -1
	var ge *synth.GroupError
	if errors.As(err, &ge) {
		group = ge.Group
	}

	switch {
	case errors.Is(err, script.ErrNoSegments):
		return &Error{Kind: KindValidation, Group: -1, Err: err}
	case errors.Is(err, engine.ErrTimeout):
		return &Error{Kind: KindEngineTimeout, Group: group, Err: err}
	case errors.Is(err, engine.ErrTransport):
		return &Error{Kind: KindEngineTransport, Group: group, Err: err}
	case errors.Is(err, engine.ErrResponse):
		return &Error{Kind: KindEngineResponse, Group: group, Err: err}
	default:
		return &Error{Kind: KindInternal, Group: group, Err: err}
	}
}
