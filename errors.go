package slotfsm

import (
	"errors"
	"fmt"
)

// Every runtime error is informational: the engine has already applied the
// silent behaviour (drop, no-op or "no current state") when it returns one.
// Callers that ignore the result get exactly that behaviour.
var (
	// ErrShutdown is returned by runtime calls made after Shutdown has started.
	ErrShutdown = errors.New("fsm: engine is shut down")
	// ErrNoState is returned when the engine has no current state to act on.
	ErrNoState = errors.New("fsm: no current state")
	// ErrNilPayload is returned by PostEvent for a nil payload or one whose kind cannot be read.
	ErrNilPayload = errors.New("fsm: nil payload")
)

// ErrCallback is returned or logged when a constructor, an event hook or a Close
// method returns an error or panics. It wraps the original error, allowing it to be
// inspected using functions like errors.Is and errors.As.
type ErrCallback struct {
	// HookType is the kind of callback where the error occurred ("Constructor", "OnEvent", "Close").
	HookType string
	// State is the state whose backing object was involved.
	State State
	// Err is the original error returned by the callback or the error created after recovering from a panic.
	Err error
}

func (e *ErrCallback) Error() string {
	return fmt.Sprintf("fsm: error in %s callback for state %q: %v", e.HookType, e.State, e.Err)
}

// Unwrap provides compatibility with the standard library's errors package,
// allowing the use of errors.Is and errors.As to inspect the wrapped error.
func (e *ErrCallback) Unwrap() error { return e.Err }

// ErrUnknownState is returned when a transition resolves to a state that was never
// registered. The previous state has been left and the engine has no current state.
type ErrUnknownState struct {
	State State
}

func (e *ErrUnknownState) Error() string {
	return fmt.Sprintf("fsm: state %q is not registered", e.State)
}

// ErrNoSuccessor is returned by NextState when the calling state has neither a
// pending override nor a default successor. The state has been left and the
// engine has no current state.
type ErrNoSuccessor struct {
	State State
}

func (e *ErrNoSuccessor) Error() string {
	return fmt.Sprintf("fsm: state %q has no successor", e.State)
}

// ErrStaleCaller is returned by NextState when the caller is no longer the current state.
type ErrStaleCaller struct {
	Caller  State
	Current State
}

func (e *ErrStaleCaller) Error() string {
	return fmt.Sprintf("fsm: state %q is not current (current is %q)", e.Caller, e.Current)
}

// ErrSuppressed is returned by PostEvent when the current state's admission policy
// dropped the event.
type ErrSuppressed struct {
	State State
	Event Event
}

func (e *ErrSuppressed) Error() string {
	return fmt.Sprintf("fsm: event %q suppressed in state %q", e.Event, e.State)
}

// ErrParamCount is logged when a transition supplies more than one parameter value.
// The state is entered without a backing object.
type ErrParamCount struct {
	State State
	Got   int
}

func (e *ErrParamCount) Error() string {
	return fmt.Sprintf("fsm: state %q expects at most one parameter value, got %d", e.State, e.Got)
}

// ErrPayloadMismatch is returned by PostEvent when a payload's Go type differs from
// the type already bound to its kind.
type ErrPayloadMismatch struct {
	Event Event
	Want  string
	Got   string
}

func (e *ErrPayloadMismatch) Error() string {
	return fmt.Sprintf("fsm: event %q carries %s, got %s", e.Event, e.Want, e.Got)
}

// ErrLayout is returned when a layout document cannot be decoded or is invalid.
type ErrLayout struct {
	Path string
	Err  error
}

func (e *ErrLayout) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("fsm: invalid layout %s: %v", e.Path, e.Err)
	}

	return fmt.Sprintf("fsm: invalid layout: %v", e.Err)
}

func (e *ErrLayout) Unwrap() error { return e.Err }
