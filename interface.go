package slotfsm

import (
	"context"

	"github.com/enetx/g"
)

// StateMachine is the runtime surface of an engine, for components that drive it
// without registering states.
type StateMachine[P any] interface {
	EnterState(State, ...P) error
	NextState(State, ...P) error
	PostEvent(Payload, ...P) error
	InState(State) bool
	Current() State
	ExistState(...State) bool
	ExistEvent(...Event) bool
	GetState(State) g.Option[any]
	Pending() g.Slice[State]
	Snapshot() Snapshot
	ToDOT() g.String
	Shutdown(context.Context) error
	MarshalJSON() ([]byte, error)
}

// Interface compliance check.
var _ StateMachine[struct{}] = (*Engine[struct{}])(nil)
