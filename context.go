package slotfsm

import "log/slog"

// Context is the handle a backing object receives from the engine.
// There is one Context per registered state; it stays valid for the engine's lifetime.
// State is the identity of the state the Context belongs to and Inbox is that state's inbox.
type Context[P any] struct {
	State  State
	Inbox  *EventBox
	Logger *slog.Logger

	fsm *Engine[P]
}

func newContext[P any](e *Engine[P], id State, inbox *EventBox) *Context[P] {
	return &Context[P]{
		State:  id,
		Inbox:  inbox,
		Logger: e.logger.With(slog.String("state", string(id))),
		fsm:    e,
	}
}

// Engine returns the engine the state is registered with.
func (c *Context[P]) Engine() *Engine[P] { return c.fsm }

// Next advances the engine from this state. See Engine.NextState.
func (c *Context[P]) Next(params ...P) error {
	return c.fsm.NextState(c.State, params...)
}

// Post posts an event on behalf of this state. See Engine.PostEvent.
func (c *Context[P]) Post(p Payload, params ...P) error {
	return c.fsm.PostEvent(p, params...)
}

// Active reports whether this state is the engine's current state.
func (c *Context[P]) Active() bool {
	return c.fsm.InState(c.State)
}
