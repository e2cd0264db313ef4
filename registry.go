package slotfsm

import "reflect"

// Registration is meant to finish before the engine sees concurrent traffic.
// The methods lock the engine, but racing them with runtime calls gives no
// guarantee about which configuration a concurrent transition observes.

// Register registers a state with the constructor of its backing object.
// Registering a known state is a no-op, except that a state created earlier
// without a constructor (by Chain, Route or a policy method) adopts ctor.
func (e *Engine[P]) Register(id State, ctor Constructor[P]) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s := e.ensure(id); s.ctor == nil {
		s.ctor = ctor
	}

	return e
}

// Chain registers the states and makes each one the default successor of the one before it.
func (e *Engine[P]) Chain(ids ...State) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, id := range ids {
		s := e.ensure(id)
		if i+1 < len(ids) {
			s.next = ids[i+1]
		}
	}

	return e
}

// Route registers the state and routes the events to it.
// A later route for the same event replaces an earlier one.
func (e *Engine[P]) Route(id State, events ...Event) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensure(id)

	for _, event := range events {
		e.routes[event] = id
	}

	return e
}

// Whitelist registers the state and adds the events to its whitelist. While the
// state is active, a routed event not on a non-empty whitelist is suppressed.
func (e *Engine[P]) Whitelist(id State, events ...Event) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensure(id).white.Insert(events...)

	return e
}

// Blacklist registers the state and adds the events to its blacklist. While the
// state is active, routed events on the blacklist are suppressed.
func (e *Engine[P]) Blacklist(id State, events ...Event) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensure(id).black.Insert(events...)

	return e
}

// Defer registers the state and adds the events to its deferlist. While the state
// is active, a deferred event is delivered to its destination's inbox and the
// destination replaces the state's default successor on the next NextState.
func (e *Engine[P]) Defer(id State, events ...Event) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensure(id).deferred.Insert(events...)

	return e
}

// Reuse marks registered states as reusing their backing object across
// leave/enter cycles. Unregistered states are ignored.
func (e *Engine[P]) Reuse(ids ...State) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range ids {
		if s, ok := e.slots[id]; ok {
			s.mu.Lock()
			s.reuse = true
			s.mu.Unlock()
		}
	}

	return e
}

// Declare binds each sample's kind to the sample's Go type. Posting a payload of
// another type under that kind fails with ErrPayloadMismatch. Kinds that are not
// declared are bound by the first payload posted. Nil samples are skipped.
func (e *Engine[P]) Declare(samples ...Payload) *Engine[P] {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range samples {
		kind, ok := kindOf(p)
		if !ok {
			continue
		}

		if _, ok := e.shapes[kind]; !ok {
			e.shapes[kind] = reflect.TypeOf(p)
		}
	}

	return e
}

// ensure returns the slot for id, creating it if needed. It must be called with e.mu held.
func (e *Engine[P]) ensure(id State) *slot[P] {
	if s, ok := e.slots[id]; ok {
		return s
	}

	s := newSlot(e, id)
	e.slots[id] = s

	return s
}

// bindShape checks p against the type bound to kind, binding it on first use.
// It must be called with e.mu held.
func (e *Engine[P]) bindShape(kind Event, p Payload) error {
	got := reflect.TypeOf(p)

	want, ok := e.shapes[kind]
	if !ok {
		e.shapes[kind] = got
		return nil
	}

	if want != got {
		return &ErrPayloadMismatch{Event: kind, Want: want.String(), Got: got.String()}
	}

	return nil
}
