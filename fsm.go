// Package slotfsm provides an embeddable finite state machine engine whose states
// own application objects. States are chained by default successors, typed events
// are routed to destination states, and every state can whitelist, blacklist or
// defer routed events while it is active.
//
// Backing objects are built by a Constructor when their state is entered and are
// handed a Context through which they advance the engine (Context.Next), post
// events (Context.Post) and consume their inbox (Take). Runtime calls may come
// from any goroutine, including from inside constructors and event hooks: the
// engine never holds its lock while application code runs.
package slotfsm

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/enetx/g"
	"github.com/google/uuid"
)

// New creates an engine with no registered states.
// P is the type of the parameter value passed to state constructors.
func New[P any](opts ...Option) *Engine[P] {
	o := options{logger: Logger}
	for _, opt := range opts {
		opt(&o)
	}

	if o.name == "" {
		o.name = uuid.NewString()
	}

	return &Engine[P]{
		name:      o.name,
		logger:    o.logger.With(slog.String("fsm", o.name)),
		slots:     g.NewMap[State, *slot[P]](),
		routes:    g.NewMap[Event, State](),
		shapes:    g.NewMap[Event, reflect.Type](),
		overrides: g.NewSlice[State](),
		drained:   make(chan struct{}),
	}
}

// Name returns the name the engine logs under.
func (e *Engine[P]) Name() string { return e.name }

// EnterState makes id the current state, leaving the previous one. It starts the
// engine or resets it to an explicit state. Entering the current state is a no-op.
// An unregistered id leaves the engine with no current state.
func (e *Engine[P]) EnterState(id State, params ...P) error {
	e.mu.Lock()

	if e.shutdown {
		e.mu.Unlock()
		return ErrShutdown
	}

	old := e.current
	next := e.slots[id]

	if old == next {
		e.mu.Unlock()

		if next == nil {
			return &ErrUnknownState{State: id}
		}

		return nil
	}

	gen := e.switchTo(next)
	e.inflight++
	e.mu.Unlock()

	defer e.done()

	return e.transit(old, next, id, gen, params)
}

// NextState advances the engine from caller, which must be the current state.
// The destination is the oldest pending deferred override, or caller's default
// successor when none is pending. A caller that is no longer current is ignored.
func (e *Engine[P]) NextState(caller State, params ...P) error {
	e.mu.Lock()

	if e.shutdown {
		e.mu.Unlock()
		return ErrShutdown
	}

	old := e.current

	switch {
	case old == nil:
		e.mu.Unlock()
		return ErrNoState
	case old.id != caller:
		e.mu.Unlock()
		e.logger.Debug("ignoring stale advance", slog.String("caller", string(caller)), slog.String("current", string(old.id)))
		return &ErrStaleCaller{Caller: caller, Current: old.id}
	}

	to := old.next
	if e.overrides.NotEmpty() {
		to = e.overrides[0]
		e.overrides = e.overrides[1:]
	}

	next := e.slots[to]

	if old == next {
		e.mu.Unlock()
		return nil
	}

	gen := e.switchTo(next)
	e.inflight++
	e.mu.Unlock()

	defer e.done()

	if to == "" {
		old.leave()
		e.logger.Warn("state has no successor", slog.String("state", string(old.id)))
		return &ErrNoSuccessor{State: old.id}
	}

	return e.transit(old, next, to, gen, params)
}

// PostEvent delivers p. An unrouted event, or one routed to the current state, is
// handled in place by the current state without consulting its admission policy.
// An event routed elsewhere is judged by the current state: suppressed events are
// dropped, deferred ones wait in their destination's inbox until the current state
// advances, admitted ones transition the engine to their destination at once.
// With no current state a routed event enters its destination directly.
// A nil payload, typed nil pointers included, returns ErrNilPayload.
func (e *Engine[P]) PostEvent(p Payload, params ...P) error {
	kind, ok := kindOf(p)
	if !ok {
		return ErrNilPayload
	}

	e.mu.Lock()

	if e.shutdown {
		e.mu.Unlock()
		return ErrShutdown
	}

	if err := e.bindShape(kind, p); err != nil {
		e.mu.Unlock()
		e.logger.Warn("dropping event", slog.String("event", string(kind)), slog.Any("error", err))
		return err
	}

	cur := e.current
	to, routed := e.routes[kind]

	switch {
	case !routed && cur == nil:
		e.mu.Unlock()
		return ErrNoState
	case !routed:
		e.logger.Debug("handling unrouted event", slog.String("event", string(kind)), slog.String("state", string(cur.id)))
		return e.local(cur, p)
	case cur != nil && cur.id == to:
		e.logger.Debug("handling routed event in place", slog.String("event", string(kind)), slog.String("state", string(cur.id)))
		return e.local(cur, p)
	}

	target := e.slots[to]

	decision := Admit
	if cur != nil {
		decision = cur.decide(kind)
	}

	switch decision {
	case Suppress:
		e.mu.Unlock()
		e.logger.Debug("event suppressed", slog.String("event", string(kind)), slog.String("state", string(cur.id)))
		return &ErrSuppressed{State: cur.id, Event: kind}
	case Defer:
		target.deliver(p, false)
		e.overrides.Push(to)
		e.mu.Unlock()
		e.logger.Debug("event deferred", slog.String("event", string(kind)), slog.String("state", string(cur.id)), slog.String("to", string(to)))
		return nil
	}

	target.deliver(p, false)
	gen := e.switchTo(target)
	e.inflight++
	e.mu.Unlock()

	defer e.done()

	e.logger.Debug("event admitted", slog.String("event", string(kind)), slog.String("to", string(to)))

	return e.transit(cur, target, to, gen, params)
}

// local delivers p to cur and runs its hook. It must be called with e.mu held and releases it.
func (e *Engine[P]) local(cur *slot[P], p Payload) error {
	cur.deliver(p, false)
	e.inflight++
	e.mu.Unlock()

	defer e.done()

	cur.dispatch()

	return nil
}

// switchTo makes s the current state and returns the generation of that switch.
// It must be called with e.mu held.
func (e *Engine[P]) switchTo(s *slot[P]) uint64 {
	e.current = s
	e.gen++

	return e.gen
}

// transit leaves old and enters next. Both calls run without the engine lock
// because constructors and hooks call back into the engine. Leaving old may run
// application code that moves the engine on again; next is then skipped.
func (e *Engine[P]) transit(old, next *slot[P], to State, gen uint64, params []P) error {
	if old != nil {
		e.logger.Debug("leaving state", slog.String("state", string(old.id)))
		old.leave()
	}

	if next == nil {
		e.logger.Warn("transition to unregistered state", slog.String("state", string(to)))
		return &ErrUnknownState{State: to}
	}

	epoch, ok := e.activate(next, gen)
	if !ok {
		e.logger.Debug("state superseded before entry", slog.String("state", string(to)))
		return nil
	}

	e.logger.Debug("entering state", slog.String("state", string(to)))
	next.enter(epoch, params)

	return nil
}

// activate marks s active if it is still the current state of switch gen.
func (e *Engine[P]) activate(s *slot[P], gen uint64) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen || e.current != s {
		return 0, false
	}

	return s.activate(), true
}

// done marks the end of an in-flight call and releases Shutdown once the last one finishes.
func (e *Engine[P]) done() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.inflight--
	if e.shutdown && e.inflight == 0 {
		e.drain.Do(func() { close(e.drained) })
	}
}

// InState reports whether id is the current state.
func (e *Engine[P]) InState(id State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.current != nil && e.current.id == id
}

// Current returns the current state, or "" when there is none.
func (e *Engine[P]) Current() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ""
	}

	return e.current.id
}

// ExistState reports whether every given state is registered.
// It returns false when called without states.
func (e *Engine[P]) ExistState(ids ...State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(ids) == 0 {
		return false
	}

	for _, id := range ids {
		if _, ok := e.slots[id]; !ok {
			return false
		}
	}

	return true
}

// ExistEvent reports whether every given event is routed.
// It returns false when called without events.
func (e *Engine[P]) ExistEvent(events ...Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(events) == 0 {
		return false
	}

	for _, event := range events {
		if _, ok := e.routes[event]; !ok {
			return false
		}
	}

	return true
}

// GetState returns the backing object of a state, if the state is registered and
// currently has one.
func (e *Engine[P]) GetState(id State) g.Option[any] {
	e.mu.Lock()
	s, ok := e.slots[id]
	e.mu.Unlock()

	if !ok {
		return g.None[any]()
	}

	if obj := s.get(); obj != nil {
		return g.Some(obj)
	}

	return g.None[any]()
}

// StateOf returns the backing object of a state as a T.
func StateOf[T any, P any](e *Engine[P], id State) g.Option[T] {
	obj := e.GetState(id)
	if obj.IsNone() {
		return g.None[T]()
	}

	v, ok := obj.Some().(T)
	if !ok {
		return g.None[T]()
	}

	return g.Some(v)
}

// Pending returns the queued deferred overrides, oldest first.
func (e *Engine[P]) Pending() g.Slice[State] {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.overrides.Clone()
}

// Shutdown stops the engine. Runtime calls made after it starts are no-ops
// returning ErrShutdown. It waits for in-flight transitions and event deliveries
// to finish, then leaves the current state and closes every backing object.
//
// A transition stuck in application code keeps Shutdown waiting; ctx bounds that
// wait, in which case Shutdown returns ctx.Err() and nothing is torn down. Calling
// Shutdown from inside a constructor or event hook counts the caller as in flight
// and therefore only returns through ctx.
func (e *Engine[P]) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.shutdown {
		e.shutdown = true
		e.logger.Debug("shutting down", slog.Int("inflight", e.inflight))
	}

	if e.inflight == 0 {
		e.drain.Do(func() { close(e.drained) })
	}
	e.mu.Unlock()

	select {
	case <-e.drained:
	case <-ctx.Done():
		e.logger.Warn("shutdown interrupted with transitions in flight", slog.Any("error", ctx.Err()))
		return ctx.Err()
	}

	e.teardown.Do(func() {
		e.mu.Lock()
		cur := e.current
		e.switchTo(nil)
		e.overrides = nil

		slots := make(g.Slice[*slot[P]], 0, len(e.slots))
		for _, s := range e.slots {
			slots = append(slots, s)
		}
		e.mu.Unlock()

		if cur != nil {
			cur.leave()
		}

		for _, s := range slots {
			s.destroy()
		}

		e.logger.Debug("engine torn down")
	})

	return nil
}

// Close is Shutdown without a deadline.
func (e *Engine[P]) Close() error {
	return e.Shutdown(context.Background())
}
