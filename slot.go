package slotfsm

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/enetx/g"
)

func newSlot[P any](e *Engine[P], id State) *slot[P] {
	inbox := NewEventBox()

	return &slot[P]{
		id:       id,
		white:    g.NewSet[Event](),
		black:    g.NewSet[Event](),
		deferred: g.NewSet[Event](),
		inbox:    inbox,
		ctx:      newContext(e, id, inbox),
		logger:   e.logger,
	}
}

// decide evaluates the admission policy for kind: whitelist, then blacklist, then deferlist.
func (s *slot[P]) decide(kind Event) Decision {
	switch {
	case len(s.white) > 0 && !s.white.Contains(kind):
		return Suppress
	case s.black.Contains(kind):
		return Suppress
	case s.deferred.Contains(kind):
		return Defer
	}

	return Admit
}

// activate marks the slot active and returns the epoch its entry runs under.
// The engine calls it with e.mu held.
func (s *slot[P]) activate() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.epoch++

	return s.epoch
}

// enter builds the backing object of a slot activated at epoch unless a reusable
// one exists. Zero params keep the previously applied value, one replaces it, more
// is an arity mismatch and the slot is entered without a backing object. A slot
// left since activation is not built.
func (s *slot[P]) enter(epoch uint64, params []P) {
	s.mu.Lock()

	if !s.active || s.epoch != epoch {
		s.mu.Unlock()
		return
	}

	var stale any
	if s.object != nil && !s.reuse {
		stale, s.object = s.object, nil
	}

	build := s.object == nil
	if len(params) == 1 {
		s.params = params[0]
	}

	p := s.params
	s.mu.Unlock()

	s.dispose(stale)

	switch {
	case !build:
	case len(params) > 1:
		s.logger.Warn("backing object not constructed",
			slog.String("state", string(s.id)),
			slog.Any("error", &ErrParamCount{State: s.id, Got: len(params)}))
	case s.ctor == nil:
		s.logger.Debug("state has no constructor", slog.String("state", string(s.id)))
	default:
		s.adopt(epoch, s.construct(p))
	}

	s.mu.Lock()
	ready := s.active && s.epoch == epoch
	s.mu.Unlock()

	if ready && s.inbox.HasAny() {
		s.dispatch()
	}
}

// adopt stores obj as the backing object if the slot was not left while obj was
// being constructed. A reusable slot keeps the object either way.
func (s *slot[P]) adopt(epoch uint64, obj any) {
	if obj == nil {
		return
	}

	s.mu.Lock()
	switch {
	case s.object != nil:
	case s.active && s.epoch == epoch, s.reuse:
		s.object, obj = obj, nil
	}
	s.mu.Unlock()

	if obj != nil {
		s.logger.Debug("state left during construction", slog.String("state", string(s.id)))
		s.dispose(obj)
	}
}

func (s *slot[P]) construct(p P) (obj any) {
	err := s.call("Constructor", func() error {
		var err error
		obj, err = s.ctor(s.ctx, p)
		return err
	})
	if err != nil {
		s.logger.Warn("backing object not constructed", slog.String("state", string(s.id)), slog.Any("error", err))
		return nil
	}

	return obj
}

// leave deactivates the slot, drops its pending events and, unless the slot
// reuses its object, destroys the backing object.
func (s *slot[P]) leave() {
	s.inbox.Clear()

	s.mu.Lock()
	s.active = false
	s.epoch++

	var stale any
	if !s.reuse {
		stale, s.object = s.object, nil
	}
	s.mu.Unlock()

	s.dispose(stale)
}

// destroy releases the backing object regardless of reuse.
func (s *slot[P]) destroy() {
	s.inbox.Clear()

	s.mu.Lock()
	s.active = false
	s.epoch++
	stale := s.object
	s.object = nil
	s.mu.Unlock()

	s.dispose(stale)
}

// deliver stores p in the inbox and, if hook is set, runs the event hook.
func (s *slot[P]) deliver(p Payload, hook bool) {
	s.inbox.Put(p)

	if hook {
		s.dispatch()
	}
}

// dispatch runs the event hook. Calls are serialized per slot without holding a
// lock across the hook: a dispatch requested while the hook runs, from any
// goroutine including the hook itself, re-runs it once the current call returns.
func (s *slot[P]) dispatch() {
	s.signal.Store(true)

	for s.running.CompareAndSwap(false, true) {
		for s.signal.Swap(false) {
			s.fire()
		}

		s.running.Store(false)

		if !s.signal.Load() {
			return
		}
	}
}

func (s *slot[P]) fire() {
	s.mu.Lock()
	obj, active := s.object, s.active
	s.mu.Unlock()

	if !active || obj == nil {
		return
	}

	h, ok := obj.(Handler[P])
	if !ok {
		s.inbox.Clear()
		return
	}

	if err := s.call("OnEvent", func() error { h.OnEvent(s.ctx); return nil }); err != nil {
		s.logger.Warn("event hook failed", slog.String("state", string(s.id)), slog.Any("error", err))
	}
}

func (s *slot[P]) get() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.object
}

func (s *slot[P]) live() bool { return s.get() != nil }

func (s *slot[P]) dispose(obj any) {
	c, ok := obj.(io.Closer)
	if !ok {
		return
	}

	if err := s.call("Close", c.Close); err != nil {
		s.logger.Warn("closing backing object failed", slog.String("state", string(s.id)), slog.Any("error", err))
	}
}

// call runs fn, converting a returned error or a panic into an ErrCallback.
func (s *slot[P]) call(hookType string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ErrCallback{HookType: hookType, State: s.id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if cbErr := fn(); cbErr != nil {
		err = &ErrCallback{HookType: hookType, State: s.id, Err: cbErr}
	}

	return err
}
