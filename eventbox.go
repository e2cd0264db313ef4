package slotfsm

import (
	"reflect"
	"sync"

	"github.com/enetx/g"
	"github.com/enetx/g/cmp"
)

// EventBox is a per-state inbox holding at most one pending payload per event kind.
// A newer payload of the same kind overwrites an unconsumed one.
//
// The internal lock is held only for the duration of a single operation, so a
// handler may Put into or Take from the box it is currently handling.
type EventBox struct {
	mu     sync.Mutex
	events g.Map[Event, Payload]
}

// NewEventBox returns an empty inbox.
func NewEventBox() *EventBox {
	return &EventBox{events: g.NewMap[Event, Payload]()}
}

// Put stores p under its kind, replacing any pending payload of that kind.
// Nil payloads, typed nil pointers included, are ignored.
func (b *EventBox) Put(p Payload) {
	kind, ok := kindOf(p)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[kind] = p
}

// Pop removes and returns the pending payload of the given kind.
func (b *EventBox) Pop(kind Event) g.Option[Payload] {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.events[kind]
	if !ok {
		return g.None[Payload]()
	}

	delete(b.events, kind)

	return g.Some(p)
}

// HasAny reports whether any kind is pending.
func (b *EventBox) HasAny() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.events) > 0
}

// Len returns the number of pending kinds.
func (b *EventBox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.events)
}

// Kinds returns the pending kinds in lexical order.
func (b *EventBox) Kinds() g.Slice[Event] {
	b.mu.Lock()
	kinds := make(g.Slice[Event], 0, len(b.events))
	for kind := range b.events {
		kinds = append(kinds, kind)
	}
	b.mu.Unlock()

	kinds.SortBy(cmp.Cmp)

	return kinds
}

// Clear drops every pending payload.
func (b *EventBox) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.events)
}

// Take removes the pending payload of T's kind from the box and returns it.
// A pending payload of that kind whose Go type is not T is consumed as well and
// reported as absent. An interface T has no kind and always yields None.
func Take[T Payload](b *EventBox) g.Option[T] {
	kind, ok := kindOf(sample[T]())
	if !ok {
		return g.None[T]()
	}

	p := b.Pop(kind)
	if p.IsNone() {
		return g.None[T]()
	}

	v, ok := p.Some().(T)
	if !ok {
		return g.None[T]()
	}

	return g.Some(v)
}

// sample returns a T to read the kind of. A pointer T points at a zero value so
// that value-receiver Kind methods can be called on it.
func sample[T Payload]() Payload {
	var zero T

	if t := reflect.TypeOf(zero); t != nil && t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface().(Payload)
	}

	return zero
}

// kindOf returns the kind of p. It reports false for nil payloads, typed nil
// pointers and Kind methods that panic.
func kindOf(p Payload) (kind Event, ok bool) {
	if p == nil {
		return "", false
	}

	if v := reflect.ValueOf(p); v.Kind() == reflect.Pointer && v.IsNil() {
		return "", false
	}

	defer func() {
		if recover() != nil {
			kind, ok = "", false
		}
	}()

	return p.Kind(), true
}
