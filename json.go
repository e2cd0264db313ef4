package slotfsm

import (
	"encoding/json"

	"github.com/enetx/g"
	"github.com/enetx/g/cmp"
)

// Snapshot is a serializable view of an engine: the current state, the deferred
// overrides, the router and the configuration of every registered state.
// It is meant for inspection; engines cannot be restored from it.
type Snapshot struct {
	Name      string               `json:"name"`
	Current   State                `json:"current"`
	Shutdown  bool                 `json:"shutdown"`
	Overrides g.Slice[State]       `json:"overrides"`
	Routes    g.Map[Event, State]  `json:"routes"`
	States    g.Slice[StateReport] `json:"states"`
}

// StateReport describes one registered state.
type StateReport struct {
	State     State          `json:"state"`
	Next      State          `json:"next,omitempty"`
	Reuse     bool           `json:"reuse"`
	Live      bool           `json:"live"`
	Pending   g.Slice[Event] `json:"pending,omitempty"`
	Whitelist g.Slice[Event] `json:"whitelist,omitempty"`
	Blacklist g.Slice[Event] `json:"blacklist,omitempty"`
	Defer     g.Slice[Event] `json:"defer,omitempty"`
}

// Snapshot returns the engine's current view. States are ordered by name.
func (e *Engine[P]) Snapshot() Snapshot {
	e.mu.Lock()

	snap := Snapshot{
		Name:      e.name,
		Shutdown:  e.shutdown,
		Overrides: e.overrides.Clone(),
		Routes:    g.NewMap[Event, State](),
	}

	if e.current != nil {
		snap.Current = e.current.id
	}

	for event, to := range e.routes {
		snap.Routes[event] = to
	}

	slots := e.sorted()
	e.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		reuse := s.reuse
		s.mu.Unlock()

		snap.States.Push(StateReport{
			State:     s.id,
			Next:      s.next,
			Reuse:     reuse,
			Live:      s.live(),
			Pending:   s.inbox.Kinds(),
			Whitelist: sortedEvents(s.white),
			Blacklist: sortedEvents(s.black),
			Defer:     sortedEvents(s.deferred),
		})
	}

	return snap
}

// MarshalJSON implements the json.Marshaler interface.
func (e *Engine[P]) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Snapshot())
}

// sorted returns the registered slots ordered by state. It must be called with e.mu held.
func (e *Engine[P]) sorted() g.Slice[*slot[P]] {
	ids := make(g.Slice[State], 0, len(e.slots))
	for id := range e.slots {
		ids = append(ids, id)
	}

	ids.SortBy(cmp.Cmp)

	slots := make(g.Slice[*slot[P]], 0, len(ids))
	for _, id := range ids {
		slots = append(slots, e.slots[id])
	}

	return slots
}

func sortedEvents(set g.Set[Event]) g.Slice[Event] {
	if len(set) == 0 {
		return nil
	}

	events := set.ToSlice()
	events.SortBy(cmp.Cmp)

	return events
}
