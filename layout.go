package slotfsm

import (
	"errors"
	"fmt"
	"os"

	"github.com/enetx/g"
	"github.com/enetx/g/cmp"
	"gopkg.in/yaml.v3"
)

// Layout is a declarative description of an engine's registration: which states
// exist, how they chain, where events are routed and how each state filters
// routed events. Constructors are not part of a layout; bind them with Register.
//
//	states: [ready, build_map, clean, recharge]
//	chains:
//	  - [ready, build_map]
//	  - [clean, recharge]
//	routes:
//	  clean: [clean_event]
//	blacklist:
//	  recharge: [clean_event]
//	reuse: [clean]
type Layout struct {
	States    g.Slice[State]               `yaml:"states,omitempty"    json:"states,omitempty"`
	Chains    g.Slice[g.Slice[State]]      `yaml:"chains,omitempty"    json:"chains,omitempty"`
	Routes    g.Map[State, g.Slice[Event]] `yaml:"routes,omitempty"    json:"routes,omitempty"`
	Whitelist g.Map[State, g.Slice[Event]] `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
	Blacklist g.Map[State, g.Slice[Event]] `yaml:"blacklist,omitempty" json:"blacklist,omitempty"`
	Defer     g.Map[State, g.Slice[Event]] `yaml:"defer,omitempty"     json:"defer,omitempty"`
	Reuse     g.Slice[State]               `yaml:"reuse,omitempty"     json:"reuse,omitempty"`
}

// ParseLayout decodes and validates a YAML layout.
func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, &ErrLayout{Err: err}
	}

	if err := l.Validate(); err != nil {
		return Layout{}, &ErrLayout{Err: err}
	}

	return l, nil
}

// LoadLayout reads and parses a YAML layout file.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, &ErrLayout{Path: path, Err: err}
	}

	l, err := ParseLayout(data)
	if err != nil {
		var le *ErrLayout
		if errors.As(err, &le) {
			le.Path = path
		}

		return Layout{}, err
	}

	return l, nil
}

// Validate reports empty identities and states listed for reuse that the layout
// never registers.
func (l Layout) Validate() error {
	known := g.NewSet[State]()

	for _, id := range l.States {
		if id == "" {
			return errors.New("empty state in states")
		}

		known.Insert(id)
	}

	for i, chain := range l.Chains {
		for _, id := range chain {
			if id == "" {
				return fmt.Errorf("empty state in chain %d", i)
			}

			known.Insert(id)
		}
	}

	for name, lists := range map[string]g.Map[State, g.Slice[Event]]{
		"routes":    l.Routes,
		"whitelist": l.Whitelist,
		"blacklist": l.Blacklist,
		"defer":     l.Defer,
	} {
		for id, events := range lists {
			if id == "" {
				return fmt.Errorf("empty state in %s", name)
			}

			for _, event := range events {
				if event == "" {
					return fmt.Errorf("empty event for state %q in %s", id, name)
				}
			}

			known.Insert(id)
		}
	}

	for _, id := range l.Reuse {
		if !known.Contains(id) {
			return fmt.Errorf("reuse of unregistered state %q", id)
		}
	}

	return nil
}

// Marshal encodes the layout as YAML.
func (l Layout) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

// Apply registers everything the layout describes. Map sections are applied in
// state order, so the last route wins deterministically when two states claim
// the same event.
func (e *Engine[P]) Apply(l Layout) *Engine[P] {
	for _, id := range l.States {
		e.Register(id, nil)
	}

	for _, chain := range l.Chains {
		e.Chain(chain...)
	}

	for _, id := range sortedStates(l.Routes) {
		e.Route(id, l.Routes[id]...)
	}

	for _, id := range sortedStates(l.Whitelist) {
		e.Whitelist(id, l.Whitelist[id]...)
	}

	for _, id := range sortedStates(l.Blacklist) {
		e.Blacklist(id, l.Blacklist[id]...)
	}

	for _, id := range sortedStates(l.Defer) {
		e.Defer(id, l.Defer[id]...)
	}

	return e.Reuse(l.Reuse...)
}

// Layout exports the engine's current registration. Successor links are merged
// into the longest chains they form.
func (e *Engine[P]) Layout() Layout {
	e.mu.Lock()
	defer e.mu.Unlock()

	slots := e.sorted()

	var l Layout

	preds := g.NewSet[State]()
	for _, s := range slots {
		l.States.Push(s.id)

		if s.next != "" {
			preds.Insert(s.next)
		}
	}

	visited := g.NewSet[State]()

	follow := func(s *slot[P]) {
		var chain g.Slice[State]

		for s != nil && !visited.Contains(s.id) {
			visited.Insert(s.id)
			chain.Push(s.id)

			if s.next == "" {
				break
			}

			next, ok := e.slots[s.next]
			if !ok || visited.Contains(s.next) {
				chain.Push(s.next)
				break
			}

			s = next
		}

		if len(chain) > 1 {
			l.Chains.Push(chain)
		}
	}

	for _, s := range slots {
		if s.next != "" && !preds.Contains(s.id) {
			follow(s)
		}
	}

	for _, s := range slots {
		if s.next != "" && !visited.Contains(s.id) {
			follow(s)
		}
	}

	for event, id := range e.routes {
		if l.Routes == nil {
			l.Routes = g.NewMap[State, g.Slice[Event]]()
		}

		l.Routes[id] = append(l.Routes[id], event)
	}

	for id, events := range l.Routes {
		events.SortBy(cmp.Cmp)
		l.Routes[id] = events
	}

	for _, s := range slots {
		l.Whitelist = addPolicy(l.Whitelist, s.id, s.white)
		l.Blacklist = addPolicy(l.Blacklist, s.id, s.black)
		l.Defer = addPolicy(l.Defer, s.id, s.deferred)

		s.mu.Lock()
		if s.reuse {
			l.Reuse.Push(s.id)
		}
		s.mu.Unlock()
	}

	return l
}

func addPolicy(m g.Map[State, g.Slice[Event]], id State, set g.Set[Event]) g.Map[State, g.Slice[Event]] {
	if len(set) == 0 {
		return m
	}

	if m == nil {
		m = g.NewMap[State, g.Slice[Event]]()
	}

	m[id] = sortedEvents(set)

	return m
}

func sortedStates[V any](m g.Map[State, V]) g.Slice[State] {
	ids := make(g.Slice[State], 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	ids.SortBy(cmp.Cmp)

	return ids
}
