package slotfsm

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/enetx/g"
)

type (
	// State identifies a registered state. Applications declare their states as constants.
	State g.String
	// Event identifies an event kind; routing and admission decisions are keyed by it.
	Event g.String

	// Payload is a value posted to the engine. Kind must depend on the Go type only,
	// so implement it on the value receiver.
	Payload interface{ Kind() Event }

	// Constructor builds the backing object of a state when the state is entered.
	// params is the parameter value supplied to the triggering runtime call.
	Constructor[P any] func(ctx *Context[P], params P) (any, error)

	// Handler is implemented by backing objects that want to be told about pending events.
	// OnEvent runs whenever the state's inbox receives an event while the state is active.
	Handler[P any] interface {
		OnEvent(ctx *Context[P])
	}

	// Decision is the verdict of the active state's admission policy for a routed event.
	Decision int

	// slot holds everything the engine knows about one registered state.
	slot[P any] struct {
		id       State
		next     State
		white    g.Set[Event]
		black    g.Set[Event]
		deferred g.Set[Event]
		reuse    bool
		ctor     Constructor[P]
		inbox    *EventBox
		ctx      *Context[P]
		logger   *slog.Logger

		mu     sync.Mutex
		params P
		object any
		active bool
		epoch  uint64

		signal  atomic.Bool
		running atomic.Bool
	}

	// Engine is the finite state machine runtime. It owns the state registry, the
	// event router and the queue of deferred overrides. All methods are safe for
	// concurrent use once registration has completed.
	Engine[P any] struct {
		name   string
		logger *slog.Logger

		mu        sync.Mutex
		current   *slot[P]
		gen       uint64
		slots     g.Map[State, *slot[P]]
		routes    g.Map[Event, State]
		shapes    g.Map[Event, reflect.Type]
		overrides g.Slice[State]
		shutdown  bool
		inflight  int

		drained  chan struct{}
		drain    sync.Once
		teardown sync.Once
	}
)

const (
	// Admit lets the routed event transition the engine immediately.
	Admit Decision = iota
	// Suppress drops the event.
	Suppress
	// Defer queues the event's destination as the next successor of the active state.
	Defer
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case Suppress:
		return "suppress"
	case Defer:
		return "defer"
	default:
		return "unknown"
	}
}
