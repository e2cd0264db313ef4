package slotfsm_test

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/enetx/slotfsm"
)

const (
	stateA slotfsm.State = "a"
	stateB slotfsm.State = "b"
	stateC slotfsm.State = "c"
	stateT slotfsm.State = "t"
	stateU slotfsm.State = "u"
)

const (
	evPing slotfsm.Event = "ping"
	evGo   slotfsm.Event = "go"
	evJump slotfsm.Event = "jump"
)

type ping struct{ N int }

func (ping) Kind() slotfsm.Event { return evPing }

type goEvent struct{ Msg string }

func (goEvent) Kind() slotfsm.Event { return evGo }

type jump struct{ To string }

func (jump) Kind() slotfsm.Event { return evJump }

// fakeGo claims the "go" kind with a different Go type.
type fakeGo struct{}

func (fakeGo) Kind() slotfsm.Event { return evGo }

// journal records what backing objects did, in order.
type journal struct {
	mu    sync.Mutex
	lines []string
}

func (j *journal) add(line string) {
	if j == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.lines = append(j.lines, line)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.lines...)
}

// probe is a backing object that records its construction, its events and its close.
type probe struct {
	name   string
	j      *journal
	events []slotfsm.Payload
	closed atomic.Bool
	onEvt  func(p *probe, ctx *slotfsm.Context[*journal])
}

func (p *probe) OnEvent(ctx *slotfsm.Context[*journal]) {
	for _, kind := range ctx.Inbox.Kinds() {
		if evt := ctx.Inbox.Pop(kind); evt.IsSome() {
			p.events = append(p.events, evt.Some())
			p.j.add(p.name + " got " + string(kind))
		}
	}

	if p.onEvt != nil {
		p.onEvt(p, ctx)
	}
}

func (p *probe) Close() error {
	p.closed.Store(true)
	return nil
}

var _ io.Closer = (*probe)(nil)

// probeCtor builds a probe named after the state and logs "enter <state>".
// A nil journal records nothing.
func probeCtor(onEvt func(p *probe, ctx *slotfsm.Context[*journal])) slotfsm.Constructor[*journal] {
	return func(ctx *slotfsm.Context[*journal], j *journal) (any, error) {
		j.add("enter " + string(ctx.State))

		return &probe{name: string(ctx.State), j: j, onEvt: onEvt}, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(name string) *slotfsm.Engine[*journal] {
	return slotfsm.New[*journal](slotfsm.WithName(name), slotfsm.WithLogger(quietLogger()))
}

// register binds probe constructors to every given state.
func register(e *slotfsm.Engine[*journal], ids ...slotfsm.State) {
	for _, id := range ids {
		e.Register(id, probeCtor(nil))
	}
}

func probeOf(e *slotfsm.Engine[*journal], id slotfsm.State) *probe {
	return slotfsm.StateOf[*probe](e, id).UnwrapOrDefault()
}
