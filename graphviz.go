package slotfsm

import (
	"github.com/enetx/g"
	"github.com/enetx/g/cmp"
)

// ToDOT generates a DOT language string representation of the engine for visualization.
// Solid edges are default successors, dashed edges lead from routed events to their
// destination states. Admission policies are shown as node tooltips.
func (e *Engine[P]) ToDOT() g.String {
	snap := e.Snapshot()

	b := g.NewBuilder()

	b.WriteString("digraph FSM {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString(
		"  node [shape=circle, style=filled, fillcolor=\"#f8f8f8\", color=\"#444444\", fontname=\"Helvetica\"];\n",
	)
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for state := range snap.States.Iter() {
		var attrs g.Slice[g.String]
		attrs.Push(g.Format("label=\"{}\"", state.State))

		switch {
		case state.State == snap.Current:
			attrs.Push("fillcolor=\"#90ee90\"", "shape=doublecircle")
		case state.Reuse:
			attrs.Push("fillcolor=\"#add8e6\"")
		}

		var tooltips g.Slice[g.String]

		if state.Whitelist.NotEmpty() {
			tooltips.Push(g.Format("whitelist: {}", joinEvents(state.Whitelist)))
		}

		if state.Blacklist.NotEmpty() {
			tooltips.Push(g.Format("blacklist: {}", joinEvents(state.Blacklist)))
		}

		if state.Defer.NotEmpty() {
			tooltips.Push(g.Format("defer: {}", joinEvents(state.Defer)))
		}

		if tooltips.NotEmpty() {
			attrs.Push(g.Format("tooltip=\"{}\"", tooltips.Join("\\n")))
		}

		b.WriteString(g.Format("  \"{}\" [{}];\n", state.State, attrs.Join(", ")))
	}

	b.WriteByte('\n')

	for state := range snap.States.Iter() {
		if state.Next == "" {
			continue
		}

		b.WriteString(g.Format("  \"{}\" -> \"{}\" [label=\" next \"];\n", state.State, state.Next))
	}

	events := make(g.Slice[Event], 0, len(snap.Routes))
	for event := range snap.Routes {
		events = append(events, event)
	}

	events.SortBy(cmp.Cmp)

	if events.NotEmpty() {
		b.WriteByte('\n')
	}

	for event := range events.Iter() {
		b.WriteString(g.Format("  \"event:{}\" [label=\"{}\", shape=box, fillcolor=\"#fff5cc\"];\n", event, event))
		b.WriteString(
			g.Format("  \"event:{}\" -> \"{}\" [style=dashed, color=\"#cc8800\"];\n", event, snap.Routes[event]),
		)
	}

	b.WriteString("\n  subgraph cluster_legend {\n")
	b.WriteString("    label = \"Legend\";\n")
	b.WriteString("    style = dashed;\n")
	b.WriteString(`    key [label=<
      <table border="0" cellpadding="4" cellspacing="0" cellborder="0">
        <tr><td align="right">●</td><td>Regular state</td></tr>
        <tr><td align="right"><font color="green">◎</font></td><td>Current state</td></tr>
        <tr><td align="right"><font color="blue">●</font></td><td>Reused state</td></tr>
        <tr><td align="right"><font color="orange">⇢</font></td><td>Routed event</td></tr>
      </table>
    >, shape=none];`)

	b.WriteString("  }\n")
	b.WriteString("}\n")

	return b.String()
}

func joinEvents(events g.Slice[Event]) g.String {
	names := make(g.Slice[g.String], 0, len(events))
	for _, event := range events {
		names = append(names, g.String(event))
	}

	return names.Join(", ")
}
