package slotfsm_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/enetx/slotfsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotLayout = `
states: [ready, build_map, clean, recharge]
chains:
  - [ready, build_map]
  - [clean, recharge]
routes:
  clean: [clean_event]
blacklist:
  recharge: [clean_event]
reuse: [clean]
`

func TestLayout_Parse(t *testing.T) {
	t.Parallel()

	l, err := slotfsm.ParseLayout([]byte(robotLayout))
	require.NoError(t, err)

	assert.Len(t, l.States, 4)
	require.Len(t, l.Chains, 2)
	assert.Equal(t, []slotfsm.Event{evClean}, []slotfsm.Event(l.Routes[robotClean]))
	assert.Equal(t, []slotfsm.State{robotClean}, []slotfsm.State(l.Reuse))
}

func TestLayout_ParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{name: "malformed", yaml: "states: [a", msg: "yaml"},
		{name: "empty state", yaml: `states: [a, ""]`, msg: "empty state in states"},
		{name: "empty chain state", yaml: `chains: [[a, ""]]`, msg: "empty state in chain 0"},
		{name: "empty event", yaml: `routes: {a: [""]}`, msg: `empty event for state "a" in routes`},
		{name: "unknown reuse", yaml: "states: [a]\nreuse: [b]", msg: `reuse of unregistered state "b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := slotfsm.ParseLayout([]byte(tt.yaml))

			var le *slotfsm.ErrLayout
			require.ErrorAs(t, err, &le)
			assert.Empty(t, le.Path)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLayout_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	good := filepath.Join(dir, "robot.yaml")
	require.NoError(t, os.WriteFile(good, []byte(robotLayout), 0o600))

	l, err := slotfsm.LoadLayout(good)
	require.NoError(t, err)
	assert.Len(t, l.States, 4)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("reuse: [ghost]"), 0o600))

	_, err = slotfsm.LoadLayout(bad)

	var le *slotfsm.ErrLayout
	require.ErrorAs(t, err, &le)
	assert.Equal(t, bad, le.Path)

	_, err = slotfsm.LoadLayout(filepath.Join(dir, "missing.yaml"))
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLayout_ApplyRunsScenario(t *testing.T) {
	t.Parallel()

	l, err := slotfsm.ParseLayout([]byte(robotLayout))
	require.NoError(t, err)

	j := &journal{}

	e := newEngine("layout").Apply(l)
	register(e, robotReady, robotBuildMap, robotClean, robotRecharge)

	assert.True(t, e.ExistState(robotReady, robotBuildMap, robotClean, robotRecharge))
	assert.True(t, e.ExistEvent(evClean))

	require.NoError(t, e.EnterState(robotReady, j))
	require.NoError(t, e.NextState(robotReady, j))
	assert.True(t, e.InState(robotBuildMap))

	require.NoError(t, e.PostEvent(cleanEvent{ID: 7}, j))
	assert.True(t, e.InState(robotClean))

	require.NoError(t, e.NextState(robotClean, j))
	assert.True(t, e.InState(robotRecharge))
	assert.NotNil(t, probeOf(e, robotClean), "clean is reused")

	var suppressed *slotfsm.ErrSuppressed
	assert.ErrorAs(t, e.PostEvent(cleanEvent{ID: 8}), &suppressed)

	assert.Equal(t, []string{
		"enter ready",
		"enter build_map",
		"enter clean",
		"clean got clean_event",
		"enter recharge",
	}, j.all())
}

func TestLayout_RoundTrip(t *testing.T) {
	t.Parallel()

	l, err := slotfsm.ParseLayout([]byte(robotLayout))
	require.NoError(t, err)

	exported := newEngine("export").Apply(l).Layout()

	data, err := exported.Marshal()
	require.NoError(t, err)

	again, err := slotfsm.ParseLayout(data)
	require.NoError(t, err)

	assert.Equal(t, exported, again)
	assert.Equal(t, exported, newEngine("again").Apply(again).Layout())

	assert.Equal(t, []slotfsm.State{robotClean}, []slotfsm.State(exported.Reuse))
	assert.Equal(t, []slotfsm.Event{evClean}, []slotfsm.Event(exported.Blacklist[robotRecharge]))
	assert.Nil(t, exported.Whitelist)
	assert.Nil(t, exported.Defer)
}

func TestLayout_ChainsMergeAndCycle(t *testing.T) {
	t.Parallel()

	e := newEngine("chains").
		Chain(stateA, stateB).
		Chain(stateB, stateC).
		Chain(stateT, stateU, stateT)

	l := e.Layout()

	require.Len(t, l.Chains, 2)
	assert.Equal(t, []slotfsm.State{stateA, stateB, stateC}, []slotfsm.State(l.Chains[0]))
	assert.Equal(t, []slotfsm.State{stateT, stateU, stateT}, []slotfsm.State(l.Chains[1]))

	rebuilt := newEngine("rebuilt").Apply(l).Layout()
	assert.Equal(t, l.Chains, rebuilt.Chains)
}
