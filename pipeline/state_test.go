package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateMachineValidLifecycle(t *testing.T) {
	var transitions []State
	sm := newStateMachine(func(from, to State) { transitions = append(transitions, to) })

	require.NoError(t, sm.transition(StateStarting))
	require.NoError(t, sm.transition(StateRunning))
	require.NoError(t, sm.transition(StateStopping))
	require.NoError(t, sm.transition(StateStopped))
	require.Equal(t, []State{StateStarting, StateRunning, StateStopping, StateStopped}, transitions)
}

func TestStateMachineRejectsInvalidTransition(t *testing.T) {
	sm := newStateMachine(nil)
	require.Error(t, sm.transition(StateRunning)) // Stopped -> Running is not direct
}

func TestFaultReachableFromAnyNonFaultedState(t *testing.T) {
	sm := newStateMachine(nil)
	require.NoError(t, sm.transition(StateStarting))
	sm.fault()
	require.Equal(t, StateFaulted, sm.Current())
}

func TestFaultIsIdempotent(t *testing.T) {
	sm := newStateMachine(nil)
	sm.fault()
	sm.fault()
	require.Equal(t, StateFaulted, sm.Current())
}
