// file: internal/fsm/fsm_test.go
package fsm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dkoosis/stickynotes/internal/logging"
	lfsm "github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateFinished State = "finished"

	EventStart Event = "start"
	EventPause Event = "pause"
	EventStop  Event = "stop"
	EventReset Event = "reset"
	EventForce Event = "force"
	EventTick  Event = "tick"
)

func buildTestFSM(t *testing.T) FSM {
	t.Helper()
	machine := NewFSM(StateIdle, logging.GetNoopLogger())
	machine.AddTransition(Transition{From: []State{StateIdle, StatePaused}, Event: EventStart, To: StateRunning})
	machine.AddTransition(Transition{From: []State{StateRunning}, Event: EventPause, To: StatePaused})
	machine.AddTransition(Transition{From: []State{StateRunning, StatePaused}, Event: EventStop, To: StateFinished})
	machine.AddTransition(Transition{From: []State{StateFinished}, Event: EventReset, To: StateIdle})
	machine.AddTransition(Transition{From: []State{StateRunning}, Event: EventTick, To: StateRunning})
	require.NoError(t, machine.Build(), "Failed to build test FSM.")
	return machine
}

func TestFSM_Build_IsIdempotent(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	require.NoError(t, machine.Build())
	require.NoError(t, machine.Build(), "Calling Build() twice should not error.")
	assert.Equal(t, StateIdle, machine.CurrentState())
}

func TestFSM_BeforeBuild_ReturnsNotBuilt(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	assert.Equal(t, State(""), machine.CurrentState())
	assert.False(t, machine.CanTransition(EventStart))
	assert.ErrorIs(t, machine.Transition(context.Background(), EventStart, nil), ErrNotBuilt)
	assert.ErrorIs(t, machine.Reset(), ErrNotBuilt)
}

func TestFSM_BasicTransitions_Succeeds(t *testing.T) {
	machine := buildTestFSM(t)
	ctx := context.Background()

	require.NoError(t, machine.Transition(ctx, EventStart, nil))
	assert.Equal(t, StateRunning, machine.CurrentState())

	require.NoError(t, machine.Transition(ctx, EventPause, nil))
	require.NoError(t, machine.Transition(ctx, EventStart, nil), "Resume from Paused should succeed.")
	require.NoError(t, machine.Transition(ctx, EventStop, nil))
	assert.Equal(t, StateFinished, machine.CurrentState())
}

func TestFSM_SelfLoop_Succeeds(t *testing.T) {
	machine := buildTestFSM(t)
	ctx := context.Background()
	require.NoError(t, machine.Transition(ctx, EventStart, nil))

	require.NoError(t, machine.Transition(ctx, EventTick, nil), "A self-loop is a successful no-op.")
	assert.Equal(t, StateRunning, machine.CurrentState())
}

func TestFSM_InvalidTransition_ReturnsError(t *testing.T) {
	machine := buildTestFSM(t)

	assert.False(t, machine.CanTransition(EventStop))
	err := machine.Transition(context.Background(), EventStop, nil)
	require.Error(t, err)
	var invalid lfsm.InvalidEventError
	assert.True(t, errors.As(err, &invalid), "Expected InvalidEventError, got %T.", err)
	assert.Equal(t, StateIdle, machine.CurrentState())
}

func TestFSM_TransitionWithAction_ExecutesAction(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	var executed atomic.Bool

	machine.AddTransition(Transition{
		From:  []State{StateIdle},
		Event: EventStart,
		To:    StateRunning,
		Action: func(_ context.Context, event Event, data interface{}) error {
			executed.Store(true)
			assert.Equal(t, EventStart, event)
			assert.Equal(t, "some data", data)
			return nil
		},
	})
	require.NoError(t, machine.Build())

	require.NoError(t, machine.Transition(context.Background(), EventStart, "some data"))
	assert.Equal(t, StateRunning, machine.CurrentState())
	assert.True(t, executed.Load())
}

func TestFSM_ActionsSelectedByEvent(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	var started, forced atomic.Int32
	machine.AddTransition(Transition{From: []State{StateIdle}, Event: EventStart, To: StateRunning,
		Action: func(context.Context, Event, interface{}) error { started.Add(1); return nil }})
	machine.AddTransition(Transition{From: []State{StateIdle}, Event: EventForce, To: StateRunning,
		Action: func(context.Context, Event, interface{}) error { forced.Add(1); return nil }})
	require.NoError(t, machine.Build())

	require.NoError(t, machine.Transition(context.Background(), EventForce, nil))
	assert.Equal(t, int32(0), started.Load())
	assert.Equal(t, int32(1), forced.Load())
}

func TestFSM_TransitionWithFailingAction_StillTransitions(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	machine.AddTransition(Transition{
		From:   []State{StateIdle},
		Event:  EventStart,
		To:     StateRunning,
		Action: func(context.Context, Event, interface{}) error { return errors.New("action failed deliberately") },
	})
	require.NoError(t, machine.Build())

	require.NoError(t, machine.Transition(context.Background(), EventStart, nil))
	assert.Equal(t, StateRunning, machine.CurrentState())
}

func TestFSM_TransitionWithGuard_AllowsAndBlocks(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	canForce := true
	machine.AddTransition(Transition{
		From:  []State{StateIdle},
		Event: EventForce,
		To:    StateRunning,
		Condition: func(_ context.Context, event Event, data interface{}) bool {
			assert.Equal(t, EventForce, event)
			assert.Equal(t, "force data", data)
			return canForce
		},
	})
	require.NoError(t, machine.Build())
	ctx := context.Background()

	require.NoError(t, machine.Transition(ctx, EventForce, "force data"))
	assert.Equal(t, StateRunning, machine.CurrentState())

	require.NoError(t, machine.SetState(StateIdle))
	canForce = false
	assert.True(t, machine.CanTransition(EventForce), "CanTransition ignores guards.")
	err := machine.Transition(ctx, EventForce, "force data")
	require.Error(t, err)
	var canceled lfsm.CanceledError
	assert.True(t, errors.As(err, &canceled), "Expected CanceledError, got %T.", err)
	assert.Equal(t, StateIdle, machine.CurrentState())
}

func TestFSM_Reset_RestoresInitialState(t *testing.T) {
	machine := buildTestFSM(t)
	ctx := context.Background()
	require.NoError(t, machine.Transition(ctx, EventStart, nil))
	require.NoError(t, machine.Transition(ctx, EventPause, nil))

	require.NoError(t, machine.Reset())
	assert.Equal(t, StateIdle, machine.CurrentState())
	assert.True(t, machine.CanTransition(EventStart))
	assert.False(t, machine.CanTransition(EventPause))
}

func TestFSM_Build_Fails_When_ConflictingDestinations(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	machine.AddTransition(Transition{From: []State{StateIdle}, Event: EventStart, To: StateRunning})
	machine.AddTransition(Transition{From: []State{StateIdle}, Event: EventStart, To: StatePaused})

	err := machine.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting destinations")
}

func TestFSM_Build_Fails_When_MissingFromState(t *testing.T) {
	machine := NewFSM(StateIdle, nil)
	machine.AddTransition(Transition{Event: EventStart, To: StateRunning})

	err := machine.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing 'From' states")
}
