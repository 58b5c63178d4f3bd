// Package fsm provides a small finite state machine wrapper over looplab/fsm.
// file: internal/fsm/fsm.go
package fsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
	lfsm "github.com/looplab/fsm"
)

// State represents a state in the FSM.
type State string

// Event represents an event that can trigger a state transition.
type Event string

// TransitionAction runs after a transition has entered its destination state.
type TransitionAction func(ctx context.Context, event Event, data interface{}) error

// GuardCondition decides whether a transition may happen. Returning false cancels it.
type GuardCondition func(ctx context.Context, event Event, data interface{}) bool

// Transition defines a transition rule between states.
type Transition struct {
	From      []State          // Source states for this transition.
	To        State            // The destination state.
	Event     Event            // The event triggering the transition.
	Action    TransitionAction // Optional action run on entering To.
	Condition GuardCondition   // Optional guard checked before the event.
}

// FSM defines the interface for the finite state machine wrapper.
type FSM interface {
	// AddTransition stores a transition definition. Call Build() after adding all transitions.
	AddTransition(transition Transition) FSM
	// Build finalizes the configuration and creates the underlying machine.
	Build() error
	// CurrentState returns the current state, or "" before Build().
	CurrentState() State
	// CanTransition reports whether event is defined for the current state.
	CanTransition(event Event) bool
	// Transition triggers event. A transition whose destination equals the current
	// state is a successful no-op.
	Transition(ctx context.Context, event Event, data interface{}) error
	// SetState forces the current state without running callbacks.
	SetState(state State) error
	// Reset returns the machine to its initial state.
	Reset() error
}

// ErrNotBuilt is returned by operations that need a successful Build().
var ErrNotBuilt = errors.New("fsm has not been built")

// loopFSM implements FSM using looplab/fsm.
type loopFSM struct {
	initialState State
	logger       logging.Logger
	transitions  []Transition
	fsm          *lfsm.FSM // nil until Build() succeeds.
	buildErr     error
	mu           sync.RWMutex
}

// NewFSM creates a new FSM builder with the given initial state.
// Call AddTransition() to define transitions, then Build() to finalize.
func NewFSM(initialState State, logger logging.Logger) FSM {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &loopFSM{
		initialState: initialState,
		logger:       logger.WithField("component", "fsm"),
	}
}

// AddTransition stores a transition definition to be used during Build().
func (l *loopFSM) AddTransition(t Transition) FSM {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fsm != nil {
		l.logger.Error("Cannot add a transition after Build().", "event", t.Event)
		if l.buildErr == nil {
			l.buildErr = errors.New("cannot AddTransition after Build")
		}
		return l
	}
	if len(t.From) == 0 {
		l.logger.Error("Transition definition missing 'From' states.", "event", t.Event, "to", t.To)
		if l.buildErr == nil {
			l.buildErr = errors.Newf("transition for event '%s' is missing 'From' states", t.Event)
		}
		return l
	}
	l.transitions = append(l.transitions, t)
	return l
}

// Build finalizes the configuration. Calling it again returns the first result.
func (l *loopFSM) Build() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fsm != nil || l.buildErr != nil {
		return l.buildErr
	}

	descs := make(map[string]*lfsm.EventDesc)
	order := make([]string, 0)
	callbacks := make(lfsm.Callbacks)
	byDestination := make(map[State][]Transition)

	for _, t := range l.transitions {
		name := string(t.Event)
		desc, exists := descs[name]
		if !exists {
			desc = &lfsm.EventDesc{Name: name, Dst: string(t.To)}
			descs[name] = desc
			order = append(order, name)
		} else if desc.Dst != string(t.To) {
			l.buildErr = errors.Newf("conflicting destinations ('%s' and '%s') for event '%s'", desc.Dst, t.To, name)
			l.logger.Error("Invalid FSM configuration.", "error", fmt.Sprintf("%+v", l.buildErr))
			return l.buildErr
		}
		for _, s := range t.From {
			if !containsString(desc.Src, string(s)) {
				desc.Src = append(desc.Src, string(s))
			}
		}

		if t.Condition != nil {
			key := "before_" + name
			if previous, ok := callbacks[key]; ok {
				callbacks[key] = chainCallbacks(previous, l.guardCallback(t))
			} else {
				callbacks[key] = l.guardCallback(t)
			}
		}
		if t.Action != nil {
			byDestination[t.To] = append(byDestination[t.To], t)
		}
	}

	for state, transitions := range byDestination {
		callbacks["enter_"+string(state)] = l.actionCallback(transitions)
	}

	events := make(lfsm.Events, 0, len(order))
	for _, name := range order {
		events = append(events, *descs[name])
	}

	l.fsm = lfsm.NewFSM(string(l.initialState), events, callbacks)
	l.logger.Debug("FSM built.", "initialState", l.initialState, "eventCount", len(events))
	return nil
}

// guardCallback cancels the event when t applies to the source state and its condition fails.
func (l *loopFSM) guardCallback(t Transition) lfsm.Callback {
	return func(ctx context.Context, e *lfsm.Event) {
		if !fromContains(t.From, e.Src) {
			return
		}
		if !t.Condition(ctx, t.Event, eventData(e)) {
			l.logger.Debug("Guard condition failed, cancelling transition.", "event", t.Event, "from", e.Src)
			e.Cancel(errors.Newf("guard condition for event '%s' from state '%s' failed", t.Event, e.Src))
		}
	}
}

// actionCallback runs the action of whichever transition produced the entered state.
// Action errors are logged; the state change has already happened.
func (l *loopFSM) actionCallback(transitions []Transition) lfsm.Callback {
	return func(ctx context.Context, e *lfsm.Event) {
		for _, t := range transitions {
			if string(t.Event) != e.Event || !fromContains(t.From, e.Src) {
				continue
			}
			if err := t.Action(ctx, t.Event, eventData(e)); err != nil {
				l.logger.Error("Transition action failed.",
					"event", t.Event, "from", e.Src, "to", e.Dst, "error", fmt.Sprintf("%+v", err))
			}
			return
		}
	}
}

// CurrentState returns the current state of the FSM.
func (l *loopFSM) CurrentState() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fsm == nil {
		return ""
	}
	return State(l.fsm.Current())
}

// CanTransition checks if event can fire from the current state.
func (l *loopFSM) CanTransition(event Event) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fsm == nil {
		return false
	}
	return l.fsm.Can(string(event))
}

// Transition triggers a state transition.
func (l *loopFSM) Transition(ctx context.Context, event Event, data interface{}) error {
	l.mu.RLock()
	machine, buildErr := l.fsm, l.buildErr
	l.mu.RUnlock()
	if machine == nil {
		if buildErr != nil {
			return buildErr
		}
		return ErrNotBuilt
	}

	from := machine.Current()
	var args []interface{}
	if data != nil {
		args = append(args, data)
	}

	err := machine.Event(ctx, string(event), args...)
	if err != nil {
		var noTransition lfsm.NoTransitionError
		if errors.As(err, &noTransition) && noTransition.Err == nil {
			// Self-loop: the event is valid and the state is unchanged.
			return nil
		}
		var canceled lfsm.CanceledError
		if errors.As(err, &canceled) {
			l.logger.Debug("FSM transition canceled.", "event", event, "from", from, "error", err)
		} else {
			l.logger.Debug("FSM transition failed.", "event", event, "from", from, "error", err)
		}
		return err
	}

	l.logger.Debug("FSM transition succeeded.", "event", event, "from", from, "to", machine.Current())
	return nil
}

// SetState forces the FSM into state.
func (l *loopFSM) SetState(state State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fsm == nil {
		if l.buildErr != nil {
			return l.buildErr
		}
		return ErrNotBuilt
	}
	l.logger.Debug("Setting FSM state.", "state", state)
	l.fsm.SetState(string(state))
	return nil
}

// Reset sets the state back to the initial state.
func (l *loopFSM) Reset() error {
	return l.SetState(l.initialState)
}

func eventData(e *lfsm.Event) interface{} {
	if len(e.Args) > 0 {
		return e.Args[0]
	}
	return nil
}

func fromContains(from []State, src string) bool {
	for _, s := range from {
		if string(s) == src {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func chainCallbacks(first, second lfsm.Callback) lfsm.Callback {
	return func(ctx context.Context, e *lfsm.Event) {
		first(ctx, e)
		second(ctx, e)
	}
}
