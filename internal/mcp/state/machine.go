// file: internal/mcp/state/machine.go
package state

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/fsm"
	"github.com/dkoosis/stickynotes/internal/logging"
	mcperrors "github.com/dkoosis/stickynotes/internal/mcp/mcp_errors"
)

// MCPStateMachine tracks the lifecycle of one MCP connection.
type MCPStateMachine struct {
	fsm.FSM
	logger logging.Logger
}

// NewMCPStateMachine creates and configures a new lifecycle state machine.
func NewMCPStateMachine(logger logging.Logger) (*MCPStateMachine, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	log := logger.WithField("component", "mcp_state_machine")
	live := []fsm.State{StateUninitialized, StateInitializing, StateInitialized}

	machine := fsm.NewFSM(StateUninitialized, log)
	machine.AddTransition(fsm.Transition{
		From:  []fsm.State{StateUninitialized},
		Event: EventInitializeRequest,
		To:    StateInitializing,
	})
	machine.AddTransition(fsm.Transition{
		From:  []fsm.State{StateInitializing},
		Event: EventClientInitialized,
		To:    StateInitialized,
	})
	machine.AddTransition(fsm.Transition{
		From:  []fsm.State{StateInitialized},
		Event: EventMCPRequest,
		To:    StateInitialized,
	})
	machine.AddTransition(fsm.Transition{
		From:  []fsm.State{StateInitialized},
		Event: EventMCPNotification,
		To:    StateInitialized,
	})
	machine.AddTransition(fsm.Transition{
		From:  live,
		Event: EventShutdownRequested,
		To:    StateShuttingDown,
	})
	machine.AddTransition(fsm.Transition{
		From:  append(live, StateShuttingDown),
		Event: EventTransportClosed,
		To:    StateShutdown,
	})

	if err := machine.Build(); err != nil {
		log.Error("Failed to build MCP state machine.", "error", fmt.Sprintf("%+v", err))
		return nil, errors.Wrap(err, "failed to build MCP state machine configuration")
	}
	return &MCPStateMachine{FSM: machine, logger: log}, nil
}

// ValidateMethod checks whether receiving method is allowed in the current state.
// Out-of-sequence methods yield an ErrRequestSequence protocol error.
func (m *MCPStateMachine) ValidateMethod(method string, isNotification bool) error {
	current := m.CurrentState()
	event := EventForMethod(method, isNotification)

	if event == "" {
		if current == StateShuttingDown || IsTerminal(current) {
			return m.sequenceError(method, current)
		}
		return nil
	}
	if !m.CanTransition(event) {
		m.logger.Warn("Received out-of-sequence MCP method.", "method", method, "event", event, "state", current)
		return m.sequenceError(method, current)
	}
	return nil
}

// Advance records that method was handled, moving the lifecycle forward.
func (m *MCPStateMachine) Advance(ctx context.Context, method string, isNotification bool) error {
	event := EventForMethod(method, isNotification)
	if event == "" {
		return nil
	}
	return m.TriggerEvent(ctx, event, method)
}

// TriggerEvent fires event, logging failures.
func (m *MCPStateMachine) TriggerEvent(ctx context.Context, event fsm.Event, data interface{}) error {
	if err := m.Transition(ctx, event, data); err != nil {
		m.logger.Warn("Failed to trigger lifecycle event.", "event", event, "state", m.CurrentState(), "error", err)
		return err
	}
	return nil
}

func (m *MCPStateMachine) sequenceError(method string, current fsm.State) error {
	message := fmt.Sprintf("Method '%s' not allowed in current state '%s'", method, current)
	if current == StateUninitialized || current == StateInitializing {
		message = fmt.Sprintf("Method '%s' not allowed before initialization (state: '%s')", method, current)
	}
	return mcperrors.NewProtocolError(
		mcperrors.ErrRequestSequence,
		message,
		nil,
		map[string]interface{}{"method": method, "state": string(current)},
	)
}
