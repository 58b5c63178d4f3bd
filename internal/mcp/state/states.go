// Package state defines the states and events of the MCP connection lifecycle.
// file: internal/mcp/state/states.go
package state

import "github.com/dkoosis/stickynotes/internal/fsm"

// Lifecycle states.
const (
	StateUninitialized fsm.State = "uninitialized" // Connected, no initialize request yet.
	StateInitializing  fsm.State = "initializing"  // Initialize answered, awaiting notifications/initialized.
	StateInitialized   fsm.State = "initialized"   // Handshake complete.
	StateShuttingDown  fsm.State = "shuttingDown"  // Server is stopping; in-flight work drains.
	StateShutdown      fsm.State = "shutdown"      // Transport closed.
)

// IsTerminal reports whether no further transitions are expected from s.
func IsTerminal(s fsm.State) bool {
	return s == StateShutdown
}
