// file: internal/mcp/state/events.go
package state

import "github.com/dkoosis/stickynotes/internal/fsm"

// Method names with lifecycle meaning.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
)

// Lifecycle events. The rcvd_* events are driven by client messages; the rest
// are raised by the server itself.
const (
	EventInitializeRequest fsm.Event = "rcvd_initialize_request"
	EventClientInitialized fsm.Event = "rcvd_client_initialized_notif"
	EventMCPRequest        fsm.Event = "rcvd_mcp_request"
	EventMCPNotification   fsm.Event = "rcvd_mcp_notification"
	EventShutdownRequested fsm.Event = "shutdown_requested"
	EventTransportClosed   fsm.Event = "transport_closed"
)

// EventForMethod maps an incoming method to its lifecycle event.
// Ping has no event: it is valid in every live state and never changes state.
func EventForMethod(method string, isNotification bool) fsm.Event {
	switch method {
	case MethodInitialize:
		return EventInitializeRequest
	case MethodInitialized:
		return EventClientInitialized
	case MethodPing:
		return ""
	}
	if isNotification {
		return EventMCPNotification
	}
	return EventMCPRequest
}
