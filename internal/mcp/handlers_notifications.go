// file: internal/mcp/handlers_notifications.go.
package mcp

import (
	"context"
	"encoding/json"
)

// handleInitializedNotification completes the handshake; the state machine records it.
func (h *Handler) handleInitializedNotification(_ context.Context, _ json.RawMessage) error {
	h.logger.Info("Client reported initialization complete.")
	return nil
}

// handleNotificationsCancelled handles notifications/cancelled. Requests are processed
// one at a time, so by the time this arrives the request has already been answered.
func (h *Handler) handleNotificationsCancelled(_ context.Context, params json.RawMessage) error {
	var cancelParams struct {
		RequestID interface{} `json:"requestId"`
		Reason    string      `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(params, &cancelParams); err != nil {
		h.logger.Warn("Could not parse notifications/cancelled params.", "error", err)
	}

	h.logger.Info("Received request cancellation notification.",
		"requestID", cancelParams.RequestID,
		"reason", cancelParams.Reason)
	return nil
}
