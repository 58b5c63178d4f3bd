package mcp

// file: internal/mcp/mcp_server_processing.go

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
	"github.com/dkoosis/stickynotes/internal/transport"
)

// serverProcessing handles the main server loop, reading messages and dispatching them.
// Messages are handled one at a time in arrival order.
func (s *Server) serverProcessing(ctx context.Context, handlerFunc mcptypes.MessageHandler) error {
	if handlerFunc == nil {
		return errors.New("serve called with nil handler function")
	}
	s.logger.Info("Server processing loop started.")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Context canceled, stopping server loop.")
			return ctx.Err()
		default:
		}

		if err := s.processNextMessage(ctx, handlerFunc); err != nil {
			if s.isTerminalError(err) {
				s.logger.Info("Terminal error received, stopping server loop.", "reason", err)
				return err
			}
			s.logger.Error("Non-terminal error processing message.", "error", fmt.Sprintf("%+v", err))
		}
	}
}

// processNextMessage reads, handles and answers a single message. Processing
// failures are answered with a JSON-RPC error response; only transport failures
// are returned.
func (s *Server) processNextMessage(ctx context.Context, handlerFunc mcptypes.MessageHandler) error {
	msgBytes, readErr := s.transport.ReadMessage(ctx)
	if readErr != nil {
		return s.handleTransportReadError(ctx, msgBytes, readErr)
	}

	method, idStr := s.extractMessageInfo(msgBytes)
	respBytes, handleErr := handlerFunc(ctx, msgBytes)
	if handleErr != nil {
		if writeErr := s.handleProcessingError(ctx, msgBytes, method, idStr, handleErr); writeErr != nil {
			return errors.Wrap(writeErr, "failed to write error response after processing error")
		}
		return nil
	}

	if respBytes == nil {
		s.logger.Debug("No response to write.", "method", method)
		return nil
	}
	if writeErr := s.writeResponse(ctx, respBytes, method, idStr); writeErr != nil {
		return errors.Wrap(writeErr, "failed to write successful response")
	}
	return nil
}

// handleTransportReadError returns terminal read errors. Malformed messages are
// answered with a parse or invalid-request error and the loop continues.
func (s *Server) handleTransportReadError(ctx context.Context, msgBytes []byte, readErr error) error {
	if s.isTerminalError(readErr) {
		s.logger.Debug("Terminal read error detected.", "error", readErr)
		return readErr
	}
	if transport.IsParseError(readErr) || transport.IsInvalidMessageError(readErr) {
		return s.handleProcessingError(ctx, msgBytes, "", "unknown", readErr)
	}
	s.logger.Error("Non-terminal error reading message from transport.", "error", fmt.Sprintf("%+v", readErr))
	return nil
}

// handleProcessingError logs a processing error and sends the matching JSON-RPC
// error response. A null or missing request ID is answered with ID 0.
func (s *Server) handleProcessingError(ctx context.Context, msgBytes []byte, method, idForLog string, handleErr error) error {
	s.logger.Warn("Error processing message.",
		"method", method,
		"requestID", idForLog,
		"error", fmt.Sprintf("%+v", handleErr))

	responseID := extractRequestID(s.logger, msgBytes)
	if string(responseID) == "null" {
		responseID = json.RawMessage("0")
	}

	errRespBytes, err := s.createErrorResponse(handleErr, responseID)
	if err != nil {
		return err
	}
	return s.writeResponse(ctx, errRespBytes, method, string(responseID))
}

// writeResponse sends response bytes through the transport.
func (s *Server) writeResponse(ctx context.Context, respBytes []byte, method, id string) error {
	if err := s.transport.WriteMessage(ctx, respBytes); err != nil {
		s.logger.Error("Failed to write response.",
			"method", method,
			"requestID", id,
			"responseSize", len(respBytes),
			"error", fmt.Sprintf("%+v", err))
		return err
	}
	s.logger.Debug("Successfully wrote response.", "method", method, "requestID", id, "responseSize", len(respBytes))
	return nil
}

// isTerminalError checks if an error signifies the end of the connection.
func (s *Server) isTerminalError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		return true
	}
	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		return transportErr.Code == transport.ErrTransportClosed ||
			transportErr.Code == transport.ErrWriteTimeout ||
			transportErr.Code == transport.ErrReadTimeout
	}
	return false
}

// extractMessageInfo gets method name and ID from raw message bytes for logging.
// The ID is "unknown" when missing, "null" for a JSON null, or the raw JSON otherwise.
func (s *Server) extractMessageInfo(msgBytes []byte) (method string, id string) {
	id = "unknown"
	var parsedInfo struct {
		Method *string         `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(msgBytes, &parsedInfo)

	if parsedInfo.Method != nil {
		method = *parsedInfo.Method
	}
	if parsedInfo.ID != nil {
		id = string(parsedInfo.ID)
	}
	return method, id
}
