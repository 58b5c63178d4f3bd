// File: internal/mcp/mcp_server_error_handling.go.
package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
	mcperrors "github.com/dkoosis/stickynotes/internal/mcp/mcp_errors"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// createErrorResponse creates the byte representation of a JSON-RPC error response.
func (s *Server) createErrorResponse(err error, requestID json.RawMessage) ([]byte, error) {
	code, message, data := mcperrors.MapMCPErrorToJSONRPC(err)
	s.logErrorDetails(code, message, requestID, data, err)

	errorResponse := mcptypes.JSONRPCErrorContainer{
		JSONRPC: "2.0",
		ID:      requestID,
		Error: mcptypes.JSONRPCErrorPayload{
			Code:    code,
			Message: message,
		},
	}
	if len(data) > 0 {
		errorResponse.Error.Data = data
	}

	responseBytes, marshalErr := json.Marshal(errorResponse)
	if marshalErr != nil {
		s.logger.Error("Failed to marshal error response.",
			"marshalError", fmt.Sprintf("%+v", marshalErr),
			"originalError", fmt.Sprintf("%+v", err))
		return nil, errors.Wrap(marshalErr, "failed to marshal error response object")
	}
	return responseBytes, nil
}

// extractRequestID gets the ID from raw message bytes, or null when there is none.
func extractRequestID(logger logging.Logger, msgBytes []byte) json.RawMessage {
	var request struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(msgBytes, &request) != nil || request.ID == nil {
		return json.RawMessage("null")
	}
	idStr := strings.TrimSpace(string(request.ID))
	if strings.HasPrefix(idStr, "[") || strings.HasPrefix(idStr, "{") ||
		idStr == "true" || idStr == "false" {
		logger.Warn("Invalid JSON-RPC ID found, treating as null.", "rawId", idStr)
		return json.RawMessage("null")
	}
	return request.ID
}

// logErrorDetails logs detailed error information server-side.
func (s *Server) logErrorDetails(code int, message string, requestID json.RawMessage, data map[string]interface{}, err error) {
	args := []interface{}{
		"jsonrpcErrorCode", code,
		"jsonrpcErrorMessage", message,
		"originalError", fmt.Sprintf("%+v", err),
		"requestID", string(requestID),
	}
	if internalCode, exists := data["internalCode"]; exists {
		if errCode, ok := internalCode.(mcperrors.ErrorCode); ok {
			args = append(args, "internalCode", int(errCode))
		}
	}
	if len(data) > 0 {
		args = append(args, "errorData", data)
	}
	s.logger.Error("Generating JSON-RPC error response.", args...)
}
