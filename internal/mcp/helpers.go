// file: internal/mcp/helpers.go

package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// mustMarshalJSON marshals v to JSON and panics on error. Used for static schemas.
func mustMarshalJSON(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal static JSON schema: %v", err))
	}
	return json.RawMessage(bytes)
}

// marshalResult marshals a handler result, naming the result type on failure.
func marshalResult(v interface{}, what string) (json.RawMessage, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s", what)
	}
	return bytes, nil
}

// textResult builds a single-text tool result.
func textResult(text string, isError bool) mcptypes.CallToolResult {
	return mcptypes.CallToolResult{
		Content: []mcptypes.Content{mcptypes.NewTextContent(text)},
		IsError: isError,
	}
}
