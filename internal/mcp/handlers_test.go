package mcp

// file: internal/mcp/handlers_test.go

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
	"github.com/dkoosis/stickynotes/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProfileID(t *testing.T) {
	testCases := []struct {
		args    string
		want    int
		wantErr bool
	}{
		{args: `{"profile_id":42}`, want: 42},
		{args: `{"profile_id":42.0}`, want: 42},
		{args: `{"profile_id":-3}`, want: -3},
		{args: `{"profile_id":4.5}`, wantErr: true},
		{args: `{"profile_id":1e12}`, wantErr: true},
		{args: `{"profile_id":99999999999}`, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.args, func(t *testing.T) {
			got, err := decodeProfileID(json.RawMessage(tc.args))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNegotiateProtocolVersion(t *testing.T) {
	assert.Equal(t, "2024-11-05", negotiateProtocolVersion("2024-11-05"))
	assert.Equal(t, "2025-06-18", negotiateProtocolVersion("2025-06-18"))
	assert.Equal(t, SupportedProtocolVersions[0], negotiateProtocolVersion(""))
	assert.Equal(t, SupportedProtocolVersions[0], negotiateProtocolVersion("2030-01-01"))
}

func TestToolRegistry_Register(t *testing.T) {
	validator := schema.NewValidator(logging.GetNoopLogger())
	registry := newToolRegistry(validator, logging.GetNoopLogger())
	noop := func(context.Context, json.RawMessage) (mcptypes.CallToolResult, error) {
		return textResult("ok", false), nil
	}
	objectSchema := mustMarshalJSON(map[string]interface{}{"type": "object"})

	require.NoError(t, registry.register(mcptypes.Tool{Name: "echo", InputSchema: objectSchema}, noop))
	assert.True(t, validator.HasSchema("echo"))

	err := registry.register(mcptypes.Tool{Name: "echo", InputSchema: objectSchema}, noop)
	assert.Error(t, err, "Duplicate names are rejected.")

	err = registry.register(mcptypes.Tool{Name: "bad name!", InputSchema: objectSchema}, noop)
	assert.Error(t, err, "Names must match the tool name pattern.")

	err = registry.register(mcptypes.Tool{Name: "broken", InputSchema: json.RawMessage(`{"type":12}`)}, noop)
	assert.Error(t, err, "Schemas that do not compile are rejected.")

	err = registry.register(mcptypes.Tool{Name: "empty", InputSchema: objectSchema}, nil)
	assert.Error(t, err)

	defs := registry.definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "echo", defs[0].Name)

	result := registry.call(context.Background(), "echo", nil)
	assert.False(t, result.IsError)
}
