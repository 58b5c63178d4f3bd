package mcp

// file: internal/mcp/handlers_tools.go.

import (
	"bytes"
	"context"
	"encoding/json"
	"math"

	"github.com/cockroachdb/errors"
	mcperrors "github.com/dkoosis/stickynotes/internal/mcp/mcp_errors"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// Tool names.
const (
	ToolAddNote    = "add_note"
	ToolReadNotes  = "read_notes"
	ToolGetProfile = "get_profile"
)

// registerTools defines the note and profile tools.
func (h *Handler) registerTools() error {
	definitions := []struct {
		tool mcptypes.Tool
		call toolFunc
	}{
		{
			tool: mcptypes.Tool{
				Name:        ToolAddNote,
				Description: "Append a new note to the sticky note file.",
				InputSchema: mustMarshalJSON(map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]interface{}{
							"type":        "string",
							"description": "The note text to append.",
						},
					},
					"required": []string{"message"},
				}),
				Annotations: &mcptypes.ToolAnnotations{
					Title: "Add Note",
				},
			},
			call: h.executeAddNote,
		},
		{
			tool: mcptypes.Tool{
				Name:        ToolReadNotes,
				Description: "Read and return all notes from the sticky note file.",
				InputSchema: mustMarshalJSON(map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				}),
				Annotations: &mcptypes.ToolAnnotations{
					Title:          "Read Notes",
					ReadOnlyHint:   true,
					IdempotentHint: true,
				},
			},
			call: h.executeReadNotes,
		},
		{
			tool: mcptypes.Tool{
				Name:        ToolGetProfile,
				Description: "Get profile information by ID from the Midgard API.",
				InputSchema: mustMarshalJSON(map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"profile_id": map[string]interface{}{
							"type":        "integer",
							"description": "The numeric ID of the profile to look up.",
						},
					},
					"required": []string{"profile_id"},
				}),
				Annotations: &mcptypes.ToolAnnotations{
					Title:         "Get Profile",
					ReadOnlyHint:  true,
					OpenWorldHint: true,
				},
			},
			call: h.executeGetProfile,
		},
	}

	for _, d := range definitions {
		if err := h.tools.register(d.tool, d.call); err != nil {
			return err
		}
	}
	return nil
}

// handleToolsList handles the tools/list request.
func (h *Handler) handleToolsList(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	result := mcptypes.ListToolsResult{Tools: h.tools.definitions()}
	h.logger.Debug("Handled tools/list request.", "toolsCount", len(result.Tools))
	return marshalResult(result, "ListToolsResult")
}

// handleToolCall handles the tools/call request. Tool failures are reported with
// isError in the result, not as a protocol-level error.
func (h *Handler) handleToolCall(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req mcptypes.CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, mcperrors.NewInvalidParamsError("invalid params structure for tools/call", err, nil)
	}
	if req.Name == "" {
		return nil, mcperrors.NewInvalidParamsError("tools/call requires a tool name", nil, nil)
	}

	h.logger.Info("Handling tools/call request.", "toolName", req.Name)
	result := h.tools.call(ctx, req.Name, req.Arguments)
	return marshalResult(result, "CallToolResult")
}

func (h *Handler) executeAddNote(_ context.Context, args json.RawMessage) (mcptypes.CallToolResult, error) {
	var toolArgs struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(args, &toolArgs); err != nil {
		return mcptypes.CallToolResult{}, errors.Wrap(err, "failed to decode add_note arguments")
	}

	saved, err := h.notes.AddNote(toolArgs.Message)
	if err != nil {
		return mcptypes.CallToolResult{}, err
	}
	h.logger.Info("Note added.", "length", len(toolArgs.Message))
	h.notesChanged()
	return textResult(saved, false), nil
}

func (h *Handler) executeReadNotes(_ context.Context, _ json.RawMessage) (mcptypes.CallToolResult, error) {
	content, err := h.notes.ReadNotes()
	if err != nil {
		return mcptypes.CallToolResult{}, err
	}
	return textResult(content, false), nil
}

// executeGetProfile never reports isError for lookup failures: the error payload
// is the tool's normal output.
func (h *Handler) executeGetProfile(ctx context.Context, args json.RawMessage) (mcptypes.CallToolResult, error) {
	profileID, err := decodeProfileID(args)
	if err != nil {
		return mcptypes.CallToolResult{}, err
	}
	h.logger.Info("Looking up profile.", "profileID", profileID)
	payload := h.profiles.GetProfile(ctx, profileID)
	return textResult(string(payload), false), nil
}

// decodeProfileID reads profile_id, accepting integral numbers written as floats (1.0).
func decodeProfileID(args json.RawMessage) (int, error) {
	var toolArgs struct {
		ProfileID json.Number `json:"profile_id"`
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(&toolArgs); err != nil {
		return 0, errors.Wrap(err, "failed to decode get_profile arguments")
	}
	if id, err := toolArgs.ProfileID.Int64(); err == nil {
		if id < math.MinInt32 || id > math.MaxInt32 {
			return 0, errors.Newf("profile_id %d is out of range", id)
		}
		return int(id), nil
	}
	f, err := toolArgs.ProfileID.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, errors.Newf("profile_id %s is not an integer", toolArgs.ProfileID)
	}
	return int(f), nil
}
