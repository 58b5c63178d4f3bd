package mcp

// file: internal/mcp/handlers_prompts.go

import (
	"context"
	"encoding/json"
	"fmt"

	mcperrors "github.com/dkoosis/stickynotes/internal/mcp/mcp_errors"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// NoteSummaryPrompt is the name of the only prompt.
const NoteSummaryPrompt = "note_summary_prompt"

const noteSummaryDescription = "Generate a prompt asking the AI to summarize all current notes."

// handlePromptsList handles the prompts/list request.
func (h *Handler) handlePromptsList(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	result := mcptypes.ListPromptsResult{
		Prompts: []mcptypes.Prompt{
			{Name: NoteSummaryPrompt, Description: noteSummaryDescription},
		},
	}
	return marshalResult(result, "ListPromptsResult")
}

// handlePromptsGet handles the prompts/get request. The prompt takes no arguments;
// any that are sent are ignored.
func (h *Handler) handlePromptsGet(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req mcptypes.GetPromptRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, mcperrors.NewInvalidParamsError("invalid params for prompts/get", err, nil)
	}
	if req.Name != NoteSummaryPrompt {
		return nil, mcperrors.NewInvalidParamsError(
			fmt.Sprintf("Unknown prompt: %s", req.Name), nil,
			map[string]interface{}{"promptName": req.Name})
	}

	text, err := h.notes.SummaryPrompt()
	if err != nil {
		return nil, mcperrors.NewStorageError("failed to build the note summary prompt", err,
			map[string]interface{}{"promptName": req.Name})
	}

	result := mcptypes.GetPromptResult{
		Description: noteSummaryDescription,
		Messages: []mcptypes.PromptMessage{
			{Role: "user", Content: mcptypes.NewTextContent(text)},
		},
	}
	return marshalResult(result, "GetPromptResult")
}
