// file: internal/mcp/handlers_core.go.
package mcp

import (
	"context"
	"encoding/json"

	mcperrors "github.com/dkoosis/stickynotes/internal/mcp/mcp_errors"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// SupportedProtocolVersions lists the MCP revisions this server speaks, newest first.
var SupportedProtocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

const serverInstructions = "Use add_note to save short notes, read_notes or the notes://latest " +
	"resource to recall them, and get_profile to look up a profile by its numeric ID."

// handleInitialize handles the initialize request. A client version the server
// supports is echoed back; otherwise the newest supported version is offered.
func (h *Handler) handleInitialize(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req mcptypes.InitializeRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, mcperrors.NewInvalidParamsError("invalid params for initialize", err,
			map[string]interface{}{"method": "initialize"})
	}

	version := negotiateProtocolVersion(req.ProtocolVersion)
	h.logger.Info("Handling initialize request.",
		"clientRequestedVersion", req.ProtocolVersion,
		"serverVersion", version,
		"clientName", req.ClientInfo.Name,
		"clientVersion", req.ClientInfo.Version)
	if version != req.ProtocolVersion {
		h.logger.Warn("MCP protocol version mismatch, offering the newest supported version.",
			"clientRequested", req.ProtocolVersion,
			"serverRespondingWith", version)
	}

	res := mcptypes.InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      mcptypes.Implementation{Name: h.config.Server.Name, Version: h.version},
		Capabilities: mcptypes.ServerCapabilities{
			Tools:     &mcptypes.ToolsCapability{},
			Resources: &mcptypes.ResourcesCapability{Subscribe: true},
			Prompts:   &mcptypes.PromptsCapability{},
		},
		Instructions: serverInstructions,
	}
	return marshalResult(res, "InitializeResult")
}

func negotiateProtocolVersion(requested string) string {
	for _, v := range SupportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return SupportedProtocolVersions[0]
}

// handlePing handles the ping request.
func (h *Handler) handlePing(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	h.logger.Debug("Handling ping request.")
	return json.RawMessage(`{}`), nil
}
