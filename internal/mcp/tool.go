// internal/mcp/tool.go
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
	"github.com/dkoosis/stickynotes/internal/schema"
)

// toolFunc executes a tool whose arguments already passed schema validation.
// A returned error becomes an isError result; it never fails the JSON-RPC call.
type toolFunc func(ctx context.Context, args json.RawMessage) (mcptypes.CallToolResult, error)

type registeredTool struct {
	definition mcptypes.Tool
	call       toolFunc
}

// toolRegistry keeps tools in registration order and validates arguments before dispatch.
type toolRegistry struct {
	mu        sync.RWMutex
	order     []string
	tools     map[string]registeredTool
	validator mcptypes.ArgumentValidator
	logger    logging.Logger
}

func newToolRegistry(validator mcptypes.ArgumentValidator, logger logging.Logger) *toolRegistry {
	return &toolRegistry{
		tools:     make(map[string]registeredTool),
		validator: validator,
		logger:    logger,
	}
}

// register adds a tool. Its input schema is compiled under the tool's name.
func (r *toolRegistry) register(definition mcptypes.Tool, call toolFunc) error {
	if err := schema.ValidateName(schema.EntityTypeTool, definition.Name); err != nil {
		return errors.Wrap(err, "invalid tool name")
	}
	if call == nil {
		return errors.Newf("tool '%s' has no implementation", definition.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[definition.Name]; exists {
		return errors.Newf("tool '%s' is already registered", definition.Name)
	}
	if err := r.validator.AddSchema(definition.Name, definition.InputSchema); err != nil {
		return errors.Wrapf(err, "failed to compile input schema for tool '%s'", definition.Name)
	}
	r.tools[definition.Name] = registeredTool{definition: definition, call: call}
	r.order = append(r.order, definition.Name)
	r.logger.Debug("Tool registered.", "toolName", definition.Name)
	return nil
}

// definitions returns the tool list in registration order.
func (r *toolRegistry) definitions() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]mcptypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].definition)
	}
	return defs
}

// call validates args and runs the named tool. Every failure is reported in the result.
func (r *toolRegistry) call(ctx context.Context, name string, args json.RawMessage) mcptypes.CallToolResult {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("Tool not found during tools/call.", "toolName", name)
		return textResult("Error: Tool not found: "+name, true)
	}

	if err := r.validator.Validate(ctx, name, args); err != nil {
		r.logger.Warn("Invalid arguments received for tool.", "toolName", name, "error", err)
		return textResult(fmt.Sprintf("Error calling %s: Invalid arguments: %s", name, describeArgumentError(err)), true)
	}

	result, err := tool.call(ctx, args)
	if err != nil {
		r.logger.Error("Tool execution failed.", "toolName", name, "error", fmt.Sprintf("%+v", err))
		return textResult(fmt.Sprintf("Error calling %s: %v", name, err), true)
	}
	return result
}

// describeArgumentError renders a schema failure without internal codes.
func describeArgumentError(err error) string {
	var valErr *schema.ValidationError
	if !errors.As(err, &valErr) {
		return err.Error()
	}
	if valErr.InstancePath != "" {
		return fmt.Sprintf("%s (at %s)", valErr.Message, valErr.InstancePath)
	}
	return valErr.Message
}
