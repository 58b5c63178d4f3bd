// Package mcptypes defines shared types and interfaces for the MCP (Model Context Protocol)
// server and middleware components. It is a neutral package imported by both
// mcp and middleware, which keeps those two free of import cycles.
package mcptypes

// file: internal/mcptypes/interfaces.go

import (
	"context"
)

// MessageHandler processes one raw JSON-RPC message and returns the raw response.
// A nil response with a nil error means nothing is sent (notifications).
type MessageHandler func(ctx context.Context, message []byte) ([]byte, error)

// MiddlewareFunc wraps a MessageHandler with additional behaviour such as
// request scoping, timing or logging.
type MiddlewareFunc func(handler MessageHandler) MessageHandler

// Chain builds a sequence of middleware around a final MessageHandler.
type Chain interface {
	// Use adds a middleware function to the chain.
	Use(middleware MiddlewareFunc) Chain

	// Handler returns the final composed handler function.
	Handler() MessageHandler
}

// ArgumentValidator checks tool arguments against the input schema registered for a tool.
type ArgumentValidator interface {
	// AddSchema compiles and registers schema under name.
	AddSchema(name string, schema []byte) error

	// Validate checks arguments against the schema registered under name.
	Validate(ctx context.Context, name string, arguments []byte) error

	// HasSchema reports whether a schema is registered under name.
	HasSchema(name string) bool
}
