// Package middleware provides chainable handlers for processing MCP messages.
// It implements the Chain interface defined in the mcptypes package.
package middleware

// file: internal/middleware/chain.go

import (
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// middlewareChain implements mcptypes.Chain.
type middlewareChain struct {
	handler     mcptypes.MessageHandler
	middlewares []mcptypes.MiddlewareFunc
	finalized   bool
}

// NewChain creates a new middleware chain with the given final handler.
func NewChain(finalHandler mcptypes.MessageHandler) mcptypes.Chain {
	return &middlewareChain{
		handler:     finalHandler,
		middlewares: make([]mcptypes.MiddlewareFunc, 0),
	}
}

// Use adds a middleware function to the chain. After Handler has been called
// Use starts a new chain around the composed handler.
func (c *middlewareChain) Use(middleware mcptypes.MiddlewareFunc) mcptypes.Chain {
	if c.finalized {
		return NewChain(c.handler).Use(middleware)
	}
	c.middlewares = append(c.middlewares, middleware)
	return c
}

// Handler returns the composed handler. The first middleware added is the outermost,
// so it sees the message first and the response last.
func (c *middlewareChain) Handler() mcptypes.MessageHandler {
	if c.finalized {
		return c.handler
	}

	handler := c.handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	c.finalized = true
	c.handler = handler
	return handler
}
