// Package router dispatches MCP method calls to registered handlers.
// file: internal/mcp/router/router.go
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
	mcperrors "github.com/dkoosis/stickynotes/internal/mcp/mcp_errors"
)

// Handler handles a request that expects a response, returning the raw result.
type Handler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// NotificationHandler handles a notification. Nothing is sent back.
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// Route maps an MCP method name to its handlers. At least one must be set.
type Route struct {
	Method              string
	Handler             Handler
	NotificationHandler NotificationHandler
}

// Router dispatches incoming methods.
type Router interface {
	// AddRoute registers a handler for a specific MCP method.
	AddRoute(route Route) error
	// Route dispatches a message to the handler registered for method.
	Route(ctx context.Context, method string, params json.RawMessage, isNotification bool) (json.RawMessage, error)
	// GetRoutes returns the registered method names, sorted.
	GetRoutes() []string
}

// router is safe for concurrent use; routes are normally all added before serving.
type router struct {
	mu     sync.RWMutex
	routes map[string]Route
	logger logging.Logger
}

// NewRouter creates a new Router instance.
func NewRouter(logger logging.Logger) Router {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &router{
		routes: make(map[string]Route),
		logger: logger.WithField("component", "mcp_router"),
	}
}

// AddRoute registers a new route. Registering a method twice is an error.
func (r *router) AddRoute(route Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if route.Method == "" {
		return errors.New("cannot register route with empty method name")
	}
	if route.Handler == nil && route.NotificationHandler == nil {
		return errors.Newf("route for method '%s' must have a Handler or a NotificationHandler", route.Method)
	}
	if _, exists := r.routes[route.Method]; exists {
		r.logger.Warn("Attempted to register duplicate route.", "method", route.Method)
		return errors.Newf("route for method '%s' already registered", route.Method)
	}

	r.routes[route.Method] = route
	r.logger.Debug("Registered route.", "method", route.Method)
	return nil
}

// Route looks up the handler for method and executes it.
func (r *router) Route(ctx context.Context, method string, params json.RawMessage, isNotification bool) (json.RawMessage, error) {
	r.mu.RLock()
	route, exists := r.routes[method]
	r.mu.RUnlock()

	if !exists {
		r.logger.Warn("Method not found in router.", "method", method)
		return nil, methodNotFound(method, "Method '%s' not found")
	}

	if isNotification {
		if route.NotificationHandler != nil {
			return nil, route.NotificationHandler(ctx, params)
		}
		// A request method sent as a notification still runs; its result is dropped.
		r.logger.Debug("Notification for request method, discarding result.", "method", method)
		_, err := route.Handler(ctx, params)
		return nil, err
	}

	if route.Handler == nil {
		r.logger.Warn("Request for notification-only method.", "method", method)
		return nil, methodNotFound(method, "Method '%s' is notification-only and cannot produce a response")
	}
	return route.Handler(ctx, params)
}

func methodNotFound(method, format string) error {
	return mcperrors.NewMethodNotFoundError(fmt.Sprintf(format, method), nil,
		map[string]interface{}{"method": method})
}

// GetRoutes returns the registered method names in sorted order.
func (r *router) GetRoutes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.routes))
	for method := range r.routes {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
