// Package mcp implements the Model Context Protocol server: the message loop,
// lifecycle enforcement and the note, profile, resource and prompt handlers.
// file: internal/mcp/server.go
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcp/router"
	"github.com/dkoosis/stickynotes/internal/mcp/state"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
	"github.com/dkoosis/stickynotes/internal/middleware"
	"github.com/dkoosis/stickynotes/internal/schema"
	"github.com/dkoosis/stickynotes/internal/transport"
	"golang.org/x/sync/errgroup"
)

// ServerOptions contains configurable options for the MCP server.
type ServerOptions struct {
	// RequestTimeout specifies the maximum duration for processing a request.
	// Zero falls back to the configured server request timeout.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds how long Shutdown waits for the message loop to stop.
	ShutdownTimeout time.Duration

	// Debug enables slow-request warnings.
	Debug bool

	// Version is reported as serverInfo.version.
	Version string
}

// Dependencies are the collaborators the handlers call into.
type Dependencies struct {
	Notes    NoteStore
	Profiles ProfileLookup
	// Validator checks tool arguments. Nil means a fresh schema.Validator.
	Validator mcptypes.ArgumentValidator
}

// Server represents an MCP server instance serving one client connection.
type Server struct {
	config  *config.Config
	options ServerOptions
	handler *Handler
	router  router.Router
	state   *state.MCPStateMachine
	logger  logging.Logger

	mu        sync.Mutex
	transport transport.Transport
	stop      context.CancelFunc
	done      chan struct{}
}

// NewServer creates a new MCP server with the given configuration and options.
func NewServer(cfg *config.Config, opts ServerOptions, deps Dependencies, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if cfg == nil {
		return nil, errors.New("server requires a configuration")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = cfg.Server.RequestTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if deps.Validator == nil {
		deps.Validator = schema.NewValidator(logger)
	}

	handler, err := NewHandler(cfg, opts.Version, deps.Notes, deps.Profiles, deps.Validator, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create MCP handler")
	}
	machine, err := state.NewMCPStateMachine(logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		options: opts,
		handler: handler,
		router:  router.NewRouter(logger),
		state:   machine,
		logger:  logger.WithField("component", "mcp_server"),
	}
	if err := s.registerMethods(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerMethods registers all supported MCP methods.
func (s *Server) registerMethods() error {
	routes := []router.Route{
		{Method: state.MethodInitialize, Handler: s.handler.handleInitialize},
		{Method: state.MethodInitialized, NotificationHandler: s.handler.handleInitializedNotification},
		{Method: state.MethodPing, Handler: s.handler.handlePing},
		{Method: "notifications/cancelled", NotificationHandler: s.handler.handleNotificationsCancelled},

		{Method: "tools/list", Handler: s.handler.handleToolsList},
		{Method: "tools/call", Handler: s.handler.handleToolCall},

		{Method: "resources/list", Handler: s.handler.handleResourcesList},
		{Method: "resources/read", Handler: s.handler.handleResourcesRead},
		{Method: "resources/subscribe", Handler: s.handler.handleResourcesSubscribe},
		{Method: "resources/unsubscribe", Handler: s.handler.handleResourcesUnsubscribe},

		{Method: "prompts/list", Handler: s.handler.handlePromptsList},
		{Method: "prompts/get", Handler: s.handler.handlePromptsGet},
	}
	for _, route := range routes {
		if err := s.router.AddRoute(route); err != nil {
			return errors.Wrapf(err, "failed to register method %s", route.Method)
		}
	}
	s.logger.Debug("Registered MCP methods.", "methods", s.router.GetRoutes())
	return nil
}

// ServeSTDIO serves the protocol on standard input and output.
// This is how hosts such as Claude Desktop launch the server.
func (s *Server) ServeSTDIO(ctx context.Context) error {
	s.logger.Info("Starting server with stdio transport.")
	return s.Serve(ctx, transport.NewNDJSONTransport(os.Stdin, os.Stdout, os.Stdin, s.logger))
}

// Serve processes messages from t until the peer disconnects, ctx is cancelled or
// Shutdown is called. When note watching is enabled the watcher runs alongside the
// message loop. A normal disconnect returns nil.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	if t == nil {
		return errors.New("serve called with nil transport")
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	s.mu.Lock()
	if s.transport != nil {
		s.mu.Unlock()
		return errors.New("server is already serving a connection")
	}
	s.transport = t
	s.stop = stop
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	defer close(done)

	chain := middleware.NewChain(s.handleMessage)
	scope := middleware.RequestScopeOptions{Timeout: s.options.RequestTimeout}
	if s.options.Debug {
		scope.SlowThreshold = time.Second
	}
	chain.Use(middleware.NewRequestScope(scope, s.logger))

	g, gctx := errgroup.WithContext(runCtx)
	notifyLatest := func() { s.notifyResourceUpdated(gctx, LatestNoteURI) }

	watcher, canWatch := s.handler.notes.(NoteWatcher)
	watching := s.config.Notes.Watch && canWatch
	if !watching {
		s.handler.SetNotesChangedCallback(notifyLatest)
	}

	g.Go(func() error {
		defer stop()
		return s.serverProcessing(gctx, chain.Handler())
	})
	if watching {
		g.Go(func() error {
			if err := watcher.Watch(gctx, notifyLatest); err != nil {
				s.logger.Warn("Note watcher stopped, falling back to in-process change notifications.",
					"error", fmt.Sprintf("%+v", err))
				s.handler.SetNotesChangedCallback(notifyLatest)
			}
			return nil
		})
	}

	err := g.Wait()

	_ = s.state.TriggerEvent(context.Background(), state.EventTransportClosed, nil)
	if closeErr := t.Close(); closeErr != nil {
		s.logger.Warn("Failed to close transport.", "error", closeErr)
	}
	s.logger.Info("Server stopped.", "state", s.state.CurrentState())

	switch {
	case err == nil, transport.IsClosedError(err), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

// Shutdown stops the message loop and closes the transport, waiting up to the
// shutdown timeout or until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	t, stop, done := s.transport, s.stop, s.done
	s.mu.Unlock()
	if t == nil {
		return nil
	}

	s.logger.Info("Shutting down server.")
	_ = s.state.TriggerEvent(ctx, state.EventShutdownRequested, nil)
	stop()
	if err := t.Close(); err != nil {
		return errors.Wrap(err, "failed to close transport")
	}

	timer := time.NewTimer(s.options.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return errors.Newf("server did not stop within %s", s.options.ShutdownTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyResourceUpdated sends notifications/resources/updated when the client subscribed to uri.
func (s *Server) notifyResourceUpdated(ctx context.Context, uri string) {
	if !s.handler.IsSubscribed(uri) {
		return
	}
	notification := mcptypes.Notification{
		JSONRPC: "2.0",
		Method:  "notifications/resources/updated",
		Params:  mcptypes.ResourceUpdatedParams{URI: uri},
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		s.logger.Error("Failed to marshal resource update notification.", "uri", uri, "error", err)
		return
	}

	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return
	}
	if err := t.WriteMessage(ctx, payload); err != nil {
		s.logger.Warn("Failed to send resource update notification.", "uri", uri, "error", err)
		return
	}
	s.logger.Debug("Sent resource update notification.", "uri", uri)
}

// handleMessage processes a JSON-RPC message after it has passed through middleware.
// It returns nil bytes for notifications and for responses sent by the client.
func (s *Server) handleMessage(ctx context.Context, message []byte) ([]byte, error) {
	var req mcptypes.Request
	if err := json.Unmarshal(message, &req); err != nil {
		return nil, transport.NewParseError(message, err)
	}
	if req.Method == "" {
		s.logger.Debug("Ignoring response message from client.", "id", string(req.ID))
		return nil, nil
	}

	isNotification := req.IsNotification()
	log := s.logger.WithContext(ctx)

	if err := s.state.ValidateMethod(req.Method, isNotification); err != nil {
		if isNotification {
			log.Warn("Dropping out-of-sequence notification.", "method", req.Method, "error", err)
			return nil, nil
		}
		return nil, err
	}

	result, err := s.router.Route(ctx, req.Method, req.Params, isNotification)
	if err != nil {
		if isNotification {
			log.Warn("Notification handler failed.", "method", req.Method, "error", fmt.Sprintf("%+v", err))
			return nil, nil
		}
		return nil, err
	}

	if advErr := s.state.Advance(ctx, req.Method, isNotification); advErr != nil {
		log.Warn("Lifecycle did not advance.", "method", req.Method, "error", advErr)
	}

	if isNotification {
		return nil, nil
	}
	resp := mcptypes.Response{JSONRPC: "2.0", ID: req.ID, Result: result}
	respBytes, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal response for %s", req.Method)
	}
	return respBytes, nil
}
