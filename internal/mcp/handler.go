// file: internal/mcp/handler.go

package mcp

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// Handler holds dependencies for MCP method handlers.
type Handler struct {
	logger   logging.Logger
	config   *config.Config
	version  string
	notes    NoteStore
	profiles ProfileLookup
	tools    *toolRegistry

	subscriptions *subscriptionSet

	// onNotesChanged is called after add_note succeeds. The server sets it when
	// no file watcher is reporting changes.
	changeMu       sync.RWMutex
	onNotesChanged func()
}

// NewHandler creates a Handler and registers the tools.
func NewHandler(cfg *config.Config, version string, notes NoteStore, profiles ProfileLookup,
	validator mcptypes.ArgumentValidator, logger logging.Logger) (*Handler, error) {
	if notes == nil {
		return nil, errors.New("handler requires a note store")
	}
	if profiles == nil {
		return nil, errors.New("handler requires a profile lookup")
	}
	if validator == nil {
		return nil, errors.New("handler requires an argument validator")
	}
	log := logger.WithField("component", "mcp_handler")
	h := &Handler{
		logger:        log,
		config:        cfg,
		version:       version,
		notes:         notes,
		profiles:      profiles,
		tools:         newToolRegistry(validator, log),
		subscriptions: newSubscriptionSet(),
	}
	if err := h.registerTools(); err != nil {
		return nil, err
	}
	return h, nil
}

// SetNotesChangedCallback installs fn to run after every successful add_note.
func (h *Handler) SetNotesChangedCallback(fn func()) {
	h.changeMu.Lock()
	defer h.changeMu.Unlock()
	h.onNotesChanged = fn
}

func (h *Handler) notesChanged() {
	h.changeMu.RLock()
	fn := h.onNotesChanged
	h.changeMu.RUnlock()
	if fn != nil {
		fn()
	}
}
