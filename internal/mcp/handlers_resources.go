package mcp

// file: internal/mcp/handlers_resources.go.

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcperrors "github.com/dkoosis/stickynotes/internal/mcp/mcp_errors"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
)

// Resource identifiers.
const (
	LatestNoteURI      = "notes://latest"
	latestNoteName     = "get_latest_note"
	latestNoteMimeType = "text/plain"
)

// resources lists every resource the server exposes.
func (h *Handler) resources() []mcptypes.Resource {
	return []mcptypes.Resource{
		{
			Name:        latestNoteName,
			URI:         LatestNoteURI,
			Description: "Get the most recently added note from the sticky note file.",
			MimeType:    latestNoteMimeType,
		},
	}
}

func (h *Handler) hasResource(uri string) bool {
	for _, r := range h.resources() {
		if r.URI == uri {
			return true
		}
	}
	return false
}

// handleResourcesList handles the resources/list request.
func (h *Handler) handleResourcesList(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return marshalResult(mcptypes.ListResourcesResult{Resources: h.resources()}, "ListResourcesResult")
}

// handleResourcesRead handles the resources/read request.
func (h *Handler) handleResourcesRead(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	uri, err := parseResourceURI(params, "resources/read")
	if err != nil {
		return nil, err
	}
	if uri != LatestNoteURI {
		return nil, resourceNotFound(uri)
	}

	text, err := h.notes.LatestNote()
	if err != nil {
		return nil, mcperrors.NewStorageError("failed to read the latest note", err,
			map[string]interface{}{"uri": uri})
	}
	h.logger.Debug("Read resource.", "uri", uri, "length", len(text))

	result := mcptypes.ReadResourceResult{
		Contents: []mcptypes.TextResourceContents{
			{URI: uri, MimeType: latestNoteMimeType, Text: text},
		},
	}
	return marshalResult(result, "ReadResourceResult")
}

// handleResourcesSubscribe handles the resources/subscribe request.
// Subscribers receive notifications/resources/updated when the resource changes.
func (h *Handler) handleResourcesSubscribe(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	uri, err := parseResourceURI(params, "resources/subscribe")
	if err != nil {
		return nil, err
	}
	if !h.hasResource(uri) {
		return nil, resourceNotFound(uri)
	}
	h.subscriptions.add(uri)
	h.logger.Info("Client subscribed to resource.", "uri", uri)
	return json.RawMessage(`{}`), nil
}

// handleResourcesUnsubscribe handles the resources/unsubscribe request.
func (h *Handler) handleResourcesUnsubscribe(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	uri, err := parseResourceURI(params, "resources/unsubscribe")
	if err != nil {
		return nil, err
	}
	if !h.hasResource(uri) {
		return nil, resourceNotFound(uri)
	}
	h.subscriptions.remove(uri)
	h.logger.Info("Client unsubscribed from resource.", "uri", uri)
	return json.RawMessage(`{}`), nil
}

// IsSubscribed reports whether the client asked for updates to uri.
func (h *Handler) IsSubscribed(uri string) bool {
	return h.subscriptions.contains(uri)
}

func parseResourceURI(params json.RawMessage, method string) (string, error) {
	var req mcptypes.ReadResourceRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return "", mcperrors.NewInvalidParamsError(
				fmt.Sprintf("invalid params for %s", method), err,
				map[string]interface{}{"method": method})
		}
	}
	if req.URI == "" {
		return "", mcperrors.NewInvalidParamsError(
			fmt.Sprintf("%s requires a 'uri' parameter", method), nil,
			map[string]interface{}{"method": method})
	}
	return req.URI, nil
}

func resourceNotFound(uri string) error {
	return mcperrors.NewResourceError(mcperrors.ErrResourceNotFound,
		fmt.Sprintf("Resource not found: %s", uri), nil,
		map[string]interface{}{"uri": uri})
}

// subscriptionSet tracks subscribed resource URIs for the single client connection.
type subscriptionSet struct {
	mu   sync.RWMutex
	uris map[string]struct{}
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{uris: make(map[string]struct{})}
}

func (s *subscriptionSet) add(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uris[uri] = struct{}{}
}

func (s *subscriptionSet) remove(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uris, uri)
}

func (s *subscriptionSet) contains(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.uris[uri]
	return ok
}
