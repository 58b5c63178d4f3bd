package mcp

// file: internal/mcp/mcp_server_test.go

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcp/state"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
	"github.com/dkoosis/stickynotes/internal/notes"
	"github.com/dkoosis/stickynotes/internal/profile"
	"github.com/dkoosis/stickynotes/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testReadTimeout = 2 * time.Second

// rpcMessage is any message the server writes.
type rpcMessage struct {
	ID     json.RawMessage               `json:"id"`
	Method string                        `json:"method"`
	Params json.RawMessage               `json:"params"`
	Result json.RawMessage               `json:"result"`
	Error  *mcptypes.JSONRPCErrorPayload `json:"error"`
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// testClient drives a server over an in-memory transport pair.
type testClient struct {
	t             *testing.T
	server        *Server
	transport     *transport.InMemoryTransport
	nextID        int
	notifications []rpcMessage
	serveErr      chan error
}

// stubProfiles records lookups and answers with a fixed payload.
type stubProfiles struct {
	calls []int
}

func (s *stubProfiles) GetProfile(_ context.Context, profileID int) json.RawMessage {
	s.calls = append(s.calls, profileID)
	return json.RawMessage(fmt.Sprintf(`{"profileId":%d}`, profileID))
}

// failingStore fails every operation.
type failingStore struct{}

var errDiskGone = errors.New("disk gone")

func (failingStore) AddNote(string) (string, error) { return "", errDiskGone }
func (failingStore) ReadNotes() (string, error)     { return "", errDiskGone }
func (failingStore) LatestNote() (string, error)    { return "", errDiskGone }
func (failingStore) SummaryPrompt() (string, error) { return "", errDiskGone }

// verifyNoLeaks checks for goroutine leaks after the server cleanup has run.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { goleak.VerifyNone(t) })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Name = "AI Sticky Notes"
	cfg.Notes.Path = filepath.Join(t.TempDir(), "notes.txt")
	cfg.Notes.Watch = false
	return cfg
}

func startServer(t *testing.T, cfg *config.Config, deps Dependencies) *testClient {
	t.Helper()
	if deps.Notes == nil {
		deps.Notes = notes.NewStore(cfg.Notes.Path, nil)
	}
	if deps.Profiles == nil {
		deps.Profiles = &stubProfiles{}
	}

	server, err := NewServer(cfg, ServerOptions{
		RequestTimeout:  2 * time.Second,
		ShutdownTimeout: time.Second,
		Version:         "test",
	}, deps, logging.GetNoopLogger())
	require.NoError(t, err, "Failed to create server.")

	pair := transport.NewInMemoryTransportPair()
	c := &testClient{
		t:         t,
		server:    server,
		transport: pair.ClientTransport,
		serveErr:  make(chan error, 1),
	}
	go func() { c.serveErr <- server.Serve(context.Background(), pair.ServerTransport) }()

	t.Cleanup(func() {
		_ = pair.ClientTransport.Close()
		select {
		case err := <-c.serveErr:
			assert.NoError(t, err, "Serve should return nil when the client disconnects.")
		case <-time.After(testReadTimeout):
			t.Error("Server did not stop after the client disconnected.")
		}
	})
	return c
}

func (c *testClient) send(message interface{}) {
	c.t.Helper()
	payload, err := json.Marshal(message)
	require.NoError(c.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), testReadTimeout)
	defer cancel()
	require.NoError(c.t, c.transport.WriteMessage(ctx, payload))
}

func (c *testClient) read(timeout time.Duration) (rpcMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	raw, err := c.transport.ReadMessage(ctx)
	if err != nil {
		return rpcMessage{}, err
	}
	var msg rpcMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return rpcMessage{}, err
	}
	return msg, nil
}

// awaitID reads until the response with id arrives, collecting notifications on the way.
func (c *testClient) awaitID(id string) rpcMessage {
	c.t.Helper()
	for {
		msg, err := c.read(testReadTimeout)
		require.NoError(c.t, err, "Timed out waiting for response %s.", id)
		if msg.Method != "" {
			c.notifications = append(c.notifications, msg)
			continue
		}
		if string(msg.ID) == id {
			return msg
		}
	}
}

func (c *testClient) call(method string, params interface{}) rpcMessage {
	c.t.Helper()
	c.nextID++
	req := map[string]interface{}{"jsonrpc": "2.0", "id": c.nextID, "method": method}
	if params != nil {
		req["params"] = params
	}
	c.send(req)
	return c.awaitID(strconv.Itoa(c.nextID))
}

func (c *testClient) notify(method string) {
	c.t.Helper()
	c.send(map[string]interface{}{"jsonrpc": "2.0", "method": method})
}

func (c *testClient) handshake() {
	c.t.Helper()
	resp := c.call("initialize", map[string]interface{}{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]interface{}{"name": "TestClient", "version": "1.0.0"},
		"capabilities":    map[string]interface{}{},
	})
	require.Nil(c.t, resp.Error, "initialize failed: %+v", resp.Error)
	c.notify("notifications/initialized")
}

func (c *testClient) callTool(name string, args interface{}) toolResult {
	c.t.Helper()
	resp := c.call("tools/call", map[string]interface{}{"name": name, "arguments": args})
	require.Nil(c.t, resp.Error, "tools/call returned a protocol error: %+v", resp.Error)
	var result toolResult
	require.NoError(c.t, json.Unmarshal(resp.Result, &result))
	return result
}

func (r toolResult) text() string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

func TestServer_Handshake_ListsTools(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})

	resp := c.call("initialize", map[string]interface{}{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]interface{}{"name": "TestClient", "version": "1.0.0"},
		"capabilities":    map[string]interface{}{},
	})
	require.Nil(t, resp.Error)
	var init mcptypes.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &init))
	assert.Equal(t, "2025-03-26", init.ProtocolVersion, "A supported client version is echoed.")
	assert.Equal(t, "AI Sticky Notes", init.ServerInfo.Name)
	assert.Equal(t, "test", init.ServerInfo.Version)
	require.NotNil(t, init.Capabilities.Resources)
	assert.True(t, init.Capabilities.Resources.Subscribe)
	assert.NotNil(t, init.Capabilities.Tools)
	assert.NotNil(t, init.Capabilities.Prompts)

	c.notify("notifications/initialized")

	resp = c.call("tools/list", nil)
	require.Nil(t, resp.Error)
	var tools struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &tools))
	require.Len(t, tools.Tools, 3)
	assert.Equal(t, ToolAddNote, tools.Tools[0].Name)
	assert.Equal(t, ToolReadNotes, tools.Tools[1].Name)
	assert.Equal(t, ToolGetProfile, tools.Tools[2].Name)
	assert.Equal(t, "Get profile information by ID from the Midgard API.", tools.Tools[2].Description)
	assert.Contains(t, string(tools.Tools[2].InputSchema), `"profile_id"`)

	assert.Equal(t, state.StateInitialized, c.server.state.CurrentState())
}

func TestServer_UnknownProtocolVersion_OffersNewest(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})

	resp := c.call("initialize", map[string]interface{}{
		"protocolVersion": "1999-01-01",
		"clientInfo":      map[string]interface{}{"name": "Old", "version": "0.1"},
		"capabilities":    map[string]interface{}{},
	})
	require.Nil(t, resp.Error)
	var init mcptypes.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &init))
	assert.Equal(t, SupportedProtocolVersions[0], init.ProtocolVersion)
}

func TestServer_RequestsBeforeInitialize_AreRejected(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})

	resp := c.call("tools/call", map[string]interface{}{"name": ToolReadNotes, "arguments": map[string]interface{}{}})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32001, resp.Error.Code)

	resp = c.call("ping", nil)
	assert.Nil(t, resp.Error, "ping is allowed before the handshake.")
	assert.JSONEq(t, `{}`, string(resp.Result))

	c.handshake()
	resp = c.call("initialize", map[string]interface{}{"protocolVersion": "2025-03-26"})
	require.NotNil(t, resp.Error, "A second initialize is out of sequence.")
	assert.Equal(t, -32001, resp.Error.Code)
}

func TestServer_AddNoteThenReadLatest(t *testing.T) {
	verifyNoLeaks(t)
	cfg := testConfig(t)
	c := startServer(t, cfg, Dependencies{})
	c.handshake()

	result := c.callTool(ToolReadNotes, map[string]interface{}{})
	assert.False(t, result.IsError)
	assert.Equal(t, notes.EmptyPlaceholder, result.text())

	result = c.callTool(ToolAddNote, map[string]interface{}{"message": "buy milk"})
	assert.False(t, result.IsError)
	assert.Equal(t, notes.SavedMessage, result.text())
	c.callTool(ToolAddNote, map[string]interface{}{"message": "call bob"})

	resp := c.call("resources/read", map[string]interface{}{"uri": LatestNoteURI})
	require.Nil(t, resp.Error)
	var read mcptypes.ReadResourceResult
	require.NoError(t, json.Unmarshal(resp.Result, &read))
	require.Len(t, read.Contents, 1)
	assert.Equal(t, "call bob", read.Contents[0].Text)
	assert.Equal(t, "text/plain", read.Contents[0].MimeType)

	result = c.callTool(ToolReadNotes, nil)
	assert.Equal(t, "buy milk\ncall bob", result.text())

	resp = c.call("prompts/get", map[string]interface{}{"name": NoteSummaryPrompt})
	require.Nil(t, resp.Error)
	var prompt struct {
		Messages []struct {
			Role    string `json:"role"`
			Content struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &prompt))
	require.Len(t, prompt.Messages, 1)
	assert.Equal(t, "user", prompt.Messages[0].Role)
	assert.Equal(t, "Summarize the current notes: buy milk\ncall bob", prompt.Messages[0].Content.Text)

	data, err := os.ReadFile(cfg.Notes.Path)
	require.NoError(t, err)
	assert.Equal(t, "buy milk\ncall bob\n", string(data))
}

func TestServer_ListsResourcesAndPrompts(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})
	c.handshake()

	resp := c.call("resources/list", nil)
	require.Nil(t, resp.Error)
	var resources mcptypes.ListResourcesResult
	require.NoError(t, json.Unmarshal(resp.Result, &resources))
	require.Len(t, resources.Resources, 1)
	assert.Equal(t, LatestNoteURI, resources.Resources[0].URI)
	assert.Equal(t, "get_latest_note", resources.Resources[0].Name)

	resp = c.call("prompts/list", nil)
	require.Nil(t, resp.Error)
	var prompts mcptypes.ListPromptsResult
	require.NoError(t, json.Unmarshal(resp.Result, &prompts))
	require.Len(t, prompts.Prompts, 1)
	assert.Equal(t, NoteSummaryPrompt, prompts.Prompts[0].Name)
	assert.Empty(t, prompts.Prompts[0].Arguments)
}

func TestServer_GetProfile_RejectsNonIntegerID(t *testing.T) {
	verifyNoLeaks(t)
	profiles := &stubProfiles{}
	c := startServer(t, testConfig(t), Dependencies{Profiles: profiles})
	c.handshake()

	result := c.callTool(ToolGetProfile, map[string]interface{}{"profile_id": "abc"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.text(), "Invalid arguments")
	assert.Contains(t, result.text(), "/profile_id")

	result = c.callTool(ToolGetProfile, map[string]interface{}{})
	assert.True(t, result.IsError, "profile_id is required.")

	assert.Empty(t, profiles.calls, "Invalid calls never reach the profile service.")
}

func TestServer_GetProfile_CallsProfileService(t *testing.T) {
	var gotAuth string
	var gotQuery profile.Query
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, profile.FindProfilesPath, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profiles":[{"profileId":42,"name":"Acme"}]}`))
	}))
	defer srv.Close()

	client := profile.NewClient(profile.Options{
		BaseURL:              srv.URL,
		Token:                "test-token",
		ShowInactiveProfiles: true,
	}, nil)
	c := startServer(t, testConfig(t), Dependencies{Profiles: client})
	c.handshake()

	result := c.callTool(ToolGetProfile, map[string]interface{}{"profile_id": 42.0})
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"profiles":[{"profileId":42,"name":"Acme"}]}`, result.text())
	assert.Equal(t, "Bearer test-token", gotAuth)
	require.Len(t, gotQuery.Selectors, 1)
	assert.Equal(t, 42, gotQuery.Selectors[0].ProfileID)
	assert.True(t, gotQuery.ShowInactiveProfiles)
}

func TestServer_GetProfile_ServiceErrorIsNormalResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := profile.NewClient(profile.Options{BaseURL: srv.URL}, nil)
	c := startServer(t, testConfig(t), Dependencies{Profiles: client})
	c.handshake()

	result := c.callTool(ToolGetProfile, map[string]interface{}{"profile_id": 7})
	assert.False(t, result.IsError, "Lookup failures are reported inside the payload.")
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(result.text()), &payload))
	assert.Contains(t, payload["error"], "401")
}

func TestServer_UnknownNames(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})
	c.handshake()

	result := c.callTool("launch_rockets", map[string]interface{}{})
	assert.True(t, result.IsError)
	assert.Contains(t, result.text(), "Tool not found: launch_rockets")

	resp := c.call("resources/read", map[string]interface{}{"uri": "notes://all"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32002, resp.Error.Code)
	data, ok := resp.Error.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "notes://all", data["uri"])

	resp = c.call("resources/subscribe", map[string]interface{}{"uri": "notes://all"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32002, resp.Error.Code)

	resp = c.call("resources/read", map[string]interface{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)

	resp = c.call("prompts/get", map[string]interface{}{"name": "haiku"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)

	resp = c.call("sampling/createMessage", map[string]interface{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestServer_StoreErrors(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{Notes: failingStore{}})
	c.handshake()

	result := c.callTool(ToolAddNote, map[string]interface{}{"message": "x"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.text(), "disk gone")

	result = c.callTool(ToolReadNotes, nil)
	assert.True(t, result.IsError)

	resp := c.call("resources/read", map[string]interface{}{"uri": LatestNoteURI})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32603, resp.Error.Code)

	resp = c.call("prompts/get", map[string]interface{}{"name": NoteSummaryPrompt})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32603, resp.Error.Code)
}

func TestServer_MalformedInput_GetsErrorResponse(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})

	ctx, cancel := context.WithTimeout(context.Background(), testReadTimeout)
	defer cancel()
	require.NoError(t, c.transport.WriteRaw(ctx, []byte(`{broken`)))
	msg := c.awaitID("0")
	require.NotNil(t, msg.Error)
	assert.Equal(t, -32700, msg.Error.Code)

	require.NoError(t, c.transport.WriteRaw(ctx, []byte(`{"jsonrpc":"1.0","id":9,"method":"ping"}`)))
	msg = c.awaitID("9")
	require.NotNil(t, msg.Error)
	assert.Equal(t, -32600, msg.Error.Code)

	resp := c.call("ping", nil)
	assert.Nil(t, resp.Error, "The server keeps serving after malformed input.")
}

func TestServer_Subscription_NotifiesOnAddNote(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})
	c.handshake()

	c.callTool(ToolAddNote, map[string]interface{}{"message": "before subscribing"})
	assert.Empty(t, c.notifications, "No notifications without a subscription.")

	resp := c.call("resources/subscribe", map[string]interface{}{"uri": LatestNoteURI})
	require.Nil(t, resp.Error)

	c.callTool(ToolAddNote, map[string]interface{}{"message": "after subscribing"})
	require.Len(t, c.notifications, 1)
	assert.Equal(t, "notifications/resources/updated", c.notifications[0].Method)
	assert.JSONEq(t, `{"uri":"notes://latest"}`, string(c.notifications[0].Params))

	resp = c.call("resources/unsubscribe", map[string]interface{}{"uri": LatestNoteURI})
	require.Nil(t, resp.Error)
	c.callTool(ToolAddNote, map[string]interface{}{"message": "after unsubscribing"})
	assert.Len(t, c.notifications, 1)
}

func TestServer_Subscription_NotifiesOnExternalChange(t *testing.T) {
	verifyNoLeaks(t)
	cfg := testConfig(t)
	cfg.Notes.Watch = true
	c := startServer(t, cfg, Dependencies{})
	c.handshake()

	resp := c.call("resources/subscribe", map[string]interface{}{"uri": LatestNoteURI})
	require.Nil(t, resp.Error)

	// The watcher starts asynchronously; keep appending until it reports a change.
	var got *rpcMessage
	for attempt := 0; attempt < 40 && got == nil; attempt++ {
		f, err := os.OpenFile(cfg.Notes.Path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		require.NoError(t, err)
		_, err = f.WriteString(fmt.Sprintf("edited elsewhere %d\n", attempt))
		require.NoError(t, err)
		require.NoError(t, f.Close())

		msg, err := c.read(100 * time.Millisecond)
		if err == nil && msg.Method == "notifications/resources/updated" {
			got = &msg
		}
	}
	require.NotNil(t, got, "Expected a resource update notification from the file watcher.")
	assert.JSONEq(t, `{"uri":"notes://latest"}`, string(got.Params))
}

func TestServer_NotificationsNeverGetResponses(t *testing.T) {
	verifyNoLeaks(t)
	c := startServer(t, testConfig(t), Dependencies{})
	c.handshake()

	c.send(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "notifications/cancelled",
		"params":  map[string]interface{}{"requestId": 1, "reason": "user"},
	})
	c.notify("notifications/unknown")

	resp := c.call("ping", nil)
	assert.Nil(t, resp.Error)
	assert.Empty(t, c.notifications)
}

func TestServer_Shutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig(t)
	server, err := NewServer(cfg, ServerOptions{ShutdownTimeout: time.Second},
		Dependencies{Notes: notes.NewStore(cfg.Notes.Path, nil), Profiles: &stubProfiles{}}, nil)
	require.NoError(t, err)

	pair := transport.NewInMemoryTransportPair()
	defer pair.Close()
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(context.Background(), pair.ServerTransport) }()

	// Wait until the loop is running.
	require.NoError(t, pair.ClientTransport.WriteMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))
	ctx, cancel := context.WithTimeout(context.Background(), testReadTimeout)
	defer cancel()
	_, err = pair.ClientTransport.ReadMessage(ctx)
	require.NoError(t, err)

	require.NoError(t, server.Shutdown(ctx))
	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Serve did not return after Shutdown.")
	}
	assert.Equal(t, state.StateShutdown, server.state.CurrentState())
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(testConfig(t), ServerOptions{}, Dependencies{Profiles: &stubProfiles{}}, nil)
	assert.Error(t, err, "A note store is required.")

	_, err = NewServer(nil, ServerOptions{}, Dependencies{}, nil)
	assert.Error(t, err)
}
