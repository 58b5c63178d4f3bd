// Package transport defines interfaces and implementations for sending and receiving MCP messages.
package transport

// file: internal/transport/transport.go

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
)

// MaxMessageSize defines the maximum allowed size for a single JSON-RPC message in bytes.
const MaxMessageSize = 1024 * 1024 // 1MB.

// previewLen bounds message previews attached to errors and logs.
const previewLen = 100

// Transport defines the interface for sending and receiving JSON-RPC messages.
// Implementations must be safe for one reader and many concurrent writers.
type Transport interface {
	// ReadMessage reads a single JSON-RPC message from the transport.
	// When the message fails validation the raw bytes are returned alongside
	// the error so the caller can still answer with the request ID.
	ReadMessage(ctx context.Context) ([]byte, error)

	// WriteMessage sends a single JSON-RPC message over the transport.
	WriteMessage(ctx context.Context, message []byte) error

	// Close shuts down the transport, closing any underlying connections.
	// Blocked reads are unblocked and return a closed error.
	Close() error
}

// ValidateMessage checks that message is a structurally valid JSON-RPC 2.0
// request, notification or response.
func ValidateMessage(message []byte) error {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return NewParseError(message, err)
	}
	invalid := func(reason string) error {
		return NewError(ErrInvalidMessage, reason, nil).
			WithContext("messagePreview", preview(message))
	}

	var version string
	if raw, ok := msg["jsonrpc"]; !ok {
		return invalid("missing 'jsonrpc' field")
	} else if json.Unmarshal(raw, &version) != nil || version != "2.0" {
		return invalid("unsupported JSON-RPC version")
	}

	rawID, hasID := msg["id"]
	if hasID && !validID(rawID) {
		return invalid("invalid request ID type")
	}
	_, hasResult := msg["result"]
	rawErr, hasError := msg["error"]

	if rawMethod, hasMethod := msg["method"]; hasMethod {
		var method string
		if json.Unmarshal(rawMethod, &method) != nil {
			return invalid("method must be a string")
		}
		if method == "" {
			return invalid("method cannot be empty")
		}
		if strings.HasPrefix(method, "rpc.") {
			return invalid("method names starting with 'rpc.' are reserved for internal use")
		}
		if params, ok := msg["params"]; ok && !isObjectOrArray(params) {
			return invalid("params must be an object or array")
		}
		if hasResult || hasError {
			return invalid("request or notification cannot contain 'result' or 'error' fields")
		}
		return nil
	}

	// Response.
	if !hasID {
		return invalid("response message must contain 'id' field")
	}
	if hasResult == hasError {
		return invalid("response message must contain exactly one of 'result' or 'error'")
	}
	if _, ok := msg["params"]; ok {
		return invalid("response message cannot contain 'params' field")
	}
	if hasError {
		var errObj struct {
			Code    *json.Number `json:"code"`
			Message *string      `json:"message"`
		}
		if json.Unmarshal(rawErr, &errObj) != nil {
			return invalid("error must be an object with a numeric code and string message")
		}
		if errObj.Code == nil {
			return invalid("error object must contain 'code' field")
		}
		if errObj.Message == nil {
			return invalid("error object must contain 'message' field")
		}
	}
	return nil
}

func validID(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '"':
		return true
	case 'n':
		return string(trimmed) == "null"
	case '{', '[', 't', 'f':
		return false
	default:
		var n json.Number
		return json.Unmarshal(trimmed, &n) == nil
	}
}

func isObjectOrArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func preview(message []byte) string {
	if len(message) > previewLen {
		return string(message[:previewLen])
	}
	return string(message)
}

// NDJSONTransport implements Transport for newline-delimited JSON, typically over stdio.
type NDJSONTransport struct {
	reader    *bufio.Reader
	writer    io.Writer
	closer    io.Closer
	logger    logging.Logger
	writeLock sync.Mutex

	readOnce sync.Once
	lines    chan readResult
	readDone chan struct{}
	done     chan struct{}
	closed   bool
	closeMu  sync.Mutex
}

type readResult struct {
	data []byte
	err  error
}

var _ Transport = (*NDJSONTransport)(nil)

// NewNDJSONTransport creates a transport reading NDJSON messages from reader and
// writing them to writer. closer, if non-nil, is closed by Close.
func NewNDJSONTransport(reader io.Reader, writer io.Writer, closer io.Closer, logger logging.Logger) *NDJSONTransport {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &NDJSONTransport{
		reader:   bufio.NewReader(reader),
		writer:   writer,
		closer:   closer,
		logger:   logger.WithField("component", "ndjson_transport"),
		lines:    make(chan readResult),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// readLoop owns the bufio.Reader. Reads that are abandoned by a cancelled context
// leave their line in the channel for the next ReadMessage call.
func (t *NDJSONTransport) readLoop() {
	defer close(t.readDone)
	for {
		line, err := t.readLine()
		if err == nil && len(bytes.TrimSpace(line)) == 0 {
			continue // Blank lines between messages are ignored.
		}
		select {
		case t.lines <- readResult{data: line, err: err}:
		case <-t.done:
			return
		}
		if err != nil && !isRecoverable(err) {
			return
		}
	}
}

// readLine reads one newline-terminated line, enforcing MaxMessageSize.
// An oversized line is consumed to its end so the stream stays in sync.
func (t *NDJSONTransport) readLine() ([]byte, error) {
	var buffer bytes.Buffer
	oversized := false
	for {
		chunk, isPrefix, err := t.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, NewError(ErrTransportClosed, "connection closed by peer", io.EOF).withType(ErrorTypeClosed)
			}
			return nil, NewError(ErrGeneric, "failed to read message line", err)
		}
		if !oversized {
			buffer.Write(chunk)
			if buffer.Len() > MaxMessageSize {
				oversized = true
			}
		}
		if !isPrefix {
			break
		}
	}
	if oversized {
		return nil, NewMessageSizeError(buffer.Len(), MaxMessageSize, buffer.Bytes()[:previewLen])
	}
	return buffer.Bytes(), nil
}

// isRecoverable reports whether the stream can still be read after err.
func isRecoverable(err error) bool {
	var transportErr *Error
	return errors.As(err, &transportErr) && transportErr.Code == ErrMessageTooLarge
}

// ReadMessage implements Transport.ReadMessage for NDJSON.
// Malformed lines return a parse or invalid-message error; the transport remains usable.
func (t *NDJSONTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	if t.isClosed() {
		return nil, NewClosedError("read")
	}
	t.readOnce.Do(func() { go t.readLoop() })

	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("read", ctx.Err())
	case <-t.done:
		return nil, NewClosedError("read")
	case <-t.readDone:
		return nil, NewClosedError("read")
	case result := <-t.lines:
		if result.err != nil {
			return nil, result.err
		}
		message := result.data
		t.logger.Debug("Received raw message.", "size", len(message), "contentPreview", preview(message))
		if err := ValidateMessage(message); err != nil {
			t.logger.Warn("Invalid message received.", "validationError", err)
			return message, err
		}
		return message, nil
	}
}

// WriteMessage implements Transport.WriteMessage for NDJSON.
// Each message is written as a single line with a trailing newline.
func (t *NDJSONTransport) WriteMessage(ctx context.Context, message []byte) error {
	if t.isClosed() {
		return NewClosedError("write")
	}
	if err := ValidateMessage(message); err != nil {
		return err
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message[:previewLen])
	}
	if bytes.ContainsAny(message, "\r\n") {
		// Compact re-encoding removes the newlines that would break framing.
		var compacted bytes.Buffer
		if err := json.Compact(&compacted, message); err != nil {
			return NewParseError(message, err)
		}
		message = compacted.Bytes()
	}
	if err := ctx.Err(); err != nil {
		return NewTimeoutError("write", err)
	}

	buf := make([]byte, len(message)+1)
	copy(buf, message)
	buf[len(message)] = '\n'

	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	t.logger.Debug("Writing message.", "size", len(buf), "contentPreview", preview(message))
	n, err := t.writer.Write(buf)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		t.logger.Error("Failed to write message.", "error", fmt.Sprintf("%+v", err))
		return NewError(ErrGeneric, "failed to write message", err)
	}
	return nil
}

// Close implements Transport.Close.
func (t *NDJSONTransport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	t.logger.Info("Closing NDJSON transport.")

	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			return NewError(ErrTransportClosed, "failed to close underlying transport stream", err)
		}
	}
	return nil
}

func (t *NDJSONTransport) isClosed() bool {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closed
}
