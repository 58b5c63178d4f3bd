package transport

// file: internal/transport/transport_errors.go

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
)

// ErrorCode identifies a transport failure. Codes start at 1000 so they never collide
// with JSON-RPC codes.
type ErrorCode int

const (
	ErrGeneric ErrorCode = iota + 1000
	// ErrInvalidMessage is a frame that is JSON but not a JSON-RPC 2.0 message.
	ErrInvalidMessage
	ErrMessageTooLarge
	ErrTransportClosed
	ErrReadTimeout
	ErrWriteTimeout
	// ErrJSONParseFailed is a frame that is not JSON at all.
	ErrJSONParseFailed
)

// ErrorType groups codes the server loop treats alike.
type ErrorType int

const (
	ErrorTypeGeneric ErrorType = iota
	ErrorTypeMessageSize
	ErrorTypeParse
	ErrorTypeTimeout
	ErrorTypeClosed
)

// JSON-RPC 2.0 codes the server answers transport failures with.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Error is a transport failure with a code and optional key/value context for logging.
type Error struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("transport error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("transport error %d: %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same type and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Type == t.Type && e.Code == t.Code
}

// WithContext records key=value on the error and returns it.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

func (e *Error) withType(t ErrorType) *Error {
	e.Type = t
	return e
}

// NewError creates a generic transport error. A non-nil cause gets a stack attached.
func NewError(code ErrorCode, message string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Type: ErrorTypeGeneric, Code: code, Message: message, Cause: cause}
}

// NewMessageSizeError reports a frame larger than MaxMessageSize. fragment is the
// start of the frame, kept for the logs.
func NewMessageSizeError(size, maxSize int, fragment []byte) *Error {
	err := NewError(ErrMessageTooLarge,
		fmt.Sprintf("message size %d exceeds maximum allowed size %d", size, maxSize), nil).
		withType(ErrorTypeMessageSize).
		WithContext("size", size).
		WithContext("maxSize", maxSize)
	if len(fragment) > 0 {
		err.WithContext("messagePreview", string(fragment))
	}
	return err
}

// NewParseError reports a frame that is not valid JSON.
func NewParseError(message []byte, cause error) *Error {
	return NewError(ErrJSONParseFailed, "failed to parse JSON message syntax", cause).
		withType(ErrorTypeParse).
		WithContext("messagePreview", preview(message)).
		WithContext("messageLength", len(message))
}

// NewTimeoutError reports a read or write that outlived its context.
func NewTimeoutError(operation string, cause error) *Error {
	code := ErrReadTimeout
	if operation == "write" {
		code = ErrWriteTimeout
	}
	return NewError(code, operation+" operation timed out", cause).
		withType(ErrorTypeTimeout).
		WithContext("operation", operation)
}

// NewClosedError reports an operation on a closed transport.
func NewClosedError(operation string) *Error {
	return NewError(ErrTransportClosed, "cannot perform "+operation+" on closed transport", nil).
		withType(ErrorTypeClosed).
		WithContext("operation", operation)
}

// IsParseError reports whether err is a JSON syntax failure.
func IsParseError(err error) bool {
	var transportErr *Error
	return errors.As(err, &transportErr) && transportErr.Code == ErrJSONParseFailed
}

// IsInvalidMessageError reports whether err is a structural JSON-RPC violation or an
// oversized frame. Both leave the stream usable.
func IsInvalidMessageError(err error) bool {
	var transportErr *Error
	if !errors.As(err, &transportErr) {
		return false
	}
	return transportErr.Code == ErrInvalidMessage || transportErr.Code == ErrMessageTooLarge
}

// IsClosedError reports whether err means the peer is gone: a closed transport, EOF or
// a closed pipe anywhere in the chain.
func IsClosedError(err error) bool {
	var transportErr *Error
	if errors.As(err, &transportErr) && transportErr.Type == ErrorTypeClosed {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
