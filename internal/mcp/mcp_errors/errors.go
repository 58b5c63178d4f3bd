// Package mcperrors defines coded error types for the MCP layer and their mapping
// to JSON-RPC error responses.
package mcperrors

// file: internal/mcp/mcp_errors/errors.go

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/transport"
)

// ErrorCode defines domain-specific error codes for the MCP layer.
type ErrorCode int

// Error codes. Protocol codes reuse the JSON-RPC numbers; domain codes are
// translated by MapMCPErrorToJSONRPC.
const (
	// --- Resource errors (3000-3999) ---.
	ErrResourceNotFound ErrorCode = 3000 + iota
	ErrResourceInvalid

	// --- Storage errors (5000-5999) ---.
	ErrNoteStorage ErrorCode = 5000

	// --- JSON-RPC standard codes ---.
	ErrParseError     ErrorCode = -32700
	ErrInvalidRequest ErrorCode = -32600
	ErrMethodNotFound ErrorCode = -32601
	ErrInvalidParams  ErrorCode = -32602
	ErrInternalError  ErrorCode = -32603

	// ErrRequestSequence is a method arriving in a lifecycle state that does not allow it.
	ErrRequestSequence ErrorCode = -32001
)

// JSON-RPC codes emitted for domain errors.
const (
	JSONRPCRequestSequence  = -32001
	JSONRPCResourceNotFound = -32002
	JSONRPCResourceInvalid  = -32003
)

// BaseError is the common base for custom MCP error types.
type BaseError struct {
	// Code categorizes the error.
	Code ErrorCode
	// Message is a human-readable description for logs and the error data.
	Message string
	// Cause is the underlying error, if any.
	Cause error
	// Context holds extra key/value details. Only a few keys reach the client.
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("MCPError (Code: %d): %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("MCPError (Code: %d): %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *BaseError) Unwrap() error {
	return e.Cause
}

// Base returns e. Typed errors embed BaseError and inherit it, which lets
// errors.As find any of them through the Coded interface.
func (e *BaseError) Base() *BaseError {
	return e
}

// WithContext adds a key-value pair to the error's context map.
func (e *BaseError) WithContext(key string, value interface{}) *BaseError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Coded is implemented by every error type in this package.
type Coded interface {
	error
	Base() *BaseError
}

// --- Specific error types ---.

// ResourceError is a failure to locate or read an MCP resource.
type ResourceError struct{ BaseError }

// ProtocolError is a violation of MCP protocol rules, such as lifecycle ordering.
type ProtocolError struct{ BaseError }

// InvalidParamsError is a request whose params do not fit the method.
type InvalidParamsError struct{ BaseError }

// MethodNotFoundError is a request for a method the server does not implement.
type MethodNotFoundError struct{ BaseError }

// InternalError is a server-side failure, including note file I/O errors.
type InternalError struct{ BaseError }

// ParseError is a message that is not valid JSON.
type ParseError struct{ BaseError }

// InvalidRequestError is a message that is not a valid JSON-RPC request.
type InvalidRequestError struct{ BaseError }

func newBase(code ErrorCode, message string, cause error, context map[string]interface{}) BaseError {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return BaseError{Code: code, Message: message, Cause: wrapped, Context: context}
}

// --- Constructor functions ---.

// NewResourceError creates a resource error. Codes outside 3000-3999 become ErrResourceNotFound.
func NewResourceError(code ErrorCode, message string, cause error, context map[string]interface{}) error {
	if code < 3000 || code > 3999 {
		code = ErrResourceNotFound
	}
	return &ResourceError{newBase(code, message, cause, context)}
}

// NewProtocolError creates a protocol error with the given code.
func NewProtocolError(code ErrorCode, message string, cause error, context map[string]interface{}) error {
	return &ProtocolError{newBase(code, message, cause, context)}
}

// NewInvalidParamsError creates an error for invalid parameters (maps to -32602).
func NewInvalidParamsError(message string, cause error, context map[string]interface{}) error {
	return &InvalidParamsError{newBase(ErrInvalidParams, message, cause, context)}
}

// NewMethodNotFoundError creates an error for an unknown method (maps to -32601).
func NewMethodNotFoundError(message string, cause error, context map[string]interface{}) error {
	return &MethodNotFoundError{newBase(ErrMethodNotFound, message, cause, context)}
}

// NewInternalError creates a generic internal server error (maps to -32603).
func NewInternalError(message string, cause error, context map[string]interface{}) error {
	return &InternalError{newBase(ErrInternalError, message, cause, context)}
}

// NewStorageError creates an internal error for a failed note file operation (maps to -32603).
func NewStorageError(message string, cause error, context map[string]interface{}) error {
	return &InternalError{newBase(ErrNoteStorage, message, cause, context)}
}

// NewParseError creates a JSON parse error (maps to -32700).
func NewParseError(message string, cause error, context map[string]interface{}) error {
	return &ParseError{newBase(ErrParseError, message, cause, context)}
}

// NewInvalidRequestError creates an invalid request error (maps to -32600).
func NewInvalidRequestError(message string, cause error, context map[string]interface{}) error {
	return &InvalidRequestError{newBase(ErrInvalidRequest, message, cause, context)}
}

// --- JSON-RPC error mapping ---.

// MapMCPErrorToJSONRPC translates any error into JSON-RPC code, message and data.
// Transport errors become parse or invalid-request errors; anything unrecognised is internal.
func MapMCPErrorToJSONRPC(err error) (code int, message string, data map[string]interface{}) {
	data = make(map[string]interface{})

	var coded Coded
	if !errors.As(err, &coded) {
		switch {
		case transport.IsParseError(err):
			return transport.JSONRPCParseError, "Parse error.", nil
		case transport.IsInvalidMessageError(err):
			data["detail"] = err.Error()
			return transport.JSONRPCInvalidRequest, "Invalid Request.", data
		}
		data["goErrorType"] = fmt.Sprintf("%T", err)
		data["detail"] = err.Error()
		return transport.JSONRPCInternalError, "An internal server error occurred.", data
	}

	baseErr := coded.Base()
	data["detail"] = baseErr.Message

	switch baseErr.Code {
	case ErrParseError:
		code, message = transport.JSONRPCParseError, "Parse error."
	case ErrInvalidRequest:
		code, message = transport.JSONRPCInvalidRequest, "Invalid Request."
	case ErrMethodNotFound:
		code, message = transport.JSONRPCMethodNotFound, "Method not found."
	case ErrInvalidParams:
		code, message = transport.JSONRPCInvalidParams, "Invalid params."
	case ErrInternalError:
		code, message = transport.JSONRPCInternalError, "Internal error."
	case ErrNoteStorage:
		code, message = transport.JSONRPCInternalError, "Note storage error."
	case ErrRequestSequence:
		code, message = JSONRPCRequestSequence, "Invalid Request Sequence."
	case ErrResourceNotFound:
		code, message = JSONRPCResourceNotFound, "Resource not found."
	case ErrResourceInvalid:
		code, message = JSONRPCResourceInvalid, "Invalid resource identifier."
	default:
		code, message = transport.JSONRPCInternalError, "An unspecified internal error occurred."
		data["internalCode"] = baseErr.Code
	}

	// Only context keys safe for clients are copied.
	for k, v := range baseErr.Context {
		switch k {
		case "uri", "toolName", "promptName", "method", "state":
			if _, exists := data[k]; !exists {
				data[k] = v
			}
		}
	}
	return code, message, data
}
