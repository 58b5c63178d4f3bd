// file: internal/schema/errors.go
package schema

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrorCode defines validation error codes.
type ErrorCode int

// Defined validation error codes.
const (
	ErrSchemaNotFound ErrorCode = iota + 1000
	ErrSchemaLoadFailed
	ErrSchemaCompileFailed
	ErrValidationFailed
	ErrInvalidJSONFormat
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	// Code is the numeric error code.
	Code ErrorCode
	// Message is a human-readable error message.
	Message string
	// Cause is the underlying error, if any.
	Cause error
	// SchemaPath identifies the schema keyword that was violated.
	SchemaPath string
	// InstancePath identifies the part of the arguments that violated the schema.
	InstancePath string
	// Context contains additional error context.
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	base := fmt.Sprintf("[%d] %s", e.Code, e.Message)
	if e.InstancePath != "" {
		base += fmt.Sprintf(" (at %s)", e.InstancePath)
	}
	if e.Cause != nil {
		base += fmt.Sprintf(": %v", e.Cause)
	}
	return base
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the validation error.
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewValidationError creates a new ValidationError.
func NewValidationError(code ErrorCode, message string, cause error) *ValidationError {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &ValidationError{Code: code, Message: message, Cause: wrapped}
}

// convertValidationError turns a jsonschema failure into a ValidationError whose
// message names the most specific violation, e.g. "expected integer, but got string".
func convertValidationError(valErr *jsonschema.ValidationError, name string, data []byte) *ValidationError {
	leaf := valErr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	// The jsonschema error is kept out of Cause: its text repeats the schema URL.
	customErr := NewValidationError(ErrValidationFailed, leaf.Message, nil)
	customErr.SchemaPath = leaf.KeywordLocation
	customErr.InstancePath = leaf.InstanceLocation
	customErr = customErr.
		WithContext("schemaName", name).
		WithContext("dataPreview", calculatePreview(data))

	basic := valErr.BasicOutput()
	if len(basic.Errors) > 0 {
		causes := make([]map[string]string, 0, len(basic.Errors))
		for _, cause := range basic.Errors {
			causes = append(causes, map[string]string{
				"instanceLocation": cause.InstanceLocation,
				"keywordLocation":  cause.KeywordLocation,
				"error":            cause.Error,
			})
		}
		customErr = customErr.WithContext("validationErrors", causes)
	}
	return customErr
}

// calculatePreview returns a bounded, printable preview of data for logs.
func calculatePreview(data []byte) string {
	const maxPreviewLen = 100
	suffix := ""
	if len(data) > maxPreviewLen {
		data = data[:maxPreviewLen]
		suffix = "..."
	}
	printable := bytes.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '.'
		}
		return r
	}, data)
	return string(printable) + suffix
}
