// Package schema compiles JSON schemas and validates tool arguments against them.
// file: internal/schema/validator.go
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcptypes"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resourcePrefix is the base URI under which schemas are registered with the compiler.
const resourcePrefix = "mcp://schemas/"

// Validator holds compiled schemas keyed by name, typically a tool name.
type Validator struct {
	schemas map[string]*jsonschema.Schema
	mu      sync.RWMutex
	logger  logging.Logger
}

var _ mcptypes.ArgumentValidator = (*Validator)(nil)

// NewValidator creates an empty Validator.
func NewValidator(logger logging.Logger) *Validator {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &Validator{
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger.WithField("component", "schema_validator"),
	}
}

// AddSchema compiles schema (Draft 2020-12) and registers it under name,
// replacing any schema previously registered under that name.
func (v *Validator) AddSchema(name string, schema []byte) error {
	if name == "" {
		return NewValidationError(ErrSchemaLoadFailed, "schema name cannot be empty", nil)
	}
	if len(bytes.TrimSpace(schema)) == 0 {
		return NewValidationError(ErrSchemaLoadFailed, "schema is empty", nil).WithContext("schemaName", name)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	resourceID := resourcePrefix + name + ".json"
	if err := compiler.AddResource(resourceID, bytes.NewReader(schema)); err != nil {
		v.logger.Error("Failed to add schema resource to compiler.", "schemaName", name, "error", err)
		return NewValidationError(ErrSchemaLoadFailed, "failed to add schema resource",
			errors.Wrap(err, "compiler.AddResource failed")).WithContext("schemaName", name)
	}

	start := time.Now()
	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		v.logger.Error("Failed to compile schema.", "schemaName", name, "error", err)
		return NewValidationError(ErrSchemaCompileFailed, fmt.Sprintf("failed to compile schema '%s'", name),
			errors.Wrap(err, "compiler.Compile failed")).WithContext("schemaName", name)
	}

	v.mu.Lock()
	v.schemas[name] = compiled
	v.mu.Unlock()
	v.logger.Debug("Schema compiled.", "schemaName", name, "duration", time.Since(start))
	return nil
}

// HasSchema checks if a schema with the given name exists.
func (v *Validator) HasSchema(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.schemas[name]
	return ok
}

// Names returns the registered schema names in sorted order.
func (v *Validator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks data against the schema registered under name.
// Empty or null data is validated as an empty object.
func (v *Validator) Validate(_ context.Context, name string, data []byte) error {
	v.mu.RLock()
	compiled, ok := v.schemas[name]
	v.mu.RUnlock()
	if !ok {
		return NewValidationError(ErrSchemaNotFound,
			fmt.Sprintf("no schema registered for '%s'", name), nil).
			WithContext("schemaName", name)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	// Numbers stay json.Number so integer checks see 42 and 42.0 exactly.
	var instance interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return NewValidationError(ErrInvalidJSONFormat, "invalid JSON format",
			errors.Wrap(err, "failed to decode data for validation")).
			WithContext("schemaName", name).
			WithContext("dataPreview", calculatePreview(data))
	}

	if err := compiled.Validate(instance); err != nil {
		var valErr *jsonschema.ValidationError
		if errors.As(err, &valErr) {
			v.logger.Debug("Schema validation failed.", "schemaName", name, "error", valErr.Message)
			return convertValidationError(valErr, name, data)
		}
		v.logger.Error("Unexpected error during schema validation.", "schemaName", name, "error", fmt.Sprintf("%+v", err))
		return NewValidationError(ErrValidationFailed, "schema validation failed with unexpected error",
			errors.Wrap(err, "schema.Validate failed unexpectedly")).
			WithContext("schemaName", name)
	}
	return nil
}
