package leads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PayloadValidator validates entity payloads before they are sent.
type PayloadValidator interface {
	Validate(entity string, schema map[string]any, payload map[string]any) error
}

// SchemaValidator compiles entity schemas once and validates payload maps against them.
type SchemaValidator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator builds a validator backed by jsonschema v5.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate returns a validation *Error describing the first schema violation.
func (v *SchemaValidator) Validate(entity string, schema map[string]any, payload map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := v.schemaFor(entity, schema)
	if err != nil {
		return err
	}
	// round-trip through JSON so typed values (ints, structs) match schema number/object rules
	normalized := map[string]any{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("leads: marshal payload for %s: %w", entity, err)
		}
		if err := json.Unmarshal(data, &normalized); err != nil {
			return fmt.Errorf("leads: normalize payload for %s: %w", entity, err)
		}
	}
	if err := compiled.Validate(normalized); err != nil {
		return &Error{
			Kind:    KindValidation,
			Op:      "create " + entity,
			Message: fmt.Sprintf("%s is invalid: %v", entity, err),
			Err:     err,
		}
	}
	return nil
}

func (v *SchemaValidator) schemaFor(entity string, schema map[string]any) (*jsonschema.Schema, error) {
	v.mu.RLock()
	compiled, ok := v.compiled[entity]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("leads: marshal schema %s: %w", entity, err)
	}
	compiler := jsonschema.NewCompiler()
	name := entity + ".json"
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("leads: load schema %s: %w", entity, err)
	}
	compiled, err = compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("leads: compile schema %s: %w", entity, err)
	}
	v.mu.Lock()
	v.compiled[entity] = compiled
	v.mu.Unlock()
	return compiled, nil
}

type noopPayloadValidator struct{}

func (noopPayloadValidator) Validate(string, map[string]any, map[string]any) error { return nil }
