package pipeline

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed run_state.schema.json
var runStateSchema string

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

// SchemaError lists every field of a state response that broke the run state
// contract.
type SchemaError struct {
	Fields []FieldError
}

// FieldError is a single schema violation.
type FieldError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid run state: " + strings.Join(parts, "; ")
}

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(runStateSchema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("pipeline: compile run state schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks a raw state response against the run state schema: all six
// stage keys, a baseline slot and a known status everywhere.
func Validate(body []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("pipeline: validate snapshot: %w", err)
	}
	if result.Valid() {
		return nil
	}
	schemaErr := &SchemaError{Fields: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		schemaErr.Fields = append(schemaErr.Fields, FieldError{Field: field, Message: desc.Description()})
	}
	return schemaErr
}

// Parse validates body and decodes it into a Snapshot.
func Parse(body []byte) (*Snapshot, error) {
	if err := Validate(body); err != nil {
		return nil, err
	}
	return Decode(body)
}
