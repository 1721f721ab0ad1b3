package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// SchemaValidationError reports an envelope that failed its own published
// schema. It signals a report assembly defect, never a document defect.
type SchemaValidationError struct {
	Schema string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("report does not conform to %s: %v", e.Schema, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

var (
	schemaOnce     sync.Once
	schemaErr      error
	verifierSchema *jsonschema.Schema
	pmrSchema      *jsonschema.Schema
)

func compileSchemas() {
	compile := func(name string) (*jsonschema.Schema, error) {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("report: read schema %s: %w", name, err)
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := "https://fullbleed.schemas.local/" + name
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("report: load schema %s: %w", name, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("report: compile schema %s: %w", name, err)
		}
		return s, nil
	}

	verifierSchema, schemaErr = compile("a11y.verify.v1.schema.json")
	if schemaErr != nil {
		return
	}
	pmrSchema, schemaErr = compile("pmr.v1.schema.json")
}

func validate(schemaID string, compiled *jsonschema.Schema, encoded []byte) error {
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return &SchemaValidationError{Schema: schemaID, Err: err}
	}
	if err := compiled.Validate(doc); err != nil {
		return &SchemaValidationError{Schema: schemaID, Err: err}
	}
	return nil
}

// ValidateVerifier checks encoded verifier JSON against the published
// envelope schema.
func ValidateVerifier(encoded []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	return validate(VerifierSchema, verifierSchema, encoded)
}

// ValidatePMR checks encoded rank JSON against the published envelope
// schema.
func ValidatePMR(encoded []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	return validate(PMRSchema, pmrSchema, encoded)
}
