package validator

// The CUE validator is the contract guard between the analysis engine and
// everything downstream: the OPA policy rules and the registersInfo files the
// comparison tooling reads. If a field is renamed or a type drifts, the
// policy engine would silently receive `undefined` and rules would stop
// firing; validation turns that into an immediate, explicit failure instead.
//
// When validation fails, fix the producer or the schema. Never widen the
// schema just to make the error go away.

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed registers_schema.cue
var registersSchemaFS embed.FS

//go:embed output_schema.cue
var outputSchemaFS embed.FS

// Validator checks registersInfo group data against the embedded schema
// before it is written or handed to the policy engine.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a Validator with the embedded registers schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := registersSchemaFS.ReadFile("registers_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate checks that group data conforms to the #RegistersGroups contract.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates raw JSON bytes against the #RegistersGroups contract.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling data as CUE: %w", dataValue.Err())
	}

	groupsDef := v.schema.LookupPath(cue.ParsePath("#RegistersGroups"))
	if groupsDef.Err() != nil {
		return fmt.Errorf("looking up #RegistersGroups definition: %w", groupsDef.Err())
	}

	unified := groupsDef.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns every validation error individually, for output
// that pinpoints all offending fields at once.
func (v *Validator) ValidationErrors(data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return []string{fmt.Sprintf("compile error: %v", dataValue.Err())}
	}

	groupsDef := v.schema.LookupPath(cue.ParsePath("#RegistersGroups"))
	if groupsDef.Err() != nil {
		return []string{fmt.Sprintf("schema lookup error: %v", groupsDef.Err())}
	}

	unified := groupsDef.Unify(dataValue)
	err = unified.Validate()
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// OutputValidator validates the analyzer's aggregate JSON output.
type OutputValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewOutputValidator creates a validator for analyzer output.
func NewOutputValidator() (*OutputValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := outputSchemaFS.ReadFile("output_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading output schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling output schema: %w", schema.Err())
	}

	return &OutputValidator{ctx: ctx, schema: schema}, nil
}

// Validate checks that output data conforms to the #AnalysisOutput contract.
func (v *OutputValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling output to JSON: %w", err)
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling output as CUE: %w", dataValue.Err())
	}

	outputDef := v.schema.LookupPath(cue.ParsePath("#AnalysisOutput"))
	if outputDef.Err() != nil {
		return fmt.Errorf("looking up #AnalysisOutput definition: %w", outputDef.Err())
	}

	unified := outputDef.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("output schema validation failed: %w", err)
	}
	return nil
}
