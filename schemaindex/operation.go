package schemaindex

import (
	"strings"

	"github.com/erraggy/oasgate/contract"
)

// ParameterSpec is a declared parameter of an operation.
type ParameterSpec struct {
	Name     string
	Location contract.Location
	Required bool
	// Type is the primitive type (string, integer, number, boolean, array)
	Type   string
	Schema contract.Schema
	// CollectionFormat is the array serialization: csv, ssv, tsv, pipes or multi
	CollectionFormat string
}

// ItemsType returns the type of array items, or "".
func (p ParameterSpec) ItemsType() string {
	return p.Schema.Items().Type()
}

// Operation is an indexed operation. It is immutable once Build returns.
type Operation struct {
	ID           string
	Method       string
	PathTemplate string
	Summary      string
	Parameters   []ParameterSpec

	BodySchema   contract.Schema
	BodyRequired bool
	// BodyName is the name callers use for the body parameter
	BodyName string

	MediaTypes []string

	template *pathTemplate
}

// HasBody reports whether the operation declares a body schema.
func (op *Operation) HasBody() bool {
	return op.BodySchema != nil
}

// PathVariables returns the template variable names in order of appearance.
func (op *Operation) PathVariables() []string {
	return op.template.varNames
}

// ParametersIn returns the declared parameters of the given location in
// declaration order.
func (op *Operation) ParametersIn(loc contract.Location) []ParameterSpec {
	var out []ParameterSpec
	for _, p := range op.Parameters {
		if p.Location == loc {
			out = append(out, p)
		}
	}
	return out
}

// Parameter returns the declared parameter with the given name and location.
// Header names compare case-insensitively.
func (op *Operation) Parameter(loc contract.Location, name string) (ParameterSpec, bool) {
	for _, p := range op.Parameters {
		if p.Location != loc {
			continue
		}
		if p.Name == name || (loc == contract.LocationHeader && strings.EqualFold(p.Name, name)) {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// ParameterSchema builds the synthetic object schema that validates all
// parameters of one location at once. Header names are lower-cased so the
// schema can be checked against a lower-cased header map.
//
// "required" is only emitted when non-empty: draft-04 rejects an empty list.
func (op *Operation) ParameterSchema(loc contract.Location) contract.Schema {
	properties := make(map[string]any)
	var required []any
	for _, p := range op.ParametersIn(loc) {
		name := p.Name
		if loc == contract.LocationHeader {
			name = strings.ToLower(name)
		}
		schema := p.Schema
		if schema == nil {
			schema = contract.Schema{}
		}
		properties[name] = map[string]any(schema)
		if p.Required {
			required = append(required, name)
		}
	}
	schema := contract.Schema{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
