package contract

import "strings"

// Location is where a parameter value travels in an HTTP request.
// The set is closed: parameters declared in any other location (formData,
// cookie) are not representable and are skipped by the index.
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationBody   Location = "body"
)

// Locations lists every location in validation order.
var Locations = []Location{LocationPath, LocationHeader, LocationQuery, LocationBody}

// ParseLocation converts a contract "in" value to a Location.
// The comparison is case-insensitive.
func ParseLocation(s string) (Location, bool) {
	switch Location(strings.ToLower(s)) {
	case LocationPath:
		return LocationPath, true
	case LocationQuery:
		return LocationQuery, true
	case LocationHeader:
		return LocationHeader, true
	case LocationBody:
		return LocationBody, true
	}
	return "", false
}

// String returns the location name.
func (l Location) String() string {
	return string(l)
}

// Schema is a JSON-compatible JSON-Schema fragment.
// Values are the types produced by JSON decoding: map[string]any, []any,
// string, bool, numbers and nil.
type Schema map[string]any

// Type returns the schema's "type" keyword when it is a single string.
func (s Schema) Type() string {
	t, _ := s["type"].(string)
	return t
}

// Items returns the "items" sub-schema of an array schema, or nil.
func (s Schema) Items() Schema {
	switch items := s["items"].(type) {
	case map[string]any:
		return items
	case Schema:
		return items
	}
	return nil
}

// Document is the in-memory form of a loaded contract.
type Document struct {
	// Version is the swagger/openapi version string (e.g. "2.0", "3.0.3")
	Version string
	// Title is info.title
	Title string
	// APIVersion is info.version
	APIVersion string
	// Source is the file path or source name the document was loaded from
	Source string
	// BasePath is the path prefix every template is mounted under ("" for none)
	BasePath string
	// Consumes is the document-level media type list (Swagger 2.0)
	Consumes []string
	// Paths in declaration order
	Paths []PathItem
	// Definitions holds the targets of recursive references keyed by JSON
	// pointer (e.g. "#/definitions/Node"). Schemas keep {"$ref": pointer}
	// where they recurse; nil when the document has no recursion.
	Definitions map[string]Schema
}

// IsOAS2 reports whether the document is a Swagger 2.0 document.
func (d *Document) IsOAS2() bool {
	return strings.HasPrefix(d.Version, "2.")
}

// IsOAS3 reports whether the document is an OpenAPI 3.x document.
func (d *Document) IsOAS3() bool {
	return strings.HasPrefix(d.Version, "3.")
}

// OperationCount returns the number of operations across all paths.
func (d *Document) OperationCount() int {
	n := 0
	for _, p := range d.Paths {
		n += len(p.Operations)
	}
	return n
}

// PathItem is a path template and the operations declared under it.
type PathItem struct {
	Template string
	// Parameters declared at path level; already merged into each operation
	Parameters []Parameter
	// Operations in declaration order
	Operations []Operation
}

// Operation is one method of a path item.
type Operation struct {
	// Method is upper-case (GET, POST, ...)
	Method      string
	OperationID string
	Summary     string
	// Parameters are the non-body parameters, path-level ones merged in
	Parameters []Parameter
	// Consumes is the operation-level media type list; empty means inherit
	Consumes    []string
	RequestBody *RequestBody
}

// Parameter is a declared non-body parameter.
type Parameter struct {
	Name     string
	In       string
	Required bool
	// Type is the primitive type of the parameter (string, integer, ...)
	Type   string
	Schema Schema
	// CollectionFormat is csv, ssv, tsv, pipes or multi for array parameters
	CollectionFormat string
}

// RequestBody describes the payload of an operation.
type RequestBody struct {
	// Name is the Swagger 2.0 body parameter name, "" for OpenAPI 3.x
	Name       string
	Required   bool
	MediaTypes []string
	Schema     Schema
}
