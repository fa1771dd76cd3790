package schemacheck

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/erraggy/oasgate/contract"
)

// resourceURL is the in-memory location every schema is registered under.
// Each Compile uses its own compiler, so the URL never collides.
const resourceURL = "mem://oasgate/schema.json"

// definitionsURL holds the targets of recursive references, laid out at the
// pointers the contract names them by.
const definitionsURL = "mem://oasgate/contract.json"

// Failure is one constraint a value broke.
type Failure struct {
	// Property is the dotted path of the offending value ("" for the root)
	Property string
	// Message is the English description of the failure
	Message string
	// Constraint is the JSON-Schema keyword that failed (type, format, required, ...)
	Constraint string
}

// Checker checks values against one compiled schema.
type Checker interface {
	Check(value any) []Failure
}

// Engine compiles schemas into Checkers.
type Engine interface {
	Compile(schema contract.Schema) (Checker, error)
}

// Option is a functional option for configuring the engine.
type Option func(*config) error

type config struct {
	draft *jsonschema.Draft
	tag   language.Tag
	defs  map[string]contract.Schema
}

// WithDraft sets the JSON-Schema draft used for schemas without "$schema".
// Default: draft-04, the dialect of Swagger 2.0 and OpenAPI 3.0.
func WithDraft(d *jsonschema.Draft) Option {
	return func(c *config) error {
		if d == nil {
			return fmt.Errorf("schemacheck: draft cannot be nil")
		}
		c.draft = d
		return nil
	}
}

// WithLanguage sets the language failure messages are rendered in.
// Default: English
func WithLanguage(tag language.Tag) Option {
	return func(c *config) error {
		c.tag = tag
		return nil
	}
}

// WithDefinitions registers the schemas local "#/..." references resolve
// against, keyed by JSON pointer (see contract.Document.Definitions).
func WithDefinitions(defs map[string]contract.Schema) Option {
	return func(c *config) error {
		c.defs = defs
		return nil
	}
}

// DraftFor returns the draft matching a contract version: draft 2020-12 for
// OpenAPI 3.1 and later, draft-04 otherwise.
func DraftFor(version string) *jsonschema.Draft {
	if strings.HasPrefix(version, "3.") && !strings.HasPrefix(version, "3.0") {
		return jsonschema.Draft2020
	}
	return jsonschema.Draft4
}

type engine struct {
	draft *jsonschema.Draft
	tag   language.Tag
	defs  any // nil when there are no definitions
}

// New creates an Engine backed by santhosh-tekuri/jsonschema with format
// assertions enabled.
func New(opts ...Option) (Engine, error) {
	cfg := &config{draft: jsonschema.Draft4, tag: language.English}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	e := &engine{draft: cfg.draft, tag: cfg.tag}
	if len(cfg.defs) > 0 {
		e.defs = localRefs(definitionTree(cfg.defs))
	}
	return e, nil
}

// definitionTree nests each definition under the tokens of its pointer, so
// "#/components/schemas/Node" lands at tree["components"]["schemas"]["Node"].
func definitionTree(defs map[string]contract.Schema) map[string]any {
	tree := map[string]any{}
	for ref, schema := range defs {
		tokens := contract.PointerTokens(ref)
		if len(tokens) == 0 {
			continue
		}
		node := tree
		for _, token := range tokens[:len(tokens)-1] {
			child, ok := node[token].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[token] = child
			}
			node = child
		}
		node[tokens[len(tokens)-1]] = plain(schema)
	}
	return tree
}

// localRefs points every "#/..." reference at the definitions resource.
func localRefs(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if ref, ok := child.(string); ok && k == "$ref" && strings.HasPrefix(ref, "#/") {
				out[k] = definitionsURL + ref
				continue
			}
			out[k] = localRefs(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = localRefs(child)
		}
		return out
	}
	return v
}

// Compile implements Engine.
func (e *engine) Compile(schema contract.Schema) (Checker, error) {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(e.draft)
	c.AssertFormat()
	for _, f := range openAPIFormats {
		c.RegisterFormat(f)
	}

	doc := plain(map[string]any(schema))
	if e.defs != nil {
		if err := c.AddResource(definitionsURL, e.defs); err != nil {
			return nil, fmt.Errorf("schemacheck: invalid definitions: %w", err)
		}
		doc = localRefs(doc)
	}
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("schemacheck: invalid schema: %w", err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("schemacheck: failed to compile schema: %w", err)
	}
	return &checker{schema: compiled, tag: e.tag}, nil
}

type checker struct {
	schema *jsonschema.Schema
	tag    language.Tag
}

// Check implements Checker. The result is sorted by property, constraint
// and message; nil means the value conforms.
func (c *checker) Check(value any) []Failure {
	err := c.schema.Validate(plain(value))
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Failure{{Message: err.Error(), Constraint: "schema"}}
	}

	// A printer per call keeps Check safe for concurrent use.
	p := message.NewPrinter(c.tag)
	var failures []Failure
	collect(verr, p, &failures)
	sort.Slice(failures, func(i, j int) bool {
		a, b := failures[i], failures[j]
		if a.Property != b.Property {
			return a.Property < b.Property
		}
		if a.Constraint != b.Constraint {
			return a.Constraint < b.Constraint
		}
		return a.Message < b.Message
	})
	return failures
}

// collect flattens the error tree into leaf failures. anyOf and oneOf are
// reported as a single failure rather than one per branch.
func collect(e *jsonschema.ValidationError, p *message.Printer, out *[]Failure) {
	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		for _, name := range k.Missing {
			*out = append(*out, Failure{
				Property:   joinProperty(e.InstanceLocation, name),
				Message:    p.Sprintf("missing property %q", name),
				Constraint: "required",
			})
		}
		return
	case *kind.AnyOf, *kind.OneOf:
		*out = append(*out, failureOf(e, p))
		return
	}
	if len(e.Causes) == 0 {
		*out = append(*out, failureOf(e, p))
		return
	}
	for _, cause := range e.Causes {
		collect(cause, p, out)
	}
}

func failureOf(e *jsonschema.ValidationError, p *message.Printer) Failure {
	constraint := "schema"
	if path := e.ErrorKind.KeywordPath(); len(path) > 0 {
		constraint = path[len(path)-1]
	}
	return Failure{
		Property:   joinProperty(e.InstanceLocation),
		Message:    e.ErrorKind.LocalizedString(p),
		Constraint: constraint,
	}
}

func joinProperty(location []string, extra ...string) string {
	parts := append(append([]string(nil), location...), extra...)
	return strings.Join(parts, ".")
}

// Check compiles schema with a default engine and checks value against it.
// Use an Engine to check many values against the same schema.
func Check(value any, schema contract.Schema) ([]Failure, error) {
	e, err := New()
	if err != nil {
		return nil, err
	}
	c, err := e.Compile(schema)
	if err != nil {
		return nil, err
	}
	return c.Check(value), nil
}

// plain converts named map and slice types to the plain JSON shapes the
// engine understands, and rewrites OpenAPI 3.0 "nullable" into a type list.
func plain(v any) any {
	switch t := v.(type) {
	case contract.Schema:
		return plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = plain(child)
		}
		if nullable, _ := out["nullable"].(bool); nullable {
			if typ, ok := out["type"].(string); ok {
				out["type"] = []any{typ, "null"}
			}
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = child
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = plain(child)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = child
		}
		return out
	}
	return v
}
