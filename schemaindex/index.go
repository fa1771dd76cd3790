package schemaindex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/httputil"
	"github.com/erraggy/oasgate/oaserrors"
)

// route is one path template with the operations declared under it.
type route struct {
	template *pathTemplate
	methods  map[string]*Operation
}

// Index is the immutable lookup structure built from a contract document.
// It is safe for concurrent use.
type Index struct {
	source   string
	version  string
	basePath string
	policy   MatchPolicy
	defs     map[string]contract.Schema

	// ops in declaration order, including operations without an id
	ops    []*Operation
	byID   map[string]*Operation
	routes []*route
}

// Build validates the document and builds the index. No partial index is
// returned: a malformed contract fails with *oaserrors.SchemaLoadError.
func Build(doc *contract.Document, opts ...Option) (*Index, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if doc == nil {
		return nil, &oaserrors.SchemaLoadError{Message: "document is nil"}
	}

	b := &builder{
		cfg:    cfg,
		doc:    doc,
		logger: cfg.logger.With("source", doc.Source),
		idx: &Index{
			source:   doc.Source,
			version:  doc.Version,
			basePath: doc.BasePath,
			policy:   cfg.policy,
			defs:     doc.Definitions,
			byID:     make(map[string]*Operation),
		},
		seen: make(map[string]string),
	}
	if cfg.basePath != nil {
		b.idx.basePath = *cfg.basePath
	}

	for _, item := range doc.Paths {
		if err := b.addPathItem(item); err != nil {
			return nil, err
		}
	}

	if cfg.policy == MatchSpecificity {
		sort.SliceStable(b.idx.routes, func(i, j int) bool {
			a, c := b.idx.routes[i].template, b.idx.routes[j].template
			if a.specificity != c.specificity {
				return a.specificity > c.specificity
			}
			if len(a.raw) != len(c.raw) {
				return len(a.raw) > len(c.raw)
			}
			return a.raw < c.raw
		})
	}
	b.warnOverlaps()

	b.logger.Info("built schema index",
		"operations", len(b.idx.ops),
		"routes", len(b.idx.routes),
		"basePath", b.idx.basePath,
		"policy", cfg.policy.String())
	return b.idx, nil
}

type builder struct {
	cfg    *config
	doc    *contract.Document
	logger contract.Logger
	idx    *Index

	// seen maps "METHOD normalized-template" to the declaring template
	seen map[string]string
}

func (b *builder) loadError(path, format string, args ...any) error {
	return &oaserrors.SchemaLoadError{
		Source:  b.doc.Source,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

func (b *builder) addPathItem(item contract.PathItem) error {
	tmpl, err := parseTemplate(item.Template)
	if err != nil {
		return &oaserrors.SchemaLoadError{Source: b.doc.Source, Path: "paths." + item.Template, Cause: err}
	}
	r := &route{template: tmpl, methods: make(map[string]*Operation, len(item.Operations))}

	for i := range item.Operations {
		op, err := b.buildOperation(tmpl, &item.Operations[i])
		if err != nil {
			return err
		}
		r.methods[op.Method] = op
		b.idx.ops = append(b.idx.ops, op)
		if op.ID != "" {
			b.idx.byID[op.ID] = op
		}
	}
	b.idx.routes = append(b.idx.routes, r)
	return nil
}

func (b *builder) buildOperation(tmpl *pathTemplate, src *contract.Operation) (*Operation, error) {
	path := "paths." + tmpl.raw + "." + strings.ToLower(src.Method)
	method := strings.ToUpper(strings.TrimSpace(src.Method))
	if method == "" {
		return nil, b.loadError("paths."+tmpl.raw, "operation %q has no method", src.OperationID)
	}
	if !httputil.IsSupportedMethod(method) {
		return nil, b.loadError(path, "unsupported method %q", src.Method)
	}

	key := method + " " + tmpl.normalized
	if prev, dup := b.seen[key]; dup {
		return nil, b.loadError(path, "duplicate operation %s %s (already declared by %s)", method, tmpl.raw, prev)
	}
	b.seen[key] = tmpl.raw

	if src.OperationID == "" {
		b.logger.Warn("operation has no operationId, indexed for path matching only", "method", method, "path", tmpl.raw)
	} else if prev, dup := b.idx.byID[src.OperationID]; dup {
		return nil, b.loadError(path, "duplicate operationId %q (already declared by %s %s)", src.OperationID, prev.Method, prev.PathTemplate)
	}

	op := &Operation{
		ID:           src.OperationID,
		Method:       method,
		PathTemplate: tmpl.raw,
		Summary:      src.Summary,
		template:     tmpl,
	}
	if err := b.addParameters(op, src, path); err != nil {
		return nil, err
	}

	if src.RequestBody != nil {
		op.BodySchema = src.RequestBody.Schema
		if op.BodySchema == nil {
			op.BodySchema = contract.Schema{}
		}
		op.BodyRequired = src.RequestBody.Required
		op.BodyName = src.RequestBody.Name
		if op.BodyName == "" {
			op.BodyName = "body"
		}
		op.Parameters = append(op.Parameters, ParameterSpec{
			Name:     op.BodyName,
			Location: contract.LocationBody,
			Required: op.BodyRequired,
			Type:     op.BodySchema.Type(),
			Schema:   op.BodySchema,
		})
	}

	op.MediaTypes = b.mediaTypes(src)
	return op, nil
}

func (b *builder) addParameters(op *Operation, src *contract.Operation, path string) error {
	type key struct {
		loc  contract.Location
		name string
	}
	declared := make(map[key]bool, len(src.Parameters))

	for _, p := range src.Parameters {
		loc, ok := contract.ParseLocation(p.In)
		if !ok || loc == contract.LocationBody {
			b.logger.Warn("skipping parameter in unsupported location", "path", path, "name", p.Name, "in", p.In)
			continue
		}
		if p.Name == "" {
			return b.loadError(path, "%s parameter has no name", loc)
		}
		k := key{loc, p.Name}
		if loc == contract.LocationHeader {
			k.name = strings.ToLower(p.Name)
		}
		if declared[k] {
			return b.loadError(path, "duplicate %s parameter %q", loc, p.Name)
		}
		declared[k] = true

		if loc == contract.LocationPath && !contains(op.template.varNames, p.Name) {
			b.logger.Warn("path parameter not present in template", "path", path, "name", p.Name)
		}
		op.Parameters = append(op.Parameters, ParameterSpec{
			Name:             p.Name,
			Location:         loc,
			Required:         p.Required || loc == contract.LocationPath,
			Type:             p.Type,
			Schema:           p.Schema,
			CollectionFormat: p.CollectionFormat,
		})
	}

	// Template variables without a declaration are still path parameters.
	for _, name := range op.template.varNames {
		if declared[key{contract.LocationPath, name}] {
			continue
		}
		b.logger.Warn("template variable has no parameter declaration", "path", path, "name", name)
		op.Parameters = append(op.Parameters, ParameterSpec{
			Name:     name,
			Location: contract.LocationPath,
			Required: true,
			Type:     "string",
			Schema:   contract.Schema{"type": "string"},
		})
	}
	return nil
}

// mediaTypes resolves the allowed media types: request body content or
// operation consumes, then document consumes, then the configured default.
func (b *builder) mediaTypes(src *contract.Operation) []string {
	switch {
	case src.RequestBody != nil && len(src.RequestBody.MediaTypes) > 0:
		return src.RequestBody.MediaTypes
	case len(src.Consumes) > 0:
		return src.Consumes
	case len(b.doc.Consumes) > 0:
		return b.doc.Consumes
	}
	return b.cfg.defaultMediaTypes
}

// warnOverlaps logs templates that can match the same path under the same
// method, naming the one the active policy picks.
func (b *builder) warnOverlaps() {
	routes := b.idx.routes
	for i := 0; i < len(routes); i++ {
		for j := i + 1; j < len(routes); j++ {
			if !routes[i].template.overlaps(routes[j].template) {
				continue
			}
			for method := range routes[i].methods {
				if _, ok := routes[j].methods[method]; ok {
					b.logger.Warn("overlapping path templates",
						"method", method,
						"winner", routes[i].template.raw,
						"shadowed", routes[j].template.raw,
						"policy", b.cfg.policy.String())
				}
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// FindOperation returns the operation with the given operationId.
// An absent id yields *oaserrors.UnknownOperationError.
func (idx *Index) FindOperation(id string) (*Operation, error) {
	if op, ok := idx.byID[id]; ok {
		return op, nil
	}
	return nil, &oaserrors.UnknownOperationError{OperationID: id}
}

// MatchPath resolves a method and concrete request path to an operation and
// the captured path variables. The base path is stripped first.
//
// A miss yields *oaserrors.RouteNotFoundError; AllowedMethods is populated
// when the path matched a template under other methods.
func (idx *Index) MatchPath(method, path string) (*Operation, map[string]string, error) {
	method = strings.ToUpper(method)
	notFound := &oaserrors.RouteNotFoundError{Method: method, Path: path}

	rel, ok := idx.stripBasePath(path)
	if !ok {
		return nil, nil, notFound
	}
	parts, ok := splitPath(rel)
	if !ok {
		return nil, nil, notFound
	}

	allowed := make(map[string]bool)
	for _, r := range idx.routes {
		params, ok := r.template.match(parts)
		if !ok {
			continue
		}
		if op, ok := r.methods[method]; ok {
			return op, params, nil
		}
		for m := range r.methods {
			allowed[m] = true
		}
	}
	for m := range allowed {
		notFound.AllowedMethods = append(notFound.AllowedMethods, m)
	}
	sort.Strings(notFound.AllowedMethods)
	return nil, nil, notFound
}

func (idx *Index) stripBasePath(path string) (string, bool) {
	if idx.basePath == "" {
		return path, true
	}
	if path == idx.basePath {
		return "/", true
	}
	if strings.HasPrefix(path, idx.basePath+"/") {
		return path[len(idx.basePath):], true
	}
	return "", false
}

// Parameters returns the parameters of op declared in loc, in declaration order.
func (idx *Index) Parameters(op *Operation, loc contract.Location) []ParameterSpec {
	return op.ParametersIn(loc)
}

// BodySchema returns the body schema of op, or nil when it declares none.
func (idx *Index) BodySchema(op *Operation) contract.Schema {
	return op.BodySchema
}

// AllowedMediaTypes returns the request media types op accepts.
func (idx *Index) AllowedMediaTypes(op *Operation) []string {
	return op.MediaTypes
}

// Operations returns every indexed operation in declaration order.
func (idx *Index) Operations() []*Operation {
	out := make([]*Operation, len(idx.ops))
	copy(out, idx.ops)
	return out
}

// BasePath returns the prefix stripped from request paths before matching.
func (idx *Index) BasePath() string {
	return idx.basePath
}

// Source returns the source name of the contract the index was built from.
func (idx *Index) Source() string {
	return idx.source
}

// Version returns the OpenAPI or Swagger version of the indexed contract.
func (idx *Index) Version() string {
	return idx.version
}

// Definitions returns the targets of the contract's recursive references,
// keyed by JSON pointer. Body and parameter schemas refer to them by $ref.
func (idx *Index) Definitions() map[string]contract.Schema {
	return idx.defs
}

// Policy returns the template tie-break policy.
func (idx *Index) Policy() MatchPolicy {
	return idx.policy
}
