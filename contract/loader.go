package contract

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasgate/oaserrors"
)

// operationKeys are the path item keys that declare an operation.
var operationKeys = map[string]bool{
	"get":     true,
	"put":     true,
	"post":    true,
	"delete":  true,
	"options": true,
	"head":    true,
	"patch":   true,
	"trace":   true,
}

// pathItemFields are path item keys that never hold an operation.
var pathItemFields = map[string]bool{
	"$ref":        true,
	"summary":     true,
	"description": true,
	"servers":     true,
	"parameters":  true,
}

// schemaKeywords are the Swagger 2.0 parameter and items fields that are also
// JSON-Schema keywords.
var schemaKeywords = map[string]bool{
	"type":             true,
	"format":           true,
	"default":          true,
	"maximum":          true,
	"exclusiveMaximum": true,
	"minimum":          true,
	"exclusiveMinimum": true,
	"maxLength":        true,
	"minLength":        true,
	"pattern":          true,
	"maxItems":         true,
	"minItems":         true,
	"uniqueItems":      true,
	"enum":             true,
	"multipleOf":       true,
}

type loader struct {
	source string
	logger Logger

	// node is the top-level mapping of the document, used for key order
	node *yaml.Node
	refs *resolver
	oas3 bool
}

func (l *loader) load(data []byte) (*Document, error) {
	var docNode yaml.Node
	if err := yaml.Unmarshal(data, &docNode); err != nil {
		return nil, &oaserrors.ParseError{Path: l.source, Message: "failed to parse YAML/JSON", Cause: err}
	}
	l.node = documentMapping(&docNode)
	if l.node == nil {
		return nil, &oaserrors.ParseError{Path: l.source, Message: "document root must be a mapping"}
	}

	var decoded map[string]any
	if err := l.node.Decode(&decoded); err != nil {
		return nil, &oaserrors.ParseError{Path: l.source, Message: "failed to decode document", Cause: err}
	}
	raw, _ := normalize(decoded).(map[string]any)
	l.refs = &resolver{root: raw, logger: l.logger}

	doc := &Document{Source: l.source}
	if err := l.detectVersion(doc); err != nil {
		return nil, err
	}
	l.oas3 = doc.IsOAS3()

	if info, ok := raw["info"].(map[string]any); ok {
		doc.Title, _ = info["title"].(string)
		doc.APIVersion = scalarString(info["version"])
	}
	doc.BasePath = l.basePath(raw)
	doc.Consumes = stringList(raw["consumes"])

	pathsNode := mappingValue(l.node, "paths")
	if pathsNode != nil && pathsNode.Kind != yaml.MappingNode {
		return nil, &oaserrors.ParseError{Path: l.source, Line: pathsNode.Line, Column: pathsNode.Column, Message: "paths must be a mapping"}
	}
	rawPaths, _ := raw["paths"].(map[string]any)
	for _, template := range mappingKeys(pathsNode) {
		if strings.HasPrefix(template, "x-") {
			continue
		}
		item, err := l.buildPathItem(doc, template, rawPaths[template], mappingValue(pathsNode, template))
		if err != nil {
			return nil, err
		}
		doc.Paths = append(doc.Paths, item)
	}

	defs, err := l.refs.definitions()
	if err != nil {
		return nil, err
	}
	doc.Definitions = defs

	l.logger.Debug("loaded contract",
		"version", doc.Version,
		"paths", len(doc.Paths),
		"operations", doc.OperationCount())
	return doc, nil
}

func (l *loader) detectVersion(doc *Document) error {
	// Read the scalar text so an unquoted 2.0 is not decoded as a float.
	if n := mappingValue(l.node, "swagger"); n != nil {
		doc.Version = n.Value
		if doc.Version != "2.0" {
			return &oaserrors.ParseError{Path: l.source, Line: n.Line, Message: fmt.Sprintf("unsupported swagger version %q", doc.Version)}
		}
		return nil
	}
	if n := mappingValue(l.node, "openapi"); n != nil {
		doc.Version = n.Value
		if !strings.HasPrefix(doc.Version, "3.") {
			return &oaserrors.ParseError{Path: l.source, Line: n.Line, Message: fmt.Sprintf("unsupported openapi version %q", doc.Version)}
		}
		return nil
	}
	return &oaserrors.ParseError{
		Path:    l.source,
		Message: "unable to detect OpenAPI version: document must contain either 'swagger: \"2.0\"' or 'openapi: \"3.x.x\"' at the root level",
	}
}

func (l *loader) basePath(raw map[string]any) string {
	var p string
	if l.oas3 {
		servers, _ := raw["servers"].([]any)
		if len(servers) == 0 {
			return ""
		}
		server, _ := servers[0].(map[string]any)
		rawURL, _ := server["url"].(string)
		rawURL = substituteServerVariables(rawURL, server["variables"])
		u, err := url.Parse(rawURL)
		if err != nil {
			l.logger.Warn("ignoring unparsable server url", "url", rawURL, "error", err)
			return ""
		}
		p = u.Path
	} else {
		p, _ = raw["basePath"].(string)
	}
	return strings.TrimRight(p, "/")
}

// substituteServerVariables replaces each "{name}" in a server URL with the
// default of the matching server variable. Unknown names are left as is.
func substituteServerVariables(rawURL string, variables any) string {
	vars, _ := variables.(map[string]any)
	if len(vars) == 0 || !strings.Contains(rawURL, "{") {
		return rawURL
	}
	pairs := make([]string, 0, 2*len(vars))
	for _, name := range sortedKeys(vars) {
		v, _ := vars[name].(map[string]any)
		pairs = append(pairs, "{"+name+"}", scalarString(v["default"]))
	}
	return strings.NewReplacer(pairs...).Replace(rawURL)
}

func (l *loader) buildPathItem(doc *Document, template string, rawItem any, itemNode *yaml.Node) (PathItem, error) {
	item := PathItem{Template: template}
	resolved, err := l.refs.inline(rawItem)
	if err != nil {
		return item, err
	}
	fields, ok := resolved.(map[string]any)
	if !ok {
		line := 0
		if itemNode != nil {
			line = itemNode.Line
		}
		return item, &oaserrors.ParseError{Path: l.source, Line: line, Message: fmt.Sprintf("path item %q must be a mapping", template)}
	}
	if ref := mappingValue(itemNode, "$ref"); ref != nil {
		itemNode = l.nodeAt(ref.Value)
	}

	pathParams, body, err := l.convertParameters(fields["parameters"])
	if err != nil {
		return item, err
	}
	item.Parameters = pathParams

	keys := mappingKeys(itemNode)
	if len(keys) == 0 {
		keys = sortedKeys(fields)
	}
	for _, key := range keys {
		if pathItemFields[key] || strings.HasPrefix(key, "x-") {
			continue
		}
		if !operationKeys[strings.ToLower(key)] {
			l.logger.Warn("non-standard operation key", "path", template, "key", key)
		}
		rawOp, _ := fields[key].(map[string]any)
		op, err := l.buildOperation(doc, key, rawOp, mappingValue(itemNode, key), pathParams, body)
		if err != nil {
			return item, fmt.Errorf("contract: paths.%s.%s: %w", template, key, err)
		}
		item.Operations = append(item.Operations, op)
	}
	return item, nil
}

func (l *loader) buildOperation(doc *Document, key string, raw map[string]any, opNode *yaml.Node, pathParams []Parameter, pathBody *RequestBody) (Operation, error) {
	op := Operation{Method: strings.ToUpper(key)}
	op.OperationID, _ = raw["operationId"].(string)
	op.Summary, _ = raw["summary"].(string)

	opParams, body, err := l.convertParameters(raw["parameters"])
	if err != nil {
		return op, err
	}
	op.Parameters = mergeParameters(pathParams, opParams)
	if body == nil {
		body = pathBody
	}

	if l.oas3 {
		body, err = l.requestBody(raw["requestBody"], mappingValue(opNode, "requestBody"))
		if err != nil {
			return op, err
		}
		if body != nil {
			op.Consumes = body.MediaTypes
		}
	} else {
		op.Consumes = stringList(raw["consumes"])
		if body != nil {
			b := *body
			b.MediaTypes = op.Consumes
			if len(b.MediaTypes) == 0 {
				b.MediaTypes = doc.Consumes
			}
			body = &b
		}
	}
	op.RequestBody = body
	return op, nil
}

// convertParameters splits a raw parameter list into non-body parameters and
// the Swagger 2.0 body parameter, if any.
func (l *loader) convertParameters(raw any) ([]Parameter, *RequestBody, error) {
	list, _ := raw.([]any)
	var params []Parameter
	var body *RequestBody
	for _, entry := range list {
		resolved, err := l.refs.inline(entry)
		if err != nil {
			return nil, nil, err
		}
		p, ok := resolved.(map[string]any)
		if !ok {
			continue
		}
		name, _ := p["name"].(string)
		in, _ := p["in"].(string)
		required, _ := p["required"].(bool)

		if in == "body" {
			schema, _ := p["schema"].(map[string]any)
			body = &RequestBody{Name: name, Required: required, Schema: schema}
			continue
		}

		param := Parameter{
			Name:     name,
			In:       in,
			Required: required || in == "path",
		}
		if l.oas3 {
			param.Schema = parameterContentSchema(p)
			param.Type = param.Schema.Type()
			style, _ := p["style"].(string)
			explode, hasExplode := p["explode"].(bool)
			param.CollectionFormat = collectionFormatFor(in, style, explode, hasExplode, param.Type)
		} else {
			param.Schema = swaggerParameterSchema(p)
			param.Type, _ = p["type"].(string)
			param.CollectionFormat, _ = p["collectionFormat"].(string)
			if param.Type == "array" && param.CollectionFormat == "" {
				param.CollectionFormat = "csv"
			}
		}
		params = append(params, param)
	}
	return params, body, nil
}

func (l *loader) requestBody(raw any, rbNode *yaml.Node) (*RequestBody, error) {
	if raw == nil {
		return nil, nil
	}
	resolved, err := l.refs.inline(raw)
	if err != nil {
		return nil, err
	}
	rb, ok := resolved.(map[string]any)
	if !ok {
		return nil, nil
	}
	if ref := mappingValue(rbNode, "$ref"); ref != nil {
		rbNode = l.nodeAt(ref.Value)
	}

	body := &RequestBody{}
	body.Required, _ = rb["required"].(bool)
	content, _ := rb["content"].(map[string]any)
	body.MediaTypes = mappingKeys(mappingValue(rbNode, "content"))
	if len(body.MediaTypes) != len(content) {
		body.MediaTypes = sortedKeys(content)
	}

	preferred := ""
	for _, mt := range body.MediaTypes {
		if strings.Contains(strings.ToLower(mt), "json") {
			preferred = mt
			break
		}
	}
	if preferred == "" && len(body.MediaTypes) > 0 {
		preferred = body.MediaTypes[0]
	}
	if media, ok := content[preferred].(map[string]any); ok {
		body.Schema, _ = media["schema"].(map[string]any)
	}
	return body, nil
}

// nodeAt returns the node addressed by a local reference, or nil.
func (l *loader) nodeAt(ref string) *yaml.Node {
	if !strings.HasPrefix(ref, "#/") {
		return nil
	}
	n := l.node
	for _, token := range PointerTokens(ref) {
		n = mappingValue(n, token)
		if n == nil {
			return nil
		}
	}
	return n
}

// mergeParameters overlays operation-level parameters on path-level ones,
// matching by (name, in).
func mergeParameters(pathParams, opParams []Parameter) []Parameter {
	if len(pathParams) == 0 {
		return opParams
	}
	type key struct{ name, in string }
	overridden := make(map[key]bool, len(opParams))
	for _, p := range opParams {
		overridden[key{p.Name, p.In}] = true
	}
	merged := make([]Parameter, 0, len(pathParams)+len(opParams))
	for _, p := range pathParams {
		if !overridden[key{p.Name, p.In}] {
			merged = append(merged, p)
		}
	}
	return append(merged, opParams...)
}

// swaggerParameterSchema extracts the JSON-Schema keywords of a Swagger 2.0
// non-body parameter.
func swaggerParameterSchema(p map[string]any) Schema {
	schema := Schema{}
	for k, v := range p {
		if schemaKeywords[k] {
			schema[k] = v
		}
	}
	if schema.Type() == "file" {
		delete(schema, "type")
	}
	if items, ok := p["items"].(map[string]any); ok {
		schema["items"] = map[string]any(swaggerParameterSchema(items))
	}
	return schema
}

// parameterContentSchema returns the schema of an OpenAPI 3.x parameter,
// either from "schema" or from the first "content" entry.
func parameterContentSchema(p map[string]any) Schema {
	if s, ok := p["schema"].(map[string]any); ok {
		return s
	}
	content, _ := p["content"].(map[string]any)
	for _, mt := range sortedKeys(content) {
		if media, ok := content[mt].(map[string]any); ok {
			if s, ok := media["schema"].(map[string]any); ok {
				return s
			}
		}
	}
	return Schema{}
}

// collectionFormatFor maps OpenAPI 3.x style/explode to a Swagger 2.0
// collection format.
func collectionFormatFor(in, style string, explode, hasExplode bool, typ string) string {
	if typ != "array" {
		return ""
	}
	switch style {
	case "spaceDelimited":
		return "ssv"
	case "pipeDelimited":
		return "pipes"
	case "", "form":
		if in != "query" && style == "" {
			return "csv"
		}
		if !hasExplode || explode {
			return "multi"
		}
	}
	return "csv"
}

// normalize converts YAML-decoded values to JSON-compatible ones.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = normalize(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = normalize(child)
		}
		return out
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	}
	return v
}

func documentMapping(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			v := n.Content[i+1]
			if v.Kind == yaml.AliasNode && v.Alias != nil {
				return v.Alias
			}
			return v
		}
	}
	return nil
}

// mappingKeys returns the keys of a mapping node in declaration order.
func mappingKeys(n *yaml.Node) []string {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	return fmt.Sprint(v)
}
