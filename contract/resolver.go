package contract

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/erraggy/oasgate/oaserrors"
)

// resolver inlines local $ref pointers against the raw document.
// A reference that is already being expanded higher up the stack is kept as
// {"$ref": pointer} and its target is collected by definitions.
type resolver struct {
	root   map[string]any
	logger Logger

	// recursive holds the pointers kept as $ref
	recursive map[string]struct{}
}

func (r *resolver) inline(v any) (any, error) {
	return r.inlineWith(v, nil)
}

func (r *resolver) inlineWith(v any, stack []string) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok {
			return r.follow(ref, stack)
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			resolved, err := r.inlineWith(child, stack)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			resolved, err := r.inlineWith(child, stack)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	}
	return v, nil
}

func (r *resolver) follow(ref string, stack []string) (any, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, &oaserrors.ReferenceError{Ref: ref, Message: "only local references are supported"}
	}
	if slices.Contains(stack, ref) {
		if r.recursive == nil {
			r.recursive = make(map[string]struct{})
		}
		if _, seen := r.recursive[ref]; !seen {
			r.logger.Debug("keeping recursive reference", "ref", ref)
			r.recursive[ref] = struct{}{}
		}
		return map[string]any{"$ref": ref}, nil
	}
	target, ok := r.lookup(ref)
	if !ok {
		return nil, &oaserrors.ReferenceError{Ref: ref, Message: "target not found"}
	}
	return r.inlineWith(target, append(slices.Clip(stack), ref))
}

// definitions resolves the target of every recursive reference. Targets
// keep {"$ref"} where they recurse, so resolving one may name more targets.
// A cycle made only of references, with no schema along the way, fails with
// a circular *oaserrors.ReferenceError.
func (r *resolver) definitions() (map[string]Schema, error) {
	if len(r.recursive) == 0 {
		return nil, nil
	}
	defs := make(map[string]Schema, len(r.recursive))
	for len(defs) < len(r.recursive) {
		for _, ref := range slices.Sorted(maps.Keys(r.recursive)) {
			if _, done := defs[ref]; done {
				continue
			}
			target, _ := r.lookup(ref)
			resolved, err := r.inlineWith(target, []string{ref})
			if err != nil {
				return nil, err
			}
			schema, _ := resolved.(map[string]any)
			if _, alias := schema["$ref"]; alias && len(schema) == 1 {
				return nil, &oaserrors.ReferenceError{Ref: ref, IsCircular: true, Message: "reference cycle contains no schema"}
			}
			defs[ref] = schema
		}
	}
	return defs, nil
}

func (r *resolver) lookup(ref string) (any, bool) {
	var cur any = r.root
	for _, token := range PointerTokens(ref) {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[token]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(token)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// PointerTokens splits a "#/a/b" JSON pointer into unescaped tokens.
func PointerTokens(ref string) []string {
	trimmed := strings.TrimPrefix(ref, "#/")
	if trimmed == "" {
		return nil
	}
	tokens := strings.Split(trimmed, "/")
	for i, t := range tokens {
		if unescaped, err := url.PathUnescape(t); err == nil {
			t = unescaped
		}
		t = strings.ReplaceAll(t, "~1", "/")
		tokens[i] = strings.ReplaceAll(t, "~0", "~")
	}
	return tokens
}
