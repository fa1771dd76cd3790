package schemaindex

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	// segmentVariable is a segment that is exactly "{name}"
	segmentVariable
	// segmentPattern mixes literal text and variables, e.g. "{name}.json"
	segmentPattern
)

type segment struct {
	kind    segmentKind
	literal string
	names   []string
	pattern *regexp.Regexp
}

// pathTemplate is a parsed path template such as "/foos/{id}".
// Matching is segment-wise: the concrete path must have the same number of
// segments, literal segments compare exactly and variable segments match any
// non-empty segment.
type pathTemplate struct {
	// raw is the original template
	raw string

	segments []segment

	// varNames are the variable names in order of appearance
	varNames []string

	// normalized is raw with every variable name erased ("/foos/{}"); two
	// templates with the same normalized form address the same resources
	normalized string

	// specificity is used for sorting templates (higher = more specific)
	specificity int
}

// parseTemplate parses a path template.
//
// Returns an error if the template is malformed (e.g., unclosed braces,
// empty or duplicate variable names).
func parseTemplate(template string) (*pathTemplate, error) {
	if template == "" {
		return nil, fmt.Errorf("path template cannot be empty")
	}
	if template[0] != '/' {
		return nil, fmt.Errorf("path template %q must begin with '/'", template)
	}

	pt := &pathTemplate{raw: template}
	var normalized strings.Builder
	seen := make(map[string]bool)

	for _, part := range strings.Split(template[1:], "/") {
		seg, norm, specificity, err := parseSegment(part, template)
		if err != nil {
			return nil, err
		}
		for _, name := range seg.names {
			if seen[name] {
				return nil, fmt.Errorf("duplicate path parameter %q in template %q", name, template)
			}
			seen[name] = true
			pt.varNames = append(pt.varNames, name)
		}
		pt.segments = append(pt.segments, seg)
		pt.specificity += specificity
		normalized.WriteByte('/')
		normalized.WriteString(norm)
	}
	pt.normalized = normalized.String()
	return pt, nil
}

// parseSegment parses one template segment, returning the segment, its
// normalized form and its specificity contribution.
func parseSegment(part, template string) (segment, string, int, error) {
	if !strings.ContainsAny(part, "{}") {
		return segment{kind: segmentLiteral, literal: part}, part, len(part), nil
	}

	var regexBuf, norm strings.Builder
	regexBuf.WriteString("^")
	var names []string
	specificity := 0

	i := 0
	for i < len(part) {
		switch part[i] {
		case '{':
			end := strings.IndexByte(part[i:], '}')
			if end == -1 {
				return segment{}, "", 0, fmt.Errorf("unclosed path parameter in template %q", template)
			}
			name := part[i+1 : i+end]
			if name == "" {
				return segment{}, "", 0, fmt.Errorf("empty path parameter in template %q", template)
			}
			if strings.ContainsAny(name, "{") {
				return segment{}, "", 0, fmt.Errorf("nested brace in path parameter %q of template %q", name, template)
			}
			names = append(names, name)
			regexBuf.WriteString("(.+?)")
			norm.WriteString("{}")
			// Parameters reduce specificity (exact matches are more specific)
			specificity--
			i += end + 1
		case '}':
			return segment{}, "", 0, fmt.Errorf("unopened brace in template %q", template)
		default:
			regexBuf.WriteString(regexp.QuoteMeta(string(part[i])))
			norm.WriteByte(part[i])
			specificity++
			i++
		}
	}

	if len(names) == 1 && part == "{"+names[0]+"}" {
		return segment{kind: segmentVariable, names: names}, "{}", specificity, nil
	}

	regexBuf.WriteString("$")
	re, err := regexp.Compile(regexBuf.String())
	if err != nil {
		return segment{}, "", 0, fmt.Errorf("failed to compile path pattern for template %q: %w", template, err)
	}
	return segment{kind: segmentPattern, names: names, pattern: re}, norm.String(), specificity, nil
}

// match reports whether the concrete path segments match the template and
// returns the captured variables, percent-decoded.
func (pt *pathTemplate) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(pt.segments) {
		return nil, false
	}
	params := make(map[string]string, len(pt.varNames))
	for i, seg := range pt.segments {
		part := parts[i]
		switch seg.kind {
		case segmentLiteral:
			if unescape(part) != seg.literal {
				return nil, false
			}
		case segmentVariable:
			if part == "" {
				return nil, false
			}
			params[seg.names[0]] = unescape(part)
		case segmentPattern:
			m := seg.pattern.FindStringSubmatch(part)
			if m == nil || len(m) != len(seg.names)+1 {
				return nil, false
			}
			for j, name := range seg.names {
				params[name] = unescape(m[j+1])
			}
		}
	}
	return params, true
}

// overlaps reports whether some concrete path could match both templates.
// Pattern segments are treated as wildcards.
func (pt *pathTemplate) overlaps(other *pathTemplate) bool {
	if len(pt.segments) != len(other.segments) {
		return false
	}
	for i, a := range pt.segments {
		b := other.segments[i]
		if a.kind == segmentLiteral && b.kind == segmentLiteral && a.literal != b.literal {
			return false
		}
	}
	return true
}

// splitPath splits a concrete path into segments. The leading slash is
// required; "/" yields a single empty segment like the template "/".
func splitPath(path string) ([]string, bool) {
	if path == "" || path[0] != '/' {
		return nil, false
	}
	return strings.Split(path[1:], "/"), true
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
