package uritemplate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	rfc6570 "github.com/yosida95/uritemplate/v3"
)

// ErrExtractNotSupported is returned by expanders that can only expand.
var ErrExtractNotSupported = errors.New("uritemplate: extract not supported")

// Expander turns a template and variables into a concrete path, and
// optionally back.
type Expander interface {
	// Expand substitutes params into template. Missing variables expand to
	// the empty string, as RFC 6570 specifies for undefined values.
	Expand(template string, params map[string]string) (string, error)

	// Extract recovers the variables of template from a concrete path.
	Extract(template, path string) (map[string]string, error)
}

// RFC6570 is an Expander backed by github.com/yosida95/uritemplate.
// Compiled templates are cached; it is safe for concurrent use.
type RFC6570 struct {
	cache sync.Map // template string -> *rfc6570.Template
}

// NewRFC6570 returns an RFC 6570 expander supporting Expand and Extract.
func NewRFC6570() *RFC6570 {
	return &RFC6570{}
}

func (e *RFC6570) compile(template string) (*rfc6570.Template, error) {
	if cached, ok := e.cache.Load(template); ok {
		return cached.(*rfc6570.Template), nil
	}
	t, err := rfc6570.New(template)
	if err != nil {
		return nil, fmt.Errorf("uritemplate: invalid template %q: %w", template, err)
	}
	actual, _ := e.cache.LoadOrStore(template, t)
	return actual.(*rfc6570.Template), nil
}

// Expand implements Expander. Templates RFC 6570 rejects but OpenAPI allows,
// such as "/foos/{foo-id}", are expanded by Simple instead.
func (e *RFC6570) Expand(template string, params map[string]string) (string, error) {
	t, err := e.compile(template)
	if err != nil {
		if out, simpleErr := (Simple{}).Expand(template, params); simpleErr == nil {
			return out, nil
		}
		return "", err
	}
	values := make(rfc6570.Values, len(params))
	for k, v := range params {
		values.Set(k, rfc6570.String(v))
	}
	out, err := t.Expand(values)
	if err != nil {
		return "", fmt.Errorf("uritemplate: failed to expand %q: %w", template, err)
	}
	return out, nil
}

// Extract implements Expander.
func (e *RFC6570) Extract(template, path string) (map[string]string, error) {
	t, err := e.compile(template)
	if err != nil {
		return nil, err
	}
	match := t.Match(path)
	if match == nil {
		return nil, fmt.Errorf("uritemplate: %q does not match template %q", path, template)
	}
	out := make(map[string]string, len(match))
	for name, v := range match {
		if list := v.List(); list != nil && len(v.V) > 1 {
			out[name] = strings.Join(list, ",")
			continue
		}
		out[name] = v.String()
	}
	return out, nil
}

// Varnames returns the variable names of template in order of appearance.
func (e *RFC6570) Varnames(template string) ([]string, error) {
	t, err := e.compile(template)
	if err != nil {
		return nil, err
	}
	return t.Varnames(), nil
}

// Simple is an Expander that substitutes "{name}" placeholders with
// path-escaped values. It accepts any variable name, including names RFC 6570
// rejects such as "foo-id", but cannot extract.
type Simple struct{}

// NewSimple returns the expand-only expander.
func NewSimple() Simple {
	return Simple{}
}

// Expand implements Expander.
func (Simple) Expand(template string, params map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end == -1 {
			return "", fmt.Errorf("uritemplate: unclosed expression in template %q", template)
		}
		b.WriteString(rest[:open])
		name := rest[open+1 : open+end]
		if name == "" {
			return "", fmt.Errorf("uritemplate: empty expression in template %q", template)
		}
		b.WriteString(url.PathEscape(params[name]))
		rest = rest[open+end+1:]
	}
}

// Extract implements Expander. It always fails with ErrExtractNotSupported.
func (Simple) Extract(_, _ string) (map[string]string, error) {
	return nil, ErrExtractNotSupported
}

// Ensure both expanders implement Expander at compile time.
var (
	_ Expander = (*RFC6570)(nil)
	_ Expander = Simple{}
)
