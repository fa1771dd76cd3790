package httpvalidator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/schemaindex"
)

// jsonNumber matches the JSON number grammar (RFC 8259 section 6).
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// coercer converts textual parameter values into the JSON shapes their
// declared types describe. Values that cannot be converted are left as
// strings so the schema check reports them as type violations.
type coercer struct {
	legacyNumeric bool
}

// queryObject parses a raw query string into the object validated against
// the operation's query schema. Repeated keys and "name[]" keys become arrays.
func (c coercer) queryObject(op *schemaindex.Operation, rawQuery string) map[string]any {
	obj := make(map[string]any)
	if rawQuery == "" {
		return obj
	}
	// ParseQuery keeps every pair it could decode alongside the error
	values, _ := url.ParseQuery(rawQuery)

	grouped := make(map[string][]string, len(values))
	bracketed := make(map[string]bool)
	for _, key := range sortedKeys(values) {
		name := key
		if trimmed, ok := strings.CutSuffix(key, "[]"); ok && trimmed != "" {
			name = trimmed
			bracketed[name] = true
		}
		grouped[name] = append(grouped[name], values[key]...)
	}

	for name, vals := range grouped {
		spec, declared := op.Parameter(contract.LocationQuery, name)
		if !declared {
			obj[name] = rawValues(vals, bracketed[name])
			continue
		}
		obj[name] = c.value(spec, vals, bracketed[name])
	}
	return obj
}

// malformedQuery reports the pairs of rawQuery that url.ParseQuery drops:
// bad percent-escapes and semicolon separators.
func malformedQuery(rawQuery string) []ConstraintViolation {
	var out []ConstraintViolation
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		field, err := url.QueryUnescape(rawKey)
		if err != nil {
			field = rawKey
		} else {
			_, err = url.QueryUnescape(rawValue)
		}
		if err == nil && strings.Contains(pair, ";") {
			err = errors.New("invalid semicolon separator")
		}
		if err != nil {
			out = append(out, ConstraintViolation{
				Field:      field,
				Message:    fmt.Sprintf("malformed query parameter %q: %v", pair, err),
				Constraint: "format",
				Location:   contract.LocationQuery,
			})
		}
	}
	return out
}

// headerObject lower-cases every header name and joins repeated values with
// ", ". Declared header parameters are coerced like query values.
func (c coercer) headerObject(op *schemaindex.Operation, header http.Header) map[string]any {
	lowered := make(map[string][]string, len(header))
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToLower(name)
		lowered[key] = append(lowered[key], header[name]...)
	}

	obj := make(map[string]any, len(lowered))
	for key, vals := range lowered {
		spec, declared := op.Parameter(contract.LocationHeader, key)
		switch {
		case !declared:
			obj[key] = strings.Join(vals, ", ")
		case spec.Type == "array":
			obj[key] = c.value(spec, headerList(vals), false)
		default:
			obj[key] = c.value(spec, []string{strings.Join(vals, ", ")}, false)
		}
	}
	return obj
}

// headerList merges repeated list-valued header lines into one
// comma-separated value without the optional whitespace.
func headerList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for part := range strings.SplitSeq(v, ",") {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return []string{strings.Join(out, ",")}
}

// value coerces the raw values of one declared parameter.
func (c coercer) value(spec schemaindex.ParameterSpec, vals []string, forceArray bool) any {
	if spec.Type == "array" {
		parts := splitCollection(vals, spec.CollectionFormat)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = c.scalar(spec.ItemsType(), p)
		}
		return out
	}
	if len(vals) > 1 || forceArray {
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = c.scalar(spec.Type, v)
		}
		return out
	}
	return c.scalar(spec.Type, vals[0])
}

// scalar converts one textual value to typ. Untyped and string values pass
// through unchanged.
func (c coercer) scalar(typ, raw string) any {
	switch typ {
	case "boolean":
		switch raw {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
		return raw
	case "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return json.Number(strconv.FormatInt(n, 10))
		}
		if c.legacyNumeric {
			return json.Number(strconv.FormatInt(legacyInteger(raw), 10))
		}
		if jsonNumber.MatchString(raw) {
			// out of int64 range or fractional; the schema decides
			return json.Number(raw)
		}
		return raw
	case "number":
		if jsonNumber.MatchString(raw) {
			return json.Number(raw)
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
		}
		if c.legacyNumeric {
			return json.Number("0")
		}
		return raw
	}
	return raw
}

// legacyInteger truncates a fractional value toward zero and maps anything
// unparsable to 0.
func legacyInteger(raw string) int64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// splitCollection splits array values per the Swagger collectionFormat.
// "multi" keeps one element per repeated key; the other formats split every
// repeated value and concatenate.
func splitCollection(vals []string, format string) []string {
	sep := ","
	switch format {
	case "multi":
		return vals
	case "ssv":
		sep = " "
	case "tsv":
		sep = "\t"
	case "pipes":
		sep = "|"
	}
	var out []string
	for _, v := range vals {
		if v == "" {
			continue
		}
		out = append(out, strings.Split(v, sep)...)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func rawValues(vals []string, forceArray bool) any {
	if len(vals) == 1 && !forceArray {
		return vals[0]
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
