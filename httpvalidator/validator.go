package httpvalidator

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/httputil"
	"github.com/erraggy/oasgate/oaserrors"
	"github.com/erraggy/oasgate/schemacheck"
	"github.com/erraggy/oasgate/schemaindex"
)

// Validator checks inbound requests against the operations of a schema index.
//
// All schemas are compiled once by New; afterwards the Validator holds no
// mutable state and is safe for concurrent use. Each call accumulates its
// violations in a list local to that call.
//
//	idx, _ := schemaindex.Build(doc)
//	v, err := httpvalidator.New(idx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := v.Validate(req); err != nil {
//	    var cv *httpvalidator.ConstraintViolations
//	    if errors.As(err, &cv) {
//	        // render cv.Violations
//	    }
//	}
type Validator struct {
	idx    *schemaindex.Index
	cfg    *config
	logger contract.Logger
	co     coercer

	checkers map[*schemaindex.Operation]*operationCheckers
}

// operationCheckers are the compiled schemas of one operation.
type operationCheckers struct {
	header schemacheck.Checker
	query  schemacheck.Checker
	body   schemacheck.Checker // nil when the operation declares no body
}

// New compiles the header, query and body schemas of every operation in idx.
// A schema the engine rejects fails with *oaserrors.SchemaLoadError.
func New(idx *schemaindex.Index, opts ...Option) (*Validator, error) {
	if idx == nil {
		return nil, fmt.Errorf("httpvalidator: index cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.engine == nil {
		engine, err := schemacheck.New(
			schemacheck.WithDraft(schemacheck.DraftFor(idx.Version())),
			schemacheck.WithDefinitions(idx.Definitions()),
		)
		if err != nil {
			return nil, fmt.Errorf("httpvalidator: %w", err)
		}
		cfg.engine = engine
	}

	v := &Validator{
		idx:      idx,
		cfg:      cfg,
		logger:   cfg.logger,
		co:       coercer{legacyNumeric: cfg.legacyNumeric},
		checkers: make(map[*schemaindex.Operation]*operationCheckers),
	}
	for _, op := range idx.Operations() {
		oc, err := v.compile(op)
		if err != nil {
			return nil, err
		}
		v.checkers[op] = oc
	}
	v.logger.Debug("compiled request validators", "operations", len(v.checkers))
	return v, nil
}

func (v *Validator) compile(op *schemaindex.Operation) (*operationCheckers, error) {
	compile := func(what string, schema contract.Schema) (schemacheck.Checker, error) {
		c, err := v.cfg.engine.Compile(schema)
		if err != nil {
			return nil, &oaserrors.SchemaLoadError{
				Source:  v.idx.Source(),
				Path:    "paths." + op.PathTemplate + "." + strings.ToLower(op.Method),
				Message: "invalid " + what + " schema",
				Cause:   err,
			}
		}
		return c, nil
	}

	oc := &operationCheckers{}
	var err error
	if oc.header, err = compile("header", op.ParameterSchema(contract.LocationHeader)); err != nil {
		return nil, err
	}
	if oc.query, err = compile("query", op.ParameterSchema(contract.LocationQuery)); err != nil {
		return nil, err
	}
	if op.HasBody() {
		if oc.body, err = compile("body", op.BodySchema); err != nil {
			return nil, err
		}
	}
	return oc, nil
}

// Index returns the schema index the validator was built from.
func (v *Validator) Index() *schemaindex.Index {
	return v.idx
}

// MaxBodySize returns the body limit applied by ValidateHTTP.
func (v *Validator) MaxBodySize() int64 {
	return v.cfg.maxBodySize
}

// Validate checks req against its matching operation.
//
// It returns nil when the request conforms, *oaserrors.RouteNotFoundError when
// no operation matches the method and path, and *ConstraintViolations holding
// every failed check otherwise. Checks never short-circuit one another:
// violations are reported in step order (media type, header, query, body).
func (v *Validator) Validate(req Request) error {
	op, _, err := v.idx.MatchPath(req.Method, req.Path)
	if err != nil {
		return err
	}
	oc := v.checkers[op]

	var violations []ConstraintViolation
	violations = append(violations, v.checkMediaType(op, req)...)
	violations = append(violations, v.checkHeaders(op, oc, req)...)
	violations = append(violations, v.checkQuery(op, oc, req)...)
	violations = append(violations, v.checkBody(op, oc, req)...)

	if len(violations) == 0 {
		return nil
	}
	v.logger.Debug("request failed validation",
		"operationId", op.ID,
		"method", op.Method,
		"path", req.Path,
		"violations", len(violations))
	return &ConstraintViolations{Violations: violations}
}

// ValidateHTTP captures r with RequestFromHTTP and validates it. The body is
// restored on r for downstream handlers.
func (v *Validator) ValidateHTTP(r *http.Request) error {
	req, err := RequestFromHTTP(r, v.cfg.maxBodySize)
	if err != nil {
		return err
	}
	return v.Validate(req)
}

func (v *Validator) checkMediaType(op *schemaindex.Operation, req Request) []ConstraintViolation {
	if !httputil.CarriesBody(req.Method) {
		return nil
	}
	contentType := header(req.Header, httputil.HeaderContentType)
	if httputil.MatchAnyMediaType(op.MediaTypes, contentType) {
		return nil
	}

	allowed := strings.Join(op.MediaTypes, ", ")
	msg := fmt.Sprintf("content type is required, expected one of: %s", allowed)
	if contentType != "" {
		msg = fmt.Sprintf("content type %q is not allowed, expected one of: %s", contentType, allowed)
	}
	return []ConstraintViolation{{
		Field:      "content-type",
		Message:    msg,
		Constraint: "required",
		Location:   contract.LocationHeader,
	}}
}

func (v *Validator) checkHeaders(op *schemaindex.Operation, oc *operationCheckers, req Request) []ConstraintViolation {
	obj := v.co.headerObject(op, req.Header)
	return violationsOf(oc.header.Check(obj), contract.LocationHeader)
}

func (v *Validator) checkQuery(op *schemaindex.Operation, oc *operationCheckers, req Request) []ConstraintViolation {
	obj := v.co.queryObject(op, req.RawQuery)
	checked := violationsOf(oc.query.Check(obj), contract.LocationQuery)
	malformed := malformedQuery(req.RawQuery)
	if len(malformed) == 0 {
		return checked
	}

	// a dropped pair is reported as malformed, not as missing
	out := malformed
	for _, vi := range checked {
		if vi.Constraint == "required" && slices.ContainsFunc(malformed, func(m ConstraintViolation) bool {
			return m.Field == vi.Field
		}) {
			continue
		}
		out = append(out, vi)
	}
	sortViolations(out)
	return out
}

func (v *Validator) checkBody(op *schemaindex.Operation, oc *operationCheckers, req Request) []ConstraintViolation {
	if !httputil.CarriesBody(req.Method) || oc.body == nil {
		return nil
	}
	if len(bytes.TrimSpace(req.Body)) == 0 {
		if !op.BodyRequired {
			return nil
		}
		return []ConstraintViolation{{
			Field:      "body",
			Message:    "request body is required",
			Constraint: "required",
			Location:   contract.LocationBody,
		}}
	}

	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(req.Body))
	if err != nil {
		return []ConstraintViolation{{
			Field:      "body",
			Message:    fmt.Sprintf("request body is not valid JSON: %v", err),
			Constraint: "format",
			Location:   contract.LocationBody,
		}}
	}
	return violationsOf(oc.body.Check(value), contract.LocationBody)
}

// violationsOf maps engine failures of one step to violations. Failures
// against the whole object are reported under the location name.
func violationsOf(failures []schemacheck.Failure, loc contract.Location) []ConstraintViolation {
	if len(failures) == 0 {
		return nil
	}
	out := make([]ConstraintViolation, len(failures))
	for i, f := range failures {
		field := f.Property
		if field == "" {
			field = string(loc)
		}
		out[i] = ConstraintViolation{
			Field:      field,
			Message:    f.Message,
			Constraint: f.Constraint,
			Location:   loc,
		}
	}
	sortViolations(out)
	return out
}

// header returns the first value of name, matched case-insensitively even
// when h was built without canonical keys.
func header(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for k, vals := range h {
		if strings.EqualFold(k, name) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}
