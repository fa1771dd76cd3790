package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/internal/httputil"
	"github.com/erraggy/oasgate/oaserrors"
	"github.com/erraggy/oasgate/schemaindex"
)

// BodyKey is the params key whose value becomes the JSON request body. The
// declared name of the operation's body parameter is accepted as well.
const BodyKey = "body"

// Client builds requests from operation ids and parameter bags, validates
// them against the same contract a server would, and dispatches them.
// It is safe for concurrent use.
type Client struct {
	idx       *schemaindex.Index
	validator *httpvalidator.Validator
	cfg       *config
	logger    contract.Logger
}

// New creates a Client for the operations of idx. Every built request is
// checked by v before it is sent.
func New(idx *schemaindex.Index, v *httpvalidator.Validator, opts ...Option) (*Client, error) {
	if idx == nil {
		return nil, fmt.Errorf("client: index cannot be nil")
	}
	if v == nil {
		return nil, fmt.Errorf("client: validator cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.baseURL == nil {
		return nil, fmt.Errorf("client: base URL is required (use WithBaseURL)")
	}
	return &Client{idx: idx, validator: v, cfg: cfg, logger: cfg.logger}, nil
}

// BuildRequest assembles the request for operationID from params.
//
// Each declared parameter takes its value from the params key of the same
// name (header names match case-insensitively); the body comes from the
// "body" key or the body parameter's declared name and is JSON encoded.
// Undeclared keys are ignored. An unknown operation fails with
// *oaserrors.UnknownOperationError, and a request the validator rejects
// fails with the validator's error, before anything is sent.
func (c *Client) BuildRequest(ctx context.Context, operationID string, params map[string]any) (*http.Request, error) {
	op, err := c.idx.FindOperation(operationID)
	if err != nil {
		return nil, err
	}

	pathParams := make(map[string]string)
	query := make(url.Values)
	header := make(http.Header)
	var body []byte
	hasBody := false

	for _, spec := range op.Parameters {
		switch spec.Location {
		case contract.LocationPath:
			if v, ok := params[spec.Name]; ok && v != nil {
				pathParams[spec.Name] = formatValue(v, ",")
			}
		case contract.LocationQuery:
			if v, ok := params[spec.Name]; ok && v != nil {
				addQuery(query, spec, v)
			}
		case contract.LocationHeader:
			// sorted keys make the last write deterministic
			for _, key := range sortedKeys(params) {
				if strings.EqualFold(key, spec.Name) && params[key] != nil {
					header.Set(spec.Name, formatValue(params[key], ","))
				}
			}
		case contract.LocationBody:
			v, ok := params[spec.Name]
			if !ok {
				v, ok = params[BodyKey]
			}
			if !ok {
				continue
			}
			if body, err = json.Marshal(v); err != nil {
				return nil, fmt.Errorf("client: failed to encode body for %s: %w", operationID, err)
			}
			hasBody = true
		}
	}

	for _, name := range op.PathVariables() {
		if _, ok := pathParams[name]; !ok {
			return nil, fmt.Errorf("client: missing path parameter %q for operation %s", name, operationID)
		}
	}
	path, err := c.cfg.expander.Expand(op.PathTemplate, pathParams)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	contractPath := c.idx.BasePath() + path

	if hasBody || httputil.CarriesBody(op.Method) {
		header.Set(httputil.HeaderContentType, c.cfg.contentType.ContentType(op))
	}
	if c.cfg.userAgent != "" {
		header.Set("User-Agent", c.cfg.userAgent)
	}

	rawQuery := query.Encode()
	if err := c.validator.Validate(httpvalidator.Request{
		Method:   op.Method,
		Path:     contractPath,
		Header:   header,
		RawQuery: rawQuery,
		Body:     body,
	}); err != nil {
		return nil, err
	}

	u := c.resolve(contractPath, rawQuery)
	var reader io.Reader
	if hasBody {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, op.Method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("client: failed to create request: %w", err)
	}
	req.Header = header

	c.logger.Debug("built request",
		"operationId", operationID,
		"method", op.Method,
		"url", req.URL.String())
	return req, nil
}

// Call builds and sends the request for operationID and blocks until the
// response arrives. Dispatch failures are wrapped in *oaserrors.TransportError.
func (c *Client) Call(ctx context.Context, operationID string, params map[string]any) (*http.Response, error) {
	req, err := c.BuildRequest(ctx, operationID, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.cfg.transport.Send(req)
	if err != nil {
		return nil, c.transportError(req, err)
	}
	return resp, nil
}

// CallAsync builds the request for operationID and dispatches it without
// blocking. Build and validation failures are available from the handle
// immediately.
func (c *Client) CallAsync(ctx context.Context, operationID string, params map[string]any) *Pending {
	req, err := c.BuildRequest(ctx, operationID, params)
	if err != nil {
		return Failed(err)
	}

	out, resolve := NewPending()
	if at, ok := c.cfg.transport.(AsyncTransport); ok {
		inner := at.SendAsync(req)
		go func() {
			<-inner.Done()
			resolve(inner.resp, c.transportError(req, inner.err))
		}()
		return out
	}
	go func() {
		resp, err := c.cfg.transport.Send(req)
		resolve(resp, c.transportError(req, err))
	}()
	return out
}

// transportError wraps err unless it is nil or already a TransportError.
func (c *Client) transportError(req *http.Request, err error) error {
	if err == nil {
		return nil
	}
	var te *oaserrors.TransportError
	if errors.As(err, &te) {
		return err
	}
	c.logger.Warn("transport failure", "method", req.Method, "url", req.URL.String(), "error", err.Error())
	return &oaserrors.TransportError{Method: req.Method, URL: req.URL.String(), Cause: err}
}

// resolve joins the base URL with the contract path. The base URL's path is
// kept as a prefix unless it already ends with the contract's base path.
func (c *Client) resolve(contractPath, rawQuery string) *url.URL {
	u := *c.cfg.baseURL
	prefix := strings.TrimRight(u.Path, "/")
	if bp := c.idx.BasePath(); bp != "" && strings.HasSuffix(prefix, bp) {
		prefix = strings.TrimSuffix(prefix, bp)
	}
	u.RawPath = ""
	u.Path = ""
	joined := prefix + contractPath
	if unescaped, err := url.PathUnescape(joined); err == nil {
		u.Path = unescaped
		u.RawPath = joined
	} else {
		u.Path = joined
	}
	u.RawQuery = rawQuery
	u.Fragment = ""
	return &u
}

// addQuery encodes v for a query parameter. Slices use repeated keys for
// "multi" and are joined by the collectionFormat separator otherwise.
func addQuery(q url.Values, spec schemaindex.ParameterSpec, v any) {
	items, isList := listOf(v)
	if !isList {
		q.Add(spec.Name, formatValue(v, ","))
		return
	}
	sep := ","
	switch spec.CollectionFormat {
	case "multi", "":
		for _, item := range items {
			q.Add(spec.Name, formatValue(item, ","))
		}
		return
	case "ssv":
		sep = " "
	case "tsv":
		sep = "\t"
	case "pipes":
		sep = "|"
	}
	q.Add(spec.Name, formatValue(v, sep))
}

// formatValue renders a parameter value as text. Lists are joined by sep.
func formatValue(v any, sep string) string {
	if items, ok := listOf(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = formatValue(item, sep)
		}
		return strings.Join(parts, sep)
	}
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func listOf(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
