package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasgate"
	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/internal/testutil"
	"github.com/erraggy/oasgate/oaserrors"
	"github.com/erraggy/oasgate/schemaindex"
	"github.com/erraggy/oasgate/uritemplate"
)

type fixture struct {
	idx       *schemaindex.Index
	validator *httpvalidator.Validator
}

func newFixture(t *testing.T, content string) fixture {
	t.Helper()
	idx, err := schemaindex.Build(testutil.MustParse(t, content))
	require.NoError(t, err)
	v, err := httpvalidator.New(idx)
	require.NoError(t, err)
	return fixture{idx: idx, validator: v}
}

func (f fixture) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL("http://localhost:8080")}, opts...)
	c, err := New(f.idx, f.validator, opts...)
	require.NoError(t, err)
	return c
}

// countingTransport records how many requests reached it.
type countingTransport struct {
	calls atomic.Int32
	resp  *http.Response
	err   error
}

func (c *countingTransport) Send(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	if c.resp != nil {
		return c.resp, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

// =============================================================================
// BuildRequest Tests
// =============================================================================

func TestBuildRequestRoundTrip(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	c := f.client(t)

	req, err := c.BuildRequest(context.Background(), "GetFooById", map[string]any{"id": 1})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "http://localhost:8080/api/foos/1", req.URL.String())
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Equal(t, oasgate.UserAgent(), req.Header.Get("User-Agent"))
	assert.NoError(t, f.validator.ValidateHTTP(req))
}

func TestBuildRequestPartitionsParameters(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	c := f.client(t)

	req, err := c.BuildRequest(context.Background(), "GetFooList", map[string]any{
		"limit":        10,
		"active":       true,
		"tags":         []string{"a", "b"},
		"x-request-id": "r1",
		"undeclared":   "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/foos", req.URL.Path)
	assert.Equal(t, "10", req.URL.Query().Get("limit"))
	assert.Equal(t, "true", req.URL.Query().Get("active"))
	assert.Equal(t, "a,b", req.URL.Query().Get("tags"))
	assert.Empty(t, req.URL.Query().Get("undeclared"))
	assert.Equal(t, "r1", req.Header.Get("X-Request-Id"))
	assert.Nil(t, req.Body)
}

func TestBuildRequestMultiQuery(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS3)
	c := f.client(t)

	// OAS 3 tags is explode: false, so it stays comma separated
	req, err := c.BuildRequest(context.Background(), "GetFooList", map[string]any{"tags": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a,b"}, req.URL.Query()["tags"])
}

func TestBuildRequestBody(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	c := f.client(t)
	foo := map[string]any{"bar": "2024-01-02T03:04:05Z", "name": "first"}

	for _, key := range []string{"body", "foo"} {
		t.Run(key, func(t *testing.T) {
			req, err := c.BuildRequest(context.Background(), "ModifyFoo", map[string]any{key: foo})
			require.NoError(t, err)

			assert.Equal(t, http.MethodPut, req.Method)
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.JSONEq(t, `{"bar":"2024-01-02T03:04:05Z","name":"first"}`, string(raw))
		})
	}
}

func TestBuildRequestContentTypePolicy(t *testing.T) {
	t.Run("first allowed", func(t *testing.T) {
		f := newFixture(t, testutil.FooAPIOAS3)
		c := f.client(t, WithContentTypePolicy(FirstAllowedContentType{}))

		req, err := c.BuildRequest(context.Background(), "ModifyFoo", map[string]any{"body": map[string]any{"bar": "2024-01-02T03:04:05Z"}})
		require.NoError(t, err)
		assert.Equal(t, "application/merge-patch+json", req.Header.Get("Content-Type"))
	})

	t.Run("fixed type the operation rejects", func(t *testing.T) {
		f := newFixture(t, testutil.FooAPIOAS2)
		c := f.client(t, WithContentTypePolicy(FixedContentType("text/plain")))

		_, err := c.BuildRequest(context.Background(), "CreateFoo", map[string]any{"body": map[string]any{"bar": "2024-01-02T03:04:05Z"}})
		var cv *httpvalidator.ConstraintViolations
		require.True(t, errors.As(err, &cv))
		assert.Equal(t, "content-type", cv.Violations[0].Field)
	})
}

func TestBuildRequestErrors(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	c := f.client(t)
	ctx := context.Background()

	_, err := c.BuildRequest(ctx, "NoSuchOp", nil)
	var unknown *oaserrors.UnknownOperationError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "NoSuchOp", unknown.OperationID)

	_, err = c.BuildRequest(ctx, "GetFooById", map[string]any{})
	assert.ErrorContains(t, err, `missing path parameter "id"`)

	_, err = c.BuildRequest(ctx, "CreateFoo", map[string]any{"body": map[string]any{"bar": "not-a-date"}})
	assert.True(t, errors.Is(err, oaserrors.ErrConstraintViolations))

	_, err = c.BuildRequest(ctx, "DeleteFoo", map[string]any{"id": 1})
	assert.True(t, errors.Is(err, oaserrors.ErrConstraintViolations), "required header is checked before sending")

	_, err = c.BuildRequest(ctx, "CreateFoo", map[string]any{"body": func() {}})
	assert.ErrorContains(t, err, "failed to encode body")
}

func TestBuildRequestBaseURLPrefix(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)

	tests := []struct {
		base string
		want string
	}{
		{"http://example.com", "http://example.com/api/foos/7"},
		{"http://example.com/", "http://example.com/api/foos/7"},
		{"http://example.com/api", "http://example.com/api/foos/7"},
		{"http://example.com/gateway", "http://example.com/gateway/api/foos/7"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			c := f.client(t, WithBaseURL(tt.base))
			req, err := c.BuildRequest(context.Background(), "GetFooById", map[string]any{"id": 7})
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.URL.String())
		})
	}
}

func TestBuildRequestSimpleExpander(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	c := f.client(t, WithExpander(uritemplate.NewSimple()), WithUserAgent(""))

	req, err := c.BuildRequest(context.Background(), "DeleteFoo", map[string]any{"id": 3, "X-Api-Version": "2"})
	require.NoError(t, err)
	assert.Equal(t, "/api/foos/3", req.URL.Path)
	assert.Equal(t, "2", req.Header.Get("X-Api-Version"))
	assert.Empty(t, req.Header.Get("User-Agent"))
}

func TestBuildRequestHyphenatedPathVariable(t *testing.T) {
	f := newFixture(t, `swagger: "2.0"
info: {title: t, version: "1"}
paths:
  /foos/{foo-id}/bars/{bar_id}:
    get:
      operationId: GetBar
      parameters:
        - {name: foo-id, in: path, required: true, type: string}
        - {name: bar_id, in: path, required: true, type: integer}
      responses:
        "200": {description: OK}
`)
	c := f.client(t)

	req, err := c.BuildRequest(context.Background(), "GetBar", map[string]any{"foo-id": "7", "bar_id": 2})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/foos/7/bars/2", req.URL.String())
	assert.NoError(t, f.validator.ValidateHTTP(req))
}

// =============================================================================
// Call Tests
// =============================================================================

func TestCallAgainstServer(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)

	var received atomic.Value
	srv := httptest.NewServer(httpvalidator.Middleware(f.validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received.Store(string(body))
		w.WriteHeader(http.StatusCreated)
	})))
	defer srv.Close()

	c := f.client(t, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := c.Call(context.Background(), "CreateFoo", map[string]any{
		"body": map[string]any{"bar": "2024-01-02T03:04:05Z"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(received.Load().(string)), &got))
	assert.Equal(t, "2024-01-02T03:04:05Z", got["bar"])
}

func TestCallUnknownOperationPerformsNoIO(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	transport := &countingTransport{}
	c := f.client(t, WithTransport(transport))

	_, err := c.Call(context.Background(), "NoSuchOp", map[string]any{})
	assert.True(t, errors.Is(err, oaserrors.ErrUnknownOperation))
	assert.Zero(t, transport.calls.Load())
}

func TestCallTransportError(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	cause := errors.New("connection refused")
	c := f.client(t, WithTransport(&countingTransport{err: cause}))

	_, err := c.Call(context.Background(), "GetFooById", map[string]any{"id": 1})
	var te *oaserrors.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.MethodGet, te.Method)
	assert.Equal(t, "http://localhost:8080/api/foos/1", te.URL)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, oaserrors.ErrTransport)
}

// =============================================================================
// CallAsync Tests
// =============================================================================

func TestCallAsync(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := f.client(t, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	a := c.CallAsync(ctx, "GetFooById", map[string]any{"id": 1})
	b := c.CallAsync(ctx, "GetFooById", map[string]any{"id": 2})

	select {
	case <-a.Done():
		t.Fatal("CallAsync blocked until the response arrived")
	default:
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := a.Wait(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	responses, err := WaitAll(ctx, a, b)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	for _, resp := range responses {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestCallAsyncBuildFailureIsImmediate(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	transport := &countingTransport{}
	c := f.client(t, WithTransport(transport))

	p := c.CallAsync(context.Background(), "NoSuchOp", nil)
	select {
	case <-p.Done():
	default:
		t.Fatal("build failure should resolve the handle immediately")
	}
	_, err := p.Wait(context.Background())
	assert.True(t, errors.Is(err, oaserrors.ErrUnknownOperation))
	assert.Zero(t, transport.calls.Load())
}

func TestCallAsyncSyncTransport(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)
	c := f.client(t, WithTransport(&countingTransport{err: errors.New("down")}))

	ok := c.CallAsync(context.Background(), "GetFooById", map[string]any{"id": 1})
	_, err := ok.Wait(context.Background())
	assert.ErrorIs(t, err, oaserrors.ErrTransport)

	responses, err := WaitAll(context.Background(), ok, Failed(errors.New("other")))
	assert.Error(t, err)
	assert.Equal(t, []*http.Response{nil, nil}, responses)
}

func TestPendingResolvesOnce(t *testing.T) {
	p, resolve := NewPending()
	first := &http.Response{StatusCode: http.StatusAccepted}
	resolve(first, nil)
	resolve(nil, errors.New("late"))

	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, resp)
}

// =============================================================================
// New Tests
// =============================================================================

func TestNew(t *testing.T) {
	f := newFixture(t, testutil.FooAPIOAS2)

	tests := []struct {
		name string
		idx  *schemaindex.Index
		v    *httpvalidator.Validator
		opts []Option
	}{
		{"nil index", nil, f.validator, []Option{WithBaseURL("http://x")}},
		{"nil validator", f.idx, nil, []Option{WithBaseURL("http://x")}},
		{"missing base URL", f.idx, f.validator, nil},
		{"relative base URL", f.idx, f.validator, []Option{WithBaseURL("/api")}},
		{"unparsable base URL", f.idx, f.validator, []Option{WithBaseURL("http://[::1")}},
		{"nil transport", f.idx, f.validator, []Option{WithBaseURL("http://x"), WithTransport(nil)}},
		{"nil expander", f.idx, f.validator, []Option{WithBaseURL("http://x"), WithExpander(nil)}},
		{"nil policy", f.idx, f.validator, []Option{WithBaseURL("http://x"), WithContentTypePolicy(nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.idx, tt.v, tt.opts...)
			assert.Error(t, err)
		})
	}

	c, err := New(f.idx, f.validator, WithBaseURL("https://api.example.com"), WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, c)
}
