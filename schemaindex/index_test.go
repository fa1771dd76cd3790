package schemaindex

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/testutil"
	"github.com/erraggy/oasgate/oaserrors"
)

// recordingLogger keeps warn messages for assertions.
type recordingLogger struct {
	contract.NopLogger
	mu    sync.Mutex
	warns []string
}

func (r *recordingLogger) Warn(msg string, attrs ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, fmt.Sprint(append([]any{msg}, attrs...)...))
}

func (r *recordingLogger) With(_ ...any) contract.Logger { return r }

func mustBuild(t *testing.T, doc *contract.Document, opts ...Option) *Index {
	t.Helper()
	idx, err := Build(doc, opts...)
	require.NoError(t, err)
	return idx
}

// =============================================================================
// Build Tests
// =============================================================================

func TestBuild(t *testing.T) {
	idx := mustBuild(t, testutil.FooAPI(t))

	assert.Equal(t, "/api", idx.BasePath())
	assert.Equal(t, "fixture.yaml", idx.Source())
	assert.Equal(t, "2.0", idx.Version())
	assert.Equal(t, MatchDeclarationOrder, idx.Policy())

	var ids []string
	for _, op := range idx.Operations() {
		ids = append(ids, op.ID)
	}
	assert.Equal(t, []string{"GetFooList", "CreateFoo", "ModifyFoo", "GetFooById", "DeleteFoo"}, ids)
}

func TestBuildErrors(t *testing.T) {
	doc := func(paths ...contract.PathItem) *contract.Document {
		return &contract.Document{Source: "inline", Paths: paths}
	}

	tests := []struct {
		name     string
		doc      *contract.Document
		contains string
	}{
		{
			name:     "nil document",
			doc:      nil,
			contains: "document is nil",
		},
		{
			name: "missing method",
			doc: doc(contract.PathItem{Template: "/foos", Operations: []contract.Operation{
				{OperationID: "GetFooList"},
			}}),
			contains: "has no method",
		},
		{
			name: "unsupported method",
			doc: doc(contract.PathItem{Template: "/foos", Operations: []contract.Operation{
				{Method: "FETCH", OperationID: "GetFooList"},
			}}),
			contains: "unsupported method",
		},
		{
			name: "duplicate operationId",
			doc: doc(
				contract.PathItem{Template: "/foos", Operations: []contract.Operation{{Method: "GET", OperationID: "Same"}}},
				contract.PathItem{Template: "/bars", Operations: []contract.Operation{{Method: "GET", OperationID: "Same"}}},
			),
			contains: `duplicate operationId "Same"`,
		},
		{
			name: "duplicate template and method with renamed variable",
			doc: doc(
				contract.PathItem{Template: "/foos/{id}", Operations: []contract.Operation{{Method: "GET", OperationID: "A"}}},
				contract.PathItem{Template: "/foos/{fooId}", Operations: []contract.Operation{{Method: "get", OperationID: "B"}}},
			),
			contains: "duplicate operation GET /foos/{fooId}",
		},
		{
			name: "malformed template",
			doc: doc(contract.PathItem{Template: "/foos/{id", Operations: []contract.Operation{
				{Method: "GET", OperationID: "A"},
			}}),
			contains: "unclosed",
		},
		{
			name: "duplicate parameter name",
			doc: doc(contract.PathItem{Template: "/foos", Operations: []contract.Operation{{
				Method:      "GET",
				OperationID: "A",
				Parameters: []contract.Parameter{
					{Name: "X-Trace", In: "header"},
					{Name: "x-trace", In: "header"},
				},
			}}}),
			contains: `duplicate header parameter "x-trace"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Build(tt.doc)
			require.Error(t, err)
			assert.Nil(t, idx, "no partial index")
			assert.True(t, errors.Is(err, oaserrors.ErrSchemaLoad), "got %T", err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestBuildSkipsUnsupportedLocations(t *testing.T) {
	logger := &recordingLogger{}
	idx := mustBuild(t, &contract.Document{Paths: []contract.PathItem{{
		Template: "/upload",
		Operations: []contract.Operation{{
			Method:      "POST",
			OperationID: "Upload",
			Parameters: []contract.Parameter{
				{Name: "file", In: "formData", Type: "file"},
				{Name: "session", In: "cookie"},
				{Name: "dryRun", In: "query", Type: "boolean"},
			},
		}},
	}}}, WithLogger(logger))

	op, err := idx.FindOperation("Upload")
	require.NoError(t, err)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, "dryRun", op.Parameters[0].Name)
	assert.Len(t, logger.warns, 2)
}

func TestBuildUndeclaredPathVariable(t *testing.T) {
	idx := mustBuild(t, &contract.Document{Paths: []contract.PathItem{{
		Template:   "/foos/{id}",
		Operations: []contract.Operation{{Method: "GET", OperationID: "GetFoo"}},
	}}})

	op, _ := idx.FindOperation("GetFoo")
	params := idx.Parameters(op, contract.LocationPath)
	require.Len(t, params, 1)
	assert.Equal(t, "id", params[0].Name)
	assert.True(t, params[0].Required)
	assert.Equal(t, []string{"id"}, op.PathVariables())
}

func TestBuildWithoutOperationID(t *testing.T) {
	logger := &recordingLogger{}
	idx := mustBuild(t, &contract.Document{Paths: []contract.PathItem{{
		Template:   "/ping",
		Operations: []contract.Operation{{Method: "GET"}},
	}}}, WithLogger(logger))

	op, _, err := idx.MatchPath("GET", "/ping")
	require.NoError(t, err)
	assert.Empty(t, op.ID)
	assert.Len(t, idx.Operations(), 1)
	assert.NotEmpty(t, logger.warns)
}

func TestBuildOptionErrors(t *testing.T) {
	doc := testutil.FooAPI(t)

	_, err := Build(doc, WithMatchPolicy(MatchPolicy(7)))
	assert.Error(t, err)
	_, err = Build(doc, WithDefaultMediaTypes())
	assert.Error(t, err)
	_, err = Build(doc, WithDefaultMediaTypes("not a media type"))
	assert.Error(t, err)
	_, err = Build(doc, WithBasePath("api"))
	assert.Error(t, err)
}

// =============================================================================
// Lookup Tests
// =============================================================================

func TestFindOperation(t *testing.T) {
	idx := mustBuild(t, testutil.FooAPI(t))

	op, err := idx.FindOperation("GetFooById")
	require.NoError(t, err)
	assert.Equal(t, "GET", op.Method)
	assert.Equal(t, "/foos/{id}", op.PathTemplate)

	_, err = idx.FindOperation("GetBar")
	var unknown *oaserrors.UnknownOperationError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "GetBar", unknown.OperationID)
}

func TestMatchPath(t *testing.T) {
	idx := mustBuild(t, testutil.FooAPI(t))

	t.Run("captures variables", func(t *testing.T) {
		op, params, err := idx.MatchPath("get", "/api/foos/42")
		require.NoError(t, err)
		assert.Equal(t, "GetFooById", op.ID)
		assert.Equal(t, map[string]string{"id": "42"}, params)
	})

	t.Run("literal template", func(t *testing.T) {
		op, params, err := idx.MatchPath("POST", "/api/foos")
		require.NoError(t, err)
		assert.Equal(t, "CreateFoo", op.ID)
		assert.Empty(t, params)
	})

	t.Run("unknown path", func(t *testing.T) {
		_, _, err := idx.MatchPath("GET", "/api/bars")
		var rnf *oaserrors.RouteNotFoundError
		require.True(t, errors.As(err, &rnf))
		assert.False(t, rnf.MethodNotAllowed())
		assert.Equal(t, "GET", rnf.Method)
	})

	t.Run("missing base path", func(t *testing.T) {
		_, _, err := idx.MatchPath("GET", "/foos")
		assert.True(t, errors.Is(err, oaserrors.ErrRouteNotFound))
	})

	t.Run("method not allowed lists allowed methods", func(t *testing.T) {
		_, _, err := idx.MatchPath("PATCH", "/api/foos/1")
		var rnf *oaserrors.RouteNotFoundError
		require.True(t, errors.As(err, &rnf))
		assert.Equal(t, []string{"DELETE", "GET"}, rnf.AllowedMethods)
	})

	t.Run("base path override", func(t *testing.T) {
		bare := mustBuild(t, testutil.FooAPI(t), WithBasePath(""))
		op, _, err := bare.MatchPath("GET", "/foos")
		require.NoError(t, err)
		assert.Equal(t, "GetFooList", op.ID)
	})
}

func TestMatchPathPolicies(t *testing.T) {
	doc := &contract.Document{Paths: []contract.PathItem{
		{Template: "/foos/{id}", Operations: []contract.Operation{{Method: "GET", OperationID: "GetFooById"}}},
		{Template: "/foos/mine", Operations: []contract.Operation{{Method: "GET", OperationID: "GetMyFoos"}}},
	}}

	t.Run("declaration order picks the first template", func(t *testing.T) {
		logger := &recordingLogger{}
		idx := mustBuild(t, doc, WithLogger(logger))
		op, params, err := idx.MatchPath("GET", "/foos/mine")
		require.NoError(t, err)
		assert.Equal(t, "GetFooById", op.ID)
		assert.Equal(t, "mine", params["id"])
		require.Len(t, logger.warns, 1)
		assert.Contains(t, logger.warns[0], "overlapping path templates")
	})

	t.Run("specificity prefers literal segments", func(t *testing.T) {
		idx := mustBuild(t, doc, WithMatchPolicy(MatchSpecificity))
		op, _, err := idx.MatchPath("GET", "/foos/mine")
		require.NoError(t, err)
		assert.Equal(t, "GetMyFoos", op.ID)

		op, _, err = idx.MatchPath("GET", "/foos/7")
		require.NoError(t, err)
		assert.Equal(t, "GetFooById", op.ID)
	})

	t.Run("method decides between templates", func(t *testing.T) {
		idx := mustBuild(t, &contract.Document{Paths: []contract.PathItem{
			{Template: "/foos/{id}", Operations: []contract.Operation{{Method: "GET", OperationID: "A"}}},
			{Template: "/foos/mine", Operations: []contract.Operation{{Method: "DELETE", OperationID: "B"}}},
		}})
		op, _, err := idx.MatchPath("DELETE", "/foos/mine")
		require.NoError(t, err)
		assert.Equal(t, "B", op.ID)
	})
}

func TestParameters(t *testing.T) {
	idx := mustBuild(t, testutil.FooAPI(t))

	list, _ := idx.FindOperation("GetFooList")
	query := idx.Parameters(list, contract.LocationQuery)
	require.Len(t, query, 3)
	assert.Equal(t, "limit", query[0].Name)
	assert.Equal(t, "string", query[2].ItemsType())
	assert.Len(t, idx.Parameters(list, contract.LocationHeader), 1)
	assert.Nil(t, idx.BodySchema(list))

	create, _ := idx.FindOperation("CreateFoo")
	body := idx.Parameters(create, contract.LocationBody)
	require.Len(t, body, 1)
	assert.Equal(t, "body", body[0].Name)
	assert.True(t, create.HasBody())
	assert.True(t, create.BodyRequired)
	assert.Equal(t, "object", idx.BodySchema(create).Type())

	modify, _ := idx.FindOperation("ModifyFoo")
	assert.Equal(t, "foo", modify.BodyName)
	p, ok := modify.Parameter(contract.LocationBody, "foo")
	assert.True(t, ok)
	assert.False(t, p.Required)
}

func TestAllowedMediaTypes(t *testing.T) {
	idx := mustBuild(t, testutil.FooAPI(t))

	create, _ := idx.FindOperation("CreateFoo")
	assert.Equal(t, []string{"application/json"}, idx.AllowedMediaTypes(create))

	modify, _ := idx.FindOperation("ModifyFoo")
	assert.Equal(t, []string{"application/json", "application/merge-patch+json"}, idx.AllowedMediaTypes(modify))

	t.Run("defaults when nothing is declared", func(t *testing.T) {
		doc := &contract.Document{Paths: []contract.PathItem{{
			Template:   "/foos",
			Operations: []contract.Operation{{Method: "POST", OperationID: "CreateFoo"}},
		}}}
		op, _ := mustBuild(t, doc).FindOperation("CreateFoo")
		assert.Equal(t, []string{"application/json"}, op.MediaTypes)

		op, _ = mustBuild(t, doc, WithDefaultMediaTypes("application/x-www-form-urlencoded")).FindOperation("CreateFoo")
		assert.Equal(t, []string{"application/x-www-form-urlencoded"}, op.MediaTypes)
	})
}

func TestParameterSchema(t *testing.T) {
	idx := mustBuild(t, testutil.FooAPI(t))

	del, _ := idx.FindOperation("DeleteFoo")
	headers := del.ParameterSchema(contract.LocationHeader)
	assert.Equal(t, "object", headers["type"])
	props := headers["properties"].(map[string]any)
	assert.Contains(t, props, "x-api-version", "header names are lower-cased")
	assert.Equal(t, []any{"x-api-version"}, headers["required"])

	list, _ := idx.FindOperation("GetFooList")
	query := list.ParameterSchema(contract.LocationQuery)
	assert.NotContains(t, query, "required", "empty required list is omitted")
	assert.Len(t, query["properties"], 3)
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("Specificity")
	require.NoError(t, err)
	assert.Equal(t, MatchSpecificity, p)

	p, err = ParseMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MatchDeclarationOrder, p)

	_, err = ParseMatchPolicy("random")
	assert.Error(t, err)

	assert.Equal(t, "declaration", MatchDeclarationOrder.String())
	assert.Equal(t, "specificity", MatchSpecificity.String())
}

func TestIndexConcurrentReads(t *testing.T) {
	idx := mustBuild(t, testutil.FooAPI(t))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op, params, err := idx.MatchPath("GET", fmt.Sprintf("/api/foos/%d", i))
			assert.NoError(t, err)
			assert.Equal(t, "GetFooById", op.ID)
			assert.Equal(t, fmt.Sprint(i), params["id"])
		}(i)
	}
	wg.Wait()
}
