package contract_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/testutil"
	"github.com/erraggy/oasgate/oaserrors"
)

// =============================================================================
// Swagger 2.0
// =============================================================================

func TestParseOAS2(t *testing.T) {
	doc := testutil.FooAPI(t)

	assert.True(t, doc.IsOAS2())
	assert.False(t, doc.IsOAS3())
	assert.Equal(t, "Foo API", doc.Title)
	assert.Equal(t, "1.0.0", doc.APIVersion)
	assert.Equal(t, []string{"application/json"}, doc.Consumes)

	t.Run("paths and operations keep declaration order", func(t *testing.T) {
		require.Len(t, doc.Paths, 2)
		assert.Equal(t, "/foos", doc.Paths[0].Template)
		assert.Equal(t, "/foos/{id}", doc.Paths[1].Template)

		var got []string
		for _, item := range doc.Paths {
			for _, op := range item.Operations {
				got = append(got, op.Method+" "+op.OperationID)
			}
		}
		assert.Equal(t, []string{
			"GET GetFooList",
			"POST CreateFoo",
			"PUT ModifyFoo",
			"GET GetFooById",
			"DELETE DeleteFoo",
		}, got)
	})

	t.Run("query parameter schema is extracted", func(t *testing.T) {
		list := doc.Paths[0].Operations[0]
		require.Len(t, list.Parameters, 4)

		limit := list.Parameters[0]
		assert.Equal(t, "limit", limit.Name)
		assert.Equal(t, "query", limit.In)
		assert.Equal(t, "integer", limit.Type)
		assert.Equal(t, "integer", limit.Schema.Type())
		assert.EqualValues(t, 100, limit.Schema["maximum"])
		assert.NotContains(t, limit.Schema, "in")
		assert.NotContains(t, limit.Schema, "name")

		tags := list.Parameters[2]
		assert.Equal(t, "csv", tags.CollectionFormat)
		assert.Equal(t, "string", tags.Schema.Items().Type())
	})

	t.Run("body parameter becomes request body", func(t *testing.T) {
		create := doc.Paths[0].Operations[1]
		require.NotNil(t, create.RequestBody)
		assert.Equal(t, "body", create.RequestBody.Name)
		assert.True(t, create.RequestBody.Required)
		assert.Equal(t, []string{"application/json"}, create.RequestBody.MediaTypes, "inherits document consumes")
		assert.Equal(t, "object", create.RequestBody.Schema.Type())
		assert.Empty(t, create.Parameters)

		modify := doc.Paths[0].Operations[2]
		require.NotNil(t, modify.RequestBody)
		assert.Equal(t, "foo", modify.RequestBody.Name)
		assert.False(t, modify.RequestBody.Required)
		assert.Equal(t, []string{"application/json", "application/merge-patch+json"}, modify.RequestBody.MediaTypes)
	})

	t.Run("recursive reference is kept", func(t *testing.T) {
		schema := doc.Paths[0].Operations[1].RequestBody.Schema
		props, ok := schema["properties"].(map[string]any)
		require.True(t, ok)
		children, ok := props["children"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"$ref": "#/definitions/Foo"}, children["items"])

		require.Contains(t, doc.Definitions, "#/definitions/Foo")
		foo := doc.Definitions["#/definitions/Foo"]
		assert.Equal(t, "object", foo.Type())
		assert.Equal(t, []any{"bar"}, foo["required"])
	})

	t.Run("path level parameters are merged", func(t *testing.T) {
		del := doc.Paths[1].Operations[1]
		require.Len(t, del.Parameters, 2)
		assert.Equal(t, "id", del.Parameters[0].Name)
		assert.True(t, del.Parameters[0].Required)
		assert.Equal(t, "X-Api-Version", del.Parameters[1].Name)
		assert.Equal(t, []any{"1", "2"}, del.Parameters[1].Schema["enum"])
	})
}

func TestParseOAS2OverridesPathParameter(t *testing.T) {
	doc := testutil.MustParse(t, `swagger: "2.0"
info: {title: t, version: "1"}
paths:
  /items/{id}:
    parameters:
      - {name: id, in: path, required: true, type: string}
      - {name: verbose, in: query, type: boolean}
    get:
      operationId: GetItem
      parameters:
        - {name: id, in: path, required: true, type: integer}
`)
	op := doc.Paths[0].Operations[0]
	require.Len(t, op.Parameters, 2)
	assert.Equal(t, "verbose", op.Parameters[0].Name)
	assert.Equal(t, "id", op.Parameters[1].Name)
	assert.Equal(t, "integer", op.Parameters[1].Type)
	assert.Empty(t, doc.BasePath)
}

// =============================================================================
// OpenAPI 3.x
// =============================================================================

func TestParseOAS3(t *testing.T) {
	doc := testutil.MustParse(t, testutil.FooAPIOAS3)

	assert.True(t, doc.IsOAS3())
	assert.Equal(t, "/api", doc.BasePath, "base path comes from servers[0].url")

	t.Run("style and explode map to collection format", func(t *testing.T) {
		tags := doc.Paths[0].Operations[0].Parameters[2]
		assert.Equal(t, "array", tags.Type)
		assert.Equal(t, "csv", tags.CollectionFormat)
	})

	t.Run("referenced request body keeps content order", func(t *testing.T) {
		create := doc.Paths[0].Operations[1]
		require.NotNil(t, create.RequestBody)
		assert.True(t, create.RequestBody.Required)
		assert.Equal(t, []string{"application/json"}, create.RequestBody.MediaTypes)
		assert.Equal(t, create.RequestBody.MediaTypes, create.Consumes)
		assert.Equal(t, "object", create.RequestBody.Schema.Type())
	})

	t.Run("inline request body keeps content order", func(t *testing.T) {
		modify := doc.Paths[0].Operations[2]
		require.NotNil(t, modify.RequestBody)
		assert.Equal(t, []string{"application/merge-patch+json", "application/json"}, modify.RequestBody.MediaTypes)
		assert.False(t, modify.RequestBody.Required)
	})

	t.Run("operations without body have none", func(t *testing.T) {
		assert.Nil(t, doc.Paths[1].Operations[0].RequestBody)
	})

	t.Run("recursive component is a definition", func(t *testing.T) {
		require.Contains(t, doc.Definitions, "#/components/schemas/Foo")
		assert.Len(t, doc.Definitions, 1)
	})
}

func TestParseOAS3QueryArrayDefaultsToMulti(t *testing.T) {
	doc := testutil.MustParse(t, `openapi: 3.1.0
info: {title: t, version: "1"}
paths:
  /search:
    get:
      operationId: Search
      parameters:
        - name: tag
          in: query
          schema: {type: array, items: {type: string}}
        - name: ids
          in: query
          style: pipeDelimited
          schema: {type: array, items: {type: integer}}
`)
	params := doc.Paths[0].Operations[0].Parameters
	require.Len(t, params, 2)
	assert.Equal(t, "multi", params[0].CollectionFormat)
	assert.Equal(t, "pipes", params[1].CollectionFormat)
}

func TestParseOAS3ServerVariables(t *testing.T) {
	tests := []struct {
		name    string
		servers string
		want    string
	}{
		{
			name: "defaults substituted",
			servers: `servers:
  - url: https://{host}:{port}/{prefix}/v2/
    variables:
      host: {default: api.example.com}
      port: {default: 8443, enum: [443, 8443]}
      prefix: {default: api}
`,
			want: "/api/v2",
		},
		{
			name: "relative url",
			servers: `servers:
  - url: /v1
`,
			want: "/v1",
		},
		{
			name: "host variable without default is dropped",
			servers: `servers:
  - url: https://{host}/v1
`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testutil.MustParse(t, "openapi: 3.0.3\ninfo: {title: t, version: \"1\"}\n"+tt.servers+"paths: {}\n")
			assert.Equal(t, tt.want, doc.BasePath)
		})
	}
}

func TestParseJSON(t *testing.T) {
	doc, err := contract.ParseWithOptions(contract.WithReader(strings.NewReader(
		`{"swagger":"2.0","info":{"title":"j","version":"1"},"basePath":"/",` +
			`"paths":{"/b":{"get":{"operationId":"B"}},"/a":{"get":{"operationId":"A"}}}}`)))
	require.NoError(t, err)

	assert.Equal(t, "ParseReader", doc.Source)
	assert.Empty(t, doc.BasePath, "a bare slash base path is empty")
	require.Len(t, doc.Paths, 2)
	assert.Equal(t, "/b", doc.Paths[0].Template, "JSON object order is preserved")
}

func TestParseFromFile(t *testing.T) {
	path := testutil.WriteTempContract(t, "api.yaml", testutil.FooAPIOAS2)

	doc, err := contract.ParseWithOptions(contract.WithFilePath(path))
	require.NoError(t, err)
	assert.Equal(t, path, doc.Source)
	assert.Equal(t, 5, doc.OperationCount())
}

func TestParseNormalizesTimestamps(t *testing.T) {
	doc := testutil.MustParse(t, `swagger: "2.0"
info: {title: t, version: "1"}
paths:
  /events:
    get:
      operationId: ListEvents
      parameters:
        - name: since
          in: query
          type: string
          format: date
          default: 2024-01-02
`)
	since := doc.Paths[0].Operations[0].Parameters[0]
	assert.Equal(t, "2024-01-02", since.Schema["default"])
}

// =============================================================================
// Errors
// =============================================================================

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{
			name:    "invalid yaml",
			content: "swagger: [unclosed",
			target:  oaserrors.ErrParse,
		},
		{
			name:    "missing version",
			content: "info: {title: t}\npaths: {}\n",
			target:  oaserrors.ErrParse,
		},
		{
			name:    "unsupported swagger version",
			content: "swagger: \"1.2\"\npaths: {}\n",
			target:  oaserrors.ErrParse,
		},
		{
			name:    "root is not a mapping",
			content: "- a\n- b\n",
			target:  oaserrors.ErrParse,
		},
		{
			name: "remote reference",
			content: `swagger: "2.0"
paths:
  /a:
    get:
      parameters:
        - $ref: 'common.yaml#/parameters/limit'
`,
			target: oaserrors.ErrReference,
		},
		{
			name: "dangling reference",
			content: `swagger: "2.0"
paths:
  /a:
    post:
      parameters:
        - name: body
          in: body
          schema:
            $ref: '#/definitions/Missing'
`,
			target: oaserrors.ErrReference,
		},
		{
			name: "reference cycle without a schema",
			content: `swagger: "2.0"
paths:
  /a:
    post:
      parameters:
        - name: body
          in: body
          schema:
            $ref: '#/definitions/A'
definitions:
  A:
    $ref: '#/definitions/B'
  B:
    $ref: '#/definitions/A'
`,
			target: oaserrors.ErrCircularReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := contract.ParseWithOptions(contract.WithBytes([]byte(tt.content)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestParseWithOptionsInputValidation(t *testing.T) {
	t.Run("no input source", func(t *testing.T) {
		_, err := contract.ParseWithOptions()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must specify an input source")
	})

	t.Run("multiple input sources", func(t *testing.T) {
		_, err := contract.ParseWithOptions(
			contract.WithBytes([]byte("{}")),
			contract.WithFilePath("api.yaml"),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one input source")
	})

	t.Run("nil reader", func(t *testing.T) {
		_, err := contract.ParseWithOptions(contract.WithReader(nil))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := contract.ParseWithOptions(contract.WithFilePath("does-not-exist.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read file")
	})
}
