package schemacheck

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasgate/contract"
)

func mustCompile(t *testing.T, schema contract.Schema, opts ...Option) Checker {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	c, err := e.Compile(schema)
	require.NoError(t, err)
	return c
}

var fooSchema = contract.Schema{
	"type":     "object",
	"required": []any{"bar"},
	"properties": map[string]any{
		"bar":  map[string]any{"type": "string", "format": "date-time"},
		"baz":  map[string]any{"type": "string", "format": "uri"},
		"name": map[string]any{"type": "string", "maxLength": 20},
		"tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

// =============================================================================
// Check Tests
// =============================================================================

func TestCheckValid(t *testing.T) {
	c := mustCompile(t, fooSchema)

	assert.Nil(t, c.Check(map[string]any{
		"bar": "2024-01-02T03:04:05Z",
		"baz": "https://example.com/foo",
	}))
}

func TestCheckFailures(t *testing.T) {
	c := mustCompile(t, fooSchema)

	tests := []struct {
		name  string
		value any
		want  []Failure
	}{
		{
			name:  "format",
			value: map[string]any{"bar": "not-a-date"},
			want:  []Failure{{Property: "bar", Constraint: "format"}},
		},
		{
			name:  "required",
			value: map[string]any{"baz": "https://example.com"},
			want:  []Failure{{Property: "bar", Constraint: "required"}},
		},
		{
			name:  "root type",
			value: []any{"x"},
			want:  []Failure{{Property: "", Constraint: "type"}},
		},
		{
			name:  "nested array item",
			value: map[string]any{"bar": "2024-01-02T03:04:05Z", "tags": []any{"ok", json.Number("1")}},
			want:  []Failure{{Property: "tags.1", Constraint: "type"}},
		},
		{
			name:  "several failures are sorted",
			value: map[string]any{"name": "this name is far too long for the schema", "baz": "::"},
			want: []Failure{
				{Property: "bar", Constraint: "required"},
				{Property: "baz", Constraint: "format"},
				{Property: "name", Constraint: "maxLength"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Check(tt.value)
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want.Property, got[i].Property)
				assert.Equal(t, want.Constraint, got[i].Constraint)
				assert.NotEmpty(t, got[i].Message)
			}
		})
	}
}

func TestCheckRequiredSplitsPerProperty(t *testing.T) {
	c := mustCompile(t, contract.Schema{
		"type":     "object",
		"required": []any{"a", "b"},
	})

	got := c.Check(map[string]any{})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Property)
	assert.Equal(t, `missing property "a"`, got[0].Message)
	assert.Equal(t, "b", got[1].Property)
}

func TestCheckAnyOfIsOneFailure(t *testing.T) {
	c := mustCompile(t, contract.Schema{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "integer"},
		},
	})

	got := c.Check(true)
	require.Len(t, got, 1)
	assert.Equal(t, "anyOf", got[0].Constraint)
}

func TestCheckNumbers(t *testing.T) {
	c := mustCompile(t, contract.Schema{"type": "integer", "minimum": 1, "maximum": 100})

	assert.Nil(t, c.Check(json.Number("42")))
	assert.Nil(t, c.Check(42))

	got := c.Check(json.Number("0"))
	require.Len(t, got, 1)
	assert.Equal(t, "minimum", got[0].Constraint)

	got = c.Check(json.Number("1.5"))
	require.Len(t, got, 1)
	assert.Equal(t, "type", got[0].Constraint)
}

func TestCheckOpenAPIFormats(t *testing.T) {
	c := mustCompile(t, contract.Schema{"type": "integer", "format": "int32"})

	assert.Nil(t, c.Check(json.Number("2147483647")))
	got := c.Check(json.Number("2147483648"))
	require.Len(t, got, 1)
	assert.Equal(t, "format", got[0].Constraint)
}

func TestCheckNullable(t *testing.T) {
	c := mustCompile(t, contract.Schema{"type": "string", "nullable": true})
	assert.Nil(t, c.Check(nil))
	assert.Nil(t, c.Check("x"))
	assert.Len(t, c.Check(json.Number("1")), 1)
}

func TestCheckPlainConversion(t *testing.T) {
	c := mustCompile(t, contract.Schema{
		"type":       "object",
		"properties": map[string]any{"nested": contract.Schema{"type": "string"}},
	})
	assert.Nil(t, c.Check(map[string]any{"nested": "ok"}))
	assert.Len(t, c.Check(map[string]any{"nested": true}), 1)
	assert.Nil(t, c.Check(map[string]string{"nested": "ok"}))
}

func TestCheckIsDeterministic(t *testing.T) {
	c := mustCompile(t, fooSchema)
	value := map[string]any{"bar": "x", "baz": "::", "name": "this name is far too long for the schema"}

	first := c.Check(value)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Check(value))
	}
}

func TestCheckConcurrent(t *testing.T) {
	c := mustCompile(t, fooSchema)
	want := c.Check(map[string]any{"bar": "not-a-date"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, c.Check(map[string]any{"bar": "not-a-date"}))
		}()
	}
	wg.Wait()
}

// =============================================================================
// Engine Tests
// =============================================================================

func TestCompileErrors(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	_, err = e.Compile(contract.Schema{"type": 12})
	assert.Error(t, err)

	_, err = e.Compile(contract.Schema{"pattern": "("})
	assert.Error(t, err)
}

func TestNewOptions(t *testing.T) {
	_, err := New(WithDraft(nil))
	assert.Error(t, err)

	c := mustCompile(t, contract.Schema{"type": "number", "exclusiveMinimum": 0}, WithDraft(jsonschema.Draft2020))
	assert.Nil(t, c.Check(json.Number("1")))
	assert.Len(t, c.Check(json.Number("0")), 1)
}

func TestWithDefinitions(t *testing.T) {
	node := contract.Schema{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name":     map[string]any{"type": "string"},
			"children": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/Node"}},
		},
	}
	defs := map[string]contract.Schema{"#/components/schemas/Node": node}

	t.Run("references resolve against the definitions", func(t *testing.T) {
		c := mustCompile(t, node, WithDefinitions(defs))
		assert.Nil(t, c.Check(map[string]any{"name": "a", "children": []any{map[string]any{"name": "b"}}}))

		failures := c.Check(map[string]any{"name": "a", "children": []any{
			map[string]any{"name": "b", "children": []any{map[string]any{}}},
		}})
		require.Len(t, failures, 1)
		assert.Equal(t, "children.0.children.0.name", failures[0].Property)
		assert.Equal(t, "required", failures[0].Constraint)
	})

	t.Run("unregistered reference fails to compile", func(t *testing.T) {
		e, err := New()
		require.NoError(t, err)
		_, err = e.Compile(node)
		assert.Error(t, err)
	})
}

func TestDefinitionTree(t *testing.T) {
	tree := definitionTree(map[string]contract.Schema{
		"#/definitions/A":           {"type": "string"},
		"#/components/schemas/B":    {"type": "integer"},
		"#/components/schemas/a~1b": {"type": "boolean"},
	})
	assert.Equal(t, map[string]any{
		"definitions": map[string]any{"A": map[string]any{"type": "string"}},
		"components": map[string]any{"schemas": map[string]any{
			"B":   map[string]any{"type": "integer"},
			"a/b": map[string]any{"type": "boolean"},
		}},
	}, tree)
}

func TestDraftFor(t *testing.T) {
	assert.Equal(t, jsonschema.Draft4, DraftFor("2.0"))
	assert.Equal(t, jsonschema.Draft4, DraftFor("3.0.3"))
	assert.Equal(t, jsonschema.Draft2020, DraftFor("3.1.0"))
}

func TestCheckConvenience(t *testing.T) {
	failures, err := Check(json.Number("5"), contract.Schema{"type": "integer", "maximum": 3})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "maximum", failures[0].Constraint)

	_, err = Check(1, contract.Schema{"type": 12})
	assert.Error(t, err)
}
