package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFooAPI verifies the Swagger 2.0 fixture loads with every operation.
func TestFooAPI(t *testing.T) {
	doc := FooAPI(t)

	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, "/api", doc.BasePath)
	assert.Equal(t, "fixture.yaml", doc.Source)
	require.Len(t, doc.Paths, 2)
	assert.Equal(t, 5, doc.OperationCount())
}

// TestFooAPIOAS3 verifies the OpenAPI 3.0 fixture mirrors the Swagger 2.0 one.
func TestFooAPIOAS3(t *testing.T) {
	doc := MustParse(t, FooAPIOAS3)

	assert.Equal(t, "3.0.3", doc.Version)
	assert.Equal(t, "/api", doc.BasePath)
	assert.Equal(t, FooAPI(t).OperationCount(), doc.OperationCount())
}

func TestWriteTempContract(t *testing.T) {
	path := WriteTempContract(t, "api.yaml", FooAPIOAS2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, FooAPIOAS2, string(data))
}
