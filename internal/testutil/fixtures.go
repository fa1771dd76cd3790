// Package testutil provides test utilities and fixtures for unit tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/erraggy/oasgate/contract"
)

// FooAPIOAS2 is a Swagger 2.0 contract for a small "foo" resource API mounted
// under /api. It is the shared fixture for index, validator and client tests.
//
//	GET    /foos       GetFooList  (query: limit, active, tags; header: X-Request-Id)
//	POST   /foos       CreateFoo   (body: Foo, required)
//	PUT    /foos       ModifyFoo   (body: Foo, optional)
//	GET    /foos/{id}  GetFooById
//	DELETE /foos/{id}  DeleteFoo   (header: X-Api-Version, required)
const FooAPIOAS2 = `swagger: "2.0"
info:
  title: Foo API
  version: "1.0.0"
basePath: /api
consumes:
  - application/json
produces:
  - application/json
paths:
  /foos:
    get:
      operationId: GetFooList
      parameters:
        - name: limit
          in: query
          type: integer
          minimum: 1
          maximum: 100
        - name: active
          in: query
          type: boolean
        - name: tags
          in: query
          type: array
          collectionFormat: csv
          items:
            type: string
        - name: X-Request-Id
          in: header
          type: string
      responses:
        "200":
          description: OK
    post:
      operationId: CreateFoo
      parameters:
        - name: body
          in: body
          required: true
          schema:
            $ref: '#/definitions/Foo'
      responses:
        "201":
          description: Created
    put:
      operationId: ModifyFoo
      consumes:
        - application/json
        - application/merge-patch+json
      parameters:
        - name: foo
          in: body
          schema:
            $ref: '#/definitions/Foo'
      responses:
        "200":
          description: OK
  /foos/{id}:
    parameters:
      - name: id
        in: path
        required: true
        type: integer
    get:
      operationId: GetFooById
      responses:
        "200":
          description: OK
    delete:
      operationId: DeleteFoo
      parameters:
        - name: X-Api-Version
          in: header
          required: true
          type: string
          enum: ["1", "2"]
      responses:
        "204":
          description: Deleted
definitions:
  Foo:
    type: object
    required:
      - bar
    properties:
      bar:
        type: string
        format: date-time
      baz:
        type: string
        format: uri
      name:
        type: string
        maxLength: 20
      children:
        type: array
        items:
          $ref: '#/definitions/Foo'
`

// FooAPIOAS3 is the OpenAPI 3.0 rendition of FooAPIOAS2.
const FooAPIOAS3 = `openapi: 3.0.3
info:
  title: Foo API
  version: "1.0.0"
servers:
  - url: http://localhost:8080/api
paths:
  /foos:
    get:
      operationId: GetFooList
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            minimum: 1
            maximum: 100
        - name: active
          in: query
          schema:
            type: boolean
        - name: tags
          in: query
          explode: false
          schema:
            type: array
            items:
              type: string
        - name: X-Request-Id
          in: header
          schema:
            type: string
      responses:
        "200":
          description: OK
    post:
      operationId: CreateFoo
      requestBody:
        $ref: '#/components/requestBodies/FooBody'
      responses:
        "201":
          description: Created
    put:
      operationId: ModifyFoo
      requestBody:
        content:
          application/merge-patch+json:
            schema:
              $ref: '#/components/schemas/Foo'
          application/json:
            schema:
              $ref: '#/components/schemas/Foo'
      responses:
        "200":
          description: OK
  /foos/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: integer
    get:
      operationId: GetFooById
      responses:
        "200":
          description: OK
    delete:
      operationId: DeleteFoo
      parameters:
        - name: X-Api-Version
          in: header
          required: true
          schema:
            type: string
            enum: ["1", "2"]
      responses:
        "204":
          description: Deleted
components:
  requestBodies:
    FooBody:
      required: true
      content:
        application/json:
          schema:
            $ref: '#/components/schemas/Foo'
  schemas:
    Foo:
      type: object
      required:
        - bar
      properties:
        bar:
          type: string
          format: date-time
        baz:
          type: string
          format: uri
        name:
          type: string
          maxLength: 20
        children:
          type: array
          items:
            $ref: '#/components/schemas/Foo'
`

// MustParse loads a contract from YAML or JSON text, failing the test on error.
func MustParse(t testing.TB, content string) *contract.Document {
	t.Helper()
	doc, err := contract.ParseWithOptions(
		contract.WithBytes([]byte(content)),
		contract.WithSourceName("fixture.yaml"),
	)
	if err != nil {
		t.Fatalf("Failed to parse fixture contract: %v", err)
	}
	return doc
}

// FooAPI returns the parsed Swagger 2.0 foo API fixture.
func FooAPI(t testing.TB) *contract.Document {
	t.Helper()
	return MustParse(t, FooAPIOAS2)
}

// WriteTempContract writes content to a temporary contract file and returns
// its path. The file is removed when the test finishes.
func WriteTempContract(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write temporary contract file: %v", err)
	}
	return path
}
