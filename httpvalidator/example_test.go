package httpvalidator_test

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/schemaindex"
)

const petsContract = `openapi: 3.0.3
info: {title: Pets, version: "1"}
paths:
  /pets:
    post:
      operationId: CreatePet
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
      responses:
        "201": {description: Created}
`

func Example() {
	doc, err := contract.ParseWithOptions(contract.WithBytes([]byte(petsContract)))
	if err != nil {
		fmt.Println(err)
		return
	}
	idx, err := schemaindex.Build(doc)
	if err != nil {
		fmt.Println(err)
		return
	}
	v, err := httpvalidator.New(idx)
	if err != nil {
		fmt.Println(err)
		return
	}

	err = v.Validate(httpvalidator.Request{
		Method: "POST",
		Path:   "/pets",
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{}`),
	})
	var cv *httpvalidator.ConstraintViolations
	if errors.As(err, &cv) {
		for _, violation := range cv.Violations {
			fmt.Println(violation.Location, violation.Field, violation.Constraint)
		}
	}
	// Output:
	// body name required
}

func ExampleMiddleware() {
	doc, _ := contract.ParseWithOptions(contract.WithBytes([]byte(petsContract)))
	idx, _ := schemaindex.Build(doc)
	v, _ := httpvalidator.New(idx)

	app := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux := http.NewServeMux()
	mux.Handle("/", httpvalidator.Middleware(v)(app))
	fmt.Println("validating", len(idx.Operations()), "operation")
	// Output: validating 1 operation
}
