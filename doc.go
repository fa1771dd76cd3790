// Package oasgate validates HTTP requests against an OpenAPI (Swagger) contract
// and builds well-formed outbound requests from the same contract.
//
// The library is split into small packages that are composed by callers:
//
//   - contract: load a Swagger 2.0 or OpenAPI 3.x document into an in-memory model
//   - schemaindex: build the immutable operation index (operationId and path template lookup)
//   - httpvalidator: validate inbound requests and render constraint violations
//   - client: build, self-validate and dispatch requests by operationId
//   - uritemplate: expand (and optionally extract) path templates
//   - schemacheck: JSON Schema checking engine used by the validator
//   - oaserrors: the error taxonomy shared by all packages
//
// # Quick Start
//
// Server side:
//
//	doc, err := contract.ParseWithOptions(contract.WithFilePath("openapi.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	idx, err := schemaindex.Build(doc)
//	if err != nil {
//	    log.Fatal(err) // malformed contract, never recoverable
//	}
//	v, err := httpvalidator.New(idx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.Handle("/", httpvalidator.Middleware(v)(handler))
//
// Client side:
//
//	c, _ := client.New(idx, v, client.WithBaseURL("http://localhost:8080"))
//	resp, err := c.Call(ctx, "GetFooById", map[string]any{"id": 1})
//
// Both sides share the same index and validator: a request built by the client
// is validated exactly as the server would validate it before it is sent.
package oasgate
