// Package client builds and sends requests described by a contract.
//
// Callers name an operation by its operationId and pass a flat parameter
// bag; the client sorts each value into the path, query, header or body
// according to the operation's declared parameters, expands the path
// template, and runs the result through the same httpvalidator.Validator a
// server would use. A request that would be rejected is never sent.
//
//	c, err := client.New(idx, validator, client.WithBaseURL("http://localhost:8080"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := c.Call(ctx, "GetFooById", map[string]any{"id": 1})
//
// CallAsync dispatches without blocking and returns a *Pending handle:
//
//	a := c.CallAsync(ctx, "GetFooById", map[string]any{"id": 1})
//	b := c.CallAsync(ctx, "GetFooById", map[string]any{"id": 2})
//	responses, err := client.WaitAll(ctx, a, b)
//
// Content-Type defaults to application/json for every request that carries
// a body; WithContentTypePolicy(client.FirstAllowedContentType{}) uses the
// operation's first declared media type instead. Retries and timeouts belong
// to the Transport (or the *http.Client it wraps).
package client
