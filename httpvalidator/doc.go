// Package httpvalidator validates inbound HTTP requests against the
// operations of a schema index.
//
// A Validator resolves the operation for a request's method and path, then
// runs every check and reports all failures together:
//
//  1. Media type: POST, PUT and PATCH requests must send a Content-Type the
//     operation accepts ("type/*" and "*/*" entries are honored).
//  2. Headers: names are compared case-insensitively; declared header
//     parameters are type-coerced and checked against their schemas.
//  3. Query: the query string is decoded, repeated keys and "name[]" keys
//     become arrays, and values are coerced to their declared types
//     ("true"/"1" for booleans, numeric parsing for integers and numbers,
//     collectionFormat splitting for arrays).
//  4. Body: POST, PUT and PATCH bodies are parsed as JSON and checked
//     against the operation's body schema.
//
// A request that matches no operation fails with
// *oaserrors.RouteNotFoundError; everything else that fails is a single
// *ConstraintViolations value. Violations are sorted within each step, so
// validating the same request twice yields identical results.
//
// # HTTP Boundary
//
// Middleware wraps an http.Handler and answers rejected requests with
// WriteError:
//
//	v, _ := httpvalidator.New(idx)
//	mux.Handle("/", httpvalidator.Middleware(v)(app))
//
// A ConstraintViolations failure is rendered as
//
//	HTTP/1.1 400 Bad Request
//	{"errors":[{"property":"bar","message":"...","constraint":"format","location":"body"}]}
//
// Route misses become 404, or 405 with an Allow header when the path exists
// under other methods. Use WithFallback to render any other error.
package httpvalidator
