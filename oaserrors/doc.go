// Package oaserrors provides structured error types for the oasgate library.
//
// Import path: github.com/erraggy/oasgate/oaserrors
//
// This package enables programmatic error handling via [errors.Is] and [errors.As],
// allowing callers to distinguish a malformed contract from a bad request or a
// network failure.
//
// # Error Types
//
//   - [ParseError]: YAML/JSON decoding failures of the contract document
//   - [ReferenceError]: local $ref resolution failures, including reference cycles with no schema
//   - [SchemaLoadError]: structurally invalid contract, raised when the index is built
//   - [RouteNotFoundError]: no path template matched the request
//   - [UnknownOperationError]: operationId not declared by the contract
//   - [TransportError]: HTTP transport failure while dispatching a request
//   - [ResourceLimitError]: a configured limit such as the maximum body size was exceeded
//   - [ConfigError]: invalid configuration or input options
//
// The constraint violations aggregate lives in the httpvalidator package; it
// matches [ErrConstraintViolations].
//
// # Sentinel Errors
//
// Each error type has a corresponding sentinel error for use with errors.Is():
//
//   - [ErrParse]: Matches any [ParseError]
//   - [ErrReference]: Matches any [ReferenceError]
//   - [ErrCircularReference]: Matches [ReferenceError] with IsCircular=true (a $ref cycle with no schema)
//   - [ErrSchemaLoad]: Matches any [SchemaLoadError]
//   - [ErrRouteNotFound]: Matches any [RouteNotFoundError]
//   - [ErrUnknownOperation]: Matches any [UnknownOperationError]
//   - [ErrConstraintViolations]: Matches httpvalidator.ConstraintViolations
//   - [ErrTransport]: Matches any [TransportError]
//   - [ErrResourceLimit]: Matches any [ResourceLimitError]
//   - [ErrConfig]: Matches any [ConfigError]
//
// # Usage Examples
//
// Distinguish request problems from transport problems on the client side:
//
//	resp, err := c.Call(ctx, "GetFooById", params)
//	switch {
//	case errors.Is(err, oaserrors.ErrConstraintViolations):
//	    // the request was never sent
//	case errors.Is(err, oaserrors.ErrTransport):
//	    // the request was valid, the network was not
//	}
//
// Extract error details with errors.As():
//
//	var rnf *oaserrors.RouteNotFoundError
//	if errors.As(err, &rnf) && rnf.MethodNotAllowed() {
//	    w.Header().Set("Allow", strings.Join(rnf.AllowedMethods, ", "))
//	}
package oaserrors
