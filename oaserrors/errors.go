package oaserrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
// These allow quick checks without type assertions.
var (
	// ErrParse indicates a contract document could not be decoded.
	ErrParse = errors.New("parse error")

	// ErrReference indicates a reference resolution failure.
	ErrReference = errors.New("reference error")

	// ErrCircularReference indicates a circular $ref was detected.
	ErrCircularReference = errors.New("circular reference")

	// ErrSchemaLoad indicates the contract is malformed and no index can be built.
	ErrSchemaLoad = errors.New("schema load error")

	// ErrRouteNotFound indicates no path template matched the request.
	ErrRouteNotFound = errors.New("route not found")

	// ErrUnknownOperation indicates an operationId is not declared by the contract.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrConstraintViolations indicates a request broke one or more contract constraints.
	ErrConstraintViolations = errors.New("constraint violations")

	// ErrTransport indicates the underlying HTTP transport failed.
	ErrTransport = errors.New("transport error")

	// ErrResourceLimit indicates a resource limit was exceeded.
	ErrResourceLimit = errors.New("resource limit exceeded")

	// ErrConfig indicates an invalid configuration.
	ErrConfig = errors.New("configuration error")
)

// ParseError represents a failure to decode a contract document.
type ParseError struct {
	// Path is the file path or source identifier
	Path string
	// Line is the line number where the error occurred (0 if unknown)
	Line int
	// Column is the column number where the error occurred (0 if unknown)
	Column int
	// Message describes the parsing failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
		if e.Column > 0 {
			msg += fmt.Sprintf(", column %d", e.Column)
		}
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ReferenceError represents a local $ref that could not be inlined.
type ReferenceError struct {
	// Ref is the reference string that failed to resolve
	Ref string
	// IsCircular is true if this error is due to a circular reference
	IsCircular bool
	// Message provides additional context about the failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ReferenceError) Error() string {
	msg := "reference error"
	if e.IsCircular {
		msg = "circular reference"
	}
	if e.Ref != "" {
		msg += ": " + e.Ref
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ReferenceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
// Matches ErrReference, and also ErrCircularReference when IsCircular is set.
func (e *ReferenceError) Is(target error) bool {
	if target == ErrReference {
		return true
	}
	return target == ErrCircularReference && e.IsCircular
}

// SchemaLoadError represents a contract that is structurally unusable:
// an operation without a method, a duplicate operationId, or a duplicate
// path and method pair. It is raised once at index build time.
type SchemaLoadError struct {
	// Source is the contract file or source name
	Source string
	// Path is the location inside the contract (e.g., "paths./foos.get")
	Path string
	// Message describes the problem
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *SchemaLoadError) Error() string {
	msg := "schema load error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *SchemaLoadError) Is(target error) bool {
	return target == ErrSchemaLoad
}

// RouteNotFoundError is returned when no path template matches a request.
// AllowedMethods is non-empty when the path exists under other methods.
type RouteNotFoundError struct {
	Method string
	Path   string
	// AllowedMethods lists the methods declared for the matching path, sorted
	AllowedMethods []string
}

// Error returns a human-readable error message.
func (e *RouteNotFoundError) Error() string {
	msg := "route not found"
	if e.Method != "" || e.Path != "" {
		msg += ": " + strings.TrimSpace(e.Method+" "+e.Path)
	}
	if len(e.AllowedMethods) > 0 {
		msg += " (allowed: " + strings.Join(e.AllowedMethods, ", ") + ")"
	}
	return msg
}

// Unwrap returns nil as RouteNotFoundError has no underlying cause.
func (e *RouteNotFoundError) Unwrap() error {
	return nil
}

// Is reports whether target matches this error type.
func (e *RouteNotFoundError) Is(target error) bool {
	return target == ErrRouteNotFound
}

// MethodNotAllowed reports whether the path matched under a different method.
func (e *RouteNotFoundError) MethodNotAllowed() bool {
	return len(e.AllowedMethods) > 0
}

// UnknownOperationError is returned when an operationId has no declaration.
type UnknownOperationError struct {
	OperationID string
}

// Error returns a human-readable error message.
func (e *UnknownOperationError) Error() string {
	if e.OperationID == "" {
		return "unknown operation"
	}
	return fmt.Sprintf("unknown operation %q", e.OperationID)
}

// Unwrap returns nil as UnknownOperationError has no underlying cause.
func (e *UnknownOperationError) Unwrap() error {
	return nil
}

// Is reports whether target matches this error type.
func (e *UnknownOperationError) Is(target error) bool {
	return target == ErrUnknownOperation
}

// TransportError wraps a failure of the HTTP transport while dispatching a
// request that already passed validation.
type TransportError struct {
	Method string
	URL    string
	// Cause is the underlying transport error
	Cause error
}

// Error returns a human-readable error message.
func (e *TransportError) Error() string {
	msg := "transport error"
	if e.Method != "" || e.URL != "" {
		msg += " (" + strings.TrimSpace(e.Method+" "+e.URL) + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ResourceLimitError represents a resource exhaustion condition,
// such as a request body larger than the configured maximum.
type ResourceLimitError struct {
	// ResourceType identifies what limit was exceeded (e.g., "body_size")
	ResourceType string
	// Limit is the configured maximum value
	Limit int64
	// Actual is the value that exceeded the limit (may be 0 if unknown)
	Actual int64
	// Message provides additional context
	Message string
}

// Error returns a human-readable error message.
func (e *ResourceLimitError) Error() string {
	msg := "resource limit exceeded"
	if e.ResourceType != "" {
		msg += ": " + e.ResourceType
	}
	if e.Limit > 0 {
		msg += fmt.Sprintf(" (limit: %d", e.Limit)
		if e.Actual > 0 {
			msg += fmt.Sprintf(", actual: %d", e.Actual)
		}
		msg += ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns nil as ResourceLimitError has no underlying cause.
func (e *ResourceLimitError) Unwrap() error {
	return nil
}

// Is reports whether target matches this error type.
func (e *ResourceLimitError) Is(target error) bool {
	return target == ErrResourceLimit
}

// ConfigError represents an invalid configuration or input.
// This includes invalid options, missing required inputs, and conflicting settings.
type ConfigError struct {
	// Option is the name of the problematic configuration option
	Option string
	// Value is the invalid value that was provided (may be nil)
	Value any
	// Message describes the configuration error
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Option != "" {
		msg += " for " + e.Option
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
