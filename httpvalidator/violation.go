package httpvalidator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/oaserrors"
)

// ConstraintViolation is one failed check of a request against the contract.
type ConstraintViolation struct {
	// Field is the offending property, e.g. "bar", "content-type" or
	// "tags.1". Failures against a whole location use the location name.
	Field string `json:"property" yaml:"property"`

	// Message is a human-readable description of the failure.
	Message string `json:"message" yaml:"message"`

	// Constraint is the failed keyword, e.g. "required", "format", "type".
	Constraint string `json:"constraint" yaml:"constraint"`

	// Location is where the value travels on the wire.
	Location contract.Location `json:"location" yaml:"location"`
}

// String returns a compact "location.field: message" rendering.
func (v ConstraintViolation) String() string {
	return fmt.Sprintf("%s.%s: %s", v.Location, v.Field, v.Message)
}

// ConstraintViolations is the aggregate failure of one validation pass. It
// always holds at least one violation.
type ConstraintViolations struct {
	Violations []ConstraintViolation
}

// Error returns a human-readable error message.
func (e *ConstraintViolations) Error() string {
	n := len(e.Violations)
	var b strings.Builder
	if n == 1 {
		b.WriteString("1 constraint violation: ")
	} else {
		fmt.Fprintf(&b, "%d constraint violations: ", n)
	}
	for i, v := range e.Violations {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(v.String())
	}
	return b.String()
}

// Is reports whether target matches this error type.
func (e *ConstraintViolations) Is(target error) bool {
	return target == oaserrors.ErrConstraintViolations
}

// In returns the violations of one location, in reported order.
func (e *ConstraintViolations) In(loc contract.Location) []ConstraintViolation {
	var out []ConstraintViolation
	for _, v := range e.Violations {
		if v.Location == loc {
			out = append(out, v)
		}
	}
	return out
}

// sortViolations orders one step's violations by field, constraint and
// message so repeated passes over the same request report identical lists.
func sortViolations(vs []ConstraintViolation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Constraint != b.Constraint {
			return a.Constraint < b.Constraint
		}
		return a.Message < b.Message
	})
}
