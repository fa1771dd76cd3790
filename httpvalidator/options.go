package httpvalidator

import (
	"fmt"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/schemacheck"
)

// DefaultMaxBodySize is the request body limit applied by ValidateHTTP and
// the middleware unless WithMaxBodySize overrides it.
const DefaultMaxBodySize int64 = 10 << 20

// Option configures a Validator.
type Option func(*config) error

type config struct {
	logger        contract.Logger
	engine        schemacheck.Engine
	maxBodySize   int64
	legacyNumeric bool
}

func defaultConfig() *config {
	return &config{
		logger:      contract.NopLogger{},
		maxBodySize: DefaultMaxBodySize,
	}
}

// WithLogger sets the logger used for compile and validation diagnostics.
func WithLogger(l contract.Logger) Option {
	return func(c *config) error {
		c.logger = contract.LoggerOrNop(l)
		return nil
	}
}

// WithEngine sets the JSON-Schema engine. The default engine uses the draft
// matching the contract version (see schemacheck.DraftFor) and the index's
// recursive definitions; a custom engine needs schemacheck.WithDefinitions
// to check recursive schemas.
func WithEngine(e schemacheck.Engine) Option {
	return func(c *config) error {
		if e == nil {
			return fmt.Errorf("httpvalidator: engine cannot be nil")
		}
		c.engine = e
		return nil
	}
}

// WithMaxBodySize sets the maximum request body size in bytes read by
// ValidateHTTP. Bodies exceeding this limit fail with
// *oaserrors.ResourceLimitError.
// Default: 10 MiB.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("httpvalidator: maxBodySize must be positive, got %d", n)
		}
		c.maxBodySize = n
		return nil
	}
}

// WithLegacyNumericCoercion makes unparsable integer and number query or
// header values coerce to 0 (integers also accept "4.7", truncated to 4)
// instead of being reported as type violations.
func WithLegacyNumericCoercion(enabled bool) Option {
	return func(c *config) error {
		c.legacyNumeric = enabled
		return nil
	}
}
