package schemaindex

import (
	"fmt"
	"strings"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/httputil"
)

// MatchPolicy decides which template wins when several match a request path.
type MatchPolicy int

const (
	// MatchDeclarationOrder picks the first matching template in contract
	// order. This is the default.
	MatchDeclarationOrder MatchPolicy = iota

	// MatchSpecificity prefers templates with more literal characters and
	// fewer variables, so "/foos/mine" wins over "/foos/{id}" regardless of
	// declaration order.
	MatchSpecificity
)

// String returns the policy name as used in configuration.
func (p MatchPolicy) String() string {
	switch p {
	case MatchDeclarationOrder:
		return "declaration"
	case MatchSpecificity:
		return "specificity"
	}
	return fmt.Sprintf("MatchPolicy(%d)", int(p))
}

// ParseMatchPolicy converts a configuration value to a MatchPolicy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "declaration", "declaration-order", "order":
		return MatchDeclarationOrder, nil
	case "specificity", "specific":
		return MatchSpecificity, nil
	}
	return 0, fmt.Errorf("unknown match policy %q (want declaration or specificity)", s)
}

// Option is a functional option for configuring index builds.
type Option func(*config) error

type config struct {
	logger            contract.Logger
	policy            MatchPolicy
	defaultMediaTypes []string
	basePath          *string
}

func defaultConfig() *config {
	return &config{
		logger:            contract.NopLogger{},
		policy:            MatchDeclarationOrder,
		defaultMediaTypes: []string{"application/json"},
	}
}

// WithLogger sets the logger used during build.
// Default: NopLogger
func WithLogger(l contract.Logger) Option {
	return func(c *config) error {
		c.logger = contract.LoggerOrNop(l)
		return nil
	}
}

// WithMatchPolicy sets the tie-break policy for overlapping templates.
// Default: MatchDeclarationOrder
func WithMatchPolicy(p MatchPolicy) Option {
	return func(c *config) error {
		if p != MatchDeclarationOrder && p != MatchSpecificity {
			return fmt.Errorf("schemaindex: invalid match policy %d", int(p))
		}
		c.policy = p
		return nil
	}
}

// WithDefaultMediaTypes sets the media types allowed for operations when
// neither the operation nor the document declares any.
// Default: application/json
func WithDefaultMediaTypes(mediaTypes ...string) Option {
	return func(c *config) error {
		if len(mediaTypes) == 0 {
			return fmt.Errorf("schemaindex: at least one default media type is required")
		}
		for _, mt := range mediaTypes {
			if !httputil.IsValidMediaType(mt) {
				return fmt.Errorf("schemaindex: invalid default media type %q", mt)
			}
		}
		c.defaultMediaTypes = mediaTypes
		return nil
	}
}

// WithBasePath overrides the base path declared by the document.
// Pass "" to match request paths against the bare templates.
func WithBasePath(basePath string) Option {
	return func(c *config) error {
		if basePath != "" && !strings.HasPrefix(basePath, "/") {
			return fmt.Errorf("schemaindex: base path %q must begin with '/'", basePath)
		}
		trimmed := strings.TrimRight(basePath, "/")
		c.basePath = &trimmed
		return nil
	}
}
