package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/erraggy/oasgate"
	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/httputil"
	"github.com/erraggy/oasgate/schemaindex"
	"github.com/erraggy/oasgate/uritemplate"
)

// Option configures a Client.
type Option func(*config) error

type config struct {
	baseURL     *url.URL
	transport   Transport
	expander    uritemplate.Expander
	contentType ContentTypePolicy
	logger      contract.Logger
	userAgent   string
}

func defaultConfig() *config {
	return &config{
		transport:   NewHTTPTransport(nil),
		expander:    uritemplate.NewRFC6570(),
		contentType: FixedContentType(httputil.MediaTypeJSON),
		logger:      contract.NopLogger{},
		userAgent:   oasgate.UserAgent(),
	}
}

// WithBaseURL sets the scheme and host requests are sent to, optionally with
// a path prefix. The contract's base path is appended unless the URL already
// ends with it. Required.
func WithBaseURL(raw string) Option {
	return func(c *config) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("client: invalid base URL %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("client: base URL %q must be absolute", raw)
		}
		c.baseURL = u
		return nil
	}
}

// WithTransport sets the transport requests are dispatched through.
// Default: an HTTPTransport over http.DefaultClient.
func WithTransport(t Transport) Option {
	return func(c *config) error {
		if t == nil {
			return fmt.Errorf("client: transport cannot be nil")
		}
		c.transport = t
		return nil
	}
}

// WithHTTPClient is shorthand for WithTransport(NewHTTPTransport(hc)).
func WithHTTPClient(hc *http.Client) Option {
	return WithTransport(NewHTTPTransport(hc))
}

// WithExpander sets the path template expander.
// Default: uritemplate.NewRFC6570().
func WithExpander(e uritemplate.Expander) Option {
	return func(c *config) error {
		if e == nil {
			return fmt.Errorf("client: expander cannot be nil")
		}
		c.expander = e
		return nil
	}
}

// WithContentTypePolicy sets how the outbound Content-Type is chosen.
// Default: FixedContentType("application/json").
func WithContentTypePolicy(p ContentTypePolicy) Option {
	return func(c *config) error {
		if p == nil {
			return fmt.Errorf("client: content type policy cannot be nil")
		}
		c.contentType = p
		return nil
	}
}

// WithLogger sets the logger for request building and dispatch.
func WithLogger(l contract.Logger) Option {
	return func(c *config) error {
		c.logger = contract.LoggerOrNop(l)
		return nil
	}
}

// WithUserAgent sets the User-Agent header. Pass "" to omit it.
// Default: oasgate.UserAgent().
func WithUserAgent(ua string) Option {
	return func(c *config) error {
		c.userAgent = ua
		return nil
	}
}

// ContentTypePolicy chooses the Content-Type of an outbound request.
type ContentTypePolicy interface {
	ContentType(op *schemaindex.Operation) string
}

// FixedContentType always uses the same media type, regardless of what the
// operation accepts.
type FixedContentType string

// ContentType implements ContentTypePolicy.
func (f FixedContentType) ContentType(*schemaindex.Operation) string {
	return string(f)
}

// FirstAllowedContentType uses the first media type the operation accepts,
// falling back to application/json.
type FirstAllowedContentType struct{}

// ContentType implements ContentTypePolicy.
func (FirstAllowedContentType) ContentType(op *schemaindex.Operation) string {
	for _, mt := range op.MediaTypes {
		if base, ok := httputil.BaseMediaType(mt); ok && !strings.HasSuffix(base, "/*") {
			return mt
		}
	}
	return httputil.MediaTypeJSON
}
