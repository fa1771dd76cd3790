// Package mcpserver implements an MCP (Model Context Protocol) server
// that exposes oasgate request validation and construction as MCP tools
// over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/oasgate"
	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/config"
	"github.com/erraggy/oasgate/internal/gateway"
)

const serverInstructions = `oasgate MCP server: checks HTTP requests against an OpenAPI/Swagger contract and builds conforming requests from an operationId and parameters.

Every tool accepts an optional contract (exactly one of file, url, or content). Without one, the contract the server was started with is used.

Configuration: all defaults come from OASGATE_* environment variables or the oasgate config file.
- OASGATE_MCP_CACHE_ENABLED (default: true): cache loaded contracts per session
- OASGATE_MCP_CACHE_TTL (default: 15m): lifetime of a cached contract
- OASGATE_MCP_LIST_LIMIT (default: 100): default page size for list_operations
- OASGATE_CLIENT_BASE_URL (default: http://localhost:8080): base URL of built requests

build_request never sends anything.`

// maxLimit caps any requested page size.
const maxLimit = 1000

// Server serves the oasgate tools. It is safe for concurrent use.
type Server struct {
	cfg    *config.Config
	logger contract.Logger
	// dflt is the contract loaded at startup; nil when none was configured
	dflt  *gateway.Gateway
	cache *gatewayCache
	// fetcher is used for url contract inputs
	fetcher *http.Client
}

// New creates a Server. dflt may be nil, in which case every tool call must
// name its contract.
func New(cfg *config.Config, dflt *gateway.Gateway, logger contract.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	fetcher := newSafeHTTPClient()
	if cfg.MCP.AllowPrivateIPs {
		fetcher = &http.Client{Timeout: fetchTimeout}
	}
	return &Server{
		cfg:     cfg,
		logger:  contract.LoggerOrNop(logger),
		dflt:    dflt,
		cache:   newGatewayCache(cfg.MCP.CacheMaxSize),
		fetcher: fetcher,
	}
}

// Run starts the MCP server over stdio and blocks until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.MCP.CacheEnabled {
		s.cache.startSweeper(ctx, sweepInterval)
	}
	return s.mcpServer().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) mcpServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "oasgate", Version: oasgate.Version()},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)
	s.registerTools(server)
	return server
}

func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_operations",
		Description: "List the operations of the contract in declaration order. Each entry carries the method, path template, declared parameters (name, location, type, required, collection format), accepted request media types and whether a body is required. Filter by operation_id, method, or path (glob: * matches one segment). Use offset/limit to paginate.",
	}, s.handleListOperations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_request",
		Description: "Validate an HTTP request against the contract. Returns valid=true for a conforming request. Otherwise returns every constraint violation (location, property, constraint, message) found in the content type, headers, query and body, or route_found=false with allowed_methods when no operation matches.",
	}, s.handleValidateRequest)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_request",
		Description: "Build the HTTP request for an operationId from a flat parameter map. Each key goes to the declared path, query or header parameter of the same name; the \"body\" key (or the body parameter's name) becomes the JSON body. Returns the method, URL, headers and body, or the constraint violations that would make the request invalid. Never sends the request.",
	}, s.handleBuildRequest)
}

// paginate applies offset/limit pagination to a slice, returning the
// requested page. A non-positive limit defaults to the configured list limit.
func (s *Server) paginate(n, offset, limit int) (start, end int) {
	if limit <= 0 {
		limit = s.cfg.MCP.ListLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 || offset >= n {
		return 0, 0
	}
	end = offset + limit
	if end < offset || end > n { // overflow or beyond slice
		end = n
	}
	return offset, end
}

// makeSlice returns nil when n is 0 (preserving omitempty JSON semantics),
// otherwise returns make([]T, 0, n) for pre-allocated appending.
func makeSlice[T any](n int) []T {
	if n == 0 {
		return nil
	}
	return make([]T, 0, n)
}

// sanitizeError strips absolute filesystem paths from error messages
// to prevent leaking internal directory structure to MCP clients.
var pathPattern = regexp.MustCompile(`(?:/(?:home|tmp|var|Users|etc|opt|usr|private|root|mnt|srv|run|snap|nix)[a-zA-Z0-9._/-]*)`)

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return pathPattern.ReplaceAllString(err.Error(), "<path>")
}

// errResult creates an MCP error result from an error.
func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: sanitizeError(err)}},
	}
}

// validateGlobPattern checks whether a path glob is syntactically valid.
// Call this once before a filter loop so matchPathGlob never sees an
// invalid pattern.
func validateGlobPattern(pattern string) error {
	if pattern == "" || !strings.ContainsAny(pattern, "*?[") {
		return nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return nil
}

// matchPathGlob reports whether template matches pattern. Patterns without
// glob characters must equal the template.
func matchPathGlob(pattern, template string) bool {
	if pattern == "" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == template
	}
	ok, _ := path.Match(pattern, template)
	return ok
}
