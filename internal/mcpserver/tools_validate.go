package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/oaserrors"
)

type validateRequestInput struct {
	Contract contractInput     `json:"contract,omitempty" jsonschema:"The contract to use; omit for the startup contract"`
	Method   string            `json:"method"             jsonschema:"HTTP method, e.g. GET"`
	Path     string            `json:"path"               jsonschema:"Request path including any base path, e.g. /api/foos/1; a ?query suffix is accepted"`
	Headers  map[string]string `json:"headers,omitempty"  jsonschema:"Request headers; names are case-insensitive"`
	Query    string            `json:"query,omitempty"    jsonschema:"Raw query string without the leading ?"`
	Body     string            `json:"body,omitempty"     jsonschema:"Raw request body"`
}

type violationOutput struct {
	Location   string `json:"location"`
	Property   string `json:"property"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

type validateRequestOutput struct {
	Valid          bool              `json:"valid"`
	RouteFound     bool              `json:"route_found"`
	OperationID    string            `json:"operation_id,omitempty"`
	AllowedMethods []string          `json:"allowed_methods,omitempty"`
	Message        string            `json:"message,omitempty"`
	Violations     []violationOutput `json:"violations,omitempty"`
}

func (s *Server) handleValidateRequest(ctx context.Context, _ *mcp.CallToolRequest, input validateRequestInput) (*mcp.CallToolResult, validateRequestOutput, error) {
	gw, err := s.gateway(ctx, input.Contract)
	if err != nil {
		return errResult(err), validateRequestOutput{}, nil
	}

	path, query := input.Path, input.Query
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if query == "" {
			query = path[i+1:]
		}
		path = path[:i]
	}
	header := make(http.Header, len(input.Headers))
	for name, value := range input.Headers {
		header.Add(name, value)
	}
	req := httpvalidator.Request{
		Method:   strings.ToUpper(input.Method),
		Path:     path,
		Header:   header,
		RawQuery: query,
		Body:     []byte(input.Body),
	}

	output := validateRequestOutput{RouteFound: true}
	if op, _, err := gw.Index.MatchPath(req.Method, req.Path); err == nil {
		output.OperationID = op.ID
	}

	err = gw.Validator.Validate(req)
	var notFound *oaserrors.RouteNotFoundError
	var violations *httpvalidator.ConstraintViolations
	switch {
	case err == nil:
		output.Valid = true
	case errors.As(err, &notFound):
		output.RouteFound = false
		output.AllowedMethods = notFound.AllowedMethods
		output.Message = notFound.Error()
	case errors.As(err, &violations):
		output.Message = violations.Error()
		output.Violations = violationsOutput(violations)
	default:
		return errResult(err), validateRequestOutput{}, nil
	}
	return nil, output, nil
}

func violationsOutput(cv *httpvalidator.ConstraintViolations) []violationOutput {
	out := makeSlice[violationOutput](len(cv.Violations))
	for _, v := range cv.Violations {
		out = append(out, violationOutput{
			Location:   v.Location.String(),
			Property:   v.Field,
			Constraint: v.Constraint,
			Message:    v.Message,
		})
	}
	return out
}
