package mcpserver

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/oasgate/httpvalidator"
)

type buildRequestInput struct {
	Contract    contractInput  `json:"contract,omitempty" jsonschema:"The contract to use; omit for the startup contract"`
	OperationID string         `json:"operation_id"       jsonschema:"operationId of the operation to build"`
	Params      map[string]any `json:"params,omitempty"   jsonschema:"Parameter values keyed by declared name; use the key body (or the body parameter's name) for the request body"`
}

type buildRequestOutput struct {
	Valid      bool              `json:"valid"`
	Method     string            `json:"method,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	Message    string            `json:"message,omitempty"`
	Violations []violationOutput `json:"violations,omitempty"`
}

func (s *Server) handleBuildRequest(ctx context.Context, _ *mcp.CallToolRequest, input buildRequestInput) (*mcp.CallToolResult, buildRequestOutput, error) {
	gw, err := s.gateway(ctx, input.Contract)
	if err != nil {
		return errResult(err), buildRequestOutput{}, nil
	}

	req, err := gw.Client.BuildRequest(ctx, input.OperationID, input.Params)
	if err != nil {
		var violations *httpvalidator.ConstraintViolations
		if errors.As(err, &violations) {
			return nil, buildRequestOutput{
				Message:    violations.Error(),
				Violations: violationsOutput(violations),
			}, nil
		}
		return errResult(err), buildRequestOutput{}, nil
	}

	output := buildRequestOutput{
		Valid:   true,
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: make(map[string]string, len(req.Header)),
	}
	for name, values := range req.Header {
		output.Headers[name] = strings.Join(values, ", ")
	}
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return errResult(err), buildRequestOutput{}, nil
		}
		output.Body = string(body)
	}
	return nil, output, nil
}
