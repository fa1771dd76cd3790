package mcpserver

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/oasgate/schemaindex"
)

type listOperationsInput struct {
	Contract    contractInput `json:"contract,omitempty"     jsonschema:"The contract to use; omit for the startup contract"`
	OperationID string        `json:"operation_id,omitempty" jsonschema:"Only the operation with this operationId"`
	Method      string        `json:"method,omitempty"       jsonschema:"Only operations with this HTTP method (case-insensitive)"`
	Path        string        `json:"path,omitempty"         jsonschema:"Only operations whose path template matches (glob; * matches one segment)"`
	Offset      int           `json:"offset,omitempty"       jsonschema:"Skip the first N matches (for pagination)"`
	Limit       int           `json:"limit,omitempty"        jsonschema:"Maximum number of operations to return (default 100)"`
}

type parameterSummary struct {
	Name             string `json:"name"`
	In               string `json:"in"`
	Type             string `json:"type,omitempty"`
	Required         bool   `json:"required,omitempty"`
	CollectionFormat string `json:"collection_format,omitempty"`
}

type operationSummary struct {
	OperationID  string             `json:"operation_id"`
	Method       string             `json:"method"`
	Path         string             `json:"path"`
	Summary      string             `json:"summary,omitempty"`
	Parameters   []parameterSummary `json:"parameters,omitempty"`
	MediaTypes   []string           `json:"media_types,omitempty"`
	HasBody      bool               `json:"has_body,omitempty"`
	BodyName     string             `json:"body_name,omitempty"`
	BodyRequired bool               `json:"body_required,omitempty"`
}

type listOperationsOutput struct {
	Source     string             `json:"source"`
	Version    string             `json:"version"`
	BasePath   string             `json:"base_path,omitempty"`
	Total      int                `json:"total"`
	Matched    int                `json:"matched"`
	Returned   int                `json:"returned"`
	Operations []operationSummary `json:"operations,omitempty"`
}

func (s *Server) handleListOperations(ctx context.Context, _ *mcp.CallToolRequest, input listOperationsInput) (*mcp.CallToolResult, listOperationsOutput, error) {
	if err := validateGlobPattern(input.Path); err != nil {
		return errResult(err), listOperationsOutput{}, nil
	}
	gw, err := s.gateway(ctx, input.Contract)
	if err != nil {
		return errResult(err), listOperationsOutput{}, nil
	}

	ops := gw.Index.Operations()
	var matched []*schemaindex.Operation
	for _, op := range ops {
		if input.OperationID != "" && op.ID != input.OperationID {
			continue
		}
		if input.Method != "" && !strings.EqualFold(op.Method, input.Method) {
			continue
		}
		if !matchPathGlob(input.Path, op.PathTemplate) {
			continue
		}
		matched = append(matched, op)
	}

	start, end := s.paginate(len(matched), input.Offset, input.Limit)
	page := matched[start:end]

	output := listOperationsOutput{
		Source:     gw.Index.Source(),
		Version:    gw.Index.Version(),
		BasePath:   gw.Index.BasePath(),
		Total:      len(ops),
		Matched:    len(matched),
		Returned:   len(page),
		Operations: makeSlice[operationSummary](len(page)),
	}
	for _, op := range page {
		output.Operations = append(output.Operations, summarizeOperation(op))
	}
	return nil, output, nil
}

func summarizeOperation(op *schemaindex.Operation) operationSummary {
	sum := operationSummary{
		OperationID:  op.ID,
		Method:       op.Method,
		Path:         op.PathTemplate,
		Summary:      op.Summary,
		MediaTypes:   op.MediaTypes,
		HasBody:      op.HasBody(),
		BodyRequired: op.BodyRequired,
		Parameters:   makeSlice[parameterSummary](len(op.Parameters)),
	}
	if op.HasBody() {
		sum.BodyName = op.BodyName
	}
	for _, p := range op.Parameters {
		sum.Parameters = append(sum.Parameters, parameterSummary{
			Name:             p.Name,
			In:               p.Location.String(),
			Type:             p.Type,
			Required:         p.Required,
			CollectionFormat: p.CollectionFormat,
		})
	}
	return sum
}
