package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/erraggy/oasgate/schemaindex"
)

type operationRow struct {
	OperationID string   `json:"operationId" yaml:"operationId"`
	Method      string   `json:"method" yaml:"method"`
	Path        string   `json:"path" yaml:"path"`
	Summary     string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Parameters  []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	MediaTypes  []string `json:"mediaTypes,omitempty" yaml:"mediaTypes,omitempty"`
}

func newOperationsCommand(a *app) *cobra.Command {
	var format string
	var quiet bool

	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "List the operations of the contract",
		Long: `List every operation of the contract in declaration order with its method,
path template (including the base path) and declared parameters.`,
		Example: `  oasgate operations -c openapi.yaml
  oasgate operations -c openapi.yaml --format json | jq '.[].operationId'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ValidateOutputFormat(format); err != nil {
				return err
			}
			gw, err := a.gateway()
			if err != nil {
				return err
			}

			ops := gw.Index.Operations()
			rows := make([]operationRow, 0, len(ops))
			for _, op := range ops {
				rows = append(rows, describeOperation(gw.Index.BasePath(), op))
			}
			if format != FormatText {
				return OutputStructured(a.stdout, rows, format)
			}

			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				id := r.OperationID
				if id == "" {
					id = "-"
				}
				table = append(table, []string{r.Method, r.Path, id, strings.Join(r.Parameters, ", ")})
			}
			RenderTable(a.stdout, []string{"METHOD", "PATH", "OPERATION", "PARAMETERS"}, table, quiet)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatText, "output format: text, json, or yaml")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "omit table headers and separate columns with tabs")
	return cmd
}

// describeOperation renders op for listing. Parameters read "in:name", with
// a trailing "*" when required.
func describeOperation(basePath string, op *schemaindex.Operation) operationRow {
	row := operationRow{
		OperationID: op.ID,
		Method:      op.Method,
		Path:        basePath + op.PathTemplate,
		Summary:     op.Summary,
		MediaTypes:  op.MediaTypes,
	}
	for _, p := range op.Parameters {
		s := p.Location.String() + ":" + p.Name
		if p.Required {
			s += "*"
		}
		row.Parameters = append(row.Parameters, s)
	}
	return row
}
