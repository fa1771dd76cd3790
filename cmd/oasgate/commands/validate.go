package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/oaserrors"
)

// ValidateFlags contains flags for the validate command
type ValidateFlags struct {
	Method   string
	Path     string
	Headers  []string
	Query    string
	Data     string
	DataFile string
	Format   string
	Quiet    bool
}

// validateReport is the structured output of the validate command.
type validateReport struct {
	Valid          bool                                `json:"valid" yaml:"valid"`
	RouteFound     bool                                `json:"routeFound" yaml:"routeFound"`
	OperationID    string                              `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	AllowedMethods []string                            `json:"allowedMethods,omitempty" yaml:"allowedMethods,omitempty"`
	Violations     []httpvalidator.ConstraintViolation `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// reportOrder is the order locations are printed in, matching the order
// the validator checks them.
var reportOrder = []contract.Location{
	contract.LocationHeader,
	contract.LocationQuery,
	contract.LocationBody,
}

func newValidateCommand(a *app) *cobra.Command {
	flags := &ValidateFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an HTTP request against the contract",
		Long: `Validate an HTTP request described by flags against the contract. Every
constraint violation is reported, grouped by where it occurs.`,
		Example: `  oasgate validate -c openapi.yaml --method POST --path /api/foos \
      -H 'Content-Type: application/json' --data '{"bar":"2024-01-02T03:04:05Z"}'
  oasgate validate -c openapi.yaml --path /api/foos --query 'limit=500' --format json
  cat body.json | oasgate validate -c openapi.yaml -X PUT --path /api/foos --data-file -

Exit Codes:
  0    The request conforms to the contract
  1    The request was rejected`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(a, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.Method, "method", "X", http.MethodGet, "HTTP method")
	f.StringVar(&flags.Path, "path", "", "request path including the base path, optionally with ?query")
	f.StringArrayVarP(&flags.Headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	f.StringVar(&flags.Query, "query", "", "raw query string")
	f.StringVarP(&flags.Data, "data", "d", "", "request body")
	f.StringVar(&flags.DataFile, "data-file", "", "read the request body from a file, or '-' for stdin")
	f.StringVarP(&flags.Format, "format", "f", FormatText, "output format: text, json, or yaml")
	f.BoolVarP(&flags.Quiet, "quiet", "q", false, "print nothing; report the result through the exit code")
	_ = cmd.MarkFlagRequired("path")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	return cmd
}

// buildValidateRequest assembles the request described by flags.
func buildValidateRequest(flags *ValidateFlags, stdin io.Reader) (httpvalidator.Request, error) {
	req := httpvalidator.Request{
		Method:   strings.ToUpper(flags.Method),
		Path:     flags.Path,
		Header:   make(http.Header),
		RawQuery: flags.Query,
	}
	if i := strings.IndexByte(req.Path, '?'); i >= 0 {
		if req.RawQuery == "" {
			req.RawQuery = req.Path[i+1:]
		}
		req.Path = req.Path[:i]
	}
	for _, h := range flags.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return req, fmt.Errorf("invalid header %q (want 'Name: value')", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	switch {
	case flags.DataFile != "":
		data, err := readInput(flags.DataFile, stdin)
		if err != nil {
			return req, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = data
	case flags.Data != "":
		req.Body = []byte(flags.Data)
	}
	return req, nil
}

func runValidate(a *app, flags *ValidateFlags) error {
	if err := ValidateOutputFormat(flags.Format); err != nil {
		return err
	}
	req, err := buildValidateRequest(flags, a.stdin)
	if err != nil {
		return err
	}
	gw, err := a.gateway()
	if err != nil {
		return err
	}

	report := validateReport{RouteFound: true}
	if op, _, err := gw.Index.MatchPath(req.Method, req.Path); err == nil {
		report.OperationID = op.ID
	}

	err = gw.Validator.Validate(req)
	var notFound *oaserrors.RouteNotFoundError
	var violations *httpvalidator.ConstraintViolations
	switch {
	case err == nil:
		report.Valid = true
	case errors.As(err, &notFound):
		report.RouteFound = false
		report.AllowedMethods = notFound.AllowedMethods
	case errors.As(err, &violations):
		report.Violations = violations.Violations
	default:
		return err
	}

	switch {
	case flags.Quiet:
	case flags.Format != FormatText:
		if err := OutputStructured(a.stdout, report, flags.Format); err != nil {
			return err
		}
	default:
		printValidateReport(a.stdout, req, report, notFound)
	}

	if !report.Valid {
		return &ExitError{Code: 1}
	}
	return nil
}

func printValidateReport(w io.Writer, req httpvalidator.Request, report validateReport, notFound *oaserrors.RouteNotFoundError) {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()
	heading := color.New(color.Bold).SprintFunc()

	target := req.Method + " " + req.Path
	if report.OperationID != "" {
		target += " (" + report.OperationID + ")"
	}

	if report.Valid {
		Writef(w, "%s %s conforms to the contract\n", pass("✓"), target)
		return
	}
	if !report.RouteFound {
		Writef(w, "%s %s\n", fail("✗"), notFound.Error())
		return
	}

	n := len(report.Violations)
	noun := "violations"
	if n == 1 {
		noun = "violation"
	}
	Writef(w, "%s %s was rejected: %d %s\n", fail("✗"), target, n, noun)

	title := cases.Title(language.English)
	cv := &httpvalidator.ConstraintViolations{Violations: report.Violations}
	for _, loc := range reportOrder {
		vs := cv.In(loc)
		if len(vs) == 0 {
			continue
		}
		Writef(w, "\n%s\n", heading(title.String(loc.String())))
		for _, v := range vs {
			Writef(w, "  %s %s: %s [%s]\n", fail("•"), v.Field, v.Message, v.Constraint)
		}
	}
}
