package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erraggy/oasgate/client"
	"github.com/erraggy/oasgate/httpvalidator"
)

// CallFlags contains flags for the call command
type CallFlags struct {
	Params  []string
	Body    string
	Async   bool
	DryRun  bool
	Include bool
}

func newCallCommand(a *app) *cobra.Command {
	flags := &CallFlags{}

	cmd := &cobra.Command{
		Use:   "call <operationId>",
		Short: "Build, validate and send the request for an operation",
		Long: `Build the request for an operation from --param values and an optional JSON
--body, validate it against the contract and send it to --base-url. A request
the contract rejects is never sent.`,
		Example: `  oasgate call -c openapi.yaml GetFooById --param id=1
  oasgate call -c openapi.yaml GetFooList --param limit=10 --param tags=a --param tags=b
  oasgate call -c openapi.yaml CreateFoo --body '{"bar":"2024-01-02T03:04:05Z"}' --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, a, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&flags.Params, "param", "p", nil, "parameter as name=value; repeat a name for array values")
	f.StringVarP(&flags.Body, "body", "b", "", "JSON request body")
	f.BoolVar(&flags.Async, "async", false, "dispatch without blocking and wait on the pending handle")
	f.BoolVar(&flags.DryRun, "dry-run", false, "print the built request instead of sending it")
	f.BoolVarP(&flags.Include, "include", "i", false, "print response status and headers")
	f.String("base-url", "", "scheme, host and optional path prefix requests are sent to")
	f.Duration("timeout", 0, "HTTP client timeout")
	f.String("content-type", "", "request media type, or 'first-allowed' for the operation's first declared type")
	return cmd
}

// parseParams turns name=value pairs into a parameter map. Repeated names
// collect into a list.
func parseParams(pairs []string, body string) (map[string]any, error) {
	params := make(map[string]any, len(pairs)+1)
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (want name=value)", pair)
		}
		switch prev := params[name].(type) {
		case nil:
			params[name] = value
		case string:
			params[name] = []string{prev, value}
		case []string:
			params[name] = append(prev, value)
		}
	}
	if body != "" {
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, fmt.Errorf("invalid --body: %w", err)
		}
		params[client.BodyKey] = v
	}
	return params, nil
}

func runCall(cmd *cobra.Command, a *app, operationID string, flags *CallFlags) error {
	params, err := parseParams(flags.Params, flags.Body)
	if err != nil {
		return err
	}
	gw, err := a.gateway()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if flags.DryRun {
		req, err := gw.Client.BuildRequest(ctx, operationID, params)
		if err != nil {
			return reportCallError(a, err)
		}
		return printRequest(a.stdout, req)
	}

	var resp *http.Response
	if flags.Async {
		pending := gw.Client.CallAsync(ctx, operationID, params)
		a.logger.Debug("dispatched", "operationId", operationID)
		resp, err = pending.Wait(ctx)
	} else {
		resp, err = gw.Client.Call(ctx, operationID, params)
	}
	if err != nil {
		return reportCallError(a, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if flags.Include {
		Writef(a.stdout, "%s %s\n", resp.Proto, resp.Status)
		printHeaders(a.stdout, resp.Header)
		Writef(a.stdout, "\n")
	}
	if _, err := io.Copy(a.stdout, resp.Body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &ExitError{Code: 1}
	}
	return nil
}

// reportCallError prints constraint violations one per line; other errors
// are returned as is.
func reportCallError(a *app, err error) error {
	var violations *httpvalidator.ConstraintViolations
	if !errors.As(err, &violations) {
		return err
	}
	Writef(a.stderr, "request rejected before sending:\n")
	for _, v := range violations.Violations {
		Writef(a.stderr, "  %s\n", v.String())
	}
	return &ExitError{Code: 1}
}

func printRequest(w io.Writer, req *http.Request) error {
	Writef(w, "%s %s\n", req.Method, req.URL.String())
	printHeaders(w, req.Header)
	if req.Body == nil {
		return nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	Writef(w, "\n%s\n", body)
	return nil
}

func printHeaders(w io.Writer, h http.Header) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range h[name] {
			Writef(w, "%s: %s\n", name, v)
		}
	}
}
