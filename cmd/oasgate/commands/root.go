package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erraggy/oasgate/client"
	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/config"
	"github.com/erraggy/oasgate/internal/gateway"
)

// flagKeys maps configuration keys to the flags that override them. Flags a
// command does not define are skipped.
var flagKeys = map[string]string{
	"contract":                           "contract",
	"log.level":                          "log-level",
	"log.format":                         "log-format",
	"server.addr":                        "addr",
	"server.shutdown_timeout":            "shutdown-timeout",
	"client.base_url":                    "base-url",
	"client.timeout":                     "timeout",
	"client.content_type":                "content-type",
	"validation.max_body_size":           "max-body-size",
	"validation.match_policy":            "match-policy",
	"validation.legacy_numeric_coercion": "legacy-numeric",
}

// app is the state shared by all commands of one invocation.
type app struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	configFile string

	v      *viper.Viper
	cfg    *config.Config
	logger contract.Logger
}

// loadConfig resolves the configuration for cmd from defaults, the config
// file, the environment and cmd's flags.
func (a *app) loadConfig(cmd *cobra.Command) error {
	a.v = config.New()
	if err := config.BindFlags(a.v, cmd.Flags(), flagKeys); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.NewLogger(a.stderr)
	return nil
}

// gateway loads the configured contract.
func (a *app) gateway(opts ...client.Option) (*gateway.Gateway, error) {
	return gateway.Load(a.cfg.Contract, a.cfg, a.logger, opts...)
}

// NewRootCommand builds the oasgate command tree writing to the given streams.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "oasgate",
		Short: "Contract-driven HTTP request validation and construction",
		Long: `oasgate checks HTTP requests against an OpenAPI 3 or Swagger 2.0 contract
and builds conforming requests from an operationId and a parameter map.

Configuration is read from --config (or ./oasgate.yaml), OASGATE_* environment
variables and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./oasgate.yaml)")
	pf.StringP("contract", "c", "", "contract file (OpenAPI 3.x or Swagger 2.0, YAML or JSON)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("match-policy", "declaration", "path template tie-break: declaration or specificity")
	pf.Bool("legacy-numeric", false, "coerce unparsable numeric query and header values to 0")

	root.AddCommand(
		newOperationsCommand(a),
		newValidateCommand(a),
		newCallCommand(a),
		newServeCommand(a),
		newMCPCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return exit.Code
		}
		Writef(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
