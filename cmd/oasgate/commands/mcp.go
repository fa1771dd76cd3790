package commands

import (
	"github.com/spf13/cobra"

	"github.com/erraggy/oasgate/internal/gateway"
	"github.com/erraggy/oasgate/internal/mcpserver"
)

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool server over stdio",
		Long: `Run an MCP (Model Context Protocol) server over stdio exposing the
list_operations, validate_request and build_request tools.

With --contract the tools default to that contract; otherwise every tool call
must name one (file, url, or content).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var dflt *gateway.Gateway
			if a.cfg.Contract != "" {
				gw, err := a.gateway()
				if err != nil {
					return err
				}
				dflt = gw
			}
			return mcpserver.New(a.cfg, dflt, a.logger).Run(cmd.Context())
		},
	}
}
