package commands

import (
	"github.com/spf13/cobra"

	"github.com/erraggy/oasgate"
)

func newVersionCommand(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			if verbose {
				Writef(a.stdout, "%s\n", oasgate.BuildInfo())
				return
			}
			Writef(a.stdout, "oasgate version %s\n", oasgate.Version())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print commit and Go version too")
	return cmd
}
