package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for orgctl. Subcommands (org, auth) are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:   "orgctl",
	Short: "Palmyra organizations admin CLI",
	Long: "Administrative utilities for Palmyra organizations: provisioning, registry inspection, " +
		"reconciliation of partial failures and session tokens.\n\n" +
		"Configuration is read from the same environment variables as the API server (MASTER_DB_*, SECRET_KEY, ...).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
