package auth

import (
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-orgs/apps/cli/cmd/cliapp"
)

// Command groups authentication helpers.
func Command(open cliapp.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication utilities",
		Long:  "Authentication utilities (session tokens for organization principals).",
	}

	cmd.AddCommand(tokenCommand(open))

	return cmd
}
