package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-orgs/apps/cli/cmd/cliapp"
)

func tokenCommand(open cliapp.Opener) *cobra.Command {
	var organization, email, password string
	var adminOnly, verbose bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Log in to an organization and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			svc, err := open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			login := svc.Auth.Authenticate
			if adminOnly {
				login = svc.Auth.AdminLogin
			}
			session, err := login(ctx, organization, email, password)
			if err != nil {
				return fmt.Errorf("login to %q: %w", organization, err)
			}

			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "principal %s (admin=%t) in %s, expires %s\n",
					session.Principal.Email, session.Principal.IsAdmin, session.Organization, session.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), session.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&organization, "organization", "", "Organization name")
	cmd.Flags().StringVar(&email, "email", "", "Principal email")
	cmd.Flags().StringVar(&password, "password", "", "Principal password")
	cmd.Flags().BoolVar(&adminOnly, "admin", true, "Require the admin role, as /admin/login does")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Describe the session on stderr")

	_ = cmd.MarkFlagRequired("organization")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
