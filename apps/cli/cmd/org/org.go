package orgcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-orgs/apps/cli/cmd/cliapp"
	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
)

// Command groups organization registry and reconciliation helpers.
func Command(open cliapp.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Organization utilities (create/inspect/reconcile)",
	}

	cmd.AddCommand(
		createCommand(open),
		getCommand(open),
		listCommand(open),
		bootstrapCommand(open),
		orphansCommand(open),
		checkCommand(open),
	)
	return cmd
}

// withServices opens the services for the duration of fn.
func withServices(cmd *cobra.Command, open cliapp.Opener, fn func(ctx context.Context, svc *cliapp.Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(ctx, svc)
}

func createCommand(open cliapp.Opener) *cobra.Command {
	var name, email, password string

	c := &cobra.Command{
		Use:   "create",
		Short: "Provision an organization database, register it and create its admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *cliapp.Services) error {
				org, err := svc.Organizations.Register(ctx, service.CreateInput{
					Name:          name,
					AdminEmail:    email,
					AdminPassword: password,
				})
				var bootstrapErr *service.BootstrapError
				if errors.As(err, &bootstrapErr) {
					return fmt.Errorf("%w (run `orgctl org bootstrap --name %q` to retry)", err, name)
				}
				if err != nil {
					return fmt.Errorf("create organization: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Organization created: %s (%s)\n", org.Name, org.ID)
				printOrganization(cmd.OutOrStdout(), org)
				return nil
			})
		},
	}

	c.Flags().StringVar(&name, "name", "", "Organization name")
	c.Flags().StringVar(&email, "admin-email", "", "Admin email")
	c.Flags().StringVar(&password, "admin-password", "", "Admin password")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("admin-email")
	_ = c.MarkFlagRequired("admin-password")

	return c
}

func getCommand(open cliapp.Opener) *cobra.Command {
	var name string

	c := &cobra.Command{
		Use:   "get",
		Short: "Show a registered organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *cliapp.Services) error {
				org, err := svc.Organizations.Lookup(ctx, name)
				if err != nil {
					return fmt.Errorf("get organization %q: %w", name, err)
				}
				printOrganization(cmd.OutOrStdout(), org)
				return nil
			})
		},
	}

	c.Flags().StringVar(&name, "name", "", "Organization name, any spelling")
	_ = c.MarkFlagRequired("name")
	return c
}

func listCommand(open cliapp.Opener) *cobra.Command {
	var page, pageSize int

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *cliapp.Services) error {
				res, err := svc.Organizations.List(ctx, service.ListOptions{Page: page, PageSize: pageSize})
				if err != nil {
					return fmt.Errorf("list organizations: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCANONICAL\tADMIN\tCREATED_AT")
				for _, org := range res.Organizations {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", org.ID, org.Name, org.CanonicalName, org.AdminEmail, org.CreatedAt.Format(time.RFC3339))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d total\n", res.Page, res.TotalPages, res.TotalItems)
				return nil
			})
		},
	}

	c.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	c.Flags().IntVar(&pageSize, "page-size", 20, "Organizations per page")
	return c
}

func bootstrapCommand(open cliapp.Opener) *cobra.Command {
	var name, email, password string

	c := &cobra.Command{
		Use:   "bootstrap",
		Short: "Re-provision a registered organization and create its admin if missing",
		Long: "Repairs an organization whose registration stopped after the registry insert. " +
			"Provisioning is idempotent; an organization that already has an admin is left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *cliapp.Services) error {
				principal, err := svc.Organizations.Rebootstrap(ctx, name, email, password)
				if err != nil {
					if errors.Is(err, service.ErrPrincipalExists) {
						fmt.Fprintf(cmd.OutOrStdout(), "Organization %s already has an admin; nothing to do\n", name)
						return nil
					}
					return fmt.Errorf("bootstrap organization %q: %w", name, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Admin created: %s (%s)\n", principal.Email, principal.ID)
				return nil
			})
		},
	}

	c.Flags().StringVar(&name, "name", "", "Organization name")
	c.Flags().StringVar(&email, "admin-email", "", "Admin email")
	c.Flags().StringVar(&password, "admin-password", "", "Admin password")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("admin-email")
	_ = c.MarkFlagRequired("admin-password")
	return c
}

func orphansCommand(open cliapp.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List organization databases without a registry record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *cliapp.Services) error {
				names, err := svc.Organizations.Orphans(ctx)
				if err != nil {
					return fmt.Errorf("list orphans: %w", err)
				}
				if len(names) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No orphaned databases")
					return nil
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
}

func checkCommand(open cliapp.Opener) *cobra.Command {
	var name string

	c := &cobra.Command{
		Use:   "check",
		Short: "Compare the registry with the physical organization database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *cliapp.Services) error {
				res, err := svc.Organizations.Check(ctx, name)
				if err != nil {
					return fmt.Errorf("check organization %q: %w", name, err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Canonical name:\t%s\n", res.CanonicalName)
				fmt.Fprintf(tw, "Database:\t%s\n", res.DatabaseName)
				fmt.Fprintf(tw, "Registered:\t%t\n", res.Registered)
				fmt.Fprintf(tw, "Database exists:\t%t\n", res.DatabaseExists)
				fmt.Fprintf(tw, "Schema ready:\t%t\n", res.SchemaReady)
				fmt.Fprintf(tw, "Admin ready:\t%t\n", res.AdminReady)
				return tw.Flush()
			})
		},
	}

	c.Flags().StringVar(&name, "name", "", "Organization name")
	_ = c.MarkFlagRequired("name")
	return c
}

func printOrganization(w io.Writer, org service.Organization) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", org.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", org.Name)
	fmt.Fprintf(tw, "Canonical name:\t%s\n", org.CanonicalName)
	fmt.Fprintf(tw, "Admin email:\t%s\n", org.AdminEmail)
	fmt.Fprintf(tw, "Database URL:\t%s\n", org.DatabaseURL)
	fmt.Fprintf(tw, "Created at:\t%s\n", org.CreatedAt.Format(time.RFC3339))
	_ = tw.Flush()
}
