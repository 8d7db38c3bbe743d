package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/bootstrap"
	"github.com/sitepass/subscription-whitelist/internal/domain/export"
	"github.com/sitepass/subscription-whitelist/internal/pkg/jwt"
	"github.com/sitepass/subscription-whitelist/internal/pkg/validator"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger maintenance jobs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered jobs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tINTERVAL")
					for _, job := range c.Scheduler.Jobs() {
						fmt.Fprintf(tw, "%s\t%s\n", job.Name, job.Interval)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "run <name>",
			Short: "Run one job now",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
					start := time.Now()
					if err := c.Scheduler.RunJob(cmd.Context(), args[0]); err != nil {
						return err
					}
					success(cmd.OutOrStdout(), "Job %s completed in %s", args[0], time.Since(start).Round(time.Millisecond))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "run-all",
			Short: "Run every job once, continuing past failures",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
					if err := c.Scheduler.RunOnce(cmd.Context()); err != nil {
						return err
					}
					success(cmd.OutOrStdout(), "All jobs completed")
					return nil
				})
			},
		},
	)
	return cmd
}

func newWhitelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Inspect and rebuild the shared whitelist",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Reconcile the whitelist with active URLs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
					if err := c.Reconciler.ReconcileFull(cmd.Context(), time.Now()); err != nil {
						return err
					}
					success(cmd.OutOrStdout(), "Whitelist reconciled")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the whitelist, one entry per line",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
					lines, err := c.Reconciler.Whitelist(cmd.Context())
					if err != nil {
						return err
					}
					for _, line := range lines {
						fmt.Fprintln(cmd.OutOrStdout(), line)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "export <subscriptions|invoices|urls>",
		Short:     "Write a table as CSV",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(export.TypeSubscriptions), string(export.TypeInvoices), string(export.TypeURLs)},
		RunE: func(cmd *cobra.Command, args []string) error {
			t := export.Type(args[0])
			if !t.Valid() {
				return export.ErrUnknownExportType
			}
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				rows, err := c.Export.Rows(cmd.Context(), t)
				if err != nil {
					return err
				}
				if out == "" {
					return writeCSV(cmd.OutOrStdout(), rows)
				}

				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := writeCSV(f, rows); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				success(cmd.ErrOrStderr(), "Wrote %d row(s) to %s", len(rows)-1, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	return cw.WriteAll(rows)
}

func newInvoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Manage invoices",
	}

	var noEmail bool
	create := &cobra.Command{
		Use:   "create <subscriptionID>",
		Short: "Issue an invoice for a subscription now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscriptionID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				inv, err := c.Invoices.CreateFromSubscription(cmd.Context(), subscriptionID, !noEmail)
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Invoice %s created (id %d, amount %s)", inv.InvoiceNumber, inv.ID, inv.Amount.StringFixed(2))
				info(cmd.OutOrStdout(), "Payment link: %s", c.Invoices.PaymentLink(inv))
				return nil
			})
		},
	}
	create.Flags().BoolVar(&noEmail, "no-email", false, "do not email the invoice to the customer")
	cmd.AddCommand(create)
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint access tokens",
	}

	var (
		admin bool
		email string
	)
	issue := &cobra.Command{
		Use:   "issue <userID>",
		Short: "Print a signed access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if email != "" && !validator.IsValidEmail(email) {
				return fmt.Errorf("invalid email %q", email)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, expiresAt, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration).
				GenerateAccessToken(userID, email, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			info(cmd.ErrOrStderr(), "Expires %s", time.Unix(expiresAt, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().BoolVar(&admin, "admin", false, "grant admin privileges")
	issue.Flags().StringVar(&email, "email", "", "email claim")
	cmd.AddCommand(issue)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
