// Command subctl is the operator CLI: schema migrations, manual job runs,
// whitelist inspection, exports and token minting.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/sitepass/subscription-whitelist/internal/bootstrap"
	"github.com/sitepass/subscription-whitelist/internal/config"
	"github.com/sitepass/subscription-whitelist/internal/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "subctl",
		Short:         "Operate the subscription and whitelist service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newJobsCmd(),
		newWhitelistCmd(),
		newExportCmd(),
		newInvoiceCmd(),
		newTokenCmd(),
	)
	return root
}

// loadConfig reads configuration and installs the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.App))
	return cfg, nil
}

// withContainer builds the service graph for one command and tears it down
// afterwards.
func withContainer(ctx context.Context, fn func(c *bootstrap.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := bootstrap.NewContainer(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func success(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}

func info(w io.Writer, format string, args ...any) {
	color.New(color.FgCyan).Fprintf(w, format+"\n", args...)
}
