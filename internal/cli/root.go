// Package cli implements the syncctl maintenance commands.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jnst/storefront-sync/internal/app"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/storage"
)

// ValidOutputs defines the allowed output formats.
var ValidOutputs = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Output string // "text" | "json"

	loadConfig func() (*config.Config, error)
}

// NewRootCommand creates the root command. loadConfig is called once per command run.
func NewRootCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	opts := &RootOptions{loadConfig: loadConfig}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Maintain the storefront sync queues",
		Long:  "Export pending sync records to files, requeue failed deliveries and manage the schema.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidOutputs, opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, ValidOutputs)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "output format (json|text)")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewRetryFailedCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// openApp loads the configuration, lets adjust override it and connects to the database.
func openApp(ctx context.Context, opts *RootOptions, adjust func(*config.Config)) (*app.App, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if adjust != nil {
		adjust(cfg)
	}

	repos, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return app.New(cfg, repos), nil
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Output, Writer: cmd.OutOrStdout()}
}
