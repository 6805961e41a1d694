package cli

import (
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Repos.Migrate(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "migration failed", err)
			}

			return formatter(rootOpts, cmd).Success(
				map[string]string{"driver": a.Config.DatabaseDriver},
				"schema applied ("+a.Config.DatabaseDriver+")",
			)
		},
	}
}
