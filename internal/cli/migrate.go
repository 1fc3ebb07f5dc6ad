package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/landsales/migrations"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back the database schema",
		Long:      "Apply all pending migrations (up) or roll back the latest one (down).",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(migrations.Up), string(migrations.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			if dsn == "" {
				cfg, err := config.Load()
				if err != nil {
					return reportError(formatter, "migrate", WrapExitError(ExitCommandError, "failed to load config", err))
				}
				dsn = cfg.DatabaseDSN
			}

			version, err := migrations.Apply(dsn, migrations.Direction(args[0]))
			if err != nil {
				return reportError(formatter, "migrate", err)
			}
			return formatter.Success(map[string]interface{}{
				"direction": args[0],
				"version":   version,
			}, func(w io.Writer) {
				fmt.Fprintf(w, "migrated %s, schema version %d\n", args[0], version)
			})
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (default DATABASE_DSN)")
	return cmd
}
