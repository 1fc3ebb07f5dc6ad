package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/consistency"
)

// NewReapCommand creates the reap command.
func NewReapCommand(rootOpts *RootOptions) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "reap <piece-id>",
		Short: "Cancel stale pending sales of one piece",
		Long: `Cancel the pending sales of a piece that are older than --max-age, record
an audit entry for each and repair the piece status.

Exits with status 1 when any cancellation failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReap(cmd, rootOpts, maxAge, func(app *App) (consistency.ReapResult, error) {
				return app.Service.ReapPiece(cmd.Context(), args[0], maxAge)
			})
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "age after which a pending sale is stale (default MAX_STALE_AGE)")
	return cmd
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Cancel stale pending sales across all pieces",
		Long: `Run one maintenance sweep: cancel every stale pending sale, repair the
affected pieces and release reservations that no pending sale holds.

Exits with status 1 when any cancellation failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReap(cmd, rootOpts, maxAge, func(app *App) (consistency.ReapResult, error) {
				return app.Service.Sweep(cmd.Context(), maxAge)
			})
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "age after which a pending sale is stale (default MAX_STALE_AGE)")
	return cmd
}

func runReap(cmd *cobra.Command, opts *RootOptions, maxAge time.Duration, reap func(*App) (consistency.ReapResult, error)) error {
	formatter := opts.formatter(cmd)
	operation := cmd.Name()
	if maxAge < 0 {
		return reportError(formatter, operation, errInvalidMaxAge)
	}

	app, err := opts.openApp(cmd.Context())
	if err != nil {
		return reportError(formatter, operation, err)
	}
	defer app.Close()

	result, err := reap(app)
	if err != nil {
		return reportError(formatter, operation, err)
	}
	formatter.VerboseLog("cutoff %s", result.Cutoff.Format(time.RFC3339))
	if err := formatter.Success(result, func(w io.Writer) { writeReap(w, result) }); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d stale sale(s) could not be cancelled", result.Failed))
	}
	return nil
}
