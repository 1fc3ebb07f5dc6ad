package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/consistency"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <piece-id>",
		Short: "Report whether a piece status matches its sales",
		Long: `Compare the stored piece status with its sales without writing anything.

Exits with status 1 when the piece is inconsistent or missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts, args[0])
		},
	}
}

func runCheck(cmd *cobra.Command, opts *RootOptions, pieceID string) error {
	formatter := opts.formatter(cmd)
	app, err := opts.openApp(cmd.Context())
	if err != nil {
		return reportError(formatter, "check", err)
	}
	defer app.Close()

	report, err := app.Service.Check(cmd.Context(), pieceID)
	if err != nil {
		return reportError(formatter, "check", err)
	}
	if err := formatter.Success(report, func(w io.Writer) { writeReport(w, report) }); err != nil {
		return err
	}
	if !report.Consistent {
		return NewExitError(ExitFailure, fmt.Sprintf("piece %s is inconsistent", pieceID))
	}
	return nil
}

// NewFixCommand creates the fix command.
func NewFixCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <piece-id>",
		Short: "Apply the recommended status change to a piece",
		Long: `Release or reserve a piece so its status matches its sales.

Ambiguous states are reported for manual review and exit with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd, rootOpts, args[0])
		},
	}
}

func runFix(cmd *cobra.Command, opts *RootOptions, pieceID string) error {
	formatter := opts.formatter(cmd)
	app, err := opts.openApp(cmd.Context())
	if err != nil {
		return reportError(formatter, "fix", err)
	}
	defer app.Close()

	result, err := app.Service.Fix(cmd.Context(), pieceID)
	if err != nil {
		return reportError(formatter, "fix", err)
	}
	if err := formatter.Success(result, func(w io.Writer) { writeFix(w, result) }); err != nil {
		return err
	}
	if result.ManualReview {
		return NewExitError(ExitFailure, fmt.Sprintf("piece %s needs manual review", pieceID))
	}
	return nil
}

type claimFlags struct {
	maxAge        time.Duration
	noCancelStale bool
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &claimFlags{}

	cmd := &cobra.Command{
		Use:   "claim <piece-id>",
		Short: "Prepare a piece for a new sale",
		Long: `Cancel stale pending sales, repair the piece status and report whether
a new sale may be created for the piece.

Exits with status 1 when the claim is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(cmd, rootOpts, flags, args[0])
		},
	}

	cmd.Flags().DurationVar(&flags.maxAge, "max-age", 0, "age after which a pending sale is stale (default MAX_STALE_AGE)")
	cmd.Flags().BoolVar(&flags.noCancelStale, "no-cancel-stale", false, "do not cancel stale pending sales first")

	return cmd
}

func runClaim(cmd *cobra.Command, opts *RootOptions, flags *claimFlags, pieceID string) error {
	formatter := opts.formatter(cmd)
	if flags.maxAge < 0 {
		return reportError(formatter, "claim", errInvalidMaxAge)
	}

	app, err := opts.openApp(cmd.Context())
	if err != nil {
		return reportError(formatter, "claim", err)
	}
	defer app.Close()

	var claimOpts []consistency.ClaimOption
	if flags.maxAge > 0 {
		claimOpts = append(claimOpts, consistency.WithMaxStaleAge(flags.maxAge))
	}
	if flags.noCancelStale {
		claimOpts = append(claimOpts, consistency.WithoutStaleCancel())
	}

	result, err := app.Service.Claim(cmd.Context(), pieceID, claimOpts...)
	if err != nil {
		return reportError(formatter, "claim", err)
	}
	if err := formatter.Success(result, func(w io.Writer) { writeClaim(w, result) }); err != nil {
		return err
	}
	if !result.Success {
		return NewExitError(ExitFailure, result.Reason)
	}
	return nil
}

var errInvalidMaxAge = NewExitError(ExitCommandError, "--max-age must not be negative")

// reportError prints err in the configured format and maps it to an exit code.
func reportError(formatter *OutputFormatter, operation string, err error) error {
	var exitErr *ExitError
	code := ErrCodeStore
	switch {
	case errors.Is(err, repository.ErrObjectNotFound):
		code = ErrCodeNotFound
	case errors.As(err, &exitErr) && exitErr.Err == nil:
		code = ErrCodeInput
	}
	if printErr := formatter.Error(code, fmt.Sprintf("%s failed: %v", operation, err), nil); printErr != nil {
		return printErr
	}
	if exitErr == nil {
		exitErr = WrapExitError(ExitCommandError, operation+" failed", err)
	}
	return &ExitError{Code: exitErr.Code, Message: exitErr.Message, Err: exitErr.Err, Printed: true}
}
