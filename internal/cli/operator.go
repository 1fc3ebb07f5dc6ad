package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

// NewOperatorCommand creates the operator command group.
func NewOperatorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operator API accounts",
	}

	cmd.AddCommand(newOperatorCreateCommand(rootOpts))
	cmd.AddCommand(newOperatorSeedCommand(rootOpts))

	return cmd
}

func newOperatorCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an operator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			app, err := rootOpts.openApp(cmd.Context())
			if err != nil {
				return reportError(formatter, "operator create", err)
			}
			defer app.Close()

			created, err := ensureOperator(cmd.Context(), app.Operators, username, password)
			if err != nil {
				return reportError(formatter, "operator create", err)
			}
			if !created {
				return reportError(formatter, "operator create",
					NewExitError(ExitCommandError, fmt.Sprintf("operator %q already exists", username)))
			}
			return formatter.Success(map[string]string{"username": username}, func(w io.Writer) {
				fmt.Fprintf(w, "operator %s created\n", username)
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "operator username")
	cmd.Flags().StringVar(&password, "password", "", "operator password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newOperatorSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin operator from ADMIN_USERNAME and ADMIN_PASSWORD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			app, err := rootOpts.openApp(cmd.Context())
			if err != nil {
				return reportError(formatter, "operator seed", err)
			}
			defer app.Close()

			created, err := seedAdmin(cmd.Context(), app)
			if err != nil {
				return reportError(formatter, "operator seed", err)
			}
			return formatter.Success(map[string]interface{}{
				"username": app.Config.AdminUsername,
				"created":  created,
			}, func(w io.Writer) {
				if created {
					fmt.Fprintf(w, "admin operator %s created\n", app.Config.AdminUsername)
				} else {
					fmt.Fprintf(w, "admin operator %s already exists\n", app.Config.AdminUsername)
				}
			})
		},
	}
}

// seedAdmin creates the configured admin operator if it does not exist yet.
func seedAdmin(ctx context.Context, app *App) (bool, error) {
	if app.Config.AdminUsername == "" || app.Config.AdminPassword == "" {
		return false, NewExitError(ExitCommandError, "ADMIN_USERNAME and ADMIN_PASSWORD must be set")
	}
	return ensureOperator(ctx, app.Operators, app.Config.AdminUsername, app.Config.AdminPassword)
}

func ensureOperator(ctx context.Context, operators storage.OperatorRepository, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, NewExitError(ExitCommandError, "username and password must not be empty")
	}
	exists, err := operators.Exists(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := operators.Create(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}
