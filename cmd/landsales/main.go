package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	code := cli.GetExitCode(err)

	// Failed checks and claims, and errors the command rendered itself, are
	// already on stdout.
	var exitErr *cli.ExitError
	printed := errors.As(err, &exitErr) && (exitErr.Printed || exitErr.Code == cli.ExitFailure)
	if err != nil && !printed {
		fmt.Fprintln(os.Stderr, err)
	}

	cancel()
	os.Exit(code)
}
