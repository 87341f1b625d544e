package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"markupcheck-backend/internal/console"
)

var version = "dev"

// exitError carries a process exit status. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "markupcheck",
		Short:         "Heuristic HTML and script checker",
		Long:          `markupcheck reports structural HTML problems, script mistakes and analytics misconfiguration.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("color", "auto", "colorize output (auto|always|never)")
	root.PersistentFlags().String("config", "", "path to a .markupcheck.toml file")

	root.AddCommand(newCheckCmd())
	root.AddCommand(newFetchCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprint(os.Stderr, console.NewPrinter(os.Stderr, "auto").FormatError("", exitErr.err))
		}
		return exitErr.code
	}
	fmt.Fprint(os.Stderr, console.NewPrinter(os.Stderr, "auto").FormatError("", err))
	return 2
}
