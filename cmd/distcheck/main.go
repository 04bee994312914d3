// Command distcheck verifies a built distribution artifact and reports a verdict.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// exitError carries a specific process exit status out of a command
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

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to an exit status
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return entities.ExitPass
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", exit.err)
		}
		return exit.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return entities.ExitError
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distcheck",
		Short: "Verify built distribution artifacts",
		Long: `distcheck validates a built distribution (a directory or a .tar.gz, .tar.zst
or .zip archive) against a tiered, architecture-aware catalog of checks and
writes console, JSON and text reports.

Exit codes:
  0  every executed check passed or was skipped
  1  at least one check failed
  2  a check errored, or the run could not start`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}
