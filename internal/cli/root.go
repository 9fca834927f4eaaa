// Package cli is the crosspost command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/crosspost/internal/orchestrator"
)

// Exit codes returned by the binary.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// Options configure the command tree. Tests use them to swap the clock, the
// environment and the publisher.
type Options struct {
	Now       func() time.Time
	Lookup    func(string) (string, bool)
	Publisher orchestrator.Publisher
	Sleep     func(context.Context, time.Duration) error
	In        io.Reader
}

type app struct {
	opts Options
	dir  string
}

// NewRootCommand builds the crosspost command tree.
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{opts: opts}
	if a.opts.In == nil {
		a.opts.In = os.Stdin
	}

	root := &cobra.Command{
		Use:   "crosspost",
		Short: "Publish a catalog of articles across platforms on a schedule",
		Long: `crosspost walks a numbered catalog of articles, publishes each item on its
scheduled date to every platform it targets, and records what went out in a
ledger so re-runs never publish twice.

Running crosspost with no subcommand performs today's pass.`,
		RunE:          a.runToday,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.dir, "dir", "C", "", "Project directory (default: current directory)")

	root.AddCommand(
		a.runCmd(),
		a.statusCmd(),
		a.scheduleCmd(),
		a.daemonCmd(),
		a.previewCmd(),
		a.exportCmd(),
		a.confirmCmd(),
		a.historyCmd(),
		a.logsCmd(),
		a.serveCmd(),
		a.initCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args and returns the process exit
// code.
func Execute(version string) int {
	root := NewRootCommand(Options{})
	root.Version = version
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case orchestrator.IsConfigError(err):
		return ExitConfigError
	default:
		return ExitFailure
	}
}

func (a *app) projectDir() (string, error) {
	if a.dir != "" {
		return a.dir, nil
	}
	return os.Getwd()
}

func (a *app) now() time.Time {
	if a.opts.Now != nil {
		return a.opts.Now()
	}
	return time.Now()
}
