package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/crosspost/internal/journal"
	"github.com/kingrea/crosspost/internal/logbook"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			j, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return err
			}
			defer j.Close()
			out := cmd.OutOrStdout()

			if runID != "" {
				entries, err := j.List(journal.Query{RunID: runID, Limit: limit})
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					return fmt.Errorf("history: no entries for run %s", runID)
				}
				// Oldest first reads like the log.
				for i := len(entries) - 1; i >= 0; i-- {
					e := entries[i]
					line := fmt.Sprintf("  %s  %-18s", e.At.In(cfg.Location()).Format("15:04:05"), e.Type)
					if e.Sequence > 0 {
						line += fmt.Sprintf(" #%-3d %-12s", e.Sequence, e.Platform)
					}
					if e.Outcome != "" {
						line += " " + e.Outcome
					}
					if e.Message != "" {
						line += " " + dimStyle.Render(e.Message)
					}
					fmt.Fprintln(out, line)
				}
				return nil
			}

			runs, err := j.Runs(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No run history found.")
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Recent runs (%d)", len(runs))))
			for _, r := range runs {
				fmt.Fprintf(out, "  %s  %s  %-9s attempts=%d published=%d failures=%d\n",
					r.StartedAt.In(cfg.Location()).Format("2006-01-02 15:04"),
					shortID(r.RunID),
					r.Mode,
					r.Attempts, r.Published, r.Failures)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs (or entries with --run) to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show every journal entry of one run")
	return cmd
}

func (a *app) logsCmd() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the logbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			book, err := logbook.New(cfg.LogbookPath())
			if err != nil {
				return err
			}
			tail, total := book.Tail(lines)
			out := cmd.OutOrStdout()
			if total == 0 {
				fmt.Fprintln(out, "The logbook is empty.")
				return nil
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if total > len(tail) {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("(%d of %d lines, %s)", len(tail), total, book.Path())))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	return cmd
}
