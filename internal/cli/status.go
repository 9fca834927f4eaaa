package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/crosspost/internal/orchestrator"
	"github.com/kingrea/crosspost/internal/render"
	"github.com/kingrea/crosspost/internal/schedule"
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every item's schedule status and what is left to publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject(readOnly)
			if err != nil {
				return err
			}
			defer p.close()
			report, err := p.orch.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("CROSSPOST STATUS · "+report.Today.Format("Monday, January 02, 2006")))
			if report.LastRunAt.IsZero() {
				fmt.Fprintln(out, dimStyle.Render("No run recorded yet."))
			} else {
				fmt.Fprintln(out, dimStyle.Render("Last run "+report.LastRunAt.In(p.cfg.Location()).Format("2006-01-02 15:04")))
			}
			fmt.Fprintln(out)
			for _, row := range report.Items {
				status := statusStyle(row.Status).Render(fmt.Sprintf("%-8s", row.Status))
				line := fmt.Sprintf("  %3d  %s  %s  %s", row.Sequence, row.ExpectedDate.Format("2006-01-02"), status, row.Title)
				if row.Status == schedule.StatusDue || row.Status == schedule.StatusOverdue || len(row.Records) > 0 && len(row.Remaining) > 0 {
					line += dimStyle.Render("  remaining: " + joinPlatforms(row.Remaining))
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)
			counts := []string{}
			for _, s := range []schedule.Status{schedule.StatusComplete, schedule.StatusOverdue, schedule.StatusDue, schedule.StatusPending} {
				counts = append(counts, fmt.Sprintf("%s=%d", s, report.Counts[s]))
			}
			fmt.Fprintln(out, "Counts: "+strings.Join(counts, " "))
			return nil
		},
	}
}

func (a *app) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "List every item with its expected publish date and targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject(readOnly)
			if err != nil {
				return err
			}
			defer p.close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("CROSSPOST SCHEDULE"))
			fmt.Fprintln(out, dimStyle.Render(strings.Join(p.cfg.Summary(), " · ")))
			fmt.Fprintln(out)
			for _, e := range p.orch.Schedule() {
				fmt.Fprintf(out, "  %3d  %s  %s  %s\n",
					e.Sequence,
					e.ExpectedDate.Format("Mon 2006-01-02"),
					e.Title,
					dimStyle.Render("["+joinPlatforms(e.Platforms)+"]"))
			}
			return nil
		},
	}
}

func (a *app) previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview N",
		Short: "Print one item as it will be published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.Atoi(args[0])
			if err != nil || seq < 1 {
				return fmt.Errorf("preview: %q is not a catalog sequence", args[0])
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			item, ok := cat.Get(seq)
			if !ok {
				return fmt.Errorf("%w: %d", orchestrator.ErrUnknownSequence, seq)
			}

			meta := []string{fmt.Sprintf("#%d", item.Sequence)}
			if sched, err := cfg.Schedule(); err == nil {
				meta = append(meta, sched.ExpectedDate(seq).Format("Monday, January 02, 2006"))
			}
			meta = append(meta, joinPlatforms(item.Platforms), fmt.Sprintf("~%d words", item.WordCount()))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(item.Title))
			fmt.Fprintln(out, dimStyle.Render(strings.Join(meta, " · ")))
			fmt.Fprintln(out, boxStyle.Render(strings.TrimRight(render.Document(item), "\n")))
			return nil
		},
	}
}
