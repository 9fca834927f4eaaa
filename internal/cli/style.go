package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/crosspost/internal/orchestrator"
	"github.com/kingrea/crosspost/internal/schedule"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F6C177"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func statusStyle(s schedule.Status) lipgloss.Style {
	switch s {
	case schedule.StatusComplete:
		return goodStyle
	case schedule.StatusDue:
		return titleStyle
	case schedule.StatusOverdue:
		return badStyle
	default:
		return dimStyle
	}
}

func resultStyle(r orchestrator.Result) lipgloss.Style {
	switch r {
	case orchestrator.ResultPublished, orchestrator.ResultAlreadyDone:
		return goodStyle
	case orchestrator.ResultAwaitingConfirmation, orchestrator.ResultFailedRetry, orchestrator.ResultUnrecorded:
		return warnStyle
	case orchestrator.ResultFailedFatal:
		return badStyle
	default:
		return dimStyle
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func joinPlatforms[T ~string](platforms []T) string {
	parts := make([]string, len(platforms))
	for i, p := range platforms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

// printReport writes a run report: one line per pair and the summary.
func printReport(w io.Writer, r orchestrator.Report) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s · %s · run %s", r.Mode, r.Today.Format("2006-01-02"), shortID(r.RunID))))
	if len(r.Items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  Nothing due."))
	}
	for _, pr := range r.Pairs {
		line := fmt.Sprintf("  #%-3d %-13s %s", pr.Sequence, pr.Platform, resultStyle(pr.Result).Render(string(pr.Result)))
		switch {
		case pr.Reference != "":
			line += " " + pr.Reference
		case pr.Failure != nil:
			line += " " + dimStyle.Render("("+pr.Failure.Error()+")")
		case pr.Staged != nil:
			line += " " + dimStyle.Render("staged "+pr.Staged.Path)
		}
		if pr.Attempts > 1 {
			line += dimStyle.Render(fmt.Sprintf(" after %d attempts", pr.Attempts))
		}
		fmt.Fprintln(w, line)
	}
	if len(r.Deferred) > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  Deferred by the catch-up bound: %v", r.Deferred)))
	}
	if len(r.Halted) > 0 {
		fmt.Fprintln(w, badStyle.Render("  Halted for this run: "+joinPlatforms(r.Halted)))
	}
	fmt.Fprintln(w, "Summary: "+r.Summary.String())
	if r.Summary.Unrecorded > 0 {
		fmt.Fprintln(w, warnStyle.Render("Some posts went out but could not be recorded. Check them before the next run."))
	}
	if r.Summary.AwaitingConfirmation > 0 {
		fmt.Fprintln(w, dimStyle.Render("Confirm manual hand-offs with `crosspost confirm`."))
	}
	if r.CampaignJustCompleted {
		fmt.Fprintln(w, goodStyle.Render("Campaign complete: every item is published everywhere."))
	}
}
