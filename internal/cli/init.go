package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kingrea/crosspost/internal/config"
	"github.com/kingrea/crosspost/internal/export"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create crosspost.yaml and the state directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.projectDir()
			if err != nil {
				return err
			}
			created, err := config.Init(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := filepath.Join(dir, config.FileName)
			if created {
				fmt.Fprintln(out, goodStyle.Render("Created "+path))
			} else {
				fmt.Fprintln(out, dimStyle.Render(path+" already exists, left unchanged"))
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			for _, line := range cfg.Summary() {
				fmt.Fprintln(out, "  "+line)
			}
			if _, err := cfg.Schedule(); err != nil {
				fmt.Fprintln(out, dimStyle.Render("Set schedule.start_date (or START_DATE) before the first run."))
			}
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the whole catalog as static HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = filepath.Join(cfg.ProjectDir, "export")
			}
			opts := export.Options{Title: "Articles"}
			if cfg.Project.Author != "" {
				opts.Title = "Articles by " + cfg.Project.Author
			}
			// Dates are optional; an unscheduled project still exports.
			if sched, err := cfg.Schedule(); err == nil {
				opts.DateFor = sched.ExpectedDate
			}
			res, err := export.Write(cat, outDir, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), goodStyle.Render(fmt.Sprintf("Exported %d page(s) to %s", len(res.Pages), res.Dir)))
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("  "+res.Index))
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("  "+res.All))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: ./export)")
	return cmd
}
