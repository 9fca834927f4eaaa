package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/crosspost/internal/handoff"
	"github.com/kingrea/crosspost/internal/orchestrator"
	"github.com/kingrea/crosspost/internal/web"
)

func (a *app) runCmd() *cobra.Command {
	var (
		day         int
		dryRun      bool
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish what is due today, plus bounded catch-up",
		Long: `Publish every item due today and, up to schedule.max_catchup, overdue items
that were missed. Pairs already in the ledger are skipped.

  crosspost run              today's pass
  crosspost run --day 5      force item 5 regardless of its date
  crosspost run --dry-run    show the plan without publishing or writing state`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, day, dryRun, interactive)
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "Publish this catalog sequence regardless of its scheduled date")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan only: no dispatch, no ledger writes")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask for confirmation of manual hand-offs during the run")
	return cmd
}

func (a *app) runToday(cmd *cobra.Command, _ []string) error {
	return a.run(cmd, 0, false, false)
}

func (a *app) run(cmd *cobra.Command, day int, dryRun, interactive bool) (err error) {
	if day < 0 {
		return fmt.Errorf("--day must be a positive sequence, got %d", day)
	}
	req := orchestrator.Request{Mode: orchestrator.ModeRunToday, Day: day}
	switch {
	case dryRun:
		req.Mode = orchestrator.ModeDryRun
	case day > 0:
		req.Mode = orchestrator.ModeRunDay
	}

	mode := readWrite
	if dryRun {
		mode = readOnly
	}
	var extra []orchestrator.Option
	if interactive && !dryRun {
		extra = append(extra, orchestrator.WithConfirmer(&handoff.Prompt{In: a.opts.In, Out: cmd.OutOrStdout()}))
	}
	p, err := a.openProject(mode, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := p.orch.Run(ctx, req)
	// An interrupted run still reports the pairs it got through.
	if err == nil || len(report.Pairs) > 0 {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

func (a *app) daemonCmd() *cobra.Command {
	var (
		serve bool
		addr  string
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run today's pass now and then once a day at the publish time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.daemon(cmd, serve, addr)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "Also serve the HTTP status API")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for --serve (default: serve.addr)")
	return cmd
}

func (a *app) daemon(cmd *cobra.Command, serve bool, addr string) (err error) {
	p, err := a.openProject(readWrite)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	out := cmd.OutOrStdout()
	publishAt := p.cfg.PublishTime()
	hooks := orchestrator.DaemonHooks{
		OnState: func(state orchestrator.DaemonState, next time.Time) {
			switch state {
			case orchestrator.StateSleeping:
				fmt.Fprintln(out, dimStyle.Render("sleeping until "+next.Format("2006-01-02 15:04 MST")))
				p.log.Info("daemon sleeping until %s", next.Format(time.RFC3339))
			case orchestrator.StateTerminating:
				p.log.Info("daemon terminating")
			}
		},
		OnReport: func(r orchestrator.Report, err error) {
			if err != nil {
				fmt.Fprintln(out, badStyle.Render("daemon pass failed: "+err.Error()))
				return
			}
			printReport(out, r)
		},
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	p.log.Info("daemon started, publish time %s", publishAt)

	if !serve {
		return p.orch.Daemon(ctx, publishAt, hooks)
	}
	if addr == "" {
		addr = p.cfg.ServeAddr()
	}
	srv := web.NewServer(p.orch, web.WithRuns(p.journal), web.WithLogger(p.log), web.WithClock(a.now))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, addr)
	})
	g.Go(func() error {
		err := p.orch.Daemon(gctx, publishAt, hooks)
		if err == nil {
			// Interrupted: stop the server too.
			stop()
		}
		return err
	})
	fmt.Fprintln(out, dimStyle.Render("serving on http://"+addr))
	return g.Wait()
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP status and confirmation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			p, err := a.openProject(readWrite)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := p.close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			if addr == "" {
				addr = p.cfg.ServeAddr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := web.NewServer(p.orch, web.WithRuns(p.journal), web.WithLogger(p.log), web.WithClock(a.now))
			if err := srv.Start(ctx, addr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("crosspost serving on http://"+srv.Addr()))
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: serve.addr)")
	return cmd
}
