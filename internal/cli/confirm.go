package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/tui"
)

func (a *app) confirmCmd() *cobra.Command {
	var (
		ref  string
		list bool
	)
	cmd := &cobra.Command{
		Use:   "confirm [SEQ PLATFORM]",
		Short: "Record a manual hand-off as published",
		Long: `Record that a staged manual hand-off has been posted.

With SEQ and PLATFORM the pair is recorded directly, optionally with the
published URL. With no arguments an interactive picker lists every pending
hand-off.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("confirm takes SEQ and PLATFORM, or no arguments for the picker")
			}
			return nil
		},
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
			out := cmd.OutOrStdout()

			if len(args) == 2 {
				seq, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("confirm: %q is not a catalog sequence", args[0])
				}
				platform, err := catalog.ParsePlatform(args[1])
				if err != nil {
					return err
				}
				rec, err := p.orch.Confirm(cmd.Context(), seq, platform, ref)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, goodStyle.Render(fmt.Sprintf("Recorded #%d on %s", rec.Sequence, rec.Platform.Label())))
				return nil
			}

			if list {
				pending, err := p.orch.Pending()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(out, dimStyle.Render("Nothing is waiting for confirmation."))
					return nil
				}
				for _, s := range pending {
					fmt.Fprintf(out, "  #%-3d %-10s %s  %s\n", s.Sequence, s.Platform, s.Title, dimStyle.Render(s.Path))
				}
				return nil
			}

			n, err := tui.Run(cmd.Context(), p.orch)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Confirmed %d hand-off(s).\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "Published URL to store with the record")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List pending hand-offs instead of opening the picker")
	return cmd
}
