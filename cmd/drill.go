package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/questforge/internal/mastery"
	"github.com/abhisek/questforge/internal/ui/components"
	"github.com/abhisek/questforge/internal/ui/theme"
)

var drillCmd = &cobra.Command{
	Use:   "drill <skill-id> <pass|fail|partial|skipped>",
	Short: "Record the outcome of a practice drill",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
		outcome, err := mastery.ParseOutcome(args[1])
		if err != nil {
			return err
		}
		res, err := s.engine.RecordDrill(ctx, args[0], outcome)
		if res == nil {
			return err
		}

		out := cmd.OutOrStdout()
		sk := res.Skill
		fmt.Fprintf(out, "%s  %s  %s (%d passed, %d in a row)\n",
			theme.Title.Render(sk.Title), components.StatusBadge(sk.Status), sk.Mastery, sk.PassCount, sk.ConsecutivePasses)

		if t := res.Transition; t != nil {
			fmt.Fprintf(out, "mastery %s → %s\n", t.From, t.To)
			if t.Regressed() {
				fmt.Fprintln(out, theme.Caution.Render("Mastery slipped; keep drilling to win it back."))
			}
		}
		if res.BecameMastered() {
			fmt.Fprintln(out, theme.Good.Render("Mastered!"))
		}
		if len(res.Unlocked) > 0 {
			fmt.Fprintln(out, theme.Highlight.Render("Unlocked: "+strings.Join(res.Unlocked, ", ")))
		}
		if res.MilestoneUnlocked {
			fmt.Fprintln(out, theme.Highlight.Render("Milestone is now available."))
		}
		if res.MilestoneCompleted {
			fmt.Fprintln(out, theme.Good.Render("Milestone completed. Quest done!"))
		}
		if res.Week != nil {
			fmt.Fprintln(out, components.NewProgressBar(fmt.Sprintf("week %d pass rate", res.Week.WeekNumber), res.Week.PassRate, true, 50).View())
		}
		return err
	}),
}
