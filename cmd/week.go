package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/ui/components"
	"github.com/abhisek/questforge/internal/ui/theme"
	"github.com/abhisek/questforge/internal/weekplan"
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Inspect and move through week plans",
}

var weekShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active week, or the week given by --week",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
		goal, err := goalFlag(cmd)
		if err != nil {
			return err
		}
		var p *weekplan.Plan
		if n, _ := cmd.Flags().GetInt("week"); n > 0 {
			p, err = s.engine.Backend().Weeks.ByWeekNumber(ctx, goal, n)
		} else {
			p, err = s.engine.Weeks().ActiveWeek(ctx, goal)
		}
		if err != nil {
			return err
		}
		return printWeek(ctx, cmd, s, p)
	}),
}

var weekListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the goal's week plans",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
		goal, err := goalFlag(cmd)
		if err != nil {
			return err
		}
		plans, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*weekplan.Plan], error) {
			return s.engine.Backend().Weeks.ByGoal(ctx, goal, o)
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range plans {
			fmt.Fprintf(out, "%3d  %-9s  %-36s  %s  %d skills\n", p.WeekNumber, p.Status, p.ID, p.StartDate.Format("2006-01-02"), len(p.Days))
		}
		return nil
	}),
}

var weekActivateCmd = &cobra.Command{
	Use:   "activate <plan-id>",
	Short: "Activate a pending week plan",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
		p, err := s.engine.Weeks().ActivateWeek(ctx, args[0])
		if err != nil {
			return err
		}
		return printWeek(ctx, cmd, s, p)
	}),
}

var weekCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Complete the active week and plan the next one",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
		goal, err := goalFlag(cmd)
		if err != nil {
			return err
		}
		c, err := s.engine.CompleteWeek(ctx, goal)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Body.Render(c.Summary))
		fmt.Fprintln(out, theme.Hint.Render(c.NextWeekFocus))
		if c.Finished() {
			fmt.Fprintln(out, theme.Good.Render("No skills left to schedule."))
			return nil
		}
		fmt.Fprintln(out)
		return printWeek(ctx, cmd, s, c.Next)
	}),
}

func printWeek(ctx context.Context, cmd *cobra.Command, s *session, p *weekplan.Plan) error {
	skills, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return s.engine.Backend().Skills.ByGoal(ctx, p.GoalID, o)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), components.WeekCard(p, titles(skills)))
	return nil
}

func init() {
	weekShowCmd.Flags().Int("week", 0, "goal-relative week number")
	weekCmd.AddCommand(weekShowCmd, weekListCmd, weekActivateCmd, weekCompleteCmd)
}
