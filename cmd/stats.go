package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/ui/components"
	"github.com/abhisek/questforge/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mastery statistics for a goal",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
		goal, err := goalFlag(cmd)
		if err != nil {
			return err
		}
		sum, err := s.engine.Summary(ctx, goal)
		if err != nil {
			return err
		}
		m := sum.Mastery
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render("Goal "+goal))
		fmt.Fprintln(out, components.NewProgressBar("mastered", m.Percent(), true, 50).View())
		fmt.Fprintf(out, "%d skills: %d mastered, %d practicing, %d attempting, %d not started\n\n",
			m.Total, m.Mastered, m.Practicing, m.Attempting, m.NotStarted)
		for _, typ := range []skillgraph.SkillType{skillgraph.TypeFoundation, skillgraph.TypeBuilding, skillgraph.TypeCompound, skillgraph.TypeSynthesis} {
			fmt.Fprintf(out, "%s%d\n", theme.Label.Render(string(typ)), m.ByType[typ])
		}
		for _, st := range []skillgraph.Status{skillgraph.StatusLocked, skillgraph.StatusAvailable, skillgraph.StatusInProgress, skillgraph.StatusMastered} {
			fmt.Fprintf(out, "%s%d\n", theme.Label.Render(string(st)), m.ByStatus[st])
		}
		if sum.Week != nil {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Active week %d: %s\n", sum.Week.WeekNumber, sum.Week.Theme)
			fmt.Fprintln(out, components.NewProgressBar("pass rate", sum.Week.PassRate, true, 50).View())
		}
		return nil
	}),
}
