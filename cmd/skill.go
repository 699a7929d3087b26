package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/ui/components"
	"github.com/abhisek/questforge/internal/ui/theme"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Browse skills",
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a goal's or quest's skills",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
		quest, _ := cmd.Flags().GetString("quest")
		status, _ := cmd.Flags().GetString("status")
		goal, _ := cmd.Flags().GetString("goal")
		skills := s.engine.Backend().Skills

		var fetch func(context.Context, store.ListOpts) (store.Page[*skillgraph.Skill], error)
		switch {
		case quest != "":
			fetch = func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
				return skills.ByQuest(ctx, quest, o)
			}
		case goal == "":
			return fmt.Errorf("--goal or --quest is required")
		case status != "":
			fetch = func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
				return skills.ByStatus(ctx, goal, skillgraph.Status(status), o)
			}
		default:
			fetch = func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
				return skills.ByGoal(ctx, goal, o)
			}
		}

		list, err := store.All(ctx, fetch)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, sk := range list {
			if quest != "" && status != "" && string(sk.Status) != status {
				continue
			}
			fmt.Fprintf(out, "%-36s  %s\n", sk.ID, components.SkillRow(sk))
		}
		fmt.Fprintf(out, "\n%d skills\n", len(list))
		return nil
	}),
}

var skillLockedCmd = &cobra.Command{
	Use:   "locked",
	Short: "List locked skills and what they wait on",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
		goal, err := goalFlag(cmd)
		if err != nil {
			return err
		}
		locked, err := s.engine.Unlock().LockedSkillsWithReasons(ctx, goal)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(locked) == 0 {
			fmt.Fprintln(out, "Nothing is locked.")
			return nil
		}
		for _, l := range locked {
			fmt.Fprintln(out, theme.Body.Render(l.Skill.Title)+theme.Subtitle.Render("  "+l.Skill.ID))
			for _, r := range l.Reasons {
				fmt.Fprintln(out, "  - "+r)
			}
		}
		return nil
	}),
}

var skillShowCmd = &cobra.Command{
	Use:   "show <skill-id>",
	Short: "Show a skill and whether its prerequisites are met",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
		sk, err := s.engine.Backend().Skills.Get(ctx, args[0])
		if err != nil {
			return err
		}
		chk, err := s.engine.Unlock().CheckPrerequisites(ctx, sk.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, components.SkillCard(sk))
		if !chk.Satisfied() {
			fmt.Fprintln(out, theme.Caution.Render("Waiting on: "+strings.Join(chk.Reasons, "; ")))
		}
		return nil
	}),
}

var skillHistoryCmd = &cobra.Command{
	Use:   "history <skill-id>",
	Short: "Show a skill's recorded outcomes",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := s.engine.Mastery().History(ctx, args[0], store.QueryOpts{Limit: limit})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No outcomes recorded.")
			return nil
		}
		fmt.Fprintf(out, "%-5s  %-19s  %-8s  %-25s  %s\n", "Seq", "When", "Outcome", "Mastery", "Pass/Fail/Run")
		fmt.Fprintln(out, strings.Repeat("─", 80))
		for _, e := range events {
			fmt.Fprintf(out, "%-5d  %-19s  %-8s  %-25s  %d/%d/%d\n",
				e.Sequence, e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Outcome,
				fmt.Sprintf("%s → %s", e.FromMastery, e.ToMastery),
				e.PassCount, e.FailCount, e.ConsecutivePasses)
		}
		return nil
	}),
}

func init() {
	skillListCmd.Flags().String("quest", "", "list one quest's skills")
	skillListCmd.Flags().String("status", "", "filter by status (locked, available, in_progress, mastered)")
	skillHistoryCmd.Flags().Int("limit", 0, "max events (0 = all)")

	skillCmd.AddCommand(skillListCmd, skillLockedCmd, skillShowCmd, skillHistoryCmd)
}
