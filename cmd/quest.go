package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/questforge/internal/app"
	"github.com/abhisek/questforge/internal/llm"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/stages"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/treegen"
	"github.com/abhisek/questforge/internal/ui/components"
	"github.com/abhisek/questforge/internal/ui/theme"
)

var questCmd = &cobra.Command{
	Use:   "quest",
	Short: "Start quests and check their progress",
}

var questStartCmd = &cobra.Command{
	Use:   "start <quest-file>",
	Short: "Generate a quest's skill tree and plan its first week",
	Long: `Reads a YAML or JSON quest file. When the file has a goal but no stages,
the goal is split into stages by the configured LLM provider
(QUESTFORGE_LLM_PROVIDER and QUESTFORGE_<PROVIDER>_API_KEY).`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
		goal, err := goalFlag(cmd)
		if err != nil {
			return err
		}
		qf, err := stages.LoadFile(args[0])
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		in := qf.Input(user, goal)
		in.QuestID, _ = cmd.Flags().GetString("quest-id")

		if qf.NeedsDecomposition() {
			if in.Stages, err = decompose(ctx, s, qf, goal); err != nil {
				return err
			}
		}

		opts := app.StartOptions{}
		opts.Strict, _ = cmd.Flags().GetBool("strict")
		opts.Competence, _ = cmd.Flags().GetString("competence")
		if d, _ := cmd.Flags().GetString("start"); d != "" {
			if opts.StartDate, err = time.Parse(time.DateOnly, d); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
		}

		res, err := s.engine.StartQuest(ctx, in, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("Quest %s: %s", res.Tree.QuestID, in.QuestTitle)))
		d := res.Tree.Distribution
		fmt.Fprintln(out, theme.Subtitle.Render(fmt.Sprintf("%d skills: %d foundation, %d building, %d compound, %d synthesis",
			d.Total(), d.Foundation, d.Building, d.Compound, d.Synthesis)))
		for _, sk := range res.Tree.Skills {
			fmt.Fprintln(out, components.SkillRow(sk))
		}
		for _, w := range res.Tree.Warnings {
			fmt.Fprintln(out, theme.Caution.Render("warning: "+w.String()))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, components.WeekCard(res.Week, titles(res.Tree.Skills)))
		if !res.Activated {
			fmt.Fprintln(out, theme.Hint.Render("Another week is active; this one starts when it is activated."))
		}
		return nil
	}),
}

func decompose(ctx context.Context, s *session, qf *stages.QuestFile, goal string) ([]treegen.Stage, error) {
	cfg := llm.ConfigFromEnv()
	if cfg.Validate() != nil {
		if found, ok := llm.DiscoverConfig(); ok {
			cfg = found
		}
	}
	provider, err := llm.New(ctx, cfg, s.engine.Backend().Events, s.log)
	if err != nil {
		return nil, fmt.Errorf("quest has no stages and no LLM is configured: %w", err)
	}

	req := qf.Request()
	prior, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return s.engine.Backend().Skills.ByGoal(ctx, goal, o)
	})
	if err != nil {
		return nil, err
	}
	req.KnownTopics = topics(prior)

	fmt.Fprintf(os.Stderr, "Splitting %q into stages with %s...\n", qf.Title, provider.ModelID())
	return stages.NewDecomposer(provider, stages.DefaultConfig(), s.log).Decompose(ctx, req)
}

var questStatusCmd = &cobra.Command{
	Use:   "status <quest-id>",
	Short: "Show a quest's skills and milestone",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
		st, err := s.engine.QuestStatus(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render("Quest "+st.QuestID))
		fmt.Fprintln(out, components.NewProgressBar("mastery", st.Percent, true, 50).View())
		fmt.Fprintf(out, "%d mastered, %d open, %d locked\n\n", st.Mastered, st.Available, st.Locked)
		for _, sk := range st.Skills {
			fmt.Fprintln(out, components.SkillRow(sk))
		}
		if m := st.Milestone; m != nil {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s %s (%s, unlocks at %.0f%%)\n", theme.Highlight.Render("Milestone:"), m.Title, m.Status, m.RequiredMasteryPercent*100)
			for _, c := range m.AcceptanceCriteria {
				fmt.Fprintln(out, "  - "+c)
			}
		}
		return nil
	}),
}

func init() {
	f := questStartCmd.Flags()
	f.String("user", os.Getenv("USER"), "learner id")
	f.String("quest-id", "", "quest id (generated when empty)")
	f.Bool("strict", false, "refuse a tree with validation warnings")
	f.String("start", "", "first day of the quest's first week (YYYY-MM-DD, default today)")
	f.String("competence", "", "weekly competence statement for the first week")

	questCmd.AddCommand(questStartCmd, questStatusCmd)
}

func titles(skills []*skillgraph.Skill) map[string]string {
	m := make(map[string]string, len(skills))
	for _, s := range skills {
		m[s.ID] = s.Title
	}
	return m
}

func topics(skills []*skillgraph.Skill) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range skills {
		for _, t := range s.Topics {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
