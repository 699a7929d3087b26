package treegen

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
}

func newTestGenerator() *Generator {
	return New(DefaultConfig(), WithIDs(seqIDs()), WithClock(func() time.Time { return fixedNow }))
}

func stages(n int) []Stage {
	out := make([]Stage, n)
	for i := range out {
		out[i] = Stage{
			Title:           fmt.Sprintf("Stage %d", i+1),
			Capability:      fmt.Sprintf("Handle case %d", i+1),
			Artifact:        fmt.Sprintf("Script %d", i+1),
			Topics:          []string{fmt.Sprintf("topic-%d", i+1), "shell"},
			LockedVariables: []string{"same input file"},
		}
	}
	return out
}

func byType(skills []*skillgraph.Skill) map[skillgraph.SkillType]int {
	m := map[skillgraph.SkillType]int{}
	for _, s := range skills {
		m[s.Type]++
	}
	return m
}

func TestGenerate_FiveDayQuest(t *testing.T) {
	g := newTestGenerator()
	res, err := g.Generate(context.Background(), Input{
		UserID:       "u1",
		GoalID:       "g1",
		QuestID:      "q1",
		QuestTitle:   "Shell Basics",
		Stages:       stages(5),
		Duration:     Duration{PracticeDays: 5, WeekStart: 1, WeekEnd: 1},
		DailyMinutes: 30,
	})
	require.NoError(t, err)

	require.LessOrEqual(t, len(res.Skills), 5)
	counts := byType(res.Skills)
	assert.Positive(t, counts[skillgraph.TypeFoundation])
	assert.Positive(t, counts[skillgraph.TypeBuilding])
	assert.Positive(t, counts[skillgraph.TypeCompound])
	assert.Equal(t, 1, counts[skillgraph.TypeSynthesis])
	assert.Equal(t, Distribution{Foundation: 2, Building: 1, Compound: 1, Synthesis: 1}, res.Distribution)

	require.NoError(t, skillgraph.CheckInvariants(res.Skills))

	last := res.Skills[len(res.Skills)-1]
	assert.Equal(t, res.SynthesisSkillID, last.ID)
	require.NotNil(t, res.Milestone)
	assert.Equal(t, last.ID, res.Milestone.SkillID)
	assert.Equal(t, skillgraph.MilestoneLocked, res.Milestone.Status)
	assert.Equal(t, skillgraph.DefaultRequiredMasteryPercent, res.Milestone.RequiredMasteryPercent)

	for i, s := range res.Skills {
		assert.Equal(t, i+1, s.Order)
		assert.Equal(t, i+1, s.DayInQuest)
		assert.Equal(t, 1, s.WeekNumber)
		assert.Equal(t, i+1, s.DayInWeek)
		assert.Equal(t, "q1", s.QuestID)
		assert.Equal(t, fixedNow, s.CreatedAt)
	}
}

func TestGenerate_SpansWeeks(t *testing.T) {
	g := newTestGenerator()
	res, err := g.Generate(context.Background(), Input{
		GoalID:   "g1",
		QuestID:  "q2",
		Stages:   stages(5),
		Duration: Duration{PracticeDays: 15, WeekStart: 2, WeekEnd: 4},
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(res.Skills), 15)
	assert.Equal(t, Distribution{Foundation: 6, Building: 4, Compound: 4, Synthesis: 1}, res.Distribution)

	for _, s := range res.Skills {
		assert.Contains(t, []int{2, 3, 4}, s.WeekNumber, s.Title)
		assert.GreaterOrEqual(t, s.DayInWeek, 1)
		assert.LessOrEqual(t, s.DayInWeek, 5)
	}
	assert.Equal(t, 2, res.Skills[0].WeekNumber)
	assert.Equal(t, 4, res.Skills[len(res.Skills)-1].WeekNumber)
	require.NoError(t, skillgraph.CheckInvariants(res.Skills))

	// Prerequisites always come earlier in the schedule.
	order := map[string]int{}
	for _, s := range res.Skills {
		order[s.ID] = s.Order
	}
	for _, s := range res.Skills {
		for _, p := range s.PrerequisiteSkillIDs {
			assert.Less(t, order[p], s.Order, "%s before %s", p, s.ID)
		}
	}
}

func TestGenerate_StagesWrapIntoRounds(t *testing.T) {
	g := newTestGenerator()
	res, err := g.Generate(context.Background(), Input{
		QuestID:  "q1",
		Stages:   stages(2),
		Duration: Duration{PracticeDays: 7},
	})
	require.NoError(t, err)
	assert.Len(t, res.Skills, 7)

	var rounds int
	for _, s := range res.Skills {
		if strings.HasSuffix(s.Title, "(round 2)") {
			rounds++
		}
	}
	assert.Positive(t, rounds)
}

func TestGenerate_CrossQuestCompound(t *testing.T) {
	prior := &skillgraph.Skill{
		ID:      "prior-1",
		QuestID: "q0",
		Title:   "Read files",
		Topics:  []string{"shell"},
		Type:    skillgraph.TypeFoundation,
		Mastery: skillgraph.MasteryMastered,
		Status:  skillgraph.StatusMastered,
	}
	g := newTestGenerator()
	res, err := g.Generate(context.Background(), Input{
		QuestID:     "q1",
		Stages:      stages(3),
		Duration:    Duration{PracticeDays: 8},
		PriorSkills: []*skillgraph.Skill{prior},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"prior-1"}, res.CrossQuestSkills)

	var cross *skillgraph.Skill
	for _, s := range res.Skills {
		if s.Type == skillgraph.TypeCompound && s.HasPrerequisite("prior-1") {
			cross = s
		}
	}
	require.NotNil(t, cross)
	assert.Equal(t, []string{"q0"}, cross.ComponentQuestIDs)
	assert.Contains(t, cross.PrerequisiteQuestIDs, "q0")
	assert.Equal(t, skillgraph.StatusLocked, cross.Status)
	require.NoError(t, skillgraph.CheckInvariants(res.Skills))
}

func TestGenerate_CompletedQuestFilter(t *testing.T) {
	prior := &skillgraph.Skill{ID: "prior-1", QuestID: "q0", Topics: []string{"shell"}, Mastery: skillgraph.MasteryMastered}
	g := newTestGenerator()
	res, err := g.Generate(context.Background(), Input{
		QuestID:           "q1",
		Stages:            stages(3),
		Duration:          Duration{PracticeDays: 8},
		PriorSkills:       []*skillgraph.Skill{prior},
		CompletedQuestIDs: []string{"q-other"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.CrossQuestSkills)
}

func TestGenerate_Errors(t *testing.T) {
	g := newTestGenerator()
	ctx := context.Background()

	_, err := g.Generate(ctx, Input{Stages: []Stage{{Title: "no capability"}}})
	assert.True(t, apperr.IsInvalidState(err), "got %v", err)

	_, err = g.Generate(ctx, Input{Stages: stages(3), Duration: Duration{PracticeDays: 2}})
	assert.True(t, apperr.IsInvalidState(err), "got %v", err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = g.Generate(cancelled, Input{Stages: stages(3)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_GeneratesQuestID(t *testing.T) {
	g := newTestGenerator()
	res, err := g.Generate(context.Background(), Input{Stages: stages(1), Duration: Duration{PracticeDays: 3}})
	require.NoError(t, err)
	assert.Equal(t, "id-01", res.QuestID)
	for _, s := range res.Skills {
		assert.Equal(t, res.QuestID, s.QuestID)
	}
}

func TestGenerate_Warnings(t *testing.T) {
	g := newTestGenerator()
	res, err := g.Generate(context.Background(), Input{
		QuestID:      "q1",
		Stages:       []Stage{{Capability: "Handle errors", EstimatedMinutes: 90}},
		Duration:     Duration{PracticeDays: 3},
		DailyMinutes: 45,
	})
	require.NoError(t, err)

	rules := map[string]bool{}
	for _, w := range res.Warnings {
		rules[w.Rule] = true
	}
	assert.True(t, rules[RuleTimeBudget])
	assert.True(t, rules[RuleLockedVariables])
}

func TestDistribute(t *testing.T) {
	mix := DefaultConfig().Intermediate
	tests := []struct {
		slots int
		want  Distribution
	}{
		{0, Distribution{}},
		{1, Distribution{Foundation: 1, Synthesis: 1}},
		{2, Distribution{Foundation: 1, Building: 1, Synthesis: 1}},
		{4, Distribution{Foundation: 2, Building: 1, Compound: 1, Synthesis: 1}},
		{14, Distribution{Foundation: 6, Building: 4, Compound: 4, Synthesis: 1}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.slots), func(t *testing.T) {
			got := distribute(tt.slots, mix)
			assert.Equal(t, tt.want, got)
			if tt.slots > 0 {
				assert.Equal(t, tt.slots+1, got.Total())
			}
		})
	}
}

func TestMixFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.Intermediate, cfg.MixFor(LevelIntermediate))
	assert.Greater(t, cfg.MixFor(LevelBeginner).Foundation, cfg.Intermediate.Foundation)
	assert.Greater(t, cfg.MixFor(LevelAdvanced).Compound, cfg.Intermediate.Compound)
	assert.Equal(t, LevelAdvanced, ParseLevel(" Advanced "))
	assert.Equal(t, LevelIntermediate, ParseLevel("expert"))
}
