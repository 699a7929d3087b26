package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/config"
	"github.com/abhisek/questforge/internal/mastery"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/treegen"
	"github.com/abhisek/questforge/internal/weekplan"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	mem    *store.Memory
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
	mem := store.NewMemory()
	e := New(mem.Backend(), nil, nil, WithClock(func() time.Time { return fixedNow }), WithIDs(ids))
	return &fixture{mem: mem, engine: e}
}

func questInput(questID string, weekStart int) treegen.Input {
	st := make([]treegen.Stage, 3)
	for i := range st {
		st[i] = treegen.Stage{
			Title:           fmt.Sprintf("Stage %d", i+1),
			Capability:      fmt.Sprintf("Handle case %d", i+1),
			Artifact:        fmt.Sprintf("Script %d", i+1),
			Topics:          []string{fmt.Sprintf("topic-%d", i+1), "shell"},
			LockedVariables: []string{"same input file"},
		}
	}
	return treegen.Input{
		UserID:       "u1",
		GoalID:       "g1",
		QuestID:      questID,
		QuestTitle:   "Shell " + questID,
		Stages:       st,
		Duration:     treegen.Duration{PracticeDays: 5, WeekStart: weekStart, WeekEnd: weekStart},
		DailyMinutes: 30,
	}
}

func ofType(skills []*skillgraph.Skill, typ skillgraph.SkillType) []*skillgraph.Skill {
	var out []*skillgraph.Skill
	for _, s := range skills {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

func TestStartQuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.StartQuest(ctx, questInput("q1", 1), StartOptions{Competence: "script the shell"})
	require.NoError(t, err)

	require.Len(t, res.Tree.Skills, 5)
	assert.True(t, res.Activated)
	assert.Equal(t, weekplan.StatusActive, res.Week.Status)
	assert.Equal(t, 1, res.Week.WeekNumber)
	assert.Len(t, res.Week.Days, 5)
	assert.Equal(t, "script the shell", res.Week.WeeklyCompetence)

	stored, err := f.mem.Skills().ByQuest(ctx, "q1", store.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Total)

	ms, err := f.mem.Milestones().ByQuest(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, res.Tree.SynthesisSkillID, ms.SkillID)
}

func TestStartQuest_Strict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := questInput("q1", 1)
	for i := range in.Stages {
		in.Stages[i].LockedVariables = nil
	}
	_, err := f.engine.StartQuest(ctx, in, StartOptions{Strict: true})
	assert.True(t, apperr.IsInvalidState(err))

	stored, err := f.mem.Skills().ByGoal(ctx, "g1", store.ListOpts{})
	require.NoError(t, err)
	assert.Zero(t, stored.Total)

	res, err := f.engine.StartQuest(ctx, in, StartOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tree.Warnings)
}

func TestRecordDrill_UpdatesActiveWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, err := f.engine.StartQuest(ctx, questInput("q1", 1), StartOptions{})
	require.NoError(t, err)
	foundations := ofType(start.Tree.Skills, skillgraph.TypeFoundation)
	require.Len(t, foundations, 2)

	var last *DrillResult
	for _, s := range foundations {
		for range 3 {
			last, err = f.engine.RecordDrill(ctx, s.ID, mastery.OutcomePass)
			require.NoError(t, err)
		}
	}
	assert.True(t, last.BecameMastered())
	require.NotNil(t, last.Week)
	assert.Equal(t, 6, last.Week.Progress.DrillsCompleted)
	assert.Equal(t, 6, last.Week.Progress.DrillsPassed)
	assert.Equal(t, 2, last.Week.Progress.SkillsMastered)
	assert.ElementsMatch(t, []string{foundations[0].ID, foundations[1].ID}, last.Week.CompletedSkillIDs)

	building := ofType(start.Tree.Skills, skillgraph.TypeBuilding)[0]
	res, err := f.engine.RecordDrill(ctx, building.ID, mastery.OutcomeSkipped)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Week.Progress.DrillsSkipped)
	for _, d := range res.Week.Days {
		if d.SkillID == building.ID {
			assert.Equal(t, weekplan.DaySkipped, d.Status)
		}
	}

	_, err = f.engine.RecordDrill(ctx, "missing", mastery.OutcomePass)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCompleteWeek_AndQuestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, err := f.engine.StartQuest(ctx, questInput("q1", 1), StartOptions{})
	require.NoError(t, err)
	for _, s := range ofType(start.Tree.Skills, skillgraph.TypeFoundation) {
		for range 3 {
			_, err := f.engine.RecordDrill(ctx, s.ID, mastery.OutcomePass)
			require.NoError(t, err)
		}
	}

	st, err := f.engine.QuestStatus(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Mastered)
	assert.InDelta(t, 0.5, st.Percent, 1e-9)
	require.NotNil(t, st.Milestone)
	assert.Equal(t, skillgraph.MilestoneLocked, st.Milestone.Status)

	sum, err := f.engine.Summary(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Mastery.Total)
	assert.Equal(t, 2, sum.Mastery.Mastered)
	require.NotNil(t, sum.Week)

	done, err := f.engine.CompleteWeek(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, weekplan.StatusCompleted, done.Plan.Status)
	assert.Equal(t, 3, done.NotStarted)

	// Building, compound and synthesis were never practiced: they return.
	require.False(t, done.Finished())
	assert.Equal(t, 2, done.Next.WeekNumber)
	assert.Equal(t, 2, done.Next.WeekInQuest)
	assert.Len(t, done.Next.ScheduledSkillIDs, 3)
	assert.Equal(t, start.Tree.SynthesisSkillID, done.Next.ScheduledSkillIDs[2])

	for _, id := range done.Next.ScheduledSkillIDs {
		for range 3 {
			_, err := f.engine.RecordDrill(ctx, id, mastery.OutcomePass)
			require.NoError(t, err)
		}
	}
	last, err := f.engine.CompleteWeek(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, last.Finished())
	assert.Equal(t, 3, last.Mastered)

	_, err = f.engine.CompleteWeek(ctx, "g1")
	assert.True(t, apperr.IsInvalidState(err))

	sum, err = f.engine.Summary(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, sum.Week)

	_, err = f.engine.QuestStatus(ctx, "nope")
	assert.True(t, apperr.IsNotFound(err))
}

func TestStartQuest_SecondQuestUsesPriorSkills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.StartQuest(ctx, questInput("q1", 1), StartOptions{})
	require.NoError(t, err)

	// Week 1 is still active, so the second quest's week waits.
	second, err := f.engine.StartQuest(ctx, questInput("q2", 2), StartOptions{})
	require.NoError(t, err)
	assert.False(t, second.Activated)
	assert.Equal(t, weekplan.StatusPending, second.Week.Status)
	assert.Equal(t, 2, second.Week.WeekNumber)

	for _, s := range second.Tree.Skills {
		assert.Equal(t, "q2", s.QuestID)
	}

	// Starting a quest in an already planned week reuses that plan.
	third, err := f.engine.StartQuest(ctx, questInput("q3", 2), StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, second.Week.ID, third.Week.ID)
}

func TestOpenBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendMemory
	e, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, e.Close())

	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.Path = t.TempDir() + "/qf.db"
	e, err = Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, e.Close())

	cfg.Store.Backend = "etcd"
	_, err = OpenBackend(context.Background(), cfg)
	assert.ErrorContains(t, err, "etcd")
}

func TestSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mastery.MasteredThreshold = 5
	cfg.Milestone.RequiredPercent = 0.8
	cfg.Generator.FoundationPct = 0.5
	cfg.Week.Slots = 4

	assert.Equal(t, mastery.Thresholds{Mastered: 5, Consecutive: 2, Practicing: 1}, MasteryConfig(cfg).Thresholds)
	assert.InDelta(t, 0.8, MasteryConfig(cfg).MilestonePercent, 1e-9)
	assert.InDelta(t, 0.5, GeneratorConfig(cfg).Intermediate.Foundation, 1e-9)
	assert.InDelta(t, 0.8, GeneratorConfig(cfg).MilestonePercent, 1e-9)
	assert.Equal(t, 4, WeekConfig(cfg).Slots)
}
