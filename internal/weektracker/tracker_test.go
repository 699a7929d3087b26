package weektracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/weekplan"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	mem *store.Memory
	tr  *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("plan-%d", n)
	}
	return &fixture{
		mem: mem,
		tr: New(mem.Skills(), mem.Weeks(), mem, DefaultConfig(), nil,
			WithClock(func() time.Time { return monday.Add(9 * time.Hour) }),
			WithIDs(ids)),
	}
}

// seed saves n skills of quest q1 scheduled five per week from week 1.
func (f *fixture) seed(t *testing.T, n int) []*skillgraph.Skill {
	t.Helper()
	var out []*skillgraph.Skill
	for i := 1; i <= n; i++ {
		s := &skillgraph.Skill{
			ID:         fmt.Sprintf("s%02d", i),
			GoalID:     "g1",
			UserID:     "u1",
			QuestID:    "q1",
			Title:      fmt.Sprintf("Skill %d", i),
			Topic:      "shell",
			Type:       skillgraph.TypeFoundation,
			Status:     skillgraph.StatusAvailable,
			Mastery:    skillgraph.MasteryNotStarted,
			Order:      i,
			WeekNumber: (i-1)/5 + 1,
			DayInWeek:  (i-1)%5 + 1,
		}
		require.NoError(t, f.mem.Skills().Save(context.Background(), s))
		out = append(out, s)
	}
	return out
}

func (f *fixture) setMastery(t *testing.T, id string, m skillgraph.Mastery) {
	t.Helper()
	ctx := context.Background()
	s, err := f.mem.Skills().Get(ctx, id)
	require.NoError(t, err)
	s.Mastery = m
	require.NoError(t, f.mem.Skills().Update(ctx, s))
}

func (f *fixture) startActive(t *testing.T) *weekplan.Plan {
	t.Helper()
	ctx := context.Background()
	p, err := f.tr.StartQuestWeek(ctx, StartWeekInput{GoalID: "g1", QuestID: "q1", WeekNumber: 1, StartDate: monday})
	require.NoError(t, err)
	p, err = f.tr.ActivateWeek(ctx, p.ID)
	require.NoError(t, err)
	return p
}

func TestStartQuestWeek(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 12)

	p, err := f.tr.StartQuestWeek(context.Background(), StartWeekInput{GoalID: "g1", QuestID: "q1", WeekNumber: 1, StartDate: monday.Add(15 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, weekplan.StatusPending, p.Status)
	assert.Equal(t, []string{"s01", "s02", "s03", "s04", "s05"}, p.ScheduledSkillIDs)
	assert.Empty(t, p.CarryForwardSkillIDs)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, 1, p.WeekInQuest)
	assert.True(t, p.IsFirstWeekOfQuest)
	assert.False(t, p.IsLastWeekOfQuest)
	assert.Equal(t, monday, p.StartDate)
	assert.Equal(t, monday.AddDate(0, 0, 6), p.EndDate)
	assert.Equal(t, 5, p.Counts.Foundation)
	assert.Equal(t, "Foundations: shell", p.Theme)
	require.Len(t, p.Days, 5)
	for i, d := range p.Days {
		assert.Equal(t, i+1, d.Day)
		assert.Equal(t, monday.AddDate(0, 0, i), d.Date)
		assert.Equal(t, weekplan.DayPending, d.Status)
	}

	last, err := f.tr.StartQuestWeek(context.Background(), StartWeekInput{GoalID: "g1", QuestID: "q1", WeekNumber: 3})
	require.NoError(t, err)
	assert.True(t, last.IsLastWeekOfQuest)
	assert.Equal(t, 3, last.WeekInQuest)
	assert.Len(t, last.Days, 2)

	_, err = f.tr.StartQuestWeek(context.Background(), StartWeekInput{GoalID: "g1", QuestID: "q1", WeekNumber: 9})
	assert.True(t, apperr.IsInvalidState(err))
}

func TestActivateWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 10)

	p := f.startActive(t)
	assert.Equal(t, weekplan.StatusActive, p.Status)

	again, err := f.tr.ActivateWeek(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, weekplan.StatusActive, again.Status)

	other, err := f.tr.StartQuestWeek(ctx, StartWeekInput{GoalID: "g1", QuestID: "q1", WeekNumber: 2})
	require.NoError(t, err)
	_, err = f.tr.ActivateWeek(ctx, other.ID)
	assert.True(t, apperr.IsInvalidState(err), "second active week: %v", err)

	active, err := f.tr.ActiveWeek(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)

	_, err = f.tr.ActivateWeek(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))

	weekEvents := f.mem.WeekEvents()
	require.Len(t, weekEvents, 1)
	assert.Equal(t, weekplan.StatusActive, weekEvents[0].ToStatus)
}

func TestCompleteWeek_CarryForwardPlusNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 15)
	p := f.startActive(t)

	f.setMastery(t, "s01", skillgraph.MasteryPracticing)
	f.setMastery(t, "s02", skillgraph.MasteryPracticing)
	f.setMastery(t, "s03", skillgraph.MasteryMastered)

	c, err := f.tr.CompleteWeek(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, weekplan.StatusCompleted, c.Plan.Status)
	assert.NotNil(t, c.Plan.CompletedAt)
	assert.Equal(t, []string{"s03"}, c.Plan.CompletedSkillIDs)
	assert.Equal(t, 1, c.Mastered)
	assert.Equal(t, 2, c.Practicing)
	assert.Equal(t, 2, c.NotStarted)
	assert.Contains(t, c.Summary, "1 of 5 skills mastered")
	assert.Equal(t, c.Summary, c.Plan.Summary)
	assert.Equal(t, `Reinforce 2 skills next week: "Skill 1", "Skill 2".`, c.NextWeekFocus)

	require.NotNil(t, c.Next)
	next := c.Next
	assert.Equal(t, weekplan.StatusActive, next.Status)
	assert.Equal(t, 2, next.WeekNumber)
	assert.Equal(t, []string{"s01", "s02"}, next.CarryForwardSkillIDs)
	// Untouched s04 and s05 come back ahead of week 2's own material.
	assert.Equal(t, []string{"s04", "s05", "s06"}, next.ScheduledSkillIDs)
	require.Len(t, next.Days, 5)
	assert.True(t, next.Days[0].IsCarryForward)
	assert.True(t, next.Days[1].IsCarryForward)
	assert.False(t, next.Days[2].IsCarryForward)
	assert.Equal(t, "s04", next.Days[2].SkillID)
	assert.Equal(t, monday.AddDate(0, 0, 7), next.StartDate)
	assert.Equal(t, p.EndDate.AddDate(0, 0, 7), next.EndDate)
	assert.Equal(t, 2, next.WeekInQuest)
	assert.False(t, next.IsFirstWeekOfQuest)
	assert.NotEqual(t, ReviewTheme, next.Theme)

	active, err := f.tr.ActiveWeek(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)

	_, err = f.tr.CompleteWeek(ctx, p.ID)
	assert.True(t, apperr.IsInvalidState(err), "completed is terminal")
	_, err = f.tr.ActivateWeek(ctx, p.ID)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestCompleteWeek_ReviewTheme(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 10)
	p := f.startActive(t)
	for _, id := range []string{"s01", "s02", "s03", "s04"} {
		f.setMastery(t, id, skillgraph.MasteryPracticing)
	}

	c, err := f.tr.CompleteWeek(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, c.Next)
	assert.Equal(t, ReviewTheme, c.Next.Theme)
	assert.Len(t, c.Next.CarryForwardSkillIDs, 4)
	assert.Equal(t, []string{"s05"}, c.Next.ScheduledSkillIDs)
	assert.Equal(t, `Reinforce 4 skills next week: "Skill 1", "Skill 2", "Skill 3" and 1 more.`, c.NextWeekFocus)
}

func TestCompleteWeek_NothingLeft(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 5)
	p := f.startActive(t)
	for i := 1; i <= 5; i++ {
		f.setMastery(t, fmt.Sprintf("s%02d", i), skillgraph.MasteryMastered)
	}

	c, err := f.tr.CompleteWeek(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, c.Finished())
	assert.Empty(t, c.CarryForward)
	assert.Contains(t, c.NextWeekFocus, "ready to advance")

	_, err = f.tr.ActiveWeek(context.Background(), "g1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestCompleteWeek_UntouchedSkillsReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 5)
	p := f.startActive(t)
	f.setMastery(t, "s01", skillgraph.MasteryMastered)
	f.setMastery(t, "s02", skillgraph.MasteryMastered)

	c, err := f.tr.CompleteWeek(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, c.NotStarted)
	assert.Empty(t, c.CarryForward)
	assert.Equal(t, "3 skills were not started this week. They come back as new material.", c.NextWeekFocus)

	require.False(t, c.Finished())
	assert.Equal(t, 2, c.Next.WeekNumber)
	assert.Equal(t, weekplan.StatusActive, c.Next.Status)
	assert.Empty(t, c.Next.CarryForwardSkillIDs)
	assert.Equal(t, []string{"s03", "s04", "s05"}, c.Next.ScheduledSkillIDs)
	assert.True(t, c.Next.IsLastWeekOfQuest)

	// The follow-up week closes the same way until every skill is mastered.
	for _, id := range []string{"s03", "s04", "s05"} {
		f.setMastery(t, id, skillgraph.MasteryMastered)
	}
	last, err := f.tr.CompleteWeek(ctx, c.Next.ID)
	require.NoError(t, err)
	assert.True(t, last.Finished())
	assert.Contains(t, last.NextWeekFocus, "ready to advance")
}

func TestCompleteWeek_FailedOnlySkillIsNotCarried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 5)
	p := f.startActive(t)

	// Failures alone keep a skill not_started: it returns as new material,
	// never as carry-forward.
	s, err := f.mem.Skills().Get(ctx, "s01")
	require.NoError(t, err)
	s.FailCount = 2
	require.NoError(t, f.mem.Skills().Update(ctx, s))

	c, err := f.tr.CompleteWeek(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, c.CarryForward)
	require.NotNil(t, c.Next)
	assert.Empty(t, c.Next.CarryForwardSkillIDs)
	assert.Contains(t, c.Next.ScheduledSkillIDs, "s01")
	assert.Len(t, c.Next.ScheduledSkillIDs, 5)
}

func TestCompleteWeek_RequiresActive(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 5)
	p, err := f.tr.StartQuestWeek(context.Background(), StartWeekInput{GoalID: "g1", QuestID: "q1", WeekNumber: 1})
	require.NoError(t, err)

	_, err = f.tr.CompleteWeek(context.Background(), p.ID)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestCompleteWeek_ActivatesPendingNextWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 10)
	p := f.startActive(t)
	pending, err := f.tr.StartQuestWeek(ctx, StartWeekInput{GoalID: "g1", QuestID: "q1", WeekNumber: 2})
	require.NoError(t, err)

	f.setMastery(t, "s01", skillgraph.MasteryPracticing)
	c, err := f.tr.CompleteWeek(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, c.Next)
	assert.Equal(t, pending.ID, c.Next.ID)
	assert.Equal(t, weekplan.StatusActive, c.Next.Status)
	assert.Equal(t, []string{"s01"}, c.Next.CarryForwardSkillIDs)
	assert.Equal(t, []string{"s06", "s07", "s08", "s09"}, c.Next.ScheduledSkillIDs)
	assert.Len(t, c.Next.Days, 5)
}

func TestUpdateProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 5)
	p := f.startActive(t)

	_, err := f.tr.UpdateProgress(ctx, p.ID, weekplan.Delta{Completed: 1, Passed: 1})
	require.NoError(t, err)
	_, err = f.tr.UpdateProgress(ctx, p.ID, weekplan.Delta{Completed: 1, Failed: 1})
	require.NoError(t, err)
	got, err := f.tr.UpdateProgress(ctx, p.ID, weekplan.Delta{Completed: 1, Passed: 1, Mastered: 1})
	require.NoError(t, err)

	assert.Equal(t, weekplan.Progress{DrillsCompleted: 3, DrillsPassed: 2, DrillsFailed: 1, SkillsMastered: 1}, got.Progress)
	assert.InDelta(t, 2.0/3.0, got.PassRate, 1e-9)

	same, err := f.tr.UpdateProgress(ctx, p.ID, weekplan.Delta{})
	require.NoError(t, err)
	assert.Equal(t, got.Progress, same.Progress)

	_, err = f.tr.CompleteWeek(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.tr.UpdateProgress(ctx, p.ID, weekplan.Delta{Completed: 1})
	assert.True(t, apperr.IsInvalidState(err))
}

func TestMarkDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 5)
	p := f.startActive(t)

	got, err := f.tr.MarkDay(ctx, p.ID, "s02", weekplan.DayCompleted)
	require.NoError(t, err)
	assert.Equal(t, weekplan.DayCompleted, got.Days[1].Status)
	assert.Equal(t, []string{"s02"}, got.CompletedSkillIDs)

	got, err = f.tr.MarkDay(ctx, p.ID, "s02", weekplan.DayCompleted)
	require.NoError(t, err)
	assert.Equal(t, []string{"s02"}, got.CompletedSkillIDs)

	_, err = f.tr.MarkDay(ctx, p.ID, "s99", weekplan.DaySkipped)
	assert.True(t, apperr.IsNotFound(err))
}

func TestNextWeekFocus(t *testing.T) {
	one := []*skillgraph.Skill{{Title: "Pipes"}}
	assert.Equal(t, `Focus on "Pipes" next week to lock it in.`, nextWeekFocus(one, 0))
	assert.Contains(t, nextWeekFocus(nil, 0), "ready to advance")

	three := []*skillgraph.Skill{{Title: "A"}, {Title: "B"}, {Title: "C"}}
	assert.Equal(t, `Reinforce 3 skills next week: "A", "B", "C".`, nextWeekFocus(three, 0))
}
