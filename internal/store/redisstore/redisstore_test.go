package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/weekplan"
)

// openTestStore connects to the server named by QUESTFORGE_TEST_REDIS and
// namespaces keys under a random prefix that is removed afterwards.
func openTestStore(t *testing.T) *store.Backend {
	t.Helper()
	addr := os.Getenv("QUESTFORGE_TEST_REDIS")
	if addr == "" {
		t.Skip("QUESTFORGE_TEST_REDIS not set")
	}
	ctx := context.Background()
	prefix := "qftest:" + uuid.NewString()
	s, err := Dial(ctx, Options{Addr: addr, Prefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() {
		iter := s.rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			s.rdb.Del(ctx, iter.Val())
		}
		s.Close()
	})
	return s.Backend()
}

func skill(id string, order int, status skillgraph.Status, prereqs ...string) *skillgraph.Skill {
	typ := skillgraph.TypeFoundation
	if len(prereqs) > 0 {
		typ = skillgraph.TypeBuilding
	}
	return &skillgraph.Skill{
		ID:                   id,
		QuestID:              "q1",
		GoalID:               "g1",
		UserID:               "u1",
		Title:                "Skill " + id,
		Type:                 typ,
		Depth:                typ.Depth(),
		PrerequisiteSkillIDs: prereqs,
		Order:                order,
		Status:               status,
		Mastery:              skillgraph.MasteryNotStarted,
	}
}

func TestKey(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	defer s.Close()
	assert.Equal(t, "questforge:skills:goal:g1:status:locked", s.key("skills", "goal", "g1", "status", "locked"))
}

func TestParseMasteryEvent(t *testing.T) {
	rec, err := parseMasteryEvent(map[string]any{
		"sequence":           "7",
		"timestamp":          "2026-10-19T08:00:00Z",
		"skill_id":           "a",
		"outcome":            "pass",
		"to_mastery":         "practicing",
		"pass_count":         "1",
		"fail_count":         "0",
		"consecutive_passes": "1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Sequence)
	assert.Equal(t, skillgraph.MasteryPracticing, rec.ToMastery)
	assert.Equal(t, 1, rec.PassCount)

	_, err = parseMasteryEvent(map[string]any{"sequence": "x"})
	assert.Error(t, err)
}

func TestSkills(t *testing.T) {
	b := openTestStore(t)
	ctx := context.Background()

	a := skill("a", 1, skillgraph.StatusAvailable)
	require.NoError(t, b.Skills.Save(ctx, a))
	require.NoError(t, b.Skills.Save(ctx, skill("b", 2, skillgraph.StatusLocked, "a")))
	assert.True(t, apperr.IsConflict(b.Skills.Save(ctx, skill("a", 1, skillgraph.StatusAvailable))))

	got, err := b.Skills.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = b.Skills.Get(ctx, "zzz")
	assert.True(t, apperr.IsNotFound(err))

	locked, err := b.Skills.Locked(ctx, "g1", store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, locked.Items, 1)
	assert.Equal(t, "b", locked.Items[0].ID)

	ok, err := b.Skills.UpdateStatus(ctx, "b", skillgraph.StatusLocked, skillgraph.StatusAvailable, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.Skills.UpdateStatus(ctx, "b", skillgraph.StatusLocked, skillgraph.StatusAvailable, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	avail, err := b.Skills.Available(ctx, "g1", store.ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, avail.Total)
	assert.True(t, avail.HasMore)
	assert.Equal(t, "a", avail.Items[0].ID)

	building, err := b.Skills.ByType(ctx, "q1", skillgraph.TypeBuilding, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, building.Items, 1)

	err = b.Skills.UpdateMastery(ctx, "a", store.MasteryUpdate{
		Mastery: skillgraph.MasteryPracticing, Status: skillgraph.StatusInProgress, PassCount: 1, ExpectedVersion: 1,
	})
	require.NoError(t, err)
	err = b.Skills.UpdateMastery(ctx, "a", store.MasteryUpdate{ExpectedVersion: 1})
	assert.True(t, apperr.IsConflict(err))

	inProgress, err := b.Skills.ByStatus(ctx, "g1", skillgraph.StatusInProgress, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, inProgress.Items, 1)
	assert.Equal(t, 1, inProgress.Items[0].PassCount)
}

func TestWeeksAndMilestones(t *testing.T) {
	b := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	p := &weekplan.Plan{ID: "w1", GoalID: "g1", UserID: "u1", WeekNumber: 1,
		StartDate: start, EndDate: start.AddDate(0, 0, 4), Status: weekplan.StatusActive}
	require.NoError(t, b.Weeks.Save(ctx, p))

	active, err := b.Weeks.ActiveByGoal(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, p, active)

	updated, err := b.Weeks.UpdateProgress(ctx, "w1", weekplan.Delta{Completed: 2, Passed: 1, Failed: 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, updated.PassRate, 1e-9)
	assert.Equal(t, int64(2), updated.Version)

	m := &skillgraph.Milestone{ID: "m1", QuestID: "q1", GoalID: "g1", UserID: "u1", SkillID: "syn",
		Title: "Ship", Status: skillgraph.MilestoneLocked, RequiredMasteryPercent: 0.75}
	require.NoError(t, b.Milestones.Save(ctx, m))
	got, err := b.Milestones.ByQuest(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	ok, err := b.Milestones.UpdateStatus(ctx, "m1", skillgraph.MilestoneLocked, skillgraph.MilestoneAvailable, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvents(t *testing.T) {
	b := openTestStore(t)
	ctx := context.Background()

	for _, o := range []string{"pass", "fail"} {
		require.NoError(t, b.Events.AppendMasteryEvent(ctx, store.MasteryEventData{SkillID: "a", Outcome: o}))
	}
	require.NoError(t, b.Events.AppendLLMRequest(ctx, store.LLMRequestEventData{Provider: "mock", Success: true}))

	events, err := b.Events.MasteryEvents(ctx, "a", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "pass", events[0].Outcome)
	assert.Less(t, events[0].Sequence, events[1].Sequence)
}
