package treegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
)

func TestFindRelevantPriorSkills(t *testing.T) {
	prior := []*skillgraph.Skill{
		{ID: "a", Topics: []string{"loops"}},
		{ID: "b", Topics: []string{"loops", "files"}},
		{ID: "c", Topics: []string{"regex"}},
		{ID: "d", Topics: []string{"regex"}, Mastery: skillgraph.MasteryMastered},
		{ID: "e", Topics: []string{"Loops"}, Mastery: skillgraph.MasteryMastered},
	}
	got := FindRelevantPriorSkills([]string{"loops", "files"}, prior)

	var ids []string
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"b", "e", "a", "d"}, ids)
	assert.Empty(t, FindRelevantPriorSkills([]string{"x"}, prior[:3]))
}

func TestCreateCompoundSkill(t *testing.T) {
	a := &skillgraph.Skill{ID: "a", QuestID: "q1", Title: "Read files", Topics: []string{"io"}}
	b := &skillgraph.Skill{ID: "b", QuestID: "q0", Title: "Parse lines", Topics: []string{"text"}}

	s, err := CreateCompoundSkill([]*skillgraph.Skill{a, b}, SkillContext{
		ID:      "c",
		QuestID: "q1",
		Stage:   Stage{Capability: "Summarise a log file"},
	})
	require.NoError(t, err)
	assert.Equal(t, skillgraph.TypeCompound, s.Type)
	assert.Equal(t, 2, s.Depth)
	assert.True(t, s.IsCompound)
	assert.Equal(t, []string{"a", "b"}, s.ComponentSkillIDs)
	assert.Equal(t, []string{"a", "b"}, s.PrerequisiteSkillIDs)
	assert.Equal(t, []string{"q0"}, s.ComponentQuestIDs)
	assert.Equal(t, "Read files + Parse lines", s.Title)
	assert.Equal(t, "Combine Read files and Parse lines to summarise a log file", s.Action)
	assert.Equal(t, []string{"io", "text"}, s.Topics)
	assert.Equal(t, skillgraph.StatusLocked, s.Status)

	_, err = CreateCompoundSkill([]*skillgraph.Skill{a}, SkillContext{ID: "c"})
	assert.True(t, apperr.IsInvalidState(err))
}

func TestCreateSynthesisSkill(t *testing.T) {
	skills := []*skillgraph.Skill{
		{ID: "f1", QuestID: "q1", Type: skillgraph.TypeFoundation, SuccessSignal: "Script exits zero"},
		{ID: "b1", QuestID: "q1", Type: skillgraph.TypeBuilding, SuccessSignal: "Output matches fixture"},
		{ID: "c1", QuestID: "q1", Type: skillgraph.TypeCompound, SuccessSignal: "Combined output"},
		{ID: "x1", QuestID: "q0", Type: skillgraph.TypeFoundation},
	}
	s, m, err := CreateSynthesisSkill(skills, SkillContext{
		ID:         "syn",
		QuestID:    "q1",
		QuestTitle: "Log Tools",
		Stage:      Stage{Artifact: "A log summariser"},
	}, "ms", 0.75)
	require.NoError(t, err)

	assert.Equal(t, skillgraph.TypeSynthesis, s.Type)
	assert.Equal(t, "Milestone: Log Tools", s.Title)
	assert.Equal(t, []string{"f1", "b1", "c1"}, s.PrerequisiteSkillIDs)
	assert.Equal(t, "Deliver a log summariser end to end", s.Action)

	assert.Equal(t, "ms", m.ID)
	assert.Equal(t, "syn", m.SkillID)
	assert.Equal(t, []string{"Script exits zero", "Output matches fixture"}, m.AcceptanceCriteria)
	assert.Equal(t, 0.75, m.RequiredMasteryPercent)
	assert.Equal(t, skillgraph.MilestoneLocked, m.Status)

	_, _, err = CreateSynthesisSkill(skills[:1], SkillContext{ID: "syn", QuestID: "q1"}, "ms", 0.75)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestValidateSkill(t *testing.T) {
	good := &skillgraph.Skill{
		ID:               "s",
		Title:            "Loop",
		Action:           "Write a loop that sums a list",
		SuccessSignal:    "Prints the correct total",
		LockedVariables:  []string{"input list"},
		EstimatedMinutes: 20,
	}
	assert.Empty(t, ValidateSkill(good, 30))

	bad := good.Clone()
	bad.Action = "Loops are useful"
	bad.SuccessSignal = "ok"
	bad.LockedVariables = nil
	bad.EstimatedMinutes = 45
	bad.Type = skillgraph.TypeCompound
	bad.ComponentSkillIDs = []string{"a"}

	var rules []string
	for _, w := range ValidateSkill(bad, 30) {
		rules = append(rules, w.Rule)
		assert.Equal(t, "s", w.SkillID)
	}
	assert.Equal(t, []string{RuleImperativeAction, RuleSuccessSignal, RuleTimeBudget, RuleLockedVariables, RuleComponents}, rules)

	assert.Empty(t, ValidateSkill(&skillgraph.Skill{
		Action: "write it", SuccessSignal: "long enough text", LockedVariables: []string{"x"}, EstimatedMinutes: 500,
	}, 0))
}
