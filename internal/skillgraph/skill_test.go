package skillgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillTypeDepth(t *testing.T) {
	for i, typ := range AllTypes() {
		assert.Equal(t, i, typ.Depth(), "depth of %s", typ)
		assert.True(t, typ.Valid())
	}
	assert.False(t, SkillType("bogus").Valid())
}

func TestSkillClone_IsDeep(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	orig := &Skill{
		ID:                   "s1",
		Topics:               []string{"loops"},
		PrerequisiteSkillIDs: []string{"s0"},
		UnlockedAt:           &now,
	}
	c := orig.Clone()
	require.Equal(t, orig, c)

	c.Topics[0] = "changed"
	c.PrerequisiteSkillIDs = append(c.PrerequisiteSkillIDs, "s9")
	*c.UnlockedAt = now.Add(time.Hour)

	assert.Equal(t, "loops", orig.Topics[0])
	assert.Equal(t, []string{"s0"}, orig.PrerequisiteSkillIDs)
	assert.Equal(t, now, *orig.UnlockedAt)
	assert.Nil(t, (*Skill)(nil).Clone())
}

func TestHasPrerequisite(t *testing.T) {
	s := &Skill{PrerequisiteSkillIDs: []string{"a", "b"}}
	assert.True(t, s.HasPrerequisite("b"))
	assert.False(t, s.HasPrerequisite("c"))
}

func validQuest() []*Skill {
	return []*Skill{
		{ID: "f1", QuestID: "q", Type: TypeFoundation, Status: StatusAvailable, Order: 1},
		{ID: "f2", QuestID: "q", Type: TypeFoundation, Status: StatusAvailable, Order: 2},
		{ID: "b1", QuestID: "q", Type: TypeBuilding, Status: StatusLocked, Order: 3, PrerequisiteSkillIDs: []string{"f1"}},
		{ID: "c1", QuestID: "q", Type: TypeCompound, Status: StatusLocked, Order: 4,
			PrerequisiteSkillIDs: []string{"f2", "b1"}, ComponentSkillIDs: []string{"f2", "b1"}},
		{ID: "syn", QuestID: "q", Type: TypeSynthesis, Status: StatusLocked, Order: 5,
			PrerequisiteSkillIDs: []string{"f1", "f2", "b1", "c1"}, ComponentSkillIDs: []string{"f1", "f2", "b1", "c1"}},
	}
}

func TestCheckInvariants_Valid(t *testing.T) {
	assert.NoError(t, CheckInvariants(validQuest()))
}

func TestCheckInvariants_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]*Skill) []*Skill
		want   string
	}{
		{"foundation with prereq", func(s []*Skill) []*Skill {
			s[0].PrerequisiteSkillIDs = []string{"f2"}
			return s
		}, "foundation skill \"f1\" has prerequisites"},
		{"building starts available", func(s []*Skill) []*Skill {
			s[2].Status = StatusAvailable
			return s
		}, "want locked"},
		{"compound with one component", func(s []*Skill) []*Skill {
			s[3].ComponentSkillIDs = []string{"f2"}
			return s
		}, "want >= 2"},
		{"synthesis not last", func(s []*Skill) []*Skill {
			s[4].Order = 3
			s[2].Order = 6
			return s
		}, "not the maximum"},
		{"synthesis missing prereq", func(s []*Skill) []*Skill {
			s[4].PrerequisiteSkillIDs = []string{"f1", "f2", "b1"}
			return s
		}, "synthesis prerequisites"},
		{"two synthesis", func(s []*Skill) []*Skill {
			extra := s[4].Clone()
			extra.ID = "syn2"
			return append(s, extra)
		}, "2 synthesis skills"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInvariants(tt.mutate(validQuest()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
