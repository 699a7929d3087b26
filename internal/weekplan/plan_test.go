package weekplan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhisek/questforge/internal/skillgraph"
)

func TestProgress_PassRate(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want float64
	}{
		{"no drills", Progress{}, 0},
		{"only skipped", Progress{DrillsSkipped: 3}, 0},
		{"mixed", Progress{DrillsPassed: 3, DrillsFailed: 1, DrillsCompleted: 5}, 0.75},
		{"all passed", Progress{DrillsPassed: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.p.PassRate(), 1e-9)
		})
	}
}

func TestProgress_ApplyIsAdditive(t *testing.T) {
	d := Delta{Completed: 1, Passed: 1}
	p := Progress{}.Apply(d).Apply(d)
	assert.Equal(t, Progress{DrillsCompleted: 2, DrillsPassed: 2}, p)
	assert.True(t, Delta{}.IsZero())
	assert.False(t, d.IsZero())
}

func TestCounts(t *testing.T) {
	var c Counts
	for _, typ := range []skillgraph.SkillType{
		skillgraph.TypeFoundation, skillgraph.TypeFoundation, skillgraph.TypeCompound, skillgraph.TypeSynthesis,
	} {
		c.Add(typ)
	}
	assert.Equal(t, Counts{Foundation: 2, Compound: 1, Synthesis: 1}, c)
	assert.Equal(t, 4, c.Total())
}

func TestPlan_SkillIDs(t *testing.T) {
	p := &Plan{
		ScheduledSkillIDs:    []string{"a", "b", "c"},
		CarryForwardSkillIDs: []string{"x", "b"},
	}
	assert.Equal(t, []string{"x", "b", "a", "c"}, p.SkillIDs())
}

func TestPlan_CloneIsDeep(t *testing.T) {
	p := &Plan{ID: "w1", Days: []Day{{Day: 1, SkillID: "a"}}, ScheduledSkillIDs: []string{"a"}}
	c := p.Clone()
	c.Days[0].SkillID = "z"
	c.ScheduledSkillIDs[0] = "z"
	assert.Equal(t, "a", p.Days[0].SkillID)
	assert.Equal(t, "a", p.ScheduledSkillIDs[0])
}
