// Package weekplan defines the five-day scheduling window that the week
// tracker fills with skills and aggregates drill progress into.
package weekplan

import (
	"slices"
	"time"

	"github.com/abhisek/questforge/internal/skillgraph"
)

// DaysPerWeek is the number of practice days in a plan.
const DaysPerWeek = 5

// Status is a plan's lifecycle state: pending → active → completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// DayStatus tracks a single day slot.
type DayStatus string

const (
	DayPending   DayStatus = "pending"
	DayCompleted DayStatus = "completed"
	DaySkipped   DayStatus = "skipped"
)

// Day is one practice day in the plan.
type Day struct {
	Day            int // 1..5
	Date           time.Time
	SkillID        string
	SkillType      skillgraph.SkillType
	Status         DayStatus
	IsCarryForward bool
}

// Counts holds per-type skill counts for the plan.
type Counts struct {
	Foundation int
	Building   int
	Compound   int
	Synthesis  int
}

// Add increments the counter for typ.
func (c *Counts) Add(typ skillgraph.SkillType) {
	switch typ {
	case skillgraph.TypeFoundation:
		c.Foundation++
	case skillgraph.TypeBuilding:
		c.Building++
	case skillgraph.TypeCompound:
		c.Compound++
	case skillgraph.TypeSynthesis:
		c.Synthesis++
	}
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	return c.Foundation + c.Building + c.Compound + c.Synthesis
}

// Progress holds the drill counters accumulated over the week.
type Progress struct {
	DrillsCompleted int
	DrillsPassed    int
	DrillsFailed    int
	DrillsSkipped   int
	SkillsMastered  int
}

// PassRate returns passed / (passed + failed), or 0 before any graded drill.
func (p Progress) PassRate() float64 {
	graded := p.DrillsPassed + p.DrillsFailed
	if graded == 0 {
		return 0
	}
	return float64(p.DrillsPassed) / float64(graded)
}

// Delta is an additive progress update. Callers supply deltas, never
// absolutes, so repeated applications accumulate.
type Delta struct {
	Completed int
	Passed    int
	Failed    int
	Skipped   int
	Mastered  int
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Apply returns p with d added.
func (p Progress) Apply(d Delta) Progress {
	p.DrillsCompleted += d.Completed
	p.DrillsPassed += d.Passed
	p.DrillsFailed += d.Failed
	p.DrillsSkipped += d.Skipped
	p.SkillsMastered += d.Mastered
	return p
}

// Plan is a 5-day scheduling window for one goal.
type Plan struct {
	ID      string
	GoalID  string
	UserID  string
	QuestID string

	WeekNumber         int // goal-relative
	WeekInQuest        int // 1-based
	IsFirstWeekOfQuest bool
	IsLastWeekOfQuest  bool
	StartDate          time.Time
	EndDate            time.Time

	Status           Status
	Theme            string
	WeeklyCompetence string
	Days             []Day

	ScheduledSkillIDs    []string
	CarryForwardSkillIDs []string
	CompletedSkillIDs    []string

	Counts   Counts
	Progress Progress
	PassRate float64 // derived from Progress on every write

	Summary       string
	NextWeekFocus string

	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

// SkillIDs returns the carry-forward then scheduled ids, deduplicated.
func (p *Plan) SkillIDs() []string {
	seen := make(map[string]bool, len(p.ScheduledSkillIDs)+len(p.CarryForwardSkillIDs))
	var out []string
	for _, id := range slices.Concat(p.CarryForwardSkillIDs, p.ScheduledSkillIDs) {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Clone returns a deep copy of p.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Days = slices.Clone(p.Days)
	c.ScheduledSkillIDs = slices.Clone(p.ScheduledSkillIDs)
	c.CarryForwardSkillIDs = slices.Clone(p.CarryForwardSkillIDs)
	c.CompletedSkillIDs = slices.Clone(p.CompletedSkillIDs)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
