package skillgraph

import (
	"slices"
	"time"
)

// MilestoneStatus mirrors the unlock progress of a quest's capstone.
type MilestoneStatus string

const (
	MilestoneLocked    MilestoneStatus = "locked"
	MilestoneAvailable MilestoneStatus = "available"
	MilestoneCompleted MilestoneStatus = "completed"
)

// DefaultRequiredMasteryPercent is the share of non-synthesis skills that
// must be mastered before a milestone becomes available.
const DefaultRequiredMasteryPercent = 0.75

// Milestone is the capstone deliverable tied 1:1 to a quest's synthesis skill.
type Milestone struct {
	ID      string
	QuestID string
	GoalID  string
	UserID  string
	SkillID string // the synthesis skill

	Title                  string
	Description            string
	Artifact               string
	AcceptanceCriteria     []string
	EstimatedMinutes       int
	RequiredMasteryPercent float64

	Status      MilestoneStatus
	UnlockedAt  *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	Version     int64
}

// Clone returns a deep copy of m.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	c := *m
	c.AcceptanceCriteria = slices.Clone(m.AcceptanceCriteria)
	c.UnlockedAt = cloneTime(m.UnlockedAt)
	c.CompletedAt = cloneTime(m.CompletedAt)
	return &c
}
