package skillgraph

import (
	"slices"
	"time"
)

// SkillType places a skill in the composition taxonomy.
type SkillType string

const (
	TypeFoundation SkillType = "foundation"
	TypeBuilding   SkillType = "building"
	TypeCompound   SkillType = "compound"
	TypeSynthesis  SkillType = "synthesis"
)

// AllTypes returns all skill types in depth order.
func AllTypes() []SkillType {
	return []SkillType{TypeFoundation, TypeBuilding, TypeCompound, TypeSynthesis}
}

// Depth returns the composition depth: 0 for foundation through 3 for synthesis.
func (t SkillType) Depth() int {
	switch t {
	case TypeFoundation:
		return 0
	case TypeBuilding:
		return 1
	case TypeCompound:
		return 2
	case TypeSynthesis:
		return 3
	default:
		return -1
	}
}

// Valid reports whether t is a known skill type.
func (t SkillType) Valid() bool { return t.Depth() >= 0 }

// Status is a skill's availability to the learner.
type Status string

const (
	StatusLocked     Status = "locked"    // One or more prerequisites not yet mastered
	StatusAvailable  Status = "available" // All prerequisites mastered; not yet practiced
	StatusInProgress Status = "in_progress"
	StatusMastered   Status = "mastered"
)

// Icon returns the display icon for a status.
func (s Status) Icon() string {
	switch s {
	case StatusLocked:
		return "🔒"
	case StatusAvailable:
		return "🔓"
	case StatusInProgress:
		return "📖"
	case StatusMastered:
		return "✅"
	default:
		return "?"
	}
}

// Mastery is the accumulated-evidence level derived from pass/fail history.
type Mastery string

const (
	MasteryNotStarted Mastery = "not_started"
	MasteryAttempting Mastery = "attempting"
	MasteryPracticing Mastery = "practicing"
	MasteryMastered   Mastery = "mastered"
)

// AllMasteryLevels returns the mastery levels in ascending order.
func AllMasteryLevels() []Mastery {
	return []Mastery{MasteryNotStarted, MasteryAttempting, MasteryPracticing, MasteryMastered}
}

// Skill is an atomic, independently assessable competence.
type Skill struct {
	ID      string
	QuestID string
	GoalID  string
	UserID  string

	Title            string
	Topic            string
	Topics           []string // topic tags used for relevance matching
	Action           string   // imperative statement of what to do
	SuccessSignal    string   // binary pass signal
	LockedVariables  []string // held constant to isolate the skill under test
	EstimatedMinutes int

	Type               SkillType
	Depth              int
	IsCompound         bool
	ComponentSkillIDs  []string
	ComponentQuestIDs  []string // quests other than QuestID that components belong to
	CombinationContext string

	PrerequisiteSkillIDs []string // may reference skills of any prior quest
	PrerequisiteQuestIDs []string

	WeekNumber int // goal-relative
	DayInWeek  int // 1..5
	DayInQuest int // 1-based, spans weeks
	Order      int // 1-based, monotonic within the quest

	Status            Status
	Mastery           Mastery
	PassCount         int
	FailCount         int
	ConsecutivePasses int
	UnlockedAt        *time.Time
	MasteredAt        *time.Time
	LastPracticedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64 // optimistic-concurrency token; 0 until first save
}

// IsSynthesis reports whether the skill is its quest's capstone.
func (s *Skill) IsSynthesis() bool { return s.Type == TypeSynthesis }

// HasPrerequisite reports whether id is a direct prerequisite of s.
func (s *Skill) HasPrerequisite(id string) bool {
	return slices.Contains(s.PrerequisiteSkillIDs, id)
}

// Clone returns a deep copy of s.
func (s *Skill) Clone() *Skill {
	if s == nil {
		return nil
	}
	c := *s
	c.Topics = slices.Clone(s.Topics)
	c.LockedVariables = slices.Clone(s.LockedVariables)
	c.ComponentSkillIDs = slices.Clone(s.ComponentSkillIDs)
	c.ComponentQuestIDs = slices.Clone(s.ComponentQuestIDs)
	c.PrerequisiteSkillIDs = slices.Clone(s.PrerequisiteSkillIDs)
	c.PrerequisiteQuestIDs = slices.Clone(s.PrerequisiteQuestIDs)
	c.UnlockedAt = cloneTime(s.UnlockedAt)
	c.MasteredAt = cloneTime(s.MasteredAt)
	c.LastPracticedAt = cloneTime(s.LastPracticedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
