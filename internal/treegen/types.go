package treegen

import (
	"strings"

	"github.com/abhisek/questforge/internal/skillgraph"
)

// Level is the learner's self-reported proficiency.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel maps free text to a Level, defaulting to intermediate.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner
	case LevelAdvanced:
		return LevelAdvanced
	default:
		return LevelIntermediate
	}
}

// Stage is one step of a quest's decomposition, supplied by the content
// collaborator. Only Capability is required; the optional skill text fields
// are copied onto the skills generated from the stage.
type Stage struct {
	Title              string   `json:"title" yaml:"title"`
	Capability         string   `json:"capability" yaml:"capability"`
	Artifact           string   `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	IntentionalFailure string   `json:"intentional_failure,omitempty" yaml:"intentional_failure,omitempty"`
	Consequence        string   `json:"consequence,omitempty" yaml:"consequence,omitempty"`
	Recovery           string   `json:"recovery,omitempty" yaml:"recovery,omitempty"`
	Topics             []string `json:"topics,omitempty" yaml:"topics,omitempty"`

	Action           string   `json:"action,omitempty" yaml:"action,omitempty"`
	SuccessSignal    string   `json:"success_signal,omitempty" yaml:"success_signal,omitempty"`
	LockedVariables  []string `json:"locked_variables,omitempty" yaml:"locked_variables,omitempty"`
	EstimatedMinutes int      `json:"estimated_minutes,omitempty" yaml:"estimated_minutes,omitempty"`
}

// Usable reports whether the stage can seed skills.
func (s Stage) Usable() bool {
	return strings.TrimSpace(s.Capability) != ""
}

// Duration is the quest's place on the goal calendar.
type Duration struct {
	PracticeDays int
	WeekStart    int // goal-relative, 1-based
	WeekEnd      int // 0 = open-ended
}

// Input is everything Generate needs for one quest.
type Input struct {
	UserID     string
	GoalID     string
	QuestID    string // generated when empty
	QuestTitle string

	Stages       []Stage
	Duration     Duration
	DailyMinutes int
	Level        Level

	// PriorSkills are skills of earlier quests available for cross-quest
	// compounds. CompletedQuestIDs narrows them when non-empty.
	PriorSkills       []*skillgraph.Skill
	CompletedQuestIDs []string
}

// Distribution counts skills per type.
type Distribution struct {
	Foundation int
	Building   int
	Compound   int
	Synthesis  int
}

// Total returns the number of skills across all types.
func (d Distribution) Total() int {
	return d.Foundation + d.Building + d.Compound + d.Synthesis
}

// Warning is a non-fatal validation finding on a generated skill.
type Warning struct {
	SkillID string
	Title   string
	Rule    string
	Message string
}

func (w Warning) String() string {
	return w.Title + ": " + w.Message
}

// Result is a generated quest.
type Result struct {
	QuestID          string
	Skills           []*skillgraph.Skill // in order
	SynthesisSkillID string
	RootSkillIDs     []string
	Distribution     Distribution
	Milestone        *skillgraph.Milestone
	CrossQuestSkills []string // prior skill ids used as components
	Warnings         []Warning
}
