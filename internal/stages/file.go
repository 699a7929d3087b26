// Package stages turns quest definitions into the stage descriptions the
// skill tree generator consumes: either read from a quest file or produced
// by an LLM decomposition of a free-text goal.
package stages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/questforge/internal/treegen"
)

// QuestFile is a quest definition on disk.
//
//	title: Log tooling
//	goal: Build a CLI that summarises server logs
//	level: beginner
//	daily_minutes: 30
//	duration: {practice_days: 10, week_start: 1}
//	stages:
//	  - title: Reading files
//	    capability: open and stream a file line by line
type QuestFile struct {
	Title        string          `yaml:"title" json:"title"`
	Goal         string          `yaml:"goal,omitempty" json:"goal,omitempty"`
	Level        string          `yaml:"level,omitempty" json:"level,omitempty"`
	DailyMinutes int             `yaml:"daily_minutes,omitempty" json:"daily_minutes,omitempty"`
	Duration     FileDuration    `yaml:"duration" json:"duration"`
	Stages       []treegen.Stage `yaml:"stages,omitempty" json:"stages,omitempty"`
}

type FileDuration struct {
	PracticeDays int `yaml:"practice_days" json:"practice_days"`
	WeekStart    int `yaml:"week_start,omitempty" json:"week_start,omitempty"`
	WeekEnd      int `yaml:"week_end,omitempty" json:"week_end,omitempty"`
}

// LoadFile reads a quest definition. Files ending in .json are decoded as
// JSON, everything else as YAML. Unknown keys are rejected.
func LoadFile(path string) (*QuestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quest file: %w", err)
	}
	qf, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return qf, nil
}

// Parse decodes a quest definition from YAML, or JSON when asJSON is set.
func Parse(data []byte, asJSON bool) (*QuestFile, error) {
	var qf QuestFile
	if asJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&qf); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&qf); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	qf.normalize()
	if err := qf.Validate(); err != nil {
		return nil, err
	}
	return &qf, nil
}

func (q *QuestFile) normalize() {
	q.Title = strings.TrimSpace(q.Title)
	q.Goal = strings.TrimSpace(q.Goal)
	if q.Duration.WeekStart == 0 {
		q.Duration.WeekStart = 1
	}
	for i := range q.Stages {
		q.Stages[i].Topics = normalizeTopics(q.Stages[i].Topics)
	}
}

// Validate checks the fields the generator cannot default.
func (q *QuestFile) Validate() error {
	switch {
	case q.Title == "":
		return fmt.Errorf("quest title is required")
	case q.Duration.PracticeDays <= 0:
		return fmt.Errorf("duration.practice_days must be positive, got %d", q.Duration.PracticeDays)
	case q.Duration.WeekStart < 1:
		return fmt.Errorf("duration.week_start must be at least 1, got %d", q.Duration.WeekStart)
	case q.Duration.WeekEnd != 0 && q.Duration.WeekEnd < q.Duration.WeekStart:
		return fmt.Errorf("duration.week_end %d precedes week_start %d", q.Duration.WeekEnd, q.Duration.WeekStart)
	case len(q.Stages) == 0 && q.Goal == "":
		return fmt.Errorf("quest needs stages or a goal to decompose")
	}
	return nil
}

// NeedsDecomposition reports whether stages must come from a Decomposer.
func (q *QuestFile) NeedsDecomposition() bool {
	return len(q.Stages) == 0
}

// Input builds generator input for the quest. Stages may be overridden by
// the caller after decomposition.
func (q *QuestFile) Input(userID, goalID string) treegen.Input {
	return treegen.Input{
		UserID:     userID,
		GoalID:     goalID,
		QuestTitle: q.Title,
		Stages:     q.Stages,
		Duration: treegen.Duration{
			PracticeDays: q.Duration.PracticeDays,
			WeekStart:    q.Duration.WeekStart,
			WeekEnd:      q.Duration.WeekEnd,
		},
		DailyMinutes: q.DailyMinutes,
		Level:        treegen.ParseLevel(q.Level),
	}
}

// Request builds a decomposition request from the file's goal.
func (q *QuestFile) Request() Request {
	return Request{
		QuestTitle:   q.Title,
		Goal:         q.Goal,
		Level:        treegen.ParseLevel(q.Level),
		PracticeDays: q.Duration.PracticeDays,
		DailyMinutes: q.DailyMinutes,
	}
}

func normalizeTopics(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
