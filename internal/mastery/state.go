// Package mastery drives the per-skill mastery state machine from practice
// outcomes and triggers the unlock cascade when a skill becomes mastered.
package mastery

import (
	"fmt"
	"strings"

	"github.com/abhisek/questforge/internal/skillgraph"
)

// Outcome is the result of one practice session on a skill.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomePartial Outcome = "partial" // not an attempt for mastery purposes
	OutcomeSkipped Outcome = "skipped"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomePartial, OutcomeSkipped:
		return true
	}
	return false
}

// ParseOutcome parses a case-insensitive outcome name.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q (want pass, fail, partial or skipped)", s)
	}
	return o, nil
}

// Thresholds parameterise ComputeMastery.
type Thresholds struct {
	Mastered    int // passes needed for mastery
	Consecutive int // consecutive passes needed for mastery
	Practicing  int // passes needed for practicing
}

// DefaultThresholds returns the standard 3/2/1 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Mastered: 3, Consecutive: 2, Practicing: 1}
}

// Compute derives the mastery level from pass counters. With Practicing
// at 1 the attempting level is unreachable: any pass already qualifies as
// practicing.
func (t Thresholds) Compute(passCount, consecutivePasses int) skillgraph.Mastery {
	switch {
	case passCount >= t.Mastered && consecutivePasses >= t.Consecutive:
		return skillgraph.MasteryMastered
	case passCount >= t.Practicing:
		return skillgraph.MasteryPracticing
	case passCount >= 1:
		return skillgraph.MasteryAttempting
	default:
		return skillgraph.MasteryNotStarted
	}
}

// ComputeMastery applies the default thresholds.
func ComputeMastery(passCount, consecutivePasses int) skillgraph.Mastery {
	return DefaultThresholds().Compute(passCount, consecutivePasses)
}

// counters is the mutable part of a skill touched by an outcome.
type counters struct {
	pass, fail, consecutive int
}

func (c counters) apply(o Outcome) counters {
	switch o {
	case OutcomePass:
		c.pass++
		c.consecutive++
	case OutcomeFail:
		c.fail++
		c.consecutive = 0
	}
	return c
}

// nextStatus derives the skill status after a mastery change. A locked
// skill stays locked whatever its mastery; only the unlock cascade opens it.
func nextStatus(cur skillgraph.Status, m skillgraph.Mastery) skillgraph.Status {
	if cur == skillgraph.StatusLocked {
		return cur
	}
	switch m {
	case skillgraph.MasteryMastered:
		return skillgraph.StatusMastered
	case skillgraph.MasteryPracticing, skillgraph.MasteryAttempting:
		if cur == skillgraph.StatusAvailable || cur == skillgraph.StatusMastered {
			return skillgraph.StatusInProgress
		}
	}
	return cur
}

// Transition records a mastery level change for display and event logging.
type Transition struct {
	SkillID   string
	SkillName string
	From      skillgraph.Mastery
	To        skillgraph.Mastery
	Trigger   Outcome
}

// Regressed reports whether the skill lost its mastery.
func (t *Transition) Regressed() bool {
	return t.From == skillgraph.MasteryMastered && t.To != skillgraph.MasteryMastered
}
