package skillgraph

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Validate performs structural checks on a skill set: duplicate IDs,
// dangling prerequisites, and cycles. Prerequisite ids listed in external
// are skills of other quests and are not dangling.
// Returns a combined error describing all problems found, or nil if valid.
func Validate(skills []*Skill, external map[string]bool) error {
	var errs []string

	idSet := make(map[string]bool, len(skills))
	for _, s := range skills {
		if idSet[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate skill ID: %q", s.ID))
		}
		idSet[s.ID] = true
	}

	for _, s := range skills {
		for _, prereqID := range s.PrerequisiteSkillIDs {
			if prereqID == s.ID {
				errs = append(errs, fmt.Sprintf("skill %q lists itself as a prerequisite", s.ID))
				continue
			}
			if !idSet[prereqID] && !external[prereqID] {
				errs = append(errs, fmt.Sprintf("skill %q references nonexistent prerequisite %q", s.ID, prereqID))
			}
		}
	}

	if _, err := TopologicalOrder(skills, nil); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("skill graph validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// CheckInvariants verifies the lifecycle invariants of a freshly generated
// quest: foundation skills have no prerequisites and start available, every
// other skill has at least one prerequisite and starts locked, compound and
// synthesis skills have at least two components, and exactly one synthesis
// skill exists per quest at the highest order whose prerequisites are all of
// that quest's other skills.
func CheckInvariants(skills []*Skill) error {
	var errs []string

	byQuest := map[string][]*Skill{}
	for _, s := range skills {
		byQuest[s.QuestID] = append(byQuest[s.QuestID], s)

		switch {
		case s.Type == TypeFoundation:
			if len(s.PrerequisiteSkillIDs) != 0 {
				errs = append(errs, fmt.Sprintf("foundation skill %q has prerequisites", s.ID))
			}
			if s.Status != StatusAvailable {
				errs = append(errs, fmt.Sprintf("foundation skill %q starts %s, want available", s.ID, s.Status))
			}
		default:
			if len(s.PrerequisiteSkillIDs) == 0 {
				errs = append(errs, fmt.Sprintf("%s skill %q has no prerequisites", s.Type, s.ID))
			}
			if s.Status != StatusLocked {
				errs = append(errs, fmt.Sprintf("%s skill %q starts %s, want locked", s.Type, s.ID, s.Status))
			}
		}

		if (s.Type == TypeCompound || s.Type == TypeSynthesis) && len(s.ComponentSkillIDs) < 2 {
			errs = append(errs, fmt.Sprintf("%s skill %q has %d components, want >= 2", s.Type, s.ID, len(s.ComponentSkillIDs)))
		}
	}

	questIDs := make([]string, 0, len(byQuest))
	for id := range byQuest {
		questIDs = append(questIDs, id)
	}
	sort.Strings(questIDs)

	for _, questID := range questIDs {
		qs := byQuest[questID]
		var synth []*Skill
		var others []string
		maxOrder := 0
		for _, s := range qs {
			if s.Type == TypeSynthesis {
				synth = append(synth, s)
			} else {
				others = append(others, s.ID)
			}
			maxOrder = max(maxOrder, s.Order)
		}
		if len(synth) != 1 {
			errs = append(errs, fmt.Sprintf("quest %q has %d synthesis skills, want 1", questID, len(synth)))
			continue
		}
		if synth[0].Order != maxOrder {
			errs = append(errs, fmt.Sprintf("quest %q synthesis order %d is not the maximum %d", questID, synth[0].Order, maxOrder))
		}
		got := slices.Clone(synth[0].PrerequisiteSkillIDs)
		sort.Strings(got)
		sort.Strings(others)
		if !slices.Equal(got, others) {
			errs = append(errs, fmt.Sprintf("quest %q synthesis prerequisites %v, want %v", questID, got, others))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("skill invariants violated:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
