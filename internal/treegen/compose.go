package treegen

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
)

// topicOverlap counts case-insensitive topic tags shared by a and b.
func topicOverlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	n := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		k := strings.ToLower(strings.TrimSpace(t))
		if set[k] && !seen[k] {
			n++
			seen[k] = true
		}
	}
	return n
}

// FindRelevantPriorSkills returns the prior skills whose topics intersect
// topics, plus every mastered prior skill regardless of topic. Results are
// ranked by overlap, then mastered first, then input order.
func FindRelevantPriorSkills(topics []string, prior []*skillgraph.Skill) []*skillgraph.Skill {
	type scored struct {
		skill   *skillgraph.Skill
		overlap int
		idx     int
	}
	var hits []scored
	for i, s := range prior {
		overlap := topicOverlap(topics, s.Topics)
		if overlap == 0 && s.Mastery != skillgraph.MasteryMastered {
			continue
		}
		hits = append(hits, scored{skill: s, overlap: overlap, idx: i})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		am, bm := a.skill.Mastery == skillgraph.MasteryMastered, b.skill.Mastery == skillgraph.MasteryMastered
		if am != bm {
			return am
		}
		return a.idx < b.idx
	})
	out := make([]*skillgraph.Skill, len(hits))
	for i, h := range hits {
		out[i] = h.skill
	}
	return out
}

// SkillContext carries the quest identity and stage text for a composed skill.
type SkillContext struct {
	ID         string
	QuestID    string
	GoalID     string
	UserID     string
	QuestTitle string
	Stage      Stage
	Budget     int // daily minutes
}

// CreateCompoundSkill integrates two or more component skills. The components
// become the prerequisites; components from other quests mark the skill as a
// cross-quest compound.
func CreateCompoundSkill(components []*skillgraph.Skill, sc SkillContext) (*skillgraph.Skill, error) {
	if len(components) < 2 {
		return nil, apperr.InvalidState("treegen.compound", "compound skill needs at least 2 components, got %d", len(components))
	}

	ids := make([]string, len(components))
	titles := make([]string, len(components))
	var topics, locked []string
	for i, c := range components {
		ids[i] = c.ID
		titles[i] = c.Title
		topics = appendUnique(topics, c.Topics...)
		locked = appendUnique(locked, c.LockedVariables...)
	}
	topics = appendUnique(topics, sc.Stage.Topics...)
	if len(sc.Stage.LockedVariables) > 0 {
		locked = slices.Clone(sc.Stage.LockedVariables)
	}

	title := sc.Stage.Title
	if title == "" {
		title = strings.Join(titles, " + ")
	}
	combination := fmt.Sprintf("Combine %s", joinAnd(titles))
	if sc.Stage.Capability != "" {
		combination += " to " + lowerFirst(sc.Stage.Capability)
	}

	s := &skillgraph.Skill{
		ID:                   sc.ID,
		QuestID:              sc.QuestID,
		GoalID:               sc.GoalID,
		UserID:               sc.UserID,
		Title:                title,
		Topic:                firstOr(topics, title),
		Topics:               topics,
		Action:               firstNonEmpty(sc.Stage.Action, combination),
		SuccessSignal:        successSignal(sc.Stage),
		LockedVariables:      locked,
		EstimatedMinutes:     estimate(sc.Stage, sc.Budget),
		Type:                 skillgraph.TypeCompound,
		Depth:                skillgraph.TypeCompound.Depth(),
		IsCompound:           true,
		ComponentSkillIDs:    ids,
		ComponentQuestIDs:    otherQuests(components, sc.QuestID),
		CombinationContext:   combination,
		PrerequisiteSkillIDs: slices.Clone(ids),
		PrerequisiteQuestIDs: questIDs(components),
		Status:               skillgraph.StatusLocked,
		Mastery:              skillgraph.MasteryNotStarted,
	}
	return s, nil
}

// CreateSynthesisSkill builds the quest capstone and its milestone. Every
// non-synthesis skill of the quest becomes a prerequisite.
func CreateSynthesisSkill(questSkills []*skillgraph.Skill, sc SkillContext, milestoneID string, requiredPercent float64) (*skillgraph.Skill, *skillgraph.Milestone, error) {
	var parts []*skillgraph.Skill
	for _, s := range questSkills {
		if s.QuestID == sc.QuestID && !s.IsSynthesis() {
			parts = append(parts, s)
		}
	}
	if len(parts) < 2 {
		return nil, nil, apperr.InvalidState("treegen.synthesis", "synthesis skill needs at least 2 quest skills, got %d", len(parts))
	}

	ids := make([]string, len(parts))
	var topics, locked, criteria []string
	for i, p := range parts {
		ids[i] = p.ID
		topics = appendUnique(topics, p.Topics...)
		locked = appendUnique(locked, p.LockedVariables...)
		if p.Type != skillgraph.TypeCompound && p.SuccessSignal != "" {
			criteria = appendUnique(criteria, p.SuccessSignal)
		}
	}

	artifact := firstNonEmpty(sc.Stage.Artifact, sc.QuestTitle)
	title := "Milestone: " + firstNonEmpty(sc.QuestTitle, artifact)
	action := firstNonEmpty(sc.Stage.Action, "Deliver "+lowerFirst(artifact)+" end to end")
	signal := firstNonEmpty(sc.Stage.SuccessSignal,
		fmt.Sprintf("All %d acceptance criteria for %s are met", len(criteria), firstNonEmpty(sc.QuestTitle, artifact)))
	minutes := estimate(sc.Stage, sc.Budget)

	s := &skillgraph.Skill{
		ID:                   sc.ID,
		QuestID:              sc.QuestID,
		GoalID:               sc.GoalID,
		UserID:               sc.UserID,
		Title:                title,
		Topic:                firstOr(topics, title),
		Topics:               topics,
		Action:               action,
		SuccessSignal:        signal,
		LockedVariables:      locked,
		EstimatedMinutes:     minutes,
		Type:                 skillgraph.TypeSynthesis,
		Depth:                skillgraph.TypeSynthesis.Depth(),
		IsCompound:           true,
		ComponentSkillIDs:    ids,
		CombinationContext:   "Integrates every skill of " + firstNonEmpty(sc.QuestTitle, "the quest"),
		PrerequisiteSkillIDs: slices.Clone(ids),
		PrerequisiteQuestIDs: []string{sc.QuestID},
		Status:               skillgraph.StatusLocked,
		Mastery:              skillgraph.MasteryNotStarted,
	}

	m := &skillgraph.Milestone{
		ID:                     milestoneID,
		QuestID:                sc.QuestID,
		GoalID:                 sc.GoalID,
		UserID:                 sc.UserID,
		SkillID:                s.ID,
		Title:                  firstNonEmpty(sc.QuestTitle, title),
		Description:            firstNonEmpty(sc.Stage.Capability, s.CombinationContext),
		Artifact:               artifact,
		AcceptanceCriteria:     criteria,
		EstimatedMinutes:       minutes,
		RequiredMasteryPercent: requiredPercent,
		Status:                 skillgraph.MilestoneLocked,
	}
	return s, m, nil
}

func successSignal(st Stage) string {
	if st.SuccessSignal != "" {
		return st.SuccessSignal
	}
	if st.Artifact != "" {
		return "Produces " + lowerFirst(st.Artifact) + " that works as described"
	}
	return ""
}

func estimate(st Stage, budget int) int {
	if st.EstimatedMinutes > 0 {
		return st.EstimatedMinutes
	}
	return budget
}

func otherQuests(skills []*skillgraph.Skill, questID string) []string {
	var out []string
	for _, s := range skills {
		if s.QuestID != questID {
			out = appendUnique(out, s.QuestID)
		}
	}
	return out
}

func questIDs(skills []*skillgraph.Skill) []string {
	var out []string
	for _, s := range skills {
		out = appendUnique(out, s.QuestID)
	}
	return out
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstOr(vals []string, fallback string) string {
	if len(vals) > 0 {
		return vals[0]
	}
	return fallback
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
