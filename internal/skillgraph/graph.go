package skillgraph

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Graph holds one quest's skills (or any closed set of skills) with
// precomputed indices. Prerequisite ids that fall outside the set reference
// skills of other quests; they are kept on the skills but do not take part in
// ordering.
type Graph struct {
	skills     []*Skill
	byID       map[string]*Skill
	dependents map[string][]string
	topoOrder  []*Skill
}

// Build constructs a Graph and its topological order. Ties are broken by
// less when non-nil, otherwise by ID. It fails if the set contains a cycle.
func Build(skills []*Skill, less func(a, b *Skill) bool) (*Graph, error) {
	gr := &Graph{
		skills:     skills,
		byID:       make(map[string]*Skill, len(skills)),
		dependents: make(map[string][]string),
	}
	for _, s := range skills {
		gr.byID[s.ID] = s
	}
	for _, s := range skills {
		for _, prereqID := range s.PrerequisiteSkillIDs {
			if _, ok := gr.byID[prereqID]; ok {
				gr.dependents[prereqID] = append(gr.dependents[prereqID], s.ID)
			}
		}
	}

	order, err := TopologicalOrder(skills, less)
	if err != nil {
		return nil, err
	}
	gr.topoOrder = order
	return gr, nil
}

// TopologicalOrder returns skills ordered so every skill follows its
// in-set prerequisites (Kahn's algorithm). Among ready skills the one
// ranked first by less is emitted next; less defaults to ID order.
func TopologicalOrder(skills []*Skill, less func(a, b *Skill) bool) ([]*Skill, error) {
	if less == nil {
		less = func(a, b *Skill) bool { return a.ID < b.ID }
	}

	byID := make(map[string]*Skill, len(skills))
	for _, s := range skills {
		byID[s.ID] = s
	}

	inDegree := make(map[string]int, len(skills))
	dependents := make(map[string][]string)
	for _, s := range skills {
		for _, prereqID := range s.PrerequisiteSkillIDs {
			if _, ok := byID[prereqID]; !ok {
				continue
			}
			inDegree[s.ID]++
			dependents[prereqID] = append(dependents[prereqID], s.ID)
		}
	}

	var ready []*Skill
	for _, s := range skills {
		if inDegree[s.ID] == 0 {
			ready = append(ready, s)
		}
	}

	order := make([]*Skill, 0, len(skills))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, depID := range dependents[next.ID] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				ready = append(ready, byID[depID])
			}
		}
	}

	if len(order) < len(skills) {
		var cycle []string
		for _, s := range skills {
			if inDegree[s.ID] > 0 {
				cycle = append(cycle, s.ID)
			}
		}
		sort.Strings(cycle)
		return nil, fmt.Errorf("cycle detected involving skills: %s", strings.Join(cycle, ", "))
	}
	return order, nil
}

// Get returns a skill by ID.
func (g *Graph) Get(id string) (*Skill, bool) {
	s, ok := g.byID[id]
	return s, ok
}

// Skills returns the skills in topological order.
func (g *Graph) Skills() []*Skill {
	return slices.Clone(g.topoOrder)
}

// Roots returns skills with no prerequisites at all.
func (g *Graph) Roots() []*Skill {
	var roots []*Skill
	for _, s := range g.topoOrder {
		if len(s.PrerequisiteSkillIDs) == 0 {
			roots = append(roots, s)
		}
	}
	return roots
}

// Dependents returns skills in the set that directly depend on id.
func (g *Graph) Dependents(id string) []*Skill {
	ids := g.dependents[id]
	out := make([]*Skill, 0, len(ids))
	for _, depID := range ids {
		out = append(out, g.byID[depID])
	}
	return out
}

// External returns prerequisite ids that reference skills outside the set,
// sorted and deduplicated.
func (g *Graph) External() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range g.skills {
		for _, id := range s.PrerequisiteSkillIDs {
			if _, ok := g.byID[id]; ok || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// IsUnlocked returns true if every prerequisite of id is in the mastered set.
func (g *Graph) IsUnlocked(id string, mastered map[string]bool) bool {
	s, ok := g.byID[id]
	if !ok {
		return false
	}
	for _, prereqID := range s.PrerequisiteSkillIDs {
		if !mastered[prereqID] {
			return false
		}
	}
	return true
}
