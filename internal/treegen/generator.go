// Package treegen turns a quest's stage descriptions into a typed,
// dependency-ordered, scheduled skill tree with a capstone milestone.
package treegen

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/skillgraph"
)

// minQuestSkills is the smallest tree: two skills for the synthesis to
// integrate plus the synthesis itself.
const minQuestSkills = 3

// Generator builds skill trees.
type Generator struct {
	cfg   Config
	log   *logging.Logger
	now   func() time.Time
	newID func() string
}

// New creates a Generator. Zero-valued config fields take their defaults.
func New(cfg Config, opts ...Option) *Generator {
	d := DefaultConfig()
	if cfg.Intermediate == (Mix{}) {
		cfg.Intermediate = d.Intermediate
	}
	if cfg.SkillsPerStage <= 0 {
		cfg.SkillsPerStage = d.SkillsPerStage
	}
	if cfg.MaxBuildingPrereqs <= 0 {
		cfg.MaxBuildingPrereqs = d.MaxBuildingPrereqs
	}
	if cfg.DaysPerWeek <= 0 {
		cfg.DaysPerWeek = d.DaysPerWeek
	}
	if cfg.MilestonePercent <= 0 {
		cfg.MilestonePercent = d.MilestonePercent
	}
	if cfg.DefaultEstimateMinutes <= 0 {
		cfg.DefaultEstimateMinutes = d.DefaultEstimateMinutes
	}
	g := &Generator{cfg: cfg, log: logging.Nop(), now: time.Now, newID: defaultID}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// Generate builds the skill tree for one quest. It fails only when the
// input cannot produce a valid tree; content problems are reported as
// warnings on the result.
func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	const op = "treegen.generate"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stages []Stage
	for _, st := range in.Stages {
		if st.Usable() {
			stages = append(stages, st)
		}
	}
	if len(stages) == 0 {
		return nil, apperr.InvalidState(op, "no usable stages among %d supplied", len(in.Stages))
	}

	target := g.target(len(stages), in.Duration)
	if target < minQuestSkills {
		return nil, apperr.InvalidState(op, "quest fits %d skills, need at least %d", target, minQuestSkills)
	}
	dist := distribute(target-1, g.cfg.MixFor(in.Level))

	questID := in.QuestID
	if questID == "" {
		questID = g.newID()
	}
	budget := in.DailyMinutes
	if budget <= 0 {
		budget = g.cfg.DefaultEstimateMinutes
	}

	b := &builder{
		g:       g,
		in:      in,
		questID: questID,
		budget:  budget,
		stages:  &stageCursor{stages: stages},
		prior:   priorSkills(in, questID),
		created: g.now(),
		used:    make(map[string]bool),
	}

	for range dist.Foundation {
		b.addFoundation()
	}
	for range dist.Building {
		b.addBuilding()
	}
	for i := range dist.Compound {
		if err := b.addCompound(i); err != nil {
			return nil, err
		}
	}
	milestone, err := b.addSynthesis()
	if err != nil {
		return nil, err
	}

	external := make(map[string]bool, len(b.prior))
	for _, p := range b.prior {
		external[p.ID] = true
	}
	if err := skillgraph.Validate(b.skills, external); err != nil {
		return nil, apperr.InvalidState(op, "%v", err)
	}
	ordered, err := g.schedule(b.skills, in.Duration.WeekStart)
	if err != nil {
		return nil, apperr.InvalidState(op, "%v", err)
	}

	res := &Result{
		QuestID:          questID,
		Skills:           ordered,
		Milestone:        milestone,
		CrossQuestSkills: b.crossQuest,
	}
	for _, s := range ordered {
		switch s.Type {
		case skillgraph.TypeFoundation:
			res.Distribution.Foundation++
			res.RootSkillIDs = append(res.RootSkillIDs, s.ID)
		case skillgraph.TypeBuilding:
			res.Distribution.Building++
		case skillgraph.TypeCompound:
			res.Distribution.Compound++
		case skillgraph.TypeSynthesis:
			res.Distribution.Synthesis++
			res.SynthesisSkillID = s.ID
		}
		res.Warnings = append(res.Warnings, ValidateSkill(s, in.DailyMinutes)...)
	}

	g.log.Info("skill tree generated",
		"quest_id", questID,
		"skills", len(ordered),
		"foundation", res.Distribution.Foundation,
		"building", res.Distribution.Building,
		"compound", res.Distribution.Compound,
		"cross_quest", len(res.CrossQuestSkills),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// target is the quest's skill count, synthesis included.
func (g *Generator) target(usable int, d Duration) int {
	n := usable*g.cfg.SkillsPerStage + 1
	if d.PracticeDays > 0 {
		n = min(n, d.PracticeDays)
	}
	if d.WeekStart > 0 && d.WeekEnd >= d.WeekStart {
		n = min(n, (d.WeekEnd-d.WeekStart+1)*g.cfg.DaysPerWeek)
	}
	return n
}

// schedule orders skills topologically (creation order breaks ties, the
// synthesis skill goes last) and maps each order to a calendar slot.
func (g *Generator) schedule(skills []*skillgraph.Skill, weekStart int) ([]*skillgraph.Skill, error) {
	rank := make(map[string]int, len(skills))
	for i, s := range skills {
		rank[s.ID] = i
	}
	ordered, err := skillgraph.TopologicalOrder(skills, func(a, b *skillgraph.Skill) bool {
		return rank[a.ID] < rank[b.ID]
	})
	if err != nil {
		return nil, err
	}
	if i := slices.IndexFunc(ordered, (*skillgraph.Skill).IsSynthesis); i >= 0 && i != len(ordered)-1 {
		syn := ordered[i]
		ordered = append(slices.Delete(ordered, i, i+1), syn)
	}

	weekStart = max(weekStart, 1)
	for i, s := range ordered {
		order := i + 1
		s.Order = order
		s.DayInQuest = order
		s.WeekNumber = weekStart + (order-1)/g.cfg.DaysPerWeek
		s.DayInWeek = (order-1)%g.cfg.DaysPerWeek + 1
	}
	return ordered, nil
}

// priorSkills returns the input's prior skills from other quests, narrowed
// to CompletedQuestIDs when given.
func priorSkills(in Input, questID string) []*skillgraph.Skill {
	var out []*skillgraph.Skill
	for _, s := range in.PriorSkills {
		if s.QuestID == questID {
			continue
		}
		if len(in.CompletedQuestIDs) > 0 && !slices.Contains(in.CompletedQuestIDs, s.QuestID) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// stageCursor hands out stages in order, wrapping into numbered rounds.
type stageCursor struct {
	stages []Stage
	next   int
}

func (c *stageCursor) take() Stage {
	st := c.stages[c.next%len(c.stages)]
	round := c.next/len(c.stages) + 1
	c.next++

	st.Topics = slices.Clone(st.Topics)
	st.LockedVariables = slices.Clone(st.LockedVariables)
	if st.Title == "" {
		st.Title = st.Capability
	}
	if round > 1 {
		st.Title = fmt.Sprintf("%s (round %d)", st.Title, round)
	}
	return st
}

// last returns the final usable stage, which frames the capstone.
func (c *stageCursor) last() Stage {
	return c.stages[len(c.stages)-1]
}

type builder struct {
	g       *Generator
	in      Input
	questID string
	budget  int
	stages  *stageCursor
	prior   []*skillgraph.Skill
	created time.Time

	skills     []*skillgraph.Skill
	pool       []*skillgraph.Skill // foundation and building skills
	used       map[string]bool     // prior skills already paired
	crossQuest []string
}

func (b *builder) base(st Stage, typ skillgraph.SkillType, verb string) *skillgraph.Skill {
	return &skillgraph.Skill{
		ID:               b.g.newID(),
		QuestID:          b.questID,
		GoalID:           b.in.GoalID,
		UserID:           b.in.UserID,
		Title:            st.Title,
		Topic:            firstOr(st.Topics, st.Title),
		Topics:           st.Topics,
		Action:           firstNonEmpty(st.Action, verb+" "+lowerFirst(st.Capability)),
		SuccessSignal:    successSignal(st),
		LockedVariables:  st.LockedVariables,
		EstimatedMinutes: estimate(st, b.budget),
		Type:             typ,
		Depth:            typ.Depth(),
		Mastery:          skillgraph.MasteryNotStarted,
		CreatedAt:        b.created,
		UpdatedAt:        b.created,
	}
}

func (b *builder) add(s *skillgraph.Skill) {
	s.CreatedAt, s.UpdatedAt = b.created, b.created
	b.skills = append(b.skills, s)
	if s.Type == skillgraph.TypeFoundation || s.Type == skillgraph.TypeBuilding {
		b.pool = append(b.pool, s)
	}
}

func (b *builder) addFoundation() {
	s := b.base(b.stages.take(), skillgraph.TypeFoundation, "Practice")
	s.Status = skillgraph.StatusAvailable
	b.add(s)
}

func (b *builder) addBuilding() {
	st := b.stages.take()
	prereqs := b.relevantPool(st.Topics)
	s := b.base(st, skillgraph.TypeBuilding, "Apply")
	s.Status = skillgraph.StatusLocked
	for _, p := range prereqs {
		s.PrerequisiteSkillIDs = append(s.PrerequisiteSkillIDs, p.ID)
	}
	s.PrerequisiteQuestIDs = []string{b.questID}
	b.add(s)
}

// relevantPool picks building prerequisites: the pool skills sharing the
// most topics with the stage, or the latest pool skill when none overlap.
func (b *builder) relevantPool(topics []string) []*skillgraph.Skill {
	type scored struct {
		skill   *skillgraph.Skill
		overlap int
		idx     int
	}
	var hits []scored
	for i, p := range b.pool {
		if n := topicOverlap(topics, p.Topics); n > 0 {
			hits = append(hits, scored{p, n, i})
		}
	}
	if len(hits) == 0 {
		return []*skillgraph.Skill{b.pool[len(b.pool)-1]}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].overlap != hits[j].overlap {
			return hits[i].overlap > hits[j].overlap
		}
		return hits[i].idx < hits[j].idx
	})
	var out []*skillgraph.Skill
	for _, h := range hits[:min(len(hits), b.g.cfg.MaxBuildingPrereqs)] {
		out = append(out, h.skill)
	}
	return out
}

// addCompound pairs the i-th pool skill (rotating) with the best unused
// relevant prior skill, or failing that its most related pool sibling.
func (b *builder) addCompound(i int) error {
	st := b.stages.take()
	idx := i % len(b.pool)
	primary := b.pool[idx]

	var partner *skillgraph.Skill
	topics := appendUnique(slices.Clone(primary.Topics), st.Topics...)
	for _, p := range FindRelevantPriorSkills(topics, b.prior) {
		if !b.used[p.ID] {
			partner = p
			b.used[p.ID] = true
			b.crossQuest = append(b.crossQuest, p.ID)
			break
		}
	}
	if partner == nil {
		partner = b.mostRelated(idx)
	}

	var components []*skillgraph.Skill
	if partner != nil {
		components = []*skillgraph.Skill{primary, partner}
	} else {
		components = []*skillgraph.Skill{primary}
	}
	s, err := CreateCompoundSkill(components, SkillContext{
		ID:         b.g.newID(),
		QuestID:    b.questID,
		GoalID:     b.in.GoalID,
		UserID:     b.in.UserID,
		QuestTitle: b.in.QuestTitle,
		Stage:      st,
		Budget:     b.budget,
	})
	if err != nil {
		return err
	}
	b.add(s)
	return nil
}

// mostRelated returns the pool skill sharing the most topics with
// pool[idx], scanning forward from idx so ties rotate.
func (b *builder) mostRelated(idx int) *skillgraph.Skill {
	n := len(b.pool)
	var best *skillgraph.Skill
	bestScore := -1
	for j := 1; j < n; j++ {
		cand := b.pool[(idx+j)%n]
		if score := topicOverlap(b.pool[idx].Topics, cand.Topics); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

func (b *builder) addSynthesis() (*skillgraph.Milestone, error) {
	last := b.stages.last()
	s, m, err := CreateSynthesisSkill(b.skills, SkillContext{
		ID:         b.g.newID(),
		QuestID:    b.questID,
		GoalID:     b.in.GoalID,
		UserID:     b.in.UserID,
		QuestTitle: b.in.QuestTitle,
		Stage:      Stage{Capability: last.Capability, Artifact: last.Artifact},
		Budget:     b.budget,
	}, b.g.newID(), b.g.cfg.MilestonePercent)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = b.created
	b.add(s)
	return m, nil
}
