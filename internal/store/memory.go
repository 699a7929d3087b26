package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/weekplan"
)

// Memory is a map-backed implementation of every store contract. Values are
// deep-copied on the way in and out so callers never share state with it.
type Memory struct {
	mu  sync.Mutex
	seq int64
	now func() time.Time

	skills     map[string]*memSkill
	plans      map[string]*memPlan
	milestones map[string]*memMilestone

	masteryEvents []MasteryEventRecord
	unlockEvents  []UnlockEventData
	weekEvents    []WeekEventData
	llmEvents     []LLMRequestEventData
}

type memSkill struct {
	seq   int64
	skill *skillgraph.Skill
}

type memPlan struct {
	seq  int64
	plan *weekplan.Plan
}

type memMilestone struct {
	seq       int64
	milestone *skillgraph.Milestone
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		skills:     make(map[string]*memSkill),
		plans:      make(map[string]*memPlan),
		milestones: make(map[string]*memMilestone),
	}
}

// Backend exposes m through the Backend bundle.
func (m *Memory) Backend() *Backend {
	return NewBackend(memSkills{m}, memWeeks{m}, memMilestones{m}, m, nil)
}

func (m *Memory) next() int64 {
	m.seq++
	return m.seq
}

// Skills returns the memory store's SkillStore.
func (m *Memory) Skills() SkillStore { return memSkills{m} }

// Weeks returns the memory store's WeekPlanStore.
func (m *Memory) Weeks() WeekPlanStore { return memWeeks{m} }

// Milestones returns the memory store's MilestoneStore.
func (m *Memory) Milestones() MilestoneStore { return memMilestones{m} }

// --- skills ---

type memSkills struct{ m *Memory }

func (r memSkills) Get(_ context.Context, id string) (*skillgraph.Skill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.skills[id]
	if !ok {
		return nil, apperr.NotFound("skill.get", "skill %q", id)
	}
	return e.skill.Clone(), nil
}

func (r memSkills) Save(_ context.Context, s *skillgraph.Skill) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.skills[s.ID]; ok {
		return apperr.Conflict("skill.save", "skill %q already exists", s.ID)
	}
	NormalizeSkill(s, r.m.now())
	s.Version = 1
	r.m.skills[s.ID] = &memSkill{seq: r.m.next(), skill: s.Clone()}
	return nil
}

func (r memSkills) Update(_ context.Context, s *skillgraph.Skill) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.skills[s.ID]
	if !ok {
		return apperr.NotFound("skill.update", "skill %q", s.ID)
	}
	if e.skill.Version != s.Version {
		return apperr.Conflict("skill.update", "skill %q at version %d, have %d", s.ID, e.skill.Version, s.Version)
	}
	NormalizeSkill(s, r.m.now())
	s.Version++
	e.skill = s.Clone()
	return nil
}

func (r memSkills) UpdateMastery(_ context.Context, id string, u MasteryUpdate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.skills[id]
	if !ok {
		return apperr.NotFound("skill.update_mastery", "skill %q", id)
	}
	s := e.skill
	if u.ExpectedVersion != 0 && s.Version != u.ExpectedVersion {
		return apperr.Conflict("skill.update_mastery", "skill %q at version %d, expected %d", id, s.Version, u.ExpectedVersion)
	}
	s.Mastery = u.Mastery
	s.Status = u.Status
	s.PassCount = u.PassCount
	s.FailCount = u.FailCount
	s.ConsecutivePasses = u.ConsecutivePasses
	s.MasteredAt = utcPtr(u.MasteredAt)
	s.LastPracticedAt = utcPtr(u.LastPracticedAt)
	s.UpdatedAt = r.m.now().UTC()
	s.Version++
	return nil
}

func (r memSkills) UpdateStatus(_ context.Context, id string, from, to skillgraph.Status, at time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.skills[id]
	if !ok {
		return false, apperr.NotFound("skill.update_status", "skill %q", id)
	}
	s := e.skill
	if s.Status != from {
		return false, nil
	}
	s.Status = to
	if from == skillgraph.StatusLocked && to != from {
		s.UnlockedAt = utcPtr(&at)
	}
	s.UpdatedAt = r.m.now().UTC()
	s.Version++
	return true, nil
}

func (r memSkills) list(opts ListOpts, keep func(*skillgraph.Skill) bool) (Page[*skillgraph.Skill], error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var matched []*memSkill
	for _, e := range r.m.skills {
		if keep(e.skill) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b *memSkill) int {
		return cmp.Or(cmp.Compare(a.seq, b.seq), cmp.Compare(a.skill.Order, b.skill.Order))
	})
	lo, hi := Window(len(matched), opts)
	items := make([]*skillgraph.Skill, 0, hi-lo)
	for _, e := range matched[lo:hi] {
		items = append(items, e.skill.Clone())
	}
	return NewPage(items, len(matched), opts), nil
}

func (r memSkills) ByQuest(_ context.Context, questID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(opts, func(s *skillgraph.Skill) bool { return s.QuestID == questID })
}

func (r memSkills) ByGoal(_ context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(opts, func(s *skillgraph.Skill) bool { return s.GoalID == goalID })
}

func (r memSkills) ByUser(_ context.Context, userID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(opts, func(s *skillgraph.Skill) bool { return s.UserID == userID })
}

func (r memSkills) ByStatus(_ context.Context, goalID string, status skillgraph.Status, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(opts, func(s *skillgraph.Skill) bool { return s.GoalID == goalID && s.Status == status })
}

func (r memSkills) ByType(_ context.Context, questID string, typ skillgraph.SkillType, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(opts, func(s *skillgraph.Skill) bool { return s.QuestID == questID && s.Type == typ })
}

func (r memSkills) Available(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.ByStatus(ctx, goalID, skillgraph.StatusAvailable, opts)
}

func (r memSkills) Locked(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.ByStatus(ctx, goalID, skillgraph.StatusLocked, opts)
}

// --- week plans ---

type memWeeks struct{ m *Memory }

func (r memWeeks) Get(_ context.Context, id string) (*weekplan.Plan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.plans[id]
	if !ok {
		return nil, apperr.NotFound("week.get", "week plan %q", id)
	}
	return e.plan.Clone(), nil
}

func (r memWeeks) Save(_ context.Context, p *weekplan.Plan) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.plans[p.ID]; ok {
		return apperr.Conflict("week.save", "week plan %q already exists", p.ID)
	}
	NormalizePlan(p, r.m.now())
	p.Version = 1
	r.m.plans[p.ID] = &memPlan{seq: r.m.next(), plan: p.Clone()}
	return nil
}

func (r memWeeks) Update(_ context.Context, p *weekplan.Plan) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.plans[p.ID]
	if !ok {
		return apperr.NotFound("week.update", "week plan %q", p.ID)
	}
	if e.plan.Version != p.Version {
		return apperr.Conflict("week.update", "week plan %q at version %d, have %d", p.ID, e.plan.Version, p.Version)
	}
	NormalizePlan(p, r.m.now())
	p.Version++
	e.plan = p.Clone()
	return nil
}

func (r memWeeks) UpdateStatus(_ context.Context, id string, from, to weekplan.Status, at time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.plans[id]
	if !ok {
		return false, apperr.NotFound("week.update_status", "week plan %q", id)
	}
	p := e.plan
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	if to == weekplan.StatusCompleted {
		p.CompletedAt = utcPtr(&at)
	}
	p.UpdatedAt = r.m.now().UTC()
	p.Version++
	return true, nil
}

func (r memWeeks) UpdateProgress(_ context.Context, id string, d weekplan.Delta) (*weekplan.Plan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.plans[id]
	if !ok {
		return nil, apperr.NotFound("week.update_progress", "week plan %q", id)
	}
	p := e.plan
	p.Progress = p.Progress.Apply(d)
	p.PassRate = p.Progress.PassRate()
	p.UpdatedAt = r.m.now().UTC()
	p.Version++
	return p.Clone(), nil
}

func (r memWeeks) sorted(keep func(*weekplan.Plan) bool) []*memPlan {
	var matched []*memPlan
	for _, e := range r.m.plans {
		if keep(e.plan) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b *memPlan) int {
		return cmp.Or(cmp.Compare(a.plan.WeekNumber, b.plan.WeekNumber), cmp.Compare(a.seq, b.seq))
	})
	return matched
}

func (r memWeeks) ActiveByGoal(_ context.Context, goalID string) (*weekplan.Plan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	matched := r.sorted(func(p *weekplan.Plan) bool {
		return p.GoalID == goalID && p.Status == weekplan.StatusActive
	})
	if len(matched) == 0 {
		return nil, apperr.NotFound("week.active", "no active week for goal %q", goalID)
	}
	return matched[0].plan.Clone(), nil
}

func (r memWeeks) ByWeekNumber(_ context.Context, goalID string, week int) (*weekplan.Plan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	matched := r.sorted(func(p *weekplan.Plan) bool {
		return p.GoalID == goalID && p.WeekNumber == week
	})
	if len(matched) == 0 {
		return nil, apperr.NotFound("week.by_number", "week %d of goal %q", week, goalID)
	}
	return matched[0].plan.Clone(), nil
}

func (r memWeeks) ByGoal(_ context.Context, goalID string, opts ListOpts) (Page[*weekplan.Plan], error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	matched := r.sorted(func(p *weekplan.Plan) bool { return p.GoalID == goalID })
	lo, hi := Window(len(matched), opts)
	items := make([]*weekplan.Plan, 0, hi-lo)
	for _, e := range matched[lo:hi] {
		items = append(items, e.plan.Clone())
	}
	return NewPage(items, len(matched), opts), nil
}

// --- milestones ---

type memMilestones struct{ m *Memory }

func (r memMilestones) Get(_ context.Context, id string) (*skillgraph.Milestone, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.milestones[id]
	if !ok {
		return nil, apperr.NotFound("milestone.get", "milestone %q", id)
	}
	return e.milestone.Clone(), nil
}

func (r memMilestones) Save(_ context.Context, ms *skillgraph.Milestone) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.milestones[ms.ID]; ok {
		return apperr.Conflict("milestone.save", "milestone %q already exists", ms.ID)
	}
	NormalizeMilestone(ms, r.m.now())
	ms.Version = 1
	r.m.milestones[ms.ID] = &memMilestone{seq: r.m.next(), milestone: ms.Clone()}
	return nil
}

func (r memMilestones) ByQuest(_ context.Context, questID string) (*skillgraph.Milestone, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var found *memMilestone
	for _, e := range r.m.milestones {
		if e.milestone.QuestID == questID && (found == nil || e.seq < found.seq) {
			found = e
		}
	}
	if found == nil {
		return nil, apperr.NotFound("milestone.by_quest", "no milestone for quest %q", questID)
	}
	return found.milestone.Clone(), nil
}

func (r memMilestones) UpdateStatus(_ context.Context, id string, from, to skillgraph.MilestoneStatus, at time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.milestones[id]
	if !ok {
		return false, apperr.NotFound("milestone.update_status", "milestone %q", id)
	}
	ms := e.milestone
	if ms.Status != from {
		return false, nil
	}
	ms.Status = to
	switch to {
	case skillgraph.MilestoneAvailable:
		ms.UnlockedAt = utcPtr(&at)
	case skillgraph.MilestoneCompleted:
		ms.CompletedAt = utcPtr(&at)
	}
	ms.Version++
	return true, nil
}

// --- events ---

func (m *Memory) AppendMasteryEvent(_ context.Context, data MasteryEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masteryEvents = append(m.masteryEvents, MasteryEventRecord{
		Sequence:         m.next(),
		Timestamp:        m.now().UTC(),
		MasteryEventData: data,
	})
	return nil
}

func (m *Memory) AppendUnlockEvent(_ context.Context, data UnlockEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next()
	m.unlockEvents = append(m.unlockEvents, data)
	return nil
}

func (m *Memory) AppendWeekEvent(_ context.Context, data WeekEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next()
	m.weekEvents = append(m.weekEvents, data)
	return nil
}

func (m *Memory) AppendLLMRequest(_ context.Context, data LLMRequestEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next()
	m.llmEvents = append(m.llmEvents, data)
	return nil
}

func (m *Memory) MasteryEvents(_ context.Context, skillID string, opts QueryOpts) ([]MasteryEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MasteryEventRecord
	for _, ev := range m.masteryEvents {
		if ev.SkillID != skillID || ev.Sequence <= opts.After {
			continue
		}
		out = append(out, ev)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// UnlockEvents returns a copy of the recorded unlock events.
func (m *Memory) UnlockEvents() []UnlockEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.unlockEvents)
}

// WeekEvents returns a copy of the recorded week events.
func (m *Memory) WeekEvents() []WeekEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.weekEvents)
}

// LLMRequests returns a copy of the recorded LLM request events.
func (m *Memory) LLMRequests() []LLMRequestEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.llmEvents)
}
