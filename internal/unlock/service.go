// Package unlock propagates availability through the skill graph. A skill
// becomes available once every prerequisite, in any quest of the goal, is
// mastered. Unlocking is monotonic: nothing here ever re-locks a skill.
package unlock

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
)

// PrerequisiteCheck is the resolved prerequisite state of one skill.
type PrerequisiteCheck struct {
	SkillID string
	Met     []string
	Unmet   []string
	Reasons []string // one per unmet id, same order
}

// Satisfied reports whether every prerequisite is mastered.
func (c *PrerequisiteCheck) Satisfied() bool { return len(c.Unmet) == 0 }

// Failure is a cascade candidate that could not be processed.
type Failure struct {
	SkillID string
	Err     error
}

// UnlockResult reports one cascade.
type UnlockResult struct {
	TriggerSkillID string
	Unlocked       []string
	Failed         []Failure
}

// MilestoneCheck reports a quest's progress toward its milestone.
type MilestoneCheck struct {
	QuestID     string
	MilestoneID string // empty when the quest has no milestone
	Mastered    int
	Total       int // non-synthesis skills
	Ratio       float64
	Required    float64
	Available   bool
	Unlocked    bool // flipped to available by this call
}

// LockedSkill is a locked skill with the prerequisites holding it back.
type LockedSkill struct {
	Skill       *skillgraph.Skill
	Outstanding []string
	Reasons     []string
}

// Service answers prerequisite questions and runs unlock cascades.
type Service struct {
	skills     store.SkillStore
	milestones store.MilestoneStore
	events     store.EventRepo
	log        *logging.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for unlock timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates an unlock service. events and logger may be nil.
func New(skills store.SkillStore, milestones store.MilestoneStore, events store.EventRepo, logger *logging.Logger, opts ...Option) *Service {
	s := &Service{
		skills:     skills,
		milestones: milestones,
		events:     events,
		log:        logging.OrNop(logger),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CheckPrerequisites resolves every prerequisite of skillID through the
// store. An id the store cannot find counts as unmet.
func (s *Service) CheckPrerequisites(ctx context.Context, skillID string) (*PrerequisiteCheck, error) {
	sk, err := s.skills.Get(ctx, skillID)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, sk)
}

func (s *Service) check(ctx context.Context, sk *skillgraph.Skill) (*PrerequisiteCheck, error) {
	c := &PrerequisiteCheck{SkillID: sk.ID}
	for _, id := range sk.PrerequisiteSkillIDs {
		p, err := s.skills.Get(ctx, id)
		switch {
		case apperr.IsNotFound(err):
			c.Unmet = append(c.Unmet, id)
			c.Reasons = append(c.Reasons, fmt.Sprintf("%q not found", id))
		case err != nil:
			return nil, apperr.StoreFailure("unlock.check", err)
		case p.Mastery == skillgraph.MasteryMastered:
			c.Met = append(c.Met, id)
		default:
			c.Unmet = append(c.Unmet, id)
			c.Reasons = append(c.Reasons, fmt.Sprintf("%q not yet mastered (%s)", p.Title, p.Mastery))
		}
	}
	return c, nil
}

// UnlockEligibleSkills runs the cascade after masteredSkillID reaches
// mastery. Every locked skill of the same goal that lists it as a
// prerequisite is re-checked and unlocked when all of its prerequisites are
// mastered. A skill practiced while locked lands on the status its mastery
// implies rather than available. Per-skill failures are logged and reported in
// the result without aborting the cascade. Running it twice is harmless.
func (s *Service) UnlockEligibleSkills(ctx context.Context, masteredSkillID string) (*UnlockResult, error) {
	mastered, err := s.skills.Get(ctx, masteredSkillID)
	if err != nil {
		return nil, err
	}
	locked, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return s.skills.Locked(ctx, mastered.GoalID, o)
	})
	if err != nil {
		return nil, apperr.StoreFailure("unlock.cascade", err)
	}

	res := &UnlockResult{TriggerSkillID: masteredSkillID}
	fail := func(id string, err error) {
		s.log.Warn("unlock candidate failed", "skill_id", id, "trigger", masteredSkillID, "error", err)
		res.Failed = append(res.Failed, Failure{SkillID: id, Err: err})
	}

	for _, cand := range locked {
		if !cand.HasPrerequisite(masteredSkillID) {
			continue
		}
		c, err := s.check(ctx, cand)
		if err != nil {
			fail(cand.ID, err)
			continue
		}
		if !c.Satisfied() {
			continue
		}
		swapped, err := s.skills.UpdateStatus(ctx, cand.ID, skillgraph.StatusLocked, unlockedStatus(cand.Mastery), s.now())
		if err != nil {
			fail(cand.ID, err)
			continue
		}
		if !swapped {
			// Someone else got there first.
			continue
		}
		res.Unlocked = append(res.Unlocked, cand.ID)
		s.appendEvent(ctx, store.UnlockEventData{
			SkillID:        cand.ID,
			GoalID:         cand.GoalID,
			TriggerSkillID: masteredSkillID,
		})
	}

	if len(res.Unlocked) > 0 || len(res.Failed) > 0 {
		s.log.Info("unlock cascade",
			"trigger", masteredSkillID,
			"goal_id", mastered.GoalID,
			"unlocked", len(res.Unlocked),
			"failed", len(res.Failed),
		)
	}
	return res, nil
}

func unlockedStatus(m skillgraph.Mastery) skillgraph.Status {
	switch m {
	case skillgraph.MasteryMastered:
		return skillgraph.StatusMastered
	case skillgraph.MasteryPracticing, skillgraph.MasteryAttempting:
		return skillgraph.StatusInProgress
	}
	return skillgraph.StatusAvailable
}

// CheckMilestoneAvailability compares the share of mastered non-synthesis
// skills of questID against required and marks the quest milestone
// available when the share is reached. required <= 0 uses the milestone's
// own threshold, or skillgraph.DefaultRequiredMasteryPercent.
func (s *Service) CheckMilestoneAvailability(ctx context.Context, questID string, required float64) (*MilestoneCheck, error) {
	const op = "unlock.milestone"
	skills, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return s.skills.ByQuest(ctx, questID, o)
	})
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}

	m, err := s.milestones.ByQuest(ctx, questID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, apperr.StoreFailure(op, err)
	}
	if required <= 0 {
		required = skillgraph.DefaultRequiredMasteryPercent
		if m != nil && m.RequiredMasteryPercent > 0 {
			required = m.RequiredMasteryPercent
		}
	}

	c := &MilestoneCheck{QuestID: questID, Required: required}
	for _, sk := range skills {
		if sk.IsSynthesis() {
			continue
		}
		c.Total++
		if sk.Mastery == skillgraph.MasteryMastered {
			c.Mastered++
		}
	}
	if c.Total > 0 {
		c.Ratio = float64(c.Mastered) / float64(c.Total)
	}
	c.Available = c.Total > 0 && c.Ratio >= required

	if m == nil {
		return c, nil
	}
	c.MilestoneID = m.ID
	if m.Status != skillgraph.MilestoneLocked {
		c.Available = true
		return c, nil
	}
	if !c.Available {
		return c, nil
	}
	swapped, err := s.milestones.UpdateStatus(ctx, m.ID, skillgraph.MilestoneLocked, skillgraph.MilestoneAvailable, s.now())
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	if swapped {
		c.Unlocked = true
		s.log.Info("milestone available", "quest_id", questID, "milestone_id", m.ID, "ratio", c.Ratio)
		s.appendEvent(ctx, store.UnlockEventData{MilestoneID: m.ID, GoalID: m.GoalID})
	}
	return c, nil
}

// CompleteMilestone marks the quest milestone completed once its synthesis
// skill is mastered. It reports whether this call completed it.
func (s *Service) CompleteMilestone(ctx context.Context, questID string) (bool, error) {
	const op = "unlock.complete_milestone"
	m, err := s.milestones.ByQuest(ctx, questID)
	if err != nil {
		return false, err
	}
	if m.Status == skillgraph.MilestoneCompleted {
		return false, nil
	}
	syn, err := s.skills.Get(ctx, m.SkillID)
	if err != nil {
		return false, err
	}
	if syn.Mastery != skillgraph.MasteryMastered {
		return false, apperr.InvalidState(op, "synthesis skill %q is %s", syn.ID, syn.Mastery)
	}

	now := s.now()
	if m.Status == skillgraph.MilestoneLocked {
		if _, err := s.milestones.UpdateStatus(ctx, m.ID, skillgraph.MilestoneLocked, skillgraph.MilestoneAvailable, now); err != nil {
			return false, apperr.StoreFailure(op, err)
		}
	}
	done, err := s.milestones.UpdateStatus(ctx, m.ID, skillgraph.MilestoneAvailable, skillgraph.MilestoneCompleted, now)
	if err != nil {
		return false, apperr.StoreFailure(op, err)
	}
	if done {
		s.log.Info("milestone completed", "quest_id", questID, "milestone_id", m.ID)
	}
	return done, nil
}

// LockedSkillsWithReasons lists every locked skill of goalID with the
// prerequisites still outstanding.
func (s *Service) LockedSkillsWithReasons(ctx context.Context, goalID string) ([]LockedSkill, error) {
	locked, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return s.skills.Locked(ctx, goalID, o)
	})
	if err != nil {
		return nil, apperr.StoreFailure("unlock.locked", err)
	}
	out := make([]LockedSkill, 0, len(locked))
	for _, sk := range locked {
		c, err := s.check(ctx, sk)
		if err != nil {
			return nil, err
		}
		out = append(out, LockedSkill{Skill: sk, Outstanding: c.Unmet, Reasons: c.Reasons})
	}
	return out, nil
}

func (s *Service) appendEvent(ctx context.Context, data store.UnlockEventData) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendUnlockEvent(ctx, data); err != nil {
		s.log.Warn("append unlock event", "skill_id", data.SkillID, "milestone_id", data.MilestoneID, "error", err)
	}
}
