package mastery

import (
	"context"
	"time"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/unlock"
)

// Unlocker is the part of the unlock service that mastery transitions drive.
type Unlocker interface {
	UnlockEligibleSkills(ctx context.Context, masteredSkillID string) (*unlock.UnlockResult, error)
	CheckMilestoneAvailability(ctx context.Context, questID string, required float64) (*unlock.MilestoneCheck, error)
	CompleteMilestone(ctx context.Context, questID string) (bool, error)
}

// Config tunes the service.
type Config struct {
	Thresholds Thresholds

	// MaxRetries bounds re-reads after a version conflict.
	MaxRetries int

	// MilestonePercent is used when the quest milestone carries no
	// threshold of its own.
	MilestonePercent float64
}

// DefaultConfig returns the standard mastery settings.
func DefaultConfig() Config {
	return Config{
		Thresholds:       DefaultThresholds(),
		MaxRetries:       3,
		MilestonePercent: skillgraph.DefaultRequiredMasteryPercent,
	}
}

// OutcomeResult reports what one recorded outcome changed.
type OutcomeResult struct {
	Skill      *skillgraph.Skill // state after the outcome
	Outcome    Outcome
	Transition *Transition // nil when the mastery level did not change
	FromStatus skillgraph.Status

	// Set only on a transition into mastered.
	Unlocked           []string
	UnlockFailures     []unlock.Failure
	MilestoneAvailable bool
	MilestoneUnlocked  bool
	MilestoneCompleted bool
}

// BecameMastered reports whether the outcome moved the skill into mastered.
func (r *OutcomeResult) BecameMastered() bool {
	return r.Transition != nil && r.Transition.To == skillgraph.MasteryMastered
}

// Service records practice outcomes.
type Service struct {
	skills     store.SkillStore
	unlocker   Unlocker
	milestones store.MilestoneStore
	events     store.EventRepo
	cfg        Config
	log        *logging.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a mastery service. events and logger may be nil.
func New(skills store.SkillStore, unlocker Unlocker, milestones store.MilestoneStore, events store.EventRepo, cfg Config, logger *logging.Logger, opts ...Option) *Service {
	d := DefaultConfig()
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = d.Thresholds
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MilestonePercent <= 0 {
		cfg.MilestonePercent = d.MilestonePercent
	}
	s := &Service{
		skills:     skills,
		unlocker:   unlocker,
		milestones: milestones,
		events:     events,
		cfg:        cfg,
		log:        logging.OrNop(logger),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RecordOutcome applies one practice outcome to skillID. The counter update
// is an optimistic read-modify-write retried up to MaxRetries times on a
// version conflict. A transition into mastered runs the unlock cascade and
// the milestone check; when those fail the outcome itself stays committed
// and the partial result is returned together with the error.
func (s *Service) RecordOutcome(ctx context.Context, skillID string, outcome Outcome) (*OutcomeResult, error) {
	const op = "mastery.record"
	if !outcome.Valid() {
		return nil, apperr.InvalidState(op, "unknown outcome %q", outcome)
	}

	var res *OutcomeResult
	for attempt := 0; ; attempt++ {
		var err error
		res, err = s.apply(ctx, skillID, outcome)
		if err == nil {
			break
		}
		if !apperr.IsConflict(err) || attempt >= s.cfg.MaxRetries {
			return nil, err
		}
		s.log.Debug("mastery update conflict, retrying", "skill_id", skillID, "attempt", attempt+1)
	}

	sk := res.Skill
	s.appendEvent(ctx, res)
	if res.Transition != nil {
		s.log.Info("mastery transition",
			"skill_id", sk.ID,
			"from", res.Transition.From,
			"to", res.Transition.To,
			"outcome", outcome,
		)
	}
	if !res.BecameMastered() || s.unlocker == nil {
		return res, nil
	}

	cascade, err := s.unlocker.UnlockEligibleSkills(ctx, sk.ID)
	if err != nil {
		return res, err
	}
	res.Unlocked = cascade.Unlocked
	res.UnlockFailures = cascade.Failed

	check, err := s.unlocker.CheckMilestoneAvailability(ctx, sk.QuestID, s.milestonePercent(ctx, sk.QuestID))
	if err != nil {
		return res, err
	}
	res.MilestoneAvailable = check.Available
	res.MilestoneUnlocked = check.Unlocked

	if sk.IsSynthesis() {
		done, err := s.unlocker.CompleteMilestone(ctx, sk.QuestID)
		if err != nil && !apperr.IsNotFound(err) {
			return res, err
		}
		res.MilestoneCompleted = done
	}
	return res, nil
}

func (s *Service) apply(ctx context.Context, skillID string, outcome Outcome) (*OutcomeResult, error) {
	sk, err := s.skills.Get(ctx, skillID)
	if err != nil {
		return nil, err
	}

	c := counters{pass: sk.PassCount, fail: sk.FailCount, consecutive: sk.ConsecutivePasses}.apply(outcome)
	mastery := s.cfg.Thresholds.Compute(c.pass, c.consecutive)
	status := nextStatus(sk.Status, mastery)
	now := s.now().UTC()

	u := store.MasteryUpdate{
		Mastery:           mastery,
		Status:            status,
		PassCount:         c.pass,
		FailCount:         c.fail,
		ConsecutivePasses: c.consecutive,
		MasteredAt:        sk.MasteredAt,
		LastPracticedAt:   sk.LastPracticedAt,
		ExpectedVersion:   sk.Version,
	}
	if outcome != OutcomeSkipped {
		u.LastPracticedAt = &now
	}
	if mastery == skillgraph.MasteryMastered && sk.Mastery != skillgraph.MasteryMastered {
		u.MasteredAt = &now
	}
	if err := s.skills.UpdateMastery(ctx, skillID, u); err != nil {
		return nil, err
	}

	res := &OutcomeResult{Outcome: outcome, FromStatus: sk.Status}
	if mastery != sk.Mastery {
		res.Transition = &Transition{
			SkillID:   sk.ID,
			SkillName: sk.Title,
			From:      sk.Mastery,
			To:        mastery,
			Trigger:   outcome,
		}
	}

	sk.Mastery = mastery
	sk.Status = status
	sk.PassCount, sk.FailCount, sk.ConsecutivePasses = c.pass, c.fail, c.consecutive
	sk.MasteredAt = u.MasteredAt
	sk.LastPracticedAt = u.LastPracticedAt
	sk.Version++
	res.Skill = sk
	return res, nil
}

// milestonePercent prefers the quest milestone's own threshold.
func (s *Service) milestonePercent(ctx context.Context, questID string) float64 {
	if s.milestones != nil {
		if m, err := s.milestones.ByQuest(ctx, questID); err == nil && m.RequiredMasteryPercent > 0 {
			return m.RequiredMasteryPercent
		}
	}
	return s.cfg.MilestonePercent
}

func (s *Service) appendEvent(ctx context.Context, res *OutcomeResult) {
	if s.events == nil {
		return
	}
	sk := res.Skill
	from := sk.Mastery
	if res.Transition != nil {
		from = res.Transition.From
	}
	err := s.events.AppendMasteryEvent(ctx, store.MasteryEventData{
		SkillID:           sk.ID,
		GoalID:            sk.GoalID,
		QuestID:           sk.QuestID,
		Outcome:           string(res.Outcome),
		FromMastery:       from,
		ToMastery:         sk.Mastery,
		FromStatus:        res.FromStatus,
		ToStatus:          sk.Status,
		PassCount:         sk.PassCount,
		FailCount:         sk.FailCount,
		ConsecutivePasses: sk.ConsecutivePasses,
	})
	if err != nil {
		s.log.Warn("append mastery event", "skill_id", sk.ID, "error", err)
	}
}

// History returns the recorded outcomes of a skill, oldest first.
func (s *Service) History(ctx context.Context, skillID string, opts store.QueryOpts) ([]store.MasteryEventRecord, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events.MasteryEvents(ctx, skillID, opts)
}
