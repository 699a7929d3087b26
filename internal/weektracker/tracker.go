// Package weektracker schedules skills into five-day week plans, accumulates
// drill progress, and rolls unfinished skills into the following week.
package weektracker

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/weekplan"
)

// Config tunes week planning.
type Config struct {
	Slots               int // day slots per plan
	ReviewThemeMinCarry int // carry-forward count that turns a week into review
	MaxRetries          int
}

// DefaultConfig returns the standard week settings.
func DefaultConfig() Config {
	return Config{Slots: weekplan.DaysPerWeek, ReviewThemeMinCarry: 3, MaxRetries: 3}
}

// Tracker owns the week-plan lifecycle.
type Tracker struct {
	skills store.SkillStore
	weeks  store.WeekPlanStore
	events store.EventRepo
	cfg    Config
	log    *logging.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIDs overrides uuid-based plan ids.
func WithIDs(next func() string) Option {
	return func(t *Tracker) { t.newID = next }
}

// New creates a Tracker. events and logger may be nil.
func New(skills store.SkillStore, weeks store.WeekPlanStore, events store.EventRepo, cfg Config, logger *logging.Logger, opts ...Option) *Tracker {
	d := DefaultConfig()
	if cfg.Slots <= 0 {
		cfg.Slots = d.Slots
	}
	if cfg.ReviewThemeMinCarry <= 0 {
		cfg.ReviewThemeMinCarry = d.ReviewThemeMinCarry
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	t := &Tracker{
		skills: skills,
		weeks:  weeks,
		events: events,
		cfg:    cfg,
		log:    logging.OrNop(logger),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// StartWeekInput describes the plan created when a quest starts.
type StartWeekInput struct {
	GoalID     string
	UserID     string
	QuestID    string
	WeekNumber int // goal-relative week to schedule
	StartDate  time.Time
	Competence string

	// Skills are the quest's skills. When nil they are loaded from the store.
	Skills []*skillgraph.Skill
}

// StartQuestWeek creates a pending plan holding the quest skills scheduled
// for in.WeekNumber, in order.
func (t *Tracker) StartQuestWeek(ctx context.Context, in StartWeekInput) (*weekplan.Plan, error) {
	const op = "week.start"
	skills := in.Skills
	if skills == nil {
		var err error
		skills, err = store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
			return t.skills.ByQuest(ctx, in.QuestID, o)
		})
		if err != nil {
			return nil, apperr.StoreFailure(op, err)
		}
	}

	var week []*skillgraph.Skill
	firstWeek, lastWeek := 0, 0
	for _, s := range skills {
		if firstWeek == 0 || s.WeekNumber < firstWeek {
			firstWeek = s.WeekNumber
		}
		lastWeek = max(lastWeek, s.WeekNumber)
		if s.WeekNumber == in.WeekNumber {
			week = append(week, s)
		}
	}
	if len(week) == 0 {
		return nil, apperr.InvalidState(op, "quest %q has no skills in week %d", in.QuestID, in.WeekNumber)
	}
	slices.SortStableFunc(week, func(a, b *skillgraph.Skill) int { return a.Order - b.Order })
	week = week[:min(len(week), t.cfg.Slots)]

	start := in.StartDate
	if start.IsZero() {
		start = t.now()
	}
	start = startOfDay(start)

	goalID, userID := in.GoalID, in.UserID
	if goalID == "" {
		goalID = week[0].GoalID
	}
	if userID == "" {
		userID = week[0].UserID
	}

	p := &weekplan.Plan{
		ID:                 t.newID(),
		GoalID:             goalID,
		UserID:             userID,
		QuestID:            in.QuestID,
		WeekNumber:         in.WeekNumber,
		WeekInQuest:        in.WeekNumber - firstWeek + 1,
		IsFirstWeekOfQuest: in.WeekNumber == firstWeek,
		IsLastWeekOfQuest:  in.WeekNumber == lastWeek,
		StartDate:          start,
		EndDate:            start.AddDate(0, 0, 6),
		Status:             weekplan.StatusPending,
		WeeklyCompetence:   in.Competence,
	}
	fillDays(p, nil, week)
	p.Theme = t.theme(nil, week)

	if err := t.weeks.Save(ctx, p); err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	t.log.Info("week planned", "plan_id", p.ID, "goal_id", p.GoalID, "week", p.WeekNumber, "skills", len(p.Days))
	return p, nil
}

// ActivateWeek moves a pending plan to active. Activating an active plan is
// a no-op; activating a completed plan, or a second plan while the goal has
// one active, is an InvalidState error.
func (t *Tracker) ActivateWeek(ctx context.Context, planID string) (*weekplan.Plan, error) {
	const op = "week.activate"
	p, err := t.weeks.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case weekplan.StatusActive:
		return p, nil
	case weekplan.StatusCompleted:
		return nil, apperr.InvalidState(op, "week plan %q is completed", planID)
	}

	active, err := t.weeks.ActiveByGoal(ctx, p.GoalID)
	switch {
	case err == nil:
		return nil, apperr.InvalidState(op, "goal %q already has active week %d", p.GoalID, active.WeekNumber)
	case !apperr.IsNotFound(err):
		return nil, apperr.StoreFailure(op, err)
	}

	if err := t.transition(ctx, p, weekplan.StatusPending, weekplan.StatusActive); err != nil {
		return nil, err
	}
	return t.weeks.Get(ctx, planID)
}

// transition swaps the plan status and records the week event.
func (t *Tracker) transition(ctx context.Context, p *weekplan.Plan, from, to weekplan.Status) error {
	ok, err := t.weeks.UpdateStatus(ctx, p.ID, from, to, t.now())
	if err != nil {
		return apperr.StoreFailure("week.transition", err)
	}
	if !ok {
		cur, err := t.weeks.Get(ctx, p.ID)
		if err != nil {
			return err
		}
		if cur.Status == to {
			return nil
		}
		return apperr.InvalidState("week.transition", "week plan %q is %s, want %s", p.ID, cur.Status, from)
	}
	t.log.Info("week transition", "plan_id", p.ID, "week", p.WeekNumber, "from", from, "to", to)
	if t.events != nil {
		err := t.events.AppendWeekEvent(ctx, store.WeekEventData{
			PlanID:     p.ID,
			GoalID:     p.GoalID,
			WeekNumber: p.WeekNumber,
			FromStatus: from,
			ToStatus:   to,
		})
		if err != nil {
			t.log.Warn("append week event", "plan_id", p.ID, "error", err)
		}
	}
	return nil
}

// UpdateProgress adds d to the plan's counters. Deltas accumulate.
func (t *Tracker) UpdateProgress(ctx context.Context, planID string, d weekplan.Delta) (*weekplan.Plan, error) {
	p, err := t.weeks.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.Status == weekplan.StatusCompleted {
		return nil, apperr.InvalidState("week.progress", "week plan %q is completed", planID)
	}
	if d.IsZero() {
		return p, nil
	}
	return t.weeks.UpdateProgress(ctx, planID, d)
}

// ActiveWeek returns the goal's active plan, or NotFound.
func (t *Tracker) ActiveWeek(ctx context.Context, goalID string) (*weekplan.Plan, error) {
	return t.weeks.ActiveByGoal(ctx, goalID)
}

// MarkDay sets the status of the day slot holding skillID. Completed days
// add the skill to the plan's completed list.
func (t *Tracker) MarkDay(ctx context.Context, planID, skillID string, status weekplan.DayStatus) (*weekplan.Plan, error) {
	const op = "week.mark_day"
	for attempt := 0; ; attempt++ {
		p, err := t.weeks.Get(ctx, planID)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(p.Days, func(d weekplan.Day) bool { return d.SkillID == skillID })
		if i < 0 {
			return nil, apperr.NotFound(op, "skill %q is not scheduled in week plan %q", skillID, planID)
		}
		if p.Days[i].Status == status {
			return p, nil
		}
		p.Days[i].Status = status
		if status == weekplan.DayCompleted && !slices.Contains(p.CompletedSkillIDs, skillID) {
			p.CompletedSkillIDs = append(p.CompletedSkillIDs, skillID)
		}
		err = t.weeks.Update(ctx, p)
		if err == nil {
			return p, nil
		}
		if !apperr.IsConflict(err) || attempt >= t.cfg.MaxRetries {
			return nil, err
		}
	}
}

func fillDays(p *weekplan.Plan, carry, fresh []*skillgraph.Skill) {
	p.Days = p.Days[:0]
	p.Counts = weekplan.Counts{}
	p.ScheduledSkillIDs, p.CarryForwardSkillIDs = nil, nil
	add := func(s *skillgraph.Skill, carried bool) {
		p.Days = append(p.Days, weekplan.Day{
			Day:            len(p.Days) + 1,
			Date:           p.StartDate.AddDate(0, 0, len(p.Days)),
			SkillID:        s.ID,
			SkillType:      s.Type,
			Status:         weekplan.DayPending,
			IsCarryForward: carried,
		})
		p.Counts.Add(s.Type)
	}
	for _, s := range carry {
		p.CarryForwardSkillIDs = append(p.CarryForwardSkillIDs, s.ID)
		add(s, true)
	}
	for _, s := range fresh {
		p.ScheduledSkillIDs = append(p.ScheduledSkillIDs, s.ID)
		add(s, false)
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
