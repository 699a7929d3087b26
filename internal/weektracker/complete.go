package weektracker

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/weekplan"
)

// ReviewTheme names weeks dominated by carried-forward skills.
const ReviewTheme = "Review & Reinforce"

// Completion is the outcome of closing a week.
type Completion struct {
	Plan          *weekplan.Plan
	CarryForward  []*skillgraph.Skill
	Mastered      int
	Practicing    int // practicing or attempting
	NotStarted    int
	Summary       string
	NextWeekFocus string

	// Next is the activated follow-up week; nil when nothing is left to
	// schedule.
	Next *weekplan.Plan
}

// Finished reports whether the goal has nothing left to schedule.
func (c *Completion) Finished() bool { return c.Next == nil }

// CompleteWeek closes an active plan: it carries attempted-but-unmastered
// skills forward, writes the weekly summary, marks the plan completed, and
// creates and activates the next week when any skill remains.
func (t *Tracker) CompleteWeek(ctx context.Context, planID string) (*Completion, error) {
	const op = "week.complete"
	p, err := t.weeks.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.Status != weekplan.StatusActive {
		return nil, apperr.InvalidState(op, "week plan %q is %s, want active", planID, p.Status)
	}

	skills := make([]*skillgraph.Skill, 0, len(p.SkillIDs()))
	for _, id := range p.SkillIDs() {
		s, err := t.skills.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}

	c := &Completion{Plan: p}
	for _, s := range skills {
		switch s.Mastery {
		case skillgraph.MasteryMastered:
			c.Mastered++
			if !slices.Contains(p.CompletedSkillIDs, s.ID) {
				p.CompletedSkillIDs = append(p.CompletedSkillIDs, s.ID)
			}
		case skillgraph.MasteryNotStarted:
			c.NotStarted++
		default:
			c.Practicing++
			c.CarryForward = append(c.CarryForward, s)
		}
	}
	c.Summary = weeklySummary(p, c, len(skills))
	c.NextWeekFocus = nextWeekFocus(c.CarryForward, c.NotStarted)

	p.Summary = c.Summary
	p.NextWeekFocus = c.NextWeekFocus
	if err := t.weeks.Update(ctx, p); err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	if err := t.transition(ctx, p, weekplan.StatusActive, weekplan.StatusCompleted); err != nil {
		return nil, err
	}
	if c.Plan, err = t.weeks.Get(ctx, planID); err != nil {
		return nil, err
	}

	next, err := t.nextWeek(ctx, c.Plan, c.CarryForward)
	if err != nil {
		return c, err
	}
	c.Next = next
	return c, nil
}

// nextWeek builds the follow-up plan: carry-forward first, then the goal's
// unmastered skills not held by a pending or active week, in order, until the
// slots are full.
func (t *Tracker) nextWeek(ctx context.Context, prev *weekplan.Plan, carry []*skillgraph.Skill) (*weekplan.Plan, error) {
	const op = "week.next"
	goalSkills, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return t.skills.ByGoal(ctx, prev.GoalID, o)
	})
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	plans, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*weekplan.Plan], error) {
		return t.weeks.ByGoal(ctx, prev.GoalID, o)
	})
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}

	// Skills held by a closed week are free again unless they carry forward.
	scheduled := make(map[string]bool)
	for _, pl := range plans {
		if pl.Status == weekplan.StatusCompleted {
			continue
		}
		for _, id := range pl.SkillIDs() {
			scheduled[id] = true
		}
	}
	for _, s := range carry {
		scheduled[s.ID] = true
	}
	var unscheduled []*skillgraph.Skill
	for _, s := range goalSkills {
		if !scheduled[s.ID] && s.Mastery != skillgraph.MasteryMastered {
			unscheduled = append(unscheduled, s)
		}
	}

	carry = carry[:min(len(carry), t.cfg.Slots)]
	fresh := unscheduled[:min(len(unscheduled), max(0, t.cfg.Slots-len(carry)))]

	// A pending plan may already exist for the week, e.g. a quest started
	// ahead of time. The carry-forward is merged into it.
	if existing, err := t.weeks.ByWeekNumber(ctx, prev.GoalID, prev.WeekNumber+1); err == nil {
		if existing.Status != weekplan.StatusPending {
			return nil, apperr.InvalidState(op, "week %d of goal %q is already %s", existing.WeekNumber, prev.GoalID, existing.Status)
		}
		return t.mergeInto(ctx, existing, carry)
	} else if !apperr.IsNotFound(err) {
		return nil, apperr.StoreFailure(op, err)
	}

	if len(carry) == 0 && len(fresh) == 0 {
		t.log.Info("no skills left to schedule", "goal_id", prev.GoalID, "week", prev.WeekNumber)
		return nil, nil
	}

	questID := prev.QuestID
	if len(fresh) > 0 {
		questID = fresh[0].QuestID
	}
	weekInQuest := 1
	if questID == prev.QuestID {
		weekInQuest = prev.WeekInQuest + 1
	}
	remaining := false
	for _, s := range unscheduled[len(fresh):] {
		if s.QuestID == questID {
			remaining = true
			break
		}
	}

	p := &weekplan.Plan{
		ID:                 t.newID(),
		GoalID:             prev.GoalID,
		UserID:             prev.UserID,
		QuestID:            questID,
		WeekNumber:         prev.WeekNumber + 1,
		WeekInQuest:        weekInQuest,
		IsFirstWeekOfQuest: weekInQuest == 1,
		IsLastWeekOfQuest:  !remaining,
		StartDate:          prev.StartDate.AddDate(0, 0, 7),
		EndDate:            prev.EndDate.AddDate(0, 0, 7),
		Status:             weekplan.StatusPending,
		WeeklyCompetence:   prev.WeeklyCompetence,
	}
	fillDays(p, carry, fresh)
	p.Theme = t.theme(carry, fresh)

	if err := t.weeks.Save(ctx, p); err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	t.log.Info("week planned",
		"plan_id", p.ID,
		"goal_id", p.GoalID,
		"week", p.WeekNumber,
		"carry_forward", len(carry),
		"new", len(fresh),
	)
	return t.ActivateWeek(ctx, p.ID)
}

// mergeInto puts carry ahead of a pending plan's own skills. Scheduled
// skills pushed past the last slot become unscheduled again.
func (t *Tracker) mergeInto(ctx context.Context, p *weekplan.Plan, carry []*skillgraph.Skill) (*weekplan.Plan, error) {
	if len(carry) > 0 {
		var own []*skillgraph.Skill
		for _, id := range p.ScheduledSkillIDs {
			if slices.ContainsFunc(carry, func(s *skillgraph.Skill) bool { return s.ID == id }) {
				continue
			}
			s, err := t.skills.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			own = append(own, s)
		}
		own = own[:min(len(own), max(0, t.cfg.Slots-len(carry)))]
		fillDays(p, carry, own)
		p.Theme = t.theme(carry, own)
		if err := t.weeks.Update(ctx, p); err != nil {
			return nil, apperr.StoreFailure("week.merge", err)
		}
	}
	return t.ActivateWeek(ctx, p.ID)
}

// theme names the week after its dominant content.
func (t *Tracker) theme(carry, fresh []*skillgraph.Skill) string {
	if len(carry) >= t.cfg.ReviewThemeMinCarry || (len(fresh) == 0 && len(carry) > 0) {
		return ReviewTheme
	}
	var counts weekplan.Counts
	for _, s := range fresh {
		counts.Add(s.Type)
	}
	topic := fresh[0].Topic
	if topic == "" {
		topic = fresh[0].Title
	}
	switch {
	case counts.Synthesis > 0:
		return "Milestone: " + fresh[len(fresh)-1].Title
	case counts.Compound >= max(counts.Foundation, counts.Building):
		return "Combining Skills: " + topic
	case counts.Building >= counts.Foundation:
		return "Building On " + topic
	default:
		return "Foundations: " + topic
	}
}

func weeklySummary(p *weekplan.Plan, c *Completion, total int) string {
	return fmt.Sprintf("Week %d: %d of %d skills mastered, %d practicing, %d not started. Pass rate %.0f%%. Theme: %s.",
		p.WeekNumber, c.Mastered, total, c.Practicing, c.NotStarted, p.PassRate*100, p.Theme)
}

// maxFocusNames bounds how many carried skills the focus message names.
const maxFocusNames = 3

func nextWeekFocus(carry []*skillgraph.Skill, notStarted int) string {
	switch {
	case len(carry) == 0 && notStarted == 1:
		return "1 skill was not started this week. It comes back as new material."
	case len(carry) == 0 && notStarted > 1:
		return fmt.Sprintf("%d skills were not started this week. They come back as new material.", notStarted)
	}
	switch len(carry) {
	case 0:
		return "Every skill this week is settled. You're ready to advance to new material."
	case 1:
		return fmt.Sprintf("Focus on %q next week to lock it in.", carry[0].Title)
	}
	names := make([]string, 0, maxFocusNames)
	for _, s := range carry[:min(len(carry), maxFocusNames)] {
		names = append(names, fmt.Sprintf("%q", s.Title))
	}
	msg := fmt.Sprintf("Reinforce %d skills next week: %s", len(carry), strings.Join(names, ", "))
	if extra := len(carry) - maxFocusNames; extra > 0 {
		msg += fmt.Sprintf(" and %d more", extra)
	}
	return msg + "."
}
