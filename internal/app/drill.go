package app

import (
	"context"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/mastery"
	"github.com/abhisek/questforge/internal/weekplan"
	"github.com/abhisek/questforge/internal/weektracker"
)

// DrillResult is the outcome of RecordDrill.
type DrillResult struct {
	*mastery.OutcomeResult

	// Week is the goal's active plan after the progress update, nil when
	// the goal has no active week.
	Week *weekplan.Plan
}

// RecordDrill records one practice outcome, then adds it to the goal's
// active week and marks the skill's day slot.
func (e *Engine) RecordDrill(ctx context.Context, skillID string, outcome mastery.Outcome) (*DrillResult, error) {
	const op = "drill.record"
	out, err := e.mastery.RecordOutcome(ctx, skillID, outcome)
	if out == nil {
		return nil, err
	}
	res := &DrillResult{OutcomeResult: out}
	if err != nil {
		return res, err
	}

	plan, err := e.weeks.ActiveWeek(ctx, out.Skill.GoalID)
	if apperr.IsNotFound(err) {
		return res, nil
	}
	if err != nil {
		return res, apperr.StoreFailure(op, err)
	}

	if res.Week, err = e.weeks.UpdateProgress(ctx, plan.ID, drillDelta(outcome, out.BecameMastered())); err != nil {
		return res, err
	}
	if day, ok := dayStatus(outcome); ok {
		week, err := e.weeks.MarkDay(ctx, plan.ID, skillID, day)
		switch {
		case err == nil:
			res.Week = week
		case apperr.IsNotFound(err):
			// practised outside its scheduled week
		default:
			return res, err
		}
	}
	return res, nil
}

func drillDelta(o mastery.Outcome, mastered bool) weekplan.Delta {
	var d weekplan.Delta
	switch o {
	case mastery.OutcomePass:
		d.Completed, d.Passed = 1, 1
	case mastery.OutcomeFail:
		d.Completed, d.Failed = 1, 1
	case mastery.OutcomePartial:
		d.Completed = 1
	case mastery.OutcomeSkipped:
		d.Skipped = 1
	}
	if mastered {
		d.Mastered = 1
	}
	return d
}

func dayStatus(o mastery.Outcome) (weekplan.DayStatus, bool) {
	switch o {
	case mastery.OutcomePass:
		return weekplan.DayCompleted, true
	case mastery.OutcomeSkipped:
		return weekplan.DaySkipped, true
	}
	return "", false
}

// CompleteWeek completes the goal's active week and plans the next one.
func (e *Engine) CompleteWeek(ctx context.Context, goalID string) (*weektracker.Completion, error) {
	plan, err := e.weeks.ActiveWeek(ctx, goalID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.InvalidState("week.complete", "goal %q has no active week", goalID)
		}
		return nil, err
	}
	return e.weeks.CompleteWeek(ctx, plan.ID)
}

// GoalSummary is the goal-level dashboard.
type GoalSummary struct {
	Mastery *mastery.Summary
	Week    *weekplan.Plan // active week, nil when none
}

// Summary aggregates the goal's mastery and its active week.
func (e *Engine) Summary(ctx context.Context, goalID string) (*GoalSummary, error) {
	sum, err := e.mastery.GetMasterySummary(ctx, goalID)
	if err != nil {
		return nil, err
	}
	res := &GoalSummary{Mastery: sum}
	res.Week, err = e.weeks.ActiveWeek(ctx, goalID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, apperr.StoreFailure("goal.summary", err)
	}
	return res, nil
}
