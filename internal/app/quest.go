package app

import (
	"context"
	"time"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/treegen"
	"github.com/abhisek/questforge/internal/weekplan"
	"github.com/abhisek/questforge/internal/weektracker"
)

// StartOptions controls StartQuest.
type StartOptions struct {
	// Strict refuses a tree that produced validation warnings.
	Strict bool

	// StartDate of the first week; zero means today.
	StartDate time.Time

	// Competence is the weekly competence statement of the first week.
	Competence string
}

// QuestStart is the outcome of StartQuest.
type QuestStart struct {
	Tree *treegen.Result
	Week *weekplan.Plan

	// Activated is set when the first week became the goal's active week.
	Activated bool
}

// StartQuest generates the quest's skill tree, persists it with its
// milestone and plans the quest's first week. The week is activated when
// the goal has no active week. Prior skills of the goal are offered for
// cross-quest compounds unless in.PriorSkills is already set.
func (e *Engine) StartQuest(ctx context.Context, in treegen.Input, opts StartOptions) (*QuestStart, error) {
	const op = "quest.start"

	if in.PriorSkills == nil && in.GoalID != "" {
		prior, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
			return e.backend.Skills.ByGoal(ctx, in.GoalID, o)
		})
		if err != nil {
			return nil, apperr.StoreFailure(op, err)
		}
		in.PriorSkills = prior
	}

	tree, err := e.gen.Generate(ctx, in)
	if err != nil {
		return nil, err
	}
	if opts.Strict && len(tree.Warnings) > 0 {
		return nil, apperr.InvalidState(op, "skill tree has %d validation warnings; first: %s", len(tree.Warnings), tree.Warnings[0])
	}

	for _, s := range tree.Skills {
		if err := e.backend.Skills.Save(ctx, s); err != nil {
			return nil, apperr.StoreFailure(op, err)
		}
	}
	if err := e.backend.Milestones.Save(ctx, tree.Milestone); err != nil {
		return nil, apperr.StoreFailure(op, err)
	}

	res := &QuestStart{Tree: tree}
	firstWeek := tree.Skills[0].WeekNumber
	existing, err := e.backend.Weeks.ByWeekNumber(ctx, in.GoalID, firstWeek)
	switch {
	case err == nil:
		// The week was already planned by an earlier quest. Its skills are
		// picked up when that week completes.
		e.log.Info("week already planned", "goal_id", in.GoalID, "week", firstWeek, "plan_id", existing.ID)
		res.Week = existing
	case apperr.IsNotFound(err):
		res.Week, err = e.weeks.StartQuestWeek(ctx, weektracker.StartWeekInput{
			GoalID:     in.GoalID,
			UserID:     in.UserID,
			QuestID:    tree.QuestID,
			WeekNumber: firstWeek,
			StartDate:  opts.StartDate,
			Competence: opts.Competence,
			Skills:     tree.Skills,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperr.StoreFailure(op, err)
	}

	if res.Week.Status == weekplan.StatusPending {
		_, err = e.weeks.ActiveWeek(ctx, in.GoalID)
		switch {
		case apperr.IsNotFound(err):
			if res.Week, err = e.weeks.ActivateWeek(ctx, res.Week.ID); err != nil {
				return nil, err
			}
			res.Activated = true
		case err != nil:
			return nil, apperr.StoreFailure(op, err)
		}
	}

	e.log.Info("quest started", "quest_id", tree.QuestID, "goal_id", in.GoalID,
		"skills", len(tree.Skills), "warnings", len(tree.Warnings), "week", res.Week.WeekNumber, "activated", res.Activated)
	return res, nil
}

// QuestStatus is a quest's progress snapshot.
type QuestStatus struct {
	QuestID   string
	Skills    []*skillgraph.Skill // in quest order
	Milestone *skillgraph.Milestone
	Percent   float64 // mastered share of non-synthesis skills
	Locked    int
	Available int
	Mastered  int
}

// QuestStatus reports the quest's skills, milestone and mastery percent.
func (e *Engine) QuestStatus(ctx context.Context, questID string) (*QuestStatus, error) {
	const op = "quest.status"
	skills, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return e.backend.Skills.ByQuest(ctx, questID, o)
	})
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	if len(skills) == 0 {
		return nil, apperr.NotFound(op, "quest %q has no skills", questID)
	}

	st := &QuestStatus{QuestID: questID, Skills: skills}
	for _, s := range skills {
		switch s.Status {
		case skillgraph.StatusLocked:
			st.Locked++
		case skillgraph.StatusMastered:
			st.Mastered++
		default:
			st.Available++
		}
	}
	if st.Percent, err = e.mastery.GetQuestMasteryPercent(ctx, questID); err != nil {
		return nil, err
	}
	st.Milestone, err = e.backend.Milestones.ByQuest(ctx, questID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, apperr.StoreFailure(op, err)
	}
	return st, nil
}
