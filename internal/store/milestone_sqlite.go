package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
)

var milestoneColumns = []string{
	"id", "quest_id", "goal_id", "user_id", "skill_id",
	"title", "description", "artifact", "acceptance_criteria", "estimated_minutes", "required_mastery_percent",
	"status", "unlocked_at", "completed_at", "created_at", "version",
}

func scanMilestone(row rowScanner) (*skillgraph.Milestone, error) {
	var (
		m                       skillgraph.Milestone
		criteria, status        string
		unlockedAt, completedAt sql.NullString
		createdAt               string
	)
	err := row.Scan(
		&m.ID, &m.QuestID, &m.GoalID, &m.UserID, &m.SkillID,
		&m.Title, &m.Description, &m.Artifact, &criteria, &m.EstimatedMinutes, &m.RequiredMasteryPercent,
		&status, &unlockedAt, &completedAt, &createdAt, &m.Version,
	)
	if err != nil {
		return nil, err
	}
	m.Status = skillgraph.MilestoneStatus(status)
	if m.AcceptanceCriteria, err = decodeList[string](criteria); err != nil {
		return nil, err
	}
	if m.UnlockedAt, err = parseNullTime(unlockedAt); err != nil {
		return nil, err
	}
	if m.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

type milestoneRepo struct{ s *SQLite }

func (r *milestoneRepo) one(ctx context.Context, op string, pred *entsql.Predicate, format string, args ...any) (*skillgraph.Milestone, error) {
	b := builder()
	q, qargs := b.Select(milestoneColumns...).From(b.Table(milestonesTable)).Where(pred).OrderBy("seq").Limit(1).Query()
	m, err := scanMilestone(r.s.db.QueryRowContext(ctx, q, qargs...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(op, format, args...)
	}
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	return m, nil
}

func (r *milestoneRepo) Get(ctx context.Context, id string) (*skillgraph.Milestone, error) {
	return r.one(ctx, "milestone.get", entsql.EQ("id", id), "milestone %q", id)
}

func (r *milestoneRepo) ByQuest(ctx context.Context, questID string) (*skillgraph.Milestone, error) {
	return r.one(ctx, "milestone.by_quest", entsql.EQ("quest_id", questID), "no milestone for quest %q", questID)
}

func (r *milestoneRepo) Save(ctx context.Context, m *skillgraph.Milestone) error {
	if exists, err := rowExists(ctx, r.s.db, milestonesTable, m.ID); err != nil {
		return apperr.StoreFailure("milestone.save", err)
	} else if exists {
		return apperr.Conflict("milestone.save", "milestone %q already exists", m.ID)
	}
	seq, err := r.s.seq.Next(ctx)
	if err != nil {
		return apperr.StoreFailure("milestone.save", err)
	}
	NormalizeMilestone(m, r.s.now())
	m.Version = 1

	q, args := builder().Insert(milestonesTable).
		Columns(append([]string{"seq"}, milestoneColumns...)...).
		Values(seq, m.ID, m.QuestID, m.GoalID, m.UserID, m.SkillID,
			m.Title, m.Description, m.Artifact, encodeList(m.AcceptanceCriteria), m.EstimatedMinutes, m.RequiredMasteryPercent,
			string(m.Status), formatNullTime(m.UnlockedAt), formatNullTime(m.CompletedAt), formatTime(m.CreatedAt), m.Version).
		Query()
	if _, err := r.s.db.ExecContext(ctx, q, args...); err != nil {
		m.Version = 0
		return apperr.StoreFailure("milestone.save", fmt.Errorf("insert milestone %q: %w", m.ID, err))
	}
	return nil
}

func (r *milestoneRepo) UpdateStatus(ctx context.Context, id string, from, to skillgraph.MilestoneStatus, at time.Time) (bool, error) {
	u := builder().Update(milestonesTable).Set("status", string(to)).Add("version", 1)
	switch to {
	case skillgraph.MilestoneAvailable:
		u.Set("unlocked_at", formatTime(at))
	case skillgraph.MilestoneCompleted:
		u.Set("completed_at", formatTime(at))
	}
	u.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(from))))
	q, args := u.Query()
	res, err := r.s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, apperr.StoreFailure("milestone.update_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.StoreFailure("milestone.update_status", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
