package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
)

var skillColumns = []string{
	"id", "quest_id", "goal_id", "user_id",
	"title", "topic", "topics", "action", "success_signal", "locked_variables", "estimated_minutes",
	"skill_type", "depth", "is_compound", "component_skill_ids", "component_quest_ids", "combination_context",
	"prerequisite_skill_ids", "prerequisite_quest_ids",
	"week_number", "day_in_week", "day_in_quest", "order_index",
	"status", "mastery", "pass_count", "fail_count", "consecutive_passes",
	"unlocked_at", "mastered_at", "last_practiced_at",
	"created_at", "updated_at", "version",
}

// skillValues returns the column values of s in skillColumns order.
func skillValues(s *skillgraph.Skill) []any {
	return []any{
		s.ID, s.QuestID, s.GoalID, s.UserID,
		s.Title, s.Topic, encodeList(s.Topics), s.Action, s.SuccessSignal, encodeList(s.LockedVariables), s.EstimatedMinutes,
		string(s.Type), s.Depth, boolInt(s.IsCompound), encodeList(s.ComponentSkillIDs), encodeList(s.ComponentQuestIDs), s.CombinationContext,
		encodeList(s.PrerequisiteSkillIDs), encodeList(s.PrerequisiteQuestIDs),
		s.WeekNumber, s.DayInWeek, s.DayInQuest, s.Order,
		string(s.Status), string(s.Mastery), s.PassCount, s.FailCount, s.ConsecutivePasses,
		formatNullTime(s.UnlockedAt), formatNullTime(s.MasteredAt), formatNullTime(s.LastPracticedAt),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt), s.Version,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSkill(row rowScanner) (*skillgraph.Skill, error) {
	var (
		s                                  skillgraph.Skill
		topics, lockedVars, compIDs, compQ string
		prereqIDs, prereqQ                 string
		typ, status, mastery               string
		isCompound                         int
		unlockedAt, masteredAt, practiced  sql.NullString
		createdAt, updatedAt               string
	)
	err := row.Scan(
		&s.ID, &s.QuestID, &s.GoalID, &s.UserID,
		&s.Title, &s.Topic, &topics, &s.Action, &s.SuccessSignal, &lockedVars, &s.EstimatedMinutes,
		&typ, &s.Depth, &isCompound, &compIDs, &compQ, &s.CombinationContext,
		&prereqIDs, &prereqQ,
		&s.WeekNumber, &s.DayInWeek, &s.DayInQuest, &s.Order,
		&status, &mastery, &s.PassCount, &s.FailCount, &s.ConsecutivePasses,
		&unlockedAt, &masteredAt, &practiced,
		&createdAt, &updatedAt, &s.Version,
	)
	if err != nil {
		return nil, err
	}
	s.Type = skillgraph.SkillType(typ)
	s.Status = skillgraph.Status(status)
	s.Mastery = skillgraph.Mastery(mastery)
	s.IsCompound = isCompound != 0

	for _, f := range []struct {
		dst *[]string
		src string
	}{
		{&s.Topics, topics},
		{&s.LockedVariables, lockedVars},
		{&s.ComponentSkillIDs, compIDs},
		{&s.ComponentQuestIDs, compQ},
		{&s.PrerequisiteSkillIDs, prereqIDs},
		{&s.PrerequisiteQuestIDs, prereqQ},
	} {
		if *f.dst, err = decodeList[string](f.src); err != nil {
			return nil, err
		}
	}
	if s.UnlockedAt, err = parseNullTime(unlockedAt); err != nil {
		return nil, err
	}
	if s.MasteredAt, err = parseNullTime(masteredAt); err != nil {
		return nil, err
	}
	if s.LastPracticedAt, err = parseNullTime(practiced); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

type skillRepo struct{ s *SQLite }

func (r *skillRepo) Get(ctx context.Context, id string) (*skillgraph.Skill, error) {
	b := builder()
	q, args := b.Select(skillColumns...).From(b.Table(skillsTable)).Where(entsql.EQ("id", id)).Query()
	sk, err := scanSkill(r.s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("skill.get", "skill %q", id)
	}
	if err != nil {
		return nil, apperr.StoreFailure("skill.get", err)
	}
	return sk, nil
}

func (r *skillRepo) Save(ctx context.Context, sk *skillgraph.Skill) error {
	if exists, err := r.exists(ctx, sk.ID); err != nil {
		return apperr.StoreFailure("skill.save", err)
	} else if exists {
		return apperr.Conflict("skill.save", "skill %q already exists", sk.ID)
	}
	seq, err := r.s.seq.Next(ctx)
	if err != nil {
		return apperr.StoreFailure("skill.save", err)
	}
	NormalizeSkill(sk, r.s.now())
	sk.Version = 1

	cols := append([]string{"seq"}, skillColumns...)
	vals := append([]any{seq}, skillValues(sk)...)
	q, args := builder().Insert(skillsTable).Columns(cols...).Values(vals...).Query()
	if _, err := r.s.db.ExecContext(ctx, q, args...); err != nil {
		sk.Version = 0
		return apperr.StoreFailure("skill.save", fmt.Errorf("insert skill %q: %w", sk.ID, err))
	}
	return nil
}

func (r *skillRepo) exists(ctx context.Context, id string) (bool, error) {
	return rowExists(ctx, r.s.db, skillsTable, id)
}

func (r *skillRepo) Update(ctx context.Context, sk *skillgraph.Skill) error {
	prev := sk.Version
	NormalizeSkill(sk, r.s.now())
	u := builder().Update(skillsTable)
	vals := skillValues(sk)
	for i, col := range skillColumns {
		switch col {
		case "id", "version":
			continue
		}
		u.Set(col, vals[i])
	}
	u.Add("version", 1).Where(entsql.And(entsql.EQ("id", sk.ID), entsql.EQ("version", prev)))
	if err := r.execVersioned(ctx, "skill.update", sk.ID, prev, u); err != nil {
		return err
	}
	sk.Version = prev + 1
	return nil
}

func (r *skillRepo) UpdateMastery(ctx context.Context, id string, m MasteryUpdate) error {
	preds := []*entsql.Predicate{entsql.EQ("id", id)}
	if m.ExpectedVersion != 0 {
		preds = append(preds, entsql.EQ("version", m.ExpectedVersion))
	}
	u := builder().Update(skillsTable).
		Set("mastery", string(m.Mastery)).
		Set("status", string(m.Status)).
		Set("pass_count", m.PassCount).
		Set("fail_count", m.FailCount).
		Set("consecutive_passes", m.ConsecutivePasses).
		Set("mastered_at", formatNullTime(m.MasteredAt)).
		Set("last_practiced_at", formatNullTime(m.LastPracticedAt)).
		Set("updated_at", formatTime(r.s.now())).
		Add("version", 1).
		Where(entsql.And(preds...))
	return r.execVersioned(ctx, "skill.update_mastery", id, m.ExpectedVersion, u)
}

// execVersioned runs an optimistic update and classifies a zero-row result
// as NotFound or Conflict.
func (r *skillRepo) execVersioned(ctx context.Context, op, id string, expected int64, u *entsql.UpdateBuilder) error {
	q, args := u.Query()
	res, err := r.s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return apperr.StoreFailure(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.StoreFailure(op, err)
	}
	if n > 0 {
		return nil
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Conflict(op, "skill %q at version %d, expected %d", id, current.Version, expected)
}

func (r *skillRepo) UpdateStatus(ctx context.Context, id string, from, to skillgraph.Status, at time.Time) (bool, error) {
	u := builder().Update(skillsTable).
		Set("status", string(to)).
		Set("updated_at", formatTime(r.s.now())).
		Add("version", 1)
	if from == skillgraph.StatusLocked && to != from {
		u.Set("unlocked_at", formatTime(at))
	}
	u.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(from))))
	q, args := u.Query()
	res, err := r.s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, apperr.StoreFailure("skill.update_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.StoreFailure("skill.update_status", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *skillRepo) list(ctx context.Context, op string, pred *entsql.Predicate, opts ListOpts) (Page[*skillgraph.Skill], error) {
	b := builder()
	var total int
	cq, cargs := b.Select(entsql.Count("*")).From(b.Table(skillsTable)).Where(pred).Query()
	if err := r.s.db.QueryRowContext(ctx, cq, cargs...).Scan(&total); err != nil {
		return Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}

	sel := b.Select(skillColumns...).From(b.Table(skillsTable)).Where(pred).OrderBy("seq", "order_index")
	paginate(sel, opts)
	q, args := sel.Query()
	rows, err := r.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}
	defer rows.Close()

	var items []*skillgraph.Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
		}
		items = append(items, sk)
	}
	if err := rows.Err(); err != nil {
		return Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}
	return NewPage(items, total, opts), nil
}

// paginate applies opts to sel. SQLite needs a LIMIT whenever OFFSET is set.
func paginate(sel *entsql.Selector, opts ListOpts) {
	switch {
	case opts.Limit > 0:
		sel.Limit(opts.Limit)
	case opts.Offset > 0:
		sel.Limit(math.MaxInt32)
	}
	if opts.Offset > 0 {
		sel.Offset(opts.Offset)
	}
}

func (r *skillRepo) ByQuest(ctx context.Context, questID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_quest", entsql.EQ("quest_id", questID), opts)
}

func (r *skillRepo) ByGoal(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_goal", entsql.EQ("goal_id", goalID), opts)
}

func (r *skillRepo) ByUser(ctx context.Context, userID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_user", entsql.EQ("user_id", userID), opts)
}

func (r *skillRepo) ByStatus(ctx context.Context, goalID string, status skillgraph.Status, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_status",
		entsql.And(entsql.EQ("goal_id", goalID), entsql.EQ("status", string(status))), opts)
}

func (r *skillRepo) ByType(ctx context.Context, questID string, typ skillgraph.SkillType, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_type",
		entsql.And(entsql.EQ("quest_id", questID), entsql.EQ("skill_type", string(typ))), opts)
}

func (r *skillRepo) Available(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.ByStatus(ctx, goalID, skillgraph.StatusAvailable, opts)
}

func (r *skillRepo) Locked(ctx context.Context, goalID string, opts ListOpts) (Page[*skillgraph.Skill], error) {
	return r.ByStatus(ctx, goalID, skillgraph.StatusLocked, opts)
}
