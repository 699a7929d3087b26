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
	"github.com/abhisek/questforge/internal/weekplan"
)

var weekColumns = []string{
	"id", "goal_id", "user_id", "quest_id",
	"week_number", "week_in_quest", "is_first_week", "is_last_week", "start_date", "end_date",
	"status", "theme", "weekly_competence", "days",
	"scheduled_skill_ids", "carry_forward_skill_ids", "completed_skill_ids",
	"foundation_count", "building_count", "compound_count", "synthesis_count",
	"drills_completed", "drills_passed", "drills_failed", "drills_skipped", "skills_mastered", "pass_rate",
	"summary", "next_week_focus",
	"completed_at", "created_at", "updated_at", "version",
}

// dayRow is the JSON shape of a day slot in the days column.
type dayRow struct {
	Day            int    `json:"day"`
	Date           string `json:"date"`
	SkillID        string `json:"skill_id"`
	SkillType      string `json:"skill_type"`
	Status         string `json:"status"`
	IsCarryForward bool   `json:"is_carry_forward,omitempty"`
}

func encodeDays(days []weekplan.Day) string {
	rows := make([]dayRow, len(days))
	for i, d := range days {
		rows[i] = dayRow{
			Day:            d.Day,
			Date:           formatTime(d.Date),
			SkillID:        d.SkillID,
			SkillType:      string(d.SkillType),
			Status:         string(d.Status),
			IsCarryForward: d.IsCarryForward,
		}
	}
	return encodeList(rows)
}

func decodeDays(s string) ([]weekplan.Day, error) {
	rows, err := decodeList[dayRow](s)
	if err != nil || rows == nil {
		return nil, err
	}
	days := make([]weekplan.Day, len(rows))
	for i, r := range rows {
		date, err := parseTime(r.Date)
		if err != nil {
			return nil, err
		}
		days[i] = weekplan.Day{
			Day:            r.Day,
			Date:           date,
			SkillID:        r.SkillID,
			SkillType:      skillgraph.SkillType(r.SkillType),
			Status:         weekplan.DayStatus(r.Status),
			IsCarryForward: r.IsCarryForward,
		}
	}
	return days, nil
}

func weekValues(p *weekplan.Plan) []any {
	return []any{
		p.ID, p.GoalID, p.UserID, p.QuestID,
		p.WeekNumber, p.WeekInQuest, boolInt(p.IsFirstWeekOfQuest), boolInt(p.IsLastWeekOfQuest),
		formatTime(p.StartDate), formatTime(p.EndDate),
		string(p.Status), p.Theme, p.WeeklyCompetence, encodeDays(p.Days),
		encodeList(p.ScheduledSkillIDs), encodeList(p.CarryForwardSkillIDs), encodeList(p.CompletedSkillIDs),
		p.Counts.Foundation, p.Counts.Building, p.Counts.Compound, p.Counts.Synthesis,
		p.Progress.DrillsCompleted, p.Progress.DrillsPassed, p.Progress.DrillsFailed,
		p.Progress.DrillsSkipped, p.Progress.SkillsMastered, p.PassRate,
		p.Summary, p.NextWeekFocus,
		formatNullTime(p.CompletedAt), formatTime(p.CreatedAt), formatTime(p.UpdatedAt), p.Version,
	}
}

func scanWeek(row rowScanner) (*weekplan.Plan, error) {
	var (
		p                           weekplan.Plan
		first, last                 int
		start, end, status, days    string
		scheduled, carry, completed string
		completedAt                 sql.NullString
		createdAt, updatedAt        string
	)
	err := row.Scan(
		&p.ID, &p.GoalID, &p.UserID, &p.QuestID,
		&p.WeekNumber, &p.WeekInQuest, &first, &last, &start, &end,
		&status, &p.Theme, &p.WeeklyCompetence, &days,
		&scheduled, &carry, &completed,
		&p.Counts.Foundation, &p.Counts.Building, &p.Counts.Compound, &p.Counts.Synthesis,
		&p.Progress.DrillsCompleted, &p.Progress.DrillsPassed, &p.Progress.DrillsFailed,
		&p.Progress.DrillsSkipped, &p.Progress.SkillsMastered, &p.PassRate,
		&p.Summary, &p.NextWeekFocus,
		&completedAt, &createdAt, &updatedAt, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	p.IsFirstWeekOfQuest = first != 0
	p.IsLastWeekOfQuest = last != 0
	p.Status = weekplan.Status(status)
	if p.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if p.EndDate, err = parseTime(end); err != nil {
		return nil, err
	}
	if p.Days, err = decodeDays(days); err != nil {
		return nil, err
	}
	if p.ScheduledSkillIDs, err = decodeList[string](scheduled); err != nil {
		return nil, err
	}
	if p.CarryForwardSkillIDs, err = decodeList[string](carry); err != nil {
		return nil, err
	}
	if p.CompletedSkillIDs, err = decodeList[string](completed); err != nil {
		return nil, err
	}
	if p.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

type weekRepo struct{ s *SQLite }

func (r *weekRepo) get(ctx context.Context, q querier, op, id string) (*weekplan.Plan, error) {
	b := builder()
	query, args := b.Select(weekColumns...).From(b.Table(weekPlansTable)).Where(entsql.EQ("id", id)).Query()
	p, err := scanWeek(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(op, "week plan %q", id)
	}
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	return p, nil
}

func (r *weekRepo) Get(ctx context.Context, id string) (*weekplan.Plan, error) {
	return r.get(ctx, r.s.db, "week.get", id)
}

func (r *weekRepo) Save(ctx context.Context, p *weekplan.Plan) error {
	if exists, err := rowExists(ctx, r.s.db, weekPlansTable, p.ID); err != nil {
		return apperr.StoreFailure("week.save", err)
	} else if exists {
		return apperr.Conflict("week.save", "week plan %q already exists", p.ID)
	}
	seq, err := r.s.seq.Next(ctx)
	if err != nil {
		return apperr.StoreFailure("week.save", err)
	}
	NormalizePlan(p, r.s.now())
	p.Version = 1

	cols := append([]string{"seq"}, weekColumns...)
	vals := append([]any{seq}, weekValues(p)...)
	q, args := builder().Insert(weekPlansTable).Columns(cols...).Values(vals...).Query()
	if _, err := r.s.db.ExecContext(ctx, q, args...); err != nil {
		p.Version = 0
		return apperr.StoreFailure("week.save", fmt.Errorf("insert week plan %q: %w", p.ID, err))
	}
	return nil
}

func (r *weekRepo) Update(ctx context.Context, p *weekplan.Plan) error {
	prev := p.Version
	NormalizePlan(p, r.s.now())
	u := builder().Update(weekPlansTable)
	vals := weekValues(p)
	for i, col := range weekColumns {
		switch col {
		case "id", "version":
			continue
		}
		u.Set(col, vals[i])
	}
	u.Add("version", 1).Where(entsql.And(entsql.EQ("id", p.ID), entsql.EQ("version", prev)))
	q, args := u.Query()
	res, err := r.s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return apperr.StoreFailure("week.update", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.StoreFailure("week.update", err)
	} else if n == 0 {
		current, err := r.get(ctx, r.s.db, "week.update", p.ID)
		if err != nil {
			return err
		}
		return apperr.Conflict("week.update", "week plan %q at version %d, have %d", p.ID, current.Version, prev)
	}
	p.Version = prev + 1
	return nil
}

func (r *weekRepo) UpdateStatus(ctx context.Context, id string, from, to weekplan.Status, at time.Time) (bool, error) {
	u := builder().Update(weekPlansTable).
		Set("status", string(to)).
		Set("updated_at", formatTime(r.s.now())).
		Add("version", 1)
	if to == weekplan.StatusCompleted {
		u.Set("completed_at", formatTime(at))
	}
	u.Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(from))))
	q, args := u.Query()
	res, err := r.s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, apperr.StoreFailure("week.update_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.StoreFailure("week.update_status", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := r.get(ctx, r.s.db, "week.update_status", id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *weekRepo) UpdateProgress(ctx context.Context, id string, d weekplan.Delta) (*weekplan.Plan, error) {
	const op = "week.update_progress"
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	defer tx.Rollback()

	q, args := builder().Update(weekPlansTable).
		Add("drills_completed", d.Completed).
		Add("drills_passed", d.Passed).
		Add("drills_failed", d.Failed).
		Add("drills_skipped", d.Skipped).
		Add("skills_mastered", d.Mastered).
		Set("updated_at", formatTime(r.s.now())).
		Add("version", 1).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, apperr.StoreFailure(op, err)
	} else if n == 0 {
		return nil, apperr.NotFound(op, "week plan %q", id)
	}

	p, err := r.get(ctx, tx, op, id)
	if err != nil {
		return nil, err
	}
	p.PassRate = p.Progress.PassRate()
	q, args = builder().Update(weekPlansTable).Set("pass_rate", p.PassRate).Where(entsql.EQ("id", id)).Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	return p, nil
}

func (r *weekRepo) first(ctx context.Context, op string, pred *entsql.Predicate, format string, args ...any) (*weekplan.Plan, error) {
	page, err := r.list(ctx, op, pred, ListOpts{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, apperr.NotFound(op, format, args...)
	}
	return page.Items[0], nil
}

func (r *weekRepo) ActiveByGoal(ctx context.Context, goalID string) (*weekplan.Plan, error) {
	return r.first(ctx, "week.active",
		entsql.And(entsql.EQ("goal_id", goalID), entsql.EQ("status", string(weekplan.StatusActive))),
		"no active week for goal %q", goalID)
}

func (r *weekRepo) ByWeekNumber(ctx context.Context, goalID string, week int) (*weekplan.Plan, error) {
	return r.first(ctx, "week.by_number",
		entsql.And(entsql.EQ("goal_id", goalID), entsql.EQ("week_number", week)),
		"week %d of goal %q", week, goalID)
}

func (r *weekRepo) ByGoal(ctx context.Context, goalID string, opts ListOpts) (Page[*weekplan.Plan], error) {
	return r.list(ctx, "week.by_goal", entsql.EQ("goal_id", goalID), opts)
}

func (r *weekRepo) list(ctx context.Context, op string, pred *entsql.Predicate, opts ListOpts) (Page[*weekplan.Plan], error) {
	b := builder()
	var total int
	cq, cargs := b.Select(entsql.Count("*")).From(b.Table(weekPlansTable)).Where(pred).Query()
	if err := r.s.db.QueryRowContext(ctx, cq, cargs...).Scan(&total); err != nil {
		return Page[*weekplan.Plan]{}, apperr.StoreFailure(op, err)
	}

	sel := b.Select(weekColumns...).From(b.Table(weekPlansTable)).Where(pred).OrderBy("week_number", "seq")
	paginate(sel, opts)
	q, args := sel.Query()
	rows, err := r.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Page[*weekplan.Plan]{}, apperr.StoreFailure(op, err)
	}
	defer rows.Close()

	var items []*weekplan.Plan
	for rows.Next() {
		p, err := scanWeek(rows)
		if err != nil {
			return Page[*weekplan.Plan]{}, apperr.StoreFailure(op, err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return Page[*weekplan.Plan]{}, apperr.StoreFailure(op, err)
	}
	return NewPage(items, total, opts), nil
}
