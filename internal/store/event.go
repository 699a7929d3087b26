package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/questforge/internal/skillgraph"
)

// sequenceCounter manages the global monotonic sequence number shared across
// all event types and entity inserts. Each event type lives in its own table,
// so per-table auto-increment IDs can't establish cross-type ordering. The
// same counter gives skills, plans and milestones their creation sequence,
// which list queries order by.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

type eventRepo struct{ s *SQLite }

func (r *eventRepo) insert(ctx context.Context, table string, cols []string, vals []any) error {
	seq, err := r.s.seq.Next(ctx)
	if err != nil {
		return err
	}
	cols = append([]string{"sequence", "timestamp"}, cols...)
	vals = append([]any{seq, formatTime(r.s.now())}, vals...)
	q, args := builder().Insert(table).Columns(cols...).Values(vals...).Query()
	if _, err := r.s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return nil
}

func (r *eventRepo) AppendMasteryEvent(ctx context.Context, d MasteryEventData) error {
	return r.insert(ctx, masteryEventsTable,
		[]string{"skill_id", "goal_id", "quest_id", "outcome", "from_mastery", "to_mastery",
			"from_status", "to_status", "pass_count", "fail_count", "consecutive_passes"},
		[]any{d.SkillID, d.GoalID, d.QuestID, d.Outcome, string(d.FromMastery), string(d.ToMastery),
			string(d.FromStatus), string(d.ToStatus), d.PassCount, d.FailCount, d.ConsecutivePasses},
	)
}

func (r *eventRepo) AppendUnlockEvent(ctx context.Context, d UnlockEventData) error {
	return r.insert(ctx, unlockEventsTable,
		[]string{"skill_id", "milestone_id", "goal_id", "trigger_skill_id"},
		[]any{d.SkillID, d.MilestoneID, d.GoalID, d.TriggerSkillID},
	)
}

func (r *eventRepo) AppendWeekEvent(ctx context.Context, d WeekEventData) error {
	return r.insert(ctx, weekEventsTable,
		[]string{"plan_id", "goal_id", "week_number", "from_status", "to_status"},
		[]any{d.PlanID, d.GoalID, d.WeekNumber, string(d.FromStatus), string(d.ToStatus)},
	)
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, d LLMRequestEventData) error {
	return r.insert(ctx, llmEventsTable,
		[]string{"provider", "model", "purpose", "input_tokens", "output_tokens", "latency_ms", "success", "error_message"},
		[]any{d.Provider, d.Model, d.Purpose, d.InputTokens, d.OutputTokens, d.LatencyMs, boolInt(d.Success), d.ErrorMessage},
	)
}

func (r *eventRepo) MasteryEvents(ctx context.Context, skillID string, opts QueryOpts) ([]MasteryEventRecord, error) {
	b := builder()
	sel := b.Select("sequence", "timestamp", "skill_id", "goal_id", "quest_id", "outcome",
		"from_mastery", "to_mastery", "from_status", "to_status",
		"pass_count", "fail_count", "consecutive_passes").
		From(b.Table(masteryEventsTable)).
		Where(entsql.And(entsql.EQ("skill_id", skillID), entsql.GT("sequence", opts.After))).
		OrderBy("sequence")
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	q, args := sel.Query()

	rows, err := r.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query mastery events: %w", err)
	}
	defer rows.Close()

	var out []MasteryEventRecord
	for rows.Next() {
		var (
			rec                    MasteryEventRecord
			ts                     string
			fromM, toM, fromS, toS string
		)
		if err := rows.Scan(&rec.Sequence, &ts, &rec.SkillID, &rec.GoalID, &rec.QuestID, &rec.Outcome,
			&fromM, &toM, &fromS, &toS, &rec.PassCount, &rec.FailCount, &rec.ConsecutivePasses); err != nil {
			return nil, fmt.Errorf("scan mastery event: %w", err)
		}
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		rec.FromMastery, rec.ToMastery = skillgraph.Mastery(fromM), skillgraph.Mastery(toM)
		rec.FromStatus, rec.ToStatus = skillgraph.Status(fromS), skillgraph.Status(toS)
		out = append(out, rec)
	}
	return out, rows.Err()
}
