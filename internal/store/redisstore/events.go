package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
)

// eventStreamMaxLen caps each stream; XADD trims approximately.
const eventStreamMaxLen = 10000

// eventRepo appends events to Redis streams. Mastery events get one stream
// per skill so history reads never scan other skills.
type eventRepo struct{ s *Store }

func (r *eventRepo) publish(ctx context.Context, stream string, values map[string]any) error {
	seq, err := r.s.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	values["sequence"] = seq
	values["timestamp"] = r.s.now().UTC().Format(time.RFC3339Nano)
	err = r.s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

func (r *eventRepo) masteryStream(skillID string) string {
	return r.s.key("events", "mastery", skillID)
}

func (r *eventRepo) AppendMasteryEvent(ctx context.Context, d store.MasteryEventData) error {
	return r.publish(ctx, r.masteryStream(d.SkillID), map[string]any{
		"skill_id":           d.SkillID,
		"goal_id":            d.GoalID,
		"quest_id":           d.QuestID,
		"outcome":            d.Outcome,
		"from_mastery":       string(d.FromMastery),
		"to_mastery":         string(d.ToMastery),
		"from_status":        string(d.FromStatus),
		"to_status":          string(d.ToStatus),
		"pass_count":         d.PassCount,
		"fail_count":         d.FailCount,
		"consecutive_passes": d.ConsecutivePasses,
	})
}

func (r *eventRepo) AppendUnlockEvent(ctx context.Context, d store.UnlockEventData) error {
	return r.publish(ctx, r.s.key("events", "unlock"), map[string]any{
		"skill_id":         d.SkillID,
		"milestone_id":     d.MilestoneID,
		"goal_id":          d.GoalID,
		"trigger_skill_id": d.TriggerSkillID,
	})
}

func (r *eventRepo) AppendWeekEvent(ctx context.Context, d store.WeekEventData) error {
	return r.publish(ctx, r.s.key("events", "week"), map[string]any{
		"plan_id":     d.PlanID,
		"goal_id":     d.GoalID,
		"week_number": d.WeekNumber,
		"from_status": string(d.FromStatus),
		"to_status":   string(d.ToStatus),
	})
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, d store.LLMRequestEventData) error {
	return r.publish(ctx, r.s.key("events", "llm"), map[string]any{
		"provider":      d.Provider,
		"model":         d.Model,
		"purpose":       d.Purpose,
		"input_tokens":  d.InputTokens,
		"output_tokens": d.OutputTokens,
		"latency_ms":    d.LatencyMs,
		"success":       strconv.FormatBool(d.Success),
		"error_message": d.ErrorMessage,
	})
}

func (r *eventRepo) MasteryEvents(ctx context.Context, skillID string, opts store.QueryOpts) ([]store.MasteryEventRecord, error) {
	msgs, err := r.s.rdb.XRange(ctx, r.masteryStream(skillID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange mastery events: %w", err)
	}
	var out []store.MasteryEventRecord
	for _, msg := range msgs {
		rec, err := parseMasteryEvent(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("parse mastery event %s: %w", msg.ID, err)
		}
		if rec.Sequence <= opts.After {
			continue
		}
		out = append(out, rec)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func parseMasteryEvent(v map[string]any) (store.MasteryEventRecord, error) {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	var (
		rec store.MasteryEventRecord
		err error
	)
	if rec.Sequence, err = strconv.ParseInt(str("sequence"), 10, 64); err != nil {
		return rec, err
	}
	if rec.Timestamp, err = time.Parse(time.RFC3339Nano, str("timestamp")); err != nil {
		return rec, err
	}
	for k, dst := range map[string]*int{
		"pass_count":         &rec.PassCount,
		"fail_count":         &rec.FailCount,
		"consecutive_passes": &rec.ConsecutivePasses,
	} {
		if *dst, err = strconv.Atoi(str(k)); err != nil {
			return rec, fmt.Errorf("%s: %w", k, err)
		}
	}
	rec.SkillID = str("skill_id")
	rec.GoalID = str("goal_id")
	rec.QuestID = str("quest_id")
	rec.Outcome = str("outcome")
	rec.FromMastery = skillgraph.Mastery(str("from_mastery"))
	rec.ToMastery = skillgraph.Mastery(str("to_mastery"))
	rec.FromStatus = skillgraph.Status(str("from_status"))
	rec.ToStatus = skillgraph.Status(str("to_status"))
	return rec, nil
}
