package redisstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/weekplan"
)

type weekRepo struct{ s *Store }

func (r *weekRepo) recordKey(id string) string { return r.s.key("week", id) }

func (r *weekRepo) goalKey(goalID string) string { return r.s.key("weeks", "goal", goalID) }

func (r *weekRepo) Get(ctx context.Context, id string) (*weekplan.Plan, error) {
	rec, found, err := load[*weekplan.Plan](ctx, r.s.rdb, r.recordKey(id))
	if err != nil {
		return nil, apperr.StoreFailure("week.get", err)
	}
	if !found {
		return nil, apperr.NotFound("week.get", "week plan %q", id)
	}
	return rec.Value, nil
}

func (r *weekRepo) Save(ctx context.Context, p *weekplan.Plan) error {
	const op = "week.save"
	seq, err := r.s.nextSeq(ctx)
	if err != nil {
		return apperr.StoreFailure(op, err)
	}
	key := r.recordKey(p.ID)
	return r.s.watch(ctx, op, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(op, "week plan %q already exists", p.ID)
		}
		store.NormalizePlan(p, r.s.now())
		p.Version = 1
		data, err := encode(seq, p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.goalKey(p.GoalID), redis.Z{Score: float64(seq), Member: p.ID})
			return nil
		})
		return err
	}, key)
}

// mutate applies fn to the stored plan under WATCH and returns the result.
// Plans never change goal, so the goal index is left alone.
func (r *weekRepo) mutate(ctx context.Context, op, id string, fn func(p *weekplan.Plan) (bool, error)) (*weekplan.Plan, bool, error) {
	key := r.recordKey(id)
	var (
		out   *weekplan.Plan
		wrote bool
	)
	err := r.s.watch(ctx, op, func(tx *redis.Tx) error {
		wrote = false
		rec, found, err := load[*weekplan.Plan](ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound(op, "week plan %q", id)
		}
		version := rec.Value.Version
		write, err := fn(rec.Value)
		if err != nil || !write {
			return err
		}
		rec.Value.Version = version + 1
		rec.Value.PassRate = rec.Value.Progress.PassRate()
		data, err := encode(rec.Seq, rec.Value)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			out, wrote = rec.Value, true
		}
		return err
	}, key)
	return out, wrote, err
}

func (r *weekRepo) Update(ctx context.Context, p *weekplan.Plan) error {
	const op = "week.update"
	next := p.Clone()
	_, _, err := r.mutate(ctx, op, p.ID, func(cur *weekplan.Plan) (bool, error) {
		if cur.Version != p.Version {
			return false, apperr.Conflict(op, "week plan %q at version %d, have %d", p.ID, cur.Version, p.Version)
		}
		store.NormalizePlan(next, r.s.now())
		*cur = *next.Clone()
		return true, nil
	})
	if err != nil {
		return err
	}
	*p = *next
	p.Version++
	return nil
}

func (r *weekRepo) UpdateStatus(ctx context.Context, id string, from, to weekplan.Status, at time.Time) (bool, error) {
	_, wrote, err := r.mutate(ctx, "week.update_status", id, func(p *weekplan.Plan) (bool, error) {
		if p.Status != from {
			return false, nil
		}
		p.Status = to
		if to == weekplan.StatusCompleted {
			p.CompletedAt = utcPtr(&at)
		}
		p.UpdatedAt = r.s.now().UTC()
		return true, nil
	})
	return wrote, err
}

func (r *weekRepo) UpdateProgress(ctx context.Context, id string, d weekplan.Delta) (*weekplan.Plan, error) {
	p, _, err := r.mutate(ctx, "week.update_progress", id, func(p *weekplan.Plan) (bool, error) {
		p.Progress = p.Progress.Apply(d)
		p.UpdatedAt = r.s.now().UTC()
		return true, nil
	})
	return p, err
}

// goalPlans returns the goal's plans ordered by week number then creation.
func (r *weekRepo) goalPlans(ctx context.Context, goalID string) ([]*weekplan.Plan, error) {
	ids, err := r.s.rdb.ZRange(ctx, r.goalKey(goalID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	recs, err := loadMany[*weekplan.Plan](ctx, r.s.rdb, keys)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recs, func(a, b record[*weekplan.Plan]) int {
		return cmp.Or(cmp.Compare(a.Value.WeekNumber, b.Value.WeekNumber), cmp.Compare(a.Seq, b.Seq))
	})
	out := make([]*weekplan.Plan, len(recs))
	for i, rec := range recs {
		out[i] = rec.Value
	}
	return out, nil
}

func (r *weekRepo) find(ctx context.Context, op, goalID string, keep func(*weekplan.Plan) bool, format string, args ...any) (*weekplan.Plan, error) {
	plans, err := r.goalPlans(ctx, goalID)
	if err != nil {
		return nil, apperr.StoreFailure(op, err)
	}
	for _, p := range plans {
		if keep(p) {
			return p, nil
		}
	}
	return nil, apperr.NotFound(op, format, args...)
}

func (r *weekRepo) ActiveByGoal(ctx context.Context, goalID string) (*weekplan.Plan, error) {
	return r.find(ctx, "week.active", goalID,
		func(p *weekplan.Plan) bool { return p.Status == weekplan.StatusActive },
		"no active week for goal %q", goalID)
}

func (r *weekRepo) ByWeekNumber(ctx context.Context, goalID string, week int) (*weekplan.Plan, error) {
	return r.find(ctx, "week.by_number", goalID,
		func(p *weekplan.Plan) bool { return p.WeekNumber == week },
		"week %d of goal %q", week, goalID)
}

func (r *weekRepo) ByGoal(ctx context.Context, goalID string, opts store.ListOpts) (store.Page[*weekplan.Plan], error) {
	plans, err := r.goalPlans(ctx, goalID)
	if err != nil {
		return store.Page[*weekplan.Plan]{}, apperr.StoreFailure("week.by_goal", err)
	}
	lo, hi := store.Window(len(plans), opts)
	return store.NewPage(plans[lo:hi], len(plans), opts), nil
}
