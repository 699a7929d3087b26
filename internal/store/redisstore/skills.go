package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
)

type skillRepo struct{ s *Store }

func (r *skillRepo) recordKey(id string) string { return r.s.key("skill", id) }

func (r *skillRepo) questKey(questID string) string { return r.s.key("skills", "quest", questID) }

func (r *skillRepo) goalKey(goalID string) string { return r.s.key("skills", "goal", goalID) }

func (r *skillRepo) statusKey(goalID string, st skillgraph.Status) string {
	return r.s.key("skills", "goal", goalID, "status", string(st))
}

// indexKeys lists every sorted set that sk belongs to.
func (r *skillRepo) indexKeys(sk *skillgraph.Skill) []string {
	return []string{
		r.questKey(sk.QuestID),
		r.goalKey(sk.GoalID),
		r.s.key("skills", "user", sk.UserID),
		r.statusKey(sk.GoalID, sk.Status),
	}
}

func (r *skillRepo) reindex(ctx context.Context, pipe redis.Pipeliner, seq int64, old, cur *skillgraph.Skill) {
	if old != nil {
		for _, k := range r.indexKeys(old) {
			pipe.ZRem(ctx, k, old.ID)
		}
	}
	for _, k := range r.indexKeys(cur) {
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(seq), Member: cur.ID})
	}
}

func (r *skillRepo) Get(ctx context.Context, id string) (*skillgraph.Skill, error) {
	rec, found, err := load[*skillgraph.Skill](ctx, r.s.rdb, r.recordKey(id))
	if err != nil {
		return nil, apperr.StoreFailure("skill.get", err)
	}
	if !found {
		return nil, apperr.NotFound("skill.get", "skill %q", id)
	}
	return rec.Value, nil
}

func (r *skillRepo) Save(ctx context.Context, sk *skillgraph.Skill) error {
	const op = "skill.save"
	seq, err := r.s.nextSeq(ctx)
	if err != nil {
		return apperr.StoreFailure(op, err)
	}
	key := r.recordKey(sk.ID)
	return r.s.watch(ctx, op, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(op, "skill %q already exists", sk.ID)
		}
		store.NormalizeSkill(sk, r.s.now())
		sk.Version = 1
		data, err := encode(seq, sk)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			r.reindex(ctx, pipe, seq, nil, sk)
			return nil
		})
		return err
	}, key)
}

// mutate applies fn to the stored skill under WATCH. fn reports whether the
// skill should be written back; a write bumps Version and UpdatedAt.
func (r *skillRepo) mutate(ctx context.Context, op, id string, fn func(sk *skillgraph.Skill) (bool, error)) (bool, error) {
	key := r.recordKey(id)
	var wrote bool
	err := r.s.watch(ctx, op, func(tx *redis.Tx) error {
		wrote = false
		rec, found, err := load[*skillgraph.Skill](ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound(op, "skill %q", id)
		}
		old := rec.Value.Clone()
		write, err := fn(rec.Value)
		if err != nil || !write {
			return err
		}
		rec.Value.Version = old.Version + 1
		data, err := encode(rec.Seq, rec.Value)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			r.reindex(ctx, pipe, rec.Seq, old, rec.Value)
			return nil
		})
		wrote = err == nil
		return err
	}, key)
	return wrote, err
}

func (r *skillRepo) Update(ctx context.Context, sk *skillgraph.Skill) error {
	const op = "skill.update"
	var next *skillgraph.Skill
	_, err := r.mutate(ctx, op, sk.ID, func(cur *skillgraph.Skill) (bool, error) {
		if cur.Version != sk.Version {
			return false, apperr.Conflict(op, "skill %q at version %d, have %d", sk.ID, cur.Version, sk.Version)
		}
		next = sk.Clone()
		store.NormalizeSkill(next, r.s.now())
		*cur = *next
		return true, nil
	})
	if err != nil {
		return err
	}
	*sk = *next
	sk.Version++
	return nil
}

func (r *skillRepo) UpdateMastery(ctx context.Context, id string, u store.MasteryUpdate) error {
	const op = "skill.update_mastery"
	_, err := r.mutate(ctx, op, id, func(sk *skillgraph.Skill) (bool, error) {
		if u.ExpectedVersion != 0 && sk.Version != u.ExpectedVersion {
			return false, apperr.Conflict(op, "skill %q at version %d, expected %d", id, sk.Version, u.ExpectedVersion)
		}
		sk.Mastery = u.Mastery
		sk.Status = u.Status
		sk.PassCount = u.PassCount
		sk.FailCount = u.FailCount
		sk.ConsecutivePasses = u.ConsecutivePasses
		sk.MasteredAt = utcPtr(u.MasteredAt)
		sk.LastPracticedAt = utcPtr(u.LastPracticedAt)
		sk.UpdatedAt = r.s.now().UTC()
		return true, nil
	})
	return err
}

func (r *skillRepo) UpdateStatus(ctx context.Context, id string, from, to skillgraph.Status, at time.Time) (bool, error) {
	return r.mutate(ctx, "skill.update_status", id, func(sk *skillgraph.Skill) (bool, error) {
		if sk.Status != from {
			return false, nil
		}
		sk.Status = to
		if from == skillgraph.StatusLocked && to != from {
			sk.UnlockedAt = utcPtr(&at)
		}
		sk.UpdatedAt = r.s.now().UTC()
		return true, nil
	})
}

// list pages through an index sorted set.
func (r *skillRepo) list(ctx context.Context, op, index string, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	total, err := r.s.rdb.ZCard(ctx, index).Result()
	if err != nil {
		return store.Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}
	lo, hi := store.Window(int(total), opts)
	if lo >= hi {
		return store.NewPage[*skillgraph.Skill](nil, int(total), opts), nil
	}
	ids, err := r.s.rdb.ZRange(ctx, index, int64(lo), int64(hi-1)).Result()
	if err != nil {
		return store.Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}
	skills, err := r.fetch(ctx, ids)
	if err != nil {
		return store.Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}
	return store.NewPage(skills, int(total), opts), nil
}

func (r *skillRepo) fetch(ctx context.Context, ids []string) ([]*skillgraph.Skill, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	recs, err := loadMany[*skillgraph.Skill](ctx, r.s.rdb, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*skillgraph.Skill, len(recs))
	for i, rec := range recs {
		out[i] = rec.Value
	}
	return out, nil
}

func (r *skillRepo) ByQuest(ctx context.Context, questID string, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_quest", r.questKey(questID), opts)
}

func (r *skillRepo) ByGoal(ctx context.Context, goalID string, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_goal", r.goalKey(goalID), opts)
}

func (r *skillRepo) ByUser(ctx context.Context, userID string, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_user", r.s.key("skills", "user", userID), opts)
}

func (r *skillRepo) ByStatus(ctx context.Context, goalID string, status skillgraph.Status, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	return r.list(ctx, "skill.by_status", r.statusKey(goalID, status), opts)
}

// ByType filters the quest index client-side; quests hold tens of skills.
func (r *skillRepo) ByType(ctx context.Context, questID string, typ skillgraph.SkillType, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	const op = "skill.by_type"
	ids, err := r.s.rdb.ZRange(ctx, r.questKey(questID), 0, -1).Result()
	if err != nil {
		return store.Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}
	skills, err := r.fetch(ctx, ids)
	if err != nil {
		return store.Page[*skillgraph.Skill]{}, apperr.StoreFailure(op, err)
	}
	var matched []*skillgraph.Skill
	for _, sk := range skills {
		if sk.Type == typ {
			matched = append(matched, sk)
		}
	}
	lo, hi := store.Window(len(matched), opts)
	return store.NewPage(matched[lo:hi], len(matched), opts), nil
}

func (r *skillRepo) Available(ctx context.Context, goalID string, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	return r.ByStatus(ctx, goalID, skillgraph.StatusAvailable, opts)
}

func (r *skillRepo) Locked(ctx context.Context, goalID string, opts store.ListOpts) (store.Page[*skillgraph.Skill], error) {
	return r.ByStatus(ctx, goalID, skillgraph.StatusLocked, opts)
}
