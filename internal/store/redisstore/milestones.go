package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
)

type milestoneRepo struct{ s *Store }

func (r *milestoneRepo) recordKey(id string) string { return r.s.key("milestone", id) }

func (r *milestoneRepo) questKey(questID string) string {
	return r.s.key("milestones", "quest", questID)
}

func (r *milestoneRepo) Get(ctx context.Context, id string) (*skillgraph.Milestone, error) {
	rec, found, err := load[*skillgraph.Milestone](ctx, r.s.rdb, r.recordKey(id))
	if err != nil {
		return nil, apperr.StoreFailure("milestone.get", err)
	}
	if !found {
		return nil, apperr.NotFound("milestone.get", "milestone %q", id)
	}
	return rec.Value, nil
}

func (r *milestoneRepo) Save(ctx context.Context, m *skillgraph.Milestone) error {
	const op = "milestone.save"
	seq, err := r.s.nextSeq(ctx)
	if err != nil {
		return apperr.StoreFailure(op, err)
	}
	key := r.recordKey(m.ID)
	return r.s.watch(ctx, op, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(op, "milestone %q already exists", m.ID)
		}
		store.NormalizeMilestone(m, r.s.now())
		m.Version = 1
		data, err := encode(seq, m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			// First milestone saved for a quest wins the index.
			pipe.SetNX(ctx, r.questKey(m.QuestID), m.ID, 0)
			return nil
		})
		return err
	}, key)
}

func (r *milestoneRepo) ByQuest(ctx context.Context, questID string) (*skillgraph.Milestone, error) {
	id, err := r.s.rdb.Get(ctx, r.questKey(questID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("milestone.by_quest", "no milestone for quest %q", questID)
	}
	if err != nil {
		return nil, apperr.StoreFailure("milestone.by_quest", err)
	}
	return r.Get(ctx, id)
}

func (r *milestoneRepo) UpdateStatus(ctx context.Context, id string, from, to skillgraph.MilestoneStatus, at time.Time) (bool, error) {
	const op = "milestone.update_status"
	key := r.recordKey(id)
	var swapped bool
	err := r.s.watch(ctx, op, func(tx *redis.Tx) error {
		swapped = false
		rec, found, err := load[*skillgraph.Milestone](ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound(op, "milestone %q", id)
		}
		m := rec.Value
		if m.Status != from {
			return nil
		}
		m.Status = to
		switch to {
		case skillgraph.MilestoneAvailable:
			m.UnlockedAt = utcPtr(&at)
		case skillgraph.MilestoneCompleted:
			m.CompletedAt = utcPtr(&at)
		}
		m.Version++
		data, err := encode(rec.Seq, m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		swapped = err == nil
		return err
	}, key)
	return swapped, err
}
