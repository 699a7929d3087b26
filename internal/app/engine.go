// Package app wires the stores and services of the progression engine
// behind a single host-facing Engine.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/questforge/internal/config"
	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/mastery"
	"github.com/abhisek/questforge/internal/store"
	"github.com/abhisek/questforge/internal/store/redisstore"
	"github.com/abhisek/questforge/internal/treegen"
	"github.com/abhisek/questforge/internal/unlock"
	"github.com/abhisek/questforge/internal/weektracker"
)

// Engine runs quests against one storage backend.
type Engine struct {
	backend *store.Backend
	gen     *treegen.Generator
	unlock  *unlock.Service
	mastery *mastery.Service
	weeks   *weektracker.Tracker
	log     *logging.Logger
	now     func() time.Time
}

type options struct {
	now   func() time.Time
	newID func() string
}

type Option func(*options)

// WithClock overrides time.Now in every service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs overrides the id source of generated skills, milestones and plans.
func WithIDs(next func() string) Option {
	return func(o *options) { o.newID = next }
}

// New builds an Engine over b. A nil cfg uses the defaults.
func New(b *store.Backend, cfg *config.Config, logger *logging.Logger, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	log := logging.OrNop(logger)

	genOpts := []treegen.Option{treegen.WithClock(o.now), treegen.WithLogger(log)}
	weekOpts := []weektracker.Option{weektracker.WithClock(o.now)}
	if o.newID != nil {
		genOpts = append(genOpts, treegen.WithIDs(o.newID))
		weekOpts = append(weekOpts, weektracker.WithIDs(o.newID))
	}

	unlocker := unlock.New(b.Skills, b.Milestones, b.Events, log, unlock.WithClock(o.now))
	return &Engine{
		backend: b,
		gen:     treegen.New(GeneratorConfig(cfg), genOpts...),
		unlock:  unlocker,
		mastery: mastery.New(b.Skills, unlocker, b.Milestones, b.Events, MasteryConfig(cfg), log, mastery.WithClock(o.now)),
		weeks:   weektracker.New(b.Skills, b.Weeks, b.Events, WeekConfig(cfg), log, weekOpts...),
		log:     log,
		now:     o.now,
	}
}

// Open selects the backend named by cfg.Store.Backend and builds an Engine
// over it. Close the Engine to release the backend.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...Option) (*Engine, error) {
	b, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logging.OrNop(logger).Debug("backend opened", "backend", cfg.Store.Backend)
	return New(b, cfg, logger, opts...), nil
}

// OpenBackend connects to the configured store.
func OpenBackend(ctx context.Context, cfg *config.Config) (*store.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemory().Backend(), nil
	case config.BackendRedis:
		rs, err := redisstore.Dial(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return rs.Backend(), nil
	case config.BackendSQLite, "":
		path := cfg.Store.Path
		if path == "" {
			var err error
			if path, err = store.DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		db, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db.Backend(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// Close releases the backend.
func (e *Engine) Close() error { return e.backend.Close() }

func (e *Engine) Backend() *store.Backend       { return e.backend }
func (e *Engine) Unlock() *unlock.Service       { return e.unlock }
func (e *Engine) Mastery() *mastery.Service     { return e.mastery }
func (e *Engine) Weeks() *weektracker.Tracker   { return e.weeks }
func (e *Engine) Generator() *treegen.Generator { return e.gen }
