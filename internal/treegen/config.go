package treegen

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/weekplan"
)

// Mix is a foundation/building/compound split of the non-synthesis slots.
type Mix struct {
	Foundation float64
	Building   float64
	Compound   float64
}

// Config tunes generation.
type Config struct {
	// Intermediate is the default mix; beginner and advanced learners get
	// fixed shifts toward foundation and compound skills respectively.
	Intermediate Mix

	SkillsPerStage     int
	MaxBuildingPrereqs int
	DaysPerWeek        int

	MilestonePercent       float64
	DefaultEstimateMinutes int
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		Intermediate:           Mix{Foundation: 0.35, Building: 0.25, Compound: 0.30},
		SkillsPerStage:         3,
		MaxBuildingPrereqs:     2,
		DaysPerWeek:            weekplan.DaysPerWeek,
		MilestonePercent:       skillgraph.DefaultRequiredMasteryPercent,
		DefaultEstimateMinutes: 30,
	}
}

// MixFor returns the type mix for level.
func (c Config) MixFor(level Level) Mix {
	switch level {
	case LevelBeginner:
		return Mix{Foundation: 0.45, Building: 0.25, Compound: 0.20}
	case LevelAdvanced:
		return Mix{Foundation: 0.25, Building: 0.25, Compound: 0.40}
	default:
		return c.Intermediate
	}
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) { g.log = logging.OrNop(l) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithIDs overrides uuid-based id generation.
func WithIDs(next func() string) Option {
	return func(g *Generator) { g.newID = next }
}

func defaultID() string { return uuid.NewString() }
