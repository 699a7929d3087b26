package app

import (
	"github.com/abhisek/questforge/internal/config"
	"github.com/abhisek/questforge/internal/mastery"
	"github.com/abhisek/questforge/internal/treegen"
	"github.com/abhisek/questforge/internal/weektracker"
)

// GeneratorConfig maps the generator section of cfg.
func GeneratorConfig(cfg *config.Config) treegen.Config {
	c := treegen.DefaultConfig()
	g := cfg.Generator
	c.Intermediate = treegen.Mix{Foundation: g.FoundationPct, Building: g.BuildingPct, Compound: g.CompoundPct}
	c.SkillsPerStage = g.SkillsPerStage
	c.MaxBuildingPrereqs = g.MaxBuildingPrereqs
	c.DaysPerWeek = g.DaysPerWeek
	c.MilestonePercent = cfg.Milestone.RequiredPercent
	return c
}

// MasteryConfig maps the mastery and milestone sections of cfg.
func MasteryConfig(cfg *config.Config) mastery.Config {
	m := cfg.Mastery
	return mastery.Config{
		Thresholds: mastery.Thresholds{
			Mastered:    m.MasteredThreshold,
			Consecutive: m.ConsecutiveThreshold,
			Practicing:  m.PracticingThreshold,
		},
		MaxRetries:       m.MaxRetries,
		MilestonePercent: cfg.Milestone.RequiredPercent,
	}
}

// WeekConfig maps the week section of cfg.
func WeekConfig(cfg *config.Config) weektracker.Config {
	c := weektracker.DefaultConfig()
	c.Slots = cfg.Week.Slots
	c.ReviewThemeMinCarry = cfg.Week.ReviewThemeMinCarry
	c.MaxRetries = cfg.Mastery.MaxRetries
	return c
}
