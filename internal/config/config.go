// Package config loads questforge settings from defaults, an optional YAML
// file and QUESTFORGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// QUESTFORGE_STORE_BACKEND for store.backend.
const EnvPrefix = "QUESTFORGE"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the complete application configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Mastery   MasteryConfig   `mapstructure:"mastery"`
	Milestone MilestoneConfig `mapstructure:"milestone"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Week      WeekConfig      `mapstructure:"week"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"` // SQLite file; empty resolves via store.DefaultDBPath
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"` // development, production
	Level string `mapstructure:"level"`
}

// MasteryConfig holds the thresholds of the mastery state machine.
type MasteryConfig struct {
	MasteredThreshold    int `mapstructure:"mastered_threshold"`
	ConsecutiveThreshold int `mapstructure:"consecutive_threshold"`
	PracticingThreshold  int `mapstructure:"practicing_threshold"`
	MaxRetries           int `mapstructure:"max_retries"`
}

type MilestoneConfig struct {
	RequiredPercent float64 `mapstructure:"required_percent"`
}

// GeneratorConfig tunes skill-tree generation. The percentages are the
// intermediate-level distribution; synthesis always takes one slot.
type GeneratorConfig struct {
	FoundationPct      float64 `mapstructure:"foundation_pct"`
	BuildingPct        float64 `mapstructure:"building_pct"`
	CompoundPct        float64 `mapstructure:"compound_pct"`
	SkillsPerStage     int     `mapstructure:"skills_per_stage"`
	MaxBuildingPrereqs int     `mapstructure:"max_building_prereqs"`
	DaysPerWeek        int     `mapstructure:"days_per_week"`
}

type WeekConfig struct {
	Slots               int `mapstructure:"slots"`
	ReviewThemeMinCarry int `mapstructure:"review_theme_min_carry"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendSQLite},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "questforge",
		},
		Log: LogConfig{Mode: "development", Level: "warn"},
		Mastery: MasteryConfig{
			MasteredThreshold:    3,
			ConsecutiveThreshold: 2,
			PracticingThreshold:  1,
			MaxRetries:           3,
		},
		Milestone: MilestoneConfig{RequiredPercent: 0.75},
		Generator: GeneratorConfig{
			FoundationPct:      0.35,
			BuildingPct:        0.25,
			CompoundPct:        0.30,
			SkillsPerStage:     3,
			MaxBuildingPrereqs: 2,
			DaysPerWeek:        5,
		},
		Week: WeekConfig{
			Slots:               5,
			ReviewThemeMinCarry: 3,
		},
	}
}

// Load reads configuration from defaults, the YAML file at configPath (or
// the default location when it exists) and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		if p := DefaultConfigPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				configPath = p
			}
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/questforge/config.yaml, falling
// back to ~/.config. Empty when no home directory can be resolved.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "questforge", "config.yaml")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendSQLite, BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be sqlite, memory or redis", c.Store.Backend))
	}

	m := c.Mastery
	for name, v := range map[string]int{
		"mastery.mastered_threshold":    m.MasteredThreshold,
		"mastery.consecutive_threshold": m.ConsecutiveThreshold,
		"mastery.practicing_threshold":  m.PracticingThreshold,
	} {
		if v < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", name, v))
		}
	}
	if m.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("mastery.max_retries must not be negative"))
	}

	g := c.Generator
	for name, v := range map[string]float64{
		"milestone.required_percent": c.Milestone.RequiredPercent,
		"generator.foundation_pct":   g.FoundationPct,
		"generator.building_pct":     g.BuildingPct,
		"generator.compound_pct":     g.CompoundPct,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if sum := g.FoundationPct + g.BuildingPct + g.CompoundPct; sum > 1 {
		errs = append(errs, fmt.Errorf("generator percentages sum to %.2f, must not exceed 1", sum))
	}
	if g.SkillsPerStage < 1 {
		errs = append(errs, fmt.Errorf("generator.skills_per_stage must be at least 1"))
	}
	if g.MaxBuildingPrereqs < 1 {
		errs = append(errs, fmt.Errorf("generator.max_building_prereqs must be at least 1"))
	}
	if g.DaysPerWeek < 1 {
		errs = append(errs, fmt.Errorf("generator.days_per_week must be at least 1"))
	}
	if c.Week.Slots < 1 {
		errs = append(errs, fmt.Errorf("week.slots must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("mastery.mastered_threshold", d.Mastery.MasteredThreshold)
	v.SetDefault("mastery.consecutive_threshold", d.Mastery.ConsecutiveThreshold)
	v.SetDefault("mastery.practicing_threshold", d.Mastery.PracticingThreshold)
	v.SetDefault("mastery.max_retries", d.Mastery.MaxRetries)
	v.SetDefault("milestone.required_percent", d.Milestone.RequiredPercent)
	v.SetDefault("generator.foundation_pct", d.Generator.FoundationPct)
	v.SetDefault("generator.building_pct", d.Generator.BuildingPct)
	v.SetDefault("generator.compound_pct", d.Generator.CompoundPct)
	v.SetDefault("generator.skills_per_stage", d.Generator.SkillsPerStage)
	v.SetDefault("generator.max_building_prereqs", d.Generator.MaxBuildingPrereqs)
	v.SetDefault("generator.days_per_week", d.Generator.DaysPerWeek)
	v.SetDefault("week.slots", d.Week.Slots)
	v.SetDefault("week.review_theme_min_carry", d.Week.ReviewThemeMinCarry)
}
