// Package cmd is the questforge command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/questforge/internal/app"
	"github.com/abhisek/questforge/internal/config"
	"github.com/abhisek/questforge/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "questforge",
	Short:         "Practice-driven skill progression",
	Long:          "questforge turns quests into dependency-ordered skills, schedules them into weeks and tracks mastery as you drill.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default $XDG_CONFIG_HOME/questforge/config.yaml)")
	pf.String("db", "", "SQLite database path (overrides QUESTFORGE_DB)")
	pf.String("backend", "", "store backend: sqlite, memory or redis")
	pf.String("goal", "", "goal id")

	rootCmd.AddCommand(questCmd, drillCmd, weekCmd, skillCmd, statsCmd, versionCmd)
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		cfg.Store.Backend = b
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// session is an opened engine plus what the command needs around it.
type session struct {
	cfg    *config.Config
	log    *logging.Logger
	engine *app.Engine
}

func (s *session) Close() {
	if err := s.engine.Close(); err != nil {
		s.log.Warn("close store", "error", err)
	}
	s.log.Sync()
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	e, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return &session{cfg: cfg, log: log, engine: e}, nil
}

// withSession opens the engine for the duration of fn.
func withSession(fn func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, cmd, s, args)
	}
}

func goalFlag(cmd *cobra.Command) (string, error) {
	g, _ := cmd.Flags().GetString("goal")
	if g == "" {
		return "", fmt.Errorf("--goal is required")
	}
	return g, nil
}
