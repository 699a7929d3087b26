package store

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	skillsTable        = "skills"
	weekPlansTable     = "week_plans"
	milestonesTable    = "milestones"
	masteryEventsTable = "mastery_events"
	unlockEventsTable  = "unlock_events"
	weekEventsTable    = "week_events"
	llmEventsTable     = "llm_request_events"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		quest_id TEXT NOT NULL,
		goal_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		topics TEXT NOT NULL DEFAULT '[]',
		action TEXT NOT NULL DEFAULT '',
		success_signal TEXT NOT NULL DEFAULT '',
		locked_variables TEXT NOT NULL DEFAULT '[]',
		estimated_minutes INTEGER NOT NULL DEFAULT 0,
		skill_type TEXT NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		is_compound INTEGER NOT NULL DEFAULT 0,
		component_skill_ids TEXT NOT NULL DEFAULT '[]',
		component_quest_ids TEXT NOT NULL DEFAULT '[]',
		combination_context TEXT NOT NULL DEFAULT '',
		prerequisite_skill_ids TEXT NOT NULL DEFAULT '[]',
		prerequisite_quest_ids TEXT NOT NULL DEFAULT '[]',
		week_number INTEGER NOT NULL DEFAULT 0,
		day_in_week INTEGER NOT NULL DEFAULT 0,
		day_in_quest INTEGER NOT NULL DEFAULT 0,
		order_index INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		mastery TEXT NOT NULL,
		pass_count INTEGER NOT NULL DEFAULT 0,
		fail_count INTEGER NOT NULL DEFAULT 0,
		consecutive_passes INTEGER NOT NULL DEFAULT 0,
		unlocked_at TEXT,
		mastered_at TEXT,
		last_practiced_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS skills_goal_status ON skills (goal_id, status)`,
	`CREATE INDEX IF NOT EXISTS skills_quest ON skills (quest_id)`,
	`CREATE INDEX IF NOT EXISTS skills_user ON skills (user_id)`,
	`CREATE TABLE IF NOT EXISTS week_plans (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		goal_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		quest_id TEXT NOT NULL DEFAULT '',
		week_number INTEGER NOT NULL,
		week_in_quest INTEGER NOT NULL DEFAULT 0,
		is_first_week INTEGER NOT NULL DEFAULT 0,
		is_last_week INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		theme TEXT NOT NULL DEFAULT '',
		weekly_competence TEXT NOT NULL DEFAULT '',
		days TEXT NOT NULL DEFAULT '[]',
		scheduled_skill_ids TEXT NOT NULL DEFAULT '[]',
		carry_forward_skill_ids TEXT NOT NULL DEFAULT '[]',
		completed_skill_ids TEXT NOT NULL DEFAULT '[]',
		foundation_count INTEGER NOT NULL DEFAULT 0,
		building_count INTEGER NOT NULL DEFAULT 0,
		compound_count INTEGER NOT NULL DEFAULT 0,
		synthesis_count INTEGER NOT NULL DEFAULT 0,
		drills_completed INTEGER NOT NULL DEFAULT 0,
		drills_passed INTEGER NOT NULL DEFAULT 0,
		drills_failed INTEGER NOT NULL DEFAULT 0,
		drills_skipped INTEGER NOT NULL DEFAULT 0,
		skills_mastered INTEGER NOT NULL DEFAULT 0,
		pass_rate REAL NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		next_week_focus TEXT NOT NULL DEFAULT '',
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS week_plans_goal_status ON week_plans (goal_id, status)`,
	`CREATE INDEX IF NOT EXISTS week_plans_goal_week ON week_plans (goal_id, week_number)`,
	`CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		quest_id TEXT NOT NULL,
		goal_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		artifact TEXT NOT NULL DEFAULT '',
		acceptance_criteria TEXT NOT NULL DEFAULT '[]',
		estimated_minutes INTEGER NOT NULL DEFAULT 0,
		required_mastery_percent REAL NOT NULL,
		status TEXT NOT NULL,
		unlocked_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS milestones_quest ON milestones (quest_id)`,
	`CREATE TABLE IF NOT EXISTS mastery_events (
		sequence INTEGER PRIMARY KEY,
		timestamp TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		goal_id TEXT NOT NULL,
		quest_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		from_mastery TEXT NOT NULL,
		to_mastery TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		pass_count INTEGER NOT NULL,
		fail_count INTEGER NOT NULL,
		consecutive_passes INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS mastery_events_skill ON mastery_events (skill_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS unlock_events (
		sequence INTEGER PRIMARY KEY,
		timestamp TEXT NOT NULL,
		skill_id TEXT NOT NULL DEFAULT '',
		milestone_id TEXT NOT NULL DEFAULT '',
		goal_id TEXT NOT NULL,
		trigger_skill_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS week_events (
		sequence INTEGER PRIMARY KEY,
		timestamp TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		goal_id TEXT NOT NULL,
		week_number INTEGER NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		sequence INTEGER PRIMARY KEY,
		timestamp TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
