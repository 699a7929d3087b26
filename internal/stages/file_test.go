package stages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/treegen"
)

const questYAML = `
title: Log tooling
level: Beginner
daily_minutes: 30
duration:
  practice_days: 10
  week_start: 2
stages:
  - title: Reading files
    capability: open and stream a file line by line
    artifact: a line counter
    topics: [Files, io, files]
  - title: Parsing
    capability: split log lines into fields
    topics: [parsing]
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	qf, err := LoadFile(writeFile(t, "quest.yaml", questYAML))
	require.NoError(t, err)

	assert.Equal(t, "Log tooling", qf.Title)
	assert.False(t, qf.NeedsDecomposition())
	require.Len(t, qf.Stages, 2)
	assert.Equal(t, []string{"files", "io"}, qf.Stages[0].Topics)

	in := qf.Input("u1", "g1")
	assert.Equal(t, treegen.LevelBeginner, in.Level)
	assert.Equal(t, treegen.Duration{PracticeDays: 10, WeekStart: 2}, in.Duration)
	assert.Equal(t, 30, in.DailyMinutes)
	assert.Equal(t, "g1", in.GoalID)
}

func TestLoadFile_JSON(t *testing.T) {
	qf, err := LoadFile(writeFile(t, "quest.JSON", `{
		"title": "HTTP basics",
		"goal": "Serve and call JSON APIs",
		"duration": {"practice_days": 5}
	}`))
	require.NoError(t, err)

	assert.True(t, qf.NeedsDecomposition())
	assert.Equal(t, 1, qf.Duration.WeekStart)

	req := qf.Request()
	assert.Equal(t, "Serve and call JSON APIs", req.Goal)
	assert.Equal(t, treegen.LevelIntermediate, req.Level)
	assert.Equal(t, 5, req.PracticeDays)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := map[string]struct {
		name, body, want string
	}{
		"unknown key":    {"q.yaml", "title: x\ncolour: red\n", "colour"},
		"no title":       {"q.yaml", "goal: g\nduration: {practice_days: 3}\n", "title is required"},
		"no days":        {"q.yaml", "title: x\ngoal: g\n", "practice_days"},
		"week order":     {"q.yaml", "title: x\ngoal: g\nduration: {practice_days: 3, week_start: 4, week_end: 2}\n", "precedes"},
		"nothing to run": {"q.yaml", "title: x\nduration: {practice_days: 3}\n", "stages or a goal"},
		"bad json":       {"q.json", `{"title": }`, "decode json"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.name, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read quest file")
}
