package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuest = `title: Shell basics
daily_minutes: 30
duration: {practice_days: 5, week_start: 1, week_end: 1}
stages:
  - title: Files
    capability: list and read files
    artifact: a directory report
    topics: [files, shell]
    locked_variables: [same directory]
  - title: Pipes
    capability: chain commands with pipes
    artifact: a one-line word counter
    topics: [pipes, shell]
    locked_variables: [same input]
`

func execute(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append(args, "--db", db, "--backend", "sqlite"))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestQuestLifecycle(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	db := filepath.Join(dir, "qf.db")
	quest := filepath.Join(dir, "shell.yaml")
	require.NoError(t, os.WriteFile(quest, []byte(testQuest), 0o600))

	out, err := execute(t, db, "quest", "start", quest, "--goal", "g1", "--user", "u1", "--quest-id", "q1", "--start", "2026-03-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Quest q1: Shell basics")
	assert.Contains(t, out, "5 skills: 2 foundation, 1 building, 1 compound, 1 synthesis")
	assert.Contains(t, out, "Week 1")

	out, err = execute(t, db, "stats", "--goal", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, "5 skills: 0 mastered")
	assert.Contains(t, out, "Active week 1")

	out, err = execute(t, db, "quest", "status", "q1")
	require.NoError(t, err)
	assert.Contains(t, out, "Milestone:")

	out, err = execute(t, db, "skill", "list", "--goal", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, "5 skills")

	_, err = execute(t, db, "drill", "some-skill", "aced")
	assert.Error(t, err)

	out, err = execute(t, db, "week", "complete", "--goal", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, "Week 1: 0 of 5 skills mastered")
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "questforge (devel)\n", buf.String())
}
