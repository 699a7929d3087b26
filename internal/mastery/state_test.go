package mastery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/skillgraph"
)

func TestComputeMastery(t *testing.T) {
	tests := []struct {
		pass, consecutive int
		want              skillgraph.Mastery
	}{
		{0, 0, skillgraph.MasteryNotStarted},
		{1, 1, skillgraph.MasteryPracticing},
		{2, 2, skillgraph.MasteryPracticing},
		{3, 1, skillgraph.MasteryPracticing},
		{3, 2, skillgraph.MasteryMastered},
		{5, 0, skillgraph.MasteryPracticing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeMastery(tt.pass, tt.consecutive), "pass=%d consecutive=%d", tt.pass, tt.consecutive)
	}
}

func TestComputeMastery_AttemptingNeedsHigherPracticingThreshold(t *testing.T) {
	for pass := 0; pass < 10; pass++ {
		assert.NotEqual(t, skillgraph.MasteryAttempting, ComputeMastery(pass, 0))
	}
	th := Thresholds{Mastered: 3, Consecutive: 2, Practicing: 2}
	assert.Equal(t, skillgraph.MasteryAttempting, th.Compute(1, 1))
	assert.Equal(t, skillgraph.MasteryPracticing, th.Compute(2, 0))
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome(" PASS ")
	require.NoError(t, err)
	assert.Equal(t, OutcomePass, o)

	_, err = ParseOutcome("maybe")
	assert.Error(t, err)
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		cur  skillgraph.Status
		m    skillgraph.Mastery
		want skillgraph.Status
	}{
		{skillgraph.StatusAvailable, skillgraph.MasteryNotStarted, skillgraph.StatusAvailable},
		{skillgraph.StatusAvailable, skillgraph.MasteryPracticing, skillgraph.StatusInProgress},
		{skillgraph.StatusInProgress, skillgraph.MasteryMastered, skillgraph.StatusMastered},
		{skillgraph.StatusMastered, skillgraph.MasteryPracticing, skillgraph.StatusInProgress},
		{skillgraph.StatusLocked, skillgraph.MasteryMastered, skillgraph.StatusLocked},
		{skillgraph.StatusLocked, skillgraph.MasteryPracticing, skillgraph.StatusLocked},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextStatus(tt.cur, tt.m), "%s + %s", tt.cur, tt.m)
	}
}

func TestCounters(t *testing.T) {
	c := counters{pass: 3, consecutive: 2}
	assert.Equal(t, counters{pass: 4, consecutive: 3}, c.apply(OutcomePass))
	assert.Equal(t, counters{pass: 3, fail: 1}, c.apply(OutcomeFail))
	assert.Equal(t, c, c.apply(OutcomePartial))
	assert.Equal(t, c, c.apply(OutcomeSkipped))
}
