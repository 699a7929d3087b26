package mastery

import (
	"context"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/store"
)

// Summary buckets a goal's skills by mastery level and status.
type Summary struct {
	GoalID     string
	Total      int
	NotStarted int
	Attempting int
	Practicing int
	Mastered   int
	ByStatus   map[skillgraph.Status]int
	ByType     map[skillgraph.SkillType]int
}

// Percent returns the mastered share in [0, 1].
func (s *Summary) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Mastered) / float64(s.Total)
}

func (s *Summary) add(sk *skillgraph.Skill) {
	s.Total++
	switch sk.Mastery {
	case skillgraph.MasteryMastered:
		s.Mastered++
	case skillgraph.MasteryPracticing:
		s.Practicing++
	case skillgraph.MasteryAttempting:
		s.Attempting++
	default:
		s.NotStarted++
	}
	s.ByStatus[sk.Status]++
	s.ByType[sk.Type]++
}

// GetMasterySummary aggregates every skill of goalID.
func (s *Service) GetMasterySummary(ctx context.Context, goalID string) (*Summary, error) {
	skills, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return s.skills.ByGoal(ctx, goalID, o)
	})
	if err != nil {
		return nil, apperr.StoreFailure("mastery.summary", err)
	}
	sum := &Summary{
		GoalID:   goalID,
		ByStatus: make(map[skillgraph.Status]int),
		ByType:   make(map[skillgraph.SkillType]int),
	}
	for _, sk := range skills {
		sum.add(sk)
	}
	return sum, nil
}

// GetQuestMasteryPercent returns the mastered share of the quest's
// non-synthesis skills, matching the milestone ratio.
func (s *Service) GetQuestMasteryPercent(ctx context.Context, questID string) (float64, error) {
	skills, err := store.All(ctx, func(ctx context.Context, o store.ListOpts) (store.Page[*skillgraph.Skill], error) {
		return s.skills.ByQuest(ctx, questID, o)
	})
	if err != nil {
		return 0, apperr.StoreFailure("mastery.quest_percent", err)
	}
	var total, mastered int
	for _, sk := range skills {
		if sk.IsSynthesis() {
			continue
		}
		total++
		if sk.Mastery == skillgraph.MasteryMastered {
			mastered++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(mastered) / float64(total), nil
}
