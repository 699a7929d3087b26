package stages

import (
	"fmt"
	"strings"
)

const systemPrompt = `You design practice-based learning quests. Break the learner's goal into an ordered list of stages. Each stage names one capability the learner practises hands-on, the artifact they build, one mistake they should make deliberately, its consequence, and how to recover. Earlier stages must not depend on later ones.`

func userMessage(req Request, maxStages int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quest: %s\n", req.QuestTitle)
	fmt.Fprintf(&b, "Goal: %s\n", req.Goal)
	fmt.Fprintf(&b, "Learner level: %s\n", req.Level)
	if req.PracticeDays > 0 {
		fmt.Fprintf(&b, "Practice days: %d\n", req.PracticeDays)
	}
	if req.DailyMinutes > 0 {
		fmt.Fprintf(&b, "Minutes per day: %d\n", req.DailyMinutes)
	}
	if len(req.KnownTopics) > 0 {
		fmt.Fprintf(&b, "Topics already practised in earlier quests: %s\n", strings.Join(req.KnownTopics, ", "))
	}
	fmt.Fprintf(&b, "\nReturn between 2 and %d stages.", maxStages)
	return b.String()
}
