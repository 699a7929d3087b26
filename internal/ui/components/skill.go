package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/questforge/internal/skillgraph"
	"github.com/abhisek/questforge/internal/ui/theme"
)

var statusStyles = map[skillgraph.Status]lipgloss.Style{
	skillgraph.StatusLocked:     theme.Subtitle,
	skillgraph.StatusAvailable:  theme.Body,
	skillgraph.StatusInProgress: theme.Caution,
	skillgraph.StatusMastered:   theme.Good,
}

var statusIcons = map[skillgraph.Status]string{
	skillgraph.StatusLocked:     "🔒",
	skillgraph.StatusAvailable:  "○",
	skillgraph.StatusInProgress: "◐",
	skillgraph.StatusMastered:   "●",
}

// StatusBadge renders a skill status with its icon.
func StatusBadge(s skillgraph.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		style = theme.Body
	}
	return style.Render(statusIcons[s] + " " + string(s))
}

// SkillRow renders one line of a skill listing.
func SkillRow(s *skillgraph.Skill) string {
	title := s.Title
	if len([]rune(title)) > 40 {
		title = string([]rune(title)[:37]) + "..."
	}
	badge := StatusBadge(s.Status)
	badge += strings.Repeat(" ", max(15-lipgloss.Width(badge), 0))
	return fmt.Sprintf("%3d  %-10s  %-40s  %s  %-12s %d/%d",
		s.Order, s.Type, title, badge, s.Mastery, s.PassCount, s.FailCount)
}

// SkillCard renders every field a learner needs to practise a skill.
func SkillCard(s *skillgraph.Skill) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(s.Title) + "\n")
	row := func(label, value string) {
		if value != "" {
			b.WriteString(theme.Label.Render(label) + theme.Body.Render(value) + "\n")
		}
	}
	row("id", s.ID)
	row("type", string(s.Type))
	row("status", StatusBadge(s.Status))
	row("mastery", string(s.Mastery))
	row("action", s.Action)
	row("pass signal", s.SuccessSignal)
	row("hold fixed", strings.Join(s.LockedVariables, ", "))
	row("minutes", fmt.Sprint(s.EstimatedMinutes))
	row("schedule", fmt.Sprintf("week %d, day %d", s.WeekNumber, s.DayInWeek))
	row("prerequisites", strings.Join(s.PrerequisiteSkillIDs, ", "))
	row("components", strings.Join(s.ComponentSkillIDs, ", "))
	row("record", fmt.Sprintf("%d passed, %d failed, %d in a row", s.PassCount, s.FailCount, s.ConsecutivePasses))
	return theme.Card.Render(strings.TrimRight(b.String(), "\n"))
}
