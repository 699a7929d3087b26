package components

import (
	"fmt"
	"strings"

	"github.com/abhisek/questforge/internal/ui/theme"
	"github.com/abhisek/questforge/internal/weekplan"
)

var dayIcons = map[weekplan.DayStatus]string{
	weekplan.DayPending:   "·",
	weekplan.DayCompleted: "✓",
	weekplan.DaySkipped:   "–",
}

// WeekCard renders a week plan: header, day slots and progress.
func WeekCard(p *weekplan.Plan, titles map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", theme.Title.Render(fmt.Sprintf("Week %d", p.WeekNumber)), theme.Subtitle.Render(string(p.Status)))
	b.WriteString(theme.Highlight.Render(p.Theme) + "\n")
	fmt.Fprintf(&b, "%s\n\n", theme.Subtitle.Render(p.StartDate.Format("Mon Jan 2")+" – "+p.EndDate.Format("Mon Jan 2")))

	for _, d := range p.Days {
		title := titles[d.SkillID]
		if title == "" {
			title = d.SkillID
		}
		carried := ""
		if d.IsCarryForward {
			carried = theme.Caution.Render(" (carried)")
		}
		fmt.Fprintf(&b, "%s  Day %d  %-10s %s%s\n", dayIcons[d.Status], d.Day, d.SkillType, title, carried)
	}

	pr := p.Progress
	fmt.Fprintf(&b, "\n%d drills: %s passed, %s failed, %d skipped, %d mastered\n",
		pr.DrillsCompleted, theme.Good.Render(fmt.Sprint(pr.DrillsPassed)), theme.Bad.Render(fmt.Sprint(pr.DrillsFailed)),
		pr.DrillsSkipped, pr.SkillsMastered)
	b.WriteString(NewProgressBar("pass rate", p.PassRate, true, 40).View())
	if p.Summary != "" {
		b.WriteString("\n\n" + theme.Body.Render(p.Summary))
	}
	if p.NextWeekFocus != "" {
		b.WriteString("\n" + theme.Hint.Render(p.NextWeekFocus))
	}
	return theme.Card.Render(b.String())
}
