package treegen

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/abhisek/questforge/internal/skillgraph"
)

// Validation rules reported in Warning.Rule.
const (
	RuleImperativeAction = "imperative_action"
	RuleSuccessSignal    = "success_signal"
	RuleTimeBudget       = "time_budget"
	RuleLockedVariables  = "locked_variables"
	RuleComponents       = "components"
)

// minSuccessSignalLen is the shortest acceptable success signal.
const minSuccessSignalLen = 10

var imperativeVerbs = map[string]bool{}

func init() {
	for _, v := range strings.Fields(`
		add analyze apply arrange assemble audit automate balance benchmark build
		calculate change check choose clean combine compare compile compose configure
		connect construct convert create debug decide define delete deliver demonstrate
		deploy describe design detect diagnose document draft draw edit estimate
		evaluate execute explain export extend extract fix format identify implement
		import improve install instrument integrate interpret introduce investigate
		label launch list load log make map measure merge migrate model monitor move
		name optimize organize outline pair parse perform plan play practice prepare
		present produce profile program prototype publish read rebuild record refactor
		remove render repair replace report reproduce research restore review rewrite
		run scale schedule score set ship simulate sketch solve sort speak split
		start structure summarize test trace train transform translate tune update
		use validate verify visualize write`) {
		imperativeVerbs[v] = true
	}
}

// ValidateSkill checks a generated skill against the content rules and
// returns one warning per violated rule. budget is the daily-minutes budget;
// zero disables the time check.
func ValidateSkill(s *skillgraph.Skill, budget int) []Warning {
	var warns []Warning
	add := func(rule, format string, args ...any) {
		warns = append(warns, Warning{
			SkillID: s.ID,
			Title:   s.Title,
			Rule:    rule,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if verb := leadingWord(s.Action); !imperativeVerbs[verb] {
		if verb == "" {
			add(RuleImperativeAction, "action is empty")
		} else {
			add(RuleImperativeAction, "action should start with an imperative verb, got %q", verb)
		}
	}
	if n := len([]rune(strings.TrimSpace(s.SuccessSignal))); n < minSuccessSignalLen {
		add(RuleSuccessSignal, "success signal has %d characters, need at least %d", n, minSuccessSignalLen)
	}
	if budget > 0 && s.EstimatedMinutes > budget {
		add(RuleTimeBudget, "estimated %d minutes exceeds the %d minute daily budget", s.EstimatedMinutes, budget)
	}
	if len(s.LockedVariables) == 0 {
		add(RuleLockedVariables, "no locked variables isolate the skill")
	}
	if (s.IsCompound || s.Type == skillgraph.TypeCompound) && len(s.ComponentSkillIDs) < 2 {
		add(RuleComponents, "compound skill has %d components, need at least 2", len(s.ComponentSkillIDs))
	}
	return warns
}

func leadingWord(s string) string {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && r != '-' })
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToLower(s)
}
