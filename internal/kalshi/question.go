package kalshi

import (
	"fmt"
	"strings"
)

// ruleVerbs end the subject of an "If X becomes ..." rule sentence.
var ruleVerbs = []string{
	" becomes", " is ", " wins", " will ", " reaches", " secures", " scores",
	" resigns", " retires", " defeats", " beats", " finishes", " captures",
	" takes", " makes", " receives", " gets ",
}

// deriveKalshiQuestion fills in the subject Kalshi leaves out of templated
// market titles ("Will  become ...") so both venues' questions read alike.
func deriveKalshiQuestion(eventTitle string, m *market) string {
	base := strings.TrimSpace(m.Title)
	if base == "" {
		base = eventTitle
	}

	alias := extractEntityFromRules(m.RulesPrimary)
	if alias == "" {
		alias = extractEntityFromTitle(eventTitle)
	}
	if alias == "" && strings.Contains(base, "  ") {
		alias = extractEntityFromTitle(base)
	}
	if alias == "" {
		alias = strings.TrimSpace(m.YesSubTitle)
	}
	if alias == "" {
		return base
	}
	if strings.Contains(strings.ToLower(base), strings.ToLower(alias)) {
		return base
	}
	if strings.Contains(base, "  ") {
		return strings.Replace(base, "  ", " "+alias+" ", 1)
	}
	return fmt.Sprintf("%s (%s)", base, alias)
}

func extractEntityFromRules(rule string) string {
	rule = strings.TrimSpace(rule)
	if len(rule) < 3 || !strings.EqualFold(rule[:3], "if ") {
		return ""
	}
	trimmed := strings.TrimSpace(rule[3:])
	lower := strings.ToLower(trimmed)

	pos := -1
	for _, kw := range ruleVerbs {
		if idx := strings.Index(lower, kw); idx != -1 && (pos == -1 || idx < pos) {
			pos = idx
		}
	}
	if pos == -1 {
		switch {
		case strings.Contains(lower, ","):
			pos = strings.Index(lower, ",")
		case strings.Contains(lower, " then"):
			pos = strings.Index(lower, " then")
		default:
			pos = len(trimmed)
		}
	}
	return strings.Trim(strings.TrimSpace(trimmed[:pos]), `"'`)
}

func extractEntityFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if len(title) < 5 || !strings.EqualFold(title[:5], "will ") {
		return ""
	}
	title = title[5:]
	lower := strings.ToLower(title)

	end := strings.Index(lower, " become")
	if end == -1 {
		end = strings.Index(lower, " be ")
	}
	if end == -1 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(title[:end]), `"'`)
}
