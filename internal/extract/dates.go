package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DateToken is a calendar reference found in contract text. Zero means the
// field was not present.
type DateToken struct {
	Year    int `json:"year,omitempty"`
	Month   int `json:"month,omitempty"`
	Day     int `json:"day,omitempty"`
	Quarter int `json:"quarter,omitempty"`
}

func (d DateToken) HasYear() bool    { return d.Year != 0 }
func (d DateToken) HasMonth() bool   { return d.Month != 0 }
func (d DateToken) HasDay() bool     { return d.Day != 0 }
func (d DateToken) HasQuarter() bool { return d.Quarter != 0 }

func (d DateToken) String() string {
	var parts []string
	if d.HasYear() {
		parts = append(parts, fmt.Sprintf("year=%d", d.Year))
	}
	if d.HasQuarter() {
		parts = append(parts, fmt.Sprintf("q=%d", d.Quarter))
	}
	if d.HasMonth() {
		parts = append(parts, fmt.Sprintf("month=%d", d.Month))
	}
	if d.HasDay() {
		parts = append(parts, fmt.Sprintf("day=%d", d.Day))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7,
	"aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

// MonthNumber maps a full or abbreviated English month name to 1..12.
func MonthNumber(name string) (int, bool) {
	n, ok := months[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

type datePattern struct {
	re    *regexp.Regexp
	parse func(groups []string) (DateToken, bool)
}

// Patterns run against lowercased text, in this order.
var datePatterns = []datePattern{
	{regexp.MustCompile(`\b([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`), parseMonthDayYear},
	{regexp.MustCompile(`\b([a-z]+)\s+(\d{4})\b`), parseMonthYear},
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), parseSlashDate},
	{regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), parseISODate},
	{regexp.MustCompile(`\bend of ([a-z]+) (\d{4})\b`), parseMonthYear},
	{regexp.MustCompile(`\bend of (\d{4})\b`), parseYear},
	{regexp.MustCompile(`\bby ([a-z]+) (\d{4})\b`), parseMonthYear},
	{regexp.MustCompile(`\bby (\d{4})\b`), parseYear},
	{regexp.MustCompile(`\bq([1-4])\s+(\d{4})\b`), parseQuarterYear},
	{regexp.MustCompile(`\b(\d{4})\s*q([1-4])\b`), parseYearQuarter},
}

// Dates returns every distinct date reference in text, in order of first
// discovery. Fragments that look like dates but name no real month or day
// are skipped.
func Dates(text string) []DateToken {
	lower := strings.ToLower(text)
	seen := make(map[DateToken]struct{})
	var out []DateToken
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(lower, -1) {
			tok, ok := p.parse(m[1:])
			if !ok {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

func parseMonthDayYear(g []string) (DateToken, bool) {
	month, ok := MonthNumber(g[0])
	if !ok {
		return DateToken{}, false
	}
	return buildDate(atoi(g[2]), month, atoi(g[1]))
}

func parseMonthYear(g []string) (DateToken, bool) {
	month, ok := MonthNumber(g[0])
	if !ok {
		return DateToken{}, false
	}
	return DateToken{Year: atoi(g[1]), Month: month}, true
}

func parseSlashDate(g []string) (DateToken, bool) {
	return buildDate(atoi(g[2]), atoi(g[0]), atoi(g[1]))
}

func parseISODate(g []string) (DateToken, bool) {
	return buildDate(atoi(g[0]), atoi(g[1]), atoi(g[2]))
}

func parseYear(g []string) (DateToken, bool) {
	return DateToken{Year: atoi(g[0])}, true
}

func parseQuarterYear(g []string) (DateToken, bool) {
	return DateToken{Year: atoi(g[1]), Quarter: atoi(g[0])}, true
}

func parseYearQuarter(g []string) (DateToken, bool) {
	return DateToken{Year: atoi(g[0]), Quarter: atoi(g[1])}, true
}

func buildDate(year, month, day int) (DateToken, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return DateToken{}, false
	}
	return DateToken{Year: year, Month: month, Day: day}, true
}

// atoi is only used on \d groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
