package validator

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/models"
)

var urlRegex = regexp.MustCompile(`https?://[^\s)"']+`)

const maxDetailChars = 6000

type promptPayload struct {
	PairID       string          `json:"pair_id"`
	MatchedAtUTC string          `json:"matched_at_utc,omitempty"`
	Similarity   float64         `json:"similarity"`
	Category     string          `json:"category,omitempty"`
	DatesAgree   float64         `json:"date_alignment"`
	A            contractPayload `json:"contract_a"`
	B            contractPayload `json:"contract_b"`
}

type contractPayload struct {
	Venue             string   `json:"venue"`
	EventID           string   `json:"event_id,omitempty"`
	ContractID        string   `json:"contract_id"`
	Title             string   `json:"event_title,omitempty"`
	Question          string   `json:"question"`
	Category          string   `json:"category,omitempty"`
	ResolutionSource  string   `json:"resolution_source,omitempty"`
	ResolutionDetails string   `json:"resolution_details,omitempty"`
	CloseTimeUTC      string   `json:"close_time_utc,omitempty"`
	YesMeans          string   `json:"yes_means"`
	DataSourceDomains []string `json:"data_source_domains,omitempty"`
}

func buildPromptPayload(m matches.Match) promptPayload {
	return promptPayload{
		PairID:       m.PairID,
		MatchedAtUTC: formatTime(m.MatchedAt),
		Similarity:   m.Score.Final,
		Category:     string(m.Score.Category),
		DatesAgree:   m.Score.DateAlignment,
		A:            buildContractPayload(m.A),
		B:            buildContractPayload(m.B),
	}
}

func buildContractPayload(c models.Contract) contractPayload {
	return contractPayload{
		Venue:             string(c.Venue),
		EventID:           c.EventID,
		ContractID:        c.ContractID,
		Title:             c.EventTitle,
		Question:          c.Question,
		Category:          c.Category,
		ResolutionSource:  c.ResolutionSource,
		ResolutionDetails: truncateText(c.ResolutionDetails, maxDetailChars),
		CloseTimeUTC:      formatTime(c.CloseTime),
		YesMeans:          "YES when the question \"" + strings.TrimSpace(c.MatchText()) + "\" resolves positively; NO otherwise.",
		DataSourceDomains: collectDomains(c.ResolutionSource, c.ResolutionDetails),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func collectDomains(texts ...string) []string {
	set := make(map[string]struct{})
	add := func(raw string) {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			return
		}
		set[strings.ToLower(u.Host)] = struct{}{}
	}
	for _, text := range texts {
		add(text)
		for _, match := range urlRegex.FindAllString(text, -1) {
			add(match)
		}
	}
	domains := make([]string, 0, len(set))
	for host := range set {
		domains = append(domains, host)
	}
	sort.Strings(domains)
	return domains
}

func truncateText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + " ... (truncated)"
}
