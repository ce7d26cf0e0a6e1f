package similarity

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hetulpatel/crossarb/internal/extract"
)

// Weights combine the three component scores.
type Weights struct {
	Date    float64 `json:"date"`
	Keyword float64 `json:"keyword"`
	Text    float64 `json:"text"`
}

var (
	DefaultWeights  = Weights{Date: 0.5, Keyword: 0.3, Text: 0.2}
	EconomicWeights = Weights{Date: 0.6, Keyword: 0.3, Text: 0.1}
	TopicWeights    = Weights{Date: 0.4, Keyword: 0.4, Text: 0.2}
)

// WeightsFor returns the weights for a category.
func WeightsFor(c extract.Category) Weights {
	switch {
	case c.IsEconomic():
		return EconomicWeights
	case c == extract.CategoryPolitics, c == extract.CategoryCrypto:
		return TopicWeights
	default:
		return DefaultWeights
	}
}

const (
	sameYearMonthMismatchPenalty = 0.3
	weakDateAlignmentPenalty     = 0.7
	weakDateAlignment            = 0.5
)

// Result is the full breakdown for one pair of texts.
type Result struct {
	TextSimilarity float64          `json:"text_similarity"`
	DateAlignment  float64          `json:"date_alignment"`
	KeywordScore   float64          `json:"keyword_score"`
	Category       extract.Category `json:"category"`
	Weights        Weights          `json:"weights"`
	Penalty        float64          `json:"penalty"`
	Final          float64          `json:"final_score"`

	DatesA    []extract.DateToken `json:"dates_a,omitempty"`
	DatesB    []extract.DateToken `json:"dates_b,omitempty"`
	KeywordsA []extract.Keyword   `json:"keywords_a,omitempty"`
	KeywordsB []extract.Keyword   `json:"keywords_b,omitempty"`
}

// Doc is a contract text with its dates and keywords extracted once, so a
// text can be scored against many candidates cheaply.
type Doc struct {
	Text     string
	Dates    []extract.DateToken
	Keywords extract.KeywordSet
}

// Analyze extracts everything Score needs from text.
func Analyze(text string) Doc {
	return Doc{Text: text, Dates: extract.Dates(text), Keywords: extract.Keywords(text)}
}

// Score compares two contract texts. An empty category is detected from
// the combined text.
func Score(a, b string, category extract.Category) Result {
	return ScoreDocs(Analyze(a), Analyze(b), category)
}

// ScoreDocs is Score for pre-analyzed texts.
func ScoreDocs(a, b Doc, category extract.Category) Result {
	if category == "" {
		category = extract.DetectCategory(a.Text, b.Text)
	}
	res := Result{
		TextSimilarity: TextSimilarity(a.Text, b.Text),
		DateAlignment:  DateAlignment(a.Dates, b.Dates),
		KeywordScore:   extract.Jaccard(a.Keywords, b.Keywords),
		Category:       category,
		Weights:        WeightsFor(category),
		Penalty:        1.0,
		DatesA:         a.Dates,
		DatesB:         b.Dates,
		KeywordsA:      a.Keywords.Sorted(),
		KeywordsB:      b.Keywords.Sorted(),
	}
	if category.IsEconomic() {
		res.Penalty = DatePenalty(a.Dates, b.Dates, res.DateAlignment)
	}
	w := res.Weights
	raw := res.DateAlignment*w.Date + res.KeywordScore*w.Keyword + res.TextSimilarity*w.Text
	res.Final = clamp01(raw * res.Penalty)
	return res
}

// MaxWithoutKeywords is the highest final score any category can reach
// when the two texts share no keyword bucket.
func MaxWithoutKeywords() float64 {
	best := 0.0
	for _, w := range []Weights{DefaultWeights, EconomicWeights, TopicWeights} {
		best = math.Max(best, w.Date+w.Text)
	}
	return best
}

// TextSimilarity is the SequenceMatcher ratio (2*M/T) of the lowercased
// strings compared character by character.
func TextSimilarity(a, b string) float64 {
	sa := strings.Split(strings.ToLower(a), "")
	sb := strings.Split(strings.ToLower(b), "")
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	return difflib.NewMatcher(sa, sb).Ratio()
}

// DateAlignment is the best pairwise alignment between any date in a and
// any date in b, or 0 when either side has none.
func DateAlignment(a, b []extract.DateToken) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	best := 0.0
	for _, da := range a {
		for _, db := range b {
			if s := pairAlignment(da, db); s > best {
				best = s
			}
		}
	}
	return best
}

// pairAlignment treats two absent fields as agreeing: "by 2025" and
// "end of 2025" describe the same window.
func pairAlignment(a, b extract.DateToken) float64 {
	score := 0.0
	switch {
	case a.Year == b.Year:
		score += 0.6
	case a.HasYear() && b.HasYear() && absInt(a.Year-b.Year) == 1:
		score += 0.3
	}
	switch {
	case a.Month == b.Month:
		score += 0.3
	case a.HasMonth() && b.HasMonth() && absInt(a.Month-b.Month) == 1:
		score += 0.15
	}
	if a.HasDay() && b.HasDay() && a.Day == b.Day {
		score += 0.1
	}
	if a.HasQuarter() && b.HasQuarter() && a.Quarter == b.Quarter {
		score += 0.3
	}
	return math.Min(score, 1.0)
}

// DatePenalty is the multiplier applied to economic pairs. Two releases in
// the same year but different months are different contracts.
func DatePenalty(a, b []extract.DateToken, alignment float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1.0
	}
	for _, da := range a {
		for _, db := range b {
			if da.Year == db.Year && da.HasMonth() && db.HasMonth() && da.Month != db.Month {
				return sameYearMonthMismatchPenalty
			}
		}
	}
	if alignment < weakDateAlignment {
		return weakDateAlignmentPenalty
	}
	return 1.0
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
