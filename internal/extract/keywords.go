package extract

import (
	"sort"
	"strings"
)

// Keyword is a topic bucket detected in contract text.
type Keyword string

const (
	KeywordFed        Keyword = "fed"
	KeywordRates      Keyword = "rates"
	KeywordInflation  Keyword = "inflation"
	KeywordEmployment Keyword = "employment"
	KeywordGDP        Keyword = "gdp"
	KeywordMarkets    Keyword = "markets"
	KeywordCrypto     Keyword = "crypto"
	KeywordEarnings   Keyword = "earnings"
	KeywordHousing    Keyword = "housing"
	KeywordBonds      Keyword = "bonds"
	KeywordElection   Keyword = "election"
)

// keywordTerms are matched as case-insensitive substrings.
var keywordTerms = []struct {
	key   Keyword
	terms []string
}{
	{KeywordFed, []string{"federal reserve", "fed", "fomc", "monetary policy", "interest rate decision"}},
	{KeywordRates, []string{"interest rate", "fed rate", "federal funds", "basis points", "bps"}},
	{KeywordInflation, []string{"cpi", "consumer price index", "pce", "inflation", "deflation"}},
	{KeywordEmployment, []string{"unemployment", "jobs", "payroll", "employment", "jobless", "nonfarm"}},
	{KeywordGDP, []string{"gdp", "gross domestic product", "economic growth", "recession"}},
	{KeywordMarkets, []string{"sp500", "s&p 500", "nasdaq", "dow", "stock market", "market close"}},
	{KeywordCrypto, []string{"bitcoin", "btc", "ethereum", "eth", "cryptocurrency"}},
	{KeywordEarnings, []string{"earnings", "eps", "revenue", "quarterly results"}},
	{KeywordHousing, []string{"housing", "mortgage", "real estate", "home prices"}},
	{KeywordBonds, []string{"treasury", "yield", "bonds", "10-year", "yield curve"}},
	{KeywordElection, []string{"election", "president", "congress", "senate", "house", "vote", "midterm"}},
}

// KeywordSet is the set of buckets present in a text.
type KeywordSet map[Keyword]struct{}

// Keywords returns the buckets with at least one term present in text.
func Keywords(text string) KeywordSet {
	lower := strings.ToLower(text)
	out := make(KeywordSet)
	for _, kt := range keywordTerms {
		for _, term := range kt.terms {
			if strings.Contains(lower, term) {
				out[kt.key] = struct{}{}
				break
			}
		}
	}
	return out
}

// Has reports whether k is in the set.
func (s KeywordSet) Has(k Keyword) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the set's members in lexical order.
func (s KeywordSet) Sorted() []Keyword {
	out := make([]Keyword, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when either set is empty.
func Jaccard(a, b KeywordSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b.Has(k) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Category selects the scoring weights for a pair.
type Category string

const (
	CategoryFedRates   Category = "fed_rates"
	CategoryInflation  Category = "inflation"
	CategoryEmployment Category = "employment"
	CategoryEconomy    Category = "economy"
	CategoryPolitics   Category = "politics"
	CategoryCrypto     Category = "crypto"
	CategoryMarkets    Category = "markets"
	CategoryOther      Category = "other"
)

// IsEconomic reports whether date mismatches are penalized for c.
func (c Category) IsEconomic() bool {
	switch c {
	case CategoryFedRates, CategoryInflation, CategoryEmployment, CategoryEconomy:
		return true
	}
	return false
}

var categoryTerms = []struct {
	cat   Category
	terms []string
}{
	{CategoryFedRates, []string{"fed", "federal reserve", "fomc", "interest rate"}},
	{CategoryInflation, []string{"cpi", "inflation", "consumer price"}},
	{CategoryEmployment, []string{"unemployment", "jobs", "payroll"}},
	{CategoryEconomy, []string{"gdp", "recession", "growth"}},
}

// DetectCategory classifies a pair from the combined text of both sides.
// The first family with a matching term wins.
func DetectCategory(a, b string) Category {
	combined := strings.ToLower(a + " " + b)
	for _, ct := range categoryTerms {
		for _, term := range ct.terms {
			if strings.Contains(combined, term) {
				return ct.cat
			}
		}
	}
	return CategoryOther
}

// ParseCategory accepts a category name; unknown names map to other.
func ParseCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryFedRates, CategoryInflation, CategoryEmployment, CategoryEconomy,
		CategoryPolitics, CategoryCrypto, CategoryMarkets:
		return c
	}
	return CategoryOther
}
