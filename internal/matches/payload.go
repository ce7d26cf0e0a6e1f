package matches

import (
	"fmt"
	"sort"
	"time"

	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

// Match is an accepted pairing of a venue-A contract with a venue-B
// contract believed to resolve on the same event.
type Match struct {
	PairID    string            `json:"pair_id"`
	A         models.Contract   `json:"a"`
	B         models.Contract   `json:"b"`
	Score     similarity.Result `json:"score"`
	Risk      similarity.Risk   `json:"risk"`
	MatchedAt time.Time         `json:"matched_at"`

	ResolutionVerdict *ResolutionVerdict `json:"resolution_verdict,omitempty"`
}

// NewMatch builds a match with a canonical pair ID.
func NewMatch(a, b models.Contract, score similarity.Result, matchedAt time.Time) Match {
	return Match{
		PairID:    PairID(a, b),
		A:         a,
		B:         b,
		Score:     score,
		Risk:      similarity.AssessRisk(score),
		MatchedAt: matchedAt,
	}
}

// Confidence is the final similarity score of the pair.
func (m Match) Confidence() float64 {
	return m.Score.Final
}

// PairID is order-independent: PairID(a, b) == PairID(b, a).
func PairID(a, b models.Contract) string {
	parts := []string{
		fmt.Sprintf("%s:%s", a.Venue, a.ContractID),
		fmt.Sprintf("%s:%s", b.Venue, b.ContractID),
	}
	sort.Strings(parts)
	return hashutil.ShortHash(parts...)
}
