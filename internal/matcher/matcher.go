package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/extract"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

const (
	DefaultProvisionalThreshold = 0.70
	DefaultAcceptThreshold      = 0.75
)

// Verifier gives a second opinion on whether both contracts resolve on the
// same outcome. *validator.Service implements it.
type Verifier interface {
	Validate(ctx context.Context, m matches.Match) (*matches.ResolutionVerdict, error)
}

type Config struct {
	ProvisionalThreshold float64
	AcceptThreshold      float64
	// Prefilter skips pairs that share no keyword bucket. It is only used
	// when such pairs cannot reach the accept threshold anyway.
	Prefilter    bool
	Logger       *Logger
	Verifier     Verifier
	VerdictCache cache.VerdictCache
	Now          func() time.Time
}

// Stats counts what one Match call did.
type Stats struct {
	ContractsA         int `json:"contracts_a"`
	ContractsB         int `json:"contracts_b"`
	PairsScored        int `json:"pairs_scored"`
	PairsSkipped       int `json:"pairs_skipped"`
	Errors             int `json:"errors"`
	Candidates         int `json:"candidates"`
	Accepted           int `json:"accepted"`
	RejectedDangerous  int `json:"rejected_dangerous"`
	RejectedByVerifier int `json:"rejected_by_verifier"`
	VerifierErrors     int `json:"verifier_errors"`
}

// Matcher pairs every venue-A contract with its best venue-B counterpart.
// Cost is O(|A|*|B|) scorer calls; the keyword prefilter cuts that to
// pairs sharing a bucket once venues grow into the thousands.
type Matcher struct {
	provisional float64
	accept      float64
	prefilter   bool
	logger      *Logger
	verifier    Verifier
	verdicts    cache.VerdictCache
	now         func() time.Time
	score       func(a, b similarity.Doc) similarity.Result
}

func New(cfg Config) (*Matcher, error) {
	provisional := cfg.ProvisionalThreshold
	if provisional == 0 {
		provisional = DefaultProvisionalThreshold
	}
	accept := cfg.AcceptThreshold
	if accept == 0 {
		accept = DefaultAcceptThreshold
	}
	if provisional <= 0 || provisional > 1 || accept <= 0 || accept > 1 {
		return nil, fmt.Errorf("matcher: thresholds must be in (0,1], got provisional=%.2f accept=%.2f", provisional, accept)
	}
	if provisional > accept {
		return nil, fmt.Errorf("matcher: provisional threshold %.2f exceeds accept threshold %.2f", provisional, accept)
	}
	prefilter := cfg.Prefilter
	if prefilter && accept < similarity.MaxWithoutKeywords()+1e-9 {
		logging.Warnf("[matcher] prefilter disabled: accept threshold %.2f is reachable without shared keywords", accept)
		prefilter = false
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Matcher{
		provisional: provisional,
		accept:      accept,
		prefilter:   prefilter,
		logger:      cfg.Logger,
		verifier:    cfg.Verifier,
		verdicts:    cfg.VerdictCache,
		now:         now,
		score: func(a, b similarity.Doc) similarity.Result {
			return similarity.ScoreDocs(a, b, "")
		},
	}, nil
}

func (m *Matcher) AcceptThreshold() float64 {
	return m.accept
}

// Match returns at most one match per venue-A contract, in input order.
// A pair that fails to score is counted and dropped. Cancellation returns
// the matches found so far with the context error.
func (m *Matcher) Match(ctx context.Context, a, b []models.Contract) ([]matches.Match, Stats, error) {
	stats := Stats{ContractsA: len(a), ContractsB: len(b)}
	docsB := make([]similarity.Doc, len(b))
	for i, c := range b {
		docsB[i] = similarity.Analyze(c.MatchText())
	}
	var buckets map[extract.Keyword][]int
	if m.prefilter {
		buckets = bucketize(docsB)
	}

	matchedAt := m.now().UTC()
	var out []matches.Match
	for _, ca := range a {
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}
		text := ca.MatchText()
		if text == "" {
			stats.Errors++
			logging.Debugf("[matcher] %s: %v", ca.Key(), fmt.Errorf("%w: empty text", matches.ErrMatching))
			continue
		}
		docA := similarity.Analyze(text)

		candidates := allIndexes(len(b))
		if m.prefilter {
			candidates = candidatesFor(docA, buckets)
			stats.PairsSkipped += len(b) - len(candidates)
		}

		bestIdx := -1
		var best similarity.Result
		for _, j := range candidates {
			res, err := m.safeScore(docA, docsB[j])
			if err != nil {
				stats.Errors++
				logging.Debugf("[matcher] %s vs %s: %v", ca.Key(), b[j].Key(), err)
				continue
			}
			stats.PairsScored++
			if res.Final >= m.provisional && (bestIdx < 0 || res.Final > best.Final) {
				bestIdx = j
				best = res
			}
		}
		if bestIdx < 0 {
			continue
		}
		stats.Candidates++
		if best.Final <= m.accept {
			continue
		}
		match := matches.NewMatch(ca, b[bestIdx], best, matchedAt)
		if match.Risk == similarity.RiskDangerous {
			stats.RejectedDangerous++
			logging.Infof("[matcher] rejected dangerous pair %s <-> %s score=%.3f", ca.Key(), b[bestIdx].Key(), best.Final)
			continue
		}
		out = append(out, match)
	}

	out = m.verify(ctx, out, &stats)
	stats.Accepted = len(out)
	for _, match := range out {
		m.logger.LogMatch(match, m.accept)
	}
	return out, stats, nil
}

// safeScore converts a scorer panic into ErrMatching.
func (m *Matcher) safeScore(a, b similarity.Doc) (res similarity.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", matches.ErrMatching, r)
		}
	}()
	return m.score(a, b), nil
}

// verify asks the verifier about RISKY matches, consulting the verdict
// cache first. Matches it rejects are dropped; verifier failures keep the
// match unverified.
func (m *Matcher) verify(ctx context.Context, in []matches.Match, stats *Stats) []matches.Match {
	if m.verifier == nil {
		return in
	}
	out := in[:0]
	for _, match := range in {
		if match.Risk != similarity.RiskRisky {
			out = append(out, match)
			continue
		}
		verdict, err := m.verdict(ctx, match)
		if err != nil {
			stats.VerifierErrors++
			logging.Warnf("[matcher] verify %s failed: %v", match.PairID, err)
			out = append(out, match)
			continue
		}
		match.ResolutionVerdict = verdict
		if verdict.Rejects() {
			stats.RejectedByVerifier++
			logging.Infof("[matcher] verifier rejected %s: %s", match.PairID, verdict.ResolutionReason)
			continue
		}
		out = append(out, match)
	}
	return out
}

func (m *Matcher) verdict(ctx context.Context, match matches.Match) (*matches.ResolutionVerdict, error) {
	key := matches.VerdictCacheKey(match.A, match.B)
	if m.verdicts != nil && key != "" {
		cached, ok, err := m.verdicts.Get(ctx, key)
		switch {
		case err != nil:
			logging.Errorf("[verdict-cache] get error key=%s: %v", key, err)
		case ok:
			logging.Debugf("[verdict-cache] hit key=%s valid=%t", key, cached.ValidResolution)
			return cached, nil
		}
	}
	verdict, err := m.verifier.Validate(ctx, match)
	if err != nil {
		return nil, err
	}
	if m.verdicts != nil && key != "" {
		if err := m.verdicts.Set(ctx, key, verdict); err != nil {
			logging.Errorf("[verdict-cache] set error key=%s: %v", key, err)
		}
	}
	return verdict, nil
}

func bucketize(docs []similarity.Doc) map[extract.Keyword][]int {
	buckets := make(map[extract.Keyword][]int)
	for i, d := range docs {
		for kw := range d.Keywords {
			buckets[kw] = append(buckets[kw], i)
		}
	}
	return buckets
}

// candidatesFor returns the B indexes sharing a keyword with doc, in input
// order so ties resolve the same way as a full scan.
func candidatesFor(doc similarity.Doc, buckets map[extract.Keyword][]int) []int {
	seen := make(map[int]struct{})
	var out []int
	for kw := range doc.Keywords {
		for _, j := range buckets[kw] {
			if _, ok := seen[j]; ok {
				continue
			}
			seen[j] = struct{}{}
			out = append(out, j)
		}
	}
	sort.Ints(out)
	return out
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
