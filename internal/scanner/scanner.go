package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hetulpatel/crossarb/internal/arb"
	"github.com/hetulpatel/crossarb/internal/books"
	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/gas"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/metrics"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/queue"
)

// Venue is one side of the scan: where markets are listed and where their
// books are read.
type Venue struct {
	Collector collectors.Collector
	Books     collectors.BookFetcher
}

type Matcher interface {
	Match(ctx context.Context, a, b []models.Contract) ([]matches.Match, matcher.Stats, error)
}

// ContractStore records every contract seen in a cycle.
type ContractStore interface {
	UpsertContracts(ctx context.Context, contracts []models.Contract, seenAt time.Time) error
}

type Deps struct {
	Config  *config.Config
	A       Venue
	B       Venue
	Matcher Matcher

	// Optional.
	Gas       gas.Oracle
	Sink      queue.Sink
	Contracts ContractStore
	Metrics   *metrics.Metrics
	Now       func() time.Time
	NewID     func() string
}

// Scanner runs scan cycles: list both venues, normalize, match, then cost
// the matches against live books. Books are only read after matching has
// finished.
type Scanner struct {
	cfg       *config.Config
	a, b      Venue
	matcher   Matcher
	gas       gas.Oracle
	sink      queue.Sink
	contracts ContractStore
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
	limiters  map[collectors.Venue]*rate.Limiter

	mu   sync.Mutex
	last *matches.ScanSummary
}

func New(d Deps) (*Scanner, error) {
	switch {
	case d.Config == nil:
		return nil, errors.New("scanner: config is required")
	case d.A.Collector == nil || d.B.Collector == nil:
		return nil, errors.New("scanner: both venue collectors are required")
	case d.Matcher == nil:
		return nil, errors.New("scanner: matcher is required")
	}
	s := &Scanner{
		cfg:       d.Config,
		a:         d.A,
		b:         d.B,
		matcher:   d.Matcher,
		gas:       d.Gas,
		sink:      d.Sink,
		contracts: d.Contracts,
		metrics:   d.Metrics,
		now:       d.Now,
		newID:     d.NewID,
	}
	if s.gas == nil {
		s.gas = gas.Fixed(d.Config.Fees.PolymarketGasUSD)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.limiters = map[collectors.Venue]*rate.Limiter{
		d.A.Collector.Venue(): books.Limiter(d.Config.Kalshi.RequestsPerSec, d.Config.Kalshi.Burst),
		d.B.Collector.Venue(): books.Limiter(d.Config.Polymarket.RequestsPerSec, d.Config.Polymarket.Burst),
	}
	return s, nil
}

// Run scans once immediately and then every scan interval until ctx is
// done. A failed cycle is logged and the next one runs on schedule.
func (s *Scanner) Run(ctx context.Context) error {
	interval := s.cfg.Scan.Interval.Duration
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			logging.Errorf("[scanner] cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle performs one full scan. The summary is always returned, even
// when the cycle ends early; opportunities found before a budget or
// context stop are kept.
func (s *Scanner) RunCycle(ctx context.Context) (matches.ScanSummary, []*matches.Opportunity, error) {
	started := s.now()
	summary := matches.ScanSummary{CycleID: s.newID(), StartedAt: started.UTC()}

	opps, err := s.scan(ctx, &summary)

	finished := s.now()
	summary.FinishedAt = finished.UTC()
	summary.Duration = finished.Sub(started)

	if s.sink != nil && (err == nil || len(opps) > 0) {
		if perr := s.sink.Publish(ctx, summary, opps); perr != nil {
			summary.SinkErrors++
			logging.Errorf("[scanner] publish cycle %s: %v", summary.CycleID, perr)
		}
	}
	s.record(summary)
	return summary, opps, err
}

func (s *Scanner) scan(ctx context.Context, summary *matches.ScanSummary) ([]*matches.Opportunity, error) {
	opts := collectors.FetchOptions{Pages: s.cfg.Scan.Pages, PageSize: s.cfg.Scan.PageSize}
	listings, err := collectors.FetchAll(ctx, opts, s.a.Collector, s.b.Collector)
	if err != nil {
		summary.FetchErrors++
		return nil, err
	}

	now := s.now()
	filter := models.Filter{MinVolume24h: s.cfg.Scan.MinVolume24h, MaxDaysToExpiry: s.cfg.Scan.MaxDaysToExpiry}
	side := func(l collectors.Listing) []models.Contract {
		contracts, errs := models.FromEvents(l.Events, now)
		summary.NormalizeErrors += len(errs)
		for _, err := range errs {
			logging.Debugf("[scanner] %s: skipped market: %v", l.Venue, err)
		}
		return filter.Apply(contracts, now)
	}
	contractsA := side(listings[0])
	contractsB := side(listings[1])
	summary.ContractsA = len(contractsA)
	summary.ContractsB = len(contractsB)
	logging.Infof("[scanner] cycle %s: %d %s contracts, %d %s contracts", summary.CycleID, len(contractsA), listings[0].Venue, len(contractsB), listings[1].Venue)

	if s.contracts != nil {
		seen := append(append([]models.Contract{}, contractsA...), contractsB...)
		if err := s.contracts.UpsertContracts(ctx, seen, now); err != nil {
			logging.Warnf("[scanner] store contracts: %v", err)
		}
	}

	found, stats, err := s.matcher.Match(ctx, contractsA, contractsB)
	summary.MatchErrors = stats.Errors
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Confidence() > found[j].Confidence()
	})
	if limit := s.cfg.Scan.MaxMatches; limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	summary.Matches = len(found)
	if len(found) == 0 {
		return nil, nil
	}

	gasUSD, err := s.gas.GasUSD(ctx)
	if err != nil {
		gasUSD = s.cfg.Fees.PolymarketGasUSD
		logging.Warnf("[scanner] gas estimate failed, using $%.2f: %v", gasUSD, err)
	}
	summary.GasUSD = gasUSD

	cache := books.NewCache(s.fetchers(), books.Options{
		Budget:      s.cfg.Scan.OrderbookBudget,
		CallTimeout: s.cfg.Scan.CallTimeout.Duration,
		Limiters:    s.limiters,
	})
	engine := arb.NewEngine(s.cfg, cache, gasUSD)
	engine.Builder.Now = s.now
	engine.Builder.NewID = s.newID

	opps, err := s.evaluate(ctx, engine, found, summary)
	summary.OrderbookCalls = cache.Calls()
	if cache.Exhausted() {
		summary.BudgetExhausted = true
	}
	return opps, err
}

// evaluate costs matches in confidence order. It stops at the first
// budget refusal and returns what it found so far.
func (s *Scanner) evaluate(ctx context.Context, engine *arb.Engine, found []matches.Match, summary *matches.ScanSummary) ([]*matches.Opportunity, error) {
	var opps []*matches.Opportunity
	for _, m := range found {
		if err := ctx.Err(); err != nil {
			return opps, err
		}
		res, err := engine.Evaluate(ctx, m)
		summary.Evaluated++
		summary.QuoteErrors += res.Optimization.QuoteErrors
		if res.Opportunity != nil {
			opps = append(opps, res.Opportunity)
			summary.Add(res.Opportunity)
			logging.Infof("[scanner] opportunity pair=%s %s profit=$%.2f size=$%.0f rec=%s",
				m.PairID, res.Opportunity.Strategy, res.Opportunity.GuaranteedProfit, res.Opportunity.TradeSizeUSD, res.Opportunity.Recommendation)
		}
		switch {
		case err == nil:
		case errors.Is(err, matches.ErrBudgetExhausted):
			summary.BudgetExhausted = true
			logging.Warnf("[scanner] order-book budget of %d calls exhausted after %d of %d matches", s.cfg.Scan.OrderbookBudget, summary.Evaluated, len(found))
			return opps, nil
		case ctx.Err() != nil:
			return opps, ctx.Err()
		default:
			summary.EvaluateErrors++
			logging.Debugf("[scanner] %v", err)
		}
	}
	return opps, nil
}

func (s *Scanner) fetchers() map[collectors.Venue]collectors.BookFetcher {
	out := make(map[collectors.Venue]collectors.BookFetcher, 2)
	for _, v := range []Venue{s.a, s.b} {
		if v.Books != nil {
			out[v.Collector.Venue()] = v.Books
		}
	}
	return out
}

func (s *Scanner) record(summary matches.ScanSummary) {
	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	s.metrics.Observe(summary)
	logging.Event("scanner").
		Str("cycle_id", summary.CycleID).
		Int("contracts_a", summary.ContractsA).
		Int("contracts_b", summary.ContractsB).
		Int("matches", summary.Matches).
		Int("opportunities", summary.Opportunities).
		Float64("total_profit_usd", summary.TotalProfitUSD).
		Float64("best_profit_usd", summary.BestProfitUSD).
		Int("orderbook_calls", summary.OrderbookCalls).
		Bool("budget_exhausted", summary.BudgetExhausted).
		Dur("duration", summary.Duration).
		Msg("scan cycle complete")
}

// Last returns the most recent cycle summary.
func (s *Scanner) Last() (matches.ScanSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return matches.ScanSummary{}, false
	}
	return *s.last, true
}

// Status is Last shaped for the status endpoint: nil until the first cycle
// completes.
func (s *Scanner) Status() any {
	last, ok := s.Last()
	if !ok {
		return nil
	}
	return last
}
