package arb

import (
	"context"
	"fmt"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

// Engine costs matches and builds opportunities for one scan cycle.
type Engine struct {
	Optimizer *Optimizer
	Builder   *Builder
}

// NewEngine wires an engine for one cycle over books, with gasUSD as the
// cycle's on-chain base cost.
func NewEngine(cfg *config.Config, books Books, gasUSD float64) *Engine {
	est := NewEstimator(books, cfg.Fees, gasUSD)
	return &Engine{
		Optimizer: NewOptimizer(est, cfg.Arbitrage.VolumeLadder, cfg.Arbitrage.MaxConcurrentQuotes),
		Builder:   NewBuilder(cfg.Arbitrage.MinProfitUSD, cfg.Arbitrage.DefaultExpiryHours),
	}
}

// Result is the outcome of evaluating one match.
type Result struct {
	Opportunity  *matches.Opportunity
	Optimization Optimization
}

// Evaluate optimizes and builds one match. A nil Opportunity with a nil
// error means the match is not worth trading. A panic while costing is
// recovered into an ErrQuoteUnavailable so one bad match never ends the
// cycle. On ErrBudgetExhausted the result still carries whatever the
// sweep found.
func (e *Engine) Evaluate(ctx context.Context, m matches.Match) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("[arb] evaluate %s panicked: %v", m.PairID, r)
			res = Result{}
			err = fmt.Errorf("%w: evaluate %s: panic: %v", matches.ErrQuoteUnavailable, m.PairID, r)
		}
	}()

	opt, err := e.Optimizer.Optimize(ctx, m)
	res.Optimization = opt
	res.Opportunity = e.Builder.Build(m, opt)
	if err != nil {
		return res, fmt.Errorf("evaluate %s: %w", m.PairID, err)
	}
	if res.Opportunity != nil {
		logging.Debugf("[arb] %s %s size=$%.0f profit=$%.2f rec=%s", m.PairID, opt.Strategy, opt.VolumeUSD, opt.Profit, res.Opportunity.Recommendation)
	}
	return res, nil
}
