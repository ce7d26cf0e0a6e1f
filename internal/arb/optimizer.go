package arb

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/matches"
)

// Optimization is the best (strategy, size) point found for a match.
type Optimization struct {
	Strategy  matches.Strategy
	VolumeUSD float64
	Contracts int
	Profit    float64
	LegA      ExecutionQuote
	LegB      ExecutionQuote

	// Points counts the ladder points costed; QuoteErrors the ones that
	// could not be.
	Points      int
	QuoteErrors int
}

// Found reports whether any point was costed.
func (o Optimization) Found() bool {
	return o.Strategy != matches.StrategyNone
}

// Estimated reports whether either leg was priced off the fallback curve.
func (o Optimization) Estimated() bool {
	return o.LegA.Estimated || o.LegB.Estimated
}

// Optimizer sweeps the volume ladder for both strategies.
type Optimizer struct {
	est         *Estimator
	ladder      []float64
	concurrency int
}

func NewOptimizer(est *Estimator, ladder []float64, concurrency int) *Optimizer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Optimizer{est: est, ladder: append([]float64(nil), ladder...), concurrency: concurrency}
}

// Feasible reports whether a strategy can be profitable before fees: the
// two quoted asks must sum to less than the $1 payout.
func Feasible(m matches.Match, s matches.Strategy) bool {
	return m.A.Quote(s.SideA()).Ask+m.B.Quote(s.SideB()).Ask < 1.0
}

type point struct {
	strategy matches.Strategy
	usd      float64
	legA     ExecutionQuote
	legB     ExecutionQuote
	profit   float64
	err      error
}

// Optimize returns the point with the highest absolute profit. Ties keep
// the earlier point in strategy then ladder order. When the order-book
// budget runs out mid-sweep the best point so far is returned together
// with ErrBudgetExhausted.
func (o *Optimizer) Optimize(ctx context.Context, m matches.Match) (Optimization, error) {
	var points []*point
	for _, s := range matches.Strategies {
		if !Feasible(m, s) {
			continue
		}
		for _, usd := range o.ladder {
			points = append(points, &point{strategy: s, usd: usd})
		}
	}
	if len(points) == 0 {
		return Optimization{}, nil
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, p := range points {
		g.Go(func() error {
			o.costPoint(ctx, m, p)
			return nil
		})
	}
	_ = g.Wait()

	var (
		best      *point
		budgetErr error
		firstErr  error
		out       Optimization
	)
	for _, p := range points {
		if p.err != nil {
			switch {
			case errors.Is(p.err, matches.ErrBudgetExhausted):
				budgetErr = p.err
			default:
				out.QuoteErrors++
				if firstErr == nil {
					firstErr = p.err
				}
			}
			continue
		}
		out.Points++
		if best == nil || p.profit > best.profit {
			best = p
		}
	}
	if best != nil {
		out.Strategy = best.strategy
		out.VolumeUSD = best.usd
		out.Contracts = best.legA.Contracts
		out.Profit = best.profit
		out.LegA = best.legA
		out.LegB = best.legB
	}
	if budgetErr != nil {
		return out, budgetErr
	}
	if best == nil && firstErr != nil {
		return out, firstErr
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// costPoint prices both legs of one point concurrently. The B leg buys the
// same number of contracts as the A leg so one of them pays $1 each.
func (o *Optimizer) costPoint(ctx context.Context, m matches.Match, p *point) {
	n := ContractsFor(p.usd, m.A.Quote(p.strategy.SideA()).Ask)
	if n < 1 {
		p.err = fmt.Errorf("%w: $%.2f buys no contracts of %s", matches.ErrQuoteUnavailable, p.usd, m.A.Key())
		return
	}
	var (
		g          errgroup.Group
		errA, errB error
	)
	g.Go(func() error {
		defer recoverQuote(&errA)
		p.legA, errA = o.est.CostContracts(ctx, m.A, p.strategy.SideA(), n)
		p.legA.RequestedUSD = p.usd
		return nil
	})
	g.Go(func() error {
		defer recoverQuote(&errB)
		p.legB, errB = o.est.CostContracts(ctx, m.B, p.strategy.SideB(), n)
		return nil
	})
	_ = g.Wait()
	if err := errors.Join(errA, errB); err != nil {
		p.err = err
		return
	}
	p.profit = float64(n) - (p.legA.TotalCostUSD + p.legB.TotalCostUSD)
}

func recoverQuote(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic while costing: %v", matches.ErrQuoteUnavailable, r)
	}
}
