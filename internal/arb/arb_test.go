package arb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

var testNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

type bookKey struct {
	key  string
	side collectors.Side
}

type fakeBooks struct {
	books map[bookKey]collectors.Orderbook
	err   error
	panic bool
}

func newFakeBooks() *fakeBooks {
	return &fakeBooks{books: map[bookKey]collectors.Orderbook{}}
}

func (f *fakeBooks) set(c models.Contract, side collectors.Side, levels ...collectors.OrderbookLevel) {
	ref := c.BookRef(side)
	f.books[bookKey{ref.CacheKey(), side}] = collectors.Orderbook{Asks: levels}
}

func (f *fakeBooks) Orderbook(_ context.Context, ref collectors.BookRef) (collectors.Orderbook, error) {
	if f.panic {
		panic("book decoder blew up")
	}
	if f.err != nil {
		return collectors.Orderbook{}, f.err
	}
	return f.books[bookKey{ref.CacheKey(), ref.Side}], nil
}

func lvl(price, qty float64) collectors.OrderbookLevel {
	return collectors.OrderbookLevel{Price: price, Quantity: qty}
}

func testContracts() (models.Contract, models.Contract) {
	a := models.Contract{
		Venue:      collectors.VenueKalshi,
		ContractID: "KXCPI-25SEP-T3.0",
		Question:   "Will CPI be above 3.0% for September 2025?",
		Yes:        models.MarketQuote{Side: collectors.SideYes, Bid: 0.44, Ask: 0.45},
		No:         models.MarketQuote{Side: collectors.SideNo, Bid: 0.54, Ask: 0.56},
		Volume24h:  10000,
		CloseTime:  testNow.Add(72 * time.Hour),
	}
	b := models.Contract{
		Venue:      collectors.VenuePolymarket,
		ContractID: "0xcpi-sep",
		Question:   "CPI above 3% in September 2025?",
		Yes:        models.MarketQuote{Side: collectors.SideYes, Bid: 0.60, Ask: 0.62},
		No:         models.MarketQuote{Side: collectors.SideNo, Bid: 0.39, Ask: 0.40},
		TokenIDs:   []string{"tok-yes", "tok-no"},
		Volume24h:  8000,
		CloseTime:  testNow.Add(48 * time.Hour),
	}
	return a, b
}

func testMatch(a, b models.Contract) matches.Match {
	score := similarity.Score(a.MatchText(), b.MatchText(), "")
	return matches.NewMatch(a, b, score, testNow)
}

func deepBooks(a, b models.Contract) *fakeBooks {
	f := newFakeBooks()
	f.set(a, collectors.SideYes, lvl(0.45, 1e6))
	f.set(a, collectors.SideNo, lvl(0.56, 1e6))
	f.set(b, collectors.SideYes, lvl(0.62, 1e6))
	f.set(b, collectors.SideNo, lvl(0.40, 1e6))
	return f
}

func testConfig(ladder ...float64) *config.Config {
	cfg := config.Defaults()
	if len(ladder) > 0 {
		cfg.Arbitrage.VolumeLadder = ladder
	}
	return &cfg
}

func testEngine(cfg *config.Config, books Books) *Engine {
	e := NewEngine(cfg, books, 2.0)
	e.Builder.Now = func() time.Time { return testNow }
	e.Builder.NewID = func() string { return "opp-1" }
	return e
}

func TestEstimatorWalksBook(t *testing.T) {
	a, _ := testContracts()
	f := newFakeBooks()
	f.set(a, collectors.SideYes, lvl(0.47, 100), lvl(0.45, 100), lvl(0.50, 1000))
	est := NewEstimator(f, config.Defaults().Fees, 2)

	q, err := est.CostContracts(context.Background(), a, collectors.SideYes, 250)
	require.NoError(t, err)
	assert.Equal(t, 0.45, q.BestPrice)
	// 100@0.45 + 100@0.47 + 50@0.50
	assert.InDelta(t, (45.0+47.0+25.0)/250, q.ExecutionPrice, 1e-9)
	assert.InDelta(t, (q.ExecutionPrice-0.45)/0.45*100, q.SlippagePercent, 1e-9)
	assert.Equal(t, KalshiFee(0.07, 250, q.ExecutionPrice), q.FeeUSD)
	assert.InDelta(t, 250*q.ExecutionPrice+q.FeeUSD, q.TotalCostUSD, 1e-9)
	assert.False(t, q.Estimated)
}

func TestEstimatorInsufficientDepth(t *testing.T) {
	a, _ := testContracts()
	f := newFakeBooks()
	f.set(a, collectors.SideYes, lvl(0.45, 10))
	est := NewEstimator(f, config.Defaults().Fees, 2)

	_, err := est.CostUSD(context.Background(), a, collectors.SideYes, 100)
	assert.ErrorIs(t, err, matches.ErrInsufficientDepth)
	assert.ErrorIs(t, err, matches.ErrQuoteUnavailable)
}

func TestEstimatorFallbackCurves(t *testing.T) {
	a, b := testContracts()
	est := NewEstimator(newFakeBooks(), config.Defaults().Fees, 2)

	qa, err := est.CostUSD(context.Background(), a, collectors.SideYes, 100)
	require.NoError(t, err)
	assert.True(t, qa.Estimated)
	assert.Equal(t, 222, qa.Contracts)
	wantSlip := 0.5 + 0.5*(222*0.45)/200
	assert.InDelta(t, 0.45*(1+wantSlip/100), qa.ExecutionPrice, 1e-9)
	assert.InDelta(t, wantSlip, qa.SlippagePercent, 1e-9)

	qb, err := est.CostContracts(context.Background(), b, collectors.SideNo, 222)
	require.NoError(t, err)
	assert.True(t, qb.Estimated)
	assert.InDelta(t, 0.40*(1+2*(222*0.40)/1000/100), qb.ExecutionPrice, 1e-9)
	assert.Equal(t, 2.0, qb.GasUSD)
	assert.Zero(t, qb.FeeUSD)
}

func TestEstimatorFallbackIsCapped(t *testing.T) {
	a, _ := testContracts()
	a.Yes.Ask = 0.98
	est := NewEstimator(newFakeBooks(), config.Defaults().Fees, 2)

	q, err := est.CostUSD(context.Background(), a, collectors.SideYes, 100000)
	require.NoError(t, err)
	assert.LessOrEqual(t, q.ExecutionPrice, models.MaxPrice)
}

func TestEstimatorIndexCurveIsDiscounted(t *testing.T) {
	a, _ := testContracts()
	est := NewEstimator(newFakeBooks(), config.Defaults().Fees, 2)
	plain := est.fallbackSlippage(a, 400)
	a.ContractID = "INXD-25SEP30-B6500"
	assert.InDelta(t, plain*0.7, est.fallbackSlippage(a, 400), 1e-9)
	assert.Equal(t, 5.0, est.fallbackSlippage(a, 1e9))
}

func TestEndToEndDeepBooks(t *testing.T) {
	a, b := testContracts()
	m := testMatch(a, b)

	// $100 alone: 222 contracts, fee ceil(0.07*222*0.45*0.55) = $3.85, $2 gas.
	res, err := testEngine(testConfig(100), deepBooks(a, b)).Evaluate(context.Background(), m)
	require.NoError(t, err)
	require.NotNil(t, res.Opportunity)
	opp := res.Opportunity
	assert.Equal(t, matches.StrategyYes, opp.Strategy)
	assert.Equal(t, 222, opp.Contracts)
	assert.InDelta(t, 3.85, opp.FeesA, 1e-9)
	assert.InDelta(t, 2.0, opp.FeesB, 1e-9)
	assert.InDelta(t, 222-(99.9+3.85)-(88.8+2), opp.GuaranteedProfit, 1e-6)
	assert.Equal(t, matches.RecommendExecuteImmediately, opp.Recommendation)
	assert.True(t, opp.ReadyToExecute)
	assert.True(t, opp.IsProfitable)
	assert.Equal(t, collectors.VenueKalshi, opp.BuyVenue)
	assert.Equal(t, collectors.SideYes, opp.BuySide)
	assert.Equal(t, collectors.VenuePolymarket, opp.SellVenue)
	assert.Equal(t, collectors.SideNo, opp.SellSide)
	assert.Equal(t, 48.0, opp.HoursToExpiry)
	assert.Equal(t, 80.0, opp.LiquidityScore)

	// the full ladder picks the largest size on an unlimited book
	res, err = testEngine(testConfig(), deepBooks(a, b)).Evaluate(context.Background(), m)
	require.NoError(t, err)
	require.NotNil(t, res.Opportunity)
	assert.Equal(t, 1000.0, res.Opportunity.TradeSizeUSD)
	assert.Equal(t, 2222, res.Opportunity.Contracts)
	assert.Equal(t, "opp-1", res.Opportunity.ID)
}

func TestOptimizerSkipsInfeasibleStrategy(t *testing.T) {
	a, b := testContracts()
	m := testMatch(a, b)
	assert.True(t, Feasible(m, matches.StrategyYes))
	assert.False(t, Feasible(m, matches.StrategyNo))

	a.Yes.Ask, b.No.Ask = 0.55, 0.45
	assert.False(t, Feasible(testMatch(a, b), matches.StrategyYes))

	f := newFakeBooks()
	f.err = errors.New("must not be called")
	opt, err := NewOptimizer(NewEstimator(f, config.Defaults().Fees, 2), []float64{100}, 2).Optimize(context.Background(), testMatch(a, b))
	require.NoError(t, err)
	assert.False(t, opt.Found())
}

func shallowBooks(a, b models.Contract) *fakeBooks {
	f := newFakeBooks()
	f.set(a, collectors.SideYes, lvl(0.45, 300), lvl(0.50, 300), lvl(0.60, 1000))
	f.set(a, collectors.SideNo, lvl(0.56, 500))
	f.set(b, collectors.SideYes, lvl(0.62, 500))
	f.set(b, collectors.SideNo, lvl(0.40, 500), lvl(0.55, 2000))
	return f
}

func TestOptimizerSupersetLadderNeverWorse(t *testing.T) {
	a, b := testContracts()
	m := testMatch(a, b)
	full := config.Defaults().Arbitrage.VolumeLadder
	subsets := [][]float64{{50}, {100}, {50, 100}, {150, 300}, {500}, {1000}, {200, 750}}

	fullOpt, err := NewOptimizer(NewEstimator(shallowBooks(a, b), config.Defaults().Fees, 2), full, 4).Optimize(context.Background(), m)
	require.NoError(t, err)
	require.True(t, fullOpt.Found())

	for _, sub := range subsets {
		opt, err := NewOptimizer(NewEstimator(shallowBooks(a, b), config.Defaults().Fees, 2), sub, 4).Optimize(context.Background(), m)
		if err != nil {
			assert.ErrorIs(t, err, matches.ErrQuoteUnavailable)
			continue
		}
		if opt.Found() {
			assert.GreaterOrEqual(t, fullOpt.Profit, opt.Profit, "subset %v", sub)
		}
	}
}

func TestOptimizerIsDeterministic(t *testing.T) {
	a, b := testContracts()
	m := testMatch(a, b)
	var first Optimization
	for i := 0; i < 10; i++ {
		opt, err := NewOptimizer(NewEstimator(shallowBooks(a, b), config.Defaults().Fees, 2), config.Defaults().Arbitrage.VolumeLadder, 8).Optimize(context.Background(), m)
		require.NoError(t, err)
		if i == 0 {
			first = opt
			continue
		}
		assert.Equal(t, first.VolumeUSD, opt.VolumeUSD)
		assert.Equal(t, first.Profit, opt.Profit)
	}
}

func TestNoOpportunityWhenBooksCostMoreThanPayout(t *testing.T) {
	a, b := testContracts()
	m := testMatch(a, b)
	for pa := 0.30; pa < 0.96; pa += 0.05 {
		for k := 0; k < 5; k++ {
			pb := 1.0 - pa + float64(k)*0.01
			if pb >= 1 {
				continue
			}
			f := newFakeBooks()
			f.set(a, collectors.SideYes, lvl(pa, 1e6))
			f.set(b, collectors.SideNo, lvl(pb, 1e6))
			res, err := testEngine(testConfig(), f).Evaluate(context.Background(), m)
			require.NoError(t, err)
			assert.Nil(t, res.Opportunity, "pa=%.2f pb=%.2f", pa, pb)
		}
	}
}

func TestEstimatedLegIsNeverReady(t *testing.T) {
	a, b := testContracts()
	f := deepBooks(a, b)
	delete(f.books, bookKey{b.BookRef(collectors.SideNo).CacheKey(), collectors.SideNo})

	res, err := testEngine(testConfig(100), f).Evaluate(context.Background(), testMatch(a, b))
	require.NoError(t, err)
	require.NotNil(t, res.Opportunity)
	assert.True(t, res.Opportunity.Estimated)
	assert.False(t, res.Opportunity.ReadyToExecute)
	assert.Equal(t, float64(highCertainty-estimatedCertaintyPenalty), res.Opportunity.ExecutionCertainty)
}

func TestEvaluateBudgetExhausted(t *testing.T) {
	a, b := testContracts()
	f := newFakeBooks()
	f.err = matches.ErrBudgetExhausted
	res, err := testEngine(testConfig(), f).Evaluate(context.Background(), testMatch(a, b))
	assert.ErrorIs(t, err, matches.ErrBudgetExhausted)
	assert.Nil(t, res.Opportunity)
}

func TestEvaluateQuoteFailure(t *testing.T) {
	a, b := testContracts()
	f := newFakeBooks()
	f.err = matches.ErrQuoteUnavailable
	res, err := testEngine(testConfig(100, 200), f).Evaluate(context.Background(), testMatch(a, b))
	assert.ErrorIs(t, err, matches.ErrQuoteUnavailable)
	assert.Nil(t, res.Opportunity)
	assert.Equal(t, 2, res.Optimization.QuoteErrors)
}

func TestEvaluateRecoversPanics(t *testing.T) {
	a, b := testContracts()
	f := newFakeBooks()
	f.panic = true
	res, err := testEngine(testConfig(100), f).Evaluate(context.Background(), testMatch(a, b))
	assert.ErrorIs(t, err, matches.ErrQuoteUnavailable)
	assert.Nil(t, res.Opportunity)
}

func TestRecommendLadder(t *testing.T) {
	assert.Equal(t, matches.RecommendExecuteImmediately, Recommend(25, 80))
	assert.Equal(t, matches.RecommendExecuteWithCaution, Recommend(25, 50))
	assert.Equal(t, matches.RecommendExecuteWithCaution, Recommend(15, 90))
	assert.Equal(t, matches.RecommendMonitorOnly, Recommend(8, 90))
	assert.Equal(t, 100.0, LiquidityScore(1e7, 1e8))
	assert.Equal(t, 5.0, LiquidityScore(500, 9000))
}

func TestBuilderRejectsSmallProfit(t *testing.T) {
	a, b := testContracts()
	bld := NewBuilder(5, 24)
	opt := Optimization{Strategy: matches.StrategyYes, VolumeUSD: 100, Contracts: 200, Profit: 4.99}
	assert.Nil(t, bld.Build(testMatch(a, b), opt))

	opt.Profit = 6
	opp := bld.Build(testMatch(a, b), opt)
	require.NotNil(t, opp)
	assert.Equal(t, matches.RecommendMonitorOnly, opp.Recommendation)
	assert.False(t, opp.ReadyToExecute)
	assert.InDelta(t, 6.0, opp.ProfitPercent, 1e-9)
	assert.NotEmpty(t, opp.ID)
}

func TestBuilderDefaultExpiry(t *testing.T) {
	a, b := testContracts()
	a.CloseTime, b.CloseTime = time.Time{}, time.Time{}
	bld := NewBuilder(5, 24)
	bld.Now = func() time.Time { return testNow }
	opp := bld.Build(testMatch(a, b), Optimization{Strategy: matches.StrategyYes, VolumeUSD: 100, Profit: 24})
	require.NotNil(t, opp)
	assert.Equal(t, 24.0, opp.HoursToExpiry)
	assert.InDelta(t, 24.0/24*24*365, opp.AnnualizedProfitPerHour, 1e-9)
}
