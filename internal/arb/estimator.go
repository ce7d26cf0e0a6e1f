package arb

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/models"
)

const epsilon = 1e-9

// Books serves the order book for one leg. *books.Cache implements it.
type Books interface {
	Orderbook(ctx context.Context, ref collectors.BookRef) (collectors.Orderbook, error)
}

// ExecutionQuote is the cost of buying Contracts of one side at one venue.
type ExecutionQuote struct {
	Venue           collectors.Venue
	ContractID      string
	Side            collectors.Side
	RequestedUSD    float64
	Contracts       int
	BestPrice       float64
	ExecutionPrice  float64
	SlippagePercent float64
	FeeUSD          float64
	GasUSD          float64
	TotalCostUSD    float64
	// Estimated is set when the venue had no book and the fallback curve
	// priced the leg.
	Estimated bool
}

// Leg converts the quote into the outbound leg record.
func (q ExecutionQuote) Leg() matches.Leg {
	return matches.Leg{
		Venue:           q.Venue,
		ContractID:      q.ContractID,
		Side:            q.Side,
		Contracts:       q.Contracts,
		BestPrice:       q.BestPrice,
		ExecutionPrice:  q.ExecutionPrice,
		SlippagePercent: q.SlippagePercent,
		FeeUSD:          q.FeeUSD,
		GasUSD:          q.GasUSD,
		TotalCostUSD:    q.TotalCostUSD,
		Estimated:       q.Estimated,
	}
}

// Estimator prices legs against live books, falling back to a conservative
// slippage curve when a venue has none.
type Estimator struct {
	books  Books
	fees   config.FeesConfig
	gasUSD float64
}

// NewEstimator builds an estimator; gasUSD is the base network cost of one
// on-chain trade for this cycle.
func NewEstimator(books Books, fees config.FeesConfig, gasUSD float64) *Estimator {
	return &Estimator{books: books, fees: fees, gasUSD: gasUSD}
}

// ContractsFor is how many whole contracts usd buys at price.
func ContractsFor(usd, price float64) int {
	if usd <= 0 || price <= 0 {
		return 0
	}
	return int(math.Floor(usd/price + epsilon))
}

// CostUSD prices spending usd on side of c at the quoted ask.
func (e *Estimator) CostUSD(ctx context.Context, c models.Contract, side collectors.Side, usd float64) (ExecutionQuote, error) {
	n := ContractsFor(usd, c.Quote(side).Ask)
	if n < 1 {
		return ExecutionQuote{}, fmt.Errorf("%w: $%.2f buys no %s contracts of %s", matches.ErrQuoteUnavailable, usd, side, c.Key())
	}
	q, err := e.CostContracts(ctx, c, side, n)
	if err != nil {
		return ExecutionQuote{}, err
	}
	q.RequestedUSD = usd
	return q, nil
}

// CostContracts prices buying exactly n contracts of side of c.
func (e *Estimator) CostContracts(ctx context.Context, c models.Contract, side collectors.Side, n int) (ExecutionQuote, error) {
	if n < 1 {
		return ExecutionQuote{}, fmt.Errorf("%w: non-positive size %d", matches.ErrQuoteUnavailable, n)
	}
	if c.Venue != collectors.VenueKalshi && c.Venue != collectors.VenuePolymarket {
		return ExecutionQuote{}, fmt.Errorf("%w: unsupported venue %q", matches.ErrQuoteUnavailable, c.Venue)
	}
	book, err := e.books.Orderbook(ctx, c.BookRef(side))
	if err != nil {
		return ExecutionQuote{}, err
	}

	ask := c.Quote(side).Ask
	out := ExecutionQuote{
		Venue:        c.Venue,
		ContractID:   c.ContractID,
		Side:         side,
		RequestedUSD: float64(n) * ask,
		Contracts:    n,
	}
	if book.Empty() {
		out.BestPrice = ask
		out.ExecutionPrice = math.Min(ask*(1+e.fallbackSlippage(c, out.RequestedUSD)/100), models.MaxPrice)
		out.Estimated = true
	} else {
		best, vwap, ok := walkAsks(book.Asks, n)
		if !ok {
			return ExecutionQuote{}, fmt.Errorf("%w: %s %s for %d contracts", matches.ErrInsufficientDepth, c.Key(), side, n)
		}
		out.BestPrice = best
		out.ExecutionPrice = vwap
	}
	if out.BestPrice > 0 {
		out.SlippagePercent = math.Max(0, (out.ExecutionPrice-out.BestPrice)/out.BestPrice*100)
	}

	notional := float64(n) * out.ExecutionPrice
	switch c.Venue {
	case collectors.VenueKalshi:
		out.FeeUSD = KalshiFee(KalshiRate(e.fees, c.ContractID), n, out.ExecutionPrice)
	case collectors.VenuePolymarket:
		out.GasUSD = PolymarketGas(e.fees, e.gasUSD, notional)
	}
	out.TotalCostUSD = notional + out.FeeUSD + out.GasUSD
	return out, nil
}

// fallbackSlippage is the percent slippage assumed for usd of volume when
// the venue has no book.
func (e *Estimator) fallbackSlippage(c models.Contract, usd float64) float64 {
	f := e.fees
	if c.Venue == collectors.VenueKalshi {
		slip := f.KalshiSlippageBasePct + usd/200*f.KalshiSlippagePer200Pct
		if f.KalshiSlippageIndexFactor > 0 && IsIndexTicker(f, c.ContractID) {
			slip *= f.KalshiSlippageIndexFactor
		}
		return math.Min(slip, f.KalshiSlippageCapPct)
	}
	return math.Min(usd/1000*f.PolymarketSlippagePer1000Pct, f.PolymarketSlippageCapPct)
}

// walkAsks fills n contracts from the cheapest level up and returns the
// best ask and the volume-weighted fill price. ok is false when the book
// runs out first.
func walkAsks(levels []collectors.OrderbookLevel, n int) (best, vwap float64, ok bool) {
	it := newAskIterator(levels)
	best = it.peekPrice()
	remaining := float64(n)
	cost := 0.0
	for remaining > epsilon {
		qty := it.peekQty()
		if qty <= epsilon {
			return best, 0, false
		}
		take := math.Min(qty, remaining)
		c, taken := it.take(take)
		if !taken {
			return best, 0, false
		}
		cost += c
		remaining -= take
	}
	return best, cost / float64(n), true
}

type askIterator struct {
	levels []collectors.OrderbookLevel
	idx    int
}

func newAskIterator(levels []collectors.OrderbookLevel) *askIterator {
	copied := make([]collectors.OrderbookLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Price > 0 && lvl.Price < 1 {
			copied = append(copied, lvl)
		}
	}
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Price < copied[j].Price
	})
	return &askIterator{levels: copied}
}

func (it *askIterator) advance() bool {
	for it.idx < len(it.levels) {
		if it.levels[it.idx].Quantity > epsilon {
			return true
		}
		it.idx++
	}
	return false
}

func (it *askIterator) peekQty() float64 {
	if !it.advance() {
		return 0
	}
	return it.levels[it.idx].Quantity
}

func (it *askIterator) peekPrice() float64 {
	if !it.advance() {
		return 0
	}
	return it.levels[it.idx].Price
}

func (it *askIterator) take(q float64) (float64, bool) {
	if !it.advance() {
		return 0, false
	}
	lvl := &it.levels[it.idx]
	if lvl.Quantity+epsilon < q {
		return 0, false
	}
	lvl.Quantity -= q
	cost := q * lvl.Price
	if lvl.Quantity <= epsilon {
		it.idx++
	}
	return cost, true
}
