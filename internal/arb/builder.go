package arb

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hetulpatel/crossarb/internal/matches"
)

const (
	immediateProfitUSD = 20
	immediateLiquidity = 70
	cautionProfitUSD   = 10

	highCertainty             = 95
	baseCertainty             = 85
	estimatedCertaintyPenalty = 25
)

// Builder turns an optimization into an outbound opportunity.
type Builder struct {
	MinProfitUSD       float64
	DefaultExpiryHours float64
	Now                func() time.Time
	NewID              func() string
}

func NewBuilder(minProfitUSD, defaultExpiryHours float64) *Builder {
	return &Builder{
		MinProfitUSD:       minProfitUSD,
		DefaultExpiryHours: defaultExpiryHours,
		Now:                time.Now,
		NewID:              uuid.NewString,
	}
}

// Build returns nil when the optimization found nothing or its profit is
// below the minimum. Every opportunity it returns has a positive profit.
func (b *Builder) Build(m matches.Match, opt Optimization) *matches.Opportunity {
	if !opt.Found() || opt.Profit <= 0 || opt.Profit < b.MinProfitUSD || opt.VolumeUSD <= 0 {
		return nil
	}
	now := b.Now().UTC()
	hours := b.hoursToExpiry(m, now)
	liquidity := LiquidityScore(m.A.Volume24h, m.B.Volume24h)
	estimated := opt.Estimated()
	rec := Recommend(opt.Profit, liquidity)

	return &matches.Opportunity{
		ID:        b.NewID(),
		Timestamp: now,
		PairID:    m.PairID,

		VenueA:     m.A.Venue,
		ContractA:  m.A.ContractID,
		QuestionA:  m.A.Question,
		VenueB:     m.B.Venue,
		ContractB:  m.B.ContractID,
		QuestionB:  m.B.Question,
		Confidence: m.Confidence(),
		Risk:       m.Risk,

		Strategy:  opt.Strategy,
		BuyVenue:  m.A.Venue,
		BuySide:   opt.Strategy.SideA(),
		SellVenue: m.B.Venue,
		SellSide:  opt.Strategy.SideB(),

		PriceA:     opt.LegA.ExecutionPrice,
		PriceB:     opt.LegB.ExecutionPrice,
		SlippageA:  opt.LegA.SlippagePercent,
		SlippageB:  opt.LegB.SlippagePercent,
		FeesA:      opt.LegA.FeeUSD + opt.LegA.GasUSD,
		FeesB:      opt.LegB.FeeUSD + opt.LegB.GasUSD,
		TotalCostA: opt.LegA.TotalCostUSD,
		TotalCostB: opt.LegB.TotalCostUSD,

		TradeSizeUSD: opt.VolumeUSD,
		Contracts:    opt.Contracts,

		GuaranteedProfit:        opt.Profit,
		ProfitPercent:           opt.Profit / opt.VolumeUSD * 100,
		AnnualizedProfitPerHour: opt.Profit / hours * 24 * 365,
		LiquidityScore:          liquidity,
		ExecutionCertainty:      ExecutionCertainty(opt.Profit, estimated),
		HoursToExpiry:           hours,

		IsProfitable:   true,
		ReadyToExecute: rec != matches.RecommendMonitorOnly && !estimated,
		Recommendation: rec,
		Estimated:      estimated,
	}
}

// hoursToExpiry uses the earlier of the two expiries, or the default when
// neither venue reported one.
func (b *Builder) hoursToExpiry(m matches.Match, now time.Time) float64 {
	hours := math.Inf(1)
	for _, h := range []float64{m.A.HoursToExpiry(now), m.B.HoursToExpiry(now)} {
		if h > 0 && h < hours {
			hours = h
		}
	}
	if math.IsInf(hours, 1) {
		hours = b.DefaultExpiryHours
	}
	if hours <= 0 {
		hours = 24
	}
	return hours
}

// LiquidityScore maps the thinner venue's 24h volume onto [0,100]: $1k of
// volume is worth 10 points.
func LiquidityScore(volumeA, volumeB float64) float64 {
	v := math.Min(volumeA, volumeB)
	return math.Max(0, math.Min(v/1000*10, 100))
}

// ExecutionCertainty is an advisory score in [0,100].
func ExecutionCertainty(profit float64, estimated bool) float64 {
	score := float64(baseCertainty)
	if profit > cautionProfitUSD {
		score = highCertainty
	}
	if estimated {
		score -= estimatedCertaintyPenalty
	}
	return score
}

// Recommend applies the profit/liquidity ladder.
func Recommend(profit, liquidity float64) matches.Recommendation {
	switch {
	case profit > immediateProfitUSD && liquidity > immediateLiquidity:
		return matches.RecommendExecuteImmediately
	case profit > cautionProfitUSD:
		return matches.RecommendExecuteWithCaution
	default:
		return matches.RecommendMonitorOnly
	}
}
