package matches

import (
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

// Strategy names which side is bought on venue A. The complementary side is
// always taken on venue B, so one of the two legs pays out $1 per contract.
type Strategy string

const (
	StrategyNone Strategy = ""
	// StrategyYes buys YES on venue A and NO on venue B.
	StrategyYes Strategy = "YES_ARBITRAGE"
	// StrategyNo buys NO on venue A and YES on venue B.
	StrategyNo Strategy = "NO_ARBITRAGE"
)

// Strategies lists every strategy in evaluation order.
var Strategies = []Strategy{StrategyYes, StrategyNo}

// SideA is the side bought on venue A.
func (s Strategy) SideA() collectors.Side {
	if s == StrategyNo {
		return collectors.SideNo
	}
	return collectors.SideYes
}

// SideB is the side bought on venue B.
func (s Strategy) SideB() collectors.Side {
	return s.SideA().Complement()
}

type Recommendation string

const (
	RecommendExecuteImmediately Recommendation = "EXECUTE_IMMEDIATELY"
	RecommendExecuteWithCaution Recommendation = "EXECUTE_WITH_CAUTION"
	RecommendMonitorOnly        Recommendation = "MONITOR_ONLY"
)

// Leg is one executed side of an opportunity.
type Leg struct {
	Venue           collectors.Venue `json:"venue"`
	ContractID      string           `json:"contract_id"`
	Side            collectors.Side  `json:"side"`
	Contracts       int              `json:"contracts"`
	BestPrice       float64          `json:"best_price"`
	ExecutionPrice  float64          `json:"execution_price"`
	SlippagePercent float64          `json:"slippage_pct"`
	FeeUSD          float64          `json:"fee_usd"`
	GasUSD          float64          `json:"gas_usd"`
	TotalCostUSD    float64          `json:"total_cost_usd"`
	Estimated       bool             `json:"estimated"`
}

// Opportunity is the flat outbound record for one profitable match.
type Opportunity struct {
	ID        string    `json:"opportunity_id"`
	Timestamp time.Time `json:"timestamp"`
	PairID    string    `json:"pair_id"`

	VenueA     collectors.Venue `json:"venue_a"`
	ContractA  string           `json:"contract_a"`
	QuestionA  string           `json:"question_a"`
	VenueB     collectors.Venue `json:"venue_b"`
	ContractB  string           `json:"contract_b"`
	QuestionB  string           `json:"question_b"`
	Confidence float64          `json:"match_confidence"`
	Risk       similarity.Risk  `json:"risk"`

	// The sell leg is taken by buying SellSide, the complement of BuySide,
	// on SellVenue.
	Strategy  Strategy         `json:"strategy"`
	BuyVenue  collectors.Venue `json:"buy_venue"`
	BuySide   collectors.Side  `json:"buy_side"`
	SellVenue collectors.Venue `json:"sell_venue"`
	SellSide  collectors.Side  `json:"sell_side"`

	PriceA     float64 `json:"execution_price_a"`
	PriceB     float64 `json:"execution_price_b"`
	SlippageA  float64 `json:"slippage_pct_a"`
	SlippageB  float64 `json:"slippage_pct_b"`
	FeesA      float64 `json:"fees_usd_a"`
	FeesB      float64 `json:"fees_usd_b"`
	TotalCostA float64 `json:"total_cost_usd_a"`
	TotalCostB float64 `json:"total_cost_usd_b"`

	TradeSizeUSD float64 `json:"trade_size_usd"`
	Contracts    int     `json:"contracts"`

	GuaranteedProfit float64 `json:"guaranteed_profit_usd"`
	ProfitPercent    float64 `json:"profit_pct"`
	// AnnualizedProfitPerHour is profit / hours_to_expiry * 24 * 365. It is
	// a ranking heuristic, not a return forecast.
	AnnualizedProfitPerHour float64 `json:"profit_per_hour_annualized"`
	LiquidityScore          float64 `json:"liquidity_score"`
	ExecutionCertainty      float64 `json:"execution_certainty"`
	HoursToExpiry           float64 `json:"hours_to_expiry"`

	IsProfitable   bool           `json:"is_profitable"`
	ReadyToExecute bool           `json:"ready_to_execute"`
	Recommendation Recommendation `json:"recommendation"`
	Estimated      bool           `json:"estimated"`
}
