package matches

import "time"

// ScanSummary describes one completed scan cycle.
type ScanSummary struct {
	CycleID    string        `json:"cycle_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`

	ContractsA int `json:"contracts_a"`
	ContractsB int `json:"contracts_b"`
	Matches    int `json:"matches"`
	Evaluated  int `json:"evaluated"`

	Opportunities     int     `json:"opportunities"`
	TotalProfitUSD    float64 `json:"total_profit_usd"`
	AverageProfitUSD  float64 `json:"average_profit_usd"`
	BestOpportunityID string  `json:"best_opportunity_id,omitempty"`
	BestProfitUSD     float64 `json:"best_profit_usd"`
	GasUSD            float64 `json:"gas_usd"`

	FetchErrors     int  `json:"fetch_errors"`
	NormalizeErrors int  `json:"normalize_errors"`
	MatchErrors     int  `json:"match_errors"`
	QuoteErrors     int  `json:"quote_errors"`
	EvaluateErrors  int  `json:"evaluate_errors"`
	SinkErrors      int  `json:"sink_errors"`
	OrderbookCalls  int  `json:"orderbook_calls"`
	BudgetExhausted bool `json:"budget_exhausted"`
}

// Add folds a built opportunity into the profit totals.
func (s *ScanSummary) Add(opp *Opportunity) {
	if opp == nil {
		return
	}
	s.Opportunities++
	s.TotalProfitUSD += opp.GuaranteedProfit
	s.AverageProfitUSD = s.TotalProfitUSD / float64(s.Opportunities)
	if s.BestOpportunityID == "" || opp.GuaranteedProfit > s.BestProfitUSD {
		s.BestOpportunityID = opp.ID
		s.BestProfitUSD = opp.GuaranteedProfit
	}
}
