package cache

import (
	"context"
	"time"

	"github.com/hetulpatel/crossarb/internal/matches"
)

// minImprovementUSD is how much a pair's profit must grow before it is
// published again.
const minImprovementUSD = 0.01

// OpportunityRecord is the best opportunity published so far for a pair.
type OpportunityRecord struct {
	OpportunityID string           `json:"opportunity_id"`
	ProfitUSD     float64          `json:"profit_usd"`
	Strategy      matches.Strategy `json:"strategy"`
	TradeSizeUSD  float64          `json:"trade_size_usd"`
	Contracts     int              `json:"contracts"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func RecordFor(opp *matches.Opportunity) OpportunityRecord {
	return OpportunityRecord{
		OpportunityID: opp.ID,
		ProfitUSD:     opp.GuaranteedProfit,
		Strategy:      opp.Strategy,
		TradeSizeUSD:  opp.TradeSizeUSD,
		Contracts:     opp.Contracts,
		UpdatedAt:     opp.Timestamp,
	}
}

// Improves reports whether opp beats the record by more than a cent. A nil
// record is beaten by anything.
func (r *OpportunityRecord) Improves(opp *matches.Opportunity) bool {
	return r == nil || opp.GuaranteedProfit > r.ProfitUSD+minImprovementUSD
}

// OpportunityCache remembers the best published opportunity per pair id.
type OpportunityCache interface {
	Get(ctx context.Context, pairID string) (*OpportunityRecord, bool, error)
	Set(ctx context.Context, pairID string, record OpportunityRecord) error
}

type redisOpportunityCache struct {
	store jsonStore[OpportunityRecord]
}

// Opportunities returns an opportunity cache under prefix (default
// "pair_best").
func (c *Client) Opportunities(prefix string) OpportunityCache {
	if prefix == "" {
		prefix = "pair_best"
	}
	return &redisOpportunityCache{store: newStore[OpportunityRecord](c, prefix)}
}

func (c *redisOpportunityCache) Get(ctx context.Context, pairID string) (*OpportunityRecord, bool, error) {
	return c.store.get(ctx, pairID)
}

func (c *redisOpportunityCache) Set(ctx context.Context, pairID string, record OpportunityRecord) error {
	return c.store.set(ctx, pairID, record)
}
