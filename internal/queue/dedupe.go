package queue

import (
	"context"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

// Deduper forwards only opportunities whose profit improved on the record
// cached for their pair. Cache errors let the opportunity through.
type Deduper struct {
	next  Sink
	cache cache.OpportunityCache
}

func NewDeduper(next Sink, c cache.OpportunityCache) *Deduper {
	return &Deduper{next: next, cache: c}
}

func (d *Deduper) Publish(ctx context.Context, summary matches.ScanSummary, opps []*matches.Opportunity) error {
	if d.cache == nil {
		return d.next.Publish(ctx, summary, opps)
	}
	fresh := make([]*matches.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if opp == nil {
			continue
		}
		rec, _, err := d.cache.Get(ctx, opp.PairID)
		if err != nil {
			logging.Warnf("[dedupe] cache get %s: %v", opp.PairID, err)
			fresh = append(fresh, opp)
			continue
		}
		if !rec.Improves(opp) {
			logging.Debugf("[dedupe] pair=%s profit=%.2f not above cached %.2f", opp.PairID, opp.GuaranteedProfit, rec.ProfitUSD)
			continue
		}
		fresh = append(fresh, opp)
	}

	if err := d.next.Publish(ctx, summary, fresh); err != nil {
		return err
	}
	for _, opp := range fresh {
		if err := d.cache.Set(ctx, opp.PairID, cache.RecordFor(opp)); err != nil {
			logging.Warnf("[dedupe] cache set %s: %v", opp.PairID, err)
		}
	}
	return nil
}
