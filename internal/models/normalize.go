package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
)

var (
	errNoAsks  = errors.New("no executable asks on either side")
	errCrossed = errors.New("bid exceeds ask")
)

// NewContract converts a venue-normalized market into a Contract with both
// sides quoted. Missing asks are treated as the worst price, missing bids as
// the best-case floor, so a one-sided market can still be bought.
func NewContract(ev collectors.Event, m collectors.Market, now time.Time) (Contract, error) {
	if strings.TrimSpace(m.MarketID) == "" {
		return Contract{}, fmt.Errorf("market in event %s has no id", ev.EventID)
	}
	question := strings.TrimSpace(m.Question)
	if question == "" {
		question = strings.TrimSpace(ev.Title)
	}
	if question == "" {
		return Contract{}, fmt.Errorf("market %s has no question text", m.MarketID)
	}

	p := m.Price
	if p.YesAsk <= 0 && p.NoBid > 0 {
		p.YesAsk = 1 - p.NoBid
	}
	if p.NoAsk <= 0 && p.YesBid > 0 {
		p.NoAsk = 1 - p.YesBid
	}
	if p.YesAsk <= 0 && p.NoAsk <= 0 {
		return Contract{}, fmt.Errorf("market %s: %w", m.MarketID, errNoAsks)
	}

	expires := m.CloseTime
	if expires.IsZero() {
		expires = ev.CloseTime
	}
	var ttl time.Duration
	if !expires.IsZero() && expires.After(now) {
		ttl = expires.Sub(now)
	}

	yes := MarketQuote{
		Venue:        ev.Venue,
		ContractID:   m.MarketID,
		Question:     question,
		Side:         collectors.SideYes,
		Bid:          clampBid(p.YesBid),
		Ask:          clampAsk(p.YesAsk),
		Volume24h:    m.Volume24h,
		ExpiresAt:    expires,
		TimeToExpiry: ttl,
		Estimated:    m.PriceEstimated,
	}
	no := yes
	no.Side = collectors.SideNo
	no.Bid = clampBid(p.NoBid)
	no.Ask = clampAsk(p.NoAsk)

	if yes.Bid > yes.Ask || no.Bid > no.Ask {
		return Contract{}, fmt.Errorf("market %s: %w", m.MarketID, errCrossed)
	}

	return Contract{
		Venue:             ev.Venue,
		ContractID:        m.MarketID,
		EventID:           ev.EventID,
		Question:          question,
		EventTitle:        ev.Title,
		Category:          ev.Category,
		Yes:               yes,
		No:                no,
		TokenIDs:          m.ClobTokenIDs,
		Volume24h:         m.Volume24h,
		CloseTime:         expires,
		ResolutionDetails: ev.ResolutionDetails,
		ResolutionSource:  ev.ResolutionSource,
	}, nil
}

// FromEvents normalizes every market of every event. Markets that fail
// validation are skipped and reported in the second return value.
func FromEvents(events []collectors.Event, now time.Time) ([]Contract, []error) {
	var (
		out  []Contract
		errs []error
	)
	for _, ev := range events {
		for _, m := range ev.Markets {
			c, err := NewContract(ev, m, now)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, c)
		}
	}
	return out, errs
}

func clampAsk(v float64) float64 {
	if v <= 0 || v > MaxPrice {
		return MaxPrice
	}
	if v < MinPrice {
		return MinPrice
	}
	return v
}

func clampBid(v float64) float64 {
	if v < MinPrice {
		return MinPrice
	}
	if v > MaxPrice {
		return MaxPrice
	}
	return v
}

// Filter drops contracts that are not worth matching: already expired,
// too thin, or too far from resolution.
type Filter struct {
	MinVolume24h    float64
	MaxDaysToExpiry float64
}

// Apply returns the contracts that pass the filter, preserving order.
func (f Filter) Apply(contracts []Contract, now time.Time) []Contract {
	out := contracts[:0:0]
	for _, c := range contracts {
		if !c.CloseTime.IsZero() && !c.CloseTime.After(now) {
			continue
		}
		if c.Volume24h < f.MinVolume24h {
			continue
		}
		if f.MaxDaysToExpiry > 0 && !c.CloseTime.IsZero() && c.CloseTime.Sub(now).Hours()/24 > f.MaxDaysToExpiry {
			continue
		}
		out = append(out, c)
	}
	return out
}
