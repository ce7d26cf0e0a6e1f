package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/collectors"
)

var now = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func kalshiEvent(markets ...collectors.Market) collectors.Event {
	return collectors.Event{
		Venue:     collectors.VenueKalshi,
		EventID:   "FED-25SEP",
		Title:     "Fed decision in September",
		CloseTime: now.Add(48 * time.Hour),
		Markets:   markets,
	}
}

func TestNewContractQuotesBothSides(t *testing.T) {
	m := collectors.Market{
		MarketID:  "FED-25SEP-T4.25",
		Question:  "Will the Fed cut rates in September 2025?",
		Volume24h: 12000,
		Price:     collectors.PriceSnapshot{YesBid: 0.44, YesAsk: 0.45, NoBid: 0.54, NoAsk: 0.56},
	}
	c, err := NewContract(kalshiEvent(m), m, now)
	require.NoError(t, err)

	assert.Equal(t, collectors.SideYes, c.Yes.Side)
	assert.Equal(t, 0.45, c.Yes.Ask)
	assert.Equal(t, 0.56, c.No.Ask)
	assert.Equal(t, 48*time.Hour, c.Yes.TimeToExpiry)
	assert.Equal(t, now.Add(48*time.Hour), c.CloseTime)
	assert.Equal(t, "kalshi:FED-25SEP-T4.25", c.Key())
}

func TestNewContractDerivesMissingAskFromOppositeBid(t *testing.T) {
	m := collectors.Market{
		MarketID: "X",
		Question: "Will X happen?",
		Price:    collectors.PriceSnapshot{YesBid: 0.30, NoBid: 0.60},
	}
	c, err := NewContract(kalshiEvent(m), m, now)
	require.NoError(t, err)
	assert.InDelta(t, 0.40, c.Yes.Ask, 1e-9)
	assert.InDelta(t, 0.70, c.No.Ask, 1e-9)
}

func TestNewContractClampsPrices(t *testing.T) {
	m := collectors.Market{
		MarketID: "X",
		Question: "Will X happen?",
		Price:    collectors.PriceSnapshot{YesBid: 0.001, YesAsk: 0.004, NoBid: 0.98, NoAsk: 1.2},
	}
	c, err := NewContract(kalshiEvent(m), m, now)
	require.NoError(t, err)
	for _, q := range []MarketQuote{c.Yes, c.No} {
		assert.GreaterOrEqual(t, q.Bid, MinPrice)
		assert.LessOrEqual(t, q.Ask, MaxPrice)
		assert.LessOrEqual(t, q.Bid, q.Ask)
	}
}

func TestNewContractRejectsInvalidMarkets(t *testing.T) {
	cases := map[string]collectors.Market{
		"no id":   {Question: "Q?", Price: collectors.PriceSnapshot{YesAsk: 0.5}},
		"no asks": {MarketID: "A", Question: "Q?"},
		"crossed": {MarketID: "B", Question: "Q?", Price: collectors.PriceSnapshot{YesBid: 0.6, YesAsk: 0.5, NoAsk: 0.5}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			ev := kalshiEvent(m)
			ev.Title = ""
			_, err := NewContract(ev, m, now)
			assert.Error(t, err)
		})
	}
}

func TestFromEventsSkipsBadMarkets(t *testing.T) {
	good := collectors.Market{MarketID: "G", Question: "Good?", Price: collectors.PriceSnapshot{YesAsk: 0.5, NoAsk: 0.5}}
	bad := collectors.Market{MarketID: "B", Question: "Bad?"}
	contracts, errs := FromEvents([]collectors.Event{kalshiEvent(good, bad)}, now)
	require.Len(t, contracts, 1)
	assert.Equal(t, "G", contracts[0].ContractID)
	assert.Len(t, errs, 1)
}

func TestContractBookRefUsesTokens(t *testing.T) {
	c := Contract{Venue: collectors.VenuePolymarket, ContractID: "123", TokenIDs: []string{"tok-yes", "tok-no"}}
	ref := c.BookRef(collectors.SideNo)
	assert.Equal(t, "tok-no", ref.TokenID)
	assert.Equal(t, "polymarket:tok-no", ref.CacheKey())

	k := Contract{Venue: collectors.VenueKalshi, ContractID: "T"}
	assert.Equal(t, "kalshi:T", k.BookRef(collectors.SideYes).CacheKey())
	assert.Equal(t, k.BookRef(collectors.SideYes).CacheKey(), k.BookRef(collectors.SideNo).CacheKey())
}

func TestFilter(t *testing.T) {
	contracts := []Contract{
		{ContractID: "expired", CloseTime: now.Add(-time.Hour), Volume24h: 5000},
		{ContractID: "thin", CloseTime: now.Add(time.Hour), Volume24h: 10},
		{ContractID: "far", CloseTime: now.Add(90 * 24 * time.Hour), Volume24h: 5000},
		{ContractID: "ok", CloseTime: now.Add(72 * time.Hour), Volume24h: 5000},
		{ContractID: "open-ended", Volume24h: 5000},
	}
	got := Filter{MinVolume24h: 100, MaxDaysToExpiry: 30}.Apply(contracts, now)
	var ids []string
	for _, c := range got {
		ids = append(ids, c.ContractID)
	}
	assert.Equal(t, []string{"ok", "open-ended"}, ids)
}
