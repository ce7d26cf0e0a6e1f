package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/matches"
)

func connect(t *testing.T, ttl time.Duration) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := Connect(context.Background(), Options{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestVerdictCacheRoundTrip(t *testing.T) {
	client, mr := connect(t, time.Hour)
	c := client.Verdicts("")
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k1", matches.NewResolutionVerdict(false, "different release month")))
	got, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.ValidResolution)
	assert.Equal(t, "different release month", got.ResolutionReason)

	assert.True(t, mr.Exists("pair_verdict:k1"))
	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k2", nil))
	assert.False(t, mr.Exists("pair_verdict:k2"))
}

func TestOpportunityCacheRoundTrip(t *testing.T) {
	client, mr := connect(t, 0)
	c := client.Opportunities("")
	ctx := context.Background()

	opp := &matches.Opportunity{
		ID:               "opp-1",
		PairID:           "pair",
		Strategy:         matches.StrategyYes,
		GuaranteedProfit: 27.45,
		TradeSizeUSD:     100,
		Contracts:        222,
		Timestamp:        time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.Set(ctx, opp.PairID, RecordFor(opp)))
	rec, ok, err := c.Get(ctx, "pair")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RecordFor(opp), *rec)
	assert.True(t, mr.Exists("pair_best:pair"))
	assert.Equal(t, defaultTTL, mr.TTL("pair_best:pair"))
}

func TestCorruptEntryIsAnError(t *testing.T) {
	client, mr := connect(t, time.Hour)
	require.NoError(t, mr.Set("pair_best:bad", "{not json"))

	_, ok, err := client.Opportunities("").Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRecordImproves(t *testing.T) {
	rec := &OpportunityRecord{ProfitUSD: 20}
	assert.False(t, rec.Improves(&matches.Opportunity{GuaranteedProfit: 20}))
	assert.False(t, rec.Improves(&matches.Opportunity{GuaranteedProfit: 20.005}))
	assert.True(t, rec.Improves(&matches.Opportunity{GuaranteedProfit: 21}))

	var missing *OpportunityRecord
	assert.True(t, missing.Improves(&matches.Opportunity{GuaranteedProfit: 1}))
}

func TestConnect(t *testing.T) {
	_, err := Connect(context.Background(), Options{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}
