package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "arb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleOpportunity(id string, ts time.Time) *matches.Opportunity {
	return &matches.Opportunity{
		ID:                      id,
		Timestamp:               ts,
		PairID:                  "pair-cpi",
		VenueA:                  collectors.VenueKalshi,
		ContractA:               "KXCPI-25SEP-T3.0",
		QuestionA:               "Will CPI be above 3.0% in September 2025?",
		VenueB:                  collectors.VenuePolymarket,
		ContractB:               "0xcpi-sep",
		QuestionB:               "CPI above 3.0% for September 2025?",
		Confidence:              0.8123,
		Risk:                    similarity.RiskSafe,
		Strategy:                matches.StrategyYes,
		BuyVenue:                collectors.VenueKalshi,
		BuySide:                 collectors.SideYes,
		SellVenue:               collectors.VenuePolymarket,
		SellSide:                collectors.SideNo,
		PriceA:                  0.45,
		PriceB:                  0.4,
		SlippageA:               0,
		SlippageB:               1.25,
		FeesA:                   3.85,
		FeesB:                   2,
		TotalCostA:              103.75,
		TotalCostB:              90.8,
		TradeSizeUSD:            100,
		Contracts:               222,
		GuaranteedProfit:        27.45,
		ProfitPercent:           14.11,
		AnnualizedProfitPerHour: 5009.625,
		LiquidityScore:          80,
		ExecutionCertainty:      95,
		HoursToExpiry:           48,
		IsProfitable:            true,
		ReadyToExecute:          true,
		Recommendation:          matches.RecommendExecuteImmediately,
	}
}

func TestOpportunityRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := sampleOpportunity("opp-1", time.Date(2025, 9, 1, 12, 0, 0, 123456789, time.UTC))
	require.NoError(t, store.InsertOpportunity(ctx, want))

	got, err := store.ListOpportunities(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestListOpportunitiesNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertOpportunity(ctx, sampleOpportunity("old", base)))
	require.NoError(t, store.InsertOpportunity(ctx, sampleOpportunity("new", base.Add(time.Minute))))
	other := sampleOpportunity("other", base.Add(2*time.Minute))
	other.PairID = "pair-fed"
	require.NoError(t, store.InsertOpportunity(ctx, other))

	got, err := store.ListOpportunities(ctx, "pair-cpi", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	got, err = store.ListOpportunities(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].ID)
}

func TestPublishStoresCycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	summary := matches.ScanSummary{CycleID: "cycle-1", StartedAt: start, FinishedAt: start.Add(3 * time.Second), Duration: 3 * time.Second}
	opp := sampleOpportunity("opp-1", start)
	summary.Add(opp)
	require.NoError(t, store.Publish(ctx, summary, []*matches.Opportunity{opp, nil}))

	sums, err := store.Summaries(ctx, 5)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, summary, sums[0])

	opps, err := store.ListOpportunities(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, opps, 1)
}

func TestUpsertContracts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	contracts := []models.Contract{
		{Venue: collectors.VenueKalshi, ContractID: "K1", Question: "Q1", Yes: models.MarketQuote{Ask: 0.45}},
		{Venue: collectors.VenuePolymarket, ContractID: "P1", Question: "Q2", TokenIDs: []string{"y", "n"}},
	}
	require.NoError(t, store.UpsertContracts(ctx, contracts, now))
	contracts[0].Yes.Ask = 0.5
	require.NoError(t, store.UpsertContracts(ctx, contracts[:1], now.Add(time.Minute)))

	n, err := store.CountContracts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountContracts(ctx, string(collectors.VenueKalshi))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var ask float64
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT yes_ask FROM contracts WHERE contract_id = 'K1'`).Scan(&ask))
	assert.Equal(t, 0.5, ask)

	listed, err := store.ListContracts(ctx, string(collectors.VenuePolymarket))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, []string{"y", "n"}, listed[0].TokenIDs)

	all, err := store.ListContracts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "K1", all[0].ContractID)

	found, ok, err := store.FindContract(ctx, "K1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.5, found.Yes.Ask)

	_, ok, err = store.FindContract(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearAndMigrate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertOpportunity(ctx, sampleOpportunity("opp-1", time.Now().UTC())))
	require.NoError(t, store.ClearTables(ctx))
	got, err := store.ListOpportunities(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Migrate(ctx))
	n, err := store.CountContracts(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}
