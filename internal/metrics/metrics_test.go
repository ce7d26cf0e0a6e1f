package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/matches"
)

func TestObserve(t *testing.T) {
	m := New()
	m.Observe(matches.ScanSummary{
		Duration:        2 * time.Second,
		ContractsA:      120,
		ContractsB:      300,
		Matches:         4,
		Opportunities:   2,
		BestProfitUSD:   27.45,
		OrderbookCalls:  9,
		QuoteErrors:     3,
		BudgetExhausted: true,
	})

	rec := httptest.NewRecorder()
	Handler(m.Registry, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, line := range []string{
		"arb_scan_cycles_total 1",
		`arb_contracts{venue="b"} 300`,
		"arb_opportunities_total 2",
		"arb_best_profit_usd 27.45",
		`arb_errors_total{stage="quote"} 3`,
		"arb_budget_exhausted_total 1",
	} {
		assert.Contains(t, body, line)
	}
	assert.NotContains(t, body, `stage="fetch"`)

	var nilMetrics *Metrics
	nilMetrics.Observe(matches.ScanSummary{})
}

func TestHandlerEndpoints(t *testing.T) {
	m := New()
	m.GasUSD.Set(2)
	srv := httptest.NewServer(Handler(m.Registry, func() any {
		return matches.ScanSummary{CycleID: "cycle-9"}
	}))
	defer srv.Close()

	get := func(path string) string {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Equal(t, "ok", get("/healthz"))
	assert.Contains(t, get("/metrics"), "arb_gas_usd 2")
	assert.Contains(t, get("/status"), `"cycle_id":"cycle-9"`)
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(nil, func() any { return nil }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Contains(t, rec.Body.String(), "starting")
}
