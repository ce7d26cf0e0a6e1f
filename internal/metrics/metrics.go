package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hetulpatel/crossarb/internal/matches"
)

// Metrics holds the scanner's collectors, registered on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	Cycles          prometheus.Counter
	CycleDuration   prometheus.Histogram
	Contracts       *prometheus.GaugeVec
	Matches         prometheus.Gauge
	Opportunities   prometheus.Counter
	BestProfitUSD   prometheus.Gauge
	OrderbookCalls  prometheus.Counter
	Errors          *prometheus.CounterVec
	BudgetExhausted prometheus.Counter
	GasUSD          prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arb_scan_cycles_total",
			Help: "Completed scan cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arb_scan_cycle_seconds",
			Help:    "Wall time of one scan cycle",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		Contracts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arb_contracts",
			Help: "Contracts considered in the last cycle",
		}, []string{"venue"}),
		Matches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arb_matches",
			Help: "Accepted matches in the last cycle",
		}),
		Opportunities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arb_opportunities_total",
			Help: "Profitable opportunities built",
		}),
		BestProfitUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arb_best_profit_usd",
			Help: "Best guaranteed profit in the last cycle",
		}),
		OrderbookCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arb_orderbook_calls_total",
			Help: "Order book fetches made",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_errors_total",
			Help: "Errors by scan stage",
		}, []string{"stage"}),
		BudgetExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arb_budget_exhausted_total",
			Help: "Cycles cut short by the order book budget",
		}),
		GasUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arb_gas_usd",
			Help: "Estimated on-chain settlement cost in USD",
		}),
	}
	m.Registry.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.Contracts,
		m.Matches,
		m.Opportunities,
		m.BestProfitUSD,
		m.OrderbookCalls,
		m.Errors,
		m.BudgetExhausted,
		m.GasUSD,
	)
	return m
}

// Observe records a finished cycle.
func (m *Metrics) Observe(s matches.ScanSummary) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.CycleDuration.Observe(s.Duration.Seconds())
	m.Contracts.WithLabelValues("a").Set(float64(s.ContractsA))
	m.Contracts.WithLabelValues("b").Set(float64(s.ContractsB))
	m.Matches.Set(float64(s.Matches))
	m.Opportunities.Add(float64(s.Opportunities))
	m.BestProfitUSD.Set(s.BestProfitUSD)
	m.GasUSD.Set(s.GasUSD)
	m.OrderbookCalls.Add(float64(s.OrderbookCalls))
	for stage, n := range map[string]int{
		"fetch":     s.FetchErrors,
		"normalize": s.NormalizeErrors,
		"match":     s.MatchErrors,
		"quote":     s.QuoteErrors,
		"evaluate":  s.EvaluateErrors,
		"sink":      s.SinkErrors,
	} {
		if n > 0 {
			m.Errors.WithLabelValues(stage).Add(float64(n))
		}
	}
	if s.BudgetExhausted {
		m.BudgetExhausted.Inc()
	}
}
