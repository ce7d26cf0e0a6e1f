package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full runtime configuration of the scanner. Build it with
// Load, then call Validate before starting any scan.
type Config struct {
	LogLevel string `toml:"log_level"`

	Matching   MatchingConfig  `toml:"matching"`
	Arbitrage  ArbitrageConfig `toml:"arbitrage"`
	Fees       FeesConfig      `toml:"fees"`
	Scan       ScanConfig      `toml:"scan"`
	Kalshi     VenueConfig     `toml:"kalshi"`
	Polymarket VenueConfig     `toml:"polymarket"`
	Redis      RedisConfig     `toml:"redis"`
	Kafka      KafkaConfig     `toml:"kafka"`
	SQLite     SQLiteConfig    `toml:"sqlite"`
	CSV        CSVConfig       `toml:"csv"`
	LLM        LLMConfig       `toml:"llm"`
	Chain      ChainConfig     `toml:"chain"`
	Metrics    MetricsConfig   `toml:"metrics"`
}

// MatchingConfig holds the contract matcher thresholds.
type MatchingConfig struct {
	// ProvisionalThreshold is the floor a candidate must beat to become the
	// running best for a venue-A contract.
	ProvisionalThreshold float64 `toml:"provisional_threshold"`
	// AcceptThreshold is the floor the best candidate must beat to be emitted.
	AcceptThreshold float64 `toml:"accept_threshold"`
	Prefilter       bool    `toml:"prefilter"`
	LogMode         string  `toml:"log_mode"`
	LogPath         string  `toml:"log_path"`
}

type ArbitrageConfig struct {
	MinProfitUSD        float64   `toml:"min_profit_usd"`
	VolumeLadder        []float64 `toml:"volume_ladder"`
	DefaultExpiryHours  float64   `toml:"default_expiry_hours"`
	MaxConcurrentQuotes int       `toml:"max_concurrent_quotes"`
}

// FeesConfig describes per-venue fee schedules and the fallback slippage
// curves used when no order book is available.
type FeesConfig struct {
	KalshiRate          float64  `toml:"kalshi_rate"`
	KalshiIndexRate     float64  `toml:"kalshi_index_rate"`
	KalshiIndexPrefixes []string `toml:"kalshi_index_prefixes"`

	PolymarketGasUSD         float64 `toml:"polymarket_gas_usd"`
	PolymarketGasPerThousand float64 `toml:"polymarket_gas_per_thousand_usd"`

	KalshiSlippageBasePct     float64 `toml:"kalshi_slippage_base_pct"`
	KalshiSlippagePer200Pct   float64 `toml:"kalshi_slippage_per_200_pct"`
	KalshiSlippageIndexFactor float64 `toml:"kalshi_slippage_index_factor"`
	KalshiSlippageCapPct      float64 `toml:"kalshi_slippage_cap_pct"`

	PolymarketSlippagePer1000Pct float64 `toml:"polymarket_slippage_per_1000_pct"`
	PolymarketSlippageCapPct     float64 `toml:"polymarket_slippage_cap_pct"`
}

type ScanConfig struct {
	Interval        Duration `toml:"interval"`
	OrderbookBudget int      `toml:"orderbook_budget"`
	CallTimeout     Duration `toml:"call_timeout"`
	Pages           int      `toml:"pages"`
	PageSize        int      `toml:"page_size"`
	MinVolume24h    float64  `toml:"min_volume_24h"`
	MaxDaysToExpiry float64  `toml:"max_days_to_expiry"`
	MaxMatches      int      `toml:"max_matches"`
}

type VenueConfig struct {
	BaseURL        string   `toml:"base_url"`
	BookURL        string   `toml:"book_url"`
	Timeout        Duration `toml:"timeout"`
	RequestsPerSec float64  `toml:"requests_per_sec"`
	Burst          int      `toml:"burst"`
}

type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

type KafkaConfig struct {
	Brokers          string `toml:"brokers"`
	OpportunityTopic string `toml:"opportunity_topic"`
	SummaryTopic     string `toml:"summary_topic"`
	Group            string `toml:"group"`
	Workers          int    `toml:"workers"`

	// MaxAge makes the sink drop opportunities older than this.
	MaxAge Duration `toml:"max_age"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type CSVConfig struct {
	Path string `toml:"path"`
}

type LLMConfig struct {
	Enabled bool     `toml:"enabled"`
	APIKey  string   `toml:"api_key"`
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	Timeout Duration `toml:"timeout"`
}

// ChainConfig enables the live gas oracle for on-chain settlement costs.
type ChainConfig struct {
	RPCURL    string  `toml:"rpc_url"`
	GasLimit  uint64  `toml:"gas_limit"`
	NativeUSD float64 `toml:"native_usd"`
	MaxGasUSD float64 `toml:"max_gas_usd"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Duration wraps time.Duration so TOML strings like "30s" decode.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with production defaults.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Matching: MatchingConfig{
			ProvisionalThreshold: 0.70,
			AcceptThreshold:      0.75,
			Prefilter:            true,
			LogMode:              "quiet",
			LogPath:              "matches.log",
		},
		Arbitrage: ArbitrageConfig{
			MinProfitUSD:        5,
			VolumeLadder:        []float64{50, 100, 150, 200, 300, 500, 750, 1000},
			DefaultExpiryHours:  24,
			MaxConcurrentQuotes: 4,
		},
		Fees: FeesConfig{
			KalshiRate:                   0.07,
			KalshiIndexRate:              0.035,
			KalshiIndexPrefixes:          []string{"INX", "NASDAQ100"},
			PolymarketGasUSD:             2.0,
			KalshiSlippageBasePct:        0.5,
			KalshiSlippagePer200Pct:      0.5,
			KalshiSlippageIndexFactor:    0.7,
			KalshiSlippageCapPct:         5,
			PolymarketSlippagePer1000Pct: 2,
			PolymarketSlippageCapPct:     10,
		},
		Scan: ScanConfig{
			Interval:        Duration{time.Minute},
			OrderbookBudget: 200,
			CallTimeout:     Duration{5 * time.Second},
			Pages:           5,
			PageSize:        100,
			MinVolume24h:    0,
			MaxDaysToExpiry: 0,
		},
		Kalshi: VenueConfig{
			Timeout:        Duration{20 * time.Second},
			RequestsPerSec: 10,
			Burst:          5,
		},
		Polymarket: VenueConfig{
			Timeout:        Duration{20 * time.Second},
			RequestsPerSec: 10,
			Burst:          5,
		},
		Redis: RedisConfig{
			TTL: Duration{240 * time.Hour},
		},
		Kafka: KafkaConfig{
			OpportunityTopic: "arb.opportunities",
			SummaryTopic:     "arb.scan_summaries",
			Group:            "opportunity-sink",
			Workers:          1,
		},
		SQLite: SQLiteConfig{Path: "data/arb.db"},
		LLM: LLMConfig{
			Timeout: Duration{60 * time.Second},
		},
		Chain: ChainConfig{
			GasLimit:  250000,
			MaxGasUSD: 10,
		},
	}
}

// Error is returned when the configuration cannot be used. It is only ever
// produced at startup.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Validate checks cross-field constraints and returns *Error listing every
// problem found.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	m := c.Matching
	if m.ProvisionalThreshold <= 0 || m.ProvisionalThreshold > 1 {
		add("matching.provisional_threshold must be in (0,1], got %v", m.ProvisionalThreshold)
	}
	if m.AcceptThreshold <= 0 || m.AcceptThreshold > 1 {
		add("matching.accept_threshold must be in (0,1], got %v", m.AcceptThreshold)
	}
	if m.ProvisionalThreshold > m.AcceptThreshold {
		add("matching.provisional_threshold (%v) exceeds accept_threshold (%v)", m.ProvisionalThreshold, m.AcceptThreshold)
	}
	switch strings.ToLower(m.LogMode) {
	case "", "quiet", "summary", "verbose":
	default:
		add("matching.log_mode must be quiet|summary|verbose, got %q", m.LogMode)
	}

	a := c.Arbitrage
	if a.MinProfitUSD < 0 {
		add("arbitrage.min_profit_usd must be >= 0")
	}
	if len(a.VolumeLadder) == 0 {
		add("arbitrage.volume_ladder must not be empty")
	}
	for i, v := range a.VolumeLadder {
		if v <= 0 {
			add("arbitrage.volume_ladder[%d] must be positive, got %v", i, v)
		}
	}
	if a.DefaultExpiryHours <= 0 {
		add("arbitrage.default_expiry_hours must be positive")
	}

	f := c.Fees
	if f.KalshiRate < 0 || f.KalshiIndexRate < 0 {
		add("fees: kalshi rates must be >= 0")
	}
	if f.PolymarketGasUSD < 0 || f.PolymarketGasPerThousand < 0 {
		add("fees: polymarket gas must be >= 0")
	}
	if f.KalshiSlippageCapPct <= 0 || f.PolymarketSlippageCapPct <= 0 {
		add("fees: fallback slippage caps must be positive")
	}

	s := c.Scan
	if s.OrderbookBudget <= 0 {
		add("scan.orderbook_budget must be positive")
	}
	if s.CallTimeout.Duration <= 0 {
		add("scan.call_timeout must be positive")
	}
	if s.Interval.Duration <= 0 {
		add("scan.interval must be positive")
	}
	if s.Pages <= 0 {
		add("scan.pages must be positive")
	}

	if c.Kalshi.RequestsPerSec <= 0 {
		add("kalshi.requests_per_sec must be positive")
	}
	if c.Polymarket.RequestsPerSec <= 0 {
		add("polymarket.requests_per_sec must be positive")
	}

	if c.LLM.Enabled && strings.TrimSpace(c.LLM.APIKey) == "" {
		add("llm.api_key is required when llm.enabled is true")
	}
	if c.Chain.RPCURL != "" && c.Chain.NativeUSD <= 0 {
		add("chain.native_usd is required when chain.rpc_url is set")
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// KafkaBrokers splits the comma-separated broker list.
func (c *Config) KafkaBrokers() []string {
	parts := strings.Split(c.Kafka.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
