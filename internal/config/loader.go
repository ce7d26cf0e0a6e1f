package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the optional TOML file at path on top of Defaults, loads a .env
// file if present, applies ARB_* environment overrides and validates the
// result. An empty path skips the file. Any problem is reported as *Error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &Error{Problems: []string{fmt.Sprintf("config file %s not found", path)}}
			}
			return nil, &Error{Problems: []string{fmt.Sprintf("decode %s: %v", path, err)}}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	problems := applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		var cfgErr *Error
		if errors.As(err, &cfgErr) {
			problems = append(problems, cfgErr.Problems...)
		} else {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return nil, &Error{Problems: problems}
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) []string {
	var env envOverrides

	env.str(&cfg.LogLevel, "LOG_LEVEL")

	// Matching
	env.float(&cfg.Matching.ProvisionalThreshold, "ARB_MATCH_PROVISIONAL_THRESHOLD")
	env.float(&cfg.Matching.AcceptThreshold, "ARB_MATCH_ACCEPT_THRESHOLD")
	env.boolean(&cfg.Matching.Prefilter, "ARB_MATCH_PREFILTER")
	env.str(&cfg.Matching.LogMode, "ARB_MATCH_LOG_MODE")
	env.str(&cfg.Matching.LogPath, "ARB_MATCH_LOG_PATH")

	// Arbitrage
	env.float(&cfg.Arbitrage.MinProfitUSD, "ARB_MIN_PROFIT_USD")
	env.floats(&cfg.Arbitrage.VolumeLadder, "ARB_VOLUME_LADDER")
	env.float(&cfg.Arbitrage.DefaultExpiryHours, "ARB_DEFAULT_EXPIRY_HOURS")
	env.integer(&cfg.Arbitrage.MaxConcurrentQuotes, "ARB_MAX_CONCURRENT_QUOTES")

	// Fees
	env.float(&cfg.Fees.KalshiRate, "ARB_KALSHI_FEE_RATE")
	env.float(&cfg.Fees.KalshiIndexRate, "ARB_KALSHI_INDEX_FEE_RATE")
	env.strs(&cfg.Fees.KalshiIndexPrefixes, "ARB_KALSHI_INDEX_PREFIXES")
	env.float(&cfg.Fees.PolymarketGasUSD, "ARB_POLYMARKET_GAS_USD")
	env.float(&cfg.Fees.PolymarketGasPerThousand, "ARB_POLYMARKET_GAS_PER_THOUSAND_USD")

	// Scan
	env.duration(&cfg.Scan.Interval, "ARB_SCAN_INTERVAL")
	env.integer(&cfg.Scan.OrderbookBudget, "ARB_ORDERBOOK_BUDGET")
	env.duration(&cfg.Scan.CallTimeout, "ARB_CALL_TIMEOUT")
	env.integer(&cfg.Scan.Pages, "ARB_SCAN_PAGES")
	env.integer(&cfg.Scan.PageSize, "ARB_SCAN_PAGE_SIZE")
	env.float(&cfg.Scan.MinVolume24h, "ARB_MIN_VOLUME_24H")
	env.float(&cfg.Scan.MaxDaysToExpiry, "ARB_MAX_DAYS_TO_EXPIRY")
	env.integer(&cfg.Scan.MaxMatches, "ARB_MAX_MATCHES")

	// Venues
	env.str(&cfg.Kalshi.BaseURL, "KALSHI_BASE_URL")
	env.str(&cfg.Kalshi.BookURL, "KALSHI_BOOK_URL")
	env.float(&cfg.Kalshi.RequestsPerSec, "KALSHI_REQUESTS_PER_SEC")
	env.str(&cfg.Polymarket.BaseURL, "POLYMARKET_BASE_URL")
	env.str(&cfg.Polymarket.BookURL, "POLYMARKET_BOOK_URL")
	env.float(&cfg.Polymarket.RequestsPerSec, "POLYMARKET_REQUESTS_PER_SEC")

	// Sinks
	env.str(&cfg.Redis.Addr, "REDIS_ADDR")
	env.str(&cfg.Redis.Password, "REDIS_PASSWORD")
	env.integer(&cfg.Redis.DB, "REDIS_DB")
	env.str(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	env.str(&cfg.Kafka.OpportunityTopic, "OPPORTUNITY_KAFKA_TOPIC")
	env.str(&cfg.Kafka.SummaryTopic, "SUMMARY_KAFKA_TOPIC")
	env.str(&cfg.Kafka.Group, "OPPORTUNITY_SINK_GROUP")
	env.integer(&cfg.Kafka.Workers, "OPPORTUNITY_SINK_WORKERS")
	env.str(&cfg.SQLite.Path, "SQLITE_PATH")
	env.str(&cfg.CSV.Path, "ARB_CSV_PATH")

	// LLM
	env.boolean(&cfg.LLM.Enabled, "ARB_LLM_ENABLED")
	env.str(&cfg.LLM.APIKey, "LLM_API_KEY")
	env.str(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	env.str(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	env.str(&cfg.LLM.Model, "LLM_MODEL")

	// Chain
	env.str(&cfg.Chain.RPCURL, "POLYGON_RPC_URL")
	env.float(&cfg.Chain.NativeUSD, "POLYGON_NATIVE_USD")

	env.str(&cfg.Metrics.Addr, "METRICS_ADDR")
	return env.problems
}

// envOverrides applies environment values and records every value that
// does not parse, so a typo fails Load instead of keeping the default.
type envOverrides struct {
	problems []string
}

func (e *envOverrides) invalid(key, kind, raw string) {
	e.problems = append(e.problems, fmt.Sprintf("%s: invalid %s %q", key, kind, raw))
}

func (e *envOverrides) str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envOverrides) integer(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.invalid(key, "integer", v)
		return
	}
	*dst = n
}

func (e *envOverrides) float(dst *float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.invalid(key, "float", v)
		return
	}
	*dst = f
}

func (e *envOverrides) boolean(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.invalid(key, "bool", v)
		return
	}
	*dst = b
}

func (e *envOverrides) duration(dst *Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.invalid(key, "duration", v)
		return
	}
	dst.Duration = d
}

func (e *envOverrides) strs(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}

// floats rejects the whole list if any element fails to parse.
func (e *envOverrides) floats(dst *[]float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []float64
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			e.invalid(key, "float list", v)
			return
		}
		out = append(out, f)
	}
	if len(out) > 0 {
		*dst = out
	}
}
