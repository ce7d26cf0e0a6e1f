package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

// column maps one CSV column to an Opportunity attribute.
type column struct {
	name string
	get  func(*matches.Opportunity) string
	set  func(*matches.Opportunity, string) error
}

func str(name string, field func(*matches.Opportunity) *string) column {
	return column{
		name: name,
		get:  func(o *matches.Opportunity) string { return *field(o) },
		set:  func(o *matches.Opportunity, v string) error { *field(o) = v; return nil },
	}
}

func num(name string, field func(*matches.Opportunity) *float64) column {
	return column{
		name: name,
		get:  func(o *matches.Opportunity) string { return strconv.FormatFloat(*field(o), 'g', -1, 64) },
		set: func(o *matches.Opportunity, v string) (err error) {
			*field(o), err = strconv.ParseFloat(v, 64)
			return err
		},
	}
}

func flag(name string, field func(*matches.Opportunity) *bool) column {
	return column{
		name: name,
		get:  func(o *matches.Opportunity) string { return strconv.FormatBool(*field(o)) },
		set: func(o *matches.Opportunity, v string) (err error) {
			*field(o), err = strconv.ParseBool(v)
			return err
		},
	}
}

func typed[T ~string](name string, field func(*matches.Opportunity) *T) column {
	return column{
		name: name,
		get:  func(o *matches.Opportunity) string { return string(*field(o)) },
		set:  func(o *matches.Opportunity, v string) error { *field(o) = T(v); return nil },
	}
}

var columns = []column{
	str("opportunity_id", func(o *matches.Opportunity) *string { return &o.ID }),
	{
		name: "timestamp",
		get:  func(o *matches.Opportunity) string { return o.Timestamp.Format(time.RFC3339Nano) },
		set: func(o *matches.Opportunity, v string) (err error) {
			o.Timestamp, err = time.Parse(time.RFC3339Nano, v)
			return err
		},
	},
	str("pair_id", func(o *matches.Opportunity) *string { return &o.PairID }),
	typed("venue_a", func(o *matches.Opportunity) *collectors.Venue { return &o.VenueA }),
	str("contract_a", func(o *matches.Opportunity) *string { return &o.ContractA }),
	str("question_a", func(o *matches.Opportunity) *string { return &o.QuestionA }),
	typed("venue_b", func(o *matches.Opportunity) *collectors.Venue { return &o.VenueB }),
	str("contract_b", func(o *matches.Opportunity) *string { return &o.ContractB }),
	str("question_b", func(o *matches.Opportunity) *string { return &o.QuestionB }),
	num("match_confidence", func(o *matches.Opportunity) *float64 { return &o.Confidence }),
	typed("risk", func(o *matches.Opportunity) *similarity.Risk { return &o.Risk }),
	typed("strategy", func(o *matches.Opportunity) *matches.Strategy { return &o.Strategy }),
	typed("buy_venue", func(o *matches.Opportunity) *collectors.Venue { return &o.BuyVenue }),
	typed("buy_side", func(o *matches.Opportunity) *collectors.Side { return &o.BuySide }),
	typed("sell_venue", func(o *matches.Opportunity) *collectors.Venue { return &o.SellVenue }),
	typed("sell_side", func(o *matches.Opportunity) *collectors.Side { return &o.SellSide }),
	num("execution_price_a", func(o *matches.Opportunity) *float64 { return &o.PriceA }),
	num("execution_price_b", func(o *matches.Opportunity) *float64 { return &o.PriceB }),
	num("slippage_pct_a", func(o *matches.Opportunity) *float64 { return &o.SlippageA }),
	num("slippage_pct_b", func(o *matches.Opportunity) *float64 { return &o.SlippageB }),
	num("fees_usd_a", func(o *matches.Opportunity) *float64 { return &o.FeesA }),
	num("fees_usd_b", func(o *matches.Opportunity) *float64 { return &o.FeesB }),
	num("total_cost_usd_a", func(o *matches.Opportunity) *float64 { return &o.TotalCostA }),
	num("total_cost_usd_b", func(o *matches.Opportunity) *float64 { return &o.TotalCostB }),
	num("trade_size_usd", func(o *matches.Opportunity) *float64 { return &o.TradeSizeUSD }),
	{
		name: "contracts",
		get:  func(o *matches.Opportunity) string { return strconv.Itoa(o.Contracts) },
		set: func(o *matches.Opportunity, v string) (err error) {
			o.Contracts, err = strconv.Atoi(v)
			return err
		},
	},
	num("guaranteed_profit_usd", func(o *matches.Opportunity) *float64 { return &o.GuaranteedProfit }),
	num("profit_pct", func(o *matches.Opportunity) *float64 { return &o.ProfitPercent }),
	num("profit_per_hour_annualized", func(o *matches.Opportunity) *float64 { return &o.AnnualizedProfitPerHour }),
	num("liquidity_score", func(o *matches.Opportunity) *float64 { return &o.LiquidityScore }),
	num("execution_certainty", func(o *matches.Opportunity) *float64 { return &o.ExecutionCertainty }),
	num("hours_to_expiry", func(o *matches.Opportunity) *float64 { return &o.HoursToExpiry }),
	flag("is_profitable", func(o *matches.Opportunity) *bool { return &o.IsProfitable }),
	flag("ready_to_execute", func(o *matches.Opportunity) *bool { return &o.ReadyToExecute }),
	typed("recommendation", func(o *matches.Opportunity) *matches.Recommendation { return &o.Recommendation }),
	flag("estimated", func(o *matches.Opportunity) *bool { return &o.Estimated }),
}

// Header is the CSV header row.
func Header() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.name
	}
	return out
}

// Row renders an opportunity in Header order. Floats use the shortest
// representation that parses back to the same value.
func Row(opp *matches.Opportunity) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.get(opp)
	}
	return out
}

// ParseRow is the inverse of Row.
func ParseRow(row []string) (*matches.Opportunity, error) {
	if len(row) != len(columns) {
		return nil, fmt.Errorf("csv row has %d fields, want %d", len(row), len(columns))
	}
	var opp matches.Opportunity
	for i, c := range columns {
		if err := c.set(&opp, row[i]); err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
	}
	return &opp, nil
}

// ReadAll parses a CSV stream written by Writer, header included.
func ReadAll(r io.Reader) ([]*matches.Opportunity, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := Header()
	for i, name := range records[0] {
		if i >= len(header) || header[i] != name {
			return nil, fmt.Errorf("unexpected csv header %q at column %d", name, i)
		}
	}
	out := make([]*matches.Opportunity, 0, len(records)-1)
	for n, rec := range records[1:] {
		opp, err := ParseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+2, err)
		}
		out = append(out, opp)
	}
	return out, nil
}

// Writer appends opportunities to a CSV file, writing the header when the
// file is new.
type Writer struct {
	mu   sync.Mutex
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Publish appends the cycle's opportunities. The summary is not exported.
func (w *Writer) Publish(_ context.Context, _ matches.ScanSummary, opps []*matches.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	return w.Append(opps...)
}

func (w *Writer) Append(opps ...*matches.Opportunity) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure csv dir: %w", err)
		}
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(Header()); err != nil {
			return err
		}
	}
	for _, opp := range opps {
		if opp == nil {
			continue
		}
		if err := cw.Write(Row(opp)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
