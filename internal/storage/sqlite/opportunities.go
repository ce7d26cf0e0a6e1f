package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

const opportunitiesSchemaSQL = `
CREATE TABLE IF NOT EXISTS arb_opportunities (
	opportunity_id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	pair_id TEXT NOT NULL,
	venue_a TEXT,
	contract_a TEXT,
	question_a TEXT,
	venue_b TEXT,
	contract_b TEXT,
	question_b TEXT,
	match_confidence REAL,
	risk TEXT,
	strategy TEXT,
	buy_venue TEXT,
	buy_side TEXT,
	sell_venue TEXT,
	sell_side TEXT,
	execution_price_a REAL,
	execution_price_b REAL,
	slippage_pct_a REAL,
	slippage_pct_b REAL,
	fees_usd_a REAL,
	fees_usd_b REAL,
	total_cost_usd_a REAL,
	total_cost_usd_b REAL,
	trade_size_usd REAL,
	contracts INTEGER,
	guaranteed_profit_usd REAL,
	profit_pct REAL,
	profit_per_hour_annualized REAL,
	liquidity_score REAL,
	execution_certainty REAL,
	hours_to_expiry REAL,
	is_profitable INTEGER,
	ready_to_execute INTEGER,
	recommendation TEXT,
	estimated INTEGER
);
CREATE INDEX IF NOT EXISTS arb_opportunities_pair_idx ON arb_opportunities(pair_id, timestamp);
`

const summariesSchemaSQL = `
CREATE TABLE IF NOT EXISTS scan_summaries (
	cycle_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	opportunities INTEGER,
	total_profit_usd REAL,
	best_opportunity_id TEXT,
	best_profit_usd REAL,
	orderbook_calls INTEGER,
	budget_exhausted INTEGER,
	summary_json TEXT
);
`

var opportunityColumns = []string{
	"opportunity_id", "timestamp", "pair_id",
	"venue_a", "contract_a", "question_a",
	"venue_b", "contract_b", "question_b",
	"match_confidence", "risk", "strategy",
	"buy_venue", "buy_side", "sell_venue", "sell_side",
	"execution_price_a", "execution_price_b", "slippage_pct_a", "slippage_pct_b",
	"fees_usd_a", "fees_usd_b", "total_cost_usd_a", "total_cost_usd_b",
	"trade_size_usd", "contracts", "guaranteed_profit_usd", "profit_pct",
	"profit_per_hour_annualized", "liquidity_score", "execution_certainty", "hours_to_expiry",
	"is_profitable", "ready_to_execute", "recommendation", "estimated",
}

var insertOpportunitySQL = fmt.Sprintf(
	"INSERT OR REPLACE INTO arb_opportunities (%s) VALUES (%s)",
	strings.Join(opportunityColumns, ", "),
	strings.TrimSuffix(strings.Repeat("?,", len(opportunityColumns)), ","),
)

func opportunityValues(o *matches.Opportunity) []any {
	return []any{
		o.ID, formatTime(o.Timestamp), o.PairID,
		string(o.VenueA), o.ContractA, o.QuestionA,
		string(o.VenueB), o.ContractB, o.QuestionB,
		o.Confidence, string(o.Risk), string(o.Strategy),
		string(o.BuyVenue), string(o.BuySide), string(o.SellVenue), string(o.SellSide),
		o.PriceA, o.PriceB, o.SlippageA, o.SlippageB,
		o.FeesA, o.FeesB, o.TotalCostA, o.TotalCostB,
		o.TradeSizeUSD, o.Contracts, o.GuaranteedProfit, o.ProfitPercent,
		o.AnnualizedProfitPerHour, o.LiquidityScore, o.ExecutionCertainty, o.HoursToExpiry,
		o.IsProfitable, o.ReadyToExecute, string(o.Recommendation), o.Estimated,
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertOpportunity stores one opportunity, replacing any row with the same id.
func (s *Store) InsertOpportunity(ctx context.Context, opp *matches.Opportunity) error {
	if s == nil || s.db == nil || opp == nil {
		return fmt.Errorf("sqlite store not initialized or opportunity nil")
	}
	return insertOpportunity(ctx, s.db, opp)
}

func insertOpportunity(ctx context.Context, db execer, opp *matches.Opportunity) error {
	if _, err := db.ExecContext(ctx, insertOpportunitySQL, opportunityValues(opp)...); err != nil {
		return fmt.Errorf("insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListOpportunities returns the most recent opportunities, newest first.
// pairID filters to one pair when set.
func (s *Store) ListOpportunities(ctx context.Context, pairID string, limit int) ([]*matches.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM arb_opportunities", strings.Join(opportunityColumns, ", "))
	args := []any{}
	if pairID != "" {
		query += " WHERE pair_id = ?"
		args = append(args, pairID)
	}
	query += " ORDER BY timestamp DESC, opportunity_id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*matches.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

func scanOpportunity(rows *sql.Rows) (*matches.Opportunity, error) {
	var o matches.Opportunity
	var ts, venueA, venueB, risk, strategy, recommendation string
	var buyVenue, buySide, sellVenue, sellSide string
	err := rows.Scan(
		&o.ID, &ts, &o.PairID,
		&venueA, &o.ContractA, &o.QuestionA,
		&venueB, &o.ContractB, &o.QuestionB,
		&o.Confidence, &risk, &strategy,
		&buyVenue, &buySide, &sellVenue, &sellSide,
		&o.PriceA, &o.PriceB, &o.SlippageA, &o.SlippageB,
		&o.FeesA, &o.FeesB, &o.TotalCostA, &o.TotalCostB,
		&o.TradeSizeUSD, &o.Contracts, &o.GuaranteedProfit, &o.ProfitPercent,
		&o.AnnualizedProfitPerHour, &o.LiquidityScore, &o.ExecutionCertainty, &o.HoursToExpiry,
		&o.IsProfitable, &o.ReadyToExecute, &recommendation, &o.Estimated,
	)
	if err != nil {
		return nil, fmt.Errorf("scan opportunity: %w", err)
	}
	if o.Timestamp, err = parseTime(ts); err != nil {
		return nil, fmt.Errorf("opportunity %s timestamp: %w", o.ID, err)
	}
	o.VenueA = collectors.Venue(venueA)
	o.VenueB = collectors.Venue(venueB)
	o.Risk = similarity.Risk(risk)
	o.Strategy = matches.Strategy(strategy)
	o.BuyVenue = collectors.Venue(buyVenue)
	o.BuySide = collectors.Side(buySide)
	o.SellVenue = collectors.Venue(sellVenue)
	o.SellSide = collectors.Side(sellSide)
	o.Recommendation = matches.Recommendation(recommendation)
	return &o, nil
}

// InsertSummary stores one scan cycle summary.
func (s *Store) InsertSummary(ctx context.Context, summary matches.ScanSummary) error {
	return insertSummary(ctx, s.db, summary)
}

func insertSummary(ctx context.Context, db execer, summary matches.ScanSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = db.ExecContext(ctx, `
INSERT OR REPLACE INTO scan_summaries (
	cycle_id, started_at, finished_at, opportunities, total_profit_usd,
	best_opportunity_id, best_profit_usd, orderbook_calls, budget_exhausted, summary_json
) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		summary.CycleID,
		formatTime(summary.StartedAt),
		formatTime(summary.FinishedAt),
		summary.Opportunities,
		summary.TotalProfitUSD,
		summary.BestOpportunityID,
		summary.BestProfitUSD,
		summary.OrderbookCalls,
		summary.BudgetExhausted,
		string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert summary %s: %w", summary.CycleID, err)
	}
	return nil
}

// Summaries returns the most recent cycle summaries, newest first.
func (s *Store) Summaries(ctx context.Context, limit int) ([]matches.ScanSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT summary_json FROM scan_summaries ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matches.ScanSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var summary matches.ScanSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Publish stores a cycle's opportunities and its summary in one transaction.
func (s *Store) Publish(ctx context.Context, summary matches.ScanSummary, opps []*matches.Opportunity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, opp := range opps {
		if opp == nil {
			continue
		}
		if err := insertOpportunity(ctx, tx, opp); err != nil {
			tx.Rollback()
			return err
		}
	}
	if summary.CycleID != "" {
		if err := insertSummary(ctx, tx, summary); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
