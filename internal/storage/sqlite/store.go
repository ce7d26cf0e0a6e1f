package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/models"
)

const (
	defaultPath = "data/arb.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database, then ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{path: path, db: db}
	if err := s.CreateTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var tables = []string{"contracts", "arb_opportunities", "scan_summaries"}

// CreateTables ensures every table exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes every table.
func (s *Store) DropTables(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}

// ClearTables deletes all rows but keeps the schema.
func (s *Store) ClearTables(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return nil
}

// Migrate drops the legacy snapshot tables and recreates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`DROP TABLE IF EXISTS markets;`,
		`DROP TABLE IF EXISTS polymarket_markets;`,
		`DROP TABLE IF EXISTS kalshi_markets;`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if err := s.DropTables(ctx); err != nil {
		return err
	}
	return s.CreateTables(ctx)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS contracts (
	venue TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	event_id TEXT,
	event_title TEXT,
	question TEXT,
	category TEXT,
	resolution_source TEXT,
	resolution_details TEXT,
	close_time TEXT,
	yes_bid REAL,
	yes_ask REAL,
	no_bid REAL,
	no_ask REAL,
	volume_24h REAL,
	token_yes TEXT,
	token_no TEXT,
	estimated INTEGER,
	text_hash TEXT,
	resolution_hash TEXT,
	last_seen_at TEXT,
	raw_json TEXT,
	PRIMARY KEY (venue, contract_id)
);
CREATE INDEX IF NOT EXISTS contracts_event_idx ON contracts(venue, event_id);
` + opportunitiesSchemaSQL + summariesSchemaSQL

const contractUpsertSQL = `
INSERT INTO contracts (
	venue, contract_id, event_id, event_title, question, category,
	resolution_source, resolution_details, close_time,
	yes_bid, yes_ask, no_bid, no_ask, volume_24h, token_yes, token_no, estimated,
	text_hash, resolution_hash, last_seen_at, raw_json
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(venue, contract_id) DO UPDATE SET
	event_id=excluded.event_id,
	event_title=excluded.event_title,
	question=excluded.question,
	category=excluded.category,
	resolution_source=excluded.resolution_source,
	resolution_details=excluded.resolution_details,
	close_time=excluded.close_time,
	yes_bid=excluded.yes_bid,
	yes_ask=excluded.yes_ask,
	no_bid=excluded.no_bid,
	no_ask=excluded.no_ask,
	volume_24h=excluded.volume_24h,
	token_yes=excluded.token_yes,
	token_no=excluded.token_no,
	estimated=excluded.estimated,
	text_hash=excluded.text_hash,
	resolution_hash=excluded.resolution_hash,
	last_seen_at=excluded.last_seen_at,
	raw_json=excluded.raw_json;
`

// UpsertContracts records the normalized contracts seen in a cycle.
func (s *Store) UpsertContracts(ctx context.Context, contracts []models.Contract, seenAt time.Time) error {
	if len(contracts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, contractUpsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	ts := formatTime(seenAt)
	for _, c := range contracts {
		if err := execContractUpsert(ctx, stmt, c, ts); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

func execContractUpsert(ctx context.Context, stmt *sql.Stmt, c models.Contract, ts string) error {
	rawJSON, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var tokenYes, tokenNo string
	if len(c.TokenIDs) > 0 {
		tokenYes = c.TokenIDs[0]
	}
	if len(c.TokenIDs) > 1 {
		tokenNo = c.TokenIDs[1]
	}
	_, err = stmt.ExecContext(
		ctx,
		string(c.Venue),
		c.ContractID,
		c.EventID,
		c.EventTitle,
		c.Question,
		c.Category,
		c.ResolutionSource,
		c.ResolutionDetails,
		formatTime(c.CloseTime),
		c.Yes.Bid,
		c.Yes.Ask,
		c.No.Bid,
		c.No.Ask,
		c.Volume24h,
		tokenYes,
		tokenNo,
		c.Yes.Estimated || c.No.Estimated,
		hashutil.HashStrings(c.EventTitle, c.Question),
		hashutil.HashStrings(c.ResolutionSource, c.ResolutionDetails),
		ts,
		string(rawJSON),
	)
	return err
}

// CountContracts returns the number of stored contracts for a venue, or all
// venues when venue is empty.
func (s *Store) CountContracts(ctx context.Context, venue string) (int, error) {
	query := `SELECT COUNT(*) FROM contracts`
	args := []any{}
	if venue != "" {
		query += ` WHERE venue = ?`
		args = append(args, venue)
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// ListContracts returns the stored contracts of a venue, or of every
// venue when venue is empty, most recently seen first.
func (s *Store) ListContracts(ctx context.Context, venue string) ([]models.Contract, error) {
	query := `SELECT raw_json FROM contracts`
	args := []any{}
	if venue != "" {
		query += ` WHERE venue = ?`
		args = append(args, venue)
	}
	query += ` ORDER BY last_seen_at DESC, contract_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var c models.Contract
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindContract looks a contract up by id in any venue.
func (s *Store) FindContract(ctx context.Context, contractID string) (models.Contract, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT raw_json FROM contracts WHERE contract_id = ? LIMIT 1`, contractID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contract{}, false, nil
	}
	if err != nil {
		return models.Contract{}, false, err
	}
	var c models.Contract
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return models.Contract{}, false, fmt.Errorf("decode contract %s: %w", contractID, err)
	}
	return c, true, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
