package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

const (
	defaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2/events"
	defaultBookURL = "https://api.elections.kalshi.com/trade-api/v2/markets"
	maxPageSize    = 200
	maxAttempts    = 5
)

// Client talks to the Kalshi Trade API.
type Client struct {
	baseURL    string
	bookURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// Config provides optional overrides.
type Config struct {
	BaseURL string
	BookURL string
	Timeout time.Duration
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
}

// NewClient builds a configured Kalshi API client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	book := cfg.BookURL
	if book == "" {
		book = defaultBookURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Client{
		baseURL: base,
		bookURL: book,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		backoff: backoff,
	}
}

func (c *Client) Name() string {
	return "kalshi"
}

func (c *Client) Venue() collectors.Venue {
	return collectors.VenueKalshi
}

// Fetch lists open events with their nested markets, starting from the
// first page every call and stopping after opts.Pages pages or at the end.
func (c *Client) Fetch(ctx context.Context, opts collectors.FetchOptions) ([]collectors.Event, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pages := opts.Pages
	if pages <= 0 {
		pages = 1
	}

	var (
		events []collectors.Event
		cursor string
	)
	for page := 0; page < pages; page++ {
		resp, err := c.listEvents(ctx, pageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("list kalshi events: %w", err)
		}
		logging.Debugf("[kalshi] page %d: %d events (cursor: %q)", page, len(resp.Events), cursor)
		for _, ev := range resp.Events {
			if norm := normalizeEvent(ev); len(norm.Markets) > 0 {
				events = append(events, norm)
			}
		}
		cursor = resp.Cursor
		if cursor == "" || len(resp.Events) == 0 {
			break
		}
	}
	return events, nil
}

func (c *Client) listEvents(ctx context.Context, limit int, cursor string) (*eventsResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("status", "open")
	q.Set("with_nested_markets", "true")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	var out eventsResponse
	if err := c.get(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchOrderbook returns both sides of a ticker's book. Kalshi only quotes
// bids; a YES ask at p is a NO bid at 1-p.
func (c *Client) FetchOrderbook(ctx context.Context, ref collectors.BookRef) (collectors.BookSet, error) {
	if ref.ContractID == "" {
		return nil, fmt.Errorf("kalshi orderbook: empty ticker")
	}
	u := fmt.Sprintf("%s/%s/orderbook", strings.TrimRight(c.bookURL, "/"), url.PathEscape(ref.ContractID))
	var out orderbookResponse
	if err := c.get(ctx, u, &out); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, fmt.Errorf("kalshi %s: %w", ref.ContractID, matches.ErrNoOrderbook)
		}
		return nil, err
	}

	yesBids := convertLevels(out.Orderbook.Yes)
	noBids := convertLevels(out.Orderbook.No)
	return collectors.BookSet{
		collectors.SideYes: {Bids: yesBids, Asks: deriveAsksFromOpposite(noBids)},
		collectors.SideNo:  {Bids: noBids, Asks: deriveAsksFromOpposite(yesBids)},
	}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("kalshi API %d %s: %s", e.code, http.StatusText(e.code), e.body)
}

func (c *Client) get(ctx context.Context, rawURL string, dst any) error {
	var attempt int
	for {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil && shouldRetry(attempt, 0) {
				if err := c.sleep(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(dst)
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if shouldRetry(attempt, resp.StatusCode) {
			if err := c.sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
}

func normalizeEvent(ev event) collectors.Event {
	norm := collectors.Event{
		Venue:             collectors.VenueKalshi,
		EventID:           ev.Ticker,
		Title:             ev.Title,
		Description:       ev.SubTitle,
		Category:          ev.Category,
		Status:            ev.Status,
		ResolutionDetails: strings.TrimSpace(ev.RulesPrimary + "\n" + ev.RulesSecondary),
		CloseTime:         parseTime(ev.CloseTime),
	}
	for _, src := range ev.SettlementSources {
		norm.SettlementSources = append(norm.SettlementSources, collectors.ResolutionSource{Name: src.Name, URL: src.URL})
	}
	if len(norm.SettlementSources) > 0 {
		names := make([]string, 0, len(norm.SettlementSources))
		for _, s := range norm.SettlementSources {
			names = append(names, s.Name)
		}
		norm.ResolutionSource = strings.Join(names, ", ")
	}

	for i := range ev.Markets {
		m := &ev.Markets[i]
		if m.Status != "" && m.Status != "active" {
			continue
		}
		norm.Markets = append(norm.Markets, normalizeMarket(ev, m))
		if norm.ResolutionDetails == "" {
			norm.ResolutionDetails = strings.TrimSpace(m.RulesPrimary + "\n" + m.RulesSecondary)
		}
	}
	return norm
}

func normalizeMarket(ev event, m *market) collectors.Market {
	return collectors.Market{
		MarketID:     m.Ticker,
		Question:     deriveKalshiQuestion(ev.Title, m),
		Subtitle:     m.SubTitle,
		TickSize:     float64(m.TickSize) / 100.0,
		CloseTime:    parseTime(m.CloseTime),
		Volume:       float64(m.Volume),
		Volume24h:    float64(m.Volume24h),
		OpenInterest: float64(m.OpenInterest),
		Price: collectors.PriceSnapshot{
			YesBid: centsToFloat(m.YesBid),
			YesAsk: centsToFloat(m.YesAsk),
			NoBid:  centsToFloat(m.NoBid),
			NoAsk:  centsToFloat(m.NoAsk),
		},
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func centsToFloat(v int64) float64 {
	return float64(v) / 100.0
}

func convertLevels(levels [][]int64) []collectors.OrderbookLevel {
	out := make([]collectors.OrderbookLevel, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 || lvl[1] <= 0 {
			continue
		}
		qty := float64(lvl[1])
		out = append(out, collectors.OrderbookLevel{
			Price:     centsToFloat(lvl[0]),
			Quantity:  qty,
			RawPrice:  float64(lvl[0]),
			RawAmount: qty,
		})
	}
	return out
}

func deriveAsksFromOpposite(oppositeBids []collectors.OrderbookLevel) []collectors.OrderbookLevel {
	if len(oppositeBids) == 0 {
		return nil
	}
	asks := make([]collectors.OrderbookLevel, 0, len(oppositeBids))
	for _, lvl := range oppositeBids {
		asks = append(asks, collectors.OrderbookLevel{
			Price:     (100 - lvl.RawPrice) / 100,
			Quantity:  lvl.Quantity,
			RawPrice:  100 - lvl.RawPrice,
			RawAmount: lvl.RawAmount,
		})
	}
	return asks
}

type eventsResponse struct {
	Events []event `json:"events"`
	Cursor string  `json:"cursor"`
}

type event struct {
	Ticker            string             `json:"event_ticker"`
	SeriesTicker      string             `json:"series_ticker"`
	Title             string             `json:"title"`
	SubTitle          string             `json:"sub_title"`
	Status            string             `json:"status"`
	Category          string             `json:"category"`
	CloseTime         string             `json:"close_time"`
	SettlementSources []settlementSource `json:"settlement_sources"`
	RulesPrimary      string             `json:"rules_primary"`
	RulesSecondary    string             `json:"rules_secondary"`
	Markets           []market           `json:"markets"`
}

type market struct {
	Ticker         string `json:"ticker"`
	Title          string `json:"title"`
	SubTitle       string `json:"sub_title"`
	YesSubTitle    string `json:"yes_sub_title"`
	Status         string `json:"status"`
	YesAsk         int64  `json:"yes_ask"`
	YesBid         int64  `json:"yes_bid"`
	NoAsk          int64  `json:"no_ask"`
	NoBid          int64  `json:"no_bid"`
	Volume         int64  `json:"volume"`
	Volume24h      int64  `json:"volume_24h"`
	OpenInterest   int64  `json:"open_interest"`
	RulesPrimary   string `json:"rules_primary"`
	RulesSecondary string `json:"rules_secondary"`
	CloseTime      string `json:"close_time"`
	TickSize       int64  `json:"tick_size"`
}

type orderbookResponse struct {
	Orderbook struct {
		Yes [][]int64 `json:"yes"`
		No  [][]int64 `json:"no"`
	} `json:"orderbook"`
}

type settlementSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func shouldRetry(attempt int, status int) bool {
	if attempt >= maxAttempts {
		return false
	}
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	backoff := c.backoff * time.Duration(1<<uint(attempt-1))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	t := time.NewTimer(backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
