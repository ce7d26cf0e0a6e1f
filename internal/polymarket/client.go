package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

const (
	defaultBaseURL = "https://gamma-api.polymarket.com/events"
	defaultBookURL = "https://clob.polymarket.com/book"
	maxAttempts    = 5
)

// Client fetches Polymarket events + CLOB data.
type Client struct {
	baseURL    string
	bookURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// Config controls optional overrides for the client.
type Config struct {
	BaseURL      string
	BookURL      string
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// NewClient builds a Polymarket client with sane defaults.
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
	return "polymarket"
}

func (c *Client) Venue() collectors.Venue {
	return collectors.VenuePolymarket
}

// Fetch lists open events page by page from offset zero. Markets come
// nested in the listing, so no per-event or order book calls are made.
func (c *Client) Fetch(ctx context.Context, opts collectors.FetchOptions) ([]collectors.Event, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pages := opts.Pages
	if pages <= 0 {
		pages = 1
	}

	var events []collectors.Event
	for page := 0; page < pages; page++ {
		offset := page * pageSize
		list, err := c.listEvents(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("polymarket list events: %w", err)
		}
		logging.Debugf("[polymarket] page %d: %d events (offset: %d)", page, len(list), offset)
		for i := range list {
			if list[i].Closed {
				continue
			}
			if norm := normalizeEvent(&list[i]); len(norm.Markets) > 0 {
				events = append(events, norm)
			}
		}
		if len(list) < pageSize {
			break
		}
	}
	return events, nil
}

func (c *Client) listEvents(ctx context.Context, limit, offset int) ([]eventDetail, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("closed", "false")
	q.Set("active", "true")
	u.RawQuery = q.Encode()

	var events []eventDetail
	if err := c.get(ctx, u.String(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FetchOrderbook returns the CLOB book of the token behind ref, keyed by
// ref.Side.
func (c *Client) FetchOrderbook(ctx context.Context, ref collectors.BookRef) (collectors.BookSet, error) {
	if ref.TokenID == "" {
		return nil, fmt.Errorf("polymarket orderbook %s %s: %w", ref.ContractID, ref.Side, matches.ErrNoOrderbook)
	}
	u, err := url.Parse(c.bookURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token_id", ref.TokenID)
	u.RawQuery = q.Encode()

	var book clobBook
	if err := c.get(ctx, u.String(), &book); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, fmt.Errorf("polymarket token %s: %w", ref.TokenID, matches.ErrNoOrderbook)
		}
		return nil, err
	}
	return collectors.BookSet{ref.Side: convertClobBook(book)}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("polymarket API %d %s: %s", e.code, http.StatusText(e.code), e.body)
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

func normalizeEvent(ev *eventDetail) collectors.Event {
	norm := collectors.Event{
		Venue:             collectors.VenuePolymarket,
		EventID:           ev.ID,
		Title:             ev.Title,
		Description:       ev.Description,
		Category:          ev.Category,
		Status:            map[bool]string{true: "closed", false: "open"}[ev.Closed],
		ResolutionSource:  ev.ResolutionSource,
		ResolutionDetails: ev.ResolutionDescription,
		CloseTime:         parseTime(ev.EndDate),
	}
	if strings.HasPrefix(ev.ResolutionSource, "http") {
		norm.SettlementSources = []collectors.ResolutionSource{{Name: ev.ResolutionSource, URL: ev.ResolutionSource}}
	}

	for i := range ev.Markets {
		m := &ev.Markets[i]
		if isPlaceholderMarket(m) || m.Closed || !m.Active {
			continue
		}
		norm.Markets = append(norm.Markets, normalizeMarket(ev, m))
	}
	return norm
}

func normalizeMarket(ev *eventDetail, m *market) collectors.Market {
	price, estimated := topOfBook(m)
	closeTime := parseTime(m.EndDate)
	if closeTime.IsZero() {
		closeTime = parseTime(ev.EndDate)
	}
	out := collectors.Market{
		MarketID:       m.ID,
		Question:       m.Question,
		Subtitle:       m.Description,
		TickSize:       m.MinTickSize,
		CloseTime:      closeTime,
		Volume:         m.VolumeNum,
		Volume24h:      m.Volume24h,
		OpenInterest:   m.OpenInterest,
		Price:          price,
		PriceEstimated: estimated,
		ClobTokenIDs:   parseStringList(m.ClobTokenIds),
	}
	if ev.Slug != "" {
		out.ReferenceURL = "https://polymarket.com/event/" + ev.Slug
	}
	return out
}

// topOfBook reads the YES quotes the listing carries. The NO token mirrors
// YES, so its bid is 1-ask and its ask is 1-bid. Without quotes the outcome
// prices stand in and the snapshot is marked estimated.
func topOfBook(m *market) (collectors.PriceSnapshot, bool) {
	if m.BestBid > 0 && m.BestAsk > 0 && m.BestAsk < 1 {
		return collectors.PriceSnapshot{
			YesBid: m.BestBid,
			YesAsk: m.BestAsk,
			NoBid:  roundPrice(1 - m.BestAsk),
			NoAsk:  roundPrice(1 - m.BestBid),
		}, false
	}
	outcomes := parseStringList(m.OutcomePrices)
	if len(outcomes) >= 2 {
		yes, no := parseDecimal(outcomes[0]), parseDecimal(outcomes[1])
		return collectors.PriceSnapshot{YesAsk: yes, NoAsk: no}, true
	}
	if m.LastTradePrice > 0 && m.LastTradePrice < 1 {
		return collectors.PriceSnapshot{
			YesAsk: m.LastTradePrice,
			NoAsk:  roundPrice(1 - m.LastTradePrice),
		}, true
	}
	return collectors.PriceSnapshot{}, true
}

func roundPrice(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
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

// parseStringList decodes the JSON-encoded string arrays gamma uses for
// token ids and outcome prices.
func parseStringList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func convertClobBook(b clobBook) collectors.Orderbook {
	return collectors.Orderbook{
		Bids: convertLevels(b.Bids),
		Asks: convertLevels(b.Asks),
	}
}

func convertLevels(levels []clobLevel) []collectors.OrderbookLevel {
	out := make([]collectors.OrderbookLevel, 0, len(levels))
	for _, lvl := range levels {
		price := parseDecimal(lvl.Price)
		size := parseDecimal(lvl.Size)
		if size <= 0 {
			continue
		}
		out = append(out, collectors.OrderbookLevel{
			Price:     price,
			Quantity:  size,
			RawPrice:  price,
			RawAmount: size,
		})
	}
	return out
}

func parseDecimal(val string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
	return f
}

var placeholderQuestionRe = regexp.MustCompile(`(?i)^will\s+\w+\s+[a-z]\b`)

func isPlaceholderMarket(m *market) bool {
	if placeholderQuestionRe.MatchString(strings.TrimSpace(m.Question)) {
		return true
	}
	desc := strings.ToLower(m.Description)
	return strings.Contains(desc, "may be updated to replace") || strings.Contains(desc, "placeholder")
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

type eventDetail struct {
	ID                    string   `json:"id"`
	Slug                  string   `json:"slug"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	ResolutionSource      string   `json:"resolutionSource"`
	ResolutionDescription string   `json:"resolutionDescription"`
	Closed                bool     `json:"closed"`
	Category              string   `json:"category"`
	EndDate               string   `json:"endDate"`
	Markets               []market `json:"markets"`
}

type market struct {
	ID             string  `json:"id"`
	Question       string  `json:"question"`
	Description    string  `json:"description"`
	LastTradePrice float64 `json:"lastTradePrice"`
	BestBid        float64 `json:"bestBid"`
	BestAsk        float64 `json:"bestAsk"`
	OutcomePrices  string  `json:"outcomePrices"`
	VolumeNum      float64 `json:"volumeNum"`
	Volume24h      float64 `json:"volume24hr"`
	OpenInterest   float64 `json:"openInterest"`
	ClobTokenIds   string  `json:"clobTokenIds"`
	MinTickSize    float64 `json:"orderPriceMinTickSize"`
	EndDate        string  `json:"endDate"`
	Active         bool    `json:"active"`
	Closed         bool    `json:"closed"`
}

type clobBook struct {
	Bids []clobLevel `json:"bids"`
	Asks []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
