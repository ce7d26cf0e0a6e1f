package collectors

import (
	"context"
	"strings"
	"time"
)

// Venue identifies the platform a market/event belongs to.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// Side is one outcome of a binary contract.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Complement returns the opposite outcome.
func (s Side) Complement() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// FetchOptions control how many pages/items a collector should fetch per scan.
type FetchOptions struct {
	Pages    int
	PageSize int
}

// Collector is implemented by venue-specific collectors (Polymarket, Kalshi, ...).
// Each collector is responsible for fetching, normalizing, and returning events
// that fit the FetchOptions constraints. Listing never touches order books.
type Collector interface {
	Name() string
	Venue() Venue
	Fetch(ctx context.Context, opts FetchOptions) ([]Event, error)
}

// BookFetcher returns live order books for one contract (or token).
type BookFetcher interface {
	FetchOrderbook(ctx context.Context, ref BookRef) (BookSet, error)
}

// Event represents a normalized event that may contain multiple markets/outcomes.
type Event struct {
	Venue             Venue              `json:"venue"`
	EventID           string             `json:"event_id"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	Category          string             `json:"category,omitempty"`
	Status            string             `json:"status,omitempty"`
	ResolutionSource  string             `json:"resolution_source,omitempty"`
	ResolutionDetails string             `json:"resolution_details,omitempty"`
	SettlementSources []ResolutionSource `json:"settlement_sources,omitempty"`
	CloseTime         time.Time          `json:"close_time"`
	Markets           []Market           `json:"markets,omitempty"`
}

// Market is a normalized market belonging to an event.
type Market struct {
	MarketID     string        `json:"market_id"`
	Question     string        `json:"question"`
	Subtitle     string        `json:"subtitle,omitempty"`
	TickSize     float64       `json:"tick_size"`
	CloseTime    time.Time     `json:"close_time"`
	Volume       float64       `json:"volume"`
	Volume24h    float64       `json:"volume_24h"`
	OpenInterest float64       `json:"open_interest"`
	Price        PriceSnapshot `json:"price"`
	// PriceEstimated is set when top of book was derived from a mid/last
	// price rather than live bids and asks.
	PriceEstimated bool     `json:"price_estimated,omitempty"`
	ClobTokenIDs   []string `json:"clob_token_ids,omitempty"` // Polymarket-specific, [YES, NO]
	ReferenceURL   string   `json:"reference_url,omitempty"`
}

// TokenID returns the on-chain token for a side, if the venue uses tokens.
func (m Market) TokenID(side Side) string {
	idx := 0
	if side == SideNo {
		idx = 1
	}
	if len(m.ClobTokenIDs) <= idx {
		return ""
	}
	return m.ClobTokenIDs[idx]
}

// PriceSnapshot captures top-of-book values for YES/NO.
type PriceSnapshot struct {
	YesBid float64 `json:"yes_bid"`
	YesAsk float64 `json:"yes_ask"`
	NoBid  float64 `json:"no_bid"`
	NoAsk  float64 `json:"no_ask"`
}

// Orderbook stores depth levels for an outcome.
type Orderbook struct {
	Bids []OrderbookLevel `json:"bids,omitempty"`
	Asks []OrderbookLevel `json:"asks,omitempty"`
}

// Empty reports whether there is nothing to buy.
func (o Orderbook) Empty() bool {
	return len(o.Asks) == 0
}

// OrderbookLevel is a single price/quantity pair.
type OrderbookLevel struct {
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	RawPrice  float64 `json:"raw_price"`  // some venues report ints/cents; RawPrice preserves the original value
	RawAmount float64 `json:"raw_amount"` // same for size/quantity
}

// BookSet holds the books returned by one fetch, keyed by side. Kalshi
// returns both sides of a ticker; Polymarket returns the requested token.
type BookSet map[Side]Orderbook

// BookRef addresses the book for one leg of a trade.
type BookRef struct {
	Venue      Venue
	ContractID string
	TokenID    string
	Side       Side
}

// CacheKey identifies the fetch that serves this ref: the token when the
// venue uses per-outcome tokens, otherwise the contract.
func (r BookRef) CacheKey() string {
	id := r.ContractID
	if r.TokenID != "" {
		id = r.TokenID
	}
	return string(r.Venue) + ":" + id
}

// ResolutionSource describes a named source (e.g., source + URL).
type ResolutionSource struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ParseVenue maps a venue name to a Venue.
func ParseVenue(raw string) (Venue, bool) {
	switch Venue(strings.ToLower(strings.TrimSpace(raw))) {
	case VenueKalshi:
		return VenueKalshi, true
	case VenuePolymarket:
		return VenuePolymarket, true
	default:
		return "", false
	}
}
