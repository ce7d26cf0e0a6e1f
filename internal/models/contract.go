package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
)

const (
	MinPrice = 0.01
	MaxPrice = 0.99
)

// MarketQuote is one side of one contract at one venue, in the shared
// vocabulary every downstream stage uses.
type MarketQuote struct {
	Venue        collectors.Venue `json:"venue"`
	ContractID   string           `json:"contract_id"`
	Question     string           `json:"question"`
	Side         collectors.Side  `json:"side"`
	Bid          float64          `json:"bid"`
	Ask          float64          `json:"ask"`
	Volume24h    float64          `json:"volume_24h"`
	ExpiresAt    time.Time        `json:"expires_at"`
	TimeToExpiry time.Duration    `json:"time_to_expiry"`
	Estimated    bool             `json:"estimated,omitempty"`
}

// Contract is a binary contract with both of its sides quoted.
type Contract struct {
	Venue      collectors.Venue `json:"venue"`
	ContractID string           `json:"contract_id"`
	EventID    string           `json:"event_id"`
	Question   string           `json:"question"`
	EventTitle string           `json:"event_title,omitempty"`
	Category   string           `json:"category,omitempty"`
	Yes        MarketQuote      `json:"yes"`
	No         MarketQuote      `json:"no"`
	TokenIDs   []string         `json:"token_ids,omitempty"`
	Volume24h  float64          `json:"volume_24h"`
	CloseTime  time.Time        `json:"close_time"`

	ResolutionDetails string `json:"resolution_details,omitempty"`
	ResolutionSource  string `json:"resolution_source,omitempty"`
}

// Quote returns the quote for a side.
func (c Contract) Quote(side collectors.Side) MarketQuote {
	if side == collectors.SideNo {
		return c.No
	}
	return c.Yes
}

// BookRef addresses the order book for buying side on this contract.
func (c Contract) BookRef(side collectors.Side) collectors.BookRef {
	ref := collectors.BookRef{Venue: c.Venue, ContractID: c.ContractID, Side: side}
	idx := 0
	if side == collectors.SideNo {
		idx = 1
	}
	if len(c.TokenIDs) > idx {
		ref.TokenID = c.TokenIDs[idx]
	}
	return ref
}

// Key is the venue-qualified contract identifier.
func (c Contract) Key() string {
	return fmt.Sprintf("%s:%s", c.Venue, c.ContractID)
}

// MatchText is the text the matcher scores. Falls back to the event title
// for markets listed without a question.
func (c Contract) MatchText() string {
	if q := strings.TrimSpace(c.Question); q != "" {
		return q
	}
	return strings.TrimSpace(c.EventTitle)
}

// HoursToExpiry returns the hours left at now, or zero when unknown.
func (c Contract) HoursToExpiry(now time.Time) float64 {
	if c.CloseTime.IsZero() {
		return 0
	}
	return c.CloseTime.Sub(now).Hours()
}
