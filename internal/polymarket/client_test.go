package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/matches"
)

const eventsJSON = `[
  {"id": "101", "slug": "cpi-sep", "title": "September CPI", "category": "Economics", "endDate": "2025-10-15T00:00:00Z",
   "resolutionSource": "https://www.bls.gov/cpi/",
   "markets": [
     {"id": "m1", "question": "Will CPI be above 3.0% in September 2025?", "active": true,
      "bestBid": 0.60, "bestAsk": 0.62, "volumeNum": 8000, "volume24hr": 900,
      "clobTokenIds": "[\"tok-yes\", \"tok-no\"]", "orderPriceMinTickSize": 0.01},
     {"id": "m2", "question": "Will CPI be above 3.5% in September 2025?", "active": true,
      "outcomePrices": "[\"0.12\", \"0.88\"]", "clobTokenIds": "[\"y2\", \"n2\"]"},
     {"id": "m3", "question": "Will Person A win?", "active": true},
     {"id": "m4", "question": "Closed market", "active": true, "closed": true}
   ]},
  {"id": "102", "title": "Closed event", "closed": true, "markets": [{"id": "x", "question": "q", "active": true}]}
]`

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{BaseURL: srv.URL + "/events", BookURL: srv.URL + "/book", RetryBackoff: time.Millisecond})
}

func TestFetchNormalizesNestedMarkets(t *testing.T) {
	var (
		mu      sync.Mutex
		offsets []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		off, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		mu.Lock()
		offsets = append(offsets, off)
		mu.Unlock()
		if off > 0 {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(eventsJSON))
	}))
	defer srv.Close()

	events, err := newTestClient(srv).Fetch(context.Background(), collectors.FetchOptions{Pages: 3, PageSize: 2})
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []int{0, 2}, offsets)
	mu.Unlock()
	require.Len(t, events, 1)

	ev := events[0]
	require.Len(t, ev.Markets, 2)

	live := ev.Markets[0]
	assert.False(t, live.PriceEstimated)
	assert.InDelta(t, 0.62, live.Price.YesAsk, 1e-9)
	assert.InDelta(t, 0.40, live.Price.NoAsk, 1e-9)
	assert.InDelta(t, 0.38, live.Price.NoBid, 1e-9)
	assert.Equal(t, []string{"tok-yes", "tok-no"}, live.ClobTokenIDs)
	assert.Equal(t, "tok-no", live.TokenID(collectors.SideNo))
	assert.Equal(t, "https://polymarket.com/event/cpi-sep", live.ReferenceURL)
	assert.Equal(t, time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC), live.CloseTime)

	derived := ev.Markets[1]
	assert.True(t, derived.PriceEstimated)
	assert.InDelta(t, 0.12, derived.Price.YesAsk, 1e-9)
	assert.InDelta(t, 0.88, derived.Price.NoAsk, 1e-9)
}

func TestFetchOrderbookByToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-no", r.URL.Query().Get("token_id"))
		w.Write([]byte(`{"bids": [{"price": "0.38", "size": "100"}], "asks": [{"price": "0.41", "size": "50"}, {"price": "0.40", "size": "120"}, {"price": "0.45", "size": "0"}]}`))
	}))
	defer srv.Close()

	set, err := newTestClient(srv).FetchOrderbook(context.Background(), collectors.BookRef{
		Venue: collectors.VenuePolymarket, ContractID: "m1", TokenID: "tok-no", Side: collectors.SideNo,
	})
	require.NoError(t, err)
	require.Len(t, set, 1)
	book := set[collectors.SideNo]
	require.Len(t, book.Asks, 2)
	assert.InDelta(t, 0.41, book.Asks[0].Price, 1e-9)
	assert.InDelta(t, 120, book.Asks[1].Quantity, 1e-9)
}

func TestFetchOrderbookMissing(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"No orderbook exists for the requested token id"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.FetchOrderbook(context.Background(), collectors.BookRef{TokenID: "dead"})
	assert.ErrorIs(t, err, matches.ErrNoOrderbook)
	assert.EqualValues(t, 1, calls.Load())

	_, err = c.FetchOrderbook(context.Background(), collectors.BookRef{ContractID: "m1"})
	assert.ErrorIs(t, err, matches.ErrNoOrderbook)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Fetch(context.Background(), collectors.FetchOptions{})
	require.Error(t, err)
	assert.EqualValues(t, maxAttempts, calls.Load())
}

func TestIsPlaceholderMarket(t *testing.T) {
	assert.True(t, isPlaceholderMarket(&market{Question: "Will Person B win the election?"}))
	assert.True(t, isPlaceholderMarket(&market{Question: "Will X happen?", Description: "This market may be updated to replace"}))
	assert.False(t, isPlaceholderMarket(&market{Question: "Will Bitcoin reach $150k in 2025?"}))
}
