package collectors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCollector struct {
	venue  Venue
	events []Event
	err    error
	opts   FetchOptions
}

func (s *stubCollector) Name() string {
	return string(s.venue)
}

func (s *stubCollector) Venue() Venue {
	return s.venue
}

func (s *stubCollector) Fetch(_ context.Context, opts FetchOptions) ([]Event, error) {
	s.opts = opts
	return s.events, s.err
}

func TestFetchAllKeepsCollectorOrder(t *testing.T) {
	a := &stubCollector{venue: VenueKalshi, events: []Event{{EventID: "KXFED"}}}
	b := &stubCollector{venue: VenuePolymarket, events: []Event{{EventID: "fed"}, {EventID: "cpi"}}}

	listings, err := FetchAll(context.Background(), FetchOptions{Pages: 2, PageSize: 50}, a, b)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, VenueKalshi, listings[0].Venue)
	assert.Len(t, listings[0].Events, 1)
	assert.Equal(t, VenuePolymarket, listings[1].Venue)
	assert.Len(t, listings[1].Events, 2)
	assert.Equal(t, 50, a.opts.PageSize)
	assert.Equal(t, 2, b.opts.Pages)
}

func TestFetchAllFailsWhenOneVenueFails(t *testing.T) {
	boom := errors.New("503")
	a := &stubCollector{venue: VenueKalshi}
	b := &stubCollector{venue: VenuePolymarket, err: boom}

	_, err := FetchAll(context.Background(), FetchOptions{}, a, b)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "polymarket fetch")
}

func TestParseVenue(t *testing.T) {
	v, ok := ParseVenue(" Kalshi ")
	assert.True(t, ok)
	assert.Equal(t, VenueKalshi, v)

	_, ok = ParseVenue("betfair")
	assert.False(t, ok)
}
