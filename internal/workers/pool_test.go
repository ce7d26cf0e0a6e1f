package workers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/matches"
)

// sliceReader serves its messages then blocks until the context ends.
type sliceReader struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *sliceReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestRunWithDecodesOpportunities(t *testing.T) {
	good, err := json.Marshal(matches.Opportunity{ID: "opp-1", PairID: "p1", GuaranteedProfit: 9.5})
	require.NoError(t, err)

	reader := &sliceReader{msgs: []kafkago.Message{
		{Value: []byte("not json")},
		{Value: good},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var got []*matches.Opportunity
	handler := func(_ context.Context, opp *matches.Opportunity) error {
		got = append(got, opp)
		cancel()
		return nil
	}

	RunWith(ctx, Options{Workers: 1}, func() MessageReader { return reader }, handler)

	require.Len(t, got, 1)
	assert.Equal(t, "opp-1", got[0].ID)
	assert.Equal(t, 9.5, got[0].GuaranteedProfit)
	assert.True(t, reader.closed)
}

func TestRunWithSkipsStaleAndUnpairedOpportunities(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	encode := func(o matches.Opportunity) kafkago.Message {
		b, err := json.Marshal(o)
		require.NoError(t, err)
		return kafkago.Message{Key: []byte(o.PairID), Value: b}
	}
	reader := &sliceReader{msgs: []kafkago.Message{
		encode(matches.Opportunity{ID: "old", PairID: "p1", Timestamp: now.Add(-time.Hour)}),
		encode(matches.Opportunity{ID: "orphan", Timestamp: now}),
		encode(matches.Opportunity{ID: "fresh", PairID: "p2", Timestamp: now.Add(-time.Minute)}),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	handler := func(_ context.Context, opp *matches.Opportunity) error {
		got = append(got, opp.ID)
		cancel()
		return nil
	}

	opts := Options{Workers: 1, MaxAge: 10 * time.Minute, Now: func() time.Time { return now }}
	RunWith(ctx, opts, func() MessageReader { return reader }, handler)

	assert.Equal(t, []string{"fresh"}, got)
}
