package kafka

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{DefaultBroker}, Brokers(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, Brokers(" a:9092, ,b:9092 "))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, DefaultOpportunityTopic, Topic(" ", DefaultOpportunityTopic))
	assert.Equal(t, "custom", Topic("custom", DefaultOpportunityTopic))
}

func TestWaitForBrokerNeedsBrokers(t *testing.T) {
	assert.ErrorIs(t, WaitForBroker(context.Background(), nil), errNoBrokers)
	assert.ErrorIs(t, EnsureTopics(context.Background(), nil, DefaultOpportunityTopic), errNoBrokers)
}

func TestWaitForBrokerGivesUpWithContext(t *testing.T) {
	// a listener that is closed straight away leaves a port nothing answers on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = WaitForBroker(ctx, []string{addr})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), addr)
}
