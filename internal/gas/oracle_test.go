package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPricer struct {
	price *big.Int
	err   error
	calls int
}

func (s *stubPricer) SuggestGasPrice(context.Context) (*big.Int, error) {
	s.calls++
	return s.price, s.err
}

func TestFixed(t *testing.T) {
	v, err := Fixed(2).GasUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestChainOracleConvertsWei(t *testing.T) {
	// 50 gwei * 200k gas = 0.01 native; at $0.50 that is $0.005.
	p := &stubPricer{price: big.NewInt(50_000_000_000)}
	o := NewChainOracle(p, ChainConfig{GasLimit: 200_000, NativeUSD: 0.5, MaxUSD: 10})

	v, err := o.GasUSD(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.005, v, 1e-12)
}

func TestChainOracleCapsAndFallsBack(t *testing.T) {
	p := &stubPricer{price: big.NewInt(1_000_000_000_000)}
	o := NewChainOracle(p, ChainConfig{GasLimit: 1_000_000, NativeUSD: 3000, MaxUSD: 10, Fallback: 2})

	v, err := o.GasUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	p.err = errors.New("connection refused")
	v, err = o.GasUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestChainOracleReusesFreshReading(t *testing.T) {
	p := &stubPricer{price: big.NewInt(50_000_000_000)}
	o := NewChainOracle(p, ChainConfig{GasLimit: 200_000, NativeUSD: 0.5, MaxAge: time.Minute})
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	_, _ = o.GasUSD(context.Background())
	_, _ = o.GasUSD(context.Background())
	assert.Equal(t, 1, p.calls)

	now = now.Add(2 * time.Minute)
	_, _ = o.GasUSD(context.Background())
	assert.Equal(t, 2, p.calls)
}
