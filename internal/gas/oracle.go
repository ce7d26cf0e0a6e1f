package gas

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hetulpatel/crossarb/internal/logging"
)

// Oracle estimates the USD cost of settling one on-chain trade.
type Oracle interface {
	GasUSD(ctx context.Context) (float64, error)
}

// Fixed always returns the same cost.
type Fixed float64

func (f Fixed) GasUSD(context.Context) (float64, error) {
	return float64(f), nil
}

// GasPricer is the part of *ethclient.Client the chain oracle uses.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// ChainConfig parameterizes ChainOracle.
type ChainConfig struct {
	GasLimit  uint64
	NativeUSD float64
	MaxUSD    float64
	// Fallback is returned when the node cannot be reached.
	Fallback float64
	// MaxAge reuses the last reading for this long.
	MaxAge time.Duration
}

// ChainOracle prices gas from the node's suggested gas price.
type ChainOracle struct {
	pricer GasPricer
	cfg    ChainConfig

	mu     sync.Mutex
	last   float64
	readAt time.Time
	now    func() time.Time
}

// Dial connects to an RPC endpoint and returns a chain-backed oracle.
func Dial(ctx context.Context, rpcURL string, cfg ChainConfig) (*ChainOracle, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return NewChainOracle(ec, cfg), nil
}

func NewChainOracle(pricer GasPricer, cfg ChainConfig) *ChainOracle {
	return &ChainOracle{pricer: pricer, cfg: cfg, now: time.Now}
}

// GasUSD returns gasLimit * gasPrice in USD, capped at MaxUSD. Node errors
// fall back to the configured fallback and are logged, not returned.
func (o *ChainOracle) GasUSD(ctx context.Context) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cfg.MaxAge > 0 && !o.readAt.IsZero() && o.now().Sub(o.readAt) < o.cfg.MaxAge {
		return o.last, nil
	}

	price, err := o.pricer.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		logging.Warnf("[gas] suggest gas price failed, using fallback %.2f: %v", o.cfg.Fallback, err)
		return o.cfg.Fallback, nil
	}
	wei := new(big.Int).Mul(price, new(big.Int).SetUint64(o.cfg.GasLimit))
	usd := weiToUSD(wei, o.cfg.NativeUSD)
	if o.cfg.MaxUSD > 0 {
		usd = math.Min(usd, o.cfg.MaxUSD)
	}
	o.last, o.readAt = usd, o.now()
	logging.Debugf("[gas] price=%s wei limit=%d cost=%.4f USD", price, o.cfg.GasLimit, usd)
	return usd, nil
}

func weiToUSD(wei *big.Int, nativeUSD float64) float64 {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	f.Mul(f, big.NewFloat(nativeUSD))
	out, _ := f.Float64()
	return out
}
