package arb

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/crossarb/internal/config"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// KalshiFee is the Kalshi taker fee, ceil(rate * C * P * (1-P)) to the
// cent. Computed in decimal so exact-cent products do not round up a cent.
func KalshiFee(rate float64, contracts int, price float64) float64 {
	if contracts <= 0 || price <= 0 || price >= 1 || rate <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(price)
	raw := decimal.NewFromFloat(rate).
		Mul(decimal.NewFromInt(int64(contracts))).
		Mul(p).
		Mul(one.Sub(p))
	return raw.Mul(hundred).Ceil().Div(hundred).InexactFloat64()
}

// IsIndexTicker reports whether a Kalshi ticker is on the index fee tier.
func IsIndexTicker(fees config.FeesConfig, ticker string) bool {
	upper := strings.ToUpper(ticker)
	for _, prefix := range fees.KalshiIndexPrefixes {
		if prefix != "" && strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			return true
		}
	}
	return false
}

// KalshiRate picks the fee rate for a ticker.
func KalshiRate(fees config.FeesConfig, ticker string) float64 {
	if IsIndexTicker(fees, ticker) {
		return fees.KalshiIndexRate
	}
	return fees.KalshiRate
}

// PolymarketGas is the network cost of one trade of notionalUSD given the
// per-trade base cost in USD.
func PolymarketGas(fees config.FeesConfig, baseUSD, notionalUSD float64) float64 {
	gas := baseUSD
	if fees.PolymarketGasPerThousand > 0 && notionalUSD > 0 {
		gas += notionalUSD / 1000 * fees.PolymarketGasPerThousand
	}
	return gas
}
