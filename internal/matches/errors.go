package matches

import (
	"errors"
	"fmt"
)

var (
	// ErrMatching marks a pair that could not be scored. The pair is dropped.
	ErrMatching = errors.New("matching failed")
	// ErrQuoteUnavailable marks a volume point that could not be costed.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrInsufficientDepth is a QuoteUnavailable: the book cannot fill the size.
	ErrInsufficientDepth = fmt.Errorf("%w: insufficient order book depth", ErrQuoteUnavailable)
	// ErrNoOrderbook means the venue has no book for the contract; the
	// estimator falls back to its curves.
	ErrNoOrderbook = errors.New("no order book available")
	// ErrBudgetExhausted means the cycle's order-book call budget is spent.
	ErrBudgetExhausted = errors.New("order book call budget exhausted")
)
