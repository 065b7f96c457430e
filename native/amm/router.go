package amm

import (
	"errors"
	"math/big"
	"time"

	"reservecore/crypto"
)

var (
	// ErrExpired indicates the router deadline elapsed before execution.
	ErrExpired = errors.New("amm: transaction deadline expired")
	// ErrSlippage indicates the computed output fell below the caller's bound.
	ErrSlippage = errors.New("amm: insufficient output amount")
	// ErrUnknownPair indicates no pool is registered for the requested tokens.
	ErrUnknownPair = errors.New("amm: pair not registered")
)

// Router fronts the registered pairs with deadline and slippage protection,
// mirroring the periphery contract the reserve engine talks to on-chain.
type Router struct {
	pairs map[string]*Pair
	now   func() time.Time
}

// NewRouter creates an empty router using the wall clock.
func NewRouter() *Router {
	return &Router{pairs: make(map[string]*Pair), now: time.Now}
}

// SetClock overrides the router clock, primarily for deterministic testing.
func (r *Router) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func pairKey(symbolA, symbolB string) string {
	if symbolA < symbolB {
		return symbolA + "-" + symbolB
	}
	return symbolB + "-" + symbolA
}

// Register adds a pair to the routing table.
func (r *Router) Register(pair *Pair) {
	r.pairs[pairKey(pair.Token0(), pair.Token1())] = pair
}

// PairFor returns the registered pool for the two symbols.
func (r *Router) PairFor(symbolA, symbolB string) (*Pair, error) {
	pair, ok := r.pairs[pairKey(symbolA, symbolB)]
	if !ok {
		return nil, ErrUnknownPair
	}
	return pair, nil
}

// SwapExactTokensForTokens swaps an exact input of tokenIn for tokenOut,
// enforcing the caller's minimum output and deadline.
func (r *Router) SwapExactTokensForTokens(caller crypto.Address, tokenIn, tokenOut string, amountIn, minAmountOut *big.Int, deadline time.Time) (*big.Int, error) {
	if !deadline.IsZero() && r.now().After(deadline) {
		return nil, ErrExpired
	}
	pair, err := r.PairFor(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	amountOut, err := pair.SwapExactIn(caller, tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	if minAmountOut != nil && amountOut.Cmp(minAmountOut) < 0 {
		return nil, ErrSlippage
	}
	return amountOut, nil
}

// AddLiquidity deposits both sides into the pool and refreshes the snapshot.
// Share accounting is out of scope for the reserve engine; the pool exists as
// the stabilization venue, not as an LP product.
func (r *Router) AddLiquidity(caller crypto.Address, symbolA, symbolB string, amountA, amountB *big.Int, deadline time.Time) error {
	if !deadline.IsZero() && r.now().After(deadline) {
		return ErrExpired
	}
	pair, err := r.PairFor(symbolA, symbolB)
	if err != nil {
		return err
	}
	ledgerA, _, err := pair.ledgerFor(symbolA)
	if err != nil {
		return err
	}
	ledgerB, _, err := pair.ledgerFor(symbolB)
	if err != nil {
		return err
	}
	if err := ledgerA.Transfer(caller, pair.Address(), amountA); err != nil {
		return err
	}
	if err := ledgerB.Transfer(caller, pair.Address(), amountB); err != nil {
		return err
	}
	return pair.Sync()
}
