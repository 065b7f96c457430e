package amm

import (
	"errors"
	"math/big"

	"reservecore/crypto"
	"reservecore/native/token"
)

var (
	// ErrInsufficientLiquidity indicates the pair has no reserves on one side.
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")
	// ErrInvalidAmount indicates a zero or negative swap amount.
	ErrInvalidAmount = errors.New("amm: amount must be positive")
	// ErrUnknownToken indicates the symbol is not one of the pair's two tokens.
	ErrUnknownToken = errors.New("amm: token not in pair")
)

// Storage abstracts the subset of state manager functionality required by the
// pair bookkeeping.
type Storage interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
}

type storedReserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Pair is a constant-product pool over two token ledgers. The pool's holdings
// live in the token ledgers under the pair's own account address; Reserves is
// the snapshot last written by Sync or a swap, mirroring how an on-chain pair
// tracks balances separately from its reserve variables.
type Pair struct {
	store   Storage
	address crypto.Address
	token0  *token.Ledger
	token1  *token.Ledger
}

// NewPair binds a pool account address to its two ledgers. Token ordering is
// fixed by the caller and preserved in Reserves.
func NewPair(store Storage, address crypto.Address, token0, token1 *token.Ledger) *Pair {
	return &Pair{store: store, address: address, token0: token0, token1: token1}
}

// Address returns the pool's account address.
func (p *Pair) Address() crypto.Address { return p.address }

// Token0 returns the symbol of the first token in pair order.
func (p *Pair) Token0() string { return p.token0.Symbol() }

// Token1 returns the symbol of the second token in pair order.
func (p *Pair) Token1() string { return p.token1.Symbol() }

func (p *Pair) reservesKey() []byte {
	return []byte("amm/pair/" + p.token0.Symbol() + "-" + p.token1.Symbol() + "/reserves")
}

// Reserves returns the tracked reserve snapshot in pair token order.
func (p *Pair) Reserves() (*big.Int, *big.Int, error) {
	var stored storedReserves
	ok, err := p.store.KVGet(p.reservesKey(), &stored)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return big.NewInt(0), big.NewInt(0), nil
	}
	return stored.Reserve0, stored.Reserve1, nil
}

// ReserveOf returns the tracked reserve for the given symbol.
func (p *Pair) ReserveOf(symbol string) (*big.Int, error) {
	reserve0, reserve1, err := p.Reserves()
	if err != nil {
		return nil, err
	}
	switch symbol {
	case p.token0.Symbol():
		return reserve0, nil
	case p.token1.Symbol():
		return reserve1, nil
	}
	return nil, ErrUnknownToken
}

// Sync reconciles the reserve snapshot with the pool's actual ledger balances.
// Anyone may donate tokens to the pool address and call Sync to move the spot
// price, which is exactly how the stabilization tests perturb the market.
func (p *Pair) Sync() error {
	balance0, err := p.token0.BalanceOf(p.address)
	if err != nil {
		return err
	}
	balance1, err := p.token1.BalanceOf(p.address)
	if err != nil {
		return err
	}
	return p.store.KVPut(p.reservesKey(), &storedReserves{Reserve0: balance0, Reserve1: balance1})
}

func (p *Pair) ledgerFor(symbol string) (*token.Ledger, *token.Ledger, error) {
	switch symbol {
	case p.token0.Symbol():
		return p.token0, p.token1, nil
	case p.token1.Symbol():
		return p.token1, p.token0, nil
	}
	return nil, nil, ErrUnknownToken
}

// quoteOut prices an exact-input swap with the 30 bps pool fee.
func quoteOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	denominator.Add(denominator, amountInWithFee)
	return numerator.Quo(numerator, denominator), nil
}

// SwapExactIn moves amountIn of tokenIn from the caller into the pool and pays
// the constant-product output back to the caller, then refreshes the reserve
// snapshot. The caller identity is trusted; within one atomic reserve
// operation the engine moves its own funds directly.
func (p *Pair) SwapExactIn(caller crypto.Address, tokenInSymbol string, amountIn *big.Int) (*big.Int, error) {
	ledgerIn, ledgerOut, err := p.ledgerFor(tokenInSymbol)
	if err != nil {
		return nil, err
	}
	reserveIn, err := p.ReserveOf(ledgerIn.Symbol())
	if err != nil {
		return nil, err
	}
	reserveOut, err := p.ReserveOf(ledgerOut.Symbol())
	if err != nil {
		return nil, err
	}
	amountOut, err := quoteOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if amountOut.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	if err := ledgerIn.Transfer(caller, p.address, amountIn); err != nil {
		return nil, err
	}
	if err := ledgerOut.Transfer(p.address, caller, amountOut); err != nil {
		return nil, err
	}
	if err := p.Sync(); err != nil {
		return nil, err
	}
	return amountOut, nil
}
