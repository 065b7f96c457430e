package amm

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reservecore/core/state"
	"reservecore/crypto"
	"reservecore/native/token"
	"reservecore/storage"
)

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.ReservePrefix, raw)
}

func wei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fixture struct {
	pair   *Pair
	router *Router
	pegged *token.Ledger
	stable *token.Ledger
	trader crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	pegged := token.NewLedger(manager, "PEG")
	stable := token.NewLedger(manager, "USDR")

	minter := testAddr(1)
	trader := testAddr(2)
	require.NoError(t, pegged.SetAuthority(minter, minter))
	require.NoError(t, stable.SetAuthority(minter, minter))
	require.NoError(t, pegged.Mint(minter, trader, wei(1_000_000)))
	require.NoError(t, stable.Mint(minter, trader, wei(1_000_000)))

	pair := NewPair(manager, testAddr(9), pegged, stable)
	router := NewRouter()
	router.Register(pair)
	return &fixture{pair: pair, router: router, pegged: pegged, stable: stable, trader: trader}
}

func TestSyncTracksDonations(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.pegged.Transfer(f.trader, f.pair.Address(), wei(1000)))
	require.NoError(t, f.stable.Transfer(f.trader, f.pair.Address(), wei(1000)))

	reserve0, reserve1, err := f.pair.Reserves()
	require.NoError(t, err)
	require.Zero(t, reserve0.Sign())
	require.Zero(t, reserve1.Sign())

	require.NoError(t, f.pair.Sync())
	reserve0, reserve1, err = f.pair.Reserves()
	require.NoError(t, err)
	require.Equal(t, wei(1000), reserve0)
	require.Equal(t, wei(1000), reserve1)
}

func TestSwapExactInMovesPrice(t *testing.T) {
	f := newFixture(t)
	deadline := time.Now().Add(time.Minute)
	require.NoError(t, f.router.AddLiquidity(f.trader, "PEG", "USDR", wei(1000), wei(1000), deadline))

	out, err := f.router.SwapExactTokensForTokens(f.trader, "PEG", "USDR", wei(10), big.NewInt(0), deadline)
	require.NoError(t, err)
	// 10 in against 1000/1000 with the 30 bps fee pays just under 9.9 out.
	require.True(t, out.Cmp(wei(9)) > 0 && out.Cmp(wei(10)) < 0, "out = %s", out)

	peggedReserve, err := f.pair.ReserveOf("PEG")
	require.NoError(t, err)
	stableReserve, err := f.pair.ReserveOf("USDR")
	require.NoError(t, err)
	require.Equal(t, wei(1010), peggedReserve)
	require.Equal(t, new(big.Int).Sub(wei(1000), out), stableReserve)
}

func TestRouterDeadline(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Minute)
	_, err := f.router.SwapExactTokensForTokens(f.trader, "PEG", "USDR", wei(1), nil, past)
	require.ErrorIs(t, err, ErrExpired)
}

func TestRouterSlippageBound(t *testing.T) {
	f := newFixture(t)
	deadline := time.Now().Add(time.Minute)
	require.NoError(t, f.router.AddLiquidity(f.trader, "PEG", "USDR", wei(1000), wei(1000), deadline))

	_, err := f.router.SwapExactTokensForTokens(f.trader, "PEG", "USDR", wei(10), wei(10), deadline)
	require.ErrorIs(t, err, ErrSlippage)
}

func TestSwapAgainstEmptyPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.pair.SwapExactIn(f.trader, "PEG", wei(1))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}
