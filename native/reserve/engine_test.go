package reserve

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reservecore/core/state"
	"reservecore/crypto"
	"reservecore/native/amm"
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

func mustBig(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

type env struct {
	t       *testing.T
	manager *state.Manager
	engine  *Engine
	router  *amm.Router
	pair    *amm.Pair

	reserveTok *token.Ledger
	peggedTok  *token.Ledger
	paymentTok *token.Ledger

	owner  crypto.Address
	module crypto.Address
	buyer  crypto.Address

	now time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())

	e := &env{
		t:          t,
		manager:    manager,
		reserveTok: token.NewLedger(manager, "RSV"),
		peggedTok:  token.NewLedger(manager, "PEG"),
		paymentTok: token.NewLedger(manager, "USDR"),
		owner:      testAddr(0x01),
		module:     testAddr(0xAA),
		buyer:      testAddr(0x02),
		now:        time.Unix(1_700_000_000, 0).UTC(),
	}

	// Seed the treasury with curve inventory and the buyer with payment funds.
	require.NoError(t, e.reserveTok.SetAuthority(e.owner, e.owner))
	require.NoError(t, e.reserveTok.Mint(e.owner, e.module, wei(4_000_000_000)))
	require.NoError(t, e.peggedTok.SetAuthority(e.module, e.module))
	require.NoError(t, e.paymentTok.SetAuthority(e.owner, e.owner))
	require.NoError(t, e.paymentTok.Mint(e.owner, e.buyer, wei(1_000_000)))

	e.engine = NewEngine(e.module, e.reserveTok, e.peggedTok, e.paymentTok)
	e.engine.SetState(manager)
	e.engine.SetNowFunc(func() time.Time { return e.now })
	require.NoError(t, e.engine.InitializeOwner(e.owner))

	require.NoError(t, e.engine.SetInitialSoldAndCost(e.owner, big.NewInt(0), big.NewInt(0)))
	require.NoError(t, e.engine.SetInitialPrice(e.owner, mustBig("100000000000000000")))

	// Blanket approvals so individual tests focus on engine semantics.
	require.NoError(t, e.paymentTok.Approve(e.buyer, e.module, wei(1_000_000)))
	require.NoError(t, e.reserveTok.Approve(e.buyer, e.module, wei(4_000_000_000)))
	require.NoError(t, e.peggedTok.Approve(e.buyer, e.module, wei(1_000_000)))
	return e
}

func (e *env) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *env) deadline() time.Time {
	return e.now.Add(time.Minute)
}

// withPool wires the pegged/payment pool and the router, funds the buyer with
// pegged tokens, and seeds the requested liquidity.
func (e *env) withPool(peggedLiquidity, paymentLiquidity *big.Int) {
	e.t.Helper()
	e.pair = amm.NewPair(e.manager, testAddr(0x0B), e.peggedTok, e.paymentTok)
	e.router = amm.NewRouter()
	e.router.SetClock(func() time.Time { return e.now })
	e.router.Register(e.pair)
	require.NoError(e.t, e.engine.SetRouter(e.owner, e.router))
	require.NoError(e.t, e.engine.SetPair(e.owner, e.pair))

	require.NoError(e.t, e.peggedTok.Mint(e.module, e.buyer, new(big.Int).Mul(peggedLiquidity, big.NewInt(2))))
	require.NoError(e.t, e.router.AddLiquidity(e.buyer, "PEG", "USDR", peggedLiquidity, paymentLiquidity, e.deadline()))
}
