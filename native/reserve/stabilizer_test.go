package reserve

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reservecore/native/amm"
)

func TestSpotPriceFromPool(t *testing.T) {
	e := newEnv(t)
	e.withPool(wei(1_000), wei(1_031))

	spot, err := e.engine.SpotPrice()
	require.NoError(t, err)
	require.Equal(t, mustBig("1031000000000000000"), spot)
}

func TestSpotPriceWithoutPool(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.SpotPrice()
	require.ErrorIs(t, err, ErrNotConfigured)
	require.ErrorIs(t, e.engine.Inflate(e.deadline()), ErrNotConfigured)
	require.ErrorIs(t, e.engine.Deflate(e.deadline()), ErrNotConfigured)
}

func TestStabilizerIdleInsideBand(t *testing.T) {
	e := newEnv(t)
	e.withPool(wei(1_000), wei(1_000))

	inTarget, err := e.engine.IsInTargetPrice()
	require.NoError(t, err)
	require.True(t, inTarget)

	canInflate, err := e.engine.CanInflate()
	require.NoError(t, err)
	require.False(t, canInflate)

	canDeflate, err := e.engine.CanDeflate()
	require.NoError(t, err)
	require.False(t, canDeflate)

	require.ErrorIs(t, e.engine.Inflate(e.deadline()), ErrNotReadyToInflate)
	require.ErrorIs(t, e.engine.Deflate(e.deadline()), ErrNotReadyToDeflate)
}

func TestInflatePushesPriceDown(t *testing.T) {
	e := newEnv(t)
	e.withPool(wei(1_000), wei(1_000))

	// Donating payment tokens to the pool and syncing lifts the spot price
	// above the upper trigger.
	require.NoError(t, e.paymentTok.Mint(e.owner, e.pair.Address(), wei(100)))
	require.NoError(t, e.pair.Sync())

	spotBefore, err := e.engine.SpotPrice()
	require.NoError(t, err)
	require.Equal(t, mustBig("1100000000000000000"), spotBefore)

	canInflate, err := e.engine.CanInflate()
	require.NoError(t, err)
	require.True(t, canInflate)

	supplyBefore, err := e.peggedTok.TotalSupply()
	require.NoError(t, err)

	require.NoError(t, e.engine.Inflate(e.deadline()))

	spotAfter, err := e.engine.SpotPrice()
	require.NoError(t, err)
	require.True(t, spotAfter.Cmp(spotBefore) < 0, "inflate must lower the spot price")

	// One step of pegged supply was minted and sold into the pool.
	supplyAfter, err := e.peggedTok.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, wei(10), new(big.Int).Sub(supplyAfter, supplyBefore))

	// The proceeds landed in the treasury.
	proceeds, err := e.paymentTok.BalanceOf(e.module)
	require.NoError(t, err)
	require.True(t, proceeds.Sign() > 0)
}

func TestInflateCooldown(t *testing.T) {
	e := newEnv(t)
	e.withPool(wei(1_000), wei(1_000))
	require.NoError(t, e.paymentTok.Mint(e.owner, e.pair.Address(), wei(100)))
	require.NoError(t, e.pair.Sync())

	require.NoError(t, e.engine.Inflate(e.deadline()))

	// Still above the trigger, but the cooldown is armed.
	require.ErrorIs(t, e.engine.Inflate(e.deadline()), ErrNotReadyToInflate)

	state, err := e.engine.Cooldowns()
	require.NoError(t, err)
	require.Equal(t, uint64(e.now.Unix())+60, state.InflateReadyAt)

	e.advance(61 * time.Second)
	require.NoError(t, e.engine.Inflate(e.deadline()))
}

func TestInflateConvergesIntoTargetBand(t *testing.T) {
	e := newEnv(t)
	e.withPool(wei(1_000), wei(1_000))
	require.NoError(t, e.paymentTok.Mint(e.owner, e.pair.Address(), wei(100)))
	require.NoError(t, e.pair.Sync())

	config, err := e.engine.StabilizationConfig()
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		ready, err := e.engine.CanInflate()
		require.NoError(t, err)
		if !ready {
			break
		}
		require.NoError(t, e.engine.Inflate(e.deadline()))
		e.advance(61 * time.Second)
	}

	spot, err := e.engine.SpotPrice()
	require.NoError(t, err)
	require.True(t, spot.Cmp(config.UpperTrigger) <= 0, "repeated inflation must settle below the trigger")

	inTarget, err := e.engine.IsInTargetPrice()
	require.NoError(t, err)
	require.True(t, inTarget, "repeated inflation must settle inside the target band, got spot %s", spot)
}

func TestInflateUnwindsMintWhenSaleFails(t *testing.T) {
	e := newEnv(t)
	// A pool this shallow quotes zero output for a one-wei step, so the sale
	// fails after the step has been minted.
	e.withPool(wei(1_000), mustBig("1002000000000000000000"))

	config := defaultStabilizationConfig()
	config.LowerTrigger = mustBig("900000000000000000")
	config.UpperTrigger = mustBig("1001000000000000000")
	config.InflateStep = big.NewInt(1)
	require.NoError(t, e.engine.SetStabilizationConfig(e.owner, config))

	ready, err := e.engine.CanInflate()
	require.NoError(t, err)
	require.True(t, ready)

	supplyBefore, err := e.peggedTok.TotalSupply()
	require.NoError(t, err)
	reserveBefore, err := e.pair.ReserveOf("USDR")
	require.NoError(t, err)

	require.ErrorIs(t, e.engine.Inflate(e.deadline()), amm.ErrInsufficientLiquidity)

	// The minted step was burned back; no supply, pool, or cooldown change.
	supplyAfter, err := e.peggedTok.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, supplyBefore, supplyAfter)

	reserveAfter, err := e.pair.ReserveOf("USDR")
	require.NoError(t, err)
	require.Equal(t, reserveBefore, reserveAfter)

	state, err := e.engine.Cooldowns()
	require.NoError(t, err)
	require.Equal(t, uint64(0), state.InflateReadyAt)
}

func TestDeflatePushesPriceUp(t *testing.T) {
	e := newEnv(t)
	e.withPool(wei(1_000), wei(1_000))

	// Donating pegged tokens depresses the spot price below the lower trigger.
	require.NoError(t, e.peggedTok.Mint(e.module, e.pair.Address(), wei(100)))
	require.NoError(t, e.pair.Sync())

	// Fund the treasury's buyback budget.
	require.NoError(t, e.paymentTok.Mint(e.owner, e.module, wei(1_000)))

	spotBefore, err := e.engine.SpotPrice()
	require.NoError(t, err)
	require.True(t, spotBefore.Cmp(mustBig("970000000000000000")) < 0)

	canDeflate, err := e.engine.CanDeflate()
	require.NoError(t, err)
	require.True(t, canDeflate)

	supplyBefore, err := e.peggedTok.TotalSupply()
	require.NoError(t, err)

	require.NoError(t, e.engine.Deflate(e.deadline()))

	spotAfter, err := e.engine.SpotPrice()
	require.NoError(t, err)
	require.True(t, spotAfter.Cmp(spotBefore) > 0, "deflate must raise the spot price")

	// The bought-back pegged supply was burned.
	supplyAfter, err := e.peggedTok.TotalSupply()
	require.NoError(t, err)
	require.True(t, supplyAfter.Cmp(supplyBefore) < 0)

	// Exactly one step of payment tokens left the treasury.
	budget, err := e.paymentTok.BalanceOf(e.module)
	require.NoError(t, err)
	require.Equal(t, wei(990), budget)
}

func TestDeflateCooldown(t *testing.T) {
	e := newEnv(t)
	e.withPool(wei(1_000), wei(1_000))
	require.NoError(t, e.peggedTok.Mint(e.module, e.pair.Address(), wei(100)))
	require.NoError(t, e.pair.Sync())
	require.NoError(t, e.paymentTok.Mint(e.owner, e.module, wei(1_000)))

	require.NoError(t, e.engine.Deflate(e.deadline()))
	require.ErrorIs(t, e.engine.Deflate(e.deadline()), ErrNotReadyToDeflate)

	// The inflate direction is not affected by the deflate cooldown.
	state, err := e.engine.Cooldowns()
	require.NoError(t, err)
	require.Equal(t, uint64(0), state.InflateReadyAt)
	require.Equal(t, uint64(e.now.Unix())+60, state.DeflateReadyAt)

	e.advance(61 * time.Second)
	require.NoError(t, e.engine.Deflate(e.deadline()))
}

func TestStabilizationConfigValidation(t *testing.T) {
	e := newEnv(t)

	config := defaultStabilizationConfig()
	config.LowerTrigger = config.UpperTrigger
	require.ErrorIs(t, e.engine.SetStabilizationConfig(e.owner, config), ErrInvalidAmount)

	config = defaultStabilizationConfig()
	config.InflateStep = big.NewInt(0)
	require.ErrorIs(t, e.engine.SetStabilizationConfig(e.owner, config), ErrInvalidAmount)

	custom := defaultStabilizationConfig()
	custom.CooldownSeconds = 120
	require.NoError(t, e.engine.SetStabilizationConfig(e.owner, custom))

	stored, err := e.engine.StabilizationConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(120), stored.CooldownSeconds)
}
