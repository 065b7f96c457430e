package reserve

import (
	"math/big"
	"time"

	"reservecore/core/events"
	"reservecore/observability"
)

// The stabilization controller reads the pegged/payment pool as its price
// oracle and uses the router as its execution venue. Each call moves a fixed
// bounded step and arms a per-direction cooldown, so convergence back into the
// band takes repeated, cooldown-spaced calls. Manipulation resistance beyond
// step bounding and cooldowns is assumed upstream of this engine (pool depth,
// time weighting).

// SpotPrice returns the pool's payment-per-pegged ratio scaled to wei. It is
// read fresh on every call; the controller never caches the oracle.
func (e *Engine) SpotPrice() (*big.Int, error) {
	if e.pair == nil {
		return nil, ErrNotConfigured
	}
	pegged, err := e.pair.ReserveOf(e.peggedToken.Symbol())
	if err != nil {
		return nil, err
	}
	payment, err := e.pair.ReserveOf(e.paymentToken.Symbol())
	if err != nil {
		return nil, err
	}
	if pegged.Sign() == 0 || payment.Sign() == 0 {
		return nil, ErrNotConfigured
	}
	spot := new(big.Int).Mul(payment, weiUnit)
	return spot.Quo(spot, pegged), nil
}

// CanInflate reports whether the spot price sits above the upper trigger and
// the inflate cooldown has elapsed.
func (e *Engine) CanInflate() (bool, error) {
	config, err := e.StabilizationConfig()
	if err != nil {
		return false, err
	}
	spot, err := e.SpotPrice()
	if err != nil {
		return false, err
	}
	if spot.Cmp(config.UpperTrigger) <= 0 {
		return false, nil
	}
	state, err := e.cooldowns()
	if err != nil {
		return false, err
	}
	return uint64(e.now().Unix()) >= state.InflateReadyAt, nil
}

// CanDeflate reports whether the spot price sits below the lower trigger and
// the deflate cooldown has elapsed.
func (e *Engine) CanDeflate() (bool, error) {
	config, err := e.StabilizationConfig()
	if err != nil {
		return false, err
	}
	spot, err := e.SpotPrice()
	if err != nil {
		return false, err
	}
	if spot.Cmp(config.LowerTrigger) >= 0 {
		return false, nil
	}
	state, err := e.cooldowns()
	if err != nil {
		return false, err
	}
	return uint64(e.now().Unix()) >= state.DeflateReadyAt, nil
}

// IsInTargetPrice reports whether the spot price sits inside the narrower
// target band. Observational only; it never gates inflate or deflate.
func (e *Engine) IsInTargetPrice() (bool, error) {
	config, err := e.StabilizationConfig()
	if err != nil {
		return false, err
	}
	spot, err := e.SpotPrice()
	if err != nil {
		return false, err
	}
	return spot.Cmp(config.LowerTarget) >= 0 && spot.Cmp(config.UpperTarget) <= 0, nil
}

// Inflate mints one bounded step of pegged supply and sells it into the pool,
// pushing the spot price down toward the band, then arms the inflate
// cooldown. An ineligible call fails with ErrNotReadyToInflate and changes
// nothing.
func (e *Engine) Inflate(deadline time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadline(deadline); err != nil {
		return err
	}
	if e.router == nil || e.pair == nil {
		return ErrNotConfigured
	}
	ready, err := e.CanInflate()
	if err != nil {
		return err
	}
	if !ready {
		observability.Reserve().RecordStabilization("inflate", "rejected")
		return ErrNotReadyToInflate
	}
	config, err := e.StabilizationConfig()
	if err != nil {
		return err
	}
	spotBefore, err := e.SpotPrice()
	if err != nil {
		return err
	}

	if err := e.peggedToken.Mint(e.moduleAddress, e.moduleAddress, config.InflateStep); err != nil {
		return err
	}
	if _, err := e.router.SwapExactTokensForTokens(
		e.moduleAddress, e.peggedToken.Symbol(), e.paymentToken.Symbol(),
		config.InflateStep, nil, deadline); err != nil {
		// Unwind the mint so a failed sale leaves supply untouched.
		if burnErr := e.peggedToken.Burn(e.moduleAddress, config.InflateStep); burnErr != nil {
			return burnErr
		}
		return err
	}

	state, err := e.cooldowns()
	if err != nil {
		return err
	}
	state.InflateReadyAt = uint64(e.now().Unix()) + config.CooldownSeconds
	if err := e.store.KVPut(cooldownKey, state); err != nil {
		return err
	}

	spotAfter, err := e.SpotPrice()
	if err != nil {
		return err
	}
	observability.Reserve().RecordStabilization("inflate", "executed")
	e.emitter.Emit(events.NewStabilization("inflate", config.InflateStep, nil, spotBefore, spotAfter))
	return nil
}

// Deflate spends one bounded step of reserve-held payment tokens to buy
// pegged supply back from the pool and burns it, pushing the spot price up
// toward the band, then arms the deflate cooldown.
func (e *Engine) Deflate(deadline time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadline(deadline); err != nil {
		return err
	}
	if e.router == nil || e.pair == nil {
		return ErrNotConfigured
	}
	ready, err := e.CanDeflate()
	if err != nil {
		return err
	}
	if !ready {
		observability.Reserve().RecordStabilization("deflate", "rejected")
		return ErrNotReadyToDeflate
	}
	config, err := e.StabilizationConfig()
	if err != nil {
		return err
	}
	spotBefore, err := e.SpotPrice()
	if err != nil {
		return err
	}

	bought, err := e.router.SwapExactTokensForTokens(
		e.moduleAddress, e.paymentToken.Symbol(), e.peggedToken.Symbol(),
		config.DeflateStep, nil, deadline)
	if err != nil {
		return err
	}
	if err := e.peggedToken.Burn(e.moduleAddress, bought); err != nil {
		return err
	}

	state, err := e.cooldowns()
	if err != nil {
		return err
	}
	state.DeflateReadyAt = uint64(e.now().Unix()) + config.CooldownSeconds
	if err := e.store.KVPut(cooldownKey, state); err != nil {
		return err
	}

	spotAfter, err := e.SpotPrice()
	if err != nil {
		return err
	}
	observability.Reserve().RecordStabilization("deflate", "executed")
	e.emitter.Emit(events.NewStabilization("deflate", nil, bought, spotBefore, spotAfter))
	return nil
}
