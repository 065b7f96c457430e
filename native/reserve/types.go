package reserve

import (
	"math/big"

	"reservecore/crypto"
)

// CurveState captures the cumulative bonding-curve accounting. Amount values
// are denominated in wei (1e18 fixed point) and expressed as big integers to
// match on-chain precision.
type CurveState struct {
	// Sold is the cumulative reserve-token units issued via the curve.
	Sold *big.Int
	// Cost is the cumulative payment-token units received.
	Cost *big.Int
	// InitialPrice is the marginal price of the very first unit, in payment
	// wei per 1e18 reserve-token wei.
	InitialPrice *big.Int
	// PriceStep is the price increase applied at every tranche boundary.
	PriceStep *big.Int
	// TrancheSize is the number of reserve-token wei sold per price tranche.
	TrancheSize *big.Int
}

// Copy returns a deep copy so callers cannot mutate shared state.
func (c *CurveState) Copy() *CurveState {
	if c == nil {
		return nil
	}
	clone := &CurveState{}
	if c.Sold != nil {
		clone.Sold = new(big.Int).Set(c.Sold)
	}
	if c.Cost != nil {
		clone.Cost = new(big.Int).Set(c.Cost)
	}
	if c.InitialPrice != nil {
		clone.InitialPrice = new(big.Int).Set(c.InitialPrice)
	}
	if c.PriceStep != nil {
		clone.PriceStep = new(big.Int).Set(c.PriceStep)
	}
	if c.TrancheSize != nil {
		clone.TrancheSize = new(big.Int).Set(c.TrancheSize)
	}
	return clone
}

// Loan is one collateralized position. Both fields are written once at open
// time and zeroed in place on redemption; slots are never reused or compacted
// so slot indices stay valid forever.
type Loan struct {
	// Collateral is the reserve-token amount locked at open time.
	Collateral *big.Int
	// Debt is the pegged-token amount that must be burned to close the slot.
	Debt *big.Int
}

// Closed reports whether the slot has been redeemed (tombstone).
func (l *Loan) Closed() bool {
	return l == nil || l.Collateral == nil || l.Collateral.Sign() == 0
}

// DistributionEntry routes a share of each purchase to a holder account.
type DistributionEntry struct {
	Recipient crypto.Address
	WeightBps uint64
}

// StabilizationConfig groups the controller parameters. Prices are wei ratios
// (1e18 == peg), timestamps are unix seconds.
type StabilizationConfig struct {
	// LowerTrigger / UpperTrigger bound the band outside of which the
	// controller is permitted to act.
	LowerTrigger *big.Int
	UpperTrigger *big.Int
	// LowerTarget / UpperTarget bound the narrower band the controller aims
	// to converge into; observational only.
	LowerTarget *big.Int
	UpperTarget *big.Int
	// CooldownSeconds is the minimum spacing between successive actions of
	// the same direction.
	CooldownSeconds uint64
	// InflateStep is the pegged-token amount minted and sold per inflate call.
	InflateStep *big.Int
	// DeflateStep is the payment-token amount spent per deflate call.
	DeflateStep *big.Int
}

// Copy returns a deep copy of the configuration.
func (c *StabilizationConfig) Copy() *StabilizationConfig {
	if c == nil {
		return nil
	}
	clone := &StabilizationConfig{CooldownSeconds: c.CooldownSeconds}
	for dst, src := range map[**big.Int]*big.Int{
		&clone.LowerTrigger: c.LowerTrigger,
		&clone.UpperTrigger: c.UpperTrigger,
		&clone.LowerTarget:  c.LowerTarget,
		&clone.UpperTarget:  c.UpperTarget,
		&clone.InflateStep:  c.InflateStep,
		&clone.DeflateStep:  c.DeflateStep,
	} {
		if src != nil {
			*dst = new(big.Int).Set(src)
		}
	}
	return clone
}

// CooldownState holds the two independent per-direction readiness timestamps.
type CooldownState struct {
	InflateReadyAt uint64
	DeflateReadyAt uint64
}
