package reserve

import "math/big"

// The curve is a price staircase: every full tranche of TrancheSize units sold
// raises the marginal price by PriceStep. The cumulative cost is the
// piecewise-linear integral of that staircase, so the forward direction has a
// closed form while the inverse walks tranche boundaries with a hard cap.

// maxInversionTranches bounds the inverse walk. Each iteration consumes one
// full tranche, so the cap corresponds to a single purchase spanning 4096
// price levels.
const maxInversionTranches = 4096

var weiUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// priceAt returns the marginal price of the next unit at the given cumulative
// sold amount.
func priceAt(curve *CurveState, sold *big.Int) *big.Int {
	tranche := new(big.Int).Quo(sold, curve.TrancheSize)
	price := new(big.Int).Mul(tranche, curve.PriceStep)
	return price.Add(price, curve.InitialPrice)
}

// integralCost returns the cumulative payment for the first `sold` units:
// full tranches priced by the arithmetic series plus the partial tranche at
// the marginal price.
func integralCost(curve *CurveState, sold *big.Int) *big.Int {
	tranche := new(big.Int).Quo(sold, curve.TrancheSize)
	fullUnits := new(big.Int).Mul(tranche, curve.TrancheSize)

	// Sum of full tranches: n*T*p0 + step*T*n*(n-1)/2.
	cost := new(big.Int).Mul(fullUnits, curve.InitialPrice)
	series := new(big.Int).Mul(tranche, new(big.Int).Sub(tranche, big.NewInt(1)))
	series.Quo(series, big.NewInt(2))
	series.Mul(series, curve.PriceStep)
	series.Mul(series, curve.TrancheSize)
	cost.Add(cost, series)

	partial := new(big.Int).Sub(sold, fullUnits)
	partial.Mul(partial, priceAt(curve, fullUnits))
	cost.Add(cost, partial)

	return cost.Quo(cost, weiUnit)
}

// costForOutput returns the payment needed to buy amountOut more units at the
// current sold level: integralCost(sold+amountOut) - integralCost(sold).
func costForOutput(curve *CurveState, amountOut *big.Int) *big.Int {
	after := new(big.Int).Add(curve.Sold, amountOut)
	return new(big.Int).Sub(integralCost(curve, after), integralCost(curve, curve.Sold))
}

// outputForPayment returns the units obtainable for exactly paymentIn at the
// current sold level. It consumes whole tranches until the remaining payment
// fits inside one, then floors the final partial amount. Fails with
// ErrCurveInversion when the walk exceeds the tranche cap.
func outputForPayment(curve *CurveState, paymentIn *big.Int) (*big.Int, error) {
	remaining := new(big.Int).Set(paymentIn)
	position := new(big.Int).Set(curve.Sold)
	output := big.NewInt(0)

	for i := 0; i < maxInversionTranches; i++ {
		price := priceAt(curve, position)
		tranche := new(big.Int).Quo(position, curve.TrancheSize)
		boundary := new(big.Int).Add(tranche, big.NewInt(1))
		boundary.Mul(boundary, curve.TrancheSize)

		capacity := new(big.Int).Sub(boundary, position)
		capacityCost := new(big.Int).Mul(capacity, price)
		capacityCost.Quo(capacityCost, weiUnit)

		if remaining.Cmp(capacityCost) < 0 {
			units := new(big.Int).Mul(remaining, weiUnit)
			units.Quo(units, price)
			output.Add(output, units)
			return output, nil
		}

		output.Add(output, capacity)
		position.Set(boundary)
		remaining.Sub(remaining, capacityCost)
		if remaining.Sign() == 0 {
			return output, nil
		}
	}
	return nil, ErrCurveInversion
}
