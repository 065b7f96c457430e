package reserve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCurve(sold int64) *CurveState {
	return &CurveState{
		Sold:         wei(sold),
		Cost:         big.NewInt(0),
		InitialPrice: mustBig("100000000000000000"),
		PriceStep:    mustBig("1000000000000000"),
		TrancheSize:  wei(50_000),
	}
}

func TestPriceStaircase(t *testing.T) {
	curve := testCurve(0)

	require.Equal(t, mustBig("100000000000000000"), priceAt(curve, wei(0)))
	require.Equal(t, mustBig("100000000000000000"), priceAt(curve, wei(49_999)))
	require.Equal(t, mustBig("101000000000000000"), priceAt(curve, wei(50_000)))
	require.Equal(t, mustBig("103000000000000000"), priceAt(curve, wei(150_000)))
}

func TestCostForOutputCrossesTranches(t *testing.T) {
	curve := testCurve(0)

	// 50k units at 0.1 plus 10k units at 0.101.
	require.Equal(t, mustBig("6010000000000000000000"), costForOutput(curve, wei(60_000)))

	// Entirely inside the first tranche.
	require.Equal(t, wei(1_000), costForOutput(curve, wei(10_000)))
}

func TestOutputForPayment(t *testing.T) {
	curve := testCurve(60_000)

	out, err := outputForPayment(curve, wei(10_000))
	require.NoError(t, err)
	require.Equal(t, mustBig("98349514563106796116504"), out)
}

func TestOutputForPaymentExactTrancheBoundary(t *testing.T) {
	curve := testCurve(0)

	// 5000 payment buys exactly the first tranche at 0.1 per unit.
	out, err := outputForPayment(curve, wei(5_000))
	require.NoError(t, err)
	require.Equal(t, wei(50_000), out)
}

func TestInverseMatchesForward(t *testing.T) {
	curve := testCurve(0)

	amount := wei(12_345)
	cost := costForOutput(curve, amount)
	out, err := outputForPayment(curve, cost)
	require.NoError(t, err)
	require.Equal(t, amount, out)
}

func TestOutputForPaymentTrancheCap(t *testing.T) {
	curve := testCurve(0)

	_, err := outputForPayment(curve, wei(1_000_000_000))
	require.ErrorIs(t, err, ErrCurveInversion)
}

func TestIntegralCostMonotonic(t *testing.T) {
	curve := testCurve(0)

	prev := big.NewInt(0)
	for units := int64(10_000); units <= 200_000; units += 10_000 {
		cost := integralCost(curve, wei(units))
		require.True(t, cost.Cmp(prev) > 0, "cost must grow with sold amount")
		prev = cost
	}
}
