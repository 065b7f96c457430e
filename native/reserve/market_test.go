package reserve

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPurchaseExactOutput(t *testing.T) {
	e := newEnv(t)

	paid, err := e.engine.PurchaseExactOutput(e.buyer, wei(60_000), wei(10_000), e.deadline())
	require.NoError(t, err)
	require.Equal(t, mustBig("6010000000000000000000"), paid)

	bought, err := e.reserveTok.BalanceOf(e.buyer)
	require.NoError(t, err)
	require.Equal(t, wei(60_000), bought)

	remaining, err := e.paymentTok.BalanceOf(e.buyer)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(wei(1_000_000), paid), remaining)

	curve, err := e.engine.CurveState()
	require.NoError(t, err)
	require.Equal(t, wei(60_000), curve.Sold)
	require.Equal(t, paid, curve.Cost)

	price, err := e.engine.Price()
	require.NoError(t, err)
	require.Equal(t, mustBig("101000000000000000"), price)

	avg, err := e.engine.AveragePrice()
	require.NoError(t, err)
	require.Equal(t, mustBig("100166666666666666"), avg)
}

func TestPurchaseExactInput(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.PurchaseExactOutput(e.buyer, wei(60_000), nil, e.deadline())
	require.NoError(t, err)

	out, err := e.engine.PurchaseExactInput(e.buyer, wei(10_000), wei(98_000), e.deadline())
	require.NoError(t, err)
	require.Equal(t, mustBig("98349514563106796116504"), out)

	price, err := e.engine.Price()
	require.NoError(t, err)
	require.Equal(t, mustBig("103000000000000000"), price)
}

func TestEstimatesAreReadOnly(t *testing.T) {
	e := newEnv(t)

	cost, err := e.engine.EstimateCostForExactOutput(wei(60_000))
	require.NoError(t, err)
	require.Equal(t, mustBig("6010000000000000000000"), cost)

	out, err := e.engine.EstimateOutputForExactCost(wei(5_000))
	require.NoError(t, err)
	require.Equal(t, wei(50_000), out)

	curve, err := e.engine.CurveState()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), curve.Sold)
	require.Equal(t, big.NewInt(0), curve.Cost)
}

func TestPurchaseSlippageBounds(t *testing.T) {
	e := newEnv(t)

	before, err := e.paymentTok.BalanceOf(e.buyer)
	require.NoError(t, err)

	_, err = e.engine.PurchaseExactOutput(e.buyer, wei(60_000), wei(6_000), e.deadline())
	require.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = e.engine.PurchaseExactInput(e.buyer, wei(10_000), wei(200_000), e.deadline())
	require.ErrorIs(t, err, ErrSlippageExceeded)

	after, err := e.paymentTok.BalanceOf(e.buyer)
	require.NoError(t, err)
	require.Equal(t, before, after, "rejected purchase must not move funds")
}

func TestPurchaseExpiredDeadline(t *testing.T) {
	e := newEnv(t)

	stale := e.now.Add(-time.Second)
	_, err := e.engine.PurchaseExactOutput(e.buyer, wei(100), nil, stale)
	require.ErrorIs(t, err, ErrExpired)
}

func TestAveragePriceBeforeFirstSale(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.AveragePrice()
	require.ErrorIs(t, err, ErrCurveInactive)
}

func TestCurveParamsLockAfterFirstSale(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.PurchaseExactOutput(e.buyer, wei(100), nil, e.deadline())
	require.NoError(t, err)

	err = e.engine.SetInitialPrice(e.owner, wei(1))
	require.ErrorIs(t, err, ErrCurveAlreadyActive)

	err = e.engine.SetInitialSoldAndCost(e.owner, big.NewInt(0), big.NewInt(0))
	require.ErrorIs(t, err, ErrCurveAlreadyActive)
}

func TestOwnerGating(t *testing.T) {
	e := newEnv(t)

	require.ErrorIs(t, e.engine.SetInitialPrice(e.buyer, wei(1)), ErrUnauthorized)
	require.ErrorIs(t, e.engine.SetDistributionTable(e.buyer, nil), ErrUnauthorized)
	require.ErrorIs(t, e.engine.TransferOwnership(e.buyer, e.buyer), ErrUnauthorized)

	// Ownership cannot be re-initialised once claimed.
	require.ErrorIs(t, e.engine.InitializeOwner(e.buyer), ErrUnauthorized)
}

func TestTransferOwnership(t *testing.T) {
	e := newEnv(t)
	next := testAddr(0x03)

	require.NoError(t, e.engine.TransferOwnership(e.owner, next))

	owner, ok, err := e.engine.Owner()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, owner.Equal(next))

	// The previous owner lost its privileges.
	require.ErrorIs(t, e.engine.SetStabilizationConfig(e.owner, defaultStabilizationConfig()), ErrUnauthorized)
	require.NoError(t, e.engine.SetStabilizationConfig(next, defaultStabilizationConfig()))
}

func TestDistributionTableValidation(t *testing.T) {
	e := newEnv(t)

	err := e.engine.SetDistributionTable(e.owner, []DistributionEntry{
		{Recipient: testAddr(0x10), WeightBps: 5_000},
		{Recipient: testAddr(0x11), WeightBps: 4_000},
	})
	require.ErrorIs(t, err, ErrInvalidDistribution)

	// A single weight above 100% is rejected outright.
	err = e.engine.SetDistributionTable(e.owner, []DistributionEntry{
		{Recipient: testAddr(0x10), WeightBps: 20_000},
	})
	require.ErrorIs(t, err, ErrInvalidDistribution)

	// Weights whose uint64 sum wraps around to exactly 10000 bps must not
	// slip through.
	err = e.engine.SetDistributionTable(e.owner, []DistributionEntry{
		{Recipient: testAddr(0x10), WeightBps: math.MaxUint64},
		{Recipient: testAddr(0x11), WeightBps: 10_001},
	})
	require.ErrorIs(t, err, ErrInvalidDistribution)
}

func TestPurchaseRoutesDistribution(t *testing.T) {
	e := newEnv(t)
	first := testAddr(0x10)
	second := testAddr(0x11)

	require.NoError(t, e.engine.SetDistributionTable(e.owner, []DistributionEntry{
		{Recipient: first, WeightBps: 6_000},
		{Recipient: second, WeightBps: 4_000},
	}))

	_, err := e.engine.PurchaseExactOutput(e.buyer, wei(10_000), nil, e.deadline())
	require.NoError(t, err)

	// The buyer receives the full purchase; the holder share comes out of the
	// treasury's own inventory on top.
	bought, err := e.reserveTok.BalanceOf(e.buyer)
	require.NoError(t, err)
	require.Equal(t, wei(10_000), bought)

	firstShare, err := e.reserveTok.BalanceOf(first)
	require.NoError(t, err)
	require.Equal(t, wei(6_000), firstShare)

	secondShare, err := e.reserveTok.BalanceOf(second)
	require.NoError(t, err)
	require.Equal(t, wei(4_000), secondShare)
}
