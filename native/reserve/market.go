package reserve

import (
	"math/big"
	"sync"
	"time"

	"reservecore/core/events"
	"reservecore/crypto"
	"reservecore/native/amm"
	"reservecore/native/token"
	"reservecore/observability"
)

// Storage abstracts the subset of state manager functionality required by the
// reserve engine.
type Storage interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
}

// collateralRatio is the fixed over-collateralization factor captured at loan
// open time: one unit of pegged debt requires two units' worth of reserve
// collateral at the running average price.
var collateralRatio = big.NewInt(2)

const basisPoints = 10_000

// Engine owns all reserve state: the bonding curve, the loan ledger, and the
// stabilization cooldowns. Every mutating operation runs under one mutex so
// collaborator sub-calls observe a single indivisible step; the hosting
// runtime sees each operation as atomic.
type Engine struct {
	mu    sync.Mutex
	store Storage

	moduleAddress crypto.Address
	reserveToken  *token.Ledger
	peggedToken   *token.Ledger
	paymentToken  *token.Ledger

	router *amm.Router
	pair   *amm.Pair

	emitter events.Emitter
	nowFn   func() time.Time
}

// NewEngine constructs a reserve engine bound to its module treasury address
// and the three token ledgers.
func NewEngine(moduleAddr crypto.Address, reserveToken, peggedToken, paymentToken *token.Ledger) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		reserveToken:  reserveToken,
		peggedToken:   peggedToken,
		paymentToken:  paymentToken,
		emitter:       events.NoopEmitter{},
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(store Storage) { e.store = store }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deadlines and cooldowns. Nil
// restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the treasury account holding the reserve's funds.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

func (e *Engine) now() time.Time { return e.nowFn() }

func (e *Engine) checkDeadline(deadline time.Time) error {
	if !deadline.IsZero() && e.now().After(deadline) {
		return ErrExpired
	}
	return nil
}

// --- ownership ---

// Owner returns the configured privileged identity, if any.
func (e *Engine) Owner() (crypto.Address, bool, error) {
	var raw []byte
	ok, err := e.store.KVGet(ownerKey, &raw)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	if len(raw) != 20 {
		return crypto.Address{}, false, nil
	}
	return crypto.NewAddress(crypto.ReservePrefix, raw), true, nil
}

// InitializeOwner claims ownership at genesis. It fails with ErrUnauthorized
// once an owner is set; use TransferOwnership afterwards.
func (e *Engine) InitializeOwner(owner crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok, err := e.Owner(); err != nil {
		return err
	} else if ok {
		return ErrUnauthorized
	}
	return e.store.KVPut(ownerKey, owner.Bytes())
}

// TransferOwnership hands the privileged identity to the next owner, which in
// a deployed instance is the timelock's execution account.
func (e *Engine) TransferOwnership(caller, next crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.store.KVPut(ownerKey, next.Bytes()); err != nil {
		return err
	}
	e.emitter.Emit(events.Attributed{Type: events.TypeOwnershipChanged, Attributes: map[string]string{
		"owner": next.String(),
	}})
	return nil
}

func (e *Engine) requireOwner(caller crypto.Address) error {
	owner, ok, err := e.Owner()
	if err != nil {
		return err
	}
	if !ok || !owner.Equal(caller) {
		return ErrUnauthorized
	}
	return nil
}

// --- collaborators ---

// SetRouter configures the AMM router collaborator. Owner gated.
func (e *Engine) SetRouter(caller crypto.Address, router *amm.Router) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.router = router
	return nil
}

// SetPair configures the pegged/payment pool used as price oracle and
// execution venue. Owner gated.
func (e *Engine) SetPair(caller crypto.Address, pair *amm.Pair) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.pair = pair
	return nil
}

// --- curve state ---

func (e *Engine) loadCurve() (*CurveState, error) {
	curve := &CurveState{}
	ok, err := e.store.KVGet(curveKey, curve)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConfigured
	}
	return curve, nil
}

// loadPricedCurve is loadCurve plus the guard that the curve parameters have
// been initialised, which every pricing path depends on.
func (e *Engine) loadPricedCurve() (*CurveState, error) {
	curve, err := e.loadCurve()
	if err != nil {
		return nil, err
	}
	if curve.InitialPrice == nil || curve.InitialPrice.Sign() <= 0 ||
		curve.TrancheSize == nil || curve.TrancheSize.Sign() <= 0 || curve.PriceStep == nil {
		return nil, ErrNotConfigured
	}
	return curve, nil
}

func (e *Engine) storeCurve(curve *CurveState) error {
	return e.store.KVPut(curveKey, curve)
}

// CurveState returns a copy of the current curve accounting.
func (e *Engine) CurveState() (*CurveState, error) {
	curve, err := e.loadCurve()
	if err != nil {
		return nil, err
	}
	return curve.Copy(), nil
}

func curveActive(curve *CurveState) bool {
	return curve.Sold != nil && curve.Sold.Sign() > 0
}

// SetInitialPrice sets the curve's starting price and derives the default
// tranche step (1% of the initial price per 50k units). Permitted only before
// the first purchase.
func (e *Engine) SetInitialPrice(caller crypto.Address, initialPrice *big.Int) error {
	if initialPrice == nil || initialPrice.Sign() <= 0 {
		return ErrInvalidAmount
	}
	step := new(big.Int).Quo(initialPrice, big.NewInt(100))
	tranche := new(big.Int).Mul(big.NewInt(50_000), weiUnit)
	return e.SetCurveParams(caller, initialPrice, step, tranche)
}

// SetCurveParams sets the full curve parameterization. Permitted only before
// the first purchase.
func (e *Engine) SetCurveParams(caller crypto.Address, initialPrice, priceStep, trancheSize *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if initialPrice == nil || initialPrice.Sign() <= 0 ||
		priceStep == nil || priceStep.Sign() < 0 ||
		trancheSize == nil || trancheSize.Sign() <= 0 {
		return ErrInvalidAmount
	}
	curve, err := e.loadCurve()
	if err == ErrNotConfigured {
		curve = &CurveState{Sold: big.NewInt(0), Cost: big.NewInt(0)}
	} else if err != nil {
		return err
	}
	if curveActive(curve) {
		return ErrCurveAlreadyActive
	}
	curve.InitialPrice = new(big.Int).Set(initialPrice)
	curve.PriceStep = new(big.Int).Set(priceStep)
	curve.TrancheSize = new(big.Int).Set(trancheSize)
	return e.storeCurve(curve)
}

// SetInitialSoldAndCost seeds the cumulative accounting, used when migrating
// an already-running curve. Permitted only before the first purchase.
func (e *Engine) SetInitialSoldAndCost(caller crypto.Address, sold, cost *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if sold == nil || sold.Sign() < 0 || cost == nil || cost.Sign() < 0 {
		return ErrInvalidAmount
	}
	curve, err := e.loadCurve()
	if err == ErrNotConfigured {
		curve = &CurveState{}
	} else if err != nil {
		return err
	}
	if curveActive(curve) {
		return ErrCurveAlreadyActive
	}
	curve.Sold = new(big.Int).Set(sold)
	curve.Cost = new(big.Int).Set(cost)
	return e.storeCurve(curve)
}

// --- distribution table ---

type storedDistribution struct {
	Recipient []byte
	WeightBps uint64
}

// SetDistributionTable replaces the holder table wholesale. Weights must sum
// to exactly 10000 basis points. Owner gated.
func (e *Engine) SetDistributionTable(caller crypto.Address, entries []DistributionEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	var total uint64
	stored := make([]storedDistribution, 0, len(entries))
	for _, entry := range entries {
		// Bound each weight before summing so the total cannot wrap.
		if entry.WeightBps > basisPoints {
			return ErrInvalidDistribution
		}
		total += entry.WeightBps
		stored = append(stored, storedDistribution{
			Recipient: append([]byte(nil), entry.Recipient.Bytes()...),
			WeightBps: entry.WeightBps,
		})
	}
	if len(entries) > 0 && total != basisPoints {
		return ErrInvalidDistribution
	}
	return e.store.KVPut(distributionKey, stored)
}

// DistributionTable returns the configured holder table.
func (e *Engine) DistributionTable() ([]DistributionEntry, error) {
	var stored []storedDistribution
	ok, err := e.store.KVGet(distributionKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	entries := make([]DistributionEntry, 0, len(stored))
	for _, s := range stored {
		if len(s.Recipient) != 20 {
			continue
		}
		entries = append(entries, DistributionEntry{
			Recipient: crypto.NewAddress(crypto.ReservePrefix, s.Recipient),
			WeightBps: s.WeightBps,
		})
	}
	return entries, nil
}

// distribute routes the holder share of a purchase out of the reserve's own
// reserve-token holdings, capped by what the treasury actually holds. The
// buyer's purchase is never touched.
func (e *Engine) distribute(amountOut *big.Int) error {
	entries, err := e.DistributionTable()
	if err != nil || len(entries) == 0 {
		return err
	}
	for _, entry := range entries {
		share := new(big.Int).Mul(amountOut, new(big.Int).SetUint64(entry.WeightBps))
		share.Quo(share, big.NewInt(basisPoints))
		if share.Sign() <= 0 {
			continue
		}
		held, err := e.reserveToken.BalanceOf(e.moduleAddress)
		if err != nil {
			return err
		}
		if held.Cmp(share) < 0 {
			share = held
		}
		if share.Sign() <= 0 {
			return nil
		}
		if err := e.reserveToken.Transfer(e.moduleAddress, entry.Recipient, share); err != nil {
			return err
		}
		e.emitter.Emit(events.NewDistribution(entry.Recipient.String(), share))
	}
	return nil
}

// --- pricing views ---

// Price returns the marginal price at the current sold level.
func (e *Engine) Price() (*big.Int, error) {
	curve, err := e.loadPricedCurve()
	if err != nil {
		return nil, err
	}
	return priceAt(curve, curve.Sold), nil
}

// AveragePrice returns cost/sold scaled to wei. Fails with ErrCurveInactive
// before the first sale because the ratio is undefined.
func (e *Engine) AveragePrice() (*big.Int, error) {
	curve, err := e.loadCurve()
	if err != nil {
		return nil, err
	}
	return averagePrice(curve)
}

func averagePrice(curve *CurveState) (*big.Int, error) {
	if !curveActive(curve) {
		return nil, ErrCurveInactive
	}
	avg := new(big.Int).Mul(curve.Cost, weiUnit)
	return avg.Quo(avg, curve.Sold), nil
}

// EstimateCostForExactOutput returns the payment needed to buy exactly
// amountOut more units. Pure, read-only.
func (e *Engine) EstimateCostForExactOutput(amountOut *big.Int) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	curve, err := e.loadPricedCurve()
	if err != nil {
		return nil, err
	}
	return costForOutput(curve, amountOut), nil
}

// EstimateOutputForExactCost returns the units obtainable for exactly
// paymentIn. Pure, read-only.
func (e *Engine) EstimateOutputForExactCost(paymentIn *big.Int) (*big.Int, error) {
	if paymentIn == nil || paymentIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	curve, err := e.loadPricedCurve()
	if err != nil {
		return nil, err
	}
	amountOut, err := outputForPayment(curve, paymentIn)
	if err == ErrCurveInversion {
		observability.Reserve().RecordInversionFailure()
	}
	return amountOut, err
}

// --- purchases ---

// PurchaseExactOutput buys exactly amountOut reserve-token units, paying at
// most maxPaymentIn. The payment is pulled from the caller's approval, the
// units come out of the treasury's holdings, and the holder share is routed
// afterwards.
func (e *Engine) PurchaseExactOutput(caller crypto.Address, amountOut, maxPaymentIn *big.Int, deadline time.Time) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	curve, err := e.loadPricedCurve()
	if err != nil {
		return nil, err
	}
	paymentIn := costForOutput(curve, amountOut)
	if maxPaymentIn != nil && paymentIn.Cmp(maxPaymentIn) > 0 {
		return nil, ErrSlippageExceeded
	}
	if err := e.settlePurchase(caller, curve, amountOut, paymentIn); err != nil {
		return nil, err
	}
	return paymentIn, nil
}

// PurchaseExactInput spends exactly paymentIn and requires at least
// minAmountOut units in return.
func (e *Engine) PurchaseExactInput(caller crypto.Address, paymentIn, minAmountOut *big.Int, deadline time.Time) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if paymentIn == nil || paymentIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	curve, err := e.loadPricedCurve()
	if err != nil {
		return nil, err
	}
	amountOut, err := outputForPayment(curve, paymentIn)
	if err != nil {
		return nil, err
	}
	if minAmountOut != nil && amountOut.Cmp(minAmountOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	if err := e.settlePurchase(caller, curve, amountOut, paymentIn); err != nil {
		return nil, err
	}
	return amountOut, nil
}

// settlePurchase performs the token movements and advances the curve. Token
// failures abort before any curve state is written, keeping the operation
// all-or-nothing.
func (e *Engine) settlePurchase(caller crypto.Address, curve *CurveState, amountOut, paymentIn *big.Int) error {
	if err := e.paymentToken.TransferFrom(e.moduleAddress, caller, e.moduleAddress, paymentIn); err != nil {
		return err
	}
	if err := e.reserveToken.Transfer(e.moduleAddress, caller, amountOut); err != nil {
		return err
	}
	if err := e.distribute(amountOut); err != nil {
		return err
	}
	curve.Sold = new(big.Int).Add(curve.Sold, amountOut)
	curve.Cost = new(big.Int).Add(curve.Cost, paymentIn)
	if err := e.storeCurve(curve); err != nil {
		return err
	}
	observability.Reserve().RecordPurchase()
	e.emitter.Emit(events.NewPurchase(caller.String(), amountOut, paymentIn, curve.Sold, curve.Cost))
	return nil
}
