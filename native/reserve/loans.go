package reserve

import (
	"math/big"
	"time"

	"reservecore/core/events"
	"reservecore/crypto"
	"reservecore/observability"
)

// The loan ledger is an append-only per-account slot arena. Slots are written
// once at open time, zeroed in place on redemption, and never reused, so a
// slot index handed to an integrator stays valid for the lifetime of the
// deployment.

func (e *Engine) loanCount(addr crypto.Address) (uint64, error) {
	var count uint64
	ok, err := e.store.KVGet(loanCountKey(addr), &count)
	if err != nil || !ok {
		return 0, err
	}
	return count, nil
}

// Loan returns the position stored at the slot, including tombstones.
func (e *Engine) Loan(addr crypto.Address, slot uint64) (*Loan, error) {
	count, err := e.loanCount(addr)
	if err != nil {
		return nil, err
	}
	if slot >= count {
		return nil, ErrUnknownLoan
	}
	loan := &Loan{}
	ok, err := e.store.KVGet(loanSlotKey(addr, slot), loan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownLoan
	}
	return loan, nil
}

// Loans returns the account's full slot sequence in index order.
func (e *Engine) Loans(addr crypto.Address) ([]Loan, error) {
	count, err := e.loanCount(addr)
	if err != nil {
		return nil, err
	}
	loans := make([]Loan, 0, count)
	for slot := uint64(0); slot < count; slot++ {
		loan := &Loan{}
		if _, err := e.store.KVGet(loanSlotKey(addr, slot), loan); err != nil {
			return nil, err
		}
		loans = append(loans, *loan)
	}
	return loans, nil
}

// MintAgainstExactCollateral locks collateralIn reserve tokens and mints the
// pegged debt priced at the running average: debt = collateral * avg / ratio.
// Fails with ErrSlippageExceeded when the debt falls below the caller's
// minimum. Returns the new slot index and the minted debt.
func (e *Engine) MintAgainstExactCollateral(caller crypto.Address, collateralIn, minDebtOut *big.Int, deadline time.Time) (uint64, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadline(deadline); err != nil {
		return 0, nil, err
	}
	if collateralIn == nil || collateralIn.Sign() <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	avg, err := e.AveragePrice()
	if err != nil {
		return 0, nil, err
	}
	debtOut := new(big.Int).Mul(collateralIn, avg)
	debtOut.Quo(debtOut, weiUnit)
	debtOut.Quo(debtOut, collateralRatio)
	if debtOut.Sign() <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	if minDebtOut != nil && debtOut.Cmp(minDebtOut) < 0 {
		return 0, nil, ErrSlippageExceeded
	}
	slot, err := e.openLoan(caller, collateralIn, debtOut)
	if err != nil {
		return 0, nil, err
	}
	return slot, debtOut, nil
}

// MintExactDebt mints exactly debtOut pegged tokens, computing the collateral
// requirement from the running average price and enforcing the caller's
// collateral bound.
func (e *Engine) MintExactDebt(caller crypto.Address, debtOut, maxCollateralIn *big.Int, deadline time.Time) (uint64, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadline(deadline); err != nil {
		return 0, nil, err
	}
	return e.mintExactDebt(caller, debtOut, maxCollateralIn)
}

// MintExactDebtAtMarket is the bound-free overload: no collateral cap and no
// deadline. Integrators that accept whatever the running average dictates use
// this shape; everyone else should prefer MintExactDebt.
func (e *Engine) MintExactDebtAtMarket(caller crypto.Address, debtOut *big.Int) (uint64, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mintExactDebt(caller, debtOut, nil)
}

func (e *Engine) mintExactDebt(caller crypto.Address, debtOut, maxCollateralIn *big.Int) (uint64, *big.Int, error) {
	if debtOut == nil || debtOut.Sign() <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	avg, err := e.AveragePrice()
	if err != nil {
		return 0, nil, err
	}
	collateralIn := new(big.Int).Mul(debtOut, collateralRatio)
	collateralIn.Mul(collateralIn, weiUnit)
	collateralIn.Quo(collateralIn, avg)
	if collateralIn.Sign() <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	if maxCollateralIn != nil && collateralIn.Cmp(maxCollateralIn) > 0 {
		return 0, nil, ErrSlippageExceeded
	}
	slot, err := e.openLoan(caller, collateralIn, debtOut)
	if err != nil {
		return 0, nil, err
	}
	return slot, collateralIn, nil
}

// openLoan performs the token movements and appends the slot. The collateral
// pull runs first so an uncovered caller aborts before any mint.
func (e *Engine) openLoan(caller crypto.Address, collateral, debt *big.Int) (uint64, error) {
	if err := e.reserveToken.TransferFrom(e.moduleAddress, caller, e.moduleAddress, collateral); err != nil {
		return 0, err
	}
	if err := e.peggedToken.Mint(e.moduleAddress, caller, debt); err != nil {
		return 0, err
	}
	slot, err := e.loanCount(caller)
	if err != nil {
		return 0, err
	}
	loan := &Loan{
		Collateral: new(big.Int).Set(collateral),
		Debt:       new(big.Int).Set(debt),
	}
	if err := e.store.KVPut(loanSlotKey(caller, slot), loan); err != nil {
		return 0, err
	}
	if err := e.store.KVPut(loanCountKey(caller), slot+1); err != nil {
		return 0, err
	}
	observability.Reserve().RecordLoanOpened()
	e.emitter.Emit(events.NewLoanOpened(caller.String(), slot, loan.Collateral, loan.Debt))
	return slot, nil
}

// Redeem burns exactly the slot's debt from the caller and releases exactly
// its collateral, then tombstones the slot. Redemption is all-or-nothing; a
// tombstoned slot always fails with ErrUnknownLoan.
func (e *Engine) Redeem(caller crypto.Address, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.Loan(caller, slot)
	if err != nil {
		return err
	}
	if loan.Closed() {
		return ErrUnknownLoan
	}
	if err := e.peggedToken.BurnFrom(e.moduleAddress, caller, loan.Debt); err != nil {
		return err
	}
	if err := e.reserveToken.Transfer(e.moduleAddress, caller, loan.Collateral); err != nil {
		return err
	}
	tombstone := &Loan{Collateral: big.NewInt(0), Debt: big.NewInt(0)}
	if err := e.store.KVPut(loanSlotKey(caller, slot), tombstone); err != nil {
		return err
	}
	observability.Reserve().RecordLoanClosed()
	e.emitter.Emit(events.NewLoanClosed(caller.String(), slot, loan.Collateral, loan.Debt))
	return nil
}
