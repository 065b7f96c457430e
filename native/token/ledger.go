package token

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"reservecore/crypto"
)

var (
	// ErrInsufficientBalance indicates the debited account cannot cover the amount.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance indicates the spender's approval cannot cover the amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrNotAuthority indicates a mint or forced burn from a caller that does not
	// hold the ledger's mint authority.
	ErrNotAuthority = errors.New("token: caller is not the mint authority")
	// ErrInvalidAmount indicates a zero or negative amount.
	ErrInvalidAmount = errors.New("token: amount must be positive")
)

// Storage abstracts the subset of state manager functionality required by the
// ledger.
type Storage interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
}

// Ledger is a minimal fungible-token ledger: balances, allowances, and a single
// mint authority. The reserve engine instantiates one ledger per token symbol
// and owns the mint authority for the reserve and pegged tokens.
type Ledger struct {
	store  Storage
	symbol string
}

// NewLedger binds a ledger for the given symbol to the storage backend.
func NewLedger(store Storage, symbol string) *Ledger {
	return &Ledger{store: store, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

// Symbol returns the token symbol the ledger was constructed with.
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) balanceKey(addr crypto.Address) []byte {
	return []byte("token/" + l.symbol + "/balance/" + hex.EncodeToString(addr.Bytes()))
}

func (l *Ledger) allowanceKey(owner, spender crypto.Address) []byte {
	return []byte("token/" + l.symbol + "/allowance/" +
		hex.EncodeToString(owner.Bytes()) + "/" + hex.EncodeToString(spender.Bytes()))
}

func (l *Ledger) supplyKey() []byte {
	return []byte("token/" + l.symbol + "/supply")
}

func (l *Ledger) authorityKey() []byte {
	return []byte("token/" + l.symbol + "/authority")
}

func (l *Ledger) readAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := l.store.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// BalanceOf returns the balance for the account, zero when unseen.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	return l.readAmount(l.balanceKey(addr))
}

// TotalSupply returns the cumulative minted minus burned amount.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return l.readAmount(l.supplyKey())
}

// Allowance returns the remaining approval from owner to spender.
func (l *Ledger) Allowance(owner, spender crypto.Address) (*big.Int, error) {
	return l.readAmount(l.allowanceKey(owner, spender))
}

// Authority returns the configured mint authority, if any.
func (l *Ledger) Authority() (crypto.Address, bool, error) {
	var raw []byte
	ok, err := l.store.KVGet(l.authorityKey(), &raw)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	if len(raw) != 20 {
		return crypto.Address{}, false, nil
	}
	return crypto.NewAddress(crypto.ReservePrefix, raw), true, nil
}

// SetAuthority transfers the mint authority. The call must come from the
// current authority; an unset authority may be claimed by the wiring code at
// genesis with caller equal to the candidate.
func (l *Ledger) SetAuthority(caller, next crypto.Address) error {
	current, ok, err := l.Authority()
	if err != nil {
		return err
	}
	if ok && !current.Equal(caller) {
		return ErrNotAuthority
	}
	return l.store.KVPut(l.authorityKey(), next.Bytes())
}

func (l *Ledger) requireAuthority(caller crypto.Address) error {
	current, ok, err := l.Authority()
	if err != nil {
		return err
	}
	if !ok || !current.Equal(caller) {
		return ErrNotAuthority
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Mint credits freshly issued supply to the recipient. Only the configured
// authority may mint.
func (l *Ledger) Mint(caller, to crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.requireAuthority(caller); err != nil {
		return err
	}
	balance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.store.KVPut(l.balanceKey(to), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	return l.store.KVPut(l.supplyKey(), new(big.Int).Add(supply, amount))
}

// Burn destroys supply held by the caller's own account.
func (l *Ledger) Burn(from crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return l.debitAndShrink(from, amount)
}

// BurnFrom destroys supply from the owner's account on behalf of the spender,
// consuming the owner's approval.
func (l *Ledger) BurnFrom(spender, from crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.consumeAllowance(from, spender, amount); err != nil {
		return err
	}
	return l.debitAndShrink(from, amount)
}

func (l *Ledger) debitAndShrink(from crypto.Address, amount *big.Int) error {
	balance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.store.KVPut(l.balanceKey(from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	return l.store.KVPut(l.supplyKey(), new(big.Int).Sub(supply, amount))
}

// Approve sets the spender's allowance over the owner's balance.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return l.store.KVPut(l.allowanceKey(owner, spender), amount)
}

func (l *Ledger) consumeAllowance(owner, spender crypto.Address, amount *big.Int) error {
	allowance, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	return l.store.KVPut(l.allowanceKey(owner, spender), new(big.Int).Sub(allowance, amount))
}

// Transfer moves balance between accounts.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	balance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.store.KVPut(l.balanceKey(from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	return l.store.KVPut(l.balanceKey(to), new(big.Int).Add(toBalance, amount))
}

// TransferFrom moves balance on behalf of the owner, consuming the spender's
// approval first so a failed debit never burns allowance.
func (l *Ledger) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	balance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.consumeAllowance(from, spender, amount); err != nil {
		return err
	}
	if err := l.store.KVPut(l.balanceKey(from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	return l.store.KVPut(l.balanceKey(to), new(big.Int).Add(toBalance, amount))
}
