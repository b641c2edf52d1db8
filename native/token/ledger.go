package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errInvalidAmount         = errors.New("token: amount must be positive")
	errInsufficientBalance   = errors.New("token: insufficient balance")
	errInsufficientAllowance = errors.New("token: insufficient allowance")
)

// ErrInvalidAmount is returned when a transfer, approval, or mint receives a
// nil or non-positive amount.
var ErrInvalidAmount = errInvalidAmount

// ErrInsufficientBalance is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientBalance = errInsufficientBalance

// ErrInsufficientAllowance is returned when TransferFrom exceeds the approved
// spending allowance.
var ErrInsufficientAllowance = errInsufficientAllowance

// Ledger keeps fungible balances with standard transfer/approve semantics. It
// backs both vault assets in local runs and tests; production deployments
// substitute any holder satisfying the same methods.
type Ledger struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewLedger constructs an empty ledger identified by the supplied symbol.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:     symbol,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Symbol returns the ledger's asset symbol.
func (l *Ledger) Symbol() string {
	if l == nil {
		return ""
	}
	return l.symbol
}

// BalanceOf returns a defensive copy of the holder's balance.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(holder)
}

func (l *Ledger) balanceLocked(holder common.Address) *big.Int {
	if bal, ok := l.balances[holder]; ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Mint credits the holder with newly issued units. Used at provisioning time.
func (l *Ledger) Mint(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[holder] = new(big.Int).Add(l.balanceLocked(holder), amount)
	return nil
}

// Burn destroys units held by the holder.
func (l *Ledger) Burn(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(holder)
	if bal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	l.balances[holder] = bal.Sub(bal, amount)
	return nil
}

// Transfer moves units between holders. Zero-amount transfers are rejected so
// callers surface empty payouts explicitly.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

func (l *Ledger) transferLocked(from, to common.Address, amount *big.Int) error {
	fromBal := l.balanceLocked(from)
	if fromBal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	l.balances[from] = fromBal.Sub(fromBal, amount)
	l.balances[to] = new(big.Int).Add(l.balanceLocked(to), amount)
	return nil
}

// Approve sets the spender's allowance over the owner's balance to exactly the
// supplied amount, replacing any previous value. A zero amount clears the
// allowance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	grants, ok := l.allowances[owner]
	if !ok {
		grants = make(map[common.Address]*big.Int)
		l.allowances[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns a defensive copy of the spender's remaining allowance.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if grants, ok := l.allowances[owner]; ok {
		if remaining, ok := grants[spender]; ok && remaining != nil {
			return new(big.Int).Set(remaining)
		}
	}
	return big.NewInt(0)
}

// TransferFrom moves units from the owner to the recipient on behalf of the
// spender, consuming allowance.
func (l *Ledger) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	grants, ok := l.allowances[owner]
	if !ok {
		return errInsufficientAllowance
	}
	remaining, ok := grants[spender]
	if !ok || remaining == nil || remaining.Cmp(amount) < 0 {
		return errInsufficientAllowance
	}
	if err := l.transferLocked(owner, to, amount); err != nil {
		return err
	}
	grants[spender] = new(big.Int).Sub(remaining, amount)
	return nil
}
