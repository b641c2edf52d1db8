package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stablevault/core/events"
)

// Engine orchestrates the vault's mutating operations: the corrective
// rebalance trade, the dividend payout, and principal administration. Each
// top-level operation runs to completion under the engine mutex before the
// next may start.
type Engine struct {
	mu         sync.Mutex
	vault      common.Address
	policy     Policy
	state      StateStore
	stable     Asset
	volatile   WrappedAsset
	native     Asset
	oracle     PriceSource
	trader     Trader
	accountant *Accountant
	emitter    events.Emitter
	clock      func() time.Time
}

// NewEngine constructs an engine over the supplied collaborators. The policy
// is validated once here; it has no runtime mutators.
func NewEngine(vaultAddr common.Address, policy Policy, state StateStore, stable Asset, volatile WrappedAsset, native Asset, oracle PriceSource, trader Trader) (*Engine, error) {
	validated, err := policy.Validate()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("vault: state store required")
	}
	return &Engine{
		vault:      vaultAddr,
		policy:     validated,
		state:      state,
		stable:     stable,
		volatile:   volatile,
		native:     native,
		oracle:     oracle,
		trader:     trader,
		accountant: NewAccountant(vaultAddr, stable, volatile),
		emitter:    events.NoopEmitter{},
		clock:      time.Now,
	}, nil
}

// SetEmitter wires the downstream event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil || emitter == nil {
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

// Provision writes the initial vault record when none exists. The first
// dividend comes due one full interval after provisioning.
func (e *Engine) Provision(owner common.Address) error {
	if owner == (common.Address{}) {
		return ErrZeroAddress
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok, err := e.state.LoadVault(); err != nil {
		return err
	} else if ok {
		return nil
	}
	st := &State{
		Owner:            owner,
		NextDividendTime: uint64(e.clock().Add(e.policy.DividendInterval).Unix()),
	}
	return e.state.SaveVault(st)
}

func (e *Engine) loadState() (*State, error) {
	st, ok, err := e.state.LoadVault()
	if err != nil {
		return nil, err
	}
	if !ok || st == nil {
		return nil, ErrNotProvisioned
	}
	return st, nil
}

func (e *Engine) requireOwner(caller common.Address) (*State, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if caller != st.Owner {
		return nil, ErrNotOwner
	}
	return st, nil
}

// Address returns the vault's holder address in ledger space.
func (e *Engine) Address() common.Address {
	return e.vault
}

// Owner returns the current principal.
func (e *Engine) Owner() (common.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.loadState()
	if err != nil {
		return common.Address{}, err
	}
	return st.Owner, nil
}

// NextDividendTime returns the next dividend due time.
func (e *Engine) NextDividendTime() (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.loadState()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(st.NextDividendTime), 0), nil
}

// StableBalance reads the live stable balance.
func (e *Engine) StableBalance() *big.Int {
	return e.stable.BalanceOf(e.vault)
}

// VolatileBalance reads the live volatile balance.
func (e *Engine) VolatileBalance() *big.Int {
	return e.volatile.BalanceOf(e.vault)
}

// NativeBalance reads the live unwrapped native balance.
func (e *Engine) NativeBalance() *big.Int {
	if e.native == nil {
		return big.NewInt(0)
	}
	return e.native.BalanceOf(e.vault)
}

// AuthoritativePrice returns the oracle price at 1e18 scale.
func (e *Engine) AuthoritativePrice() (*big.Int, error) {
	return e.oracle.AuthoritativePrice()
}

// TotalValue prices the current snapshot in base-currency units.
func (e *Engine) TotalValue() (*big.Int, error) {
	price, err := e.oracle.AuthoritativePrice()
	if err != nil {
		return nil, err
	}
	return TotalValue(e.accountant.Snapshot(), price), nil
}

// Rebalance decides and executes at most one corrective trade moving the
// stable share of total value toward the configured target. The trade size is
// fixed from pre-call reads before control crosses into the venue; a venue
// failure aborts the whole pass with zero observable state change, and
// balances are re-read fresh after a successful trade.
func (e *Engine) Rebalance(ctx context.Context, caller common.Address) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.requireOwner(caller); err != nil {
		return nil, err
	}

	snap := e.accountant.Snapshot()
	price, err := e.oracle.AuthoritativePrice()
	if err != nil {
		return nil, err
	}
	total := TotalValue(snap, price)
	if total.Sign() == 0 {
		return nil, ErrZeroTotalValue
	}

	currentPct := new(big.Int).Mul(snap.Stable, hundred)
	currentPct.Quo(currentPct, total)
	target := new(big.Int).SetUint64(e.policy.TargetStablePct)

	result := &Result{Direction: DirectionHold, AmountIn: big.NewInt(0), AmountOut: big.NewInt(0)}
	switch currentPct.Cmp(target) {
	case -1:
		targetValue := new(big.Int).Mul(target, total)
		targetValue.Quo(targetValue, hundred)
		deficit := new(big.Int).Sub(targetValue, snap.Stable)
		volatileToSell := new(big.Int).Mul(deficit, priceScale)
		volatileToSell.Quo(volatileToSell, price)
		if volatileToSell.Cmp(snap.Volatile) > 0 {
			volatileToSell.Set(snap.Volatile)
		}
		if volatileToSell.Sign() == 0 {
			return nil, ErrNothingToTrade
		}
		receipt, err := e.trader.Sell(ctx, volatileToSell, price)
		if err != nil {
			return nil, err
		}
		result.Direction = DirectionSell
		result.AmountIn = receipt.AmountIn
		result.AmountOut = receipt.AmountOut
		e.emitter.Emit(events.Sold{AmountIn: receipt.AmountIn, AmountOut: receipt.AmountOut})
	case 1:
		targetValue := new(big.Int).Mul(target, total)
		targetValue.Quo(targetValue, hundred)
		excess := new(big.Int).Sub(snap.Stable, targetValue)
		if excess.Sign() == 0 {
			return nil, ErrNothingToTrade
		}
		receipt, err := e.trader.Buy(ctx, excess, price)
		if err != nil {
			return nil, err
		}
		result.Direction = DirectionBuy
		result.AmountIn = receipt.AmountIn
		result.AmountOut = receipt.AmountOut
		e.emitter.Emit(events.Bought{AmountIn: receipt.AmountIn, AmountOut: receipt.AmountOut})
	}

	settled := e.accountant.Snapshot()
	result.StableBalance = settled.Stable
	result.VolatileBalance = settled.Volatile
	e.emitter.Emit(events.Rebalanced{StableBalance: settled.Stable, VolatileBalance: settled.Volatile})
	return result, nil
}

// RefreshMarketQuote probes the venue's pricing curve with the fixed probe
// size and emits the informational quote. Open to any caller; the result
// never feeds the decision path.
func (e *Engine) RefreshMarketQuote(ctx context.Context) (*big.Int, error) {
	quote, err := e.trader.MarketQuote(ctx, e.policy.QuoteProbe)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PriceUpdated{ProbeIn: new(big.Int).Set(e.policy.QuoteProbe), QuoteOut: quote})
	return quote, nil
}

// WrapNative converts the vault's entire native balance 1:1 into volatile
// units. Open to any caller.
func (e *Engine) WrapNative() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.native == nil {
		return nil, ErrInvalidAmount
	}
	amount := e.native.BalanceOf(e.vault)
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := e.volatile.Deposit(e.vault, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return amount, nil
}

// TransferOwnership moves the principal to a new address in a single,
// immediate, irrevocable step. There is no acceptance handshake.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrZeroAddress
	}
	previous := st.Owner
	updated := st.Clone()
	updated.Owner = newOwner
	if err := e.state.SaveVault(updated); err != nil {
		return err
	}
	e.emitter.Emit(events.OwnershipTransferred{Previous: previous, Current: newOwner})
	return nil
}

// CloseAccount sweeps both balances to the principal. A failed second leg is
// compensated by returning the first so the operation never settles halfway.
func (e *Engine) CloseAccount(caller common.Address) (stableSwept, volatileSwept *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.requireOwner(caller)
	if err != nil {
		return nil, nil, err
	}
	stableSwept = e.stable.BalanceOf(e.vault)
	volatileSwept = e.volatile.BalanceOf(e.vault)
	if stableSwept.Sign() > 0 {
		if err := e.stable.Transfer(e.vault, st.Owner, stableSwept); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if volatileSwept.Sign() > 0 {
		if err := e.volatile.Transfer(e.vault, st.Owner, volatileSwept); err != nil {
			if stableSwept.Sign() > 0 {
				if rerr := e.stable.Transfer(st.Owner, e.vault, stableSwept); rerr != nil {
					return nil, nil, fmt.Errorf("%w: %v; stable leg stranded with principal: %v", ErrTransferFailed, err, rerr)
				}
			}
			return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	return stableSwept, volatileSwept, nil
}
