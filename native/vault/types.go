package vault

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stablevault/native/swap"
)

// State is the durable vault record: the single authorized principal and the
// next dividend due time. Everything else is derived fresh per call.
type State struct {
	Owner            common.Address
	NextDividendTime uint64
}

// Clone returns a copy safe for the caller to mutate.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Snapshot captures the two balances read live from the asset holders. It is
// never cached across calls.
type Snapshot struct {
	Stable   *big.Int
	Volatile *big.Int
}

// Direction labels the corrective trade chosen by a rebalance pass.
type Direction string

const (
	// DirectionHold means the allocation already matched the target.
	DirectionHold Direction = "hold"
	// DirectionSell means volatile units were sold for stable units.
	DirectionSell Direction = "sell"
	// DirectionBuy means stable units were spent on volatile units.
	DirectionBuy Direction = "buy"
)

// Result reports a settled rebalance pass: the direction taken, the realized
// trade legs, and the balances re-read after settlement.
type Result struct {
	Direction       Direction
	AmountIn        *big.Int
	AmountOut       *big.Int
	StableBalance   *big.Int
	VolatileBalance *big.Int
}

// Policy fixes the vault's allocation and dividend parameters at provisioning
// time. There are no runtime mutators for any of them.
type Policy struct {
	TargetStablePct  uint64
	DividendPct      uint64
	DividendInterval time.Duration
	QuoteProbe       *big.Int
}

// Validate rejects percentages outside [0,100] and fills the probe default.
func (p Policy) Validate() (Policy, error) {
	if p.TargetStablePct > 100 {
		return Policy{}, fmt.Errorf("vault: target stable percentage %d out of range", p.TargetStablePct)
	}
	if p.DividendPct > 100 {
		return Policy{}, fmt.Errorf("vault: dividend percentage %d out of range", p.DividendPct)
	}
	if p.QuoteProbe == nil || p.QuoteProbe.Sign() <= 0 {
		// 0.01 volatile units keeps the informational probe cheap.
		p.QuoteProbe = new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)
	}
	return p, nil
}

// Asset is the slice of holder behaviour the engine consumes directly.
type Asset interface {
	BalanceOf(holder common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

// WrappedAsset additionally converts received native value 1:1 into volatile
// units.
type WrappedAsset interface {
	Asset
	Deposit(holder common.Address, amount *big.Int) error
}

// PriceSource resolves the authoritative 1e18-scaled price.
type PriceSource interface {
	AuthoritativePrice() (*big.Int, error)
}

// Trader executes the single corrective trade and serves informational market
// quotes.
type Trader interface {
	Sell(ctx context.Context, volatileIn, price *big.Int) (swap.Receipt, error)
	Buy(ctx context.Context, stableIn, price *big.Int) (swap.Receipt, error)
	MarketQuote(ctx context.Context, probeIn *big.Int) (*big.Int, error)
}

// StateStore persists the vault record between operations.
type StateStore interface {
	LoadVault() (*State, bool, error)
	SaveVault(*State) error
}
