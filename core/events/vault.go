package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypePriceUpdated is emitted when a fresh market quote is observed.
	TypePriceUpdated = "vault.price_updated"
	// TypeRebalanced is emitted after every settled rebalance pass.
	TypeRebalanced = "vault.rebalanced"
	// TypeDividendsDistributed is emitted when a dividend payout succeeds.
	TypeDividendsDistributed = "vault.dividends_distributed"
	// TypeOwnershipTransferred is emitted when the vault principal changes.
	TypeOwnershipTransferred = "vault.ownership_transferred"
	// TypeBought is emitted when stable units are spent for volatile units.
	TypeBought = "vault.bought"
	// TypeSold is emitted when volatile units are sold for stable units.
	TypeSold = "vault.sold"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PriceUpdated carries an informational market quote. The quote is telemetry
// only and is never consumed by the rebalance decision path.
type PriceUpdated struct {
	ProbeIn  *big.Int
	QuoteOut *big.Int
}

func (PriceUpdated) EventType() string { return TypePriceUpdated }

func (e PriceUpdated) Attributes() map[string]string {
	return map[string]string{
		"probeIn":  amountString(e.ProbeIn),
		"quoteOut": amountString(e.QuoteOut),
	}
}

// Rebalanced reports the balances observed after a settled rebalance pass.
type Rebalanced struct {
	StableBalance   *big.Int
	VolatileBalance *big.Int
}

func (Rebalanced) EventType() string { return TypeRebalanced }

func (e Rebalanced) Attributes() map[string]string {
	return map[string]string{
		"stableBalance":   amountString(e.StableBalance),
		"volatileBalance": amountString(e.VolatileBalance),
	}
}

// DividendsDistributed reports a successful dividend payout.
type DividendsDistributed struct {
	Amount *big.Int
}

func (DividendsDistributed) EventType() string { return TypeDividendsDistributed }

func (e DividendsDistributed) Attributes() map[string]string {
	return map[string]string{"amount": amountString(e.Amount)}
}

// OwnershipTransferred reports a principal change.
type OwnershipTransferred struct {
	Previous common.Address
	Current  common.Address
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

func (e OwnershipTransferred) Attributes() map[string]string {
	return map[string]string{
		"previousOwner": e.Previous.Hex(),
		"newOwner":      e.Current.Hex(),
	}
}

// Bought reports a stable-for-volatile trade with realized amounts.
type Bought struct {
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (Bought) EventType() string { return TypeBought }

func (e Bought) Attributes() map[string]string {
	return map[string]string{
		"amountIn":  amountString(e.AmountIn),
		"amountOut": amountString(e.AmountOut),
	}
}

// Sold reports a volatile-for-stable trade with realized amounts.
type Sold struct {
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (Sold) EventType() string { return TypeSold }

func (e Sold) Attributes() map[string]string {
	return map[string]string{
		"amountIn":  amountString(e.AmountIn),
		"amountOut": amountString(e.AmountOut),
	}
}
