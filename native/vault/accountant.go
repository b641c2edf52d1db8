package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	hundred    = big.NewInt(100)
)

// BalanceSource is the read-only slice of holder behaviour the accountant
// needs.
type BalanceSource interface {
	BalanceOf(holder common.Address) *big.Int
}

// Accountant is a stateless view combining the externally-held balances and
// the authoritative price into a total base-currency value.
type Accountant struct {
	vault    common.Address
	stable   BalanceSource
	volatile BalanceSource
}

// NewAccountant constructs an accountant over the vault's two asset holders.
func NewAccountant(vaultAddr common.Address, stable, volatile BalanceSource) *Accountant {
	return &Accountant{vault: vaultAddr, stable: stable, volatile: volatile}
}

// Snapshot reads both balances live. Nothing is cached across calls.
func (a *Accountant) Snapshot() Snapshot {
	return Snapshot{
		Stable:   a.stable.BalanceOf(a.vault),
		Volatile: a.volatile.BalanceOf(a.vault),
	}
}

// TotalValue prices a snapshot in base-currency units: the stable balance is
// 1:1 while the volatile balance is converted at the 1e18-scaled price.
func TotalValue(snap Snapshot, price *big.Int) *big.Int {
	total := new(big.Int)
	if snap.Stable != nil {
		total.Set(snap.Stable)
	}
	if snap.Volatile != nil && price != nil {
		volatileValue := new(big.Int).Mul(snap.Volatile, price)
		volatileValue.Quo(volatileValue, priceScale)
		total.Add(total, volatileValue)
	}
	return total
}
