package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WrappedLedger wraps a native-currency ledger so received native value can be
// converted 1:1 into fungible volatile units.
type WrappedLedger struct {
	*Ledger
	native *Ledger
}

// NewWrappedLedger constructs a wrapped ledger backed by the supplied native
// ledger.
func NewWrappedLedger(symbol string, native *Ledger) *WrappedLedger {
	return &WrappedLedger{Ledger: NewLedger(symbol), native: native}
}

// Deposit burns the holder's native balance and mints the same amount of
// wrapped units. The conversion is exact and irreversible from the vault's
// point of view.
func (w *WrappedLedger) Deposit(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := w.native.Burn(holder, amount); err != nil {
		return err
	}
	return w.Mint(holder, amount)
}
