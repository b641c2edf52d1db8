package vault

import "errors"

var (
	// ErrNotOwner rejects mutating calls from anyone but the vault principal.
	ErrNotOwner = errors.New("vault: caller is not the owner")
	// ErrInvalidAmount indicates a zero or insufficient input.
	ErrInvalidAmount = errors.New("vault: amount must be positive")
	// ErrZeroTotalValue guards the percentage division when both balances are
	// empty.
	ErrZeroTotalValue = errors.New("vault: total value is zero")
	// ErrNothingToTrade indicates the corrective trade size rounded to zero.
	ErrNothingToTrade = errors.New("vault: nothing to trade")
	// ErrScheduleNotDue indicates the dividend timer has not elapsed.
	ErrScheduleNotDue = errors.New("vault: dividend schedule not due")
	// ErrScheduleNotConfigured indicates a non-positive dividend interval.
	ErrScheduleNotConfigured = errors.New("vault: dividend interval not configured")
	// ErrZeroAddress rejects the zero address where a principal is required.
	ErrZeroAddress = errors.New("vault: zero address")
	// ErrTransferFailed wraps asset-holder transfer failures.
	ErrTransferFailed = errors.New("vault: transfer failed")
	// ErrNothingToDistribute indicates the dividend payout computed to zero.
	ErrNothingToDistribute = errors.New("vault: nothing to distribute")
	// ErrNotProvisioned indicates the vault state record is missing.
	ErrNotProvisioned = errors.New("vault: state not provisioned")
)
