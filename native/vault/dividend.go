package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stablevault/core/events"
)

// Distribute pays the configured percentage of the stable balance to the
// principal once the schedule is due. The next due time is anchored to the
// payout's execution time, not the previous due time: missed periods are
// absorbed by shifting the schedule forward, never backfilled.
func (e *Engine) Distribute(caller common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.requireOwner(caller)
	if err != nil {
		return nil, err
	}
	if e.policy.DividendInterval <= 0 {
		return nil, ErrScheduleNotConfigured
	}
	if st.Owner == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	now := e.clock()
	if uint64(now.Unix()) < st.NextDividendTime {
		return nil, ErrScheduleNotDue
	}

	stableBalance := e.stable.BalanceOf(e.vault)
	payout := new(big.Int).Mul(stableBalance, new(big.Int).SetUint64(e.policy.DividendPct))
	payout.Quo(payout, hundred)
	if payout.Sign() == 0 {
		return nil, ErrNothingToDistribute
	}

	if err := e.stable.Transfer(e.vault, st.Owner, payout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	updated := st.Clone()
	updated.NextDividendTime = uint64(now.Add(e.policy.DividendInterval).Unix())
	if err := e.state.SaveVault(updated); err != nil {
		// The schedule advance and the payout commit together or not at all.
		if rerr := e.stable.Transfer(st.Owner, e.vault, payout); rerr != nil {
			return nil, fmt.Errorf("vault: save schedule: %v; payout stranded with principal: %w", err, rerr)
		}
		return nil, err
	}

	e.emitter.Emit(events.DividendsDistributed{Amount: payout})
	return payout, nil
}
