package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stablevault/core/events"
)

func TestDistributePaysAndAdvancesSchedule(t *testing.T) {
	interval := 24 * time.Hour
	f := newFixture(t, Policy{TargetStablePct: 40, DividendPct: 5, DividendInterval: interval})
	if err := f.stable.Mint(testVaultAddr, scaled(100, 18)); err != nil {
		t.Fatalf("mint stable: %v", err)
	}

	// The first payout comes due one interval after provisioning; a call two
	// intervals later must still anchor the next due time to execution time.
	executed := f.now.Add(2 * interval)
	f.engine.SetClock(func() time.Time { return executed })

	payout, err := f.engine.Distribute(testOwner)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if want := scaled(5, 18); payout.Cmp(want) != 0 {
		t.Fatalf("unexpected payout %s, want %s", payout, want)
	}
	if want := scaled(95, 18); f.engine.StableBalance().Cmp(want) != 0 {
		t.Fatalf("unexpected vault balance %s", f.engine.StableBalance())
	}
	if f.stable.BalanceOf(testOwner).Cmp(scaled(5, 18)) != 0 {
		t.Fatalf("payout not delivered to principal")
	}
	due, err := f.engine.NextDividendTime()
	if err != nil {
		t.Fatalf("next dividend time: %v", err)
	}
	if !due.Equal(executed.Add(interval)) {
		t.Fatalf("schedule not anchored to execution time: %s", due)
	}
	event, ok := f.recorder.lastOfType(events.TypeDividendsDistributed)
	if !ok {
		t.Fatalf("expected dividends event")
	}
	if event.Attributes()["amount"] != scaled(5, 18).String() {
		t.Fatalf("unexpected event amount %v", event.Attributes())
	}
}

func TestDistributeBeforeDueFailsCleanly(t *testing.T) {
	interval := 24 * time.Hour
	f := newFixture(t, Policy{TargetStablePct: 40, DividendPct: 5, DividendInterval: interval})
	if err := f.stable.Mint(testVaultAddr, scaled(100, 18)); err != nil {
		t.Fatalf("mint stable: %v", err)
	}
	executed := f.now.Add(interval)
	f.engine.SetClock(func() time.Time { return executed })
	if _, err := f.engine.Distribute(testOwner); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	// Immediately retrying is one interval too early.
	_, err := f.engine.Distribute(testOwner)
	if !errors.Is(err, ErrScheduleNotDue) {
		t.Fatalf("expected ErrScheduleNotDue, got %v", err)
	}
	if want := scaled(95, 18); f.engine.StableBalance().Cmp(want) != 0 {
		t.Fatalf("balance changed by early distribute: %s", f.engine.StableBalance())
	}
}

func TestDistributeRejectsNonOwner(t *testing.T) {
	f := newFixture(t, Policy{TargetStablePct: 40, DividendPct: 5, DividendInterval: time.Hour})
	if err := f.stable.Mint(testVaultAddr, scaled(100, 18)); err != nil {
		t.Fatalf("mint stable: %v", err)
	}
	f.engine.SetClock(func() time.Time { return f.now.Add(2 * time.Hour) })
	_, err := f.engine.Distribute(testStranger)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if want := scaled(100, 18); f.engine.StableBalance().Cmp(want) != 0 {
		t.Fatalf("balance changed by unauthorized distribute")
	}
}

func TestDistributeNothingToDistribute(t *testing.T) {
	f := newFixture(t, Policy{TargetStablePct: 40, DividendPct: 5, DividendInterval: time.Hour})
	f.engine.SetClock(func() time.Time { return f.now.Add(2 * time.Hour) })
	_, err := f.engine.Distribute(testOwner)
	if !errors.Is(err, ErrNothingToDistribute) {
		t.Fatalf("expected ErrNothingToDistribute, got %v", err)
	}
}

func TestDistributeUnconfiguredInterval(t *testing.T) {
	f := newFixture(t, Policy{TargetStablePct: 40, DividendPct: 5})
	if err := f.stable.Mint(testVaultAddr, scaled(100, 18)); err != nil {
		t.Fatalf("mint stable: %v", err)
	}
	_, err := f.engine.Distribute(testOwner)
	if !errors.Is(err, ErrScheduleNotConfigured) {
		t.Fatalf("expected ErrScheduleNotConfigured, got %v", err)
	}
}

// failingAsset reports a balance but refuses transfers, standing in for an
// asset holder that rejects the payout.
type failingAsset struct {
	balance *big.Int
}

func (f *failingAsset) BalanceOf(common.Address) *big.Int {
	return new(big.Int).Set(f.balance)
}

func (f *failingAsset) Transfer(_, _ common.Address, _ *big.Int) error {
	return fmt.Errorf("holder rejected transfer")
}

func TestDistributeTransferFailurePropagates(t *testing.T) {
	f := newFixture(t, Policy{TargetStablePct: 40, DividendPct: 5, DividendInterval: time.Hour})
	store := &memStateStore{}
	engine, err := NewEngine(testVaultAddr, Policy{TargetStablePct: 40, DividendPct: 5, DividendInterval: time.Hour},
		store, &failingAsset{balance: scaled(100, 18)}, f.volatile, f.native, f.feed, f.adapter)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetClock(func() time.Time { return f.now })
	if err := engine.Provision(testOwner); err != nil {
		t.Fatalf("provision: %v", err)
	}
	engine.SetClock(func() time.Time { return f.now.Add(2 * time.Hour) })

	_, err = engine.Distribute(testOwner)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	due, err := engine.NextDividendTime()
	if err != nil {
		t.Fatalf("next dividend time: %v", err)
	}
	if !due.Equal(f.now.Add(time.Hour)) {
		t.Fatalf("schedule advanced despite failed payout: %s", due)
	}
}
