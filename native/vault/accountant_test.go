package vault

import (
	"math/big"
	"testing"

	"stablevault/native/token"
)

func TestTotalValuePricesVolatileAtScale(t *testing.T) {
	snap := Snapshot{Stable: scaled(10, 18), Volatile: scaled(1, 16)}
	total := TotalValue(snap, scaled(3000, 18))
	if want := scaled(40, 18); total.Cmp(want) != 0 {
		t.Fatalf("unexpected total %s, want %s", total, want)
	}
}

func TestTotalValueHandlesNilParts(t *testing.T) {
	if total := TotalValue(Snapshot{}, nil); total.Sign() != 0 {
		t.Fatalf("empty snapshot must value to zero, got %s", total)
	}
	if total := TotalValue(Snapshot{Stable: big.NewInt(7)}, nil); total.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("stable-only snapshot mispriced: %s", total)
	}
}

func TestSnapshotReadsLiveBalances(t *testing.T) {
	stable := token.NewLedger("USDC")
	volatile := token.NewLedger("WETH")
	accountant := NewAccountant(testVaultAddr, stable, volatile)

	first := accountant.Snapshot()
	if first.Stable.Sign() != 0 || first.Volatile.Sign() != 0 {
		t.Fatalf("expected empty snapshot, got %+v", first)
	}
	if err := stable.Mint(testVaultAddr, big.NewInt(42)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	second := accountant.Snapshot()
	if second.Stable.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("snapshot cached a stale balance: %s", second.Stable)
	}
}
