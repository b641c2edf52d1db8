package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"
)

func TestAuthoritativePriceRescalesAnswer(t *testing.T) {
	source := NewManualSource()
	now := time.Unix(1_800_000_000, 0)
	source.SetAnswer(big.NewInt(300_000_000_000), now) // 3000 at 1e8

	feed := NewFeed(source, 0)
	price, err := feed.AuthoritativePrice()
	if err != nil {
		t.Fatalf("authoritative price: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(3000), PriceScale())
	if price.Cmp(want) != 0 {
		t.Fatalf("unexpected price %s, want %s", price, want)
	}
}

func TestAuthoritativePriceRejectsNonPositiveAnswer(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	for _, answer := range []*big.Int{big.NewInt(0), big.NewInt(-1)} {
		source := NewManualSource()
		source.SetAnswer(answer, now)
		feed := NewFeed(source, 0)
		if _, err := feed.AuthoritativePrice(); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("answer %s: expected ErrInvalidPrice, got %v", answer, err)
		}
	}
}

func TestAuthoritativePriceStalenessIsOptIn(t *testing.T) {
	source := NewManualSource()
	updated := time.Unix(1_800_000_000, 0)
	source.SetAnswer(big.NewInt(100_000_000), updated)
	now := updated.Add(time.Hour)

	// Default behaviour trusts the latest answer regardless of age.
	trusting := NewFeed(source, 0)
	trusting.SetClock(func() time.Time { return now })
	if _, err := trusting.AuthoritativePrice(); err != nil {
		t.Fatalf("unbounded feed rejected an old answer: %v", err)
	}

	bounded := NewFeed(source, time.Minute)
	bounded.SetClock(func() time.Time { return now })
	if _, err := bounded.AuthoritativePrice(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}

	fresh := NewFeed(source, 2*time.Hour)
	fresh.SetClock(func() time.Time { return now })
	if _, err := fresh.AuthoritativePrice(); err != nil {
		t.Fatalf("fresh answer rejected: %v", err)
	}
}

func TestFeedPropagatesSourceFailure(t *testing.T) {
	source := NewManualSource()
	source.FailWith(fmt.Errorf("aggregator offline"))
	feed := NewFeed(source, 0)
	if _, err := feed.AuthoritativePrice(); err == nil {
		t.Fatalf("expected source failure to propagate")
	}
}

func TestManualSourceRoundIDsIncrease(t *testing.T) {
	source := NewManualSource()
	now := time.Unix(1_800_000_000, 0)
	source.SetAnswer(big.NewInt(1), now)
	first, err := source.LatestRoundData()
	if err != nil {
		t.Fatalf("latest round: %v", err)
	}
	source.SetAnswer(big.NewInt(2), now.Add(time.Minute))
	second, err := source.LatestRoundData()
	if err != nil {
		t.Fatalf("latest round: %v", err)
	}
	if second.RoundID.Cmp(first.RoundID) <= 0 {
		t.Fatalf("round ids must increase: %s then %s", first.RoundID, second.RoundID)
	}
}
