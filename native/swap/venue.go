package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidAmount indicates a nil or non-positive trade input.
	ErrInvalidAmount = errors.New("swap: amount must be positive")
	// ErrInsufficientBalance indicates the requested input exceeds the
	// currently held balance.
	ErrInsufficientBalance = errors.New("swap: insufficient balance for trade input")
	// ErrApprovalFailure indicates the venue spending allowance could not be
	// granted.
	ErrApprovalFailure = errors.New("swap: venue allowance rejected")
	// ErrSwapFailure indicates the venue rejected or failed the trade.
	ErrSwapFailure = errors.New("swap: venue execution failed")
)

var basisPoints = big.NewInt(10_000)

var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ExactInputParams describes a single-pool exact-input trade.
type ExactInputParams struct {
	TokenIn      common.Address
	TokenOut     common.Address
	Fee          uint32
	Recipient    common.Address
	Deadline     time.Time
	AmountIn     *big.Int
	MinAmountOut *big.Int
	PriceLimit   *big.Int
}

// Quoter exposes the venue's side-effect-free pricing curve.
type Quoter interface {
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn, priceLimit *big.Int) (*big.Int, error)
}

// Executor performs the venue's exact-input swap.
type Executor interface {
	SwapExactInput(ctx context.Context, params ExactInputParams) (*big.Int, error)
}

// Venue combines quoting and execution.
type Venue interface {
	Quoter
	Executor
}

// Asset is the slice of ledger behaviour the adapter needs: balance reads for
// differencing and allowance grants ahead of each trade.
type Asset interface {
	BalanceOf(holder common.Address) *big.Int
	Approve(owner, spender common.Address, amount *big.Int) error
}

// Config carries the venue policy constants: fee tier, trade deadline window,
// and the optional slippage floor. Defaults are a 0.30% fee tier, a five
// minute deadline, and no floor.
type Config struct {
	Fee         uint32
	Deadline    time.Duration
	SlippageBps uint64
}

// Normalise applies defaults to unset values.
func (c Config) Normalise() Config {
	cfg := c
	if cfg.Fee == 0 {
		cfg.Fee = 3000
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 5 * time.Minute
	}
	return cfg
}

// Receipt reports the realized legs of an executed trade.
type Receipt struct {
	AmountIn  *big.Int
	AmountOut *big.Int
}

// Adapter executes bounded-size trades between the vault's two assets against
// an external venue. Trade sizes are fixed by the caller before control
// crosses into the venue; the adapter only grants a fresh one-shot allowance,
// invokes the swap, and measures the realized output by balance differencing.
type Adapter struct {
	vault         common.Address
	venueSpender  common.Address
	stableToken   common.Address
	volatileToken common.Address
	stable        Asset
	volatile      Asset
	venue         Venue
	cfg           Config
	clock         func() time.Time
}

// NewAdapter constructs an adapter trading on behalf of the vault address.
func NewAdapter(vault, venueSpender, stableToken, volatileToken common.Address, stable, volatile Asset, venue Venue, cfg Config) *Adapter {
	return &Adapter{
		vault:         vault,
		venueSpender:  venueSpender,
		stableToken:   stableToken,
		volatileToken: volatileToken,
		stable:        stable,
		volatile:      volatile,
		venue:         venue,
		cfg:           cfg.Normalise(),
		clock:         time.Now,
	}
}

// SetClock overrides the time source used for trade deadlines. Intended for
// tests.
func (a *Adapter) SetClock(clock func() time.Time) {
	if a == nil || clock == nil {
		return
	}
	a.clock = clock
}

// minOutput derives the slippage floor from the reference price. A zero
// configured floor accepts any output.
func (a *Adapter) minOutput(expected *big.Int) *big.Int {
	if a.cfg.SlippageBps == 0 || expected == nil {
		return big.NewInt(0)
	}
	keep := new(big.Int).Sub(basisPoints, new(big.Int).SetUint64(a.cfg.SlippageBps))
	if keep.Sign() <= 0 {
		return big.NewInt(0)
	}
	floor := new(big.Int).Mul(expected, keep)
	return floor.Quo(floor, basisPoints)
}

// Sell trades exactly volatileIn volatile units for stable units. price is the
// authoritative 1e18-scaled reference used only to derive the optional
// slippage floor.
func (a *Adapter) Sell(ctx context.Context, volatileIn, price *big.Int) (Receipt, error) {
	if volatileIn == nil || volatileIn.Sign() <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	if a.volatile.BalanceOf(a.vault).Cmp(volatileIn) < 0 {
		return Receipt{}, ErrInsufficientBalance
	}
	var expected *big.Int
	if price != nil && price.Sign() > 0 {
		expected = new(big.Int).Mul(volatileIn, price)
		expected.Quo(expected, priceScale)
	}
	return a.execute(ctx, a.volatile, a.stable, a.volatileToken, a.stableToken, volatileIn, a.minOutput(expected))
}

// Buy trades exactly stableIn stable units for volatile units.
func (a *Adapter) Buy(ctx context.Context, stableIn, price *big.Int) (Receipt, error) {
	if stableIn == nil || stableIn.Sign() <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	if a.stable.BalanceOf(a.vault).Cmp(stableIn) < 0 {
		return Receipt{}, ErrInsufficientBalance
	}
	var expected *big.Int
	if price != nil && price.Sign() > 0 {
		expected = new(big.Int).Mul(stableIn, priceScale)
		expected.Quo(expected, price)
	}
	return a.execute(ctx, a.stable, a.volatile, a.stableToken, a.volatileToken, stableIn, a.minOutput(expected))
}

func (a *Adapter) execute(ctx context.Context, assetIn, assetOut Asset, tokenIn, tokenOut common.Address, amountIn, minOut *big.Int) (Receipt, error) {
	// Allowance is granted fresh for exactly this input, never accumulated.
	if err := assetIn.Approve(a.vault, a.venueSpender, amountIn); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrApprovalFailure, err)
	}
	before := assetOut.BalanceOf(a.vault)
	_, err := a.venue.SwapExactInput(ctx, ExactInputParams{
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		Fee:          a.cfg.Fee,
		Recipient:    a.vault,
		Deadline:     a.clock().Add(a.cfg.Deadline),
		AmountIn:     new(big.Int).Set(amountIn),
		MinAmountOut: minOut,
	})
	if err != nil {
		// The abandoned trade must not leave the venue holding a pull right.
		_ = assetIn.Approve(a.vault, a.venueSpender, big.NewInt(0))
		return Receipt{}, fmt.Errorf("%w: %v", ErrSwapFailure, err)
	}
	realized := new(big.Int).Sub(assetOut.BalanceOf(a.vault), before)
	return Receipt{AmountIn: new(big.Int).Set(amountIn), AmountOut: realized}, nil
}

// MarketQuote probes the venue's pricing curve for the supplied volatile input
// without side effects. The result is informational only.
func (a *Adapter) MarketQuote(ctx context.Context, probeIn *big.Int) (*big.Int, error) {
	if probeIn == nil || probeIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	out, err := a.venue.Quote(ctx, a.volatileToken, a.stableToken, a.cfg.Fee, new(big.Int).Set(probeIn), nil)
	if err != nil {
		return nil, fmt.Errorf("swap: quote: %w", err)
	}
	return out, nil
}
