package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PoolAsset is the ledger behaviour the in-memory pool needs to settle trades:
// pulling the input leg via allowance and paying the output leg from its own
// inventory.
type PoolAsset interface {
	BalanceOf(holder common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, owner, to common.Address, amount *big.Int) error
}

// OraclePricedPool is an in-memory venue that fills exact-input trades at a
// reference price, less an optional fee. It backs tests and local runs; a
// zero-fee pool fills with no slippage, so value is conserved exactly across a
// trade.
type OraclePricedPool struct {
	mu            sync.RWMutex
	addr          common.Address
	stableToken   common.Address
	volatileToken common.Address
	stable        PoolAsset
	volatile      PoolAsset
	price         *big.Int
	feeBps        uint64
	clock         func() time.Time
}

// NewOraclePricedPool constructs a pool settling between the supplied ledgers
// at the given 1e18-scaled price.
func NewOraclePricedPool(addr, stableToken, volatileToken common.Address, stable, volatile PoolAsset, price *big.Int, feeBps uint64) *OraclePricedPool {
	pool := &OraclePricedPool{
		addr:          addr,
		stableToken:   stableToken,
		volatileToken: volatileToken,
		stable:        stable,
		volatile:      volatile,
		price:         big.NewInt(0),
		feeBps:        feeBps,
		clock:         time.Now,
	}
	if price != nil {
		pool.price = new(big.Int).Set(price)
	}
	return pool
}

// Address returns the pool's settlement address, the spender the vault
// approves ahead of each trade.
func (p *OraclePricedPool) Address() common.Address {
	if p == nil {
		return common.Address{}
	}
	return p.addr
}

// SetPrice updates the fill price.
func (p *OraclePricedPool) SetPrice(price *big.Int) {
	if p == nil || price == nil {
		return
	}
	p.mu.Lock()
	p.price = new(big.Int).Set(price)
	p.mu.Unlock()
}

// SetClock overrides the time source used for deadline checks. Intended for
// tests.
func (p *OraclePricedPool) SetClock(clock func() time.Time) {
	if p == nil || clock == nil {
		return
	}
	p.clock = clock
}

func (p *OraclePricedPool) fillAmount(tokenIn common.Address, amountIn *big.Int) (*big.Int, error) {
	p.mu.RLock()
	price := new(big.Int).Set(p.price)
	feeBps := p.feeBps
	p.mu.RUnlock()
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("pool: fill price not configured")
	}
	out := new(big.Int)
	switch tokenIn {
	case p.volatileToken:
		out.Mul(amountIn, price)
		out.Quo(out, priceScale)
	case p.stableToken:
		out.Mul(amountIn, priceScale)
		out.Quo(out, price)
	default:
		return nil, fmt.Errorf("pool: unknown input token %s", tokenIn.Hex())
	}
	if feeBps > 0 {
		keep := new(big.Int).Sub(basisPoints, new(big.Int).SetUint64(feeBps))
		out.Mul(out, keep)
		out.Quo(out, basisPoints)
	}
	return out, nil
}

// Quote implements the Quoter interface.
func (p *OraclePricedPool) Quote(_ context.Context, tokenIn, _ common.Address, _ uint32, amountIn, _ *big.Int) (*big.Int, error) {
	if p == nil {
		return nil, fmt.Errorf("pool: not configured")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("pool: quote amount must be positive")
	}
	return p.fillAmount(tokenIn, amountIn)
}

// SwapExactInput implements the Executor interface. The input leg is pulled
// through the allowance the trader granted beforehand and the output leg is
// paid from pool inventory; a failed pull or short inventory rejects the trade
// with no balance movement.
func (p *OraclePricedPool) SwapExactInput(_ context.Context, params ExactInputParams) (*big.Int, error) {
	if p == nil {
		return nil, fmt.Errorf("pool: not configured")
	}
	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("pool: swap amount must be positive")
	}
	if !params.Deadline.IsZero() && p.clock().After(params.Deadline) {
		return nil, fmt.Errorf("pool: deadline exceeded")
	}
	out, err := p.fillAmount(params.TokenIn, params.AmountIn)
	if err != nil {
		return nil, err
	}
	if params.MinAmountOut != nil && out.Cmp(params.MinAmountOut) < 0 {
		return nil, fmt.Errorf("pool: output %s below minimum %s", out, params.MinAmountOut)
	}
	var assetIn, assetOut PoolAsset
	switch params.TokenIn {
	case p.volatileToken:
		assetIn, assetOut = p.volatile, p.stable
	default:
		assetIn, assetOut = p.stable, p.volatile
	}
	if assetOut.BalanceOf(p.addr).Cmp(out) < 0 {
		return nil, fmt.Errorf("pool: insufficient inventory for fill")
	}
	if err := assetIn.TransferFrom(p.addr, params.Recipient, p.addr, params.AmountIn); err != nil {
		return nil, fmt.Errorf("pool: pull input: %w", err)
	}
	if err := assetOut.Transfer(p.addr, params.Recipient, out); err != nil {
		// Return the pulled input so a failed fill never strands funds.
		if rerr := assetIn.Transfer(p.addr, params.Recipient, params.AmountIn); rerr != nil {
			return nil, fmt.Errorf("pool: pay output: %v; input stranded in pool: %w", err, rerr)
		}
		return nil, fmt.Errorf("pool: pay output: %w", err)
	}
	return out, nil
}
