package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestTransferMovesBalance(t *testing.T) {
	ledger := NewLedger("USDC")
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ledger.BalanceOf(alice).Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected sender balance %s", ledger.BalanceOf(alice))
	}
	if ledger.BalanceOf(bob).Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected recipient balance %s", ledger.BalanceOf(bob))
	}
}

func TestTransferRejectsZeroAndOverdraft(t *testing.T) {
	ledger := NewLedger("USDC")
	if err := ledger.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero transfer: expected ErrInvalidAmount, got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft: expected ErrInsufficientBalance, got %v", err)
	}
	if ledger.BalanceOf(alice).Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("rejected transfers changed balance")
	}
}

func TestApproveReplacesAllowance(t *testing.T) {
	ledger := NewLedger("WETH")
	if err := ledger.Approve(alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Approve(alice, bob, big.NewInt(7)); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if ledger.Allowance(alice, bob).Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("allowance accumulated instead of replacing: %s", ledger.Allowance(alice, bob))
	}
	if err := ledger.Approve(alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("clear approve: %v", err)
	}
	if ledger.Allowance(alice, bob).Sign() != 0 {
		t.Fatalf("zero approve did not clear the grant")
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger := NewLedger("WETH")
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(bob, alice, carol, big.NewInt(20)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if ledger.BalanceOf(carol).Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("recipient not credited: %s", ledger.BalanceOf(carol))
	}
	if ledger.Allowance(alice, bob).Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("allowance not consumed: %s", ledger.Allowance(alice, bob))
	}
	if err := ledger.TransferFrom(bob, alice, carol, big.NewInt(11)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestTransferFromWithoutGrant(t *testing.T) {
	ledger := NewLedger("WETH")
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom(bob, alice, carol, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	ledger := NewLedger("USDC")
	if err := ledger.Mint(alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	bal := ledger.BalanceOf(alice)
	bal.SetInt64(0)
	if ledger.BalanceOf(alice).Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("caller mutation reached the ledger")
	}
}

func TestWrappedDepositConvertsNative(t *testing.T) {
	native := NewLedger("ETH")
	wrapped := NewWrappedLedger("WETH", native)
	if err := native.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := wrapped.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if native.BalanceOf(alice).Sign() != 0 {
		t.Fatalf("native balance survived deposit: %s", native.BalanceOf(alice))
	}
	if wrapped.BalanceOf(alice).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("wrapped units not minted: %s", wrapped.BalanceOf(alice))
	}
}

func TestWrappedDepositRequiresNativeBalance(t *testing.T) {
	native := NewLedger("ETH")
	wrapped := NewWrappedLedger("WETH", native)
	if err := wrapped.Deposit(alice, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if wrapped.BalanceOf(alice).Sign() != 0 {
		t.Fatalf("failed deposit minted wrapped units")
	}
}
