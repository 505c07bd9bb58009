package memory

import (
	"context"
	"errors"
	"testing"

	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/claimbits"
	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/entities"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	testToken       = common.HexToAddress("0x0000000000000000000000000000000000000101")
	testBeneficiary = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testRoot        = common.HexToHash("0x01")
)

func group(token common.Address, batch uint64, amount uint64) entities.SettlementGroup {
	wordIndex, mask := claimbits.Position(batch)
	return entities.SettlementGroup{
		Token:     token,
		WordIndex: wordIndex,
		Mask:      mask,
		Amount:    uint256.NewInt(amount),
	}
}

func TestOpenBatchGateAndCounter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	batch, err := store.OpenBatch(ctx, testToken, testRoot, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("first fund failed: %v", err)
	}
	if batch != 0 {
		t.Fatalf("first batch number = %d, want 0", batch)
	}

	if _, err := store.OpenBatch(ctx, testToken, testRoot, uint256.NewInt(50)); !errors.Is(err, domainerrors.ErrStillDistributing) {
		t.Fatalf("re-funding an undrained token = %v, want ErrStillDistributing", err)
	}

	if err := store.SettleClaims(ctx, testBeneficiary, []entities.SettlementGroup{group(testToken, 0, 100)}); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	batch, err = store.OpenBatch(ctx, testToken, testRoot, uint256.NewInt(50))
	if err != nil {
		t.Fatalf("fund after drain failed: %v", err)
	}
	if batch != 1 {
		t.Fatalf("second batch number = %d, want 1", batch)
	}
}

func TestSettleClaimsRejectsReplay(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, err := store.OpenBatch(ctx, testToken, testRoot, uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	if err := store.SettleClaims(ctx, testBeneficiary, []entities.SettlementGroup{group(testToken, 0, 40)}); err != nil {
		t.Fatalf("first settlement failed: %v", err)
	}
	if err := store.SettleClaims(ctx, testBeneficiary, []entities.SettlementGroup{group(testToken, 0, 40)}); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		t.Fatalf("replayed settlement = %v, want ErrAlreadyClaimed", err)
	}

	claimed, err := store.IsClaimed(ctx, testBeneficiary, testToken, 0)
	if err != nil || !claimed {
		t.Fatalf("IsClaimed = (%v, %v), want (true, nil)", claimed, err)
	}
}

func TestSettleClaimsAtomicRollback(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, err := store.OpenBatch(ctx, testToken, testRoot, uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	// Second group underflows; the first group must not stick.
	groups := []entities.SettlementGroup{
		group(testToken, 0, 60),
		group(testToken, 256, 60),
	}
	if err := store.SettleClaims(ctx, testBeneficiary, groups); !errors.Is(err, domainerrors.ErrInsufficientRemainingBalance) {
		t.Fatalf("underflowing settlement = %v, want ErrInsufficientRemainingBalance", err)
	}

	claimed, err := store.IsClaimed(ctx, testBeneficiary, testToken, 0)
	if err != nil {
		t.Fatal(err)
	}
	if claimed {
		t.Fatal("failed settlement must leave no claimed bits behind")
	}
	view, err := store.GetDistribution(ctx, testToken)
	if err != nil {
		t.Fatal(err)
	}
	if !view.Remaining.Eq(uint256.NewInt(100)) {
		t.Fatalf("remaining after rollback = %s, want 100", view.Remaining.Dec())
	}
}

func TestSettleClaimsCrossGroupReplayInOneCall(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, err := store.OpenBatch(ctx, testToken, testRoot, uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	// Two groups targeting the same bit of the same word within one call.
	groups := []entities.SettlementGroup{
		group(testToken, 3, 10),
		group(testToken, 3, 10),
	}
	if err := store.SettleClaims(ctx, testBeneficiary, groups); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		t.Fatalf("same-bit groups in one call = %v, want ErrAlreadyClaimed", err)
	}
	claimed, _ := store.IsClaimed(ctx, testBeneficiary, testToken, 3)
	if claimed {
		t.Fatal("rejected call must not mark any bit")
	}
}

func TestGetBatchRootAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, found, err := store.GetBatchRoot(ctx, testToken, 0); err != nil || found {
		t.Fatalf("root before funding = (found=%v, err=%v), want absent", found, err)
	}
	if _, err := store.OpenBatch(ctx, testToken, testRoot, uint256.NewInt(10)); err != nil {
		t.Fatal(err)
	}
	root, found, err := store.GetBatchRoot(ctx, testToken, 0)
	if err != nil || !found || root != testRoot {
		t.Fatalf("root after funding = (%s, %v, %v), want (%s, true, nil)", root.Hex(), found, err, testRoot.Hex())
	}
}

func TestBankTransferAndBalance(t *testing.T) {
	ctx := context.Background()
	vault := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	funder := common.HexToAddress("0x00000000000000000000000000000000000000fe")
	bank := NewBank(vault)

	bank.Mint(testToken, funder, uint256.NewInt(500))
	if err := bank.TransferFrom(ctx, testToken, funder, vault, uint256.NewInt(200)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := bank.Transfer(ctx, testToken, testBeneficiary, uint256.NewInt(300)); !errors.Is(err, domainerrors.ErrInsufficientCustodyBalance) {
		t.Fatalf("overdraft = %v, want ErrInsufficientCustodyBalance", err)
	}
	if err := bank.Transfer(ctx, testToken, testBeneficiary, uint256.NewInt(200)); err != nil {
		t.Fatalf("payout failed: %v", err)
	}

	balance, err := bank.BalanceOf(ctx, testToken, testBeneficiary)
	if err != nil || !balance.Eq(uint256.NewInt(200)) {
		t.Fatalf("beneficiary balance = (%s, %v), want 200", balance.Dec(), err)
	}
}
