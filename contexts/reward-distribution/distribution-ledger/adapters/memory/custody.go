package memory

import (
	"context"
	"sync"

	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Bank is an in-process stand-in for the external custody/transfer
// subsystem: per-token balances per account, with the ledger's vault as
// the bank's own account for Transfer.
type Bank struct {
	mu       sync.RWMutex
	vault    common.Address
	balances map[common.Address]map[common.Address]*uint256.Int
}

func NewBank(vault common.Address) *Bank {
	return &Bank{
		vault:    vault,
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Mint credits an account out of thin air. Test and bootstrap seeding only.
func (b *Bank) Mint(token common.Address, account common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(token, account, amount)
}

func (b *Bank) BalanceOf(_ context.Context, token common.Address, account common.Address) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if accounts, ok := b.balances[token]; ok {
		if balance, ok := accounts[account]; ok {
			return balance.Clone(), nil
		}
	}
	return new(uint256.Int), nil
}

func (b *Bank) Transfer(ctx context.Context, token common.Address, to common.Address, amount *uint256.Int) error {
	return b.TransferFrom(ctx, token, b.vault, to, amount)
}

func (b *Bank) TransferFrom(_ context.Context, token common.Address, from common.Address, to common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	accounts := b.balances[token]
	balance := accounts[from]
	if balance == nil || balance.Lt(amount) {
		return domainerrors.ErrInsufficientCustodyBalance
	}
	balance.Sub(balance, amount)
	b.credit(token, to, amount)
	return nil
}

func (b *Bank) credit(token common.Address, account common.Address, amount *uint256.Int) {
	accounts, ok := b.balances[token]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		b.balances[token] = accounts
	}
	if balance, ok := accounts[account]; ok {
		balance.Add(balance, amount)
		return
	}
	accounts[account] = amount.Clone()
}
