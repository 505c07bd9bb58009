// Package merkle holds the membership-proof primitive used by the
// distribution ledger. A leaf commits to (beneficiary, amount) only; batch
// scoping happens in the ledger, not in the tree.
package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Leaf computes the committed leaf hash for one entitlement:
// keccak256(beneficiary || amount), amount as 32-byte big-endian.
func Leaf(beneficiary common.Address, amount *uint256.Int) common.Hash {
	value := amount.Bytes32()
	return common.BytesToHash(crypto.Keccak256(beneficiary.Bytes(), value[:]))
}

// Verify folds the sibling path over the leaf and compares against root.
// Pairs are hashed in byte order, so the caller never supplies direction
// bits. Deterministic, no side effects.
func Verify(proof []common.Hash, root common.Hash, leaf common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return common.BytesToHash(crypto.Keccak256(a[:], b[:]))
	}
	return common.BytesToHash(crypto.Keccak256(b[:], a[:]))
}
