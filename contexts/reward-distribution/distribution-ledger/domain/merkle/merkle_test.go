package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// buildTree pairs leaves level by level with the same commutative hashing
// Verify uses, duplicating the last node on odd levels. Returns the root and
// the sibling path for each leaf index.
func buildTree(leaves []common.Hash) (common.Hash, [][]common.Hash) {
	proofs := make([][]common.Hash, len(leaves))
	level := append([]common.Hash(nil), leaves...)
	indices := make([]int, len(leaves))
	for i := range indices {
		indices[i] = i
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		for leaf, pos := range indices {
			sibling := pos ^ 1
			proofs[leaf] = append(proofs[leaf], level[sibling])
			indices[leaf] = pos / 2
		}
		level = next
	}
	return level[0], proofs
}

func TestVerifySingleLeafTree(t *testing.T) {
	beneficiary := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	leaf := Leaf(beneficiary, uint256.NewInt(1000))

	if !Verify(nil, leaf, leaf) {
		t.Fatal("single-leaf tree must verify with an empty proof against root == leaf")
	}
	if Verify(nil, leaf, Leaf(beneficiary, uint256.NewInt(1001))) {
		t.Fatal("tampered amount must not verify")
	}
}

func TestVerifyMultiLeafTree(t *testing.T) {
	beneficiaries := []common.Address{
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		common.HexToAddress("0x00000000000000000000000000000000000000c3"),
		common.HexToAddress("0x00000000000000000000000000000000000000d4"),
	}
	amounts := []uint64{100, 250, 0, 9999}

	leaves := make([]common.Hash, len(beneficiaries))
	for i := range beneficiaries {
		leaves[i] = Leaf(beneficiaries[i], uint256.NewInt(amounts[i]))
	}
	root, proofs := buildTree(leaves)

	for i := range leaves {
		if !Verify(proofs[i], root, leaves[i]) {
			t.Fatalf("leaf %d failed to verify against its own proof", i)
		}
	}
}

func TestVerifyRejectsWrongBeneficiaryAmountAndRoot(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	b := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	leaves := []common.Hash{
		Leaf(a, uint256.NewInt(100)),
		Leaf(b, uint256.NewInt(200)),
	}
	root, proofs := buildTree(leaves)

	if Verify(proofs[0], root, Leaf(b, uint256.NewInt(100))) {
		t.Fatal("proof for beneficiary a must not verify beneficiary b")
	}
	if Verify(proofs[0], root, Leaf(a, uint256.NewInt(101))) {
		t.Fatal("proof must bind the exact amount")
	}
	otherRoot := Leaf(a, uint256.NewInt(100))
	if Verify(proofs[0], otherRoot, leaves[0]) {
		t.Fatal("proof must not verify against a different root")
	}
}

func TestVerifyOddLeafCount(t *testing.T) {
	leaves := []common.Hash{
		Leaf(common.HexToAddress("0x01"), uint256.NewInt(1)),
		Leaf(common.HexToAddress("0x02"), uint256.NewInt(2)),
		Leaf(common.HexToAddress("0x03"), uint256.NewInt(3)),
	}
	root, proofs := buildTree(leaves)
	for i := range leaves {
		if !Verify(proofs[i], root, leaves[i]) {
			t.Fatalf("leaf %d of odd tree failed to verify", i)
		}
	}
}
