// Package claimbits implements the anti-replay word math for claimed
// batches. Each (beneficiary, token) pair owns a growable sequence of
// 256-bit words; bit b of word w marks batch w*256 + b as claimed.
package claimbits

import "github.com/holiman/uint256"

// WordWidth is the number of batch bits packed into one claim word.
const WordWidth = 256

// Position maps a batch number to its word index and single-bit mask.
func Position(batchNumber uint64) (uint64, *uint256.Int) {
	wordIndex := batchNumber / WordWidth
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(batchNumber%WordWidth))
	return wordIndex, mask
}

// TestAndSet returns current|mask when no bit of mask is already set in
// current. If any requested bit is set, it reports false and the word is
// left untouched: the operation is all-or-nothing over the whole mask.
// A nil current is treated as the zero word.
func TestAndSet(current *uint256.Int, mask *uint256.Int) (*uint256.Int, bool) {
	if current == nil {
		current = new(uint256.Int)
	}
	if !new(uint256.Int).And(current, mask).IsZero() {
		return current, false
	}
	return new(uint256.Int).Or(current, mask), true
}

// Contains reports whether every bit of mask is set in current.
func Contains(current *uint256.Int, mask *uint256.Int) bool {
	if current == nil {
		return mask.IsZero()
	}
	return new(uint256.Int).And(current, mask).Eq(mask)
}
