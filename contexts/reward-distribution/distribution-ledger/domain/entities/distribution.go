package entities

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenDistribution is the per-token ledger record. It is created
// implicitly on the first funding call for a token and never deleted;
// batches form an append-only log.
type TokenDistribution struct {
	Token           common.Address
	Remaining       *uint256.Int
	NextBatchNumber uint64
	Roots           map[uint64]common.Hash
	ClaimedBits     map[ClaimKey]*uint256.Int
}

// ClaimKey addresses one 256-batch anti-replay word for a beneficiary.
type ClaimKey struct {
	Beneficiary common.Address
	WordIndex   uint64
}

// ClaimRequest is one entry of a batched claim call. TokenIndex points into
// the parallel token list supplied with the same call.
type ClaimRequest struct {
	BatchNumber uint64
	Amount      *uint256.Int
	TokenIndex  int
	Proof       []common.Hash
}

// SettlementGroup carries the summed amount and the exact bit mask for one
// (token, word) run of a batched claim. The two always travel together
// through settlement.
type SettlementGroup struct {
	Token     common.Address
	WordIndex uint64
	Mask      *uint256.Int
	Amount    *uint256.Int
}

// ClaimReceipt reports one settled entry back to the caller.
type ClaimReceipt struct {
	Token       common.Address
	BatchNumber uint64
	Amount      *uint256.Int
}

// DistributionView is the read-model snapshot of a token's ledger state.
type DistributionView struct {
	Token           common.Address
	Remaining       *uint256.Int
	NextBatchNumber uint64
}
