package ports

import (
	"context"
	"time"

	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/entities"
	contractsv1 "merkledrop/contracts/gen/events/v1"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Repository owns all per-token ledger state. Settlement is the single
// choke point: the anti-replay bit mutation and the balance debit are
// applied as one atomic unit, for the whole group list or not at all.
type Repository interface {
	GetDistribution(ctx context.Context, token common.Address) (entities.DistributionView, error)

	// OpenBatch atomically checks that the token's remaining balance is
	// zero, registers root under the next batch number, sets remaining to
	// amount, and advances the batch counter. Returns the batch number
	// assigned, or domain errors.ErrStillDistributing.
	OpenBatch(ctx context.Context, token common.Address, root common.Hash, amount *uint256.Int) (uint64, error)

	GetBatchRoot(ctx context.Context, token common.Address, batchNumber uint64) (common.Hash, bool, error)

	// SettleClaims applies every group sequentially against in-transaction
	// state: test-and-set of the beneficiary's claim word with the group
	// mask, then debit of the token's remaining balance by the group
	// amount. Any replayed bit or underflow aborts the whole list with no
	// state change.
	SettleClaims(ctx context.Context, beneficiary common.Address, groups []entities.SettlementGroup) error

	IsClaimed(ctx context.Context, beneficiary common.Address, token common.Address, batchNumber uint64) (bool, error)
}

// TokenCustody is the capability surface of the external custody/transfer
// subsystem, ERC-style per asset. The collaborator guarantees a transfer
// either fully succeeds or the caller rolls the operation back.
type TokenCustody interface {
	BalanceOf(ctx context.Context, token common.Address, account common.Address) (*uint256.Int, error)
	// Transfer moves amount out of the ledger's own custody account.
	Transfer(ctx context.Context, token common.Address, to common.Address, amount *uint256.Int) error
	// TransferFrom pulls a funder deposit into the given account.
	TransferFrom(ctx context.Context, token common.Address, from common.Address, to common.Address, amount *uint256.Int) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}
