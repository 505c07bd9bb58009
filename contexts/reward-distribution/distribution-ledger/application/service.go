package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/claimbits"
	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/entities"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/merkle"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"
	contractsv1 "merkledrop/contracts/gen/events/v1"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const sourceService = "merkledrop"

// Service is the distribution ledger plus the batched claim processor.
// All ledger state is mutated through Repo; Custody moves funds between
// the vault account and funders/beneficiaries.
type Service struct {
	Repo    ports.Repository
	Custody ports.TokenCustody
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator

	// Owner receives swept balances; Vault is the ledger's custody account.
	Owner common.Address
	Vault common.Address

	DisableClaimedEventEmission bool
	Logger                      *slog.Logger
}

// Fund opens a new batch for token: pulls amount from the funder into the
// vault, registers root under the next batch number, and sets the token's
// remaining balance. A token may only be re-funded once fully drained.
func (s Service) Fund(
	ctx context.Context,
	funder common.Address,
	token common.Address,
	root common.Hash,
	amount *uint256.Int,
) (entities.DistributionView, uint64, error) {
	logger := ResolveLogger(s.Logger)

	if amount == nil || amount.IsZero() {
		return entities.DistributionView{}, 0, domainerrors.ErrNotEnoughTokensToDistribute
	}
	if root == (common.Hash{}) {
		return entities.DistributionView{}, 0, domainerrors.ErrInvalidRoot
	}

	if err := s.Custody.TransferFrom(ctx, token, funder, s.Vault, amount); err != nil {
		return entities.DistributionView{}, 0, err
	}

	batchNumber, err := s.Repo.OpenBatch(ctx, token, root, amount)
	if err != nil {
		// Custody guarantees the deposit either fully lands or is rolled
		// back by the caller; return the funds before surfacing the error.
		if refundErr := s.Custody.Transfer(ctx, token, funder, amount); refundErr != nil {
			logger.Error("funding refund failed",
				"event", "distribution_fund_refund_failed",
				"module", "reward-distribution/distribution-ledger",
				"layer", "application",
				"token", token.Hex(),
				"funder", funder.Hex(),
				"error", refundErr.Error(),
			)
		}
		return entities.DistributionView{}, 0, err
	}

	if err := s.appendEvent(ctx, contractsv1.EventTypeDistributionOpened, token.Hex(), contractsv1.DistributionOpenedData{
		Token:       token.Hex(),
		BatchNumber: batchNumber,
		Root:        root.Hex(),
		Amount:      amount.Dec(),
	}); err != nil {
		return entities.DistributionView{}, 0, err
	}

	logger.Info("distribution batch opened",
		"event", "distribution_batch_opened",
		"module", "reward-distribution/distribution-ledger",
		"layer", "application",
		"token", token.Hex(),
		"batch_number", batchNumber,
		"amount", amount.Dec(),
	)

	view, err := s.Repo.GetDistribution(ctx, token)
	if err != nil {
		return entities.DistributionView{}, 0, err
	}
	return view, batchNumber, nil
}

// Claim settles an ordered list of claim entries spanning arbitrary tokens
// and batches in one call. Either every entry pays out or the whole call
// fails with no observable state change.
func (s Service) Claim(
	ctx context.Context,
	beneficiary common.Address,
	tokens []common.Address,
	requests []entities.ClaimRequest,
) ([]entities.ClaimReceipt, error) {
	logger := ResolveLogger(s.Logger)

	if len(requests) == 0 || len(tokens) == 0 {
		return nil, domainerrors.ErrInvalidClaimInput
	}
	for _, req := range requests {
		if req.TokenIndex < 0 || req.TokenIndex >= len(tokens) {
			return nil, domainerrors.ErrInvalidClaimInput
		}
		if req.Amount == nil {
			return nil, domainerrors.ErrInvalidClaimInput
		}
	}

	groups, err := buildSettlementGroups(tokens, requests)
	if err != nil {
		return nil, err
	}

	// Every entry carries its own proof over the exact per-entry amount;
	// roots are immutable once registered, so verifying before settlement
	// is stable.
	for _, req := range requests {
		token := tokens[req.TokenIndex]
		root, found, err := s.Repo.GetBatchRoot(ctx, token, req.BatchNumber)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, domainerrors.ErrInvalidProof
		}
		if !merkle.Verify(req.Proof, root, merkle.Leaf(beneficiary, req.Amount)) {
			return nil, domainerrors.ErrInvalidProof
		}
	}

	// Custody is an external collaborator; settlement must not commit if
	// the vault cannot cover every payout, or a mid-loop transfer failure
	// would leave the call partially paid.
	payouts := make(map[common.Address]*uint256.Int)
	for _, req := range requests {
		token := tokens[req.TokenIndex]
		total, ok := payouts[token]
		if !ok {
			total = new(uint256.Int)
			payouts[token] = total
		}
		total.Add(total, req.Amount)
	}
	for token, total := range payouts {
		balance, err := s.Custody.BalanceOf(ctx, token, s.Vault)
		if err != nil {
			return nil, err
		}
		if balance.Lt(total) {
			return nil, domainerrors.ErrInsufficientCustodyBalance
		}
	}

	if err := s.Repo.SettleClaims(ctx, beneficiary, groups); err != nil {
		return nil, err
	}

	// Grouping amortizes the replay/balance bookkeeping only; payouts stay
	// per entry.
	receipts := make([]entities.ClaimReceipt, 0, len(requests))
	for _, req := range requests {
		token := tokens[req.TokenIndex]
		if err := s.Custody.Transfer(ctx, token, beneficiary, req.Amount); err != nil {
			return nil, err
		}
		receipts = append(receipts, entities.ClaimReceipt{
			Token:       token,
			BatchNumber: req.BatchNumber,
			Amount:      req.Amount.Clone(),
		})

		if s.DisableClaimedEventEmission {
			continue
		}
		if err := s.appendEvent(ctx, contractsv1.EventTypeRewardClaimed, token.Hex(), contractsv1.RewardClaimedData{
			Beneficiary: beneficiary.Hex(),
			Token:       token.Hex(),
			BatchNumber: req.BatchNumber,
			Amount:      req.Amount.Dec(),
		}); err != nil {
			return nil, err
		}
	}

	logger.Info("batched claim settled",
		"event", "batched_claim_settled",
		"module", "reward-distribution/distribution-ledger",
		"layer", "application",
		"beneficiary", beneficiary.Hex(),
		"entries", len(requests),
		"groups", len(groups),
	)
	return receipts, nil
}

// Clean sweeps the vault's held balance back to the owner for every listed
// token whose distribution is fully drained. Tokens mid-distribution are
// skipped, not failed.
func (s Service) Clean(ctx context.Context, tokens []common.Address) ([]common.Address, error) {
	logger := ResolveLogger(s.Logger)

	swept := make([]common.Address, 0, len(tokens))
	for _, token := range tokens {
		view, err := s.Repo.GetDistribution(ctx, token)
		if err != nil {
			if errors.Is(err, domainerrors.ErrDistributionNotFound) {
				continue
			}
			return nil, err
		}
		if view.Remaining != nil && !view.Remaining.IsZero() {
			continue
		}

		balance, err := s.Custody.BalanceOf(ctx, token, s.Vault)
		if err != nil {
			return nil, err
		}
		if balance.IsZero() {
			continue
		}
		if err := s.Custody.Transfer(ctx, token, s.Owner, balance); err != nil {
			return nil, err
		}
		swept = append(swept, token)

		if err := s.appendEvent(ctx, contractsv1.EventTypeDistributionSwept, token.Hex(), contractsv1.DistributionSweptData{
			Token:  token.Hex(),
			Owner:  s.Owner.Hex(),
			Amount: balance.Dec(),
		}); err != nil {
			return nil, err
		}

		logger.Info("drained distribution swept",
			"event", "distribution_swept",
			"module", "reward-distribution/distribution-ledger",
			"layer", "application",
			"token", token.Hex(),
			"amount", balance.Dec(),
		)
	}
	return swept, nil
}

func (s Service) GetDistribution(ctx context.Context, token common.Address) (entities.DistributionView, error) {
	return s.Repo.GetDistribution(ctx, token)
}

func (s Service) GetBatchRoot(ctx context.Context, token common.Address, batchNumber uint64) (common.Hash, error) {
	root, found, err := s.Repo.GetBatchRoot(ctx, token, batchNumber)
	if err != nil {
		return common.Hash{}, err
	}
	if !found {
		return common.Hash{}, domainerrors.ErrDistributionNotFound
	}
	return root, nil
}

func (s Service) IsClaimed(ctx context.Context, beneficiary common.Address, token common.Address, batchNumber uint64) (bool, error) {
	return s.Repo.IsClaimed(ctx, beneficiary, token, batchNumber)
}

// buildSettlementGroups walks the entries in caller order and cuts a new
// group at every (token, word) boundary. Scoping to the word, not just the
// token, keeps the replay check exact when one call mixes batches more
// than 256 apart. A bit that repeats inside one running group can never
// pass the stored-word test, so it is rejected here.
func buildSettlementGroups(tokens []common.Address, requests []entities.ClaimRequest) ([]entities.SettlementGroup, error) {
	groups := make([]entities.SettlementGroup, 0, len(requests))
	var current *entities.SettlementGroup

	for _, req := range requests {
		token := tokens[req.TokenIndex]
		wordIndex, mask := claimbits.Position(req.BatchNumber)

		if current != nil && current.Token == token && current.WordIndex == wordIndex {
			if !new(uint256.Int).And(current.Mask, mask).IsZero() {
				return nil, domainerrors.ErrAlreadyClaimed
			}
			current.Mask.Or(current.Mask, mask)
			current.Amount.Add(current.Amount, req.Amount)
			continue
		}

		if current != nil {
			groups = append(groups, *current)
		}
		current = &entities.SettlementGroup{
			Token:     token,
			WordIndex: wordIndex,
			Mask:      mask.Clone(),
			Amount:    req.Amount.Clone(),
		}
	}
	if current != nil {
		groups = append(groups, *current)
	}
	return groups, nil
}

func (s Service) appendEvent(ctx context.Context, eventType string, partitionKey string, data any) error {
	if s.Outbox == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       s.Clock.Now().UTC(),
		SourceService:    sourceService,
		SchemaVersion:    1,
		PartitionKeyPath: "token",
		PartitionKey:     partitionKey,
		Data:             payload,
	})
}
