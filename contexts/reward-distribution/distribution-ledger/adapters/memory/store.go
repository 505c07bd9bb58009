package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/claimbits"
	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/entities"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Store is the in-memory ledger repository. One mutex serializes fund and
// settlement, which is the single-logical-writer model the ledger requires;
// settlement stages every word and balance first and commits only when the
// whole group list passes.
type Store struct {
	mu sync.RWMutex

	distributions map[common.Address]*entities.TokenDistribution
	outbox        map[string]outboxRecord
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
}

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

func NewStore() *Store {
	return &Store{
		distributions: make(map[common.Address]*entities.TokenDistribution),
		outbox:        make(map[string]outboxRecord),
	}
}

func (s *Store) GetDistribution(_ context.Context, token common.Address) (entities.DistributionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist, ok := s.distributions[token]
	if !ok {
		return entities.DistributionView{}, domainerrors.ErrDistributionNotFound
	}
	return entities.DistributionView{
		Token:           token,
		Remaining:       dist.Remaining.Clone(),
		NextBatchNumber: dist.NextBatchNumber,
	}, nil
}

func (s *Store) OpenBatch(_ context.Context, token common.Address, root common.Hash, amount *uint256.Int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist, ok := s.distributions[token]
	if !ok {
		dist = &entities.TokenDistribution{
			Token:       token,
			Remaining:   new(uint256.Int),
			Roots:       make(map[uint64]common.Hash),
			ClaimedBits: make(map[entities.ClaimKey]*uint256.Int),
		}
		s.distributions[token] = dist
	}
	if !dist.Remaining.IsZero() {
		return 0, domainerrors.ErrStillDistributing
	}

	batchNumber := dist.NextBatchNumber
	dist.Roots[batchNumber] = root
	dist.Remaining = amount.Clone()
	dist.NextBatchNumber++
	return batchNumber, nil
}

func (s *Store) GetBatchRoot(_ context.Context, token common.Address, batchNumber uint64) (common.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist, ok := s.distributions[token]
	if !ok {
		return common.Hash{}, false, nil
	}
	root, found := dist.Roots[batchNumber]
	return root, found, nil
}

func (s *Store) SettleClaims(_ context.Context, beneficiary common.Address, groups []entities.SettlementGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type wordKey struct {
		token common.Address
		word  uint64
	}
	stagedWords := make(map[wordKey]*uint256.Int)
	stagedRemaining := make(map[common.Address]*uint256.Int)

	// Groups are applied in order against staged state so that a later
	// group replaying a bit settled by an earlier group in the same call
	// is caught before anything commits.
	for _, group := range groups {
		dist, ok := s.distributions[group.Token]
		if !ok {
			return domainerrors.ErrDistributionNotFound
		}

		key := wordKey{token: group.Token, word: group.WordIndex}
		word, staged := stagedWords[key]
		if !staged {
			word = dist.ClaimedBits[entities.ClaimKey{Beneficiary: beneficiary, WordIndex: group.WordIndex}]
		}
		updated, ok := claimbits.TestAndSet(word, group.Mask)
		if !ok {
			return domainerrors.ErrAlreadyClaimed
		}
		stagedWords[key] = updated

		remaining, staged := stagedRemaining[group.Token]
		if !staged {
			remaining = dist.Remaining.Clone()
		}
		if remaining.Lt(group.Amount) {
			return domainerrors.ErrInsufficientRemainingBalance
		}
		stagedRemaining[group.Token] = remaining.Sub(remaining, group.Amount)
	}

	for key, word := range stagedWords {
		dist := s.distributions[key.token]
		dist.ClaimedBits[entities.ClaimKey{Beneficiary: beneficiary, WordIndex: key.word}] = word
	}
	for token, remaining := range stagedRemaining {
		s.distributions[token].Remaining = remaining
	}
	return nil
}

func (s *Store) IsClaimed(_ context.Context, beneficiary common.Address, token common.Address, batchNumber uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist, ok := s.distributions[token]
	if !ok {
		return false, nil
	}
	wordIndex, mask := claimbits.Position(batchNumber)
	word := dist.ClaimedBits[entities.ClaimKey{Beneficiary: beneficiary, WordIndex: wordIndex}]
	return claimbits.Contains(word, mask), nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if envelope.EventID == "" {
		return domainerrors.ErrInvalidClaimInput
	}
	s.outbox[envelope.EventID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		Status: outboxStatusPending,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrDistributionNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
