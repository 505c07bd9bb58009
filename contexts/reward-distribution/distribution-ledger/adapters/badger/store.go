// Package badgeradapter persists the distribution ledger in an embedded
// BadgerDB key-value store, for single-node deployments that do not want
// to operate Postgres.
package badgeradapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/claimbits"
	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/entities"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Key layout. Tokens and beneficiaries are lowercase hex addresses so
// prefix scans stay byte-ordered.
//
//	dist/<token>                      distribution record (JSON)
//	root/<token>/<batch>              32-byte commitment root
//	bits/<token>/<beneficiary>/<word> 32-byte claim word
//	outbox/<seq>/<id>                 outbox record (JSON)
//	outboxid/<id>                     outbox key, for publish marking
const (
	distPrefix     = "dist/"
	rootPrefix     = "root/"
	bitsPrefix     = "bits/"
	outboxPrefix   = "outbox/"
	outboxIDPrefix = "outboxid/"
)

type distributionRecord struct {
	Remaining       string `json:"remaining"`
	NextBatchNumber uint64 `json:"next_batch_number"`
}

type outboxRecord struct {
	OutboxID     string     `json:"outbox_id"`
	EventType    string     `json:"event_type"`
	PartitionKey string     `json:"partition_key"`
	Payload      []byte     `json:"payload"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewStore(db *badger.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

func distKey(token common.Address) []byte {
	return []byte(distPrefix + strings.ToLower(token.Hex()))
}

func rootKey(token common.Address, batchNumber uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", rootPrefix, strings.ToLower(token.Hex()), batchNumber))
}

func bitsKey(token common.Address, beneficiary common.Address, wordIndex uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%020d",
		bitsPrefix, strings.ToLower(token.Hex()), strings.ToLower(beneficiary.Hex()), wordIndex))
}

func (s *Store) GetDistribution(_ context.Context, token common.Address) (entities.DistributionView, error) {
	var view entities.DistributionView
	err := s.db.View(func(txn *badger.Txn) error {
		record, err := getDistribution(txn, token)
		if err != nil {
			return err
		}
		remaining, err := uint256.FromHex(record.Remaining)
		if err != nil {
			return err
		}
		view = entities.DistributionView{
			Token:           token,
			Remaining:       remaining,
			NextBatchNumber: record.NextBatchNumber,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDistributionNotFound) {
			return entities.DistributionView{}, err
		}
		return entities.DistributionView{}, s.logError("distribution_kv_get_failed", err, "token", token.Hex())
	}
	return view, nil
}

func (s *Store) OpenBatch(_ context.Context, token common.Address, root common.Hash, amount *uint256.Int) (uint64, error) {
	var batchNumber uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		record, err := getDistribution(txn, token)
		switch {
		case errors.Is(err, domainerrors.ErrDistributionNotFound):
			record = distributionRecord{Remaining: "0x0"}
		case err != nil:
			return err
		}

		remaining, err := uint256.FromHex(record.Remaining)
		if err != nil {
			return err
		}
		if !remaining.IsZero() {
			return domainerrors.ErrStillDistributing
		}

		batchNumber = record.NextBatchNumber
		if err := txn.Set(rootKey(token, batchNumber), root.Bytes()); err != nil {
			return err
		}
		record.Remaining = amount.Hex()
		record.NextBatchNumber = batchNumber + 1
		return putJSON(txn, distKey(token), record)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStillDistributing) {
			return 0, err
		}
		return 0, s.logError("distribution_kv_open_batch_failed", err, "token", token.Hex())
	}
	return batchNumber, nil
}

func (s *Store) GetBatchRoot(_ context.Context, token common.Address, batchNumber uint64) (common.Hash, bool, error) {
	var root common.Hash
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rootKey(token, batchNumber))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		root = common.BytesToHash(value)
		found = true
		return nil
	})
	if err != nil {
		return common.Hash{}, false, s.logError("distribution_kv_get_root_failed", err, "token", token.Hex())
	}
	return root, found, nil
}

func (s *Store) SettleClaims(_ context.Context, beneficiary common.Address, groups []entities.SettlementGroup) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		// Reads inside the transaction see earlier writes from the same
		// list, so a later group replaying an already-settled bit fails
		// before anything commits.
		for _, group := range groups {
			record, err := getDistribution(txn, group.Token)
			if err != nil {
				return err
			}

			word, err := getClaimWord(txn, group.Token, beneficiary, group.WordIndex)
			if err != nil {
				return err
			}
			updated, ok := claimbits.TestAndSet(word, group.Mask)
			if !ok {
				return domainerrors.ErrAlreadyClaimed
			}
			wordBytes := updated.Bytes32()
			if err := txn.Set(bitsKey(group.Token, beneficiary, group.WordIndex), wordBytes[:]); err != nil {
				return err
			}

			remaining, err := uint256.FromHex(record.Remaining)
			if err != nil {
				return err
			}
			if remaining.Lt(group.Amount) {
				return domainerrors.ErrInsufficientRemainingBalance
			}
			remaining.Sub(remaining, group.Amount)
			record.Remaining = remaining.Hex()
			if err := putJSON(txn, distKey(group.Token), record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyClaimed) ||
			errors.Is(err, domainerrors.ErrInsufficientRemainingBalance) ||
			errors.Is(err, domainerrors.ErrDistributionNotFound) {
			return err
		}
		return s.logError("distribution_kv_settle_failed", err, "beneficiary", beneficiary.Hex())
	}
	return nil
}

func (s *Store) IsClaimed(_ context.Context, beneficiary common.Address, token common.Address, batchNumber uint64) (bool, error) {
	wordIndex, mask := claimbits.Position(batchNumber)
	claimed := false
	err := s.db.View(func(txn *badger.Txn) error {
		word, err := getClaimWord(txn, token, beneficiary, wordIndex)
		if err != nil {
			return err
		}
		claimed = claimbits.Contains(word, mask)
		return nil
	})
	if err != nil {
		return false, s.logError("distribution_kv_is_claimed_failed", err, "token", token.Hex())
	}
	return claimed, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	record := outboxRecord{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       "pending",
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	key := []byte(fmt.Sprintf("%s%020d/%s", outboxPrefix, record.CreatedAt.UnixNano(), record.OutboxID))
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := putJSON(txn, key, record); err != nil {
			return err
		}
		return txn.Set([]byte(outboxIDPrefix+record.OutboxID), key)
	})
	if err != nil {
		return s.logError("distribution_kv_append_outbox_failed", err, "event_id", envelope.EventID)
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []ports.OutboxMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(outboxPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid() && len(items) < limit; it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var record outboxRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			if record.Status != "pending" {
				continue
			}
			items = append(items, ports.OutboxMessage{
				OutboxID:     record.OutboxID,
				EventType:    record.EventType,
				PartitionKey: record.PartitionKey,
				Payload:      record.Payload,
				CreatedAt:    record.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, s.logError("distribution_kv_list_outbox_failed", err)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(outboxIDPrefix + outboxID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domainerrors.ErrDistributionNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		recordItem, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err := recordItem.ValueCopy(nil)
		if err != nil {
			return err
		}
		var record outboxRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return err
		}
		ts := publishedAt.UTC()
		record.Status = "published"
		record.PublishedAt = &ts
		return putJSON(txn, key, record)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDistributionNotFound) {
			return err
		}
		return s.logError("distribution_kv_mark_outbox_failed", err, "outbox_id", outboxID)
	}
	return nil
}

func getDistribution(txn *badger.Txn, token common.Address) (distributionRecord, error) {
	var record distributionRecord
	item, err := txn.Get(distKey(token))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record, domainerrors.ErrDistributionNotFound
	}
	if err != nil {
		return record, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(value, &record); err != nil {
		return record, err
	}
	return record, nil
}

func getClaimWord(txn *badger.Txn, token common.Address, beneficiary common.Address, wordIndex uint64) (*uint256.Int, error) {
	item, err := txn.Get(bitsKey(token, beneficiary, wordIndex))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(value), nil
}

func putJSON(txn *badger.Txn, key []byte, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return txn.Set(key, encoded)
}

func (s *Store) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "reward-distribution/distribution-ledger",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	s.logger.Error("distribution kv store operation failed", fields...)
	return err
}
