package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/claimbits"
	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/entities"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository is the durable ledger store. Funding and settlement run in
// one database transaction each, with row locks serializing writers per
// token, so the bitset mutation and the balance debit always commit
// together.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the ledger tables. Called from bootstrap.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&distributionModel{},
		&batchRootModel{},
		&claimWordModel{},
		&outboxModel{},
	)
}

func (r *Repository) GetDistribution(ctx context.Context, token common.Address) (entities.DistributionView, error) {
	var row distributionModel
	err := r.db.WithContext(ctx).
		Where("token = ?", strings.ToLower(token.Hex())).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DistributionView{}, domainerrors.ErrDistributionNotFound
		}
		return entities.DistributionView{}, r.logError("distribution_repo_get_failed", err, "token", token.Hex())
	}
	remaining, err := parseAmount(row.Remaining)
	if err != nil {
		return entities.DistributionView{}, r.logError("distribution_repo_remaining_corrupt", err, "token", token.Hex())
	}
	return entities.DistributionView{
		Token:           token,
		Remaining:       remaining,
		NextBatchNumber: row.NextBatchNumber,
	}, nil
}

func (r *Repository) OpenBatch(ctx context.Context, token common.Address, root common.Hash, amount *uint256.Int) (uint64, error) {
	tokenKey := strings.ToLower(token.Hex())
	var batchNumber uint64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row distributionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", tokenKey).
			First(&row).
			Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = distributionModel{Token: tokenKey, Remaining: "0x0"}
		case err != nil:
			return err
		}

		remaining, err := parseAmount(row.Remaining)
		if err != nil {
			return err
		}
		if !remaining.IsZero() {
			return domainerrors.ErrStillDistributing
		}

		batchNumber = row.NextBatchNumber
		now := time.Now().UTC()
		if err := tx.Create(&batchRootModel{
			Token:       tokenKey,
			BatchNumber: batchNumber,
			Root:        root.Hex(),
			CreatedAt:   now,
		}).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrStillDistributing
			}
			return err
		}

		row.Remaining = amount.Hex()
		row.NextBatchNumber = batchNumber + 1
		row.UpdatedAt = now
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			UpdateAll: true,
		}).Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStillDistributing) {
			return 0, err
		}
		return 0, r.logError("distribution_repo_open_batch_failed", err, "token", token.Hex())
	}
	return batchNumber, nil
}

func (r *Repository) GetBatchRoot(ctx context.Context, token common.Address, batchNumber uint64) (common.Hash, bool, error) {
	var row batchRootModel
	err := r.db.WithContext(ctx).
		Where("token = ?", strings.ToLower(token.Hex())).
		Where("batch_number = ?", batchNumber).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.Hash{}, false, nil
		}
		return common.Hash{}, false, r.logError("distribution_repo_get_root_failed", err, "token", token.Hex())
	}
	return common.HexToHash(row.Root), true, nil
}

func (r *Repository) SettleClaims(ctx context.Context, beneficiary common.Address, groups []entities.SettlementGroup) error {
	beneficiaryKey := strings.ToLower(beneficiary.Hex())

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Groups are applied in order inside the transaction; a later
		// group replaying a bit settled earlier in the same call sees the
		// in-transaction word and is rejected before anything commits.
		for _, group := range groups {
			tokenKey := strings.ToLower(group.Token.Hex())
			now := time.Now().UTC()

			var dist distributionModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("token = ?", tokenKey).
				First(&dist).
				Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domainerrors.ErrDistributionNotFound
				}
				return err
			}

			var wordRow claimWordModel
			word := new(uint256.Int)
			err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("token = ?", tokenKey).
				Where("beneficiary = ?", beneficiaryKey).
				Where("word_index = ?", group.WordIndex).
				First(&wordRow).
				Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				wordRow = claimWordModel{
					Token:       tokenKey,
					Beneficiary: beneficiaryKey,
					WordIndex:   group.WordIndex,
				}
			case err != nil:
				return err
			default:
				word, err = parseAmount(wordRow.Word)
				if err != nil {
					return err
				}
			}

			updated, ok := claimbits.TestAndSet(word, group.Mask)
			if !ok {
				return domainerrors.ErrAlreadyClaimed
			}
			wordRow.Word = updated.Hex()
			wordRow.UpdatedAt = now
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "token"}, {Name: "beneficiary"}, {Name: "word_index"}},
				UpdateAll: true,
			}).Create(&wordRow).Error; err != nil {
				return err
			}

			remaining, err := parseAmount(dist.Remaining)
			if err != nil {
				return err
			}
			if remaining.Lt(group.Amount) {
				return domainerrors.ErrInsufficientRemainingBalance
			}
			remaining.Sub(remaining, group.Amount)
			if err := tx.Model(&distributionModel{}).
				Where("token = ?", tokenKey).
				Updates(map[string]any{
					"remaining":  remaining.Hex(),
					"updated_at": now,
				}).Error; err != nil {
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
		return r.logError("distribution_repo_settle_failed", err, "beneficiary", beneficiary.Hex())
	}
	return nil
}

func (r *Repository) IsClaimed(ctx context.Context, beneficiary common.Address, token common.Address, batchNumber uint64) (bool, error) {
	wordIndex, mask := claimbits.Position(batchNumber)

	var row claimWordModel
	err := r.db.WithContext(ctx).
		Where("token = ?", strings.ToLower(token.Hex())).
		Where("beneficiary = ?", strings.ToLower(beneficiary.Hex())).
		Where("word_index = ?", wordIndex).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, r.logError("distribution_repo_is_claimed_failed", err, "token", token.Hex())
	}
	word, err := parseAmount(row.Word)
	if err != nil {
		return false, r.logError("distribution_repo_word_corrupt", err, "token", token.Hex())
	}
	return claimbits.Contains(word, mask), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return r.logError("distribution_repo_append_outbox_failed", err, "event_id", envelope.EventID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("distribution_repo_list_outbox_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	ts := publishedAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &ts,
		})
	if result.Error != nil {
		return r.logError("distribution_repo_mark_outbox_failed", result.Error, "outbox_id", outboxID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrDistributionNotFound
	}
	return nil
}

func parseAmount(value string) (*uint256.Int, error) {
	if strings.TrimSpace(value) == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromHex(value)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "reward-distribution/distribution-ledger",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("distribution repository operation failed", fields...)
	return err
}
