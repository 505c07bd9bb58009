package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	application "merkledrop/contexts/reward-distribution/distribution-ledger/application"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"
	contractsv1 "merkledrop/contracts/gen/events/v1"

	"github.com/holiman/uint256"
)

const defaultClaimActivityConsumerGroup = "distribution-ledger-claimed-cg"

// TokenClaimActivity is the running tally of settled claims for one token.
type TokenClaimActivity struct {
	Claims      uint64
	TotalAmount *uint256.Int
}

// ClaimActivityConsumer subscribes to reward.claimed events and keeps a
// per-token activity projection for the worker process. Redelivered event
// ids are dropped so the tally stays exact under at-least-once delivery.
type ClaimActivityConsumer struct {
	Subscriber    ports.EventSubscriber
	ConsumerGroup string
	Logger        *slog.Logger

	mu       sync.RWMutex
	activity map[string]TokenClaimActivity
	seen     map[string]struct{}
}

func (c *ClaimActivityConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := c.ConsumerGroup
	if group == "" {
		group = defaultClaimActivityConsumerGroup
	}
	if err := c.Subscriber.Subscribe(ctx, contractsv1.EventTypeRewardClaimed, group, c.Handle); err != nil {
		logger.Error("claim activity consumer subscribe failed",
			"event", "claim_activity_subscribe_failed",
			"module", "reward-distribution/distribution-ledger",
			"layer", "worker",
			"topic", contractsv1.EventTypeRewardClaimed,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("claim activity consumer subscribed",
		"event", "claim_activity_subscribed",
		"module", "reward-distribution/distribution-ledger",
		"layer", "worker",
		"topic", contractsv1.EventTypeRewardClaimed,
		"consumer_group", group,
	)
	return nil
}

func (c *ClaimActivityConsumer) Handle(_ context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	var payload contractsv1.RewardClaimedData
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("claim activity event decode failed",
			"event", "claim_activity_decode_failed",
			"module", "reward-distribution/distribution-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if payload.Token == "" || payload.Beneficiary == "" {
		logger.Warn("claim activity payload invalid",
			"event", "claim_activity_payload_invalid",
			"module", "reward-distribution/distribution-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"has_token", payload.Token != "",
			"has_beneficiary", payload.Beneficiary != "",
		)
		return domainerrors.ErrInvalidClaimInput
	}
	amount, err := uint256.FromDecimal(payload.Amount)
	if err != nil {
		logger.Warn("claim activity payload invalid",
			"event", "claim_activity_payload_invalid",
			"module", "reward-distribution/distribution-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"amount", payload.Amount,
		)
		return domainerrors.ErrInvalidClaimInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, replayed := c.seen[event.EventID]; replayed {
		return nil
	}
	c.seen[event.EventID] = struct{}{}

	if c.activity == nil {
		c.activity = make(map[string]TokenClaimActivity)
	}
	tally := c.activity[payload.Token]
	if tally.TotalAmount == nil {
		tally.TotalAmount = new(uint256.Int)
	}
	tally.Claims++
	tally.TotalAmount = new(uint256.Int).Add(tally.TotalAmount, amount)
	c.activity[payload.Token] = tally

	logger.Info("claim activity recorded",
		"event", "claim_activity_recorded",
		"module", "reward-distribution/distribution-ledger",
		"layer", "worker",
		"event_id", event.EventID,
		"token", payload.Token,
		"beneficiary", payload.Beneficiary,
		"batch_number", payload.BatchNumber,
		"amount", payload.Amount,
	)
	return nil
}

// Activity returns the tally for one token hex string.
func (c *ClaimActivityConsumer) Activity(token string) (TokenClaimActivity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tally, ok := c.activity[token]
	if !ok {
		return TokenClaimActivity{}, false
	}
	return TokenClaimActivity{
		Claims:      tally.Claims,
		TotalAmount: tally.TotalAmount.Clone(),
	}, true
}
