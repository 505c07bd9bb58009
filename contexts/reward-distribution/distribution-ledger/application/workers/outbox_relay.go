package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	application "merkledrop/contexts/reward-distribution/distribution-ledger/application"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"
)

// OutboxRelay drains pending outbox rows and publishes them to the event
// bus, topic per event type. RunOnce is driven by the worker loop.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)

	batchSize := r.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	pending, err := r.Outbox.ListPendingOutbox(ctx, batchSize)
	if err != nil {
		logger.Error("outbox relay list failed",
			"event", "outbox_relay_list_failed",
			"module", "reward-distribution/distribution-ledger",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox relay payload decode failed",
				"event", "outbox_relay_decode_failed",
				"module", "reward-distribution/distribution-ledger",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Publisher.Publish(ctx, message.EventType, envelope); err != nil {
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, r.Clock.Now()); err != nil {
			return err
		}
		logger.Info("outbox event relayed",
			"event", "outbox_event_relayed",
			"module", "reward-distribution/distribution-ledger",
			"layer", "worker",
			"outbox_id", message.OutboxID,
			"event_type", message.EventType,
		)
	}
	return nil
}
