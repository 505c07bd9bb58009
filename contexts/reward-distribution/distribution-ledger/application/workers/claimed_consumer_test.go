package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"
	contractsv1 "merkledrop/contracts/gen/events/v1"
)

type capturingSubscriber struct {
	topic   string
	group   string
	handler func(context.Context, ports.EventEnvelope) error
}

func (s *capturingSubscriber) Subscribe(
	_ context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	s.topic = topic
	s.group = consumerGroup
	s.handler = handler
	return nil
}

func claimedEnvelope(t *testing.T, eventID string, data contractsv1.RewardClaimedData) ports.EventEnvelope {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ports.EventEnvelope{
		EventID:    eventID,
		EventType:  contractsv1.EventTypeRewardClaimed,
		OccurredAt: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		Data:       payload,
	}
}

func TestClaimActivityConsumerSubscribesToClaimedTopic(t *testing.T) {
	sub := &capturingSubscriber{}
	consumer := &ClaimActivityConsumer{Subscriber: sub}

	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if sub.topic != contractsv1.EventTypeRewardClaimed {
		t.Fatalf("topic = %q, want %q", sub.topic, contractsv1.EventTypeRewardClaimed)
	}
	if sub.group != defaultClaimActivityConsumerGroup {
		t.Fatalf("group = %q, want default", sub.group)
	}
	if sub.handler == nil {
		t.Fatal("no handler registered")
	}
}

func TestClaimActivityConsumerAggregatesPerToken(t *testing.T) {
	consumer := &ClaimActivityConsumer{}
	ctx := context.Background()

	events := []ports.EventEnvelope{
		claimedEnvelope(t, "evt-1", contractsv1.RewardClaimedData{
			Beneficiary: "0xa1", Token: "0x0101", BatchNumber: 0, Amount: "40",
		}),
		claimedEnvelope(t, "evt-2", contractsv1.RewardClaimedData{
			Beneficiary: "0xb2", Token: "0x0101", BatchNumber: 1, Amount: "60",
		}),
		claimedEnvelope(t, "evt-3", contractsv1.RewardClaimedData{
			Beneficiary: "0xa1", Token: "0x0102", BatchNumber: 0, Amount: "7",
		}),
	}
	for _, event := range events {
		if err := consumer.Handle(ctx, event); err != nil {
			t.Fatalf("handle %s: %v", event.EventID, err)
		}
	}

	tally, ok := consumer.Activity("0x0101")
	if !ok {
		t.Fatal("no activity for token 0x0101")
	}
	if tally.Claims != 2 || tally.TotalAmount.Uint64() != 100 {
		t.Fatalf("tally = %d claims / %s, want 2 / 100", tally.Claims, tally.TotalAmount.Dec())
	}
	tally, ok = consumer.Activity("0x0102")
	if !ok || tally.Claims != 1 || tally.TotalAmount.Uint64() != 7 {
		t.Fatalf("tally for 0x0102 = %+v, ok=%v", tally, ok)
	}
}

func TestClaimActivityConsumerIgnoresReplayedEvent(t *testing.T) {
	consumer := &ClaimActivityConsumer{}
	ctx := context.Background()

	event := claimedEnvelope(t, "evt-1", contractsv1.RewardClaimedData{
		Beneficiary: "0xa1", Token: "0x0101", BatchNumber: 0, Amount: "40",
	})
	if err := consumer.Handle(ctx, event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := consumer.Handle(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	tally, _ := consumer.Activity("0x0101")
	if tally.Claims != 1 || tally.TotalAmount.Uint64() != 40 {
		t.Fatalf("tally after redelivery = %d claims / %s, want 1 / 40", tally.Claims, tally.TotalAmount.Dec())
	}
}

func TestClaimActivityConsumerRejectsBadPayload(t *testing.T) {
	consumer := &ClaimActivityConsumer{}
	ctx := context.Background()

	missingToken := claimedEnvelope(t, "evt-1", contractsv1.RewardClaimedData{
		Beneficiary: "0xa1", Amount: "40",
	})
	if err := consumer.Handle(ctx, missingToken); !errors.Is(err, domainerrors.ErrInvalidClaimInput) {
		t.Fatalf("missing token error = %v, want ErrInvalidClaimInput", err)
	}

	badAmount := claimedEnvelope(t, "evt-2", contractsv1.RewardClaimedData{
		Beneficiary: "0xa1", Token: "0x0101", Amount: "not-a-number",
	})
	if err := consumer.Handle(ctx, badAmount); !errors.Is(err, domainerrors.ErrInvalidClaimInput) {
		t.Fatalf("bad amount error = %v, want ErrInvalidClaimInput", err)
	}

	if _, ok := consumer.Activity("0x0101"); ok {
		t.Fatal("rejected payloads must not be tallied")
	}
}
