package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical, versioned event envelope for cross-runtime use.
// This package is generated-contract-only and must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Event types emitted by the reward-distribution context.
const (
	EventTypeDistributionOpened = "reward.distribution.opened"
	EventTypeRewardClaimed      = "reward.claimed"
	EventTypeDistributionSwept  = "reward.distribution.swept"
)

// DistributionOpenedData is the payload for EventTypeDistributionOpened.
type DistributionOpenedData struct {
	Token       string `json:"token"`
	BatchNumber uint64 `json:"batch_number"`
	Root        string `json:"root"`
	Amount      string `json:"amount"`
}

// RewardClaimedData is the payload for EventTypeRewardClaimed.
type RewardClaimedData struct {
	Beneficiary string `json:"beneficiary"`
	Token       string `json:"token"`
	BatchNumber uint64 `json:"batch_number"`
	Amount      string `json:"amount"`
}

// DistributionSweptData is the payload for EventTypeDistributionSwept.
type DistributionSweptData struct {
	Token  string `json:"token"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}
