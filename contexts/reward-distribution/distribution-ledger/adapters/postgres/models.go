package postgresadapter

import "time"

type distributionModel struct {
	Token           string `gorm:"primaryKey;size:42"`
	Remaining       string `gorm:"size:80;not null"`
	NextBatchNumber uint64 `gorm:"not null"`
	UpdatedAt       time.Time
}

func (distributionModel) TableName() string { return "reward_distributions" }

type batchRootModel struct {
	Token       string `gorm:"primaryKey;size:42"`
	BatchNumber uint64 `gorm:"primaryKey"`
	Root        string `gorm:"size:66;not null"`
	CreatedAt   time.Time
}

func (batchRootModel) TableName() string { return "reward_batch_roots" }

type claimWordModel struct {
	Token       string `gorm:"primaryKey;size:42"`
	Beneficiary string `gorm:"primaryKey;size:42"`
	WordIndex   uint64 `gorm:"primaryKey"`
	Word        string `gorm:"size:66;not null"`
	UpdatedAt   time.Time
}

func (claimWordModel) TableName() string { return "reward_claim_words" }

type outboxModel struct {
	OutboxID     string `gorm:"primaryKey;size:64"`
	EventType    string `gorm:"size:128;not null"`
	PartitionKey string `gorm:"size:128"`
	Payload      []byte `gorm:"not null"`
	Status       string `gorm:"size:16;not null;index"`
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

func (outboxModel) TableName() string { return "reward_outbox" }
