package cachestore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProfileSnapshot caches the last fetched viewer profile.
type ProfileSnapshot struct {
	UserID       string         `gorm:"primaryKey"`
	RollNumber   string         `gorm:"not null"`
	DisplayName  string         `gorm:""`
	Role         string         `gorm:""`
	Department   string         `gorm:""`
	BalancePaise int64          `gorm:"not null"`
	Payload      datatypes.JSON `gorm:""`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (ProfileSnapshot) TableName() string { return "profile_snapshots" }

// CachedTransaction caches one history record for its owner.
type CachedTransaction struct {
	RowID        string         `gorm:"type:uuid;primaryKey"`
	OwnerID      string         `gorm:"not null;index:idx_cached_owner_created,priority:1"`
	RecordID     string         `gorm:"index"`
	SenderID     string         `gorm:""`
	SenderName   string         `gorm:""`
	ReceiverID   string         `gorm:""`
	ReceiverName string         `gorm:""`
	AmountPaise  int64          `gorm:"not null"`
	Payload      datatypes.JSON `gorm:""`
	CreatedAt    time.Time      `gorm:"not null;index:idx_cached_owner_created,priority:2"`
}

func (CachedTransaction) TableName() string { return "cached_transactions" }

func (transaction *CachedTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.RowID == "" {
		transaction.RowID = uuid.NewString()
	}
	return nil
}
