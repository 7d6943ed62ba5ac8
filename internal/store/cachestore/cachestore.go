package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/wallet/pkg/walletflow"
)

const (
	errorOperationCache    = "cache"
	errorSubjectProfile    = "profile"
	errorSubjectHistory    = "history"
	errorCodeSave          = "save"
	errorCodeGet           = "get"
	errorCodeDelete        = "delete"
	errorCodeReplace       = "replace"
	errorCodePrepend       = "prepend"
	errorCodeList          = "list"
	errorCodeInvalidRecord = "invalid_record"
)

// Store is the local read cache of profile and history. It is never
// authoritative: every mutation success invalidates and the next read
// refetches from the ledger.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the cache tables.
func (store *Store) Migrate(ctx context.Context) error {
	return store.db.WithContext(ctx).AutoMigrate(&ProfileSnapshot{}, &CachedTransaction{})
}

// SaveProfile upserts the viewer snapshot.
func (store *Store) SaveProfile(ctx context.Context, profile walletflow.Profile) error {
	payload, err := json.Marshal(map[string]any{
		"name":       profile.DisplayName,
		"role":       profile.Role,
		"department": profile.Department,
	})
	if err != nil {
		return wrapCacheError(errorSubjectProfile, errorCodeSave, err)
	}
	snapshot := ProfileSnapshot{
		UserID:       profile.Identity.UserID.String(),
		RollNumber:   profile.Identity.RollNumber.String(),
		DisplayName:  profile.DisplayName,
		Role:         profile.Role,
		Department:   profile.Department,
		BalancePaise: profile.Balance.Int64(),
		Payload:      datatypes.JSON(payload),
		UpdatedAt:    time.Now().UTC(),
	}
	err = store.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&snapshot).Error
	if err != nil {
		return wrapCacheError(errorSubjectProfile, errorCodeSave, err)
	}
	return nil
}

// GetProfile returns the cached snapshot, reporting whether one exists.
func (store *Store) GetProfile(ctx context.Context, userID walletflow.UserID) (walletflow.Profile, bool, error) {
	var snapshot ProfileSnapshot
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return walletflow.Profile{}, false, nil
	}
	if err != nil {
		return walletflow.Profile{}, false, wrapCacheError(errorSubjectProfile, errorCodeGet, err)
	}
	profile, err := snapshotToProfile(snapshot)
	if err != nil {
		return walletflow.Profile{}, false, wrapCacheError(errorSubjectProfile, errorCodeInvalidRecord, err)
	}
	return profile, true, nil
}

// InvalidateProfile drops the cached snapshot so the next read refetches.
func (store *Store) InvalidateProfile(ctx context.Context, userID walletflow.UserID) error {
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Delete(&ProfileSnapshot{}).Error
	if err != nil {
		return wrapCacheError(errorSubjectProfile, errorCodeDelete, err)
	}
	return nil
}

// ReplaceHistory swaps the owner's cached history wholesale for the records
// of a fresh fetch.
func (store *Store) ReplaceHistory(ctx context.Context, owner walletflow.UserID, records []walletflow.TransactionRecord) error {
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.
			Where("owner_id = ?", owner.String()).
			Delete(&CachedTransaction{}).Error; err != nil {
			return err
		}
		for _, record := range records {
			row, err := recordToRow(owner, record)
			if err != nil {
				return err
			}
			if err := transaction.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapCacheError(errorSubjectHistory, errorCodeReplace, err)
	}
	return nil
}

// PrependRecord inserts one record optimistically, for credit notifications
// arriving between fetches.
func (store *Store) PrependRecord(ctx context.Context, owner walletflow.UserID, record walletflow.TransactionRecord) error {
	row, err := recordToRow(owner, record)
	if err != nil {
		return wrapCacheError(errorSubjectHistory, errorCodePrepend, err)
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapCacheError(errorSubjectHistory, errorCodePrepend, err)
	}
	return nil
}

// ListHistory returns the owner's cached records, newest first.
func (store *Store) ListHistory(ctx context.Context, owner walletflow.UserID) ([]walletflow.TransactionRecord, error) {
	var rows []CachedTransaction
	err := store.db.WithContext(ctx).
		Where("owner_id = ?", owner.String()).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, wrapCacheError(errorSubjectHistory, errorCodeList, err)
	}
	records := make([]walletflow.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(row))
	}
	return records, nil
}

func recordToRow(owner walletflow.UserID, record walletflow.TransactionRecord) (CachedTransaction, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return CachedTransaction{}, err
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return CachedTransaction{
		OwnerID:      owner.String(),
		RecordID:     record.ID,
		SenderID:     record.SenderID,
		SenderName:   record.SenderName,
		ReceiverID:   record.ReceiverID,
		ReceiverName: record.ReceiverName,
		AmountPaise:  record.Amount.Int64(),
		Payload:      datatypes.JSON(payload),
		CreatedAt:    createdAt,
	}, nil
}

func rowToRecord(row CachedTransaction) walletflow.TransactionRecord {
	return walletflow.TransactionRecord{
		ID:           row.RecordID,
		SenderID:     row.SenderID,
		SenderName:   row.SenderName,
		ReceiverID:   row.ReceiverID,
		ReceiverName: row.ReceiverName,
		Amount:       walletflow.AmountPaise(row.AmountPaise),
		CreatedAt:    row.CreatedAt,
	}
}

func snapshotToProfile(snapshot ProfileSnapshot) (walletflow.Profile, error) {
	userID, err := walletflow.NewUserID(snapshot.UserID)
	if err != nil {
		return walletflow.Profile{}, err
	}
	rollNumber, err := walletflow.NewRollNumber(snapshot.RollNumber)
	if err != nil {
		return walletflow.Profile{}, err
	}
	return walletflow.Profile{
		Identity: walletflow.Identity{
			UserID:     userID,
			RollNumber: rollNumber,
		},
		DisplayName: snapshot.DisplayName,
		Role:        snapshot.Role,
		Department:  snapshot.Department,
		Balance:     walletflow.AmountPaise(snapshot.BalancePaise),
	}, nil
}

func wrapCacheError(subject string, code string, err error) error {
	return walletflow.WrapError(errorOperationCache, subject, code, err)
}
