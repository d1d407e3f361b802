package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LockManager hands out durable keyed locks stored in processing_locks. A
// lock row survives process restarts and is visible to every replica; expired
// rows are reclaimed on the next acquisition or by SweepExpired.
type LockManager struct {
	db  *gorm.DB
	ttl time.Duration
	log *logrus.Entry
}

func NewLockManager(db *gorm.DB, ttl time.Duration) *LockManager {
	if db == nil {
		db = config.DB
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LockManager{
		db:  db,
		ttl: ttl,
		log: config.Logger().WithField("component", "processing_locks"),
	}
}

// LockHandle releases the keys acquired together by AcquireAll.
type LockHandle struct {
	manager *LockManager
	owner   string
	keys    []string
}

func (h *LockHandle) Owner() string {
	return h.owner
}

func (h *LockHandle) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Release drops the locks. It runs detached from ctx cancellation so a
// cancelled request still frees its keys.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || len(h.keys) == 0 {
		return nil
	}
	err := h.manager.db.WithContext(persistentContext(ctx)).
		Where("owner = ?", h.owner).
		Delete(&models.ProcessingLock{}).Error
	if err != nil {
		h.manager.log.WithError(err).WithField("owner", h.owner).Error("failed to release processing locks")
	}
	return err
}

// AcquireAll takes every key or none. When any key is held by a live lock it
// returns a ConflictError naming the held keys.
func (m *LockManager) AcquireAll(ctx context.Context, keys []string, purpose string) (*LockHandle, error) {
	keys = uniqueKeys(keys)
	if len(keys) == 0 {
		return nil, ValidationError("no items selected", map[string]string{"ids": "is required"})
	}

	owner := uuid.NewString()
	ts := now()
	locks := make([]models.ProcessingLock, 0, len(keys))
	for _, key := range keys {
		locks = append(locks, models.ProcessingLock{
			LockKey:   key,
			Owner:     owner,
			Purpose:   purpose,
			ExpiresAt: ts.Add(m.ttl),
			CreatedAt: ts,
		})
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lock_key IN ? AND expires_at <= ?", keys, ts).
			Delete(&models.ProcessingLock{}).Error; err != nil {
			return err
		}
		return tx.Create(&locks).Error
	})
	if err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		held, lookupErr := m.HeldKeys(ctx, keys)
		if lookupErr != nil {
			m.log.WithError(lookupErr).Warn("failed to list held processing locks")
		}
		if len(held) == 0 {
			held = keys
		}
		return nil, ConflictError("items already being processed: %s", strings.Join(held, ", "))
	}

	return &LockHandle{manager: m, owner: owner, keys: keys}, nil
}

// HeldKeys returns which of keys are currently locked by a live owner.
func (m *LockManager) HeldKeys(ctx context.Context, keys []string) ([]string, error) {
	var rows []models.ProcessingLock
	if err := m.db.WithContext(ctx).
		Where("lock_key IN ? AND expires_at > ?", keys, now()).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	held := make([]string, 0, len(rows))
	for _, row := range rows {
		held = append(held, row.LockKey)
	}
	sort.Strings(held)
	return held, nil
}

// SweepExpired deletes lock rows whose owners never released them.
func (m *LockManager) SweepExpired(ctx context.Context) (int64, error) {
	res := m.db.WithContext(ctx).Where("expires_at <= ?", now()).Delete(&models.ProcessingLock{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		m.log.WithField("count", res.RowsAffected).Info("swept expired processing locks")
	}
	return res.RowsAffected, nil
}

func applicationLockKey(applicationID uint) string {
	return "application:" + uitoa(applicationID)
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
