// Package storage is the durable local store: a small namespaced key-value
// table in sqlite that survives restarts, the desktop analog of the web
// client's persisted localStorage blob. Each state slice has exactly one
// writer (its persistence subscriber), so rows are never contended within a
// process.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Namespace is the root namespace holding the serialized state slices.
const Namespace = "orderfood"

// Legacy keys kept outside the slice blob for backward compatibility with
// components that read them directly.
const (
	KeyUser        = "user"
	KeyAccessToken = "accessToken"
	KeyCartCount   = "cartCount"
)

// Slice keys inside the root namespace.
const (
	KeyCart      = "cart"
	KeyAuth      = "auth"
	KeyFavorites = "favorites"
	KeyPoints    = "points"
)

type Entry struct {
	Namespace string    `gorm:"primaryKey;size:64"`
	Key       string    `gorm:"primaryKey;size:128"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index"`
}

type Store struct {
	db     *gorm.DB
	sealer *Sealer
}

// Open opens (or creates) the sqlite store at path. sealer may be nil, in
// which case sealed reads and writes degrade to plain ones.
func Open(path string, sealer *Sealer) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", path, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate storage: %w", err)
	}
	return &Store{db: db, sealer: sealer}, nil
}

func (s *Store) Get(ns, key string) ([]byte, bool, error) {
	var e Entry
	err := s.db.Where("namespace = ? AND key = ?", ns, key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage get %s/%s: %w", ns, key, err)
	}
	return e.Value, true, nil
}

func (s *Store) Put(ns, key string, value []byte) error {
	e := Entry{Namespace: ns, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.Save(&e).Error
	if err != nil {
		return fmt.Errorf("storage put %s/%s: %w", ns, key, err)
	}
	return nil
}

func (s *Store) Delete(ns, key string) error {
	err := s.db.Where("namespace = ? AND key = ?", ns, key).Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("storage delete %s/%s: %w", ns, key, err)
	}
	return nil
}

func (s *Store) GetJSON(ns, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ns, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage decode %s/%s: %w", ns, key, err)
	}
	return true, nil
}

func (s *Store) PutJSON(ns, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage encode %s/%s: %w", ns, key, err)
	}
	return s.Put(ns, key, raw)
}

// PutSealed writes value encrypted at rest when a sealer is configured.
func (s *Store) PutSealed(ns, key string, value []byte) error {
	if s.sealer == nil {
		return s.Put(ns, key, value)
	}
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("storage seal %s/%s: %w", ns, key, err)
	}
	return s.Put(ns, key, sealed)
}

// GetSealed reads a value written by PutSealed. A value that fails to open
// is treated the same as a corrupt entry by callers: discarded, not fatal.
func (s *Store) GetSealed(ns, key string) ([]byte, bool, error) {
	raw, ok, err := s.Get(ns, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if s.sealer == nil {
		return raw, true, nil
	}
	plain, err := s.sealer.Open(raw)
	if err != nil {
		return nil, false, fmt.Errorf("storage unseal %s/%s: %w", ns, key, err)
	}
	return plain, true, nil
}

// ChangedSince reports whether any row in ns was written after t. The
// session watcher uses it to notice writes from another process and re-run
// its read step.
func (s *Store) ChangedSince(ns string, t time.Time) (bool, error) {
	var n int64
	err := s.db.Model(&Entry{}).
		Where("namespace = ? AND updated_at > ?", ns, t.UTC()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("storage changed-since %s: %w", ns, err)
	}
	return n > 0, nil
}
