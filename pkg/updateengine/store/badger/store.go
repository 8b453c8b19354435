// Package badger implements pkg/updateengine.PersistedStore and
// pkg/updateengine.PowerwashSafePersistedStore over embedded BadgerDB
// databases.
//
// Two instances are used rather than one: the normal store lives under
// the device's ordinary data partition and is wiped on powerwash, while
// the powerwash-safe store lives under a partition the factory-reset flow
// preserves. Nothing here decides which partition that is — callers pass
// two already-opened *badger.DB handles.
package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittofs/internal/logger"
	"github.com/marmos91/dittofs/pkg/updateengine"
)

// Store is a pkg/updateengine.PersistedStore backed by a BadgerDB handle.
// The same type also implements PowerwashSafePersistedStore's narrower
// string-only surface, so a second Store wrapping a second *badger.DB can
// serve as the powerwash-safe backend.
type Store struct {
	db *badgerdb.DB
}

// New wraps an already-opened BadgerDB handle. Opening/closing the
// database is the caller's responsibility.
func New(db *badgerdb.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetInt64(key string) (int64, bool) {
	var value int64
	var found bool
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyInt(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			value = decodeInt64(val)
			return nil
		})
	})
	if err != nil {
		logger.Warn("update engine store: get int64 failed", "key", key, "error", err)
		return 0, false
	}
	return value, found
}

func (s *Store) SetInt64(key string, value int64) {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyInt(key), encodeInt64(value))
	})
	if err != nil {
		logger.Warn("update engine store: set int64 failed", "key", key, "error", err)
	}
}

func (s *Store) GetString(key string) (string, bool) {
	var value string
	var found bool
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyStr(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		logger.Warn("update engine store: get string failed", "key", key, "error", err)
		return "", false
	}
	return value, found
}

func (s *Store) SetString(key string, value string) {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyStr(key), []byte(value))
	})
	if err != nil {
		logger.Warn("update engine store: set string failed", "key", key, "error", err)
	}
}

func (s *Store) Delete(key string) {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(keyInt(key)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Delete(keyStr(key))
	})
	if err != nil {
		logger.Warn("update engine store: delete failed", "key", key, "error", err)
	}
}

func (s *Store) Exists(key string) bool {
	exists := false
	_ = s.db.View(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyInt(key)); err == nil {
			exists = true
			return nil
		}
		if _, err := txn.Get(keyStr(key)); err == nil {
			exists = true
		}
		return nil
	})
	return exists
}

var (
	_ updateengine.PersistedStore             = (*Store)(nil)
	_ updateengine.PowerwashSafePersistedStore = (*Store)(nil)
)

func encodeInt64(v int64) []byte {
	return []byte(fmt.Sprintf("%d", v))
}

func decodeInt64(b []byte) int64 {
	var v int64
	_, _ = fmt.Sscanf(string(b), "%d", &v)
	return v
}
