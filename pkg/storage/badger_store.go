package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/utils"
)

// catalogDBDir is the subdirectory of the state directory holding Badger files
const catalogDBDir = "catalog_db"

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the catalog database under stateDir.
// An empty stateDir opens an in-memory database.
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	var opts badger.Options
	if stateDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		logger.Info("Initializing in-memory catalog database")
	} else {
		dbPath := filepath.Join(stateDir, catalogDBDir)
		if err := os.MkdirAll(dbPath, 0755); err != nil {
			return nil, fmt.Errorf("%w: cannot create state directory %s: %v", utils.ErrDatabase, dbPath, err)
		}
		opts = badger.DefaultOptions(dbPath)
		logger.Infof("Initializing catalog database at: %s", dbPath)
	}
	opts = opts.
		WithLogger(newBadgerLogger(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger database: %v", utils.ErrDatabase, err)
	}
	store.db = db
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Get implements KeyValueStore
func (s *BadgerStore) Get(key string, v any) (bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get %q: %v", utils.ErrDatabase, key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%w: decode %q: %v", utils.ErrDatabase, key, err)
	}
	return true, nil
}

// Set implements KeyValueStore
func (s *BadgerStore) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", utils.ErrDatabase, key, err)
	}
	err = s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("%w: set %q: %v", utils.ErrDatabase, key, err)
	}
	return nil
}

// Delete implements KeyValueStore
func (s *BadgerStore) Delete(key string) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %q: %v", utils.ErrDatabase, key, err)
	}
	return nil
}

// ScanPrefix implements KeyValueStore
func (s *BadgerStore) ScanPrefix(prefix string, fn func(key string, raw []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			if err := item.Value(func(val []byte) error { return fn(key, val) }); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplacePrefix implements KeyValueStore
func (s *BadgerStore) ReplacePrefix(prefix string, entries map[string]any) error {
	if err := s.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("%w: drop prefix %q: %v", utils.ErrDatabase, prefix, err)
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for key, v := range entries {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: encode %q: %v", utils.ErrDatabase, key, err)
		}
		if err := wb.Set([]byte(key), raw); err != nil {
			return fmt.Errorf("%w: batch set %q: %v", utils.ErrDatabase, key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: flush batch: %v", utils.ErrDatabase, err)
	}
	s.log.WithFields(logrus.Fields{"prefix": prefix, "keys": len(entries)}).Debug("Replaced key range")
	return nil
}

// Clear implements KeyValueStore
func (s *BadgerStore) Clear() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("%w: drop all: %v", utils.ErrDatabase, err)
	}
	s.log.Info("Catalog database cleared")
	return nil
}

// Count implements StoreAdmin
func (s *BadgerStore) Count(prefix string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// RunGC runs periodic value-log garbage collection until ctx is done.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			// Loop until nothing is left to rewrite
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) && !errors.Is(err, badger.ErrGCInMemoryMode) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing catalog DB: %v", err)
		return err
	}
	s.log.Debug("Catalog DB closed.")
	return nil
}
