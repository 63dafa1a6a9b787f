package bstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/ValentinKolb/memento/lib/store"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("store")

// Options configures the badger store.
type Options struct {
	// Dir is the directory holding the badger files. It is created if missing.
	Dir string
	// ValueLogFileSize is the size of a single value log file in bytes (0 = 64MB).
	ValueLogFileSize int64
}

type storeImpl struct {
	db *badger.DB
	// writeMu serializes writes so conditional writes can read and write in one step.
	// Badger permits a single process per directory, so a process mutex is sufficient.
	writeMu sync.Mutex
}

// NewBadgerStore opens (or creates) a badger database in opts.Dir.
func NewBadgerStore(opts Options) (store.IStore, error) {
	if opts.Dir == "" {
		return nil, store.NewError(store.RetCInvalidOperation, "badger store requires a directory")
	}
	if opts.ValueLogFileSize == 0 {
		opts.ValueLogFileSize = 64 << 20
	}
	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", opts.Dir, err)
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(nil).                             // Disable verbose logging
		WithValueLogFileSize(opts.ValueLogFileSize). // Blobs live in the value log
		WithNumVersionsToKeep(1).                    // Keep only latest version
		WithCompactL0OnClose(true).                  // Compact on close
		WithDetectConflicts(false).                  // Writes are serialized by writeMu
		WithBlockCacheSize(32 << 20).                // 32MB block cache
		WithIndexCacheSize(16 << 20)                 // 16MB index cache

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db %s: %w", opts.Dir, err)
	}
	return &storeImpl{db: db}, nil
}

// wrapError converts badger errors to store errors.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, badger.ErrDBClosed):
		return store.WrapError(store.RetCClosed, op, err)
	case errors.Is(err, badger.ErrBlockedWrites),
		errors.Is(err, badger.ErrTxnTooBig),
		errors.Is(err, syscall.ENOSPC):
		plog.Warningf("badger %s rejected, medium is full: %v", op, err)
		return store.WrapError(store.RetCStorageFull, op, err)
	default:
		plog.Errorf("badger %s failed: %v", op, err)
		return store.WrapError(store.RetCInternalError, op, err)
	}
}

// load reads the current value of key inside txn.
func load(txn *badger.Txn, key string) ([]byte, bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// update runs fn in a read-write transaction while holding the write mutex.
func (s *storeImpl) update(op string, fn func(txn *badger.Txn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wrapError(op, s.db.Update(fn))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(_ context.Context, key string, value []byte) error {
	return s.update("set", func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *storeImpl) SetIfUnset(_ context.Context, key string, value []byte) (bool, error) {
	var written bool
	err := s.update("setIfUnset", func(txn *badger.Txn) error {
		_, loaded, err := load(txn, key)
		if err != nil || loaded {
			return err
		}
		written = true
		return txn.Set([]byte(key), value)
	})
	return written && err == nil, err
}

func (s *storeImpl) CompareAndSwap(_ context.Context, key string, old, value []byte) (bool, error) {
	var written bool
	err := s.update("compareAndSwap", func(txn *badger.Txn) error {
		cur, loaded, err := load(txn, key)
		if err != nil || !loaded || !bytes.Equal(cur, old) {
			return err
		}
		written = true
		return txn.Set([]byte(key), value)
	})
	return written && err == nil, err
}

func (s *storeImpl) CompareAndDelete(_ context.Context, key string, old []byte) (bool, error) {
	var deleted bool
	err := s.update("compareAndDelete", func(txn *badger.Txn) error {
		cur, loaded, err := load(txn, key)
		if err != nil || !loaded || !bytes.Equal(cur, old) {
			return err
		}
		deleted = true
		return txn.Delete([]byte(key))
	})
	return deleted && err == nil, err
}

func (s *storeImpl) Delete(_ context.Context, key string) error {
	return s.update("delete", func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *storeImpl) Get(_ context.Context, key string) (value []byte, loaded bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		value, loaded, err = load(txn, key)
		return err
	})
	if err != nil {
		return nil, false, wrapError("get", err)
	}
	return value, loaded, nil
}

func (s *storeImpl) Has(ctx context.Context, key string) (bool, error) {
	var loaded bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		loaded = err == nil
		return err
	})
	return loaded, wrapError("has", err)
}

func (s *storeImpl) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, wrapError("keys", err)
	}
	return keys, nil
}

func (s *storeImpl) GetDBInfo(ctx context.Context) (store.DatabaseInfo, error) {
	keys, err := s.Keys(ctx, "")
	if err != nil {
		return store.DatabaseInfo{}, err
	}
	lsm, vlog := s.db.Size()
	return store.DatabaseInfo{
		SizeBytes: lsm + vlog,
		Keys:      len(keys),
		DbType:    store.ImplBadger,
	}, nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}
