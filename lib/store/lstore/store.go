package lstore

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/memento/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var plog = logger.GetLogger("store")

// Options configures the local store.
type Options struct {
	// QuotaBytes limits the summed size of all keys and values (0 = unlimited).
	QuotaBytes int64
}

// DefaultOptions returns options without a quota.
func DefaultOptions() *Options {
	return &Options{}
}

type storeImpl struct {
	data   *xsync.MapOf[string, []byte]
	quota  int64
	used   atomic.Int64
	closed atomic.Bool
}

// NewLocalStore creates a new local store instance.
// This store implementation only works inside one process; all clients that should
// coordinate through it must be handed the same instance.
func NewLocalStore(opts *Options) store.IStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &storeImpl{
		data:  xsync.NewMapOf[string, []byte](),
		quota: opts.QuotaBytes,
	}
}

// entrySize is the number of bytes an entry counts against the quota.
func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// copyBytes returns a copy of b to prevent callers from mutating stored values.
func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// reserve accounts for a size change of delta bytes. It fails if the quota would be exceeded.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) reserve(delta int64) bool {
	for {
		cur := s.used.Load()
		if delta > 0 && s.quota > 0 && cur+delta > s.quota {
			return false
		}
		if s.used.CompareAndSwap(cur, cur+delta) {
			return true
		}
	}
}

// write replaces the value of key if cond allows it.
// cond receives the current value and whether it exists.
func (s *storeImpl) write(key string, value []byte, cond func(old []byte, loaded bool) bool) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}
	var (
		written bool
		full    bool
	)
	valueCopy := copyBytes(value)
	s.data.Compute(key, func(old []byte, loaded bool) ([]byte, bool) {
		if !cond(old, loaded) {
			return old, !loaded
		}
		delta := entrySize(key, valueCopy)
		if loaded {
			delta -= entrySize(key, old)
		}
		if !s.reserve(delta) {
			full = true
			return old, !loaded
		}
		written = true
		return valueCopy, false
	})
	if full {
		plog.Warningf("write of %s rejected, quota of %d bytes reached", key, s.quota)
		return false, store.ErrStorageFull
	}
	return written, nil
}

// remove deletes key if cond allows it.
func (s *storeImpl) remove(key string, cond func(old []byte) bool) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}
	var deleted bool
	s.data.Compute(key, func(old []byte, loaded bool) ([]byte, bool) {
		if !loaded || !cond(old) {
			return old, !loaded
		}
		s.reserve(-entrySize(key, old))
		deleted = true
		return nil, true
	})
	return deleted, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(_ context.Context, key string, value []byte) error {
	_, err := s.write(key, value, func([]byte, bool) bool { return true })
	return err
}

func (s *storeImpl) SetIfUnset(_ context.Context, key string, value []byte) (bool, error) {
	return s.write(key, value, func(_ []byte, loaded bool) bool { return !loaded })
}

func (s *storeImpl) CompareAndSwap(_ context.Context, key string, old, value []byte) (bool, error) {
	return s.write(key, value, func(cur []byte, loaded bool) bool {
		return loaded && bytes.Equal(cur, old)
	})
}

func (s *storeImpl) CompareAndDelete(_ context.Context, key string, old []byte) (bool, error) {
	return s.remove(key, func(cur []byte) bool { return bytes.Equal(cur, old) })
}

func (s *storeImpl) Delete(_ context.Context, key string) error {
	_, err := s.remove(key, func([]byte) bool { return true })
	return err
}

func (s *storeImpl) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, store.ErrClosed
	}
	val, ok := s.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	return copyBytes(val), true, nil
}

func (s *storeImpl) Has(_ context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}
	_, ok := s.data.Load(key)
	return ok, nil
}

func (s *storeImpl) Keys(_ context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var keys []string
	s.data.Range(func(key string, _ []byte) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	return keys, nil
}

func (s *storeImpl) GetDBInfo(_ context.Context) (store.DatabaseInfo, error) {
	return store.DatabaseInfo{
		SizeBytes:  s.used.Load(),
		QuotaBytes: s.quota,
		Keys:       s.data.Size(),
		DbType:     store.ImplMemory,
	}, nil
}

func (s *storeImpl) Close() error {
	s.closed.Store(true)
	return nil
}
