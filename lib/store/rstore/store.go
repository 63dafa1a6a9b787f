package rstore

import (
	"context"
	"errors"
	"strings"

	"github.com/ValentinKolb/memento/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
)

var plog = logger.GetLogger("store")

const scanBatch = 256

// compareAndSwapScript replaces KEYS[1] with ARGV[2] only if it currently holds ARGV[1].
var compareAndSwapScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// compareAndDeleteScript deletes KEYS[1] only if it currently holds ARGV[1].
var compareAndDeleteScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)

// Options configures the redis store.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Namespace is prepended to every key, so several inventories can share one server.
	Namespace string
}

type storeImpl struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to a redis server and verifies the connection.
func NewRedisStore(ctx context.Context, opts Options) (store.IStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, wrapError("ping", err)
	}
	return NewRedisStoreFromClient(client, opts.Namespace), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes ownership of the client.
func NewRedisStoreFromClient(client *redis.Client, namespace string) store.IStore {
	return &storeImpl{
		client:    client,
		namespace: namespace,
	}
}

func (s *storeImpl) key(k string) string {
	return s.namespace + k
}

// wrapError converts redis errors to store errors.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, redis.ErrClosed):
		return store.WrapError(store.RetCClosed, op, err)
	case strings.HasPrefix(err.Error(), "OOM"):
		// maxmemory reached: "OOM command not allowed when used memory > 'maxmemory'"
		plog.Warningf("redis %s rejected, medium is full: %v", op, err)
		return store.WrapError(store.RetCStorageFull, op, err)
	default:
		plog.Errorf("redis %s failed: %v", op, err)
		return store.WrapError(store.RetCInternalError, op, err)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value []byte) error {
	return wrapError("set", s.client.Set(ctx, s.key(key), value, 0).Err())
}

func (s *storeImpl) SetIfUnset(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, 0).Result()
	if err != nil {
		return false, wrapError("setIfUnset", err)
	}
	return ok, nil
}

func (s *storeImpl) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	result, err := compareAndSwapScript.Run(ctx, s.client, []string{s.key(key)}, old, value).Int()
	if err != nil {
		return false, wrapError("compareAndSwap", err)
	}
	return result == 1, nil
}

func (s *storeImpl) CompareAndDelete(ctx context.Context, key string, old []byte) (bool, error) {
	result, err := compareAndDeleteScript.Run(ctx, s.client, []string{s.key(key)}, old).Int()
	if err != nil {
		return false, wrapError("compareAndDelete", err)
	}
	return result == 1, nil
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	return wrapError("delete", s.client.Del(ctx, s.key(key)).Err())
}

func (s *storeImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapError("get", err)
	}
	return value, true, nil
}

func (s *storeImpl) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, wrapError("has", err)
	}
	return n > 0, nil
}

func (s *storeImpl) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.key(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapError("keys", err)
	}
	return keys, nil
}

func (s *storeImpl) GetDBInfo(ctx context.Context) (store.DatabaseInfo, error) {
	keys, err := s.Keys(ctx, "")
	if err != nil {
		return store.DatabaseInfo{}, err
	}
	var size int64
	for _, k := range keys {
		n, err := s.client.StrLen(ctx, s.key(k)).Result()
		if err != nil {
			return store.DatabaseInfo{}, wrapError("info", err)
		}
		size += int64(len(k)) + n
	}
	return store.DatabaseInfo{
		SizeBytes: size,
		Keys:      len(keys),
		DbType:    store.ImplRedis,
	}, nil
}

func (s *storeImpl) Close() error {
	return s.client.Close()
}
