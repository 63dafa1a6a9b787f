package vault

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/memento/lib/common"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/ValentinKolb/memento/lib/store/bstore"
	"github.com/ValentinKolb/memento/lib/store/lstore"
	"github.com/ValentinKolb/memento/lib/store/rstore"
)

// NewStore opens the medium selected by config.Store.
func NewStore(ctx context.Context, config common.ClientConfig) (store.IStore, error) {
	switch config.Store {
	case store.ImplMemory, "":
		return lstore.NewLocalStore(&lstore.Options{QuotaBytes: config.QuotaBytes}), nil
	case store.ImplBadger:
		return bstore.NewBadgerStore(bstore.Options{Dir: config.DataDir})
	case store.ImplRedis:
		return rstore.NewRedisStore(ctx, rstore.Options{
			Addr:      config.RedisAddr,
			Password:  config.RedisPassword,
			DB:        config.RedisDB,
			Namespace: config.RedisNamespace,
		})
	default:
		return nil, fmt.Errorf("invalid store %q", config.Store)
	}
}
