package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rankbridge/rerankgate/pkg/common"
)

const (
	RerankKeyPattern = "rerank:%s"

	RerankTTLName = "rerank"
)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
}

// Cache pairs redis with a process-local TTL front so repeated lookups
// within one instance skip the network round trip.
type Cache struct {
	client  *redis.Client
	ttlMaps sync.Map
}

func NewCache(config Config) (*Cache, error) {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	}
	if config.TLS {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: true, // #nosec G402
		}
	}
	return NewCacheWithClient(redis.NewClient(options)), nil
}

// NewCacheWithClient wraps an existing redis client. Used by tests with
// redismock.
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{
		client: client,
	}
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *Cache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) CreateTTLMap(name string, ttl time.Duration) *common.TTLMap {
	ttlMap := common.NewTTLMap(ttl)
	c.ttlMaps.Store(name, ttlMap)
	return ttlMap
}

func (c *Cache) GetTTLMap(name string) *common.TTLMap {
	if value, ok := c.ttlMaps.Load(name); ok {
		if ttlMap, ok := value.(*common.TTLMap); ok {
			return ttlMap
		}
	}
	return nil
}
