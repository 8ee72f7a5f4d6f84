package pollution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache は観測所一覧のキャッシュ。見つからない場合や期限切れの場合はok=falseを返す。
//
// LastGood は期限に関係なく最後に保存された一覧を返す。上流の障害時に使う。
type Cache interface {
	Get(ctx context.Context) (data json.RawMessage, ok bool, err error)
	Set(ctx context.Context, data json.RawMessage, ttl time.Duration) error
	LastGood(ctx context.Context) (data json.RawMessage, ok bool, err error)
}

// MemoryCache はプロセス内キャッシュ。単一インスタンス構成で使う。
type MemoryCache struct {
	mu        sync.RWMutex
	data      json.RawMessage
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryCache はMemoryCacheを生成する。
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context) (json.RawMessage, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || !c.now().Before(c.expiresAt) {
		return nil, false, nil
	}
	return c.data, true, nil
}

// LastGood は期限切れでも保持している一覧を返す。
func (c *MemoryCache) LastGood(ctx context.Context) (json.RawMessage, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return nil, false, nil
	}
	return c.data, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, data json.RawMessage, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// RedisKey は観測所一覧を保存するキー。
const RedisKey = "ecopoints:pollution:stations"

// RedisLastGoodKey は期限なしで保持する最後の一覧のキー。
const RedisLastGoodKey = RedisKey + ":last-good"

// RedisCache は複数インスタンスで共有するRedisキャッシュ。
// worker モードで更新した一覧をserveモードのインスタンスから参照できる。
type RedisCache struct {
	rdb         *redis.Client
	key         string
	lastGoodKey string
}

// NewRedisCache はRedisCacheを生成する。
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, key: RedisKey, lastGoodKey: RedisLastGoodKey}
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLのパースに失敗しました: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context) (json.RawMessage, bool, error) {
	return c.get(ctx, c.key)
}

func (c *RedisCache) LastGood(ctx context.Context) (json.RawMessage, bool, error) {
	return c.get(ctx, c.lastGoodKey)
}

func (c *RedisCache) get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("キャッシュの取得に失敗しました: %w", err)
	}
	return json.RawMessage(b), true, nil
}

// Set はTTL付きのキーと期限なしのキーを同じパイプラインで更新する。
func (c *RedisCache) Set(ctx context.Context, data json.RawMessage, ttl time.Duration) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.key, []byte(data), ttl)
		pipe.Set(ctx, c.lastGoodKey, []byte(data), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
