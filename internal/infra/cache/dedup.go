package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// 一度だけ処理するためのキー記録
type DedupStore interface {
	// 初めてのキーなら true（ttlの間は覚えておく）
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// 処理に失敗したときに忘れる（再送で再処理できるように）
	Forget(ctx context.Context, key string) error
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type RedisDedup struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisDedup(rdb redis.Cmdable, prefix string) *RedisDedup {
	return &RedisDedup{rdb: rdb, prefix: prefix}
}

func (d *RedisDedup) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.rdb.SetNX(ctx, d.prefix+key, 1, ttl).Result()
}

func (d *RedisDedup) Forget(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, d.prefix+key).Err()
}

// プロセス内だけで覚える
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDedup(now func() time.Time) *MemoryDedup {
	if now == nil {
		now = time.Now
	}
	return &MemoryDedup{seen: map[string]time.Time{}, now: now}
}

func (d *MemoryDedup) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}

func (d *MemoryDedup) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

var (
	_ DedupStore = (*RedisDedup)(nil)
	_ DedupStore = (*MemoryDedup)(nil)
)
