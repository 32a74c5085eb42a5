package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auth-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// incrementScript abre a janela no primeiro hit (PEXPIRE) e devolve a contagem
// e o TTL restante em ms, tudo numa única ida ao Redis.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore implementa domain.WindowStore com uma chave Redis por cliente.
// A expiração fica por conta do próprio Redis, então não há janitor.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithRedisClock troca o relógio usado por Get para converter o TTL em ResetAt.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "ratelimit:window", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k domain.Key) string {
	return s.prefix + ":" + string(k)
}

// Increment implementa domain.WindowStore.
func (s *RedisStore) Increment(ctx context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Window, error) {
	res, err := incrementScript.Run(ctx, s.rdb, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.Window{}, fmt.Errorf("redis window increment: %w", err)
	}
	if len(res) != 2 {
		return domain.Window{}, fmt.Errorf("redis window increment: unexpected reply %v", res)
	}
	return domain.Window{
		Count:   int(res[0]),
		ResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// Get implementa domain.WindowStore.
func (s *RedisStore) Get(ctx context.Context, key domain.Key) (domain.Window, bool, error) {
	k := s.key(key)

	pipe := s.rdb.Pipeline()
	countCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.Window{}, false, fmt.Errorf("redis window get: %w", err)
	}

	count, err := countCmd.Int()
	if errors.Is(err, redis.Nil) {
		return domain.Window{}, false, nil
	}
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("redis window get: %w", err)
	}
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return domain.Window{}, false, nil
	}
	return domain.Window{Count: count, ResetAt: s.now().Add(ttl)}, true, nil
}
