package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis grava contadores em hashes:
//
//	<prefix>:<source>:total            allowed|denied
//	<prefix>:<source>:minute:<yyyymmddhhmm>
//	<prefix>:<source>:route            "<METHOD> <path>:<outcome>"
//	<prefix>:<source>:status           "<status>"
//	<prefix>:<source>:key:<key>        (opcional)
type Redis struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(s *Redis) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *Redis) { s.ttl = d }
}

func WithBucket(bucket string) RedisOption {
	return func(s *Redis) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithRedisTrackKeys(track bool) RedisOption {
	return func(s *Redis) { s.trackKeys = track }
}

func NewRedis(rdb redis.UniversalClient, opts ...RedisOption) *Redis {
	s := &Redis{
		rdb:    rdb,
		prefix: "gateway:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	src := string(ev.Source)
	if src == "" {
		src = "unknown"
	}
	base := s.prefix + ":" + src
	field := ev.outcome()

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, base+":total", field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", base, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	routeField := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
	if routeField != "" {
		pipe.HIncrBy(ctx, base+":route", routeField+":"+field, 1)
	}

	if ev.Status != 0 {
		pipe.HIncrBy(ctx, base+":status", ev.statusLabel(), 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(ev.Key); k != "" {
			keyKey := base + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats: %w", err)
	}
	return nil
}
