package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStats writes decision counters to Redis hashes:
//
//	<prefix>:total                  allowed/denied
//	<prefix>:minute:<yyyymmddhhmm>  allowed/denied, expires after ttl
//	<prefix>:route                  "<METHOD> <path>:allowed|denied"
//	<prefix>:key:<client>           allowed/denied, expires after ttl
type RedisStats struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// RedisStatsOption configures RedisStats.
type RedisStatsOption func(*RedisStats)

// WithStatsPrefix sets the key prefix. Defaults to "tareas:ratelimit".
func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStats) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL sets the expiry of per-minute and per-key hashes.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStats) { s.ttl = d }
}

// NewRedisStats creates a recorder writing through rdb.
func NewRedisStats(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStats {
	s := &RedisStats{
		rdb:    rdb,
		prefix: "tareas:ratelimit",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStats) field(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

// MinuteKey returns the per-minute hash key for at.
func (s *RedisStats) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

// ClientKey returns the per-client hash key.
func (s *RedisStats) ClientKey(client string) string {
	return s.prefix + ":key:" + client
}

func (s *RedisStats) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := s.field(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	minuteKey := s.MinuteKey(at)
	pipe.HIncrBy(ctx, minuteKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, minuteKey, s.ttl)
	}

	if route := strings.TrimSpace(ev.Method + " " + ev.Path); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if k := strings.TrimSpace(ev.Key); k != "" {
		clientKey := s.ClientKey(k)
		pipe.HIncrBy(ctx, clientKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, clientKey, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
