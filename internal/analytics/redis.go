// Package analytics records invocation outcomes in Redis as minute-bucketed
// counters. Best-effort only; a failed write never affects the invocation.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long outcome counters stay queryable.
const DefaultRetention = 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, retention: DefaultRetention}
}

// WithRetention overrides the counter TTL.
func (s *RedisSink) WithRetention(d time.Duration) *RedisSink {
	s.retention = d
	return s
}

// Record increments the counter for the given outcome in the minute bucket
// containing t. Errors are logged, never returned.
func (s *RedisSink) Record(ctx context.Context, outcome string, at time.Time) {
	key := buildKey(outcome, at)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

func buildKey(outcome string, t time.Time) string {
	return fmt.Sprintf("qt:invocation:%s:%s", outcome, t.UTC().Format("200601021504"))
}
