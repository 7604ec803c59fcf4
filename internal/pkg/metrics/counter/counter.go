package counter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eventkasse/eventkasse/internal/pkg/cache"
)

const (
	ingestedKey     = "webhooks:counters:ingested"
	processedKey    = "webhooks:counters:processed"
	retriedKey      = "webhooks:counters:retried"
	deadLetteredKey = "webhooks:counters:dead_lettered"
)

// Pipeline throughput counters, bucketed per day in Redis. Best effort: a
// counter failure never fails a request.

func AddIngested() error {
	return incr(ingestedKey)
}

func AddProcessed() error {
	return incr(processedKey)
}

func AddRetried() error {
	return incr(retriedKey)
}

func AddDeadLettered() error {
	return incr(deadLetteredKey)
}

// Snapshot returns today's counter values for the ops dashboard endpoint.
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()
	field := dayField()

	out := map[string]int64{}
	for name, key := range map[string]string{
		"ingested":      ingestedKey,
		"processed":     processedKey,
		"retried":       retriedKey,
		"dead_lettered": deadLetteredKey,
	} {
		val, err := rdb.HGet(ctx, key, field).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

func incr(key string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, key, dayField(), 1).Err()
}

func dayField() string {
	return time.Now().UTC().Format("2006-01-02")
}
