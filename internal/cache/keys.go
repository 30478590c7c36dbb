package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	FeedVersionKeyPrefix = "feed:version:%s"
	FeedKeyPrefix        = "feed:%s:v%d:%s:%s"
	IdempotencyKeyPrefix = "idem:vote:%s:%s"
)

const (
	// IdempotencyTTL bounds how long a replayable vote response is kept.
	IdempotencyTTL = 10 * time.Minute
)

// FeedVersionKey holds the generation counter for one subject kind.
func FeedVersionKey(kind string) string {
	return fmt.Sprintf(FeedVersionKeyPrefix, kind)
}

// FeedKey addresses a cached snapshot. Bumping the version orphans every
// older snapshot of that kind; they expire on their own TTL.
func FeedKey(kind string, version int64, scope, selection string) string {
	return fmt.Sprintf(FeedKeyPrefix, kind, version, scope, selection)
}

// IdempotencyKey scopes a client-supplied Idempotency-Key to its voter.
func IdempotencyKey(voterID, key string) string {
	return fmt.Sprintf(IdempotencyKeyPrefix, voterID, key)
}

// FeedVersion reads the current generation, 0 if never bumped.
func FeedVersion(ctx context.Context, rdb *redis.Client, kind string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	s, err := rdb.Get(ctx, FeedVersionKey(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// BumpFeedVersion invalidates every cached snapshot of kind.
func BumpFeedVersion(ctx context.Context, rdb *redis.Client, kind string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.Incr(ctx, FeedVersionKey(kind)).Result()
}
