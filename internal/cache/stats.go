// Package cache keeps per-user praise counters in Redis.
//
// The database stays the source of truth. Writers delete the affected keys
// after a successful write and readers repopulate them, so a failed cache
// call only ever costs a database read. Every invalidation also bumps a
// per-user version, and a fill only lands if the version it read before
// loading from the database is still current.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/kudos/internal/models"
)

const (
	// DefaultStatsTTL bounds staleness for changes that do not invalidate
	// explicitly, such as group deletion.
	DefaultStatsTTL = 10 * time.Minute

	statsKeyPrefix   = "kudos:stats:user"
	versionKeyPrefix = "kudos:stats:ver"
)

// StatsCache caches models.PraiseStats by user ID.
type StatsCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, userID string) (stats models.PraiseStats, ok bool, err error)

	// Version returns the invalidation counter of userID. Read it before
	// loading the stats to be cached.
	Version(ctx context.Context, userID string) (int64, error)

	// Set stores stats loaded after Version returned version. It is a no-op
	// when userID was invalidated in between.
	Set(ctx context.Context, userID string, stats models.PraiseStats, version int64) error

	Invalidate(ctx context.Context, userIDs ...string) error
}

// NewRedisClient connects to Redis and checks the connection with a Ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisStats stores stats as a hash per user with a TTL.
type RedisStats struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStats creates a Redis-backed StatsCache. ttl <= 0 selects DefaultStatsTTL.
func NewRedisStats(client *redis.Client, ttl time.Duration) *RedisStats {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &RedisStats{client: client, ttl: ttl}
}

func statsKey(userID string) string {
	return fmt.Sprintf("%s:%s", statsKeyPrefix, userID)
}

func versionKey(userID string) string {
	return fmt.Sprintf("%s:%s", versionKeyPrefix, userID)
}

// Get reads the cached stats of userID.
func (c *RedisStats) Get(ctx context.Context, userID string) (models.PraiseStats, bool, error) {
	fields, err := c.client.HGetAll(ctx, statsKey(userID)).Result()
	if err != nil {
		return models.PraiseStats{}, false, err
	}
	if len(fields) == 0 {
		return models.PraiseStats{}, false, nil
	}

	sent, err := strconv.Atoi(fields["sent"])
	if err != nil {
		return models.PraiseStats{}, false, fmt.Errorf("malformed cached sent count: %w", err)
	}
	received, err := strconv.Atoi(fields["received"])
	if err != nil {
		return models.PraiseStats{}, false, fmt.Errorf("malformed cached received count: %w", err)
	}
	return models.PraiseStats{Sent: sent, Received: received}, true, nil
}

// Version reads the invalidation counter of userID. A missing key is 0.
func (c *RedisStats) Version(ctx context.Context, userID string) (int64, error) {
	return readVersion(ctx, c.client, userID)
}

// Set stores the stats of userID and (re)arms the TTL, unless the version
// moved past version since it was read.
func (c *RedisStats) Set(ctx context.Context, userID string, stats models.PraiseStats, version int64) error {
	key := statsKey(userID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "sent", stats.Sent, "received", stats.Received)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, versionKey(userID))
	if errors.Is(err, redis.TxFailedErr) {
		// Invalidated while filling.
		return nil
	}
	return err
}

// Invalidate drops the cached stats of the given users and bumps their
// versions so in-flight fills are discarded. The version key shares the
// stats TTL, which bounds how long a fill may take.
func (c *RedisStats) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, versionKey(id))
			pipe.Expire(ctx, versionKey(id), c.ttl)
			pipe.Del(ctx, statsKey(id))
		}
		return nil
	})
	return err
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, cmd getter, userID string) (int64, error) {
	v, err := cmd.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Noop is a StatsCache that never hits. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (models.PraiseStats, bool, error) {
	return models.PraiseStats{}, false, nil
}

func (Noop) Version(context.Context, string) (int64, error) { return 0, nil }

func (Noop) Set(context.Context, string, models.PraiseStats, int64) error { return nil }

func (Noop) Invalidate(context.Context, ...string) error { return nil }
