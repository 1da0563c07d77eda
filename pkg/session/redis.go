package session

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"inspection/pkg/logx"
)

// sessionTTL bounds how long an idle conversation survives. A day covers a
// full shift plus overnight resumption.
const sessionTTL = 36 * time.Hour

// RedisStore persists session state as one Redis hash per session.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	logger *logx.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr string, db int, keyPrefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		rdb:    rdb,
		prefix: keyPrefix,
		logger: logx.NewLogger("session"),
	}, nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Get returns the decoded state for the session, or the zero State when the
// hash does not exist.
func (r *RedisStore) Get(ctx context.Context, sessionID string) (State, error) {
	raw, err := r.rdb.HGetAll(ctx, r.key(sessionID)).Result()
	if err != nil {
		return State{}, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}
	return DecodeState(raw), nil
}

// Merge applies the patch in one pipeline: HSET for updates, HDEL for
// cleared fields. Redis hash writes are per-field atomic, which is exactly
// the last-write-wins contract.
func (r *RedisStore) Merge(ctx context.Context, sessionID string, patch Patch) error {
	if len(patch) == 0 {
		return nil
	}

	sets := make([]any, 0, len(patch)*2)
	dels := make([]string, 0, len(patch))
	for f, v := range patch {
		if v == nil {
			dels = append(dels, string(f))
			continue
		}
		encoded, err := EncodeValue(f, v)
		if err != nil {
			return err
		}
		sets = append(sets, string(f), encoded)
	}

	key := r.key(sessionID)
	pipe := r.rdb.Pipeline()
	if len(sets) > 0 {
		pipe.HSet(ctx, key, sets...)
	}
	if len(dels) > 0 {
		pipe.HDel(ctx, key, dels...)
	}
	pipe.Expire(ctx, key, sessionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to merge session %s: %w", sessionID, err)
	}
	r.logger.Debug("merged %d field(s) into session %s", len(patch), sessionID)
	return nil
}

// Clear removes the whole session record.
func (r *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
