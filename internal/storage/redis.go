package storage

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisLists is the subset of *redis.Client the sink uses.
type redisLists interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisConfig holds Redis log sink configuration.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Key       string
	Retention int64 // entries kept in the list
	Logger    *zap.Logger
}

// RedisLogSink implements LogSink as a capped Redis list, newest at the head.
type RedisLogSink struct {
	client    redisLists
	key       string
	retention int64
	logger    *zap.Logger
}

// NewRedisLogSink connects to Redis and verifies the connection.
func NewRedisLogSink(ctx context.Context, cfg *RedisConfig) (*RedisLogSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := rdb.Ping(ctx).Err()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	cfg.Logger.Info("redis-log-sink-connected",
		zap.String("addr", cfg.Addr),
		zap.String("key", cfg.Key))

	return newRedisLogSink(rdb, cfg.Key, cfg.Retention, cfg.Logger), nil
}

func newRedisLogSink(client redisLists, key string, retention int64, logger *zap.Logger) *RedisLogSink {
	if key == "" {
		key = "dexarb:logs"
	}
	if retention <= 0 {
		retention = 1000
	}

	return &RedisLogSink{
		client:    client,
		key:       key,
		retention: retention,
		logger:    logger,
	}
}

// Append pushes the entry to the head of the list and trims the tail.
func (r *RedisLogSink) Append(ctx context.Context, entry LogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	err = r.client.LPush(ctx, r.key, payload).Err()
	if err != nil {
		return fmt.Errorf("push log entry: %w", err)
	}

	err = r.client.LTrim(ctx, r.key, 0, r.retention-1).Err()
	if err != nil {
		return fmt.Errorf("trim log list: %w", err)
	}

	return nil
}

// Recent returns the newest entries first. Undecodable items are skipped.
func (r *RedisLogSink) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	items, err := r.client.LRange(ctx, r.key, 0, int64(normalizeLimit(limit))-1).Result()
	if err != nil {
		return nil, fmt.Errorf("range log list: %w", err)
	}

	entries := make([]LogEntry, 0, len(items))
	for _, item := range items {
		var entry LogEntry
		err = json.Unmarshal([]byte(item), &entry)
		if err != nil {
			r.logger.Warn("redis-log-entry-undecodable", zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Ping checks the Redis connection.
func (r *RedisLogSink) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisLogSink) Close() error {
	r.logger.Info("closing-redis-log-sink")
	return r.client.Close()
}
