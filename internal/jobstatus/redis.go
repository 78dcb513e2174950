package jobstatus

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"clipstream/internal/metrics"
)

const keyPrefix = "clipstream:job:"

// RedisTracker stores job records as Redis hashes.
type RedisTracker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisTracker connects to the Redis server at url
// (redis://[user:pass@]host:port/db) and checks it is reachable.
func NewRedisTracker(ctx context.Context, url string, ttl time.Duration) (*RedisTracker, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = 2

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{client: client, ttl: ttl}, nil
}

func key(id string) string {
	return keyPrefix + id
}

// Set writes rec and refreshes its expiry in one transaction.
func (r *RedisTracker) Set(ctx context.Context, rec Record) error {
	now := time.Now().UTC()
	k := key(rec.ID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, k, "created_at", now.Format(time.RFC3339Nano))
		pipe.HSet(ctx, k,
			"id", rec.ID,
			"status", rec.Status,
			"kind", rec.Kind,
			"stage", rec.Stage,
			"message", rec.Message,
			"updated_at", now.Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, k, r.ttl)
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
		err = fmt.Errorf("redis set job %s: %w", rec.ID, err)
	}
	metrics.JobStatusWritesTotal.WithLabelValues("redis", status).Inc()
	return err
}

// Get reads the record for id.
func (r *RedisTracker) Get(ctx context.Context, id string) (Record, error) {
	fields, err := r.client.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("redis get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return recordFromHash(fields), nil
}

func recordFromHash(fields map[string]string) Record {
	rec := Record{
		ID:      fields["id"],
		Status:  fields["status"],
		Kind:    fields["kind"],
		Stage:   fields["stage"],
		Message: fields["message"],
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return rec
}

// Close closes the client.
func (r *RedisTracker) Close() error {
	return r.client.Close()
}
