// Package genjobs enqueues round-design work for the downstream image
// generation workers. The queue consumer owns retry, backoff, and dead-letter
// handling; the matchmaking core only hands off work and never waits on it.
package genjobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListKey is the redis list the generation workers consume from.
const ListKey = "genjobs:round_design"

// Job is one unit of generation work.
type Job struct {
	SessionID  string    `json:"session_id"`
	RoundID    string    `json:"round_id"`
	DesignID   string    `json:"design_id"`
	Topic      string    `json:"topic"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue hands generation work to the downstream consumer.
type Queue interface {
	EnqueueRoundDesign(ctx context.Context, job Job) error
}

// RedisQueue pushes jobs onto a redis list.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a queue over an existing redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// EnqueueRoundDesign pushes one job. Callers treat failures as non-fatal.
func (q *RedisQueue) EnqueueRoundDesign(ctx context.Context, job Job) error {
	if job.SessionID == "" || job.RoundID == "" || job.DesignID == "" {
		return fmt.Errorf("job key fields are required")
	}
	if q == nil || q.client == nil {
		return fmt.Errorf("redis queue is not configured")
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, ListKey, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// NopQueue discards all jobs. Used when no redis endpoint is configured.
type NopQueue struct{}

// EnqueueRoundDesign implements Queue.
func (NopQueue) EnqueueRoundDesign(context.Context, Job) error { return nil }
