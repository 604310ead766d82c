package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"msomi-backend/internal/notification/domain"
)

// Handler processes one job attempt. A returned error triggers the queue's
// retry policy; a nil return completes the job.
type Handler func(ctx context.Context, job *domain.Job) error

// Options tune the queue. Zero values fall back to defaults matching the
// production configuration (3 attempts, 2s exponential backoff, 30s lock).
type Options struct {
	Prefix       string
	Workers      int
	MaxAttempts  int
	BackoffBase  time.Duration
	LockTTL      time.Duration
	MaxStalled   int
	PollInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.Prefix == "" {
		o.Prefix = "msomi:queue:notifications"
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 30 * time.Second
	}
	if o.MaxStalled <= 0 {
		o.MaxStalled = 2
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
}

// Queue is a durable, retryable job queue on Redis. Enqueue returns
// immediately; a bounded worker pool executes jobs asynchronously with
// exponential backoff between failed attempts.
type Queue struct {
	rdb     *redis.Client
	opts    Options
	handler Handler
	clock   func() time.Time

	stopCtx    context.Context
	stopCancel context.CancelFunc
	done       chan struct{}
}

// NewQueue creates a queue over the given Redis client.
func NewQueue(rdb *redis.Client, opts Options) *Queue {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		rdb:        rdb,
		opts:       opts,
		clock:      time.Now,
		stopCtx:    ctx,
		stopCancel: cancel,
		done:       make(chan struct{}),
	}
}

// key builders

func (q *Queue) jobKey(id string) string { return q.opts.Prefix + ":job:" + id }
func (q *Queue) lockKey(id string) string { return q.opts.Prefix + ":lock:" + id }
func (q *Queue) waitKey() string          { return q.opts.Prefix + ":wait" }
func (q *Queue) activeKey() string        { return q.opts.Prefix + ":active" }
func (q *Queue) delayedKey() string       { return q.opts.Prefix + ":delayed" }
func (q *Queue) completedKey() string     { return q.opts.Prefix + ":completed" }
func (q *Queue) failedKey() string        { return q.opts.Prefix + ":failed" }

// Enqueue validates the payload, persists a new job and places it on the wait
// list. It never blocks on delivery. Infrastructure errors are surfaced to
// the caller: silently dropping a submission is worse than rejecting it.
func (q *Queue) Enqueue(ctx context.Context, payload domain.JobPayload) (*domain.Job, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	now := q.clock()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Payload:   payload,
		State:     domain.StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.waitKey(), job.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// Job returns the current state of a job, or domain.ErrJobNotFound.
func (q *Queue) Job(ctx context.Context, id string) (*domain.Job, error) {
	return q.loadJob(ctx, id)
}

// Stats returns a point-in-time snapshot of job counts per state. It is not
// transactionally consistent with ongoing worker activity.
func (q *Queue) Stats(ctx context.Context) (domain.QueueStats, error) {
	var stats domain.QueueStats
	var err error

	if stats.Waiting, err = q.rdb.LLen(ctx, q.waitKey()).Result(); err != nil {
		return stats, err
	}
	if stats.Active, err = q.rdb.LLen(ctx, q.activeKey()).Result(); err != nil {
		return stats, err
	}
	if stats.Delayed, err = q.rdb.ZCard(ctx, q.delayedKey()).Result(); err != nil {
		return stats, err
	}
	if stats.Completed, err = q.rdb.SCard(ctx, q.completedKey()).Result(); err != nil {
		return stats, err
	}
	stats.Failed, err = q.rdb.SCard(ctx, q.failedKey()).Result()
	return stats, err
}

// Retry re-queues a failed job with its attempt count reset. Only valid for
// jobs in the failed state.
func (q *Queue) Retry(ctx context.Context, id string) error {
	job, err := q.loadJob(ctx, id)
	if err != nil {
		return err
	}
	if job.State != domain.StateFailed {
		return fmt.Errorf("%w: cannot retry job in state %q", domain.ErrInvalidStateTransition, job.State)
	}

	job.State = domain.StateQueued
	job.AttemptsMade = 0
	job.StalledCount = 0
	job.LastError = ""
	job.UpdatedAt = q.clock()
	if err := q.saveJob(ctx, job); err != nil {
		return err
	}
	if err := q.rdb.SRem(ctx, q.failedKey(), id).Err(); err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.waitKey(), id).Err()
}

// Clear removes completed and failed jobs from the durable store. Active and
// queued jobs are untouched.
func (q *Queue) Clear(ctx context.Context) error {
	for _, setKey := range []string{q.completedKey(), q.failedKey()} {
		ids, err := q.rdb.SMembers(ctx, setKey).Result()
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := q.rdb.Del(ctx, q.jobKey(id)).Err(); err != nil {
				return err
			}
		}
		if err := q.rdb.Del(ctx, setKey).Err(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateProgress stores the job's last progress marker. Best-effort: callers
// treat failures as non-fatal.
func (q *Queue) UpdateProgress(ctx context.Context, id, progress string) error {
	job, err := q.loadJob(ctx, id)
	if err != nil {
		return err
	}
	job.Progress = progress
	job.UpdatedAt = q.clock()
	return q.saveJob(ctx, job)
}

// Ping verifies the backing store is reachable.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

func (q *Queue) saveJob(ctx context.Context, job *domain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.Set(ctx, q.jobKey(job.ID), raw, 0).Err()
}

func (q *Queue) loadJob(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
