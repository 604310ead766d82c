package queue

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"msomi-backend/internal/notification/domain"
)

// Process registers the handler executed for each job attempt. Must be called
// before Start.
func (q *Queue) Process(handler Handler) {
	q.handler = handler
}

// Start launches the worker pool plus the delayed-job promoter and the
// stalled-job checker. Worker concurrency bounds the number of jobs in
// flight, which in turn bounds concurrent provider calls.
func (q *Queue) Start() {
	if q.handler == nil {
		log.Println("[Queue] No handler registered, workers not started")
		return
	}

	var wg sync.WaitGroup
	for i := 0; i < q.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.workerLoop(id)
		}(i)
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		q.promoterLoop()
	}()
	go func() {
		defer wg.Done()
		q.stalledLoop()
	}()

	go func() {
		wg.Wait()
		close(q.done)
	}()

	log.Printf("[Queue] Started %d workers", q.opts.Workers)
}

// Stop shuts the pool down and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.stopCancel()
	<-q.done
	log.Println("[Queue] All workers stopped")
}

func (q *Queue) workerLoop(workerID int) {
	for {
		select {
		case <-q.stopCtx.Done():
			return
		default:
		}

		id, err := q.rdb.RPopLPush(q.stopCtx, q.waitKey(), q.activeKey()).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && q.stopCtx.Err() == nil {
				log.Printf("[Queue] Worker %d poll error: %v", workerID, err)
			}
			select {
			case <-q.stopCtx.Done():
				return
			case <-time.After(q.opts.PollInterval):
			}
			continue
		}

		q.runJob(workerID, id)
	}
}

// runJob executes one attempt of one job under a renewable lock.
func (q *Queue) runJob(workerID int, id string) {
	ctx := context.Background() // finish the attempt even during shutdown

	job, err := q.loadJob(ctx, id)
	if err != nil {
		log.Printf("[Queue] Worker %d: dropping unknown job %s: %v", workerID, id, err)
		q.rdb.LRem(ctx, q.activeKey(), 1, id)
		return
	}

	ok, err := q.rdb.SetNX(ctx, q.lockKey(id), workerID, q.opts.LockTTL).Result()
	if err != nil || !ok {
		// Another worker holds the job (stalled-requeue race); leave it alone.
		q.rdb.LRem(ctx, q.activeKey(), 1, id)
		return
	}
	defer q.rdb.Del(ctx, q.lockKey(id))

	stopRenew := q.renewLock(id)
	defer stopRenew()

	job.State = domain.StateActive
	job.AttemptsMade++
	job.UpdatedAt = q.clock()
	if err := q.saveJob(ctx, job); err != nil {
		log.Printf("[Queue] Worker %d: failed to mark job %s active: %v", workerID, id, err)
	}

	handlerErr := q.handler(ctx, job)

	// Reload to keep progress markers written by the handler.
	if fresh, loadErr := q.loadJob(ctx, id); loadErr == nil {
		fresh.State = job.State
		fresh.AttemptsMade = job.AttemptsMade
		job = fresh
	}

	q.rdb.LRem(ctx, q.activeKey(), 1, id)

	if handlerErr == nil {
		job.State = domain.StateCompleted
		job.LastError = ""
		job.UpdatedAt = q.clock()
		if err := q.saveJob(ctx, job); err != nil {
			log.Printf("[Queue] Worker %d: failed to complete job %s: %v", workerID, id, err)
		}
		q.rdb.SAdd(ctx, q.completedKey(), id)
		return
	}

	job.LastError = handlerErr.Error()
	if job.AttemptsMade < q.opts.MaxAttempts {
		delay := q.backoffDelay(job.AttemptsMade)
		job.State = domain.StateDelayed
		job.UpdatedAt = q.clock()
		if err := q.saveJob(ctx, job); err != nil {
			log.Printf("[Queue] Worker %d: failed to delay job %s: %v", workerID, id, err)
		}
		readyAt := float64(q.clock().Add(delay).UnixMilli())
		q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: readyAt, Member: id})
		log.Printf("[Queue] Job %s attempt %d failed, retrying in %s: %v", id, job.AttemptsMade, delay, handlerErr)
		return
	}

	job.State = domain.StateFailed
	job.UpdatedAt = q.clock()
	if err := q.saveJob(ctx, job); err != nil {
		log.Printf("[Queue] Worker %d: failed to fail job %s: %v", workerID, id, err)
	}
	q.rdb.SAdd(ctx, q.failedKey(), id)
	log.Printf("[Queue] Job %s failed permanently after %d attempts: %v", id, job.AttemptsMade, handlerErr)
}

// backoffDelay computes base * 2^(attempts-1).
func (q *Queue) backoffDelay(attemptsMade int) time.Duration {
	delay := q.opts.BackoffBase
	for i := 1; i < attemptsMade; i++ {
		delay *= 2
	}
	return delay
}

// renewLock keeps the job lock alive while the handler runs, so the stalled
// checker only reclaims jobs whose worker actually died.
func (q *Queue) renewLock(id string) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(q.opts.LockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				q.rdb.PExpire(context.Background(), q.lockKey(id), q.opts.LockTTL)
			}
		}
	}()
	return func() { close(stop) }
}

// promoterLoop moves delayed jobs whose backoff has elapsed back to the wait
// list.
func (q *Queue) promoterLoop() {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopCtx.Done():
			return
		case <-ticker.C:
			q.promoteDue(context.Background())
		}
	}
}

func (q *Queue) promoteDue(ctx context.Context) {
	now := q.clock().UnixMilli()
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		log.Printf("[Queue] Promoter error: %v", err)
		return
	}

	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil || removed == 0 {
			continue // another promoter got it first
		}
		if job, err := q.loadJob(ctx, id); err == nil {
			job.State = domain.StateQueued
			job.UpdatedAt = q.clock()
			_ = q.saveJob(ctx, job)
		}
		q.rdb.LPush(ctx, q.waitKey(), id)
	}
}

// stalledLoop requeues active jobs whose lock expired (worker died
// mid-processing). A job may stall at most MaxStalled times before it is
// failed, preventing infinite stall loops.
func (q *Queue) stalledLoop() {
	ticker := time.NewTicker(q.opts.LockTTL)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopCtx.Done():
			return
		case <-ticker.C:
			q.checkStalled(context.Background())
		}
	}
}

func (q *Queue) checkStalled(ctx context.Context) {
	ids, err := q.rdb.LRange(ctx, q.activeKey(), 0, -1).Result()
	if err != nil {
		log.Printf("[Queue] Stalled checker error: %v", err)
		return
	}

	for _, id := range ids {
		locked, err := q.rdb.Exists(ctx, q.lockKey(id)).Result()
		if err != nil || locked > 0 {
			continue
		}

		job, err := q.loadJob(ctx, id)
		if err != nil {
			q.rdb.LRem(ctx, q.activeKey(), 1, id)
			continue
		}
		if job.State != domain.StateActive {
			// Popped but not yet locked by a worker; not stalled.
			continue
		}

		job.StalledCount++
		q.rdb.LRem(ctx, q.activeKey(), 1, id)

		if job.StalledCount > q.opts.MaxStalled {
			job.State = domain.StateFailed
			job.LastError = "job stalled too many times"
			job.UpdatedAt = q.clock()
			_ = q.saveJob(ctx, job)
			q.rdb.SAdd(ctx, q.failedKey(), id)
			log.Printf("[Queue] Job %s failed after stalling %d times", id, job.StalledCount)
			continue
		}

		job.State = domain.StateQueued
		job.UpdatedAt = q.clock()
		_ = q.saveJob(ctx, job)
		q.rdb.LPush(ctx, q.waitKey(), id)
		log.Printf("[Queue] Requeued stalled job %s (stall %d)", id, job.StalledCount)
	}
}

