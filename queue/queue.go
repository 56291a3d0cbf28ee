// Package queue is the durable side-effect queue between the order
// orchestrator and the worker pool. Jobs are keyed by the payment
// reference; Redis-level dedup on that key is the second line of
// defense against duplicate side effects when the orchestrator's own
// dedup check races.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetention   = 24 * time.Hour

	dequeueBlock = 5 * time.Second
)

var (
	enqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_jobs_enqueued_total",
		Help: "Jobs accepted by the fulfillment queue.",
	})
	duplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_jobs_duplicate_total",
		Help: "Enqueue attempts rejected by job-id dedup.",
	})
	deadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_jobs_dead_total",
		Help: "Jobs moved to the dead-letter list after exhausting retries.",
	})
)

// Job is one unit of queued work: the full task list for one order.
type Job struct {
	ID         string              `json:"id"` // payment reference
	Tasks      []models.WorkerTask `json:"tasks"`
	Attempts   int                 `json:"attempts"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
}

type Queue struct {
	rdb         *redis.Client
	log         *zap.Logger
	name        string
	maxAttempts int
	retention   time.Duration
}

func New(rdb *redis.Client, log *zap.Logger, name string) *Queue {
	return &Queue{
		rdb:         rdb,
		log:         log,
		name:        name,
		maxAttempts: DefaultMaxAttempts,
		retention:   DefaultRetention,
	}
}

func (q *Queue) readyKey() string      { return q.name + ":ready" }
func (q *Queue) processingKey() string { return q.name + ":processing" }
func (q *Queue) delayedKey() string    { return q.name + ":delayed" }
func (q *Queue) deadKey() string       { return q.name + ":dead" }
func (q *Queue) dedupKey(jobID string) string {
	return q.name + ":job:" + jobID
}

// Enqueue pushes one job for jobID unless one was already queued within
// the retention window. Returns false when dedup rejected the job.
func (q *Queue) Enqueue(ctx context.Context, jobID string, tasks []models.WorkerTask) (bool, error) {
	if jobID == "" {
		return false, errors.New("queue: empty job id")
	}

	raw, err := json.Marshal(Job{ID: jobID, Tasks: tasks, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("queue: encode job %s: %w", jobID, err)
	}

	ok, err := q.rdb.SetNX(ctx, q.dedupKey(jobID), time.Now().UTC().Format(time.RFC3339), q.retention).Result()
	if err != nil {
		return false, fmt.Errorf("queue: dedup check %s: %w", jobID, err)
	}
	if !ok {
		duplicateTotal.Inc()
		return false, nil
	}

	if err := q.rdb.LPush(ctx, q.readyKey(), raw).Err(); err != nil {
		// The marker is set but no job made it onto the list. Release it,
		// or every retry within the retention window is rejected as a
		// duplicate of a job that never existed.
		if delErr := q.rdb.Del(ctx, q.dedupKey(jobID)).Err(); delErr != nil {
			q.log.Error("release dedup marker after failed push",
				zap.String("job_id", jobID), zap.Error(delErr))
		}
		return false, fmt.Errorf("queue: push job %s: %w", jobID, err)
	}

	enqueuedTotal.Inc()
	q.log.Info("job enqueued", zap.String("job_id", jobID), zap.Int("tasks", len(tasks)))
	return true, nil
}

// Dequeue blocks until a job is available and atomically moves it from
// the ready list to the processing list. The raw payload is returned
// alongside the decoded job so Ack/Fail can remove that exact entry.
// Returns redis.Nil-wrapped error when the block timeout elapsed with
// nothing to do.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	q.promoteDelayed(ctx)

	raw, err := q.rdb.BRPopLPush(ctx, q.readyKey(), q.processingKey(), dequeueBlock).Result()
	if err != nil {
		return nil, "", fmt.Errorf("queue: pop: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Poison payload: nothing to retry, straight to dead letter.
		q.rdb.LRem(ctx, q.processingKey(), 1, raw)
		q.rdb.LPush(ctx, q.deadKey(), raw)
		deadTotal.Inc()
		return nil, "", fmt.Errorf("queue: decode job: %w", err)
	}
	return &job, raw, nil
}

// Ack removes a completed job from the processing list.
func (q *Queue) Ack(ctx context.Context, raw string) error {
	return q.rdb.LRem(ctx, q.processingKey(), 1, raw).Err()
}

// Fail reschedules a job with backoff, dead-lettering it once the
// attempt budget is spent.
func (q *Queue) Fail(ctx context.Context, job *Job, raw string) error {
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, raw).Err(); err != nil {
		return fmt.Errorf("queue: drop processing entry: %w", err)
	}

	job.Attempts++
	next, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode retry %s: %w", job.ID, err)
	}

	if job.Attempts >= q.maxAttempts {
		deadTotal.Inc()
		q.log.Error("job dead-lettered",
			zap.String("job_id", job.ID), zap.Int("attempts", job.Attempts))
		return q.rdb.LPush(ctx, q.deadKey(), next).Err()
	}

	readyAt := time.Now().Add(Backoff(job.Attempts))
	q.log.Warn("job rescheduled",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.Time("ready_at", readyAt))
	return q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(readyAt.Unix()),
		Member: next,
	}).Err()
}

// promoteScript moves due members from the delayed set to the ready
// list. The push is conditioned on winning the ZREM, so two consumers
// promoting concurrently cannot duplicate a delivery.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local moved = 0
for _, job in ipairs(due) do
	if redis.call('ZREM', KEYS[1], job) == 1 then
		redis.call('LPUSH', KEYS[2], job)
		moved = moved + 1
	end
end
return moved
`)

// promoteDelayed moves every due delayed job back onto the ready list.
func (q *Queue) promoteDelayed(ctx context.Context) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	err := promoteScript.Run(ctx, q.rdb, []string{q.delayedKey(), q.readyKey()}, now).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.log.Warn("promote delayed jobs", zap.Error(err))
	}
}

// Backoff returns the delay before the given retry attempt:
// 30s, 1m, 2m, 4m, ...
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := 30 * time.Second << (attempt - 1)
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}
