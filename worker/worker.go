// Package worker drains the fulfillment queue and runs each job's side
// effects against the external collaborators. Tasks within a job run
// sequentially; a failed task is logged and isolated so it never blocks
// the remaining tasks, and the job is acknowledged only after every
// task was attempted.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/queue"
)

// JobSource is the queue contract the worker consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Ack(ctx context.Context, raw string) error
	Fail(ctx context.Context, job *queue.Job, raw string) error
}

// Handler executes one task type. Handlers must tolerate re-delivery:
// the queue is at-least-once.
type Handler func(ctx context.Context, payload json.RawMessage) error

type Worker struct {
	log      *zap.Logger
	source   JobSource
	handlers map[models.TaskType]Handler
	sem      *semaphore.Weighted
}

func New(log *zap.Logger, source JobSource, handlers map[models.TaskType]Handler, concurrency int64) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		log:      log,
		source:   source,
		handlers: handlers,
		sem:      semaphore.NewWeighted(concurrency),
	}
}

// Run consumes jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		job, raw, err := w.source.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Timeout with nothing to do, or a poison payload already
			// dead-lettered by the queue. Keep polling.
			continue
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			// Shutting down with an unprocessed job in hand: put it back.
			if failErr := w.source.Fail(ctx, job, raw); failErr != nil {
				w.log.Error("requeue on shutdown", zap.String("job_id", job.ID), zap.Error(failErr))
			}
			return err
		}
		go func() {
			defer w.sem.Release(1)
			w.process(ctx, job, raw)
		}()
	}
}

// process runs every task of a job in order. Per-task errors are
// isolated; the job itself only fails (and retries) when it cannot be
// acknowledged.
func (w *Worker) process(ctx context.Context, job *queue.Job, raw string) {
	log := w.log.With(zap.String("job_id", job.ID), zap.Int("attempt", job.Attempts))

	for i, task := range job.Tasks {
		if err := w.runTask(ctx, task); err != nil {
			// TaskError: logged, isolated, the remaining tasks still run.
			log.Error("task failed",
				zap.Int("index", i),
				zap.String("type", string(task.Type)),
				zap.Error(err))
		}
	}

	if err := w.source.Ack(ctx, raw); err != nil {
		log.Error("ack job", zap.Error(err))
		if failErr := w.source.Fail(ctx, job, raw); failErr != nil {
			log.Error("reschedule job", zap.Error(failErr))
		}
		return
	}
	log.Info("job complete", zap.Int("tasks", len(job.Tasks)))
}

func (w *Worker) runTask(ctx context.Context, task models.WorkerTask) error {
	handler, ok := w.handlers[task.Type]
	if !ok {
		return fmt.Errorf("no handler for task type %q", task.Type)
	}
	return handler(ctx, task.Payload)
}
