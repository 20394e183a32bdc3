package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shellmind/agentcore/internal/core"
	"github.com/shellmind/agentcore/internal/jobs"
	"golang.org/x/sync/semaphore"
)

// WorkerFunc runs a spawned worker's objective to completion, returning its
// final text or an error. Implementations receive the context the pool
// derived from the dispatcher's own context, so cancellation propagates --
// the gap the teacher's subagent.Manager.Spawn left open (it spawned with
// context.Background()) is fixed here.
type WorkerFunc func(ctx context.Context, spec core.WorkerSpec) (string, error)

// WorkerPool bounds concurrent workers by a semaphore, grounded on the
// teacher's subagent.Manager (atomic active-count gate) generalized to a
// weighted semaphore and wired directly into the JobRegistry.
type WorkerPool struct {
	sem       *semaphore.Weighted
	jobs      jobs.Store
	run       WorkerFunc
	logger    *slog.Logger
}

// NewWorkerPool bounds concurrent workers to limit, backed by jobStore for
// JobRecord bookkeeping and run for the actual worker body.
func NewWorkerPool(limit int64, jobStore jobs.Store, run WorkerFunc, logger *slog.Logger) *WorkerPool {
	if limit <= 0 {
		limit = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{sem: semaphore.NewWeighted(limit), jobs: jobStore, run: run, logger: logger}
}

// Spawn registers a JobRecord with is_worker=true, acquires a pool permit
// (queueing if the pool is saturated), and runs the worker under a
// best-effort-cancellable child context derived from ctx. emit delivers the
// resulting WorkerEvent back to the session loop's feedback channel.
func (p *WorkerPool) Spawn(ctx context.Context, spec core.WorkerSpec, emit func(core.Input)) (WorkerHandle, error) {
	jobID := uuid.NewString()
	job := &jobs.Job{
		ID:          jobID,
		Description: spec.Objective,
		Status:      jobs.StatusPending,
		IsWorker:    true,
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return WorkerHandle{}, err
	}
	emit(core.WorkerEvent{JobID: jobID, Status: core.WorkerSpawned})

	workerCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()

		if err := p.sem.Acquire(workerCtx, 1); err != nil {
			job.Status = jobs.StatusFailed
			job.Error = "cancelled before a worker permit was available"
			_ = p.jobs.Update(workerCtx, job)
			emit(core.WorkerEvent{JobID: jobID, Status: core.WorkerFailed, Payload: job.Error})
			return
		}
		defer p.sem.Release(1)

		job.Status = jobs.StatusRunning
		now := time.Now()
		job.StartedAt = now
		job.LastHeartbeat = now
		_ = p.jobs.Update(workerCtx, job)

		result, err := p.run(workerCtx, spec)
		if err != nil {
			job.Status = jobs.StatusFailed
			job.Error = err.Error()
			job.FinishedAt = time.Now()
			_ = p.jobs.Update(workerCtx, job)
			emit(core.WorkerEvent{JobID: jobID, Status: core.WorkerFailed, Payload: err.Error()})
			p.logger.Warn("worker failed", "job_id", jobID, "error", err)
			return
		}

		job.Status = jobs.StatusSucceeded
		job.Result = &jobs.Result{Content: result, OK: true}
		job.FinishedAt = time.Now()
		_ = p.jobs.Update(workerCtx, job)
		emit(core.WorkerEvent{JobID: jobID, Status: core.WorkerCompleted, Payload: result})
	}()

	return WorkerHandle{JobID: jobID}, nil
}
