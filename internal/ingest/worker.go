package ingest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"taglens/internal/store"
	"taglens/pkg/logger"
)

// Worker polls the job queue and runs claimed jobs through the
// scheduler. Several workers may share one queue; the claim CAS keeps
// them from colliding.
type Worker struct {
	scheduler   *Scheduler
	jobs        *store.JobStore
	concurrency int
	poll        time.Duration
	lockTimeout time.Duration
	log         *logger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewWorker creates a Worker with the given concurrency and intervals.
func NewWorker(scheduler *Scheduler, jobs *store.JobStore, concurrency int,
	poll, lockTimeout time.Duration) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		scheduler:   scheduler,
		jobs:        jobs,
		concurrency: concurrency,
		poll:        poll,
		lockTimeout: lockTimeout,
		log:         logger.New("worker"),
	}
}

// Start launches the polling goroutines and the stale-job reaper. It
// returns immediately; call Stop to drain.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	host, _ := os.Hostname()
	for i := 0; i < w.concurrency; i++ {
		workerID := fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
		w.wg.Add(1)
		go w.runLoop(ctx, workerID)
	}

	if w.lockTimeout > 0 {
		w.wg.Add(1)
		go w.reapLoop(ctx)
	}
	w.log.Infof("started %d ingest workers", w.concurrency)
}

// Stop cancels the loops and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.log.Info("ingest workers stopped")
}

func (w *Worker) runLoop(ctx context.Context, workerID string) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before sleeping again.
			for {
				job, err := w.jobs.Claim(ctx, workerID)
				if err != nil {
					w.log.Errorf("failed to claim job: %v", err)
					break
				}
				if job == nil {
					break
				}
				w.scheduler.Run(ctx, job)
			}
		}
	}
}

func (w *Worker) reapLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.lockTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.jobs.RequeueStale(ctx, w.lockTimeout)
			if err != nil {
				w.log.Errorf("failed to requeue stale jobs: %v", err)
				continue
			}
			if n > 0 {
				w.log.Warnf("requeued %d stale jobs", n)
			}
		}
	}
}
