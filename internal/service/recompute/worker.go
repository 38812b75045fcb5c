package recompute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

// Runner is what the worker schedules. *Job satisfies it.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Worker runs the recompute on a fixed interval.
type Worker struct {
	job      Runner
	log      *slog.Logger
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a periodic recompute worker.
//
// Parameters:
//   - job: the recompute to run
//   - logger: slog logger for logging
//   - interval: how often to run (e.g., 24 hours)
//   - timeout: upper bound for a single run; use the lock TTL so a run never
//     outlives its lock
func NewWorker(job Runner, logger *slog.Logger, interval, timeout time.Duration) *Worker {
	return &Worker{
		job:      job,
		log:      logger,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("recompute worker started", "interval", w.interval)
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("recompute worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Worker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	// stop aborts an in-flight run
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := w.job.Run(ctx); errors.Is(err, svcErr.ErrAlreadyRunning) {
		w.log.Debug("recompute skipped, another instance holds the lock")
	}
}
