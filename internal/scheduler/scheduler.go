// Package scheduler implements the TickScheduler: a single dispatcher
// firing periodic jobs (zone ticks, effect-manager sweeps) from one
// monotonic clock, with at-most-one outstanding invocation per job.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic unit of work. Run receives the scheduler's
// monotonic millisecond clock reading for this firing.
type Job struct {
	Name   string
	Period time.Duration
	Run    func(nowMs int64)
}

// Scheduler drives a set of Jobs from one monotonic clock, skipping a
// job's next firing if its previous run hasn't returned yet rather than
// queuing a backlog.
type Scheduler struct {
	log *slog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New returns a Scheduler.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{log: log, running: make(map[string]bool)}
}

// Run starts job on its own ticker and blocks until ctx is cancelled.
// Intended to be called in its own goroutine per job.
func (s *Scheduler) Run(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(job)
		}
	}
}

func (s *Scheduler) fire(job Job) {
	s.mu.Lock()
	if s.running[job.Name] {
		s.mu.Unlock()
		s.log.Debug("tick overrun, skipping", "job", job.Name)
		return
	}
	s.running[job.Name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[job.Name] = false
		s.mu.Unlock()
	}()

	job.Run(NowMs())
}

// clockStart anchors NowMs; time.Since reads the monotonic clock.
var clockStart = time.Now()

// NowMs returns the current monotonic clock reading in milliseconds,
// the single clock source every scheduled job and tick computation uses.
func NowMs() int64 {
	return time.Since(clockStart).Milliseconds()
}

// RunAll starts every job in jobs, one goroutine each, returning once
// all of their goroutines have been launched. Callers cancel ctx to
// stop every job.
func (s *Scheduler) RunAll(ctx context.Context, jobs []Job) {
	for _, j := range jobs {
		go s.Run(ctx, j)
	}
}
