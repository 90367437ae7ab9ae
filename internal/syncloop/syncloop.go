// Package syncloop provides a generic ticker-driven background worker,
// grounded directly on the teacher's internal/sync.Worker: Start/Stop
// over stopCh/doneCh, a running flag guarded by sync.RWMutex, and an
// initial run before the first tick. It is reused here for both the
// cache's periodic full-rebuild sweep and the commit log's auto-sync tick.
package syncloop

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jra3/taskgraph/internal/logx"
)

// Worker runs fn once immediately, then again on every tick of interval,
// until Stop is called or ctx is cancelled. A rate.Limiter paces ticks
// so a caller-supplied small interval cannot overrun the underlying
// resource, the same role internal/api/client.go's limiter plays for
// outbound API calls.
type Worker struct {
	fn       func(context.Context) error
	interval time.Duration
	limiter  *rate.Limiter
	log      *logx.Logger

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastRun  time.Time
}

// New builds a Worker. If limiter is nil, ticks are not additionally
// rate-limited beyond interval.
func New(fn func(context.Context) error, interval time.Duration, limiter *rate.Limiter, log *logx.Logger) *Worker {
	if log == nil {
		log = logx.Default("syncloop")
	}
	return &Worker{fn: fn, interval: interval, limiter: limiter, log: log}
}

// Start begins the background loop. Calling Start on an already-running
// Worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.run(ctx, stopCh, doneCh)
}

// Stop blocks until the current cycle (if any) finishes and the loop
// exits.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Running reports whether the loop is currently active.
func (w *Worker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// LastRun returns the time of the most recently completed cycle.
func (w *Worker) LastRun() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRun
}

func (w *Worker) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(doneCh)
	}()

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
	}
	if err := w.fn(ctx); err != nil {
		w.log.Warnf("syncloop cycle failed: %v", err)
	}
	w.mu.Lock()
	w.lastRun = time.Now().UTC()
	w.mu.Unlock()
}
