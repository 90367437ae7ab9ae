package syncloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorker_RunsImmediatelyThenTicks(t *testing.T) {
	t.Parallel()
	var count atomic.Int32
	w := New(func(context.Context) error {
		count.Add(1)
		return nil
	}, 10*time.Millisecond, nil, nil)

	ctx := context.Background()
	w.Start(ctx)
	defer w.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if count.Load() < 3 {
		t.Errorf("count = %d, want at least 3 cycles", count.Load())
	}
}

func TestWorker_StopIsIdempotentAndBlocking(t *testing.T) {
	t.Parallel()
	w := New(func(context.Context) error { return nil }, time.Hour, nil, nil)
	w.Start(context.Background())

	if !w.Running() {
		t.Fatal("Running() should be true after Start()")
	}
	w.Stop()
	if w.Running() {
		t.Error("Running() should be false after Stop()")
	}
	w.Stop() // must not hang or panic
}

func TestWorker_StartTwiceIsNoop(t *testing.T) {
	t.Parallel()
	var count atomic.Int32
	w := New(func(context.Context) error {
		count.Add(1)
		return nil
	}, time.Hour, nil, nil)

	w.Start(context.Background())
	w.Start(context.Background())
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	if count.Load() != 1 {
		t.Errorf("count = %d, want exactly 1 immediate run", count.Load())
	}
}
