package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawnRunsTask(t *testing.T) {
	p := New(context.Background())
	var ran atomic.Bool
	done := make(chan struct{})
	_, err := p.Spawn("t1", 0, func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task never ran")
	}
	if !ran.Load() {
		t.Fatalf("expected task to run")
	}
}

func TestStopAllCancelsContext(t *testing.T) {
	p := New(context.Background())
	cancelled := make(chan struct{})
	p.Spawn("t1", 0, func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})
	p.StopAll()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("task was not cancelled")
	}
}

func TestStopAllJoinsEveryTask(t *testing.T) {
	p := New(context.Background())
	var order []int
	record := make(chan int, 3)
	mk := func(n int) Task {
		return func(ctx context.Context) {
			<-ctx.Done()
			record <- n
		}
	}
	p.Spawn("c", 2, mk(2))
	p.Spawn("a", 0, mk(0))
	p.Spawn("b", 1, mk(1))
	p.StopAll()
	close(record)
	for n := range record {
		order = append(order, n)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 tasks to join, got %d", len(order))
	}
}

func TestSpawnFailsAfterDestroy(t *testing.T) {
	p := New(context.Background())
	p.Destroy()
	if _, err := p.Spawn("late", 0, func(ctx context.Context) {}); err == nil {
		t.Fatalf("expected error spawning on destroyed pool")
	}
}

func TestLenTracksSpawnedTasks(t *testing.T) {
	p := New(context.Background())
	p.Spawn("a", 0, func(ctx context.Context) { <-ctx.Done() })
	p.Spawn("b", 0, func(ctx context.Context) { <-ctx.Done() })
	if p.Len() != 2 {
		t.Fatalf("expected Len() == 2, got %d", p.Len())
	}
	p.Destroy()
}
