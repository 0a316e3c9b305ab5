package scheduler

import (
	"container/heap"
	"testing"
	"time"
)

func TestSchedulerRunDoesNotBlockOnSlowTask(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	fastFired := make(chan struct{}, 1)

	past := time.Now().UTC().Add(-time.Minute)
	slow := &Task{Name: "slow", Run: func(ctx RunContext) {
		close(started)
		<-release
	}}
	fast := &Task{Name: "fast", Run: func(ctx RunContext) { fastFired <- struct{}{} }}

	// Seed the heap directly with two already-due runs, bypassing Start's
	// minute-of-hour scheduling so the test doesn't wait on the real clock.
	heap.Push(&s.heap, &scheduledRun{task: slow, fireAt: past})
	heap.Push(&s.heap, &scheduledRun{task: fast, fireAt: past})
	go s.run()
	defer func() {
		close(release)
		s.Stop()
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow task never started")
	}

	select {
	case <-fastFired:
	case <-time.After(2 * time.Second):
		t.Fatalf("fast task should have fired without waiting on the slow task still blocked on release")
	}
}

func TestNextFireTimeSameHourFuture(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)
	got := nextFireTime(now, 15)
	want := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextFireTimeRollsToNextHour(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	got := nextFireTime(now, 15)
	want := time.Date(2026, 1, 1, 11, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSchedulerDispatchInvokesRun(t *testing.T) {
	s := New(nil)
	fired := make(chan RunContext, 1)
	task := &Task{
		Name: "test-task",
		Run:  func(ctx RunContext) { fired <- ctx },
	}
	scheduledFor := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)

	s.dispatch(task, scheduledFor)

	select {
	case ctx := <-fired:
		if !ctx.ScheduledFor.Equal(scheduledFor) {
			t.Fatalf("got ScheduledFor %v, want %v", ctx.ScheduledFor, scheduledFor)
		}
	default:
		t.Fatalf("expected dispatch to call Run synchronously")
	}
}

func TestSchedulerDispatchRecoversPanic(t *testing.T) {
	s := New(nil)
	task := &Task{Name: "panicky", Run: func(ctx RunContext) { panic("boom") }}
	// Must not propagate the panic to the test.
	s.dispatch(task, time.Now().UTC())
}
