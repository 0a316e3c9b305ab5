// Package scheduler dispatches AERIS's hourly task beat: ingestion at
// minute 0, the UPES engine at minute 15, route-exposure scoring at minute
// 20, and alert evaluation at minute 25 (UTC), each with at-least-once,
// per-hour-bucket semantics, using a min-heap of next-fire-times generalized
// from one-shot expiries to recurring, minute-of-hour-anchored tasks.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one beat-scheduled job. Run receives the UTC instant the task was
// scheduled to fire at (not wall-clock time of actual execution), so a late
// dispatch still computes the correct ingestion/scoring window.
type Task struct {
	Name        string
	MinuteOfHour int // 0..59; the task fires once per hour at this minute
	Run         func(ctx RunContext)
}

// RunContext carries the instant a task was scheduled to fire at.
type RunContext struct {
	ScheduledFor time.Time
}

type scheduledRun struct {
	task     *Task
	fireAt   time.Time
	index    int
}

type runHeap []*scheduledRun

func (h runHeap) Len() int            { return len(h) }
func (h runHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h runHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *runHeap) Push(x interface{}) {
	r := x.(*scheduledRun)
	r.index = len(*h)
	*h = append(*h, r)
}
func (h *runHeap) Pop() interface{} {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}

// Scheduler runs every registered Task's beat indefinitely until Stop.
type Scheduler struct {
	mu       sync.Mutex
	heap     runHeap
	tasks    []*Task
	wakeup   chan struct{}
	stopCh   chan struct{}
	inFlight sync.WaitGroup
	log      *logrus.Entry
}

// New builds a Scheduler with no tasks registered yet.
func New(log *logrus.Entry) *Scheduler {
	s := &Scheduler{
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		log:    log,
	}
	heap.Init(&s.heap)
	return s
}

// Register adds a recurring beat task. Call before Start.
func (s *Scheduler) Register(t Task) {
	s.tasks = append(s.tasks, &t)
}

// Start schedules every registered task's next fire time and begins the
// dispatch loop in a background goroutine.
func (s *Scheduler) Start() {
	now := time.Now().UTC()
	s.mu.Lock()
	for _, t := range s.tasks {
		heap.Push(&s.heap, &scheduledRun{task: t, fireAt: nextFireTime(now, t.MinuteOfHour)})
	}
	s.mu.Unlock()
	go s.run()
}

// Stop halts the dispatch loop and waits for in-flight task goroutines to
// finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.inFlight.Wait()
}

// nextFireTime returns the next instant at minuteOfHour strictly after now.
func nextFireTime(now time.Time, minuteOfHour int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minuteOfHour, 0, 0, time.UTC)
	if !candidate.After(now) {
		candidate = candidate.Add(time.Hour)
	}
	return candidate
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		if s.heap.Len() == 0 {
			s.mu.Unlock()
			return
		}
		next := s.heap[0]
		wait := time.Until(next.fireAt)
		if wait <= 0 {
			heap.Pop(&s.heap)
			fireAt := next.fireAt
			heap.Push(&s.heap, &scheduledRun{task: next.task, fireAt: fireAt.Add(time.Hour)})
			s.mu.Unlock()

			// Submitted non-blocking so a long-running task (e.g. a slow
			// ingestion pass) never delays the next task's fire time.
			s.inFlight.Add(1)
			go func(t *Task, at time.Time) {
				defer s.inFlight.Done()
				s.dispatch(t, at)
			}(next.task, fireAt)
			continue
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) dispatch(t *Task, fireAt time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("task %s panicked: %v", t.Name, r)
		}
	}()
	s.logf("running task %s scheduled for %s", t.Name, fireAt.Format(time.RFC3339))
	t.Run(RunContext{ScheduledFor: fireAt})
}

func (s *Scheduler) logf(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Infof(format, args...)
	}
}
