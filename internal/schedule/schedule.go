// Package schedule runs cancellable interval and delayed callbacks.
//
// Every callback start is ordered against [Task.Stop]: once Stop returns, the task never
// starts its callback again. A callback already running when Stop is called sees its
// context canceled.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Task is a handle to a scheduled callback.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	runs    int
}

func newTask(parent context.Context) (*Task, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Task{cancel: cancel, done: make(chan struct{})}, ctx
}

// begin records a callback start unless the task was stopped.
func (t *Task) begin(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || ctx.Err() != nil {
		return false
	}
	t.runs++
	return true
}

// Stop prevents further callbacks and cancels the context of a running one. It does not wait,
// so it may be called from inside the callback.
func (t *Task) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.cancel()
}

// Wait blocks until the task's goroutine has exited.
func (t *Task) Wait() {
	<-t.done
}

// Done is closed when the task's goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Runs returns how many times the callback has started.
func (t *Task) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// Every calls fn every interval until ctx is done or the task is stopped.
// With immediate set, the first call happens right away.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context), immediate bool) *Task {
	t, tctx := newTask(ctx)
	go func() {
		defer close(t.done)
		defer t.cancel()

		if immediate && t.begin(tctx) {
			fn(tctx)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
				if !t.begin(tctx) {
					return
				}
				fn(tctx)
			}
		}
	}()
	return t
}

// After calls fn once after delay unless ctx is done or the task is stopped first.
func After(ctx context.Context, delay time.Duration, fn func(context.Context)) *Task {
	t, tctx := newTask(ctx)
	go func() {
		defer close(t.done)
		defer t.cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-tctx.Done():
		case <-timer.C:
			if t.begin(tctx) {
				fn(tctx)
			}
		}
	}()
	return t
}

// Group tracks tasks so they can be stopped together.
type Group struct {
	mu    sync.Mutex
	tasks []*Task
}

func (g *Group) add(t *Task) *Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	live := g.tasks[:0]
	for _, existing := range g.tasks {
		select {
		case <-existing.done:
		default:
			live = append(live, existing)
		}
	}
	g.tasks = append(live, t)
	return t
}

// Every schedules an interval task tracked by g.
func (g *Group) Every(ctx context.Context, interval time.Duration, fn func(context.Context), immediate bool) *Task {
	return g.add(Every(ctx, interval, fn, immediate))
}

// After schedules a delayed task tracked by g.
func (g *Group) After(ctx context.Context, delay time.Duration, fn func(context.Context)) *Task {
	return g.add(After(ctx, delay, fn))
}

// StopAll stops every tracked task.
func (g *Group) StopAll() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}

// Len returns the number of tracked tasks that have not exited.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, t := range g.tasks {
		select {
		case <-t.done:
		default:
			n++
		}
	}
	return n
}

// Close stops every tracked task and waits for their goroutines to exit.
// It must not be called from a task callback.
func (g *Group) Close() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	for _, t := range tasks {
		t.Wait()
	}
}
