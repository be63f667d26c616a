// Package scheduler runs named periodic tasks, one ticker loop per task.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a periodic job. Run executes to completion on every tick; a slow
// task delays its own next tick, never another task's.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler owns a set of registered tasks and their ticker goroutines.
type Scheduler struct {
	log   *zap.Logger
	tasks []Task
}

// New creates an empty scheduler.
func New(log *zap.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Register adds a task. Must be called before Run.
func (s *Scheduler) Register(name string, interval time.Duration, fn func(ctx context.Context)) {
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Run: fn})
}

// Run starts every registered task in its own goroutine and blocks until
// ctx is canceled and all tasks have returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.runTask(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	s.log.Info("task started",
		zap.String("task", t.Name), zap.Duration("interval", t.Interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("task stopping", zap.String("task", t.Name))
			return
		case <-ticker.C:
			t.Run(ctx)
		}
	}
}
