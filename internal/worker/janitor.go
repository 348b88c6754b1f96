package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is periodic background work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Janitor runs each task on its own ticker until Stop.
type Janitor struct {
	tasks  []Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewJanitor(tasks ...Task) *Janitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{tasks: tasks, ctx: ctx, cancel: cancel}
}

func (j *Janitor) Start() {
	for _, t := range j.tasks {
		if t.Interval <= 0 {
			slog.Warn("Skipping task without interval", "task", t.Name)
			continue
		}
		j.wg.Add(1)
		go j.loop(t)
	}
	slog.Info("Janitor started", "tasks", len(j.tasks))
}

// Stop cancels running tasks and waits for them to return.
func (j *Janitor) Stop() {
	j.cancel()
	j.wg.Wait()
	slog.Info("Janitor stopped")
}

func (j *Janitor) loop(t Task) {
	defer j.wg.Done()
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.Run(j.ctx); err != nil && j.ctx.Err() == nil {
				slog.Warn("Background task failed", "task", t.Name, "error", err)
			}
		case <-j.ctx.Done():
			return
		}
	}
}
