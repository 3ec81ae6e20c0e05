// Package janitor runs periodic cleanup sweeps in the background.
package janitor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval applies when no interval is configured.
const DefaultInterval = 10 * time.Minute

// Task is one named sweep. It returns how many items were removed.
type Task struct {
	Name  string
	Sweep func(ctx context.Context) (int, error)
}

// Janitor runs its tasks on a fixed interval.
type Janitor struct {
	interval time.Duration
	tasks    []Task
}

// New creates a Janitor.
func New(interval time.Duration, tasks ...Task) *Janitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Janitor{interval: interval, tasks: tasks}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "janitor"))
	log.Info("starting janitor",
		zap.Duration("interval", j.interval),
		zap.Int("tasks", len(j.tasks)),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs every task once. A failing task does not stop the others.
func (j *Janitor) Sweep(ctx context.Context) {
	log := zap.L().With(zap.String("component", "janitor"))
	for _, t := range j.tasks {
		n, err := t.Sweep(ctx)
		if err != nil {
			log.Error("janitor: sweep failed", zap.String("task", t.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			log.Info("janitor: sweep complete", zap.String("task", t.Name), zap.Int("removed", n))
		}
	}
}
