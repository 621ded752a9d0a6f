// Package scheduler triggers history captures and retention on a fixed cadence.
package scheduler

import (
	"context"
	"log"
	"time"
)

// Job is the work run on every tick
type Job interface {
	Capture(ctx context.Context) (string, error)
	Cleanup(ctx context.Context, keepDays int) (int, error)
}

// Runner captures once at start and then every Interval, running retention
// after each capture
type Runner struct {
	job           Job
	interval      time.Duration
	retentionDays int
}

// NewRunner creates a runner
func NewRunner(job Job, interval time.Duration, retentionDays int) *Runner {
	return &Runner{
		job:           job,
		interval:      interval,
		retentionDays: retentionDays,
	}
}

// Run blocks until ctx is canceled. Errors are logged and the loop continues.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("Scheduler: capturing every %v, retaining %d days", r.interval, r.retentionDays)

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			log.Println("Scheduler: stopped")
			return
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	id, err := r.job.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Scheduler: capture error: %v", err)
	} else {
		log.Printf("Scheduler: captured %s in %v", id, time.Since(start).Round(time.Millisecond))
	}

	if _, err := r.job.Cleanup(ctx, r.retentionDays); err != nil && ctx.Err() == nil {
		log.Printf("Scheduler: cleanup error: %v", err)
	}
}
