// Package dispatch fans tasks out to concurrent workers and enforces the
// completion barrier: Run returns only after every worker has delivered its
// result to the aggregator.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/andrej220/fleetrun/internal/executor"
	"github.com/andrej220/fleetrun/internal/lg"
	"github.com/andrej220/fleetrun/internal/report"
	"github.com/andrej220/fleetrun/internal/task"
)

// Runner executes a single task. Satisfied by *executor.Executor.
type Runner interface {
	Run(ctx context.Context, t task.Task, events chan<- executor.Event) report.Result
}

// Dispatcher launches one worker per task, gated by an optional admission
// semaphore. A worker failure never crashes the run; it becomes a failed
// result like any other.
type Dispatcher struct {
	runner Runner
	limit  int64
	log    lg.Logger
}

// New builds a Dispatcher. limit caps concurrently running workers; zero or
// negative means unbounded, which suits small fleets but should be capped for
// large ones.
func New(runner Runner, limit int, logger lg.Logger) *Dispatcher {
	if logger == nil {
		logger = lg.Discard
	}
	return &Dispatcher{runner: runner, limit: int64(limit), log: logger}
}

// Run executes all tasks and blocks until every worker has finished and
// recorded its result. events, when non-nil, receives provisional output
// lines from all workers; Run does not close it, the caller owns the channel.
func (d *Dispatcher) Run(ctx context.Context, tasks []task.Task, agg *report.Aggregator, events chan<- executor.Event) {
	var sem *semaphore.Weighted
	if d.limit > 0 {
		sem = semaphore.NewWeighted(d.limit)
	}
	d.log.Info("dispatching tasks",
		lg.Int("tasks", len(tasks)),
		lg.Int("maxWorkers", int(d.limit)))

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task.Task) {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					agg.Record(report.Result{
						TaskID:  t.ID,
						Server:  t.Server,
						Command: t.Command,
						Error:   fmt.Sprintf("canceled before start: %v", err),
					})
					return
				}
				defer sem.Release(1)
			}
			agg.Record(d.runOne(ctx, t, events))
		}(t)
	}
	wg.Wait()
	d.log.Info("all workers finished", lg.Int("results", agg.Len()))
}

// runOne invokes the runner with panic containment: an unexpected panic in a
// worker is converted into a failed result so the barrier still completes.
func (d *Dispatcher) runOne(ctx context.Context, t task.Task, events chan<- executor.Event) (res report.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("worker panic", lg.String("server", t.Server), lg.Any("panic", r))
			res = report.Result{
				TaskID:  t.ID,
				Server:  t.Server,
				Command: t.Command,
				Error:   fmt.Sprintf("worker panic: %v", r),
			}
		}
	}()
	return d.runner.Run(ctx, t, events)
}
