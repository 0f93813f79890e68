// Package report owns the collected execution results. The Aggregator is the
// only writer of the shared collection; workers hand over Results by value and
// never touch them again.
package report

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the terminal outcome of one task. Exit status is authoritative
// for Success; Stderr is kept regardless of exit status so diagnostics are
// never dropped, while Error is populated only on failure.
type Result struct {
	TaskID   uuid.UUID
	Server   string
	Command  string
	Output   string
	Stderr   string
	Error    string
	Success  bool
	Duration time.Duration
}

// ReportSet is the finalized, immutable report: results in ascending server
// order (stable on ties) plus the folded success flags.
type ReportSet struct {
	Results      []Result
	AllSucceeded bool
	AnySucceeded bool
}

// Aggregator collects Results from concurrently running workers. It is
// one-shot: Finalize may be called once, after the dispatcher's barrier.
type Aggregator struct {
	mu        sync.Mutex
	results   []Result
	finalized bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record appends one result. Safe for concurrent use. The critical section is
// the append only; callers must not rely on any ordering between records.
func (a *Aggregator) Record(r Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		panic("report: Record called after Finalize")
	}
	a.results = append(a.results, r)
}

// Len reports how many results have been recorded so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Finalize sorts the collected results by server (stable, so arrival order
// breaks ties) and computes the aggregate flags. The Aggregator must not be
// used again afterwards.
func (a *Aggregator) Finalize() ReportSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		panic("report: Finalize called twice")
	}
	a.finalized = true

	results := a.results
	a.results = nil
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Server < results[j].Server
	})

	all := true
	any := false
	for _, r := range results {
		if r.Success {
			any = true
		} else {
			all = false
		}
	}
	return ReportSet{
		Results:      results,
		AllSucceeded: all,
		AnySucceeded: any,
	}
}
