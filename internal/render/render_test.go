package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/andrej220/fleetrun/internal/executor"
	"github.com/andrej220/fleetrun/internal/report"
)

func TestRenderSuccessBlock(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, nil, false)
	r.Render(report.ReportSet{
		Results: []report.Result{{
			Server:   "alpha",
			Output:   "up 12 days\n",
			Success:  true,
			Duration: 1234 * time.Millisecond,
		}},
		AllSucceeded: true,
		AnySucceeded: true,
	})

	assert.Contains(t, out.String(), "Output from alpha:\nup 12 days\n(Duration: 1.23s)")
	assert.Contains(t, out.String(), "all 1 commands succeeded")
}

func TestRenderErrorBlock(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, nil, false)
	r.Render(report.ReportSet{
		Results: []report.Result{{
			Server:   "beta",
			Error:    "connection refused",
			Duration: 500 * time.Millisecond,
		}},
	})

	assert.Contains(t, out.String(), "Error from beta: connection refused (Duration: 0.50s)")
	assert.Contains(t, out.String(), "all 1 commands failed")
}

func TestRenderPartialSummary(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, nil, false)
	r.Render(report.ReportSet{
		Results: []report.Result{
			{Server: "alpha", Success: true},
			{Server: "beta", Error: "boom"},
		},
		AnySucceeded: true,
	})

	assert.Contains(t, out.String(), "some of 2 commands failed")
}

func TestRenderWritesLogSink(t *testing.T) {
	var out, sink bytes.Buffer
	r := New(&out, &sink, false)
	r.Render(report.ReportSet{
		Results: []report.Result{{
			Server:   "alpha",
			Output:   "ok\n",
			Success:  true,
			Duration: 2 * time.Second,
		}},
		AllSucceeded: true,
		AnySucceeded: true,
	})

	assert.Contains(t, sink.String(), "Output from alpha:\nok\n(Duration: 2.00s)")
	assert.Contains(t, sink.String(), "all 1 commands succeeded")
}

func TestLive(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, nil, false)

	id := uuid.New()
	events := make(chan executor.Event, 3)
	events <- executor.Event{TaskID: id, Server: "alpha", Source: executor.Stdout, Line: "hello"}
	events <- executor.Event{TaskID: id, Server: "alpha", Source: executor.Stderr, Line: "careful"}
	close(events)

	r.Live(events)
	assert.Contains(t, out.String(), "alpha | hello")
	assert.Contains(t, out.String(), "alpha (stderr) | careful")
}
