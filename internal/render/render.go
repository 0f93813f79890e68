// Package render turns a finalized report into console output and a plain
// log record per result. Classification (all / partial / none succeeded) is
// computed once from the report, never re-derived per line.
package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/andrej220/fleetrun/internal/executor"
	"github.com/andrej220/fleetrun/internal/report"
)

// Reporter writes the final report to out and, when sink is non-nil, one
// uncolored record per result to the log sink.
type Reporter struct {
	out   io.Writer
	sink  io.Writer
	color bool
}

func New(out io.Writer, sink io.Writer, colorize bool) *Reporter {
	return &Reporter{out: out, sink: sink, color: colorize}
}

// NewLogSink opens a size-rotated log file for report records.
func NewLogSink(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
}

// Render writes every result plus a one-line summary. Results arrive already
// sorted by server, so output is deterministic regardless of completion order.
func (r *Reporter) Render(set report.ReportSet) {
	for _, res := range set.Results {
		line := formatResult(res)
		if r.color && !res.Success {
			color.New(color.FgRed).Fprint(r.out, line)
		} else {
			fmt.Fprint(r.out, line)
		}
		if r.sink != nil {
			fmt.Fprint(r.sink, line)
		}
	}

	summary := summarize(set)
	if r.color {
		summaryColor(set).Fprintln(r.out, summary)
	} else {
		fmt.Fprintln(r.out, summary)
	}
	if r.sink != nil {
		fmt.Fprintln(r.sink, summary)
	}
}

// Live consumes provisional events until the channel is closed, printing each
// line as it arrives. Interleaving across servers carries no ordering
// guarantee; the final report is the authoritative view.
func (r *Reporter) Live(events <-chan executor.Event) {
	for ev := range events {
		prefix := ev.Server
		if ev.Source == executor.Stderr {
			prefix += " (stderr)"
		}
		fmt.Fprintf(r.out, "%s | %s\n", prefix, ev.Line)
	}
}

func formatResult(res report.Result) string {
	if !res.Success {
		detail := res.Error
		if detail == "" {
			detail = "command failed"
		}
		return fmt.Sprintf("Error from %s: %s (Duration: %.2fs)\n",
			res.Server, detail, res.Duration.Seconds())
	}
	return fmt.Sprintf("Output from %s:\n%s(Duration: %.2fs)\n",
		res.Server, res.Output, res.Duration.Seconds())
}

func summarize(set report.ReportSet) string {
	n := len(set.Results)
	switch {
	case set.AllSucceeded:
		return fmt.Sprintf("all %d commands succeeded", n)
	case set.AnySucceeded:
		return fmt.Sprintf("some of %d commands failed", n)
	default:
		return fmt.Sprintf("all %d commands failed", n)
	}
}

func summaryColor(set report.ReportSet) *color.Color {
	switch {
	case set.AllSucceeded:
		return color.New(color.FgGreen)
	case set.AnySucceeded:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
