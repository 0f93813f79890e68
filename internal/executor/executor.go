// Package executor runs one task by invoking the external ssh client as a
// subprocess and capturing its output. It knows nothing about other tasks.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrej220/fleetrun/internal/lg"
	"github.com/andrej220/fleetrun/internal/report"
	"github.com/andrej220/fleetrun/internal/task"
)

// DefaultClient is the ssh binary resolved from PATH.
const DefaultClient = "ssh"

// Source identifies which pipe a provisional line came from.
type Source int

const (
	Stdout Source = iota
	Stderr
)

// Event is one provisional line of output, emitted while the command is still
// running. Events are not authoritative: only the terminal Result decides
// success or failure.
type Event struct {
	TaskID uuid.UUID
	Server string
	Source Source
	Line   string
}

// Executor invokes the external ssh client. The zero value is not usable;
// construct with New.
type Executor struct {
	// Client is the path or name of the ssh binary.
	Client string
	// Timeout bounds a single task. Zero means no limit. On expiry the
	// subprocess is killed and the result records error "timeout".
	Timeout time.Duration
}

func New() *Executor {
	return &Executor{Client: DefaultClient}
}

// Run executes one task and returns its terminal result. It never returns an
// error: spawn failures, non-zero exits, read failures and timeouts all land
// in the Result. events may be nil for batch collection; when non-nil, one
// Event is sent per output line before the terminal result is returned.
func (x *Executor) Run(ctx context.Context, t task.Task, events chan<- Event) report.Result {
	start := time.Now()
	log := lg.FromContext(ctx).With(lg.String("server", t.Server), lg.String("command", t.Command))

	if x.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.Timeout)
		defer cancel()
	}

	// The argument vector is the wire contract with the external client:
	// options and destination are passed verbatim, even when empty.
	cmd := exec.CommandContext(ctx, x.Client, t.SSHOptions, t.Destination(), t.Command)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return spawnFailure(t, start, fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return spawnFailure(t, start, fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return spawnFailure(t, start, fmt.Errorf("start %s: %w", x.Client, err))
	}
	log.Debug("subprocess started", lg.Int("pid", cmd.Process.Pid))

	// Both pipes must be drained concurrently; a single sequential reader can
	// deadlock the child on a full pipe buffer.
	var outLines, errLines []string
	var outScanErr, errScanErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		outLines, outScanErr = drain(stdout, t, Stdout, events)
	}()
	go func() {
		defer wg.Done()
		errLines, errScanErr = drain(stderr, t, Stderr, events)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	dur := time.Since(start)

	res := report.Result{
		TaskID:   t.ID,
		Server:   t.Server,
		Command:  t.Command,
		Output:   joinLines(outLines),
		Stderr:   joinLines(errLines),
		Duration: dur,
	}

	switch {
	case x.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = "timeout"
	case waitErr != nil:
		if res.Stderr != "" {
			res.Error = res.Stderr
		} else {
			res.Error = waitErr.Error()
		}
	case outScanErr != nil:
		res.Error = fmt.Sprintf("reading stdout: %v", outScanErr)
	case errScanErr != nil:
		res.Error = fmt.Sprintf("reading stderr: %v", errScanErr)
	default:
		res.Success = true
	}

	if res.Success {
		log.Debug("task finished", lg.Duration("duration", dur))
	} else {
		log.Debug("task failed", lg.String("error", res.Error), lg.Duration("duration", dur))
	}
	return res
}

func spawnFailure(t task.Task, start time.Time, err error) report.Result {
	return report.Result{
		TaskID:   t.ID,
		Server:   t.Server,
		Command:  t.Command,
		Error:    err.Error(),
		Duration: time.Since(start),
	}
}

// drain reads one pipe to EOF, sanitizing each line to valid UTF-8 and
// forwarding it as a provisional event when a channel is provided.
func drain(r io.Reader, t task.Task, src Source, events chan<- Event) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "�")
		lines = append(lines, line)
		if events != nil {
			events <- Event{TaskID: t.ID, Server: t.Server, Source: src, Line: line}
		}
	}
	return lines, scanner.Err()
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
