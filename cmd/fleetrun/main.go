// fleetrun executes shell commands across a fleet of servers over ssh and
// prints one deterministic report when every task has finished.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/andrej220/fleetrun/internal/dispatch"
	"github.com/andrej220/fleetrun/internal/executor"
	"github.com/andrej220/fleetrun/internal/lg"
	"github.com/andrej220/fleetrun/internal/persist"
	"github.com/andrej220/fleetrun/internal/render"
	"github.com/andrej220/fleetrun/internal/report"
	"github.com/andrej220/fleetrun/internal/sink"
	"github.com/andrej220/fleetrun/internal/task"
	"github.com/andrej220/fleetrun/pkg/config"
)

const serviceName = "fleetrun"

// errRunFailed signals that at least one task failed; the report has already
// been rendered, only the exit code differs.
var errRunFailed = errors.New("run failed")

var (
	configPath string
	maxWorkers int
	timeout    time.Duration
	logFile    string
	jsonOut    string
	stream     bool
	debug      bool
	logFormat  string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "fleetrun [flags] -- <command> [command ...]",
	Short: "Run shell commands on every server of a fleet over ssh",
	Long: `fleetrun expands the given commands against the configured server list,
executes every (server, command) pair concurrently through the external ssh
client and prints a single report sorted by server name.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path or mongodb:// URI")
	rootCmd.Flags().IntVar(&maxWorkers, "max-workers", -1, "max concurrent tasks, 0 = unbounded (overrides config)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-task timeout, 0 = none (overrides config)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "report log file (overrides config)")
	rootCmd.Flags().StringVar(&jsonOut, "json-out", "", "write the report as JSON to this file")
	rootCmd.Flags().BoolVar(&stream, "stream", false, "print output lines as they arrive")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "json", "diagnostic log format: json or console")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colorized output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errRunFailed) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "fleetrun:", err)
		os.Exit(2)
	}
}

func run(cmd *cobra.Command, commands []string) error {
	logger := lg.New(lg.Config{ServiceName: serviceName, Debug: debug, Format: logFormat})
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	taskTimeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	tasks, err := task.Expand(cfg.Servers, commands, cfg)
	if err != nil {
		return err
	}
	logger.Info("run starting",
		lg.Int("servers", len(cfg.Servers)),
		lg.Int("commands", len(commands)),
		lg.Int("tasks", len(tasks)))

	ctx, stop := signal.NotifyContext(lg.Attach(context.Background(), logger),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := executor.New()
	exec.Timeout = taskTimeout

	colorize := !noColor && isatty.IsTerminal(os.Stdout.Fd())
	var logSink io.WriteCloser
	if cfg.LogFile != "" {
		logSink = render.NewLogSink(cfg.LogFile)
		defer logSink.Close()
	}
	reporter := render.New(os.Stdout, sinkWriter(logSink), colorize)

	agg := report.NewAggregator()
	disp := dispatch.New(exec, cfg.MaxWorkers, logger)

	var events chan executor.Event
	liveDone := make(chan struct{})
	if stream {
		events = make(chan executor.Event, 64)
		go func() {
			defer close(liveDone)
			reporter.Live(events)
		}()
	} else {
		close(liveDone)
	}

	disp.Run(ctx, tasks, agg, events)
	if events != nil {
		close(events)
	}
	<-liveDone

	set := agg.Finalize()
	reporter.Render(set)

	if jsonOut != "" {
		err := persist.WriteReport(set, jsonOut,
			persist.JSONSerializer{Indent: "    "},
			persist.FileWriter{Overwrite: true})
		if err != nil {
			logger.Error("writing JSON report", lg.Err(err))
		}
	}

	if cfg.Kafka != nil {
		publisher := sink.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		if err := publisher.Publish(ctx, set); err != nil {
			logger.Error("publishing results", lg.Err(err))
		}
	}

	if !set.AllSucceeded {
		return errRunFailed
	}
	return nil
}

// loadConfig resolves the config location: explicit flag, discovery, or an
// interactive offer to create a starter config on first run.
func loadConfig() (*config.Config, error) {
	location := configPath
	if location == "" {
		var err error
		location, err = config.Discover()
		if errors.Is(err, config.ErrNotFound) {
			location, err = offerDefaultConfig(os.Stdin, os.Stderr)
		}
		if err != nil {
			return nil, err
		}
	}
	return config.Load(location)
}

// offerDefaultConfig asks the operator, terminal permitting, whether to write
// a starter config. Declining (or a non-interactive session) aborts the run.
func offerDefaultConfig(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return "", config.ErrNotFound
	}
	path, err := config.DefaultPath()
	if err != nil {
		return "", err
	}

	fmt.Fprintf(out, "No configuration found. Create a default at %s? [y/N] ", path)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
		return "", config.ErrNotFound
	}
	if err := config.WriteDefault(path); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "Created %s, edit it to describe your fleet.\n", path)
	return path, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("max-workers") {
		cfg.MaxWorkers = maxWorkers
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TaskTimeout = timeout.String()
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}
}

// sinkWriter keeps the nil-ness of an absent sink; a nil io.WriteCloser in an
// io.Writer interface would not compare equal to nil.
func sinkWriter(w io.WriteCloser) io.Writer {
	if w == nil {
		return nil
	}
	return w
}
