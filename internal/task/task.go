// Package task defines the unit of work handed to the executor: one command
// destined for one server, with the user and ssh options resolved up front.
package task

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Task is immutable once constructed. Duplicate (server, command) pairs are
// legal and produce independent results; the ID correlates streamed partial
// output with its origin.
type Task struct {
	ID         uuid.UUID
	Server     string
	User       string
	SSHOptions string
	Command    string
}

// Lookup resolves per-server settings. A missing entry resolves to the empty
// string, never an error.
type Lookup interface {
	UserFor(server string) string
	OptionsFor(server string) string
}

// New constructs a Task with a fresh ID.
func New(server, user, sshOptions, command string) Task {
	return Task{
		ID:         uuid.New(),
		Server:     server,
		User:       user,
		SSHOptions: sshOptions,
		Command:    command,
	}
}

// Destination is the host argument handed to the ssh client: user@server, or
// the bare server name when no user is configured.
func (t Task) Destination() string {
	if t.User == "" {
		return t.Server
	}
	return t.User + "@" + t.Server
}

// Expand builds the cartesian product of servers and commands: every command
// runs on every server. Launch order is servers outer, commands inner, but the
// final report is sorted so expansion order never affects output.
func Expand(servers, commands []string, lk Lookup) ([]Task, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("expand: no servers configured")
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("expand: no commands given")
	}
	for _, c := range commands {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("expand: empty command")
		}
	}

	tasks := make([]Task, 0, len(servers)*len(commands))
	for _, s := range servers {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("expand: empty server name")
		}
		user := lk.UserFor(s)
		opts := lk.OptionsFor(s)
		for _, c := range commands {
			tasks = append(tasks, New(s, user, opts, c))
		}
	}
	return tasks, nil
}
