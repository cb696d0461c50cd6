package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Command describes one unit of work as a process invocation. It is
// the payload type the Local engine accepts.
type Command struct {
	// Argv is the program and its arguments. Must be non-empty.
	Argv []string

	// Dir is the working directory. Empty inherits the parent's.
	Dir string

	// Env holds extra KEY=VALUE entries appended to the parent's
	// environment.
	Env []string
}

// ExitStatus reports how a unit ended.
type ExitStatus struct {
	Handle   string
	Pid      int
	ExitCode int   // -1 when the process could not be waited on
	Err      error // non-exit failures only; a non-zero exit is not an Err
}

// Local starts units as detached local processes.
//
// Processes run in their own session, so units survive the submitting
// process exiting; long-running work must not die with the controller.
// A reaper goroutine per unit collects the exit status and hands it to
// the OnExit callback.
type Local struct {
	handles HandleGenerator
	log     *slog.Logger
	onExit  func(ExitStatus)

	wg sync.WaitGroup

	mu      sync.Mutex
	running map[string]int // handle -> pid
}

// Option configures a Local engine.
type Option func(*Local)

// WithHandles overrides the handle generator. Tests use FixedHandles
// for deterministic ledger contents.
func WithHandles(gen HandleGenerator) Option {
	return func(l *Local) {
		l.handles = gen
	}
}

// WithLogger routes engine logging to the given logger instead of
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Local) {
		l.log = log
	}
}

// WithOnExit registers a callback invoked from the reaper goroutine
// whenever a unit exits. Callers typically seal the unit's ledger
// record here. The callback must be safe for concurrent invocation.
func WithOnExit(fn func(ExitStatus)) Option {
	return func(l *Local) {
		l.onExit = fn
	}
}

// NewLocal constructs a Local engine. Defaults: UUIDv7 handles,
// slog.Default() logging, no exit callback.
func NewLocal(opts ...Option) *Local {
	l := &Local{
		handles: UUIDHandles{},
		log:     slog.Default(),
		running: make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the unit described by the payload and returns its
// handle. The payload must be a Command.
//
// The context is deliberately not attached to the process: units
// outlive the batch, and often the whole submitting run, so cancelling
// a batch must not kill what it already started.
func (l *Local) Start(_ context.Context, payload any) (string, error) {
	command, ok := payload.(Command)
	if !ok {
		return "", fmt.Errorf("local engine needs a Command payload, got %T", payload)
	}
	if len(command.Argv) == 0 {
		return "", fmt.Errorf("command has empty argv")
	}

	handle := l.handles.Generate()

	cmd := exec.Command(command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}
	// Detach from the terminal; inherited stdio would hold it open.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	configureDetached(cmd)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", command.Argv[0], err)
	}

	pid := cmd.Process.Pid
	l.mu.Lock()
	l.running[handle] = pid
	l.mu.Unlock()

	l.log.Debug("unit started",
		"handle", handle,
		"pid", pid,
		"argv", command.Argv)

	l.wg.Add(1)
	go l.reap(handle, pid, cmd)

	return handle, nil
}

// reap waits for one unit and reports its exit.
func (l *Local) reap(handle string, pid int, cmd *exec.Cmd) {
	defer l.wg.Done()

	status := ExitStatus{Handle: handle, Pid: pid}
	if err := cmd.Wait(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			status.ExitCode = exitError.ExitCode()
		} else {
			status.ExitCode = -1
			status.Err = err
		}
	}

	l.mu.Lock()
	delete(l.running, handle)
	l.mu.Unlock()

	l.log.Debug("unit exited",
		"handle", handle,
		"pid", pid,
		"exit_code", status.ExitCode)

	if l.onExit != nil {
		l.onExit(status)
	}
}

// Running returns how many units started by this instance are still
// running.
func (l *Local) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

// Wait blocks until every unit started by this instance has exited
// and its OnExit callback has returned. Exiting without waiting is
// fine: units are session leaders and keep running on their own.
func (l *Local) Wait() {
	l.wg.Wait()
}
