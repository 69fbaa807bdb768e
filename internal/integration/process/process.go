package process

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

// Sentinel errors for process package.
var (
	// ErrNoProcess is returned by Stop when nothing is supervised.
	ErrNoProcess = errors.New("no process running")

	// ErrStillRunning is returned by Stop when the process did not exit
	// within the grace period.
	ErrStillRunning = errors.New("process did not exit within grace period")

	// ErrTerminationTimeout is returned by Start when the process being
	// replaced survived SIGKILL. Nothing new is spawned.
	ErrTerminationTimeout = errors.New("previous process could not be terminated")

	// ErrSpawn wraps a failure to start the child.
	ErrSpawn = errors.New("spawn process")

	// ErrInvalidCommand is returned for a command without a program name.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrSupervisorShutdown is returned after Shutdown.
	ErrSupervisorShutdown = errors.New("supervisor is shut down")
)

// State represents the supervisor state.
type State int

const (
	// StateStopped indicates no process is supervised.
	StateStopped State = iota
	// StateStarting indicates a process is being spawned.
	StateStarting
	// StateRunning indicates a process is running.
	StateRunning
	// StateExiting indicates a stop was requested but no exit observed yet.
	StateExiting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExiting:
		return "exiting"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Command describes a child process to supervise.
type Command struct {
	// Name is the program to run, looked up in PATH when it has no slash.
	Name string

	// Args are the program arguments.
	Args []string

	// Dir is the working directory.
	Dir string

	// Env is appended to the supervisor's environment.
	Env []string
}

// String returns the command line.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Handle identifies one lifetime of a supervised process.
type Handle struct {
	id      string
	command Command
	pid     int
	started time.Time

	// replacedForcefully records whether the predecessor needed SIGKILL.
	replacedForcefully bool

	// done is closed after the close event has been published.
	done chan struct{}

	exitCode atomic.Int32
	signal   atomic.Value // string
	seq      atomic.Uint64
}

func newHandle(id string, cmd Command, pid int, forced bool) *Handle {
	h := &Handle{
		id:                 id,
		command:            cmd,
		pid:                pid,
		started:            time.Now(),
		replacedForcefully: forced,
		done:               make(chan struct{}),
	}
	h.exitCode.Store(-1)
	h.signal.Store("")
	return h
}

// ID returns the unique identifier of this lifetime.
func (h *Handle) ID() string {
	return h.id
}

// PID returns the operating system process ID.
func (h *Handle) PID() int {
	return h.pid
}

// Command returns the command that was started.
func (h *Handle) Command() Command {
	return h.command
}

// Started returns the spawn time.
func (h *Handle) Started() time.Time {
	return h.started
}

// ReplacedForcefully reports whether starting this process required
// killing its predecessor.
func (h *Handle) ReplacedForcefully() bool {
	return h.replacedForcefully
}

// Done returns a channel that is closed once the process has exited and
// its close event has been published.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code. It is -1 while running and when the
// process was terminated by a signal.
func (h *Handle) ExitCode() int {
	return int(h.exitCode.Load())
}

// Signal returns the name of the terminating signal, if any.
func (h *Handle) Signal() string {
	return h.signal.Load().(string)
}

// nextSeq returns the next event sequence number for this lifetime.
func (h *Handle) nextSeq() uint64 {
	return h.seq.Add(1)
}

// recordExit stores the exit status from a reaped command and returns a
// human-readable summary.
func (h *Handle) recordExit(cmd *exec.Cmd, waitErr error) string {
	state := cmd.ProcessState
	if state == nil {
		h.exitCode.Store(-1)
		return fmt.Sprintf("process failed: %v", waitErr)
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		name := ws.Signal().String()
		h.exitCode.Store(-1)
		h.signal.Store(name)
		return "terminated by signal: " + name
	}

	code := state.ExitCode()
	h.exitCode.Store(int32(code))
	return fmt.Sprintf("exited with code %d", code)
}
