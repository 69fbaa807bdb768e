package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/dshills/ralphmgr/internal/event"
)

// Default timing values.
const (
	DefaultGracePeriod = 5 * time.Second
	DefaultKillTimeout = 2 * time.Second
	DefaultWaitDelay   = time.Second
)

// outputBuffer is the number of chunks buffered between the stream
// readers and the publisher.
const outputBuffer = 64

// Supervisor manages the single supervised child process.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	// opMu serializes Start, Stop and Shutdown.
	opMu sync.Mutex

	// mu guards current and state.
	mu      sync.RWMutex
	current *Handle
	state   State

	pub    event.Publisher
	logger *slog.Logger

	gracePeriod time.Duration
	killTimeout time.Duration
	waitDelay   time.Duration

	// closed indicates the supervisor has been shut down
	closed atomic.Bool
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithGracePeriod sets how long a process gets to exit after SIGTERM.
func WithGracePeriod(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.gracePeriod = d
		}
	}
}

// WithKillTimeout sets how long Start waits for a replaced process to be
// reaped after SIGKILL.
func WithKillTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.killTimeout = d
		}
	}
}

// WithWaitDelay bounds how long output is drained after the process
// exits while a grandchild still holds its pipes open.
func WithWaitDelay(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.waitDelay = d
		}
	}
}

// WithLogger sets the supervisor logger.
func WithLogger(l *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSupervisor creates a supervisor that publishes terminal.output
// events to pub.
func NewSupervisor(pub event.Publisher, opts ...SupervisorOption) *Supervisor {
	if pub == nil {
		pub = event.Discard
	}
	s := &Supervisor{
		pub:         pub,
		logger:      slog.Default(),
		gracePeriod: DefaultGracePeriod,
		killTimeout: DefaultKillTimeout,
		waitDelay:   DefaultWaitDelay,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start spawns cmd as the supervised process, replacing any live one.
//
// A live predecessor receives SIGTERM and, if it is still running after
// the grace period, SIGKILL. If it survives that as well Start returns
// ErrTerminationTimeout without spawning. The returned handle reports
// whether the predecessor had to be killed.
func (s *Supervisor) Start(ctx context.Context, cmd Command) (*Handle, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: empty program name", ErrInvalidCommand)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}

	forced := false
	if prev := s.Current(); prev != nil {
		var err error
		forced, err = s.replace(ctx, prev)
		if err != nil {
			return nil, err
		}
	}

	s.setState(StateStarting)

	execCmd := exec.Command(cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Env = append(os.Environ(), cmd.Env...)
	execCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	execCmd.WaitDelay = s.waitDelay

	chunks := make(chan chunk, outputBuffer)
	execCmd.Stdout = &streamWriter{kind: event.OutputStdout, ch: chunks}
	execCmd.Stderr = &streamWriter{kind: event.OutputStderr, ch: chunks}

	if err := execCmd.Start(); err != nil {
		s.setState(StateStopped)
		s.logger.Error("process spawn failed", "command", cmd.String(), "dir", cmd.Dir, "error", err)
		return nil, fmt.Errorf("%w %q: %v", ErrSpawn, cmd.Name, err)
	}

	h := newHandle(uuid.NewString(), cmd, execCmd.Process.Pid, forced)

	s.mu.Lock()
	s.current = h
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("process started",
		"id", h.id,
		"pid", h.pid,
		"command", cmd.String(),
		"dir", cmd.Dir,
	)

	go s.supervise(h, execCmd, chunks)

	return h, nil
}

// Stop sends SIGTERM to the supervised process group and waits up to the
// grace period for it to exit. It never sends SIGKILL.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	h := s.Current()
	if h == nil {
		return ErrNoProcess
	}

	if !s.setStateFor(h, StateExiting) {
		// Exited between Current and here.
		return nil
	}
	if err := signalGroup(h.pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", h.pid, err)
	}
	s.logger.Info("process stop requested", "id", h.id, "pid", h.pid)

	if !waitDone(ctx, h, s.gracePeriod) {
		s.logger.Warn("process still running after SIGTERM", "id", h.id, "pid", h.pid, "grace", s.gracePeriod)
		return ErrStillRunning
	}
	return nil
}

// Current returns the handle of the supervised process, or nil.
func (s *Supervisor) Current() *Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// State returns the supervisor state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Shutdown terminates the supervised process for application exit:
// SIGTERM, up to timeout, then SIGKILL. Further Starts are refused.
// Shutdown is idempotent.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	h := s.Current()
	if h == nil || !s.setStateFor(h, StateExiting) {
		return
	}

	_ = signalGroup(h.pid, unix.SIGTERM)
	if waitDone(context.Background(), h, timeout) {
		return
	}

	s.logger.Warn("process ignored SIGTERM on shutdown, killing", "id", h.id, "pid", h.pid)
	_ = signalGroup(h.pid, unix.SIGKILL)
	waitDone(context.Background(), h, s.killTimeout)
}

// IsShuttingDown returns true if Shutdown was called.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}

// replace terminates prev so a new process can take its place. It reports
// whether SIGKILL was needed.
func (s *Supervisor) replace(ctx context.Context, prev *Handle) (bool, error) {
	if !s.setStateFor(prev, StateExiting) {
		return false, nil
	}
	_ = signalGroup(prev.pid, unix.SIGTERM)
	if waitDone(ctx, prev, s.gracePeriod) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		s.setStateFor(prev, StateRunning)
		return false, err
	}

	s.logger.Warn("replaced process ignored SIGTERM, killing",
		"id", prev.id,
		"pid", prev.pid,
		"grace", s.gracePeriod,
	)
	_ = signalGroup(prev.pid, unix.SIGKILL)
	if waitDone(ctx, prev, s.killTimeout) {
		return true, nil
	}

	s.logger.Error("replaced process survived SIGKILL", "id", prev.id, "pid", prev.pid)
	return true, fmt.Errorf("%w: pid %d", ErrTerminationTimeout, prev.pid)
}

// supervise publishes the output of one lifetime, then its close event,
// and finally releases the slot.
func (s *Supervisor) supervise(h *Handle, cmd *exec.Cmd, chunks chan chunk) {
	waitErr := make(chan error, 1)
	go func() {
		// Wait returns after both stream copiers finished, so no writer
		// can send on chunks once it is closed.
		err := cmd.Wait()
		close(chunks)
		waitErr <- err
	}()

	for c := range chunks {
		s.pub.Publish(event.TopicTerminalOutput, event.TerminalOutput{
			Kind:      c.kind,
			Text:      string(c.data),
			PID:       h.pid,
			Seq:       h.nextSeq(),
			Timestamp: c.at,
		})
	}

	err := <-waitErr
	if errors.Is(err, exec.ErrWaitDelay) {
		s.logger.Warn("process output still open after exit", "id", h.id, "pid", h.pid)
	}
	summary := h.recordExit(cmd, err)

	s.logger.Info("process exited",
		"id", h.id,
		"pid", h.pid,
		"code", h.ExitCode(),
		"signal", h.Signal(),
		"runtime", time.Since(h.started),
	)

	s.pub.Publish(event.TopicTerminalOutput, event.TerminalOutput{
		Kind:      event.OutputClose,
		Text:      summary,
		ExitCode:  h.ExitCode(),
		Signal:    h.Signal(),
		PID:       h.pid,
		Seq:       h.nextSeq(),
		Timestamp: time.Now(),
	})

	s.mu.Lock()
	if s.current == h {
		s.current = nil
		s.state = StateStopped
	}
	s.mu.Unlock()

	close(h.done)
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// setStateFor sets st only while h still holds the slot. Once supervise
// has released h the state stays Stopped.
func (s *Supervisor) setStateFor(h *Handle, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != h {
		return false
	}
	s.state = st
	return true
}

// waitDone waits for h to finish, for at most d or until ctx is done.
func waitDone(ctx context.Context, h *Handle, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// signalGroup signals the process group led by pid. A group that no
// longer exists is not an error.
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// chunk is one read from a child stream.
type chunk struct {
	kind event.OutputKind
	data []byte
	at   time.Time
}

// streamWriter forwards child output to the publisher goroutine.
type streamWriter struct {
	kind event.OutputKind
	ch   chan<- chunk
}

// Write implements io.Writer. p is copied because exec reuses its buffer.
func (w *streamWriter) Write(p []byte) (int, error) {
	data := make([]byte, len(p))
	copy(data, p)
	w.ch <- chunk{kind: w.kind, data: data, at: time.Now()}
	return len(p), nil
}
