package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/ralphmgr/internal/app/logging"
	"github.com/dshills/ralphmgr/internal/event"
	"github.com/dshills/ralphmgr/internal/integration/git"
	"github.com/dshills/ralphmgr/internal/integration/process"
	"github.com/dshills/ralphmgr/internal/project/watcher"
	"github.com/dshills/ralphmgr/internal/project/workspace"
)

// Defaults for CoordinatorConfig.
const (
	DefaultShell           = "bash"
	DefaultShutdownTimeout = 5 * time.Second
)

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// Bus receives every event of the session.
	// Optional - if nil, the coordinator creates and owns one.
	Bus *event.Bus

	// Logger is the parent logger for all components.
	// Optional - defaults to slog.Default().
	Logger *slog.Logger

	// Layout names the loop artifacts inside a workspace.
	Layout workspace.Layout

	// Shell interprets the loop script. Default is bash.
	Shell string

	// Coalesce is the watcher reconciliation tick.
	Coalesce time.Duration

	// GracePeriod is how long a process gets to exit after SIGTERM.
	GracePeriod time.Duration

	// KillTimeout bounds the wait after SIGKILL when replacing a process.
	KillTimeout time.Duration

	// ShutdownTimeout is the grace period used by Close.
	ShutdownTimeout time.Duration

	// GitOptions are applied to the engine of every opened workspace.
	GitOptions []git.Option
}

// Coordinator binds the watcher registry, the process supervisor and the
// git engine to the lifecycle of one open workspace, and is the single
// request/response and event boundary for the presentation layer.
//
// One Coordinator is created per application run. It is safe for
// concurrent use.
type Coordinator struct {
	// mu guards the workspace binding.
	mu  sync.RWMutex
	ws  *workspace.Workspace
	git *git.Engine

	// bufMu guards buffers. It is never held while calling into the
	// registry, whose delivery path takes it.
	bufMu   sync.Mutex
	buffers map[string]*EditBuffer

	bus        *event.Bus
	ownsBus    bool
	registry   *watcher.Registry
	supervisor *process.Supervisor
	fileSub    *event.Subscription

	layout          workspace.Layout
	shell           string
	shutdownTimeout time.Duration
	gitOpts         []git.Option
	logger          *slog.Logger
	gitLogger       *slog.Logger

	closed    atomic.Bool
	startTime time.Time
}

// NewCoordinator creates a coordinator. Call Close when done.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bus, ownsBus := cfg.Bus, false
	if bus == nil {
		bus = event.NewBus(event.WithLogger(logging.WithComponent(logger, "event")))
		ownsBus = true
	}

	registry, err := watcher.NewRegistry(bus,
		watcher.WithCoalesce(cfg.Coalesce),
		watcher.WithLogger(logging.WithComponent(logger, "watcher")),
	)
	if err != nil {
		if ownsBus {
			bus.Close()
		}
		return nil, fmt.Errorf("create watch registry: %w", err)
	}

	supervisor := process.NewSupervisor(bus,
		process.WithGracePeriod(cfg.GracePeriod),
		process.WithKillTimeout(cfg.KillTimeout),
		process.WithLogger(logging.WithComponent(logger, "process")),
	)

	c := &Coordinator{
		buffers:         make(map[string]*EditBuffer),
		bus:             bus,
		ownsBus:         ownsBus,
		registry:        registry,
		supervisor:      supervisor,
		layout:          cfg.Layout,
		shell:           cfg.Shell,
		shutdownTimeout: cfg.ShutdownTimeout,
		gitOpts:         cfg.GitOptions,
		logger:          logging.WithComponent(logger, "session"),
		gitLogger:       logging.WithComponent(logger, "git"),
		startTime:       time.Now(),
	}
	if c.shell == "" {
		c.shell = DefaultShell
	}
	if c.shutdownTimeout <= 0 {
		c.shutdownTimeout = DefaultShutdownTimeout
	}

	c.fileSub, err = event.On(bus, event.TopicFileChanged, c.onFileChanged)
	if err != nil {
		_ = registry.Close()
		if ownsBus {
			bus.Close()
		}
		return nil, fmt.Errorf("subscribe file changes: %w", err)
	}

	return c, nil
}

// Close stops the supervised process, tears down every watcher and
// releases the bus if the coordinator created it.
//
// It is safe to call Close multiple times.
func (c *Coordinator) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.supervisor.Shutdown(c.shutdownTimeout)
	c.fileSub.Unsubscribe()
	err := c.registry.Close()

	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
	}
	c.ws, c.git = nil, nil
	c.mu.Unlock()

	c.bufMu.Lock()
	clear(c.buffers)
	c.bufMu.Unlock()

	if c.ownsBus {
		c.bus.Close()
	}

	c.logger.Info("session closed", "uptime", time.Since(c.startTime))
	return err
}

// IsClosed returns true if the coordinator has been closed.
func (c *Coordinator) IsClosed() bool {
	return c.closed.Load()
}

// Bus returns the session event bus.
func (c *Coordinator) Bus() *event.Bus {
	return c.bus
}

// Supervisor returns the process supervisor.
func (c *Coordinator) Supervisor() *process.Supervisor {
	return c.supervisor
}

// Registry returns the watch registry.
func (c *Coordinator) Registry() *watcher.Registry {
	return c.registry
}

// Subscribe registers handler for topic t on the session bus.
func (c *Coordinator) Subscribe(t event.Topic, handler event.Handler) (*event.Subscription, error) {
	sub, err := c.bus.Subscribe(t, handler)
	return sub, opError("subscribe", err)
}

// OpenWorkspace makes path the active workspace. A workspace that is
// already open is closed first.
func (c *Coordinator) OpenWorkspace(ctx context.Context, path string) (*workspace.Workspace, error) {
	const op = "open_workspace"
	if c.closed.Load() {
		return nil, opError(op, ErrCoordinatorClosed)
	}

	ws, err := workspace.Open(path, c.layout)
	if err != nil {
		return nil, opError(op, err)
	}

	if c.Workspace() != nil {
		if err := c.CloseWorkspace(ctx); err != nil && !errors.Is(err, ErrNoWorkspace) {
			return nil, opError(op, err)
		}
	}

	opts := append([]git.Option{
		git.WithPublisher(c.bus),
		git.WithLogger(c.gitLogger),
	}, c.gitOpts...)
	engine := git.NewEngine(ws.Root(), opts...)

	c.mu.Lock()
	c.ws, c.git = ws, engine
	c.mu.Unlock()

	c.logger.Info("workspace opened", "root", ws.Root())
	c.bus.Publish(event.TopicWorkspaceOpened, event.WorkspaceChanged{Root: ws.Root(), Timestamp: time.Now()})
	return ws, nil
}

// CloseWorkspace tears down every watcher and stops the supervised
// process if it runs inside the workspace.
func (c *Coordinator) CloseWorkspace(ctx context.Context) error {
	const op = "close_workspace"

	c.mu.Lock()
	ws := c.ws
	c.ws, c.git = nil, nil
	c.mu.Unlock()

	if ws == nil {
		return opError(op, ErrNoWorkspace)
	}
	ws.Close()

	c.registry.UnwatchAll()
	c.bufMu.Lock()
	clear(c.buffers)
	c.bufMu.Unlock()

	var stopErr error
	if h := c.supervisor.Current(); h != nil && ws.Contains(h.Command().Dir) {
		if err := c.supervisor.Stop(ctx); err != nil && !errors.Is(err, process.ErrNoProcess) {
			stopErr = err
		}
	}

	c.logger.Info("workspace closed", "root", ws.Root())
	c.bus.Publish(event.TopicWorkspaceClosed, event.WorkspaceChanged{Root: ws.Root(), Timestamp: time.Now()})
	return opError(op, stopErr)
}

// Workspace returns the active workspace, or nil.
func (c *Coordinator) Workspace() *workspace.Workspace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ws
}

// Git returns the engine of the active workspace, or nil.
func (c *Coordinator) Git() *git.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.git
}

// resolve turns path into an absolute path, relative to the workspace
// root when one is open.
func (c *Coordinator) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	if ws := c.Workspace(); ws != nil {
		return ws.Resolve(path), nil
	}
	return filepath.Abs(path)
}

func (c *Coordinator) engine() (*git.Engine, error) {
	if c.closed.Load() {
		return nil, ErrCoordinatorClosed
	}
	e := c.Git()
	if e == nil {
		return nil, ErrNoWorkspace
	}
	return e, nil
}

// Health returns the health of the session components.
func (c *Coordinator) Health() HealthStatus {
	status := HealthStatus{
		Status:     StatusHealthy,
		Uptime:     time.Since(c.startTime),
		Components: make(map[string]ComponentHealth),
	}
	if ws := c.Workspace(); ws != nil {
		status.WorkspaceRoot = ws.Root()
	}

	if c.closed.Load() || c.supervisor.IsShuttingDown() {
		status.Status = StatusUnhealthy
		status.Components["supervisor"] = ComponentHealth{Status: StatusUnhealthy, Message: "shut down"}
	} else {
		status.Components["supervisor"] = ComponentHealth{
			Status:  StatusHealthy,
			Message: c.supervisor.State().String(),
		}
	}

	ws := c.registry.Stats()
	wh := ComponentHealth{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d paths", ws.WatchedPaths),
		Metadata: map[string]any{
			"emitted": ws.Emitted,
			"skipped": ws.Skipped,
			"errors":  ws.Errors,
		},
	}
	if ws.LastError != nil {
		wh.LastError = ws.LastError.Error()
		if status.Status == StatusHealthy {
			wh.Status = StatusDegraded
			status.Status = StatusDegraded
		}
	}
	status.Components["watcher"] = wh

	bs := c.bus.Stats()
	status.Components["event"] = ComponentHealth{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d subscribers", bs.Subscribers),
		Metadata: map[string]any{
			"published": bs.Published,
			"panics":    bs.Panics,
		},
	}
	return status
}

// HealthStatus represents the health of the session.
type HealthStatus struct {
	// Status is the overall health status.
	Status Status

	// Uptime is how long the coordinator has been running.
	Uptime time.Duration

	// Components contains health status for each component.
	Components map[string]ComponentHealth

	// WorkspaceRoot is the active workspace, if any.
	WorkspaceRoot string
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status    Status
	Message   string
	LastError string
	Metadata  map[string]any
}

// Status represents a health status level.
type Status int

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = iota

	// StatusDegraded indicates the component is operational but with issues.
	StatusDegraded

	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
