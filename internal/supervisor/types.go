// Package supervisor holds the process table, owns the channels bound
// to each managed process, and drives the lifecycle state machine and
// event loop described by the fleet manifest.
package supervisor

import (
	"errors"
	"time"

	"github.com/kelvinlab/fleetsup/internal/channel"
)

// State is a process's position in the lifecycle state machine.
type State int

const (
	Created State = iota
	Starting
	Running
	Stopping
	Stopped
	// Crashed also covers the Zombie recovery state (a detected but
	// unreaped POSIX child) — folded in per the design notes, since
	// the platform adapter always reaps on exit.
	Crashed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Crashed:
		return "crashed"
	default:
		return "unknown"
	}
}

var (
	ErrDuplicateName        = errors.New("supervisor: duplicate process name")
	ErrUnknownDependency    = errors.New("supervisor: unknown dependency")
	ErrUnknownProcess       = errors.New("supervisor: unknown process")
	ErrDependencyNotReady   = errors.New("supervisor: dependency not ready")
	ErrInvalidStateForStart = errors.New("supervisor: process not in a startable state")
	ErrInvalidStateForStop  = errors.New("supervisor: process not in a stoppable state")
	ErrNotRunning           = errors.New("supervisor: supervisor is not running")
)

// ProcessConfig is immutable once passed to RegisterProcess.
type ProcessConfig struct {
	Name           string
	Kind           string
	ExecutablePath string
	Args           []string
	Env            map[string]string
	Transports     []channel.Kind

	AutoRestart        bool
	MaxRestartAttempts int
	RestartDelay       time.Duration

	HeartbeatEnabled  bool
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	DependsOn []string

	// LogDir, when non-empty, additionally mirrors this process's
	// stderr tail and crash diagnostics to <LogDir>/<name>.log.
	LogDir string
	// Group tags this process for StartGroup/StopGroup bulk operations.
	Group string
	// ReadyTimeout, when non-zero, makes start_process wait for the
	// first Heartbeat or a Response{command:"ready"} before returning,
	// bounded by this duration.
	ReadyTimeout time.Duration

	// FileIPCBase is the base path for a FileIPC transport bound to
	// this process, required when Transports includes KindFileIPC.
	FileIPCBase string
	// FileIPCPollInterval overrides FileIPC's default poll interval.
	FileIPCPollInterval time.Duration
}

// ProcessRecord is the mutable per-process row in the process table.
type ProcessRecord struct {
	Config ProcessConfig

	State           State
	PID             int
	StartedAt       time.Time
	LastHeartbeatAt time.Time
	RestartCount    int
	LastError       string
}

// Snapshot is a read-only copy of a ProcessRecord for external callers.
type Snapshot struct {
	Name            string
	State           State
	PID             int
	StartedAt       time.Time
	LastHeartbeatAt time.Time
	RestartCount    int
	LastError       string
}
