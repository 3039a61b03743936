// Package platform provides OS-specific process lifecycle primitives:
// spawn, non-blocking exit polling, and terminate. Two build-tagged
// implementations satisfy the same Adapter interface — adapter_unix.go
// for POSIX (fork/exec, SIGTERM/SIGKILL) and adapter_windows.go for
// Windows (CreateProcess, CTRL_BREAK_EVENT/TerminateProcess).
package platform

import (
	"errors"
	"io"
	"os/exec"
	"time"
)

// GraceWindow is how long terminate(force=false) waits for a graceful
// exit before escalating to a hard kill.
const GraceWindow = 5 * time.Second

var (
	// ErrSpawnFailed wraps any failure launching the child executable.
	ErrSpawnFailed = errors.New("platform: spawn failed")
	// ErrHandleClosed is returned by PollExit/Terminate once a handle
	// has already been reaped/closed.
	ErrHandleClosed = errors.New("platform: handle closed")
	// ErrAdapter wraps adapter-internal failures (signal delivery,
	// wait-syscall errors) distinct from the child's own exit.
	ErrAdapter = errors.New("platform: adapter error")
)

// ExitStatus is the result of PollExit.
type ExitStatus struct {
	Running  bool
	Exited   bool
	ExitCode int
}

// SpawnConfig describes one child process to launch.
type SpawnConfig struct {
	Path string
	Args []string
	// Env holds additions to the parent's environment, "KEY=VALUE"
	// pairs. These are appended to, never replace, os.Environ().
	Env []string
	Dir string

	// Stdin/Stdout/Stderr, when non-nil, are wired into the child in
	// place of the adapter's default (discarded) streams. The Stdio
	// channel transport does not go through Spawn: its child is launched
	// via PrepareCmd and Adopt on a *exec.Cmd that owns its pipes.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Handle is an opaque reference to a spawned child. It is guaranteed
// to be closed exactly once, either by PollExit observing Exited or by
// Terminate.
type Handle interface {
	PID() int
}

// Adapter is the OS-specific process lifecycle surface. Exactly one of
// the build-tagged implementations is compiled into any given binary.
type Adapter interface {
	Spawn(cfg SpawnConfig) (Handle, error)
	PollExit(h Handle) (ExitStatus, error)
	Terminate(h Handle, force bool) error

	// PrepareCmd applies the OS-specific process-group settings
	// (Setpgid on POSIX, CREATE_NEW_PROCESS_GROUP on Windows) to a
	// caller-constructed *exec.Cmd that has not yet been started. Used
	// by the Stdio transport's spawn path, which must own the *exec.Cmd
	// itself (to wire pipes via StdinPipe/StdoutPipe/StderrPipe) rather
	// than letting Spawn build one from a SpawnConfig.
	PrepareCmd(cmd *exec.Cmd)
	// Adopt wraps an already-Start()-ed *exec.Cmd in a Handle, wiring
	// up the same reap-on-exit goroutine Spawn uses internally, so
	// PollExit and Terminate behave identically regardless of which
	// path launched the child.
	Adopt(cmd *exec.Cmd) (Handle, error)
}

// New returns the Adapter for the running GOOS, selected at compile
// time by the adapter_unix.go / adapter_windows.go build tags.
func New() Adapter {
	return newAdapter()
}
