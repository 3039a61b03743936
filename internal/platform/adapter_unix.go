//go:build !windows

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func newAdapter() Adapter { return &unixAdapter{} }

type unixAdapter struct{}

type unixHandle struct {
	cmd *exec.Cmd

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	status ExitStatus
}

func (h *unixHandle) PID() int { return h.cmd.Process.Pid }

// Spawn launches path under os/exec with additive environment and
// wires Stdin/Stdout/Stderr through when the caller supplied them. A
// background goroutine calls cmd.Wait so the child is always reaped,
// even if nobody calls PollExit.
func (a *unixAdapter) Spawn(cfg SpawnConfig) (Handle, error) {
	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stdin = cfg.Stdin
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	// New process group so terminate can signal the whole group
	// without also catching the supervisor itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	return newUnixHandle(cmd), nil
}

// PrepareCmd sets up a new process group so a later Terminate can
// signal the whole group without also catching the supervisor itself.
func (a *unixAdapter) PrepareCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Adopt wires the reap-on-exit goroutine onto a *exec.Cmd the caller
// has already started (the Stdio spawn path).
func (a *unixAdapter) Adopt(cmd *exec.Cmd) (Handle, error) {
	return newUnixHandle(cmd), nil
}

func newUnixHandle(cmd *exec.Cmd) *unixHandle {
	h := &unixHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		h.mu.Lock()
		h.status = ExitStatus{Exited: true, ExitCode: code}
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

func (a *unixAdapter) PollExit(handle Handle) (ExitStatus, error) {
	h, ok := handle.(*unixHandle)
	if !ok {
		return ExitStatus{}, fmt.Errorf("%w: wrong handle type", ErrAdapter)
	}
	select {
	case <-h.done:
		h.mu.Lock()
		status := h.status
		closed := h.closed
		h.closed = true
		h.mu.Unlock()
		if closed {
			return ExitStatus{}, ErrHandleClosed
		}
		return status, nil
	default:
		return ExitStatus{Running: true}, nil
	}
}

// Terminate requests SIGTERM (force=false) or sends SIGKILL directly
// (force=true) to the child's process group, waiting up to GraceWindow
// for the reaper goroutine to observe exit before escalating.
func (a *unixAdapter) Terminate(handle Handle, force bool) error {
	h, ok := handle.(*unixHandle)
	if !ok {
		return fmt.Errorf("%w: wrong handle type", ErrAdapter)
	}

	h.mu.Lock()
	alreadyClosed := h.closed
	h.mu.Unlock()
	if alreadyClosed {
		return ErrHandleClosed
	}

	pgid := -h.cmd.Process.Pid

	if force {
		_ = unix.Kill(pgid, unix.SIGKILL)
		<-h.done
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		return nil
	}

	if err := unix.Kill(pgid, unix.SIGTERM); err != nil {
		return fmt.Errorf("%w: sigterm: %v", ErrAdapter, err)
	}

	select {
	case <-h.done:
	case <-time.After(GraceWindow):
		_ = unix.Kill(pgid, unix.SIGKILL)
		<-h.done
	}

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
