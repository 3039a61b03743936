//go:build windows

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

func newAdapter() Adapter { return &windowsAdapter{} }

type windowsAdapter struct{}

type windowsHandle struct {
	cmd *exec.Cmd

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	status ExitStatus
}

func (h *windowsHandle) PID() int { return h.cmd.Process.Pid }

// Spawn launches path with CREATE_NEW_PROCESS_GROUP so a later
// graceful terminate can deliver CTRL_BREAK_EVENT to the child without
// also signaling the supervisor's own console process group.
func (a *windowsAdapter) Spawn(cfg SpawnConfig) (Handle, error) {
	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stdin = cfg.Stdin
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	cmd.SysProcAttr = &windows.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	return newWindowsHandle(cmd), nil
}

// PrepareCmd puts cmd in its own process group so a later graceful
// Terminate can target it with CTRL_BREAK_EVENT without also signaling
// the supervisor's own console group.
func (a *windowsAdapter) PrepareCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &windows.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// Adopt wires the reap-on-exit goroutine onto a *exec.Cmd the caller
// has already started (the Stdio spawn path).
func (a *windowsAdapter) Adopt(cmd *exec.Cmd) (Handle, error) {
	return newWindowsHandle(cmd), nil
}

func newWindowsHandle(cmd *exec.Cmd) *windowsHandle {
	h := &windowsHandle{cmd: cmd, done: make(chan struct{})}
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

func (a *windowsAdapter) PollExit(handle Handle) (ExitStatus, error) {
	h, ok := handle.(*windowsHandle)
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

// Terminate requests a graceful shutdown via CTRL_BREAK_EVENT
// (force=false), waiting up to GraceWindow before escalating to
// TerminateProcess. force=true kills immediately.
func (a *windowsAdapter) Terminate(handle Handle, force bool) error {
	h, ok := handle.(*windowsHandle)
	if !ok {
		return fmt.Errorf("%w: wrong handle type", ErrAdapter)
	}

	h.mu.Lock()
	alreadyClosed := h.closed
	h.mu.Unlock()
	if alreadyClosed {
		return ErrHandleClosed
	}

	if force {
		_ = h.cmd.Process.Kill()
		<-h.done
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		return nil
	}

	pid := uint32(h.cmd.Process.Pid)
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, pid); err != nil {
		// Some child processes (no console, no handler) never react
		// to CTRL_BREAK_EVENT; fall straight through to the grace
		// window and force-kill on timeout below rather than erroring.
		_ = err
	}

	select {
	case <-h.done:
	case <-time.After(GraceWindow):
		_ = h.cmd.Process.Kill()
		<-h.done
	}

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
