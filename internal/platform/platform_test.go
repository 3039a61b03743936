package platform

import (
	"runtime"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix-specific adapter behavior")
	}
}

func TestSpawnPollExitObservesGracefulExit(t *testing.T) {
	skipOnWindows(t)
	a := New()

	h, err := a.Spawn(SpawnConfig{Path: "/bin/sh", Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := a.PollExit(h)
		if err != nil {
			t.Fatalf("poll_exit failed: %v", err)
		}
		if status.Exited {
			if status.ExitCode != 0 {
				t.Fatalf("expected exit code 0, got %d", status.ExitCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("process did not exit in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSpawnPollExitObservesNonZeroExitCode(t *testing.T) {
	skipOnWindows(t)
	a := New()

	h, err := a.Spawn(SpawnConfig{Path: "/bin/sh", Args: []string{"-c", "exit 7"}})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := a.PollExit(h)
		if err != nil {
			t.Fatalf("poll_exit failed: %v", err)
		}
		if status.Exited {
			if status.ExitCode != 7 {
				t.Fatalf("expected exit code 7, got %d", status.ExitCode)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("process did not exit in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTerminateGracefulWaitsThenReturns(t *testing.T) {
	skipOnWindows(t)
	a := New()

	h, err := a.Spawn(SpawnConfig{Path: "/bin/sh", Args: []string{"-c", "trap '' TERM; while true; do sleep 1; done"}})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	start := time.Now()
	if err := a.Terminate(h, false); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < GraceWindow {
		t.Fatalf("expected terminate to honor the grace window, took only %v", elapsed)
	}

	status, err := a.PollExit(h)
	if err == nil && status.Exited {
		t.Fatalf("expected handle to report closed after terminate reaped it, got status=%+v", status)
	}
}

func TestTerminateForceKillsImmediately(t *testing.T) {
	skipOnWindows(t)
	a := New()

	h, err := a.Spawn(SpawnConfig{Path: "/bin/sh", Args: []string{"-c", "sleep 30"}})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	start := time.Now()
	if err := a.Terminate(h, true); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > GraceWindow {
		t.Fatalf("expected force kill to be immediate, took %v", elapsed)
	}
}

func TestSpawnEnvIsAdditiveNotReplacing(t *testing.T) {
	skipOnWindows(t)
	a := New()

	h, err := a.Spawn(SpawnConfig{
		Path: "/bin/sh",
		Args: []string{"-c", `[ -n "$HOME" ] && [ "$FLEETSUP_TEST_VAR" = "hello" ]`},
		Env:  []string{"FLEETSUP_TEST_VAR=hello"},
	})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := a.PollExit(h)
		if err != nil {
			t.Fatalf("poll_exit failed: %v", err)
		}
		if status.Exited {
			if status.ExitCode != 0 {
				t.Fatalf("expected both parent env (HOME) and additive env (FLEETSUP_TEST_VAR) visible, exit code %d", status.ExitCode)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("process did not exit in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
