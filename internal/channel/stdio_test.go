package channel

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/kelvinlab/fleetsup/internal/envelope"
)

func catCommand(t *testing.T) *exec.Cmd {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stdio echo test requires a POSIX cat binary")
	}
	return exec.Command("cat")
}

func TestStdioSendReceiveEchoRoundTrip(t *testing.T) {
	cmd := catCommand(t)
	stdio, err := NewStdio(cmd)
	if err != nil {
		t.Fatalf("NewStdio failed: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() {
		_ = stdio.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	if err := stdio.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	env := envelope.Envelope{Kind: envelope.Heartbeat, Source: "worker", Target: "sup", Command: "beat", Timestamp: 7, ID: "m1"}
	if err := stdio.Send(env); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	got, ok, err := stdio.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected echoed envelope, got timeout")
	}
	if got.Command != env.Command || got.ID != env.ID {
		t.Fatalf("unexpected echoed envelope: %+v", got)
	}
}

func TestStdioReceiveTimesOutWithoutError(t *testing.T) {
	cmd := catCommand(t)
	stdio, err := NewStdio(cmd)
	if err != nil {
		t.Fatalf("NewStdio failed: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() {
		_ = stdio.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()
	if err := stdio.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	_, ok, err := stdio.Receive(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("expected no error on timeout, got %v", err)
	}
	if ok {
		t.Fatalf("expected timeout, got an envelope")
	}
}

func TestStdioCloseRejectsFurtherSends(t *testing.T) {
	cmd := catCommand(t)
	stdio, err := NewStdio(cmd)
	if err != nil {
		t.Fatalf("NewStdio failed: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = stdio.Initialize()

	if err := stdio.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := stdio.Send(envelope.Envelope{Source: "a", Target: "b", Command: "c"}); err != ErrClosed {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}
