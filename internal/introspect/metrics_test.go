package introspect

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kelvinlab/fleetsup/internal/supervisor"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordProcessState("worker-a", supervisor.Running.String())
	RecordProcessState("worker-a", supervisor.Crashed.String())
	RecordRestart("worker-a")
	RecordChannelError("worker-a", "stdio")
}

func TestObserveWiresSupervisorCallbacksWithoutPanicking(t *testing.T) {
	s := supervisor.New(nil, zerolog.New(io.Discard))
	Observe(s)

	if err := s.RegisterProcess(supervisor.ProcessConfig{Name: "x", ExecutablePath: "/bin/true"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
}
