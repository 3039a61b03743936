package introspect

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kelvinlab/fleetsup/internal/supervisor"
)

// Observe wires sup's state-change, restart, and channel-error hooks to
// the metrics in this package, so every transition is reflected in
// /metrics without internal/supervisor importing internal/introspect.
func Observe(sup *supervisor.Supervisor) {
	RegisterMetrics()
	sup.SetObservers(
		func(name string, state supervisor.State) { RecordProcessState(name, state.String()) },
		RecordRestart,
		RecordChannelError,
	)
}

var (
	registerOnce sync.Once

	processState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fleetsup",
			Name:      "process_state",
			Help:      "1 if the process is currently in this state, 0 otherwise.",
		},
		[]string{"process", "state"},
	)
	restartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetsup",
			Name:      "restarts_total",
			Help:      "Total restarts performed for a process.",
		},
		[]string{"process"},
	)
	channelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetsup",
			Name:      "channel_errors_total",
			Help:      "Total channel send/receive errors, by process and transport.",
		},
		[]string{"process", "transport"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(processState, restartsTotal, channelErrorsTotal)
	})
}

// stateTracker remembers the last state reported per process, so
// RecordProcessState can zero out the previous state's gauge before
// setting the new one — prometheus gauges don't do this automatically
// across a label set.
var stateTracker = struct {
	mu   sync.Mutex
	last map[string]string
}{last: make(map[string]string)}

// RecordProcessState sets the fleetsup_process_state gauge for name's
// current state to 1 and its previous state (if different) to 0.
func RecordProcessState(name, state string) {
	RegisterMetrics()

	stateTracker.mu.Lock()
	prev, ok := stateTracker.last[name]
	stateTracker.last[name] = state
	stateTracker.mu.Unlock()

	if ok && prev != state {
		processState.WithLabelValues(name, prev).Set(0)
	}
	processState.WithLabelValues(name, state).Set(1)
}

// RecordRestart increments the restart counter for name.
func RecordRestart(name string) {
	RegisterMetrics()
	restartsTotal.WithLabelValues(name).Inc()
}

// RecordChannelError increments the channel error counter for
// (name, transport).
func RecordChannelError(name, transport string) {
	RegisterMetrics()
	channelErrorsTotal.WithLabelValues(name, transport).Inc()
}
