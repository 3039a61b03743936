package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kelvinlab/fleetsup/internal/channel"
	"github.com/kelvinlab/fleetsup/internal/envelope"
	"github.com/kelvinlab/fleetsup/internal/platform"
	"github.com/kelvinlab/fleetsup/internal/router"
)

// entry is the internal bookkeeping unit: the public ProcessRecord plus
// the live handle and channels the record doesn't expose.
type entry struct {
	record ProcessRecord
	handle platform.Handle

	// fileChannels are the FileIPC-backed channels built and
	// initialized once at registration; they live from registration
	// to Shutdown, independent of the process's own run/stop cycles.
	fileChannels []channel.Channel
	// stdioChannel is rebuilt on every spawn (its pipes die with the
	// child) and cleared on stop.
	stdioChannel channel.Channel
	// channels is the current send/receive set — fileChannels plus
	// stdioChannel when the process is Running — recomputed on every
	// start/stop transition.
	channels []channel.Channel

	monitorCancel chan struct{}
	monitorDone   chan struct{}

	logFile *logSink
}

func (e *entry) recomputeChannels() {
	e.channels = append(append([]channel.Channel(nil), e.fileChannels...), nonNilChannel(e.stdioChannel)...)
}

func nonNilChannel(ch channel.Channel) []channel.Channel {
	if ch == nil {
		return nil
	}
	return []channel.Channel{ch}
}

// Supervisor holds the process table, owns every process's channels,
// and drives the lifecycle state machine and event loop.
type Supervisor struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // registration order, for deterministic snapshots

	router  *router.Router
	adapter platform.Adapter
	log     zerolog.Logger

	runningMu    sync.Mutex
	running      bool
	shutdownDone bool
	stopCh       chan struct{}

	onStateChange  func(name string, state State)
	onRestart      func(name string)
	onChannelError func(name, transport string)
}

// SetObservers wires optional callbacks invoked on every state
// transition, every restart, and every channel send/receive failure,
// respectively. Any may be nil. This indirection lets
// internal/introspect record Prometheus metrics without the supervisor
// package importing it.
func (s *Supervisor) SetObservers(onStateChange func(name string, state State), onRestart func(name string), onChannelError func(name, transport string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = onStateChange
	s.onRestart = onRestart
	s.onChannelError = onChannelError
}

func (s *Supervisor) notifyStateChange(name string, state State) {
	s.mu.RLock()
	fn := s.onStateChange
	s.mu.RUnlock()
	if fn != nil {
		fn(name, state)
	}
}

func (s *Supervisor) notifyRestart(name string) {
	s.mu.RLock()
	fn := s.onRestart
	s.mu.RUnlock()
	if fn != nil {
		fn(name)
	}
}

func (s *Supervisor) notifyChannelError(name, transport string) {
	s.mu.RLock()
	fn := s.onChannelError
	s.mu.RUnlock()
	if fn != nil {
		fn(name, transport)
	}
}

// New constructs an empty Supervisor. adapter selects the platform
// primitives; pass platform.New() in production, a fake in tests.
func New(adapter platform.Adapter, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		entries: make(map[string]*entry),
		router:  router.New(),
		adapter: adapter,
		log:     log,
	}
}

// RegisterProcess adds cfg to the table in state Created. It rejects a
// duplicate name and any depends_on entry that does not resolve to an
// already-registered process, leaving the table unchanged on failure.
func (s *Supervisor) RegisterProcess(cfg ProcessConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[cfg.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, cfg.Name)
	}
	for _, dep := range cfg.DependsOn {
		if _, ok := s.entries[dep]; !ok {
			return fmt.Errorf("%w: %s depends on unregistered %s", ErrUnknownDependency, cfg.Name, dep)
		}
	}

	fileChans, err := s.buildFileChannels(cfg)
	if err != nil {
		return err
	}

	e := &entry{
		record: ProcessRecord{
			Config: cfg,
			State:  Created,
		},
		fileChannels: fileChans,
	}
	e.recomputeChannels()
	s.entries[cfg.Name] = e
	s.order = append(s.order, cfg.Name)
	return nil
}

// buildFileChannels constructs and initializes the FileIPC channels
// named by cfg.Transports. These live from registration to Shutdown.
// A Stdio transport, if also listed, is validated here but built lazily
// at spawn time since its pipes require the child's *exec.Cmd.
func (s *Supervisor) buildFileChannels(cfg ProcessConfig) ([]channel.Channel, error) {
	var chans []channel.Channel
	for _, kind := range cfg.Transports {
		switch kind {
		case channel.KindFileIPC:
			if cfg.FileIPCBase == "" {
				return nil, fmt.Errorf("supervisor: %s: FileIPCBase required for file_ipc transport", cfg.Name)
			}
			fc := channel.NewFileIPC(cfg.FileIPCBase, cfg.FileIPCPollInterval)
			if err := fc.Initialize(); err != nil {
				return nil, err
			}
			chans = append(chans, fc)
		case channel.KindStdio:
			// built lazily in spawn()
		default:
			return nil, fmt.Errorf("supervisor: %s: unsupported transport %q", cfg.Name, kind)
		}
	}
	return chans, nil
}

// RegisterMessageHandler delegates to the Router.
func (s *Supervisor) RegisterMessageHandler(command string, fn router.HandlerFunc) {
	s.router.Register(command, fn)
}

// GetProcessState returns the current state of name, or an error if it
// is not registered.
func (s *Supervisor) GetProcessState(name string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	return e.record.State, nil
}

// GetAllProcesses returns a consistent snapshot of every registered
// process, in registration order.
func (s *Supervisor) GetAllProcesses() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.order))
	for _, name := range s.order {
		e, ok := s.entries[name]
		if !ok {
			continue
		}
		out = append(out, snapshotOf(name, e.record))
	}
	return out
}

func snapshotOf(name string, r ProcessRecord) Snapshot {
	return Snapshot{
		Name:            name,
		State:           r.State,
		PID:             r.PID,
		StartedAt:       r.StartedAt,
		LastHeartbeatAt: r.LastHeartbeatAt,
		RestartCount:    r.RestartCount,
		LastError:       r.LastError,
	}
}

// touchHeartbeat updates last_heartbeat_at for name to now. It is
// called from the channel poll loop whenever a Heartbeat envelope
// arrives, before the envelope is handed to the router.
func (s *Supervisor) touchHeartbeat(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		e.record.LastHeartbeatAt = now
	}
}

// dispatchEnvelope validates env, updates heartbeat bookkeeping if it
// is a Heartbeat, and hands it to the router. Validation failures are
// logged and dropped, never propagated.
func (s *Supervisor) dispatchEnvelope(processName string, env envelope.Envelope) {
	if err := envelope.Validate(env); err != nil {
		s.log.Warn().Str("process", processName).Err(err).Msg("envelope failed validation, dropping")
		return
	}
	if env.Kind == envelope.Heartbeat {
		s.touchHeartbeat(processName, time.Now())
	}
	s.router.Dispatch(env, func(command string, err error) {
		s.log.Error().Str("process", processName).Str("command", command).Err(err).Msg("handler failed")
	})
}
