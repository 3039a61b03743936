package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kelvinlab/fleetsup/internal/channel"
	"github.com/kelvinlab/fleetsup/internal/envelope"
	"github.com/kelvinlab/fleetsup/internal/platform"
)

// restartGraceDelay is the fixed pause restart_process inserts between
// its graceful stop and the subsequent start, per §8's round-trip
// property (start; stop; start returns to Running with restart_count
// unchanged — this delay belongs to the explicit restart path only).
const restartGraceDelay = 500 * time.Millisecond

// StartProcess transitions name from {Created, Stopped, Crashed} to
// Running. It blocks briefly checking that every dependency is already
// Running; it does not wait for a dependency to become ready — that
// orchestration belongs to StartAll.
func (s *Supervisor) StartProcess(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	if e.record.State != Created && e.record.State != Stopped && e.record.State != Crashed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrInvalidStateForStart, name, e.record.State)
	}
	for _, dep := range e.record.Config.DependsOn {
		depEntry, ok := s.entries[dep]
		if !ok || depEntry.record.State != Running {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s depends on %s", ErrDependencyNotReady, name, dep)
		}
	}
	e.record.State = Starting
	cfg := e.record.Config
	s.mu.Unlock()
	s.notifyStateChange(name, Starting)

	handle, stdioChan, err := s.spawn(cfg, e)
	if err != nil {
		s.mu.Lock()
		e.record.State = Crashed
		e.record.LastError = err.Error()
		s.mu.Unlock()
		s.notifyStateChange(name, Crashed)
		s.invokeCrashHandler(name)
		return err
	}

	now := time.Now()
	s.mu.Lock()
	e.handle = handle
	e.stdioChannel = stdioChan
	e.recomputeChannels()
	e.record.State = Running
	e.record.PID = handle.PID()
	e.record.StartedAt = now
	e.record.LastHeartbeatAt = now
	s.mu.Unlock()
	s.notifyStateChange(name, Running)

	if cfg.ReadyTimeout > 0 {
		s.awaitReady(name, e, cfg.ReadyTimeout)
	}

	s.startMonitor(name, e)
	s.startChannelPumps(name, e)
	return nil
}

// spawn launches cfg's executable and, if a Stdio transport is
// configured, binds and initializes its pipes to the new child. It
// returns the process handle and the (possibly nil) Stdio channel;
// FileIPC channels are not touched here — they were built once at
// registration and outlive any single spawn.
func (s *Supervisor) spawn(cfg ProcessConfig, e *entry) (platform.Handle, channel.Channel, error) {
	var sink *logSink
	if cfg.LogDir != "" {
		var err error
		sink, err = newLogSink(cfg.LogDir, cfg.Name)
		if err != nil {
			return nil, nil, err
		}
	}
	e.logFile = sink

	envAdditions := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		envAdditions = append(envAdditions, k+"="+v)
	}

	usesStdio := false
	for _, t := range cfg.Transports {
		if t == channel.KindStdio {
			usesStdio = true
		}
	}

	if !usesStdio {
		handle, err := s.adapter.Spawn(platform.SpawnConfig{
			Path: cfg.ExecutablePath,
			Args: cfg.Args,
			Env:  envAdditions,
		})
		if err != nil {
			return nil, nil, err
		}
		return handle, nil, nil
	}

	// cmd owns the Stdio pipes wired in by NewStdio (they must exist
	// before Start), so it is started directly rather than through
	// adapter.Spawn, which would build its own *exec.Cmd from a
	// SpawnConfig. PrepareCmd still applies the OS-specific
	// process-group setup, and Adopt wires the same reap-on-exit
	// bookkeeping Spawn uses, so PollExit/Terminate behave identically
	// either way.
	cmd := exec.Command(cfg.ExecutablePath, cfg.Args...)
	sc, err := channel.NewStdio(cmd)
	if err != nil {
		return nil, nil, err
	}
	if sink != nil {
		sc.SetStderrSink(sink)
	}

	cmd.Env = append(os.Environ(), envAdditions...)
	s.adapter.PrepareCmd(cmd)
	if startErr := cmd.Start(); startErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", platform.ErrSpawnFailed, startErr)
	}
	handle, err := s.adapter.Adopt(cmd)
	if err != nil {
		return nil, nil, err
	}
	if initErr := sc.Initialize(); initErr != nil {
		return nil, nil, initErr
	}
	return handle, sc, nil
}

// awaitReady blocks up to timeout for the first Heartbeat envelope or
// a Response{command:"ready"} on any of e's channels, then returns
// regardless — a timeout here does not fail StartProcess, it only
// foregoes the readiness guarantee.
func (s *Supervisor) awaitReady(name string, e *entry, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ch := range e.channels {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return
			}
			env, ok, err := ch.Receive(50 * time.Millisecond)
			if err != nil || !ok {
				continue
			}
			if env.Kind == envelope.Heartbeat || (env.Kind == envelope.Response && env.Command == "ready") {
				s.touchHeartbeat(name, time.Now())
				return
			}
			s.dispatchEnvelope(name, env)
		}
	}
}

// StopProcess transitions name from {Running, Starting} to Stopped. It
// does not clear restart_count.
func (s *Supervisor) StopProcess(name string, force bool) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	if e.record.State != Running && e.record.State != Starting {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrInvalidStateForStop, name, e.record.State)
	}
	e.record.State = Stopping
	handle := e.handle
	stdioChan := e.stdioChannel
	s.mu.Unlock()
	s.notifyStateChange(name, Stopping)

	s.stopMonitor(e)

	if handle != nil {
		if err := s.adapter.Terminate(handle, force); err != nil {
			s.log.Warn().Str("process", name).Err(err).Msg("terminate returned an error, proceeding to Stopped")
		}
	}
	// Only the Stdio channel is closed here: its pipes die with the
	// child. FileIPC channels live from registration to Shutdown, per
	// the channel table's documented lifetime, so they stay open and
	// usable (e.g. by SendMessage) across a stop/restart cycle.
	if stdioChan != nil {
		_ = stdioChan.Close()
	}
	if e.logFile != nil {
		_ = e.logFile.Close()
	}

	s.mu.Lock()
	e.record.State = Stopped
	e.handle = nil
	e.stdioChannel = nil
	e.recomputeChannels()
	e.logFile = nil
	s.mu.Unlock()
	s.notifyStateChange(name, Stopped)
	return nil
}

// RestartProcess stops (gracefully), waits restartGraceDelay, starts
// again, and increments restart_count.
func (s *Supervisor) RestartProcess(name string) error {
	if err := s.StopProcess(name, false); err != nil {
		return err
	}
	time.Sleep(restartGraceDelay)

	s.mu.Lock()
	e, ok := s.entries[name]
	if ok {
		e.record.RestartCount++
	}
	s.mu.Unlock()
	s.notifyRestart(name)

	return s.StartProcess(name)
}

// StartAll repeatedly scans the table, starting every Created process
// whose dependencies are all Running, until a full pass makes no
// progress.
func (s *Supervisor) StartAll() {
	for {
		progressed := false
		for _, name := range s.namesInState(Created) {
			if err := s.StartProcess(name); err != nil {
				s.log.Warn().Str("process", name).Err(err).Msg("start_all: start_process failed")
				continue
			}
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

func (s *Supervisor) namesInState(state State) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, name := range s.order {
		if e, ok := s.entries[name]; ok && e.record.State == state {
			out = append(out, name)
		}
	}
	return out
}

// StopAll stops every Running process in reverse dependency order, so
// a process is stopped before the processes it depends on.
func (s *Supervisor) StopAll() {
	for _, name := range s.reverseDependencyOrder() {
		s.mu.RLock()
		e, ok := s.entries[name]
		running := ok && e.record.State == Running
		s.mu.RUnlock()
		if !running {
			continue
		}
		if err := s.StopProcess(name, false); err != nil {
			s.log.Warn().Str("process", name).Err(err).Msg("stop_all: stop_process failed")
		}
	}
}

// reverseDependencyOrder returns every registered name ordered so that
// a process never precedes anything in its own depends_on list — i.e.
// dependents before dependencies, approximating reverse topological
// order.
func (s *Supervisor) reverseDependencyOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	depth := make(map[string]int)
	var depthOf func(name string, seen map[string]bool) int
	depthOf = func(name string, seen map[string]bool) int {
		if d, ok := depth[name]; ok {
			return d
		}
		e, ok := s.entries[name]
		if !ok || seen[name] {
			return 0
		}
		seen[name] = true
		max := 0
		for _, dep := range e.record.Config.DependsOn {
			if d := depthOf(dep, seen); d+1 > max {
				max = d + 1
			}
		}
		depth[name] = max
		return max
	}
	for _, name := range s.order {
		depthOf(name, map[string]bool{})
	}

	names := append([]string(nil), s.order...)
	// Stable sort by descending dependency depth: a process with a deeper
	// chain of dependencies beneath it stops earlier, so every dependent
	// stops before the processes it relies on.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && depth[names[j-1]] < depth[names[j]]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// StartGroup starts every Created process tagged with group.
func (s *Supervisor) StartGroup(group string) {
	for _, name := range s.namesInGroup(group, Created) {
		if err := s.StartProcess(name); err != nil {
			s.log.Warn().Str("process", name).Str("group", group).Err(err).Msg("start_group: start_process failed")
		}
	}
}

// StopGroup stops every Running process tagged with group.
func (s *Supervisor) StopGroup(group string, force bool) {
	for _, name := range s.namesInGroup(group, Running) {
		if err := s.StopProcess(name, force); err != nil {
			s.log.Warn().Str("process", name).Str("group", group).Err(err).Msg("stop_group: stop_process failed")
		}
	}
}

func (s *Supervisor) namesInGroup(group string, state State) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, name := range s.order {
		e, ok := s.entries[name]
		if ok && e.record.Config.Group == group && e.record.State == state {
			out = append(out, name)
		}
	}
	return out
}
