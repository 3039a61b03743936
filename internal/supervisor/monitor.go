package supervisor

import (
	"strconv"
	"time"
)

// monitorPollInterval is the fixed 1 Hz poll rate for each Running
// process's monitor task.
const monitorPollInterval = time.Second

// startMonitor launches the one-task-per-process monitor loop for a
// just-started process. It exits on its own once the process leaves
// Running (crash) or stopMonitor signals cancellation (graceful stop).
func (s *Supervisor) startMonitor(name string, e *entry) {
	e.monitorCancel = make(chan struct{})
	e.monitorDone = make(chan struct{})
	go s.runMonitor(name, e)
}

// stopMonitor cooperatively cancels a running monitor task and waits
// for it to observe the cancellation, per §5's "flip running to false,
// the monitor observes it at its next poll" rule — applied here
// per-process rather than process-wide, since StopProcess targets one
// process while the supervisor keeps running.
func (s *Supervisor) stopMonitor(e *entry) {
	if e.monitorCancel == nil {
		return
	}
	close(e.monitorCancel)
	<-e.monitorDone
	e.monitorCancel = nil
	e.monitorDone = nil
}

func (s *Supervisor) runMonitor(name string, e *entry) {
	defer close(e.monitorDone)

	ticker := time.NewTicker(monitorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.monitorCancel:
			return
		case <-ticker.C:
			if s.checkExit(name, e) {
				return
			}
			if s.checkHeartbeatTimeout(name, e) {
				return
			}
		}
	}
}

// checkExit polls the handle for exit and, if the child has exited,
// transitions the process to Crashed and invokes the crash handler. It
// returns true if the monitor task should stop.
func (s *Supervisor) checkExit(name string, e *entry) bool {
	s.mu.RLock()
	handle := e.handle
	running := e.record.State == Running
	s.mu.RUnlock()
	if !running || handle == nil {
		return true
	}

	status, err := s.adapter.PollExit(handle)
	if err != nil {
		// Adapter failure on an in-flight handle is treated as an
		// opaque exit, per §7's AdapterError row.
		s.markCrashed(name, e, "adapter error: "+err.Error())
		s.invokeCrashHandler(name)
		return true
	}
	if status.Exited {
		s.markCrashed(name, e, exitMessage(status.ExitCode))
		s.invokeCrashHandler(name)
		return true
	}
	return false
}

func exitMessage(code int) string {
	if code == 0 {
		return "process exited"
	}
	return "process exited with code " + strconv.Itoa(code)
}

// checkHeartbeatTimeout transitions to Crashed if heartbeats are
// enabled for this process and none has arrived within the configured
// timeout. It returns true if the monitor task should stop.
func (s *Supervisor) checkHeartbeatTimeout(name string, e *entry) bool {
	s.mu.RLock()
	cfg := e.record.Config
	last := e.record.LastHeartbeatAt
	running := e.record.State == Running
	s.mu.RUnlock()

	if !running || !cfg.HeartbeatEnabled {
		return false
	}
	if time.Since(last) <= cfg.HeartbeatTimeout {
		return false
	}

	s.markCrashed(name, e, "heartbeat timeout")
	s.invokeCrashHandler(name)
	return true
}

func (s *Supervisor) markCrashed(name string, e *entry, reason string) {
	s.mu.Lock()
	e.record.State = Crashed
	e.record.LastError = reason
	handle := e.handle
	e.handle = nil
	stdioChan := e.stdioChannel
	e.stdioChannel = nil
	e.recomputeChannels()
	logFile := e.logFile
	e.logFile = nil
	s.mu.Unlock()

	s.log.Error().Str("process", name).Str("reason", reason).Msg("process crashed")
	if logFile != nil {
		logFile.WriteLine("crashed: " + reason)
		_ = logFile.Close()
	}
	// stdioChan's pipes die with the child; close it here so a
	// subsequent restart's fresh channel doesn't leak the old one's
	// pump goroutine. FileIPC channels are untouched — they outlive
	// crashes the same way they outlive graceful stops.
	if stdioChan != nil {
		_ = stdioChan.Close()
	}
	// On the exit path the adapter's wait goroutine has already reaped
	// the child and PollExit has closed the handle. On the
	// heartbeat-timeout path the child is still alive, so it is killed
	// here before a restart can spawn a second instance.
	if handle != nil {
		if status, err := s.adapter.PollExit(handle); err == nil && status.Running {
			_ = s.adapter.Terminate(handle, true)
		}
	}
	s.notifyStateChange(name, Crashed)
}

// invokeCrashHandler applies the restart policy: if auto_restart and
// attempts remain, sleep restart_delay then restart; otherwise the
// process stays Crashed (terminal).
func (s *Supervisor) invokeCrashHandler(name string) {
	s.mu.RLock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.RUnlock()
		return
	}
	cfg := e.record.Config
	count := e.record.RestartCount
	s.mu.RUnlock()

	if !cfg.AutoRestart || count >= cfg.MaxRestartAttempts {
		return
	}

	time.Sleep(cfg.RestartDelay)

	s.mu.Lock()
	e.record.RestartCount++
	s.mu.Unlock()
	s.notifyRestart(name)

	if err := s.StartProcess(name); err != nil {
		s.log.Warn().Str("process", name).Err(err).Msg("crash handler: restart failed")
	}
}
