package supervisor

import (
	"context"
	"os/signal"
	"syscall"
)

// Run sets running = true, starts every registered process via
// StartAll, then blocks until the process's signal handler (SIGINT,
// SIGTERM, SIGHUP on POSIX) calls Shutdown, or Shutdown is called
// directly by an embedder. It returns once running has transitioned
// back to false.
func (s *Supervisor) Run() error {
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.runningMu.Unlock()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	s.StartAll()
	s.log.Info().Msg("supervisor: all processes started, entering event loop")

	select {
	case <-ctx.Done():
		s.log.Info().Msg("supervisor: shutdown signal received")
		s.Shutdown()
	case <-stopCh:
	}
	return nil
}

// Shutdown sets running = false, stops every process, closes every
// channel, and clears the process table. It is idempotent: a second
// call while the first is already in flight, or after completion, is
// a no-op. Unlike Run, Shutdown does not require running to have been
// true — an embedder may call it directly against a table it started
// by hand (e.g. via StartProcess in tests).
func (s *Supervisor) Shutdown() {
	s.runningMu.Lock()
	if s.shutdownDone {
		s.runningMu.Unlock()
		return
	}
	s.shutdownDone = true
	s.running = false
	stopCh := s.stopCh
	s.stopCh = nil
	s.runningMu.Unlock()

	s.StopAll()

	s.mu.Lock()
	for _, e := range s.entries {
		for _, ch := range e.channels {
			_ = ch.Close()
		}
	}
	s.entries = make(map[string]*entry)
	s.order = nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
}
