package supervisor

import (
	"time"

	"github.com/kelvinlab/fleetsup/internal/channel"
	"github.com/kelvinlab/fleetsup/internal/envelope"
	"github.com/kelvinlab/fleetsup/internal/logging"
)

// channelPumpInterval bounds each Receive call inside the per-channel
// pump loop, so the loop can observe shutdown promptly.
const channelPumpInterval = 200 * time.Millisecond

// startChannelPumps launches one goroutine per channel bound to a
// just-started process, each looping Receive(timeout) and handing
// whatever arrives to dispatchEnvelope. Envelopes on the same channel
// are therefore dispatched in arrival order; channels have no
// cross-channel ordering, per §5.
func (s *Supervisor) startChannelPumps(name string, e *entry) {
	for _, ch := range e.channels {
		go s.pumpChannel(name, e, ch)
	}
}

func (s *Supervisor) pumpChannel(name string, e *entry, ch channel.Channel) {
	for {
		s.mu.RLock()
		active := e.record.State == Running
		s.mu.RUnlock()
		if !active {
			return
		}

		env, ok, err := ch.Receive(channelPumpInterval)
		if err != nil {
			s.log.Warn().Str("process", name).Err(err).Msg("channel receive failed")
			s.notifyChannelError(name, string(ch.Kind()))
			return
		}
		if !ok {
			continue
		}
		s.dispatchEnvelope(name, env)
	}
}

// SendMessage delivers env to every channel bound to target, returning
// the count of channels it was successfully written to. target "*" is
// rejected here; use BroadcastMessage instead.
func (s *Supervisor) SendMessage(target string, env envelope.Envelope) (int, error) {
	s.mu.RLock()
	e, ok := s.entries[target]
	var chans []channel.Channel
	if ok {
		chans = append(chans, e.channels...)
	}
	s.mu.RUnlock()

	if !ok {
		return 0, ErrUnknownProcess
	}

	delivered := 0
	for _, ch := range chans {
		if err := ch.Send(env); err != nil {
			if logging.Dedup.Allow(target, "channel_send_failed") {
				s.log.Warn().Str("process", target).Err(err).Msg("send_message: channel send failed")
			}
			s.notifyChannelError(target, string(ch.Kind()))
			continue
		}
		delivered++
	}
	return delivered, nil
}

// BroadcastMessage delivers env to every registered process's channels
// and returns the total successful delivery count.
func (s *Supervisor) BroadcastMessage(env envelope.Envelope) int {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	s.mu.RUnlock()

	total := 0
	for _, name := range names {
		n, err := s.SendMessage(name, env)
		if err == nil {
			total += n
		}
	}
	return total
}
