package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/kelvinlab/fleetsup/internal/envelope"
)

func TestDispatchInvokesHandlerExactlyOnceAndDropsUnregisteredSilently(t *testing.T) {
	r := New()

	var calls int
	var got envelope.Envelope
	r.Register("ping", func(env envelope.Envelope) error {
		calls++
		got = env
		return nil
	})

	env := envelope.Envelope{Kind: envelope.Command, Source: "a", Target: "sup", Command: "ping", Timestamp: 1, ID: "m1"}
	r.Dispatch(env, func(command string, err error) {
		t.Fatalf("unexpected handler error for %s: %v", command, err)
	})

	if calls != 1 {
		t.Fatalf("expected handler invoked exactly once, got %d", calls)
	}
	if got.ID != env.ID {
		t.Fatalf("handler received unexpected envelope: %+v", got)
	}

	// "pong" has no registered handler; dispatch must drop it silently.
	r.Dispatch(envelope.Envelope{Source: "a", Target: "sup", Command: "pong", ID: "m2"}, func(command string, err error) {
		t.Fatalf("expected silent drop for unregistered command %s, got error callback: %v", command, err)
	})
	if calls != 1 {
		t.Fatalf("expected no additional calls from unregistered command, got %d", calls)
	}
}

func TestDispatchCallsHandlersInRegistrationOrder(t *testing.T) {
	r := New()

	var order []int
	r.Register("k", func(envelope.Envelope) error { order = append(order, 1); return nil })
	r.Register("k", func(envelope.Envelope) error { order = append(order, 2); return nil })

	r.Dispatch(envelope.Envelope{Command: "k"}, nil)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected handlers invoked in registration order, got %v", order)
	}
}

func TestDispatchSwallowsHandlerErrorAndContinues(t *testing.T) {
	r := New()

	var secondCalled bool
	r.Register("k", func(envelope.Envelope) error { return errors.New("boom") })
	r.Register("k", func(envelope.Envelope) error { secondCalled = true; return nil })

	var reportedErr error
	var reportedCommand string
	r.Dispatch(envelope.Envelope{Command: "k"}, func(command string, err error) {
		reportedCommand = command
		reportedErr = err
	})

	if !secondCalled {
		t.Fatalf("expected second handler to run despite first handler's error")
	}
	if reportedCommand != "k" || reportedErr == nil {
		t.Fatalf("expected error reported for command k, got command=%q err=%v", reportedCommand, reportedErr)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	r := New()

	var secondCalled bool
	r.Register("k", func(envelope.Envelope) error { panic("kaboom") })
	r.Register("k", func(envelope.Envelope) error { secondCalled = true; return nil })

	var reportedErr error
	r.Dispatch(envelope.Envelope{Command: "k"}, func(command string, err error) {
		reportedErr = err
	})

	if !secondCalled {
		t.Fatalf("expected second handler to run despite first handler's panic")
	}
	if reportedErr == nil {
		t.Fatalf("expected panic to be reported as an error")
	}
}

func TestUnregisterAllClearsHandlers(t *testing.T) {
	r := New()

	var calls int
	r.Register("k", func(envelope.Envelope) error { calls++; return nil })
	r.UnregisterAll()
	r.Dispatch(envelope.Envelope{Command: "k"}, func(command string, err error) {
		t.Fatalf("expected no handlers after UnregisterAll")
	})
	if calls != 0 {
		t.Fatalf("expected 0 calls after UnregisterAll, got %d", calls)
	}
}

func TestRegisterDuringDispatchDoesNotRace(t *testing.T) {
	r := New()
	r.Register("k", func(envelope.Envelope) error { return nil })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Dispatch(envelope.Envelope{Command: "k"}, nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Register("k", func(envelope.Envelope) error { return nil })
		}
	}()
	wg.Wait()
}
