// fleetworker is a reference child process: it speaks the §6 envelope
// wire format over stdin/stdout, replies "ready" on startup, emits a
// heartbeat on an interval, and echoes any command it doesn't recognize
// back as an error response.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kelvinlab/fleetsup/internal/envelope"
)

func main() {
	name := flag.String("name", "worker", "this worker's identity, used as Envelope.Source")
	heartbeat := flag.Duration("heartbeat", 2*time.Second, "heartbeat interval, 0 disables")
	flag.Parse()

	w := &worker{name: *name, out: os.Stdout}
	w.sendReady()

	stop := make(chan struct{})
	if *heartbeat > 0 {
		go w.heartbeatLoop(*heartbeat, stop)
	}
	defer close(stop)

	w.run(os.Stdin)
}

type worker struct {
	name string
	out  io.Writer
}

func (w *worker) run(in io.Reader) {
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			w.handleLine(line)
		}
		if err != nil {
			return
		}
	}
}

func (w *worker) handleLine(line []byte) {
	env, err := envelope.Decode(line)
	if err != nil {
		w.send(envelope.Envelope{
			Kind:    envelope.Error,
			Source:  w.name,
			Target:  "supervisor",
			Command: "decode",
			Payload: jsonString(err.Error()),
		})
		return
	}

	switch env.Kind {
	case envelope.Shutdown:
		os.Exit(0)
	case envelope.Command:
		w.handleCommand(env)
	}
}

func (w *worker) handleCommand(env envelope.Envelope) {
	switch env.Command {
	case "ping":
		w.send(envelope.Envelope{
			Kind:    envelope.Response,
			Source:  w.name,
			Target:  env.Source,
			Command: "pong",
			ID:      uuid.NewString(),
		})
	default:
		w.send(envelope.Envelope{
			Kind:    envelope.Error,
			Source:  w.name,
			Target:  env.Source,
			Command: env.Command,
			Payload: jsonString(fmt.Sprintf("unrecognized command %q", env.Command)),
			ID:      uuid.NewString(),
		})
	}
}

func (w *worker) sendReady() {
	w.send(envelope.Envelope{
		Kind:    envelope.Response,
		Source:  w.name,
		Target:  "supervisor",
		Command: "ready",
		ID:      uuid.NewString(),
	})
}

func (w *worker) heartbeatLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.send(envelope.Envelope{
				Kind:      envelope.Heartbeat,
				Source:    w.name,
				Target:    "supervisor",
				Command:   "heartbeat",
				Timestamp: uint64(time.Now().Unix()),
				ID:        uuid.NewString(),
			})
		}
	}
}

func (w *worker) send(env envelope.Envelope) {
	buf, err := envelope.Encode(env)
	if err != nil {
		return
	}
	_, _ = w.out.Write(buf)
}

func jsonString(s string) json.RawMessage {
	buf, _ := json.Marshal(map[string]string{"error": s})
	return buf
}
