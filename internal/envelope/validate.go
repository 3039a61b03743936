package envelope

import "encoding/json"

// Validate checks the structural invariants from §3/§4.A, in priority
// order: empty source, empty target, empty command, oversized payload,
// malformed payload JSON. The literal "{}" always validates even though
// it is also the empty-object JSON value.
func Validate(env Envelope) error {
	if env.Source == "" {
		return ValidationError{Reason: "Source is empty"}
	}
	if env.Target == "" {
		return ValidationError{Reason: "Target is empty"}
	}
	if env.Command == "" {
		return ValidationError{Reason: "Command is empty"}
	}
	if len(env.Payload) > MaxPayloadBytes {
		return ValidationError{Reason: "Payload exceeds 1 MiB"}
	}
	payload := env.Payload
	if len(payload) == 0 {
		payload = emptyPayload
	}
	if !json.Valid(payload) {
		return ValidationError{Reason: "Payload is not valid JSON"}
	}
	return nil
}

// RateLimiter gates inbound messages per source. Validate does not call
// it, and neither the Router nor the Supervisor's dispatch path consults
// it. The default NoopRateLimiter always allows.
type RateLimiter interface {
	Allow(source string) bool
}

// NoopRateLimiter is the reserved-but-inert hook required by §4.A: it
// never rejects a message. A token-bucket implementation can be swapped
// in later without touching any caller.
type NoopRateLimiter struct{}

func (NoopRateLimiter) Allow(string) bool { return true }
