package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes env as newline-terminated JSON using the §6 field
// names. The trailing newline makes the output directly usable as one
// line of a Stdio stream or as the whole content of a FileIPC file.
func Encode(env Envelope) ([]byte, error) {
	buf, err := json.Marshal(env.toWire())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	buf = append(buf, '\n')
	return buf, nil
}

// Decode parses one newline-terminated (or bare) JSON envelope.
func Decode(data []byte) (Envelope, error) {
	data = bytes.TrimRight(data, "\n")
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return fromWire(w), nil
}
