// Package codec serializes and deserializes the wire envelopes exchanged on
// the bus. Malformed payloads come back as *DecodeError so callers can
// log-and-drop without ever crashing the delivery loop.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmquang/sensorex/internal/model/messages"
)

// DecodeError wraps any failure to turn a wire payload into a valid message.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErrf(format string, args ...interface{}) error {
	return &DecodeError{Err: fmt.Errorf(format, args...)}
}

// EncodeControl marshals a control command (or acknowledgement) envelope.
func EncodeControl(c messages.ControlCommand) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeControl parses and validates a control envelope.
// decode(encode(c)) == c for every valid c.
func DecodeControl(payload []byte) (messages.ControlCommand, error) {
	var c messages.ControlCommand
	if err := json.Unmarshal(payload, &c); err != nil {
		return messages.ControlCommand{}, &DecodeError{Err: err}
	}
	switch c.Command {
	case messages.CommandEnable, messages.CommandDisable:
	default:
		return messages.ControlCommand{}, decodeErrf("unknown command %q", c.Command)
	}
	if strings.TrimSpace(c.Target) == "" {
		return messages.ControlCommand{}, decodeErrf("empty target")
	}
	return c, nil
}

// EncodeReading marshals a sensor reading.
func EncodeReading(r messages.Reading) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeReading parses and validates a reading payload.
func DecodeReading(payload []byte) (messages.Reading, error) {
	var r messages.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return messages.Reading{}, &DecodeError{Err: err}
	}
	if strings.TrimSpace(r.DeviceID) == "" {
		return messages.Reading{}, decodeErrf("reading without device_id")
	}
	return r, nil
}
