package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire form of a Command: {"type", "timestamp", "payload"}.
// Timestamp is unix milliseconds.
type Envelope struct {
	Type      Kind            `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func Encode(cmd Command, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: cmd.Kind(), Timestamp: at.UnixMilli(), Payload: payload}, nil
}

// Decode resolves the envelope into its concrete Command and validates it.
// Unknown type tags are rejected here, before anything reaches the store.
func (e Envelope) Decode() (Command, error) {
	var (
		cmd Command
		err error
	)
	switch e.Type {
	case KindUpdateContent:
		var c UpdateContent
		err = decodePayload(e.Payload, &c)
		cmd = c
	case KindAddProject:
		var c AddProject
		err = decodePayload(e.Payload, &c)
		if c.Technologies == nil {
			c.Technologies = []string{}
		}
		cmd = c
	case KindUpdateProject:
		var c UpdateProject
		err = decodePayload(e.Payload, &c)
		cmd = c
	case KindDeleteProject:
		var c DeleteProject
		err = decodePayload(e.Payload, &c)
		cmd = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, e.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func decodePayload(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return invalid("payload is required")
	}
	return decodeObject(string(raw), dst)
}
