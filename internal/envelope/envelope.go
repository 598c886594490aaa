package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrParse reports bytes that are not a well-formed envelope document.
	ErrParse = errors.New("envelope: parse error")
	// ErrMissingField reports a document without a type tag.
	ErrMissingField = errors.New("envelope: missing field")
)

// legacyTimeLayout is the offset-less form emitted by older daemons.
const legacyTimeLayout = "2006-01-02T15:04:05"

// Envelope is one decoded wire message.
type Envelope struct {
	Type      string
	Timestamp time.Time
	Payload   map[string]any
}

type wireEnvelope struct {
	Type     string         `json:"type"`
	Datetime string         `json:"datetime"`
	Data     map[string]any `json:"data"`
}

// Codec builds envelopes stamped with the clock returned by Now.
type Codec struct {
	Now func() time.Time
}

var defaultCodec = Codec{Now: time.Now}

// Encode serializes an envelope of type t using the wall clock.
func Encode(t string, payload map[string]any) ([]byte, error) {
	return defaultCodec.Encode(t, payload)
}

// Decode parses one envelope.
func Decode(b []byte) (Envelope, error) {
	return defaultCodec.Decode(b)
}

// Encode serializes an envelope of type t. A nil payload is written as {}.
func (c Codec) Encode(t string, payload map[string]any) ([]byte, error) {
	return c.Marshal(Envelope{Type: t, Payload: payload})
}

// Marshal serializes env. A zero timestamp is replaced by the codec clock.
func (c Codec) Marshal(env Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, fmt.Errorf("encode: %w: type", ErrMissingField)
	}
	payload := env.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	ts := env.Timestamp
	if ts.IsZero() {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		ts = now()
	}
	data, err := json.Marshal(wireEnvelope{
		Type:     env.Type,
		Datetime: ts.Format(time.RFC3339),
		Data:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Type, err)
	}
	return data, nil
}

// Decode parses one envelope. Missing data decodes to an empty payload and a
// missing or unreadable datetime decodes to the zero time.
func (Codec) Decode(b []byte) (Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(b), &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if raw == nil {
		return Envelope{}, fmt.Errorf("%w: document is not an object", ErrParse)
	}

	typeField, ok := raw["type"]
	if !ok || isNull(typeField) {
		return Envelope{}, fmt.Errorf("%w: type", ErrMissingField)
	}
	var env Envelope
	if err := json.Unmarshal(typeField, &env.Type); err != nil {
		return Envelope{}, fmt.Errorf("%w: type is not a string", ErrParse)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: type", ErrMissingField)
	}

	env.Payload = map[string]any{}
	if dataField, ok := raw["data"]; ok && !isNull(dataField) {
		if err := json.Unmarshal(dataField, &env.Payload); err != nil {
			return Envelope{}, fmt.Errorf("%w: data is not an object", ErrParse)
		}
	}

	if dtField, ok := raw["datetime"]; ok {
		var dt string
		if json.Unmarshal(dtField, &dt) == nil {
			env.Timestamp = parseTime(dt)
		}
	}
	return env, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.ParseInLocation(legacyTimeLayout, value, time.Local); err == nil {
		return ts
	}
	return time.Time{}
}
