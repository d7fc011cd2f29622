package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformed reports a frame that is not a valid envelope.
var ErrMalformed = errors.New("malformed message")

// Inbound is a decoded envelope whose payload is decoded lazily by type.
type Inbound struct {
	Type string
	ID   string

	raw    []byte
	decode func(data []byte, v any) error
}

// HasPayload reports whether the envelope carried a payload.
func (in Inbound) HasPayload() bool {
	return len(in.raw) > 0
}

// Payload decodes the envelope payload into v. An absent payload leaves v
// untouched.
func (in Inbound) Payload(v any) error {
	if !in.HasPayload() || in.decode == nil {
		return nil
	}
	if err := in.decode(in.raw, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, in.Type, err)
	}
	return nil
}

// Codec converts envelopes to and from wire frames. Implementations are safe for
// concurrent use.
type Codec interface {
	Name() string
	// Binary reports whether frames should travel as binary websocket messages.
	Binary() bool
	Encode(typ, id string, payload any) ([]byte, error)
	Decode(frame []byte) (Inbound, error)
}

// NewCodec returns the codec registered under name: "json" or "msgpack".
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}

// JSON encodes envelopes as {"t":..,"id":..,"d":..} text frames.
type JSON struct{}

type jsonEnvelope struct {
	T  string          `json:"t"`
	ID string          `json:"id,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Encode(typ, id string, payload any) ([]byte, error) {
	env := jsonEnvelope{T: typ, ID: id}
	if payload != nil {
		d, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", typ, err)
		}
		env.D = d
	}
	return json.Marshal(env)
}

func (JSON) Decode(frame []byte) (Inbound, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.T == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	raw := []byte(env.D)
	if string(raw) == "null" {
		raw = nil
	}
	return Inbound{Type: env.T, ID: env.ID, raw: raw, decode: json.Unmarshal}, nil
}

// Msgpack encodes the same envelope shape as a binary MessagePack map.
type Msgpack struct{}

type msgpackEnvelope struct {
	T  string             `msgpack:"t"`
	ID string             `msgpack:"id,omitempty"`
	D  msgpack.RawMessage `msgpack:"d,omitempty"`
}

func (Msgpack) Name() string { return "msgpack" }
func (Msgpack) Binary() bool { return true }

func (Msgpack) Encode(typ, id string, payload any) ([]byte, error) {
	env := msgpackEnvelope{T: typ, ID: id}
	if payload != nil {
		d, err := msgpack.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", typ, err)
		}
		env.D = d
	}
	return msgpack.Marshal(&env)
}

func (Msgpack) Decode(frame []byte) (Inbound, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.T == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return Inbound{Type: env.T, ID: env.ID, raw: env.D, decode: msgpack.Unmarshal}, nil
}

// Error builds the payload of an error envelope.
func Error(code string, err error) ErrorPayload {
	return ErrorPayload{Code: code, Message: err.Error()}
}
