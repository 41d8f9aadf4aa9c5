package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode wraps a payload in an envelope of the given type.
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty envelope type")
	}
	pb, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %q payload: %w", t, err)
	}
	return msgpack.Marshal(Envelope{T: t, P: pb})
}

// DecodeCommand turns one inbound datagram into a typed command. A datagram
// of an unknown type decodes to (nil, nil) and is ignored by callers; a
// malformed datagram is an error for that message only.
func DecodeCommand(b []byte) (Command, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("decode: empty datagram")
	}
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.P) == 0 {
		return nil, fmt.Errorf("decode: empty payload for type %q", env.T)
	}

	switch env.T {
	case MsgConnect:
		var c Connect
		if err := msgpack.Unmarshal(env.P, &c); err != nil {
			return nil, fmt.Errorf("decode connect: %w", err)
		}
		return c, nil
	case MsgUpdateVelocity:
		var uv UpdateVelocity
		if err := msgpack.Unmarshal(env.P, &uv); err != nil {
			return nil, fmt.Errorf("decode update_velocity: %w", err)
		}
		return uv, nil
	default:
		return nil, nil
	}
}

// DecodeUpdatePosition decodes the outbound message; clients and the bot use
// it, and tests round-trip through it.
func DecodeUpdatePosition(b []byte) (UpdatePosition, error) {
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return UpdatePosition{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.T != MsgUpdatePosition {
		return UpdatePosition{}, fmt.Errorf("decode: unexpected type %q", env.T)
	}
	var up UpdatePosition
	if err := msgpack.Unmarshal(env.P, &up); err != nil {
		return UpdatePosition{}, fmt.Errorf("decode update_position: %w", err)
	}
	return up, nil
}
